//go:build linux && (amd64 || arm64)

package event

import (
	"os"

	"golang.org/x/sys/unix"
)

func mmapStateFile(f *os.File, size int) ([]byte, error) {
	return unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

func munmapState(mem []byte) error {
	return unix.Munmap(mem)
}
