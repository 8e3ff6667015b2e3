//go:build !linux || !(amd64 || arm64)

package event

import (
	"os"

	"github.com/edsrzf/mmap-go"
)

func mmapStateFile(f *os.File, size int) ([]byte, error) {
	m, err := mmap.MapRegion(f, size, mmap.RDWR, 0, 0)
	if err != nil {
		return nil, err
	}
	return []byte(m), nil
}

func munmapState(mem []byte) error {
	m := mmap.MMap(mem)
	return m.Unmap()
}
