//go:build unix

package shm

import "golang.org/x/sys/unix"

// pidAlive probes whether pid still names a live process, the same way
// the upstream library does: sending signal 0 delivers no signal but
// still fails with ESRCH if the process is gone.
func pidAlive(pid int32) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(int(pid), 0)
	return err == nil || err == unix.EPERM
}
