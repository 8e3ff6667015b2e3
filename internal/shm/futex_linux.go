//go:build linux && (amd64 || arm64)

package shm

import (
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// futexWait parks the calling goroutine until *addr no longer equals
// val, the wait times out, or it is interrupted. A timeout of zero
// means wait forever. Mirrors the teacher's raw SYS_FUTEX wrapper but
// expressed against golang.org/x/sys/unix constants.
//
// addr lives in a MAP_SHARED segment mapped by unrelated processes, so
// this deliberately omits FUTEX_PRIVATE_FLAG: a private futex's key is
// derived from the waiter's own address space, which would make a
// publisher's FUTEX_WAKE in one process invisible to a subscriber's
// FUTEX_WAIT parked in another. Only the non-PRIVATE op codes give a
// cross-process wake.
func futexWait(addr *uint32, val uint32, timeout time.Duration) error {
	var ts *unix.Timespec
	if timeout > 0 {
		t := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &t
	}
	_, _, errno := unix.Syscall6(unix.SYS_FUTEX, uintptr(unsafe.Pointer(addr)),
		unix.FUTEX_WAIT, uintptr(val), uintptr(unsafe.Pointer(ts)), 0, 0)
	switch errno {
	case 0, unix.EAGAIN, unix.EINTR:
		return nil
	case unix.ETIMEDOUT:
		return ErrTimeout
	default:
		return errno
	}
}

// futexWake wakes up to n goroutines/threads parked on addr via
// futexWait, across process boundaries (see futexWait).
func futexWake(addr *uint32, n int) {
	unix.Syscall6(unix.SYS_FUTEX, uintptr(unsafe.Pointer(addr)),
		unix.FUTEX_WAKE, uintptr(n), 0, 0, 0)
}
