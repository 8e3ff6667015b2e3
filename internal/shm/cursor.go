// Package shm implements the shared-memory ring transport: packed
// cursors, segment lifecycle, frame layout, and the SPMC channel.
package shm

import "sync/atomic"

// Cursor is a packed 64-bit ring position: a 32-bit cycle count in the
// high word and a 32-bit byte offset in the low word. The cycle count
// lets a reader detect it has been lapped by the writer without storing
// a separate generation field alongside every cursor.
type Cursor uint64

// NewCursor packs a cycle and offset into a Cursor.
func NewCursor(cycle, offset uint32) Cursor {
	return Cursor(uint64(cycle)<<32 | uint64(offset))
}

// Cycle returns the wrap count.
func (c Cursor) Cycle() uint32 {
	return uint32(c >> 32)
}

// Offset returns the byte offset within the ring's data region.
func (c Cursor) Offset() uint32 {
	return uint32(c)
}

// Raw returns the packed 64-bit value.
func (c Cursor) Raw() uint64 {
	return uint64(c)
}

// WrapAdd advances the cursor by delta bytes within a ring of the given
// segment size, incrementing the cycle count each time the offset wraps
// past the end of the data region. delta may itself exceed segmentSize
// (e.g. a reader resyncing many cycles forward); the cycle is advanced
// once per full wrap.
func (c Cursor) WrapAdd(delta uint64, segmentSize uint32) Cursor {
	if segmentSize == 0 {
		return c
	}
	cycle := uint64(c.Cycle())
	offset := uint64(c.Offset()) + delta
	cycle += offset / uint64(segmentSize)
	offset %= uint64(segmentSize)
	return NewCursor(uint32(cycle), uint32(offset))
}

// Lapped reports whether writer (the publisher's current cursor) has
// wrapped around far enough that reader can no longer trust its own
// position to be within the live window of the ring.
func (c Cursor) Lapped(writer Cursor) bool {
	return writer.Cycle()-c.Cycle() >= 2 ||
		(writer.Cycle()-c.Cycle() == 1 && writer.Offset() >= c.Offset())
}

// AtomicCursor is a Cursor stored for concurrent cross-process access.
// Every field msgq shares between processes is accessed exclusively
// through atomic load/store so that writes on one core become visible
// to readers on another without a lock.
type AtomicCursor struct {
	raw uint64
}

// Load atomically reads the cursor.
func (a *AtomicCursor) Load() Cursor {
	return Cursor(atomic.LoadUint64(&a.raw))
}

// Store atomically writes the cursor.
func (a *AtomicCursor) Store(c Cursor) {
	atomic.StoreUint64(&a.raw, uint64(c))
}

// CompareAndSwap atomically swaps the cursor if it currently equals old.
func (a *AtomicCursor) CompareAndSwap(old, new Cursor) bool {
	return atomic.CompareAndSwapUint64(&a.raw, uint64(old), uint64(new))
}
