package shm

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"
)

const (
	segmentMagic   = "MSGQSEG0"
	segmentVersion = uint32(1)

	// NMaxReaders is the fixed number of concurrent subscriber slots a
	// segment can hold. A publisher never blocks on slot exhaustion; a
	// subscriber that finds no free or reclaimable slot fails to attach.
	NMaxReaders = 15

	// DefaultSegmentSize is the default data-region size for a new
	// channel, matching the upstream messaging library this transport
	// is modeled on.
	DefaultSegmentSize = 10 * 1024 * 1024

	// DefaultTimeoutMs is the default Recv/Poll timeout, in
	// milliseconds, for callers that don't specify one explicitly.
	DefaultTimeoutMs = 100
)

// Header is the fixed-size control block at the start of every shared
// segment. Every field a publisher and its subscribers exchange lives
// here, accessed exclusively through atomic operations since the
// memory is concurrently mapped by unrelated processes.
type Header struct {
	Magic       [8]byte
	Version     uint32
	pad0        uint32
	SegmentSize uint64
	WriteCursor uint64
	// WriteSeq is a futex wake token: the publisher bumps it once per
	// send (after publishing WriteCursor) purely so blocked subscribers
	// parked in futexWait have a 32-bit word to wait on. It carries no
	// ring position information by itself.
	WriteSeq   uint32
	NumReaders uint32
	ReaderUIDs     [NMaxReaders]uint64
	ReaderCursors  [NMaxReaders]uint64
	DroppedFrames  uint64
	Reserved       [56]byte
}

// HeaderSize is the byte size of Header as laid out in shared memory.
var HeaderSize = int(unsafe.Sizeof(Header{}))

func headerAt(base unsafe.Pointer) *Header {
	return (*Header)(base)
}

// initHeader stamps a freshly created segment's control block.
func initHeader(h *Header, segmentSize uint64) {
	copy(h.Magic[:], segmentMagic)
	atomic.StoreUint32(&h.Version, segmentVersion)
	atomic.StoreUint64(&h.SegmentSize, segmentSize)
	atomic.StoreUint64(&h.WriteCursor, 0)
	atomic.StoreUint32(&h.NumReaders, 0)
	for i := range h.ReaderUIDs {
		atomic.StoreUint64(&h.ReaderUIDs[i], 0)
		atomic.StoreUint64(&h.ReaderCursors[i], 0)
	}
	atomic.StoreUint64(&h.DroppedFrames, 0)
}

// validateHeader checks magic, version, and the recorded segment size
// against what the caller asked to open. A mismatched size is fatal per
// the transport's contract: two processes must agree on ring geometry.
func validateHeader(h *Header, wantSegmentSize uint64) error {
	if string(h.Magic[:]) != segmentMagic {
		return fmt.Errorf("%w: bad segment magic", ErrIO)
	}
	if atomic.LoadUint32(&h.Version) != segmentVersion {
		return fmt.Errorf("%w: unsupported segment version %d", ErrIO, h.Version)
	}
	got := atomic.LoadUint64(&h.SegmentSize)
	if wantSegmentSize != 0 && got != wantSegmentSize {
		return fmt.Errorf("%w: segment declares size %d, caller wants %d", ErrSizeMismatch, got, wantSegmentSize)
	}
	return nil
}

// WriteCursorLoad/Store give atomic access to the packed write cursor.
func (h *Header) WriteCursorLoad() Cursor { return Cursor(atomic.LoadUint64(&h.WriteCursor)) }
func (h *Header) WriteCursorStore(c Cursor) { atomic.StoreUint64(&h.WriteCursor, uint64(c)) }
func (h *Header) WriteCursorCAS(old, new Cursor) bool {
	return atomic.CompareAndSwapUint64(&h.WriteCursor, uint64(old), uint64(new))
}

func (h *Header) WriteSeqLoad() uint32 { return atomic.LoadUint32(&h.WriteSeq) }
func (h *Header) WriteSeqBump() uint32 { return atomic.AddUint32(&h.WriteSeq, 1) }
func (h *Header) WriteSeqAddr() *uint32 { return &h.WriteSeq }

func (h *Header) ReaderUIDLoad(slot int) uint64 { return atomic.LoadUint64(&h.ReaderUIDs[slot]) }
func (h *Header) ReaderUIDStore(slot int, v uint64) { atomic.StoreUint64(&h.ReaderUIDs[slot], v) }
func (h *Header) ReaderUIDCAS(slot int, old, new uint64) bool {
	return atomic.CompareAndSwapUint64(&h.ReaderUIDs[slot], old, new)
}

func (h *Header) ReaderCursorLoad(slot int) Cursor {
	return Cursor(atomic.LoadUint64(&h.ReaderCursors[slot]))
}
func (h *Header) ReaderCursorStore(slot int, c Cursor) {
	atomic.StoreUint64(&h.ReaderCursors[slot], uint64(c))
}

func (h *Header) IncNumReaders() uint32 { return atomic.AddUint32(&h.NumReaders, 1) }
func (h *Header) DecNumReaders() uint32 { return atomic.AddUint32(&h.NumReaders, ^uint32(0)) }
func (h *Header) NumReadersLoad() uint32 { return atomic.LoadUint32(&h.NumReaders) }

func (h *Header) IncDropped() { atomic.AddUint64(&h.DroppedFrames, 1) }
func (h *Header) DroppedLoad() uint64 { return atomic.LoadUint64(&h.DroppedFrames) }

// Segment is a shared-memory region backing one Channel: a Header
// followed by a data ring of SegmentSize bytes. Whichever role attaches
// first (publisher or subscriber) creates it and the others open it;
// the mapping itself is symmetric.
type Segment struct {
	file        *os.File
	mem         []byte
	hdr         *Header
	data        []byte
	segmentSize uint64
	path        string
	created     bool
}

// Path returns the filesystem path backing the segment (conventionally
// under /dev/shm).
func (s *Segment) Path() string { return s.path }

// Header returns the segment's control block.
func (s *Segment) Header() *Header { return s.hdr }

// Data returns the ring's data region.
func (s *Segment) Data() []byte { return s.data }

// SegmentSize returns the size of the data region in bytes.
func (s *Segment) SegmentSize() uint64 { return s.segmentSize }

// OpenOrCreateSegment maps the segment at path, creating it with the
// given data-region size if it does not yet exist, or validating the
// size of an existing segment otherwise. Two processes racing to create
// the same segment both succeed: the loser falls back to opening what
// the winner created and validates agreement on size.
func OpenOrCreateSegment(path string, segmentSize uint64) (*Segment, error) {
	if segmentSize == 0 {
		return nil, fmt.Errorf("%w: segment size must be non-zero", ErrInvalidArgument)
	}
	total := int64(HeaderSize) + int64(segmentSize)

	file, created, err := openExclusiveOrExisting(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open segment %s: %v", ErrIO, path, err)
	}

	if created {
		if err := file.Truncate(total); err != nil {
			file.Close()
			return nil, fmt.Errorf("%w: truncate segment %s: %v", ErrIO, path, err)
		}
	} else {
		info, err := file.Stat()
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("%w: stat segment %s: %v", ErrIO, path, err)
		}
		if info.Size() < total {
			file.Close()
			return nil, fmt.Errorf("%w: existing segment %s shorter than requested layout", ErrSizeMismatch, path)
		}
	}

	mem, err := mmapFile(file, int(total))
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: mmap segment %s: %v", ErrIO, path, err)
	}

	hdr := headerAt(unsafe.Pointer(&mem[0]))
	if created {
		initHeader(hdr, segmentSize)
	} else {
		if err := validateHeader(hdr, segmentSize); err != nil {
			munmapMem(mem)
			file.Close()
			return nil, err
		}
	}

	return &Segment{
		file:        file,
		mem:         mem,
		hdr:         hdr,
		data:        mem[HeaderSize:],
		segmentSize: segmentSize,
		path:        path,
		created:     created,
	}, nil
}

// Created reports whether this process created the backing file (as
// opposed to attaching to one created by another process).
func (s *Segment) Created() bool { return s.created }

// Close unmaps the segment and closes its backing file descriptor. It
// does not unlink the path; removal is explicit via RemoveSegment, per
// the transport's no-implicit-cleanup contract.
func (s *Segment) Close() error {
	var firstErr error
	if s.mem != nil {
		if err := munmapMem(s.mem); err != nil {
			firstErr = err
		}
		s.mem = nil
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.file = nil
	}
	return firstErr
}

// RemoveSegment unlinks the backing file for name at path. Safe to call
// whether or not any process still has the segment mapped; those
// mappings remain valid until the holders close them.
func RemoveSegment(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: remove segment %s: %v", ErrIO, path, err)
	}
	return nil
}

// SegmentExists reports whether a segment file exists at path.
func SegmentExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func openExclusiveOrExisting(path string) (*os.File, bool, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err == nil {
		return f, true, nil
	}
	if !os.IsExist(err) {
		return nil, false, err
	}
	f, err = os.OpenFile(path, os.O_RDWR, 0600)
	if err != nil {
		return nil, false, err
	}
	return f, false, nil
}

// putUint64 / getUint64 are little-endian helpers for keeping on-disk
// data architecture-independent even though the header above relies on
// native atomic word access. frame.go encodes its headers with
// binary.LittleEndian directly; nothing calls these helpers.
func putUint64(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) }
func getUint64(b []byte) uint64    { return binary.LittleEndian.Uint64(b) }
