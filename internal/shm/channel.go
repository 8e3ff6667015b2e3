package shm

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// errLappedMidRead signals that the writer wrapped around and
// overwrote the frame a reader was in the middle of copying. It never
// escapes Recv; the caller resyncs to the newest cursor and retries,
// same as any other lapped detection.
var errLappedMidRead = errors.New("msgq: reader lapped mid-read")

// Channel is one end of a shared-memory SPMC ring: either the single
// publisher or one of up to NMaxReaders subscribers attached to the
// same Segment. A process that needs both roles on one segment opens
// two Channels.
type Channel struct {
	seg      *Segment
	isPub    bool
	slot     int    // subscriber only; -1 for publisher
	uid      uint64 // subscriber only
	conflate bool   // subscriber only: mode given to InitSubscriber; Recv does not read it
	readCur  Cursor // subscriber only: last cursor delivered to caller
}

// InitPublisher attaches the publisher role to seg. A segment has at
// most one live publisher at a time; nothing in the transport enforces
// that beyond convention, matching the single-producer non-goal.
func InitPublisher(seg *Segment) *Channel {
	return &Channel{seg: seg, isPub: true, slot: -1}
}

// InitSubscriber attaches a new subscriber to seg, claiming a free or
// reclaimable reader slot. conflate is recorded on the Channel; Recv
// conflates according to its own conflate argument only.
func InitSubscriber(seg *Segment, conflate bool) (*Channel, error) {
	slot, uid, err := claimSlot(seg.Header())
	if err != nil {
		return nil, err
	}
	// Join at the current write position: a subscriber never sees
	// backlog that existed before it attached.
	start := seg.Header().WriteCursorLoad()
	seg.Header().ReaderCursorStore(slot, start)
	return &Channel{
		seg:      seg,
		isPub:    false,
		slot:     slot,
		uid:      uid,
		conflate: conflate,
		readCur:  start,
	}, nil
}

// Close releases a subscriber's slot so it can be claimed again
// immediately rather than only once a liveness probe finds its owner
// dead. It is
// a no-op for a publisher channel.
func (c *Channel) Close() error {
	if c.isPub {
		return nil
	}
	c.seg.Header().ReaderUIDCAS(c.slot, c.uid, 0)
	c.seg.Header().DecNumReaders()
	return nil
}

// claimSlot finds a free reader slot, or reclaims one whose owning
// process is no longer alive, and returns its index and the packed
// reader UID now occupying it.
func claimSlot(h *Header) (int, uint64, error) {
	pid := uint64(uint32(os.Getpid()))

	// First pass: a genuinely free slot.
	for i := 0; i < NMaxReaders; i++ {
		if h.ReaderUIDLoad(i) != 0 {
			continue
		}
		uid := pid<<32 | 1
		if h.ReaderUIDCAS(i, 0, uid) {
			h.IncNumReaders()
			return i, uid, nil
		}
	}

	// Second pass: reclaim a slot whose owning pid has died. Another
	// subscriber may race to reclaim the same slot; the CAS against the
	// old UID fails harmlessly for the loser, who just retries another
	// slot. The generation component of the UID starts at 1 on a free
	// slot and is incremented on every reclaim.
	for i := 0; i < NMaxReaders; i++ {
		old := h.ReaderUIDLoad(i)
		if old == 0 {
			continue
		}
		ownerPID := int32(old >> 32)
		if pidAlive(ownerPID) {
			continue
		}
		gen := uint32(old) + 1
		uid := pid<<32 | uint64(gen)
		if h.ReaderUIDCAS(i, old, uid) {
			// Slot was already counted in NumReaders by its previous
			// occupant; no increment here.
			h.ReaderCursorStore(i, h.WriteCursorLoad())
			return i, uid, nil
		}
	}

	return 0, 0, fmt.Errorf("%w: all %d reader slots occupied by live readers", ErrSlotExhausted, NMaxReaders)
}

// Send publishes payload as one frame. It never blocks on subscribers:
// a reader that cannot keep up simply gets lapped; its next Recv skips
// to the writer's current position and returns only frames published
// after that.
func (c *Channel) Send(payload []byte) error {
	if !c.isPub {
		return fmt.Errorf("%w: Send called on a subscriber channel", ErrInvalidArgument)
	}
	h := c.seg.Header()
	segSize := c.seg.SegmentSize()
	need := framedSize(uint32(len(payload)))
	if uint64(need) > segSize {
		return fmt.Errorf("%w: payload %d bytes exceeds segment capacity", ErrMessageTooLarge, len(payload))
	}

	cur := h.WriteCursorLoad()
	offset := uint64(cur.Offset())
	data := c.seg.Data()

	// Case A: not even a frame header fits before the end of the data
	// region. Both publisher and subscriber can derive this purely
	// from offset and segSize (no data dependency), so the wrap
	// happens silently with nothing written to the dead bytes.
	if segSize-offset < frameHeaderSize {
		cur = cur.WrapAdd(segSize-offset, uint32(segSize))
		offset = uint64(cur.Offset())
	}

	// Case B: the header fits but the full frame does not. Write a
	// wrap sentinel a subscriber can actually read, then restart the
	// frame at offset 0 of the next cycle.
	if segSize-offset < uint64(need) {
		encodeFrameHeader(data[offset:offset+frameHeaderSize], FrameHeader{Size: 0, Flags: FlagWrap})
		cur = cur.WrapAdd(segSize-offset, uint32(segSize))
		offset = uint64(cur.Offset())
	}

	encodeFrameHeader(data[offset:offset+frameHeaderSize], FrameHeader{Size: uint32(len(payload))})
	copy(data[offset+frameHeaderSize:], payload)

	next := cur.WrapAdd(uint64(need), uint32(segSize))
	h.WriteCursorStore(next)
	h.WriteSeqBump()
	futexWake(h.WriteSeqAddr(), NMaxReaders)
	return nil
}

// MsgReady reports whether the subscriber has at least one unread
// frame available, without blocking or consuming it.
func (c *Channel) MsgReady() bool {
	if c.isPub {
		return false
	}
	return c.readCur != c.seg.Header().WriteCursorLoad()
}

// Recv returns the next frame, waiting up to timeoutMs milliseconds
// for one to become available. timeoutMs < 0 blocks forever; 0 polls
// once and returns immediately (nil, nil) if nothing is ready; > 0
// waits up to that many milliseconds. conflate applies to this call;
// the mode passed to InitSubscriber is not consulted. When conflate is
// true and more than one frame is waiting, all but the newest are
// skipped.
func (c *Channel) Recv(timeoutMs int, conflate bool) ([]byte, error) {
	if c.isPub {
		return nil, fmt.Errorf("%w: Recv called on a publisher channel", ErrInvalidArgument)
	}
	h := c.seg.Header()

	deadline := time.Time{}
	if timeoutMs > 0 {
		deadline = time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	}

	for {
		writeCur := h.WriteCursorLoad()
		if c.readCur == writeCur {
			if timeoutMs == 0 {
				return nil, nil // single poll: nothing ready.
			}
			remaining := time.Duration(0) // <= 0 tells futexWait to block forever
			if timeoutMs > 0 {
				remaining = time.Until(deadline)
				if remaining <= 0 {
					return nil, ErrTimeout
				}
			}
			seq := h.WriteSeqLoad()
			if err := futexWait(h.WriteSeqAddr(), seq, remaining); err != nil {
				if err == ErrTimeout {
					return nil, ErrTimeout
				}
				return nil, err
			}
			continue
		}

		if c.readCur.Lapped(writeCur) {
			// Too far behind: jump to the writer's current position and
			// count the gap. Frames still in the ring are skipped too, so
			// the next frame returned is the first one published after
			// this point.
			h.IncDropped()
			c.readCur = writeCur
			continue
		}

		payload, next, err := readFrameAt(c.seg, c.readCur)
		if err != nil {
			if errors.Is(err, errLappedMidRead) {
				h.IncDropped()
				c.readCur = h.WriteCursorLoad()
				continue
			}
			return nil, err
		}
		c.readCur = next
		h.ReaderCursorStore(c.slot, c.readCur)

		if conflate && c.readCur != writeCur {
			// More data is already waiting; drop this frame and loop
			// to fetch the newest instead of returning stale data.
			continue
		}
		return payload, nil
	}
}

// readFrameAt decodes the frame at cur, following a wrap sentinel if
// present, and returns the payload plus the cursor just past it. It
// assumes cur != writeCur (there is at least one frame to read).
func readFrameAt(seg *Segment, cur Cursor) ([]byte, Cursor, error) {
	segSize := seg.SegmentSize()
	data := seg.Data()
	offset := uint64(cur.Offset())

	// Mirror Send's Case A: no header could have been written this
	// close to the end of the region, so wrap without reading.
	if segSize-offset < frameHeaderSize {
		cur = cur.WrapAdd(segSize-offset, uint32(segSize))
		offset = uint64(cur.Offset())
	}

	fh := decodeFrameHeader(data[offset : offset+frameHeaderSize])
	if fh.Flags&FlagWrap != 0 {
		cur = cur.WrapAdd(segSize-offset, uint32(segSize))
		offset = uint64(cur.Offset())
		fh = decodeFrameHeader(data[offset : offset+frameHeaderSize])
	}

	if uint64(offset)+uint64(frameHeaderSize)+uint64(fh.Size) > segSize {
		return nil, Cursor(0), fmt.Errorf("%w: corrupt frame header at offset %d", ErrIO, offset)
	}

	payload := make([]byte, fh.Size)
	copy(payload, data[offset+frameHeaderSize:offset+frameHeaderSize+uint64(fh.Size)])

	// The writer never blocks on readers: it may have wrapped around
	// and overwritten the bytes just copied before the copy finished.
	// Re-read the write cursor now and check whether this frame's
	// start has fallen out of the live window; if so the copy may be
	// torn and must be discarded rather than returned to the caller.
	if cur.Lapped(seg.Header().WriteCursorLoad()) {
		return nil, Cursor(0), errLappedMidRead
	}

	next := cur.WrapAdd(uint64(framedSize(fh.Size)), uint32(segSize))
	return payload, next, nil
}

// AllReadersUpdated reports whether every currently-attached, live
// subscriber has consumed up to the publisher's latest write, i.e. no
// live subscriber is holding a backlog. A slot whose owning process
// has died is treated as updated (ignored) rather than holding this
// false forever until some other subscriber happens to reclaim it. A
// publisher uses this to decide whether it is safe to, for example,
// tear down the segment.
func (c *Channel) AllReadersUpdated() bool {
	if !c.isPub {
		return false
	}
	h := c.seg.Header()
	writeCur := h.WriteCursorLoad()
	for i := 0; i < NMaxReaders; i++ {
		uid := h.ReaderUIDLoad(i)
		if uid == 0 {
			continue
		}
		ownerPID := int32(uid >> 32)
		if !pidAlive(ownerPID) {
			continue
		}
		if h.ReaderCursorLoad(i) != writeCur {
			return false
		}
	}
	return true
}

// NumReaders returns the count of currently-attached subscriber slots.
func (c *Channel) NumReaders() uint32 {
	return c.seg.Header().NumReadersLoad()
}

// RawHandle exposes the underlying segment for diagnostics/tooling
// (e.g. the msgqctl monitor) that need direct header access.
func (c *Channel) RawHandle() *Segment {
	return c.seg
}
