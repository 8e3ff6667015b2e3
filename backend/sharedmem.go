package backend

import (
	"path/filepath"

	"github.com/NorthFat/msgq/internal/shm"
)

// DefaultRoot is the conventional shared-memory mount point msgq
// segments live under.
const DefaultRoot = "/dev/shm"

func segmentPath(root, prefix, endpoint string) string {
	dir := root
	if prefix != "" {
		dir = filepath.Join(dir, prefix)
	}
	return filepath.Join(dir, "msgq_"+endpoint)
}

// SharedMemPublisher is the Publisher variant backed by internal/shm.
type SharedMemPublisher struct {
	seg *shm.Segment
	ch  *shm.Channel
}

// NewSharedMemPublisher creates or attaches to the segment for
// endpoint and initializes the publisher role on it. segmentSize of 0
// selects shm.DefaultSegmentSize.
func NewSharedMemPublisher(root, prefix, endpoint string, segmentSize uint64) (*SharedMemPublisher, error) {
	if segmentSize == 0 {
		segmentSize = shm.DefaultSegmentSize
	}
	seg, err := shm.OpenOrCreateSegment(segmentPath(root, prefix, endpoint), segmentSize)
	if err != nil {
		return nil, err
	}
	return &SharedMemPublisher{seg: seg, ch: shm.InitPublisher(seg)}, nil
}

func (p *SharedMemPublisher) Send(payload []byte) error { return p.ch.Send(payload) }
func (p *SharedMemPublisher) AllReadersUpdated() bool   { return p.ch.AllReadersUpdated() }
func (p *SharedMemPublisher) RawHandle() any            { return p.seg }
func (p *SharedMemPublisher) Close() error              { return p.seg.Close() }

// SharedMemSubscriber is the Subscriber variant backed by internal/shm.
type SharedMemSubscriber struct {
	seg *shm.Segment
	ch  *shm.Channel
}

// NewSharedMemSubscriber attaches a subscriber to the segment for
// endpoint, creating it if no publisher has yet. segmentSize of 0
// selects shm.DefaultSegmentSize.
func NewSharedMemSubscriber(root, prefix, endpoint string, segmentSize uint64, conflate bool) (*SharedMemSubscriber, error) {
	if segmentSize == 0 {
		segmentSize = shm.DefaultSegmentSize
	}
	seg, err := shm.OpenOrCreateSegment(segmentPath(root, prefix, endpoint), segmentSize)
	if err != nil {
		return nil, err
	}
	ch, err := shm.InitSubscriber(seg, conflate)
	if err != nil {
		seg.Close()
		return nil, err
	}
	return &SharedMemSubscriber{seg: seg, ch: ch}, nil
}

func (s *SharedMemSubscriber) Recv(timeoutMs int, conflate bool) ([]byte, error) {
	return s.ch.Recv(timeoutMs, conflate)
}
func (s *SharedMemSubscriber) MsgReady() bool { return s.ch.MsgReady() }
func (s *SharedMemSubscriber) RawHandle() any { return s.seg }
func (s *SharedMemSubscriber) Close() error {
	s.ch.Close()
	return s.seg.Close()
}
