package backend

import "github.com/NorthFat/msgq/internal/event"

// DefaultFakeRoot is the root fake-mode EventPair state files live
// under, independent of the shared-memory transport's own root.
const DefaultFakeRoot = "/dev/shm"

// FakeSubscriber wraps a SharedMemSubscriber with the FakeGate
// rendezvous: when its EventPair is enabled, Recv announces itself via
// RecvCalled and waits for a driver to post RecvReady before touching
// the real ring.
type FakeSubscriber struct {
	inner *SharedMemSubscriber
	gate  *event.FakeGate
	pair  *event.Pair
}

// NewFakeSubscriber attaches a subscriber the same way
// NewSharedMemSubscriber does, and wraps it with a FakeGate backed by
// an EventPair at fakeRoot/[fakePrefix/]cereal_events/[identifier/]endpoint.
func NewFakeSubscriber(root, prefix, endpoint string, segmentSize uint64, conflate bool, fakeRoot, fakePrefix, identifier string) (*FakeSubscriber, error) {
	inner, err := NewSharedMemSubscriber(root, prefix, endpoint, segmentSize, conflate)
	if err != nil {
		return nil, err
	}
	pair, err := event.Open(fakeRoot, fakePrefix, identifier, endpoint)
	if err != nil {
		inner.Close()
		return nil, err
	}
	return &FakeSubscriber{inner: inner, gate: event.NewFakeGate(inner, pair), pair: pair}, nil
}

func (s *FakeSubscriber) Recv(timeoutMs int, conflate bool) ([]byte, error) {
	return s.gate.Recv(timeoutMs, conflate)
}
func (s *FakeSubscriber) MsgReady() bool { return s.inner.MsgReady() }
func (s *FakeSubscriber) RawHandle() any { return s.inner.RawHandle() }
func (s *FakeSubscriber) Close() error {
	err := s.pair.Close()
	if cerr := s.inner.Close(); cerr != nil {
		err = cerr
	}
	return err
}

// Pair exposes the subscriber's underlying EventPair, e.g. for a test
// driver to set enabled and reply on RecvReady directly.
func (s *FakeSubscriber) Pair() *event.Pair { return s.pair }
