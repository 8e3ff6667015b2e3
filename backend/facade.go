// Package backend provides the thin façade the rest of msgq's users
// talk to: Publisher, Subscriber, and Poller interfaces backed by one
// of several concrete transport variants, selected once at construction
// time from process configuration rather than branched on per call.
package backend

// Publisher is the producer side of a channel.
type Publisher interface {
	// Send publishes one message. It never blocks on subscribers.
	Send(payload []byte) error
	// AllReadersUpdated reports whether every attached subscriber has
	// consumed up to the latest send.
	AllReadersUpdated() bool
	// RawHandle exposes the underlying transport object for
	// diagnostics (e.g. *shm.Segment for the shared-memory variant).
	RawHandle() any
	Close() error
}

// Subscriber is one consumer side of a channel.
type Subscriber interface {
	// Recv returns the next message, waiting up to timeoutMs
	// milliseconds (<0 = forever, 0 = single non-blocking poll).
	// conflate, if true, skips to the newest message when more than
	// one is ready.
	Recv(timeoutMs int, conflate bool) ([]byte, error)
	// MsgReady reports whether a call to Recv would return
	// immediately.
	MsgReady() bool
	RawHandle() any
	Close() error
}

// Poller multiplexes readiness across several subscribers.
type Poller interface {
	Register(sub Subscriber) error
	// Poll waits up to timeoutMs milliseconds (<0 = forever, 0 = single
	// non-blocking poll) for at least one registered subscriber to
	// become ready, and returns all that are.
	Poll(timeoutMs int) []Subscriber
}
