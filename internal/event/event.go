package event

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/NorthFat/msgq/internal/shm"
)

// EventPurpose names the two binary events every Pair carries.
type EventPurpose int

const (
	RecvCalled EventPurpose = iota
	RecvReady
)

// Pair is a cross-process event-synchronization primitive backed by a
// file mapped under <root>/[prefix/]cereal_events/[identifier/]<endpoint>.
// It exposes two independent binary events, RecvCalled and RecvReady,
// used by FakeGate to rendezvous a driver process with a subscriber.
type Pair struct {
	path  string
	file  *os.File
	mem   []byte
	state *State
}

// Open maps (creating if necessary) the event-pair state file for
// endpoint. identifier namespaces multiple instances of the same
// endpoint name (e.g. per test run); it may be empty.
func Open(root, prefix, identifier, endpoint string) (*Pair, error) {
	path := Path(root, prefix, identifier, endpoint)
	f, mem, st, err := mapState(path)
	if err != nil {
		return nil, err
	}
	return &Pair{path: path, file: f, mem: mem, state: st}, nil
}

// Close unmaps the event-pair state and closes its file. It does not
// unlink the path.
func (p *Pair) Close() error {
	var firstErr error
	if p.mem != nil {
		if err := munmapState(p.mem); err != nil {
			firstErr = err
		}
		p.mem = nil
	}
	if p.file != nil {
		if err := p.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		p.file = nil
	}
	return firstErr
}

// Path returns the backing file path.
func (p *Pair) Path() string { return p.path }

// Enabled reports whether fake-event gating is on for this pair.
func (p *Pair) Enabled() bool { return p.state.Enabled() }

// SetEnabled flips fake-event gating for this pair.
func (p *Pair) SetEnabled(v bool) { p.state.SetEnabled(v) }

// RecvCalled returns the "receive has been called" event.
func (p *Pair) RecvCalled() Event { return Event{state: p.state, idx: int(RecvCalled)} }

// RecvReady returns the "receive may proceed" event.
func (p *Pair) RecvReady() Event { return Event{state: p.state, idx: int(RecvReady)} }

// Event is one binary event within a Pair's shared state.
type Event struct {
	state *State
	idx   int
}

// Set posts the event, waking anyone parked in Wait or WaitForAny.
func (e Event) Set() {
	e.state.add(e.idx)
	signalWake()
}

// Clear drains the event's pending-notification count back to zero and
// returns how many notifications had accumulated.
func (e Event) Clear() uint32 {
	return e.state.drain(e.idx)
}

// Peek reports whether the event currently has a pending notification,
// without consuming it.
func (e Event) Peek() bool {
	return e.state.peek(e.idx)
}

// Wait blocks until the event has a pending notification or timeout
// elapses. timeout < 0 waits forever; timeout == 0 checks once and
// returns immediately. Like the upstream library's ppoll-based wait,
// an arriving SIGALRM, SIGINT, SIGTERM, or SIGQUIT interrupts the wait
// early with ErrInterrupted rather than being silently swallowed.
func (e Event) Wait(timeout time.Duration) error {
	idx, err := WaitForAny([]Event{e}, timeout)
	if err != nil {
		return err
	}
	_ = idx
	return nil
}

const pollInterval = 2 * time.Millisecond

var (
	wakeOnce sync.Once
	wakeCh   chan struct{}
	sigCh    chan os.Signal
)

func initWake() {
	wakeCh = make(chan struct{}, 1)
	sigCh = make(chan os.Signal, 4)
	signal.Notify(sigCh, syscall.SIGALRM, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
}

func signalWake() {
	wakeOnce.Do(initWake)
	select {
	case wakeCh <- struct{}{}:
	default:
	}
}

// WaitForAny blocks until any of events has a pending notification or
// timeout elapses, returning the lowest-indexed ready event, matching
// the upstream library's pollfd scan order. timeout < 0 waits forever;
// timeout == 0 checks once and returns immediately.
func WaitForAny(events []Event, timeout time.Duration) (int, error) {
	wakeOnce.Do(initWake)
	if len(events) == 0 {
		return -1, fmt.Errorf("%w: no events to wait on", shm.ErrInvalidArgument)
	}

	for i, e := range events {
		if e.Peek() {
			return i, nil
		}
	}
	if timeout == 0 {
		return -1, shm.ErrTimeout
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		for i, e := range events {
			if e.Peek() {
				return i, nil
			}
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return -1, shm.ErrTimeout
		}
		select {
		case <-wakeCh:
		case sig := <-sigCh:
			return -1, fmt.Errorf("%w: interrupted by %v", shm.ErrInterrupted, sig)
		case <-ticker.C:
		}
	}
}
