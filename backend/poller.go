package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/NorthFat/msgq/internal/shm"
	"golang.org/x/sync/errgroup"
)

// LivePoller polls its registered subscribers' MsgReady state in a
// short loop rather than blocking any one of them individually, since
// the shared-memory transport's readiness signal (the futex-backed
// write sequence) is per-segment, not per-poller.
type LivePoller struct {
	subs []Subscriber
}

// NewLivePoller returns an empty live-mode poller.
func NewLivePoller() *LivePoller { return &LivePoller{} }

func (p *LivePoller) Register(sub Subscriber) error {
	if sub == nil {
		return fmt.Errorf("%w: cannot register a nil subscriber", shm.ErrInvalidArgument)
	}
	p.subs = append(p.subs, sub)
	return nil
}

// Poll returns every registered subscriber that is ready, waiting up
// to timeoutMs milliseconds (<0 = forever, 0 = single non-blocking
// poll) for at least one to become so. Each subscriber is watched by
// its own goroutine under an errgroup, the same "wait on N independent
// operations, stop at the first result" shape as a fan-out price feed:
// as soon as any subscriber reports ready, the group's context is
// canceled so the rest stop polling instead of running out the full
// timeout.
func (p *LivePoller) Poll(timeoutMs int) []Subscriber {
	const pollInterval = 1 * time.Millisecond
	if len(p.subs) == 0 {
		return nil
	}

	if timeoutMs == 0 {
		var ready []Subscriber
		for _, s := range p.subs {
			if s.MsgReady() {
				ready = append(ready, s)
			}
		}
		return ready
	}

	ctx := context.Background()
	var cancel context.CancelFunc
	if timeoutMs > 0 {
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
	} else {
		ctx, cancel = context.WithCancel(ctx) // timeoutMs < 0: wait forever
	}
	defer cancel()

	readyCh := make(chan Subscriber, len(p.subs))
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range p.subs {
		s := s
		g.Go(func() error {
			ticker := time.NewTicker(pollInterval)
			defer ticker.Stop()
			for {
				if s.MsgReady() {
					readyCh <- s
					cancel()
					return nil
				}
				select {
				case <-gctx.Done():
					// Another watcher may have canceled the group first;
					// still report this subscriber if it is ready now.
					if s.MsgReady() {
						readyCh <- s
					}
					return nil
				case <-ticker.C:
				}
			}
		})
	}
	g.Wait()
	close(readyCh)

	var ready []Subscriber
	for s := range readyCh {
		ready = append(ready, s)
	}
	return ready
}

// FakePoller mirrors the upstream library's fake-mode poller: it
// returns every registered subscriber immediately, regardless of
// actual readiness or the requested timeout, so a deterministic test
// driver controls progress entirely through FakeGate instead.
type FakePoller struct {
	subs []Subscriber
}

// NewFakePoller returns an empty fake-mode poller.
func NewFakePoller() *FakePoller { return &FakePoller{} }

func (p *FakePoller) Register(sub Subscriber) error {
	if sub == nil {
		return fmt.Errorf("%w: cannot register a nil subscriber", shm.ErrInvalidArgument)
	}
	p.subs = append(p.subs, sub)
	return nil
}

func (p *FakePoller) Poll(timeoutMs int) []Subscriber {
	out := make([]Subscriber, len(p.subs))
	copy(out, p.subs)
	return out
}
