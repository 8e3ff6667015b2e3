package event

// Receiver is the minimal subscriber contract FakeGate wraps: anything
// with a Channel-shaped Recv method.
type Receiver interface {
	Recv(timeoutMs int, conflate bool) ([]byte, error)
}

// FakeGate wraps a Receiver so that, whenever its backing Pair is
// enabled, every Recv call first announces itself via RecvCalled and
// then blocks on RecvReady before touching the real subscriber. A test
// driver process toggles the pair and replies on RecvReady to dictate
// exactly when a subscriber's Recv is allowed to return, which is what
// makes replay/test scenarios deterministic instead of racing the
// publisher's real timing.
type FakeGate struct {
	inner Receiver
	pair  *Pair
}

// NewFakeGate wraps inner with the rendezvous described above, gated
// by pair.
func NewFakeGate(inner Receiver, pair *Pair) *FakeGate {
	return &FakeGate{inner: inner, pair: pair}
}

// Recv implements Receiver, inserting the gate rendezvous when enabled.
func (g *FakeGate) Recv(timeoutMs int, conflate bool) ([]byte, error) {
	if g.pair.Enabled() {
		g.pair.RecvCalled().Set()
		if err := g.pair.RecvReady().Wait(-1); err != nil {
			return nil, err
		}
		g.pair.RecvReady().Clear()
	}
	return g.inner.Recv(timeoutMs, conflate)
}

// Pair exposes the gate's underlying EventPair, e.g. so a driver can
// toggle SetEnabled or wait on RecvCalled directly.
func (g *FakeGate) Pair() *Pair { return g.pair }
