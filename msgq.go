// Package msgq is a single-host inter-process messaging substrate: a
// lock-free shared-memory ring transport for a single publisher and up
// to fifteen concurrent subscribers, plus a file-backed event-pair
// used to make subscriber timing deterministic under test.
package msgq

import "github.com/NorthFat/msgq/backend"

// Context resolves backend configuration once and hands out
// Publishers, Subscribers, and Pollers of whichever concrete variant
// that configuration selects, mirroring the upstream library's
// Context::create()/SubSocket::create() factory dispatch: every caller
// goes through one place that decides shared-memory vs. network,
// live vs. fake, rather than branching on environment variables itself.
type Context struct {
	cfg backend.Config
}

// NewContext resolves the process's backend configuration from its
// environment (OPENPILOT_PREFIX, ZMQ, CEREAL_FAKE, CEREAL_FAKE_PREFIX)
// and returns a Context bound to it.
func NewContext() *Context {
	return &Context{cfg: backend.ResolveConfig()}
}

// Kind reports which of the four backend variants this Context
// resolved to.
func (c *Context) Kind() backend.Kind { return c.cfg.Kind() }

// NewPublisher returns the Publisher variant this Context's
// configuration selects for endpoint. For the network variant,
// endpoint is the listen address; otherwise it is the channel name.
func (c *Context) NewPublisher(endpoint string) (backend.Publisher, error) {
	switch c.cfg.Kind() {
	case backend.KindNetwork, backend.KindFakeNetwork:
		return backend.NewNetworkPublisher(endpoint)
	default:
		return backend.NewSharedMemPublisher(backend.DefaultRoot, c.cfg.Prefix, endpoint, 0)
	}
}

// NewSubscriber returns the Subscriber variant this Context's
// configuration selects for endpoint.
func (c *Context) NewSubscriber(endpoint string, conflate bool) (backend.Subscriber, error) {
	switch c.cfg.Kind() {
	case backend.KindNetwork:
		return backend.NewNetworkSubscriber(endpoint)
	case backend.KindFakeNetwork:
		// The fake-event gate is wired for the shared-memory variant
		// only; a fake network subscriber still dials live, since the
		// upstream library's own fake-ZMQ backend likewise has no
		// event-pair equivalent for a socket transport.
		return backend.NewNetworkSubscriber(endpoint)
	case backend.KindFakeSharedMem:
		return backend.NewFakeSubscriber(backend.DefaultRoot, c.cfg.Prefix, endpoint, 0, conflate,
			backend.DefaultFakeRoot, c.cfg.FakePrefix, "")
	default:
		return backend.NewSharedMemSubscriber(backend.DefaultRoot, c.cfg.Prefix, endpoint, 0, conflate)
	}
}

// NewPoller returns a Poller appropriate for this Context's
// configuration: a FakePoller (returns every registered subscriber
// immediately) under CEREAL_FAKE, a LivePoller otherwise.
func (c *Context) NewPoller() backend.Poller {
	if c.cfg.UseFake {
		return backend.NewFakePoller()
	}
	return backend.NewLivePoller()
}
