package backend

import (
	"fmt"
	"os"
	"sync"
)

// Kind names the four-way backend state space the original messaging
// library resolves to at startup: shared-memory or network transport,
// each either live or running under the fake-event gate.
type Kind int

const (
	KindSharedMem Kind = iota
	KindNetwork
	KindFakeSharedMem
	KindFakeNetwork
)

func (k Kind) String() string {
	switch k {
	case KindSharedMem:
		return "msgq"
	case KindNetwork:
		return "zmq"
	case KindFakeSharedMem:
		return "fake_msgq"
	case KindFakeNetwork:
		return "fake_zmq"
	default:
		return "unknown"
	}
}

// Config is the process-wide backend selection, resolved once from
// environment variables: OPENPILOT_PREFIX namespaces shared-memory
// segments and event-state files for a given run; ZMQ switches to the
// network transport; CEREAL_FAKE turns on the fake-event gate for every
// subscriber; CEREAL_FAKE_PREFIX namespaces the gate's event-state
// files independently of OPENPILOT_PREFIX.
type Config struct {
	UseNetwork bool
	UseFake    bool
	Prefix     string
	FakePrefix string
}

// Kind reports the discrete backend state this config resolves to.
func (c Config) Kind() Kind {
	switch {
	case c.UseNetwork && c.UseFake:
		return KindFakeNetwork
	case c.UseNetwork:
		return KindNetwork
	case c.UseFake:
		return KindFakeSharedMem
	default:
		return KindSharedMem
	}
}

var (
	configOnce sync.Once
	config     Config
)

// ResolveConfig reads the backend configuration from the process
// environment exactly once per process; subsequent calls return the
// cached result, matching the upstream library's static initialization
// of its backend-selection globals.
func ResolveConfig() Config {
	configOnce.Do(func() {
		config = configFromEnv()
	})
	return config
}

func configFromEnv() Config {
	useNetwork := os.Getenv("ZMQ") != ""
	prefix := os.Getenv("OPENPILOT_PREFIX")
	if useNetwork && prefix != "" {
		fmt.Fprintln(os.Stderr, "WARNING: OPENPILOT_PREFIX not supported with ZMQ backend")
	}
	return Config{
		UseNetwork: useNetwork,
		UseFake:    os.Getenv("CEREAL_FAKE") != "",
		Prefix:     prefix,
		FakePrefix: os.Getenv("CEREAL_FAKE_PREFIX"),
	}
}
