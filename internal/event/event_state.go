// Package event implements the cross-process EventPair synchronization
// primitive and the FakeGate rendezvous built on top of it.
package event

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"unsafe"

	"github.com/NorthFat/msgq/internal/shm"
)

// eventsDirName is the fixed subdirectory name every event state file
// lives under, matching the upstream library's layout.
const eventsDirName = "cereal_events"

// State is the small mapped struct two binary events and their
// "fake mode enabled" flag live in. It is shared by mapping the same
// backing file from multiple processes, so every field is accessed
// atomically.
type State struct {
	// fds mirrors the upstream layout (two eventfd descriptors) for
	// structural fidelity with diagnostics that inspect a raw dump of
	// this struct. An eventfd number is only meaningful within the
	// process that created it, so cross-process wake here runs through
	// counts below instead of these descriptors.
	fds     [2]int32
	enabled uint32
	pad     uint32
	// counts[i] is EventPurpose i's pending-notification counter,
	// analogous to an eventfd's accumulated write count: Set adds one,
	// Clear drains it back to zero and returns what it drained.
	counts [2]uint32
}

const stateSize = int(unsafe.Sizeof(State{}))

func stateAt(base unsafe.Pointer) *State { return (*State)(base) }

// Enabled reports whether fake-event gating is turned on for this
// state, as seen by any process that has this file mapped.
func (s *State) Enabled() bool { return atomic.LoadUint32(&s.enabled) != 0 }

// SetEnabled flips fake-event gating for every process sharing this
// mapped state.
func (s *State) SetEnabled(v bool) {
	if v {
		atomic.StoreUint32(&s.enabled, 1)
	} else {
		atomic.StoreUint32(&s.enabled, 0)
	}
}

func (s *State) add(i int) uint32       { return atomic.AddUint32(&s.counts[i], 1) }
func (s *State) peek(i int) bool        { return atomic.LoadUint32(&s.counts[i]) > 0 }
func (s *State) drain(i int) uint32     { return atomic.SwapUint32(&s.counts[i], 0) }

// Path builds the filesystem path for an event-pair's backing state
// file: <root>/[prefix/]cereal_events/[identifier/]<endpoint>.
func Path(root, prefix, identifier, endpoint string) string {
	dir := filepath.Join(root)
	if prefix != "" {
		dir = filepath.Join(dir, prefix)
	}
	dir = filepath.Join(dir, eventsDirName)
	if identifier != "" {
		dir = filepath.Join(dir, identifier)
	}
	return filepath.Join(dir, endpoint)
}

// mapState mmaps (creating if needed) the state file at path and
// returns the mapped State along with the open file (kept open for the
// lifetime of the mapping).
func mapState(path string) (*os.File, []byte, *State, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: mkdir %s: %v", shm.ErrIO, filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: open event state %s: %v", shm.ErrIO, path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, nil, fmt.Errorf("%w: stat event state %s: %v", shm.ErrIO, path, err)
	}
	if info.Size() < int64(stateSize) {
		if err := f.Truncate(int64(stateSize)); err != nil {
			f.Close()
			return nil, nil, nil, fmt.Errorf("%w: truncate event state %s: %v", shm.ErrIO, path, err)
		}
	}
	mem, err := mmapStateFile(f, stateSize)
	if err != nil {
		f.Close()
		return nil, nil, nil, fmt.Errorf("%w: mmap event state %s: %v", shm.ErrIO, path, err)
	}
	return f, mem, stateAt(unsafe.Pointer(&mem[0])), nil
}
