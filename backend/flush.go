package backend

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/quillback/quillback/registry"
)

// FlagRegistry resolves the uint64 handle a Flush record carries back to
// the shared flag a producer is busy-waiting on. The wire format carries a
// handle rather than a raw pointer (see wire.Header); this registry is the
// caller-owned table that makes the handle resolvable.
type FlagRegistry struct {
	mu   sync.Mutex
	next uint64
	byID map[uint64]*atomic.Bool
}

// NewFlagRegistry creates an empty flag registry.
func NewFlagRegistry() *FlagRegistry {
	return &FlagRegistry{byID: make(map[uint64]*atomic.Bool)}
}

// Register allocates a new handle for flag and returns it. The caller
// (typically a test harness standing in for a producer) encodes the
// returned handle into the Flush record's tail.
func (r *FlagRegistry) Register(flag *atomic.Bool) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	id := r.next
	r.byID[id] = flag
	return id
}

// Resolve looks up the flag for a handle without removing it.
func (r *FlagRegistry) Resolve(id uint64) (*atomic.Bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.byID[id]
	return f, ok
}

// Release removes id from the registry. The backend calls this immediately
// after setting the flag to true, mirroring the source design's "set the
// flag, then null the local pointer" ordering: the transit-event slot that
// carried this handle is reused on the very next drain cycle and must not
// resolve to a stale flag afterward.
func (r *FlagRegistry) Release(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
}

// flushAllSinks calls Flush on every sink currently registered, fault-
// isolating each call so one broken sink doesn't stop the others.
func (b *Backend) flushAllSinks() {
	for name, sink := range b.sinkReg.All() {
		b.safeFlush(name, sink)
	}
}

func (b *Backend) safeFlush(name string, sink registry.Sink) {
	defer func() {
		if r := recover(); r != nil {
			b.notify("sink flush", name, ErrorLevelMedium, nil, r)
		}
	}()
	if err := sink.Flush(); err != nil {
		b.notify("sink flush", name, ErrorLevelMedium, fmt.Errorf("%w", err), nil)
	}
}
