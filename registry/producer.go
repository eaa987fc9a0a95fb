// Package registry implements the backend's producer, logger, sink, and
// formatter bookkeeping: who's alive, what's shared, and when it's safe to
// tear something down.
package registry

import (
	"sync"
	"sync/atomic"

	"github.com/quillback/quillback/queue"
	"github.com/quillback/quillback/transit"
)

// ProducerContext is one producer thread's registration: its queue, its
// identity, and the backend-owned transit ring allocated along with it.
// Invariant: once Valid is cleared, no further bytes arrive on Queue; the
// context may only be unregistered once both Queue and Ring are empty.
type ProducerContext struct {
	ThreadID   uint64
	ThreadName string
	Queue      queue.Queue
	Ring       *transit.Ring

	valid atomic.Bool
}

// NewProducerContext creates a valid producer context with a freshly
// allocated transit ring; ProducerRegistry.Register adds it to a registry.
func NewProducerContext(threadID uint64, threadName string, q queue.Queue, ringInitialCapacity int) *ProducerContext {
	p := &ProducerContext{ThreadID: threadID, ThreadName: threadName, Queue: q, Ring: transit.NewRing(ringInitialCapacity)}
	p.valid.Store(true)
	return p
}

// Valid reports whether the producer thread is still alive.
func (p *ProducerContext) Valid() bool { return p.valid.Load() }

// Invalidate marks the producer as dead. Its queue and ring may still hold
// events; the registry only removes it once both are empty.
func (p *ProducerContext) Invalidate() { p.valid.Store(false) }

// Drained reports whether both the queue and the ring are empty, the sole
// condition under which an invalidated producer may be unregistered.
func (p *ProducerContext) Drained() bool {
	return p.Queue.Empty() && p.Ring.Empty()
}

// ProducerRegistry tracks all live producers and publishes a monotonic
// "new producer" signal the backend checks and clears once per loop
// iteration. Registration (by producer/controller threads) and removal (by
// the backend, the sole remover) are synchronized here so neither side needs
// its own locking.
type ProducerRegistry struct {
	mu        sync.Mutex
	producers []*ProducerContext
	byID      map[uint64]*ProducerContext

	newProducer atomic.Bool
}

// NewProducerRegistry creates an empty registry.
func NewProducerRegistry() *ProducerRegistry {
	return &ProducerRegistry{byID: make(map[uint64]*ProducerContext)}
}

// Register adds p and raises the new-producer signal.
func (r *ProducerRegistry) Register(p *ProducerContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.producers = append(r.producers, p)
	r.byID[p.ThreadID] = p
	r.newProducer.Store(true)
}

// CheckAndClearNewProducer reports whether a producer was registered since
// the last call, clearing the flag atomically either way.
func (r *ProducerRegistry) CheckAndClearNewProducer() bool {
	return r.newProducer.Swap(false)
}

// Snapshot returns the current set of registered producers. The backend
// calls this once per drain cycle; the returned slice is safe to range over
// without holding the registry's lock.
func (r *ProducerRegistry) Snapshot() []*ProducerContext {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*ProducerContext, len(r.producers))
	copy(out, r.producers)
	return out
}

// CollectInvalidated removes and returns every producer that is both
// invalidated and fully drained, per the lifecycle invariant in §4.10.
func (r *ProducerRegistry) CollectInvalidated() []*ProducerContext {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []*ProducerContext
	kept := r.producers[:0]
	for _, p := range r.producers {
		if !p.Valid() && p.Drained() {
			removed = append(removed, p)
			delete(r.byID, p.ThreadID)
			continue
		}
		kept = append(kept, p)
	}
	r.producers = kept
	return removed
}
