// Package backtrace implements per-logger bounded rings of deferred log
// events, flushed to sinks once a subsequent event crosses that logger's
// configured flush-severity threshold.
package backtrace

import (
	"sync"

	"github.com/quillback/quillback/transit"
	"github.com/quillback/quillback/wire"
)

// Event is the minimal snapshot of a TransitEvent the backtrace store keeps.
// It is decoupled from the transit package's TransitEvent type on purpose:
// the backend copies the fields it needs into an Event when storing, which
// lets the transit.Ring release and reuse the original slot immediately.
type Event struct {
	Timestamp    uint64
	ThreadID     uint64
	ThreadName   string
	LoggerName   string
	MetadataID   uint64
	Level        wire.LogLevel
	FormattedMsg string
	NamedArgs    []transit.NamedArg
}

// ring is a bounded, insertion-ordered FIFO of captured events. When full,
// the oldest entry is evicted to make room for the newest, matching a
// fixed-capacity deferred-event buffer rather than ever blocking a logger.
type ring struct {
	events   []Event
	capacity int
	start    int
	count    int
}

func newRing(capacity int) *ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &ring{events: make([]Event, capacity), capacity: capacity}
}

func (r *ring) push(e Event) {
	idx := (r.start + r.count) % r.capacity
	r.events[idx] = e
	if r.count < r.capacity {
		r.count++
	} else {
		r.start = (r.start + 1) % r.capacity
	}
}

func (r *ring) drain() []Event {
	out := make([]Event, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.events[(r.start+i)%r.capacity])
	}
	r.start = 0
	r.count = 0
	return out
}

// Store holds one ring per logger name. It is mutated only by the backend
// goroutine, same as every other backend-owned cache, so a plain map under a
// mutex is sufficient.
type Store struct {
	mu     sync.Mutex
	rings  map[string]*ring
}

// NewStore creates an empty backtrace store.
func NewStore() *Store {
	return &Store{rings: make(map[string]*ring)}
}

// Init creates or replaces the ring for loggerName with the given capacity,
// in response to an InitBacktrace record — the producer encodes the
// requested capacity as that record's payload.
func (s *Store) Init(loggerName string, capacity int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rings[loggerName] = newRing(capacity)
}

// Store appends ev to loggerName's ring, evicting the oldest entry if full.
// A no-op if the logger has no ring (InitBacktrace was never called for it).
func (s *Store) Store(loggerName string, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rings[loggerName]
	if !ok {
		return
	}
	r.push(ev)
}

// Process drains all stored events for loggerName, in insertion order, into
// cb, and empties the ring. A no-op if the logger has no ring.
func (s *Store) Process(loggerName string, cb func(Event)) {
	s.mu.Lock()
	r, ok := s.rings[loggerName]
	if !ok {
		s.mu.Unlock()
		return
	}
	events := r.drain()
	s.mu.Unlock()

	for _, e := range events {
		cb(e)
	}
}

// Erase removes loggerName's ring entirely, used during invalidated-logger
// cleanup.
func (s *Store) Erase(loggerName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rings, loggerName)
}

// Has reports whether loggerName currently has a backtrace ring installed.
func (s *Store) Has(loggerName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rings[loggerName]
	return ok
}
