// Package queue defines the FrontendQueue collaborator contract the backend
// reads from, plus bounded and unbounded reference implementations of it.
// The concrete encoding of argument payloads into the byte stream remains an
// external concern; this package only moves bytes.
package queue

import (
	"runtime"
	"sync"
)

// Queue is the contract the backend's drain loop reads through: a
// byte-oriented single-producer/single-consumer channel. PrepareRead exposes
// the currently readable region without copying; FinishRead advances a local
// read cursor over part or all of it; CommitRead publishes the cumulative
// consumption back to the producer side once per drain cycle, matching the
// "batched once per producer per cycle" cache-coherence note in the design
// this contract is modeled on.
type Queue interface {
	// PrepareRead returns the currently readable byte region, or ok=false if
	// the queue is empty. The returned slice is only valid until the next
	// FinishRead/CommitRead call.
	PrepareRead() (data []byte, ok bool)
	// FinishRead advances the local read cursor by n bytes without yet
	// publishing the consumption to the producer.
	FinishRead(n int)
	// CommitRead publishes all bytes consumed since the last CommitRead.
	CommitRead()
	// Capacity returns the queue's byte capacity (bounded queues: fixed;
	// unbounded queues: current backing size, which can grow).
	Capacity() int
	// Empty reports whether the queue currently holds no unread bytes.
	Empty() bool
	// Push appends a fully-formed record to the queue. Bounded queues may
	// drop or block per their configured policy; unbounded queues always
	// succeed, growing if necessary.
	Push(record []byte) error
}

// ReallocationEvent describes one grow operation an UnboundedQueue performed,
// reported by transit.DrainProducer through the error notifier as
// informational, never as an error.
type ReallocationEvent struct {
	OldCapacity int
	NewCapacity int
}

// AllocationReporter is implemented by queues that can report reallocation
// events, i.e. UnboundedQueue.
type AllocationReporter interface {
	// DrainAllocationEvents returns and clears any pending reallocation
	// events recorded since the last call.
	DrainAllocationEvents() []ReallocationEvent
}

// DropPolicy controls what a BoundedQueue does when Push can't fit.
type DropPolicy int

const (
	// DropNewest discards the incoming record and increments the drop
	// counter.
	DropNewest DropPolicy = iota
	// Block waits (spins) until space is available, incrementing the block
	// counter each time it has to wait.
	Block
)

// BoundedQueue is a fixed-capacity reference SPSC byte queue. Pushes beyond
// capacity are either dropped (DropNewest) or spin-wait for space (Block),
// matching the bounded-dropping / bounded-blocking producer variants §3
// distinguishes by their failure counter semantics.
type BoundedQueue struct {
	mu       sync.Mutex
	buf      []byte
	capacity int
	readPos  int
	writePos int
	size     int

	pendingCommit int

	policy  DropPolicy
	drops   uint64
	blocks  uint64
}

// NewBoundedQueue creates a bounded queue with the given byte capacity and
// drop policy.
func NewBoundedQueue(capacity int, policy DropPolicy) *BoundedQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &BoundedQueue{buf: make([]byte, capacity), capacity: capacity, policy: policy}
}

func (q *BoundedQueue) Push(record []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(record) > q.capacity-q.size {
		if q.policy == DropNewest {
			q.drops++
			return nil
		}
		q.blocks++
		q.mu.Unlock()
		runtime.Gosched()
		q.mu.Lock()
	}
	for _, b := range record {
		q.buf[q.writePos] = b
		q.writePos = (q.writePos + 1) % q.capacity
	}
	q.size += len(record)
	return nil
}

func (q *BoundedQueue) PrepareRead() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == 0 {
		return nil, false
	}
	// Contiguous readable run from readPos, wrapping stops at the buffer end
	// (callers loop PrepareRead/FinishRead until Empty if they need the
	// wrapped remainder).
	end := q.readPos + q.size
	if end > q.capacity {
		end = q.capacity
	}
	return q.buf[q.readPos:end], true
}

func (q *BoundedQueue) FinishRead(n int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.readPos = (q.readPos + n) % q.capacity
	q.size -= n
	q.pendingCommit += n
}

func (q *BoundedQueue) CommitRead() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pendingCommit = 0
}

func (q *BoundedQueue) Capacity() int { q.mu.Lock(); defer q.mu.Unlock(); return q.capacity }

func (q *BoundedQueue) Empty() bool { q.mu.Lock(); defer q.mu.Unlock(); return q.size == 0 }

// Drops returns the cumulative number of records dropped for lack of space.
func (q *BoundedQueue) Drops() uint64 { q.mu.Lock(); defer q.mu.Unlock(); return q.drops }

// Blocks returns the cumulative number of times Push had to wait for space.
func (q *BoundedQueue) Blocks() uint64 { q.mu.Lock(); defer q.mu.Unlock(); return q.blocks }

// Policy reports the queue's configured drop policy, so a caller reporting
// failures knows whether a nonzero Blocks() count is the interesting
// counter or Drops() is.
func (q *BoundedQueue) Policy() DropPolicy { q.mu.Lock(); defer q.mu.Unlock(); return q.policy }

// FailureReporter is implemented by queues that track cumulative drop/block
// counts, i.e. BoundedQueue. The backend's FailureReporter component polls
// this once per idle cycle and reports the delta since its last poll.
type FailureReporter interface {
	Drops() uint64
	Blocks() uint64
	Policy() DropPolicy
}

// UnboundedQueue is a reference SPSC byte queue that grows to accommodate
// any record, reporting each grow as a ReallocationEvent rather than ever
// failing a Push.
type UnboundedQueue struct {
	mu      sync.Mutex
	buf     []byte
	readPos int
	size    int

	pendingCommit int
	events        []ReallocationEvent
}

// NewUnboundedQueue creates an unbounded queue with the given initial
// capacity.
func NewUnboundedQueue(initialCapacity int) *UnboundedQueue {
	if initialCapacity <= 0 {
		initialCapacity = 64 * 1024
	}
	return &UnboundedQueue{buf: make([]byte, 0, initialCapacity)}
}

func (q *UnboundedQueue) Push(record []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if cap(q.buf)-len(q.buf) < len(record) {
		old := cap(q.buf)
		newCap := old * 2
		for newCap-len(q.buf) < len(record) {
			newCap *= 2
		}
		grown := make([]byte, len(q.buf), newCap)
		copy(grown, q.buf)
		q.buf = grown
		q.events = append(q.events, ReallocationEvent{OldCapacity: old, NewCapacity: newCap})
	}
	q.buf = append(q.buf, record...)
	q.size += len(record)
	return nil
}

func (q *UnboundedQueue) PrepareRead() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == 0 {
		return nil, false
	}
	return q.buf[q.readPos : q.readPos+q.size], true
}

func (q *UnboundedQueue) FinishRead(n int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.readPos += n
	q.size -= n
	q.pendingCommit += n
}

func (q *UnboundedQueue) CommitRead() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == 0 {
		// Compact: the backing array can be reused from the start once
		// fully drained, bounding long-run growth from a bursty producer.
		q.buf = q.buf[:0]
		q.readPos = 0
	}
	q.pendingCommit = 0
}

func (q *UnboundedQueue) Capacity() int { q.mu.Lock(); defer q.mu.Unlock(); return cap(q.buf) }

func (q *UnboundedQueue) Empty() bool { q.mu.Lock(); defer q.mu.Unlock(); return q.size == 0 }

func (q *UnboundedQueue) DrainAllocationEvents() []ReallocationEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	events := q.events
	q.events = nil
	return events
}
