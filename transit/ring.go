package transit

// Ring is a per-producer, backend-owned queue of reconstructed
// TransitEvents. It is not safe for concurrent use — only the backend
// goroutine ever touches a Ring, matching the design's single-consumer
// ownership of transit state. It grows without bound (an unbounded ring of
// reusable slots) rather than ever allocating per record in steady state:
// slots are recycled through a free list as events are released.
type Ring struct {
	free []*TransitEvent
	buf  []*TransitEvent
	head int
}

// NewRing creates an empty ring, pre-allocating initialCapacity reusable
// slots.
func NewRing(initialCapacity int) *Ring {
	r := &Ring{}
	if initialCapacity > 0 {
		r.free = make([]*TransitEvent, 0, initialCapacity)
		for i := 0; i < initialCapacity; i++ {
			r.free = append(r.free, &TransitEvent{})
		}
	}
	return r
}

// Acquire returns a reset slot ready to be populated, taking one from the
// free list or allocating a new one if the free list is empty.
func (r *Ring) Acquire() *TransitEvent {
	n := len(r.free)
	if n == 0 {
		return &TransitEvent{}
	}
	ev := r.free[n-1]
	r.free = r.free[:n-1]
	ev.Reset()
	return ev
}

// Commit makes a populated event visible to Front/Pop.
func (r *Ring) Commit(ev *TransitEvent) {
	r.buf = append(r.buf, ev)
}

// Front returns the earliest not-yet-popped event without removing it.
// Events within a single Ring are always in FIFO production order, so Front
// is simply the head of buf.
func (r *Ring) Front() (*TransitEvent, bool) {
	if r.head >= len(r.buf) {
		return nil, false
	}
	return r.buf[r.head], true
}

// Pop removes and returns the head event. Callers must call Release once
// they are done with it (after sink dispatch, or after copying it into
// backtrace storage) so its slot can be reused.
func (r *Ring) Pop() *TransitEvent {
	if r.head >= len(r.buf) {
		return nil
	}
	ev := r.buf[r.head]
	r.buf[r.head] = nil
	r.head++
	if r.head == len(r.buf) {
		r.buf = r.buf[:0]
		r.head = 0
	}
	return ev
}

// Release returns ev to the free list for reuse by a future Acquire.
func (r *Ring) Release(ev *TransitEvent) {
	r.free = append(r.free, ev)
}

// Size reports the number of committed, not-yet-popped events.
func (r *Ring) Size() int {
	return len(r.buf) - r.head
}

// Empty reports whether the ring has no pending events.
func (r *Ring) Empty() bool {
	return r.Size() == 0
}
