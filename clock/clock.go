// Package clock provides wall-clock and TSC-based timestamp conversion with
// periodic resync, the single source of "now" for the backend worker.
package clock

import (
	"sync/atomic"
	"time"
)

// Source selects how a logger's record timestamps are interpreted.
type Source int

const (
	// System means the record timestamp is already nanoseconds since the
	// Unix epoch, captured with time.Now() on the producer side.
	System Source = iota
	// Tsc means the record timestamp is a raw CPU cycle counter value that
	// must be converted through a Clock's linear map.
	Tsc
	// User means the record timestamp was supplied by the caller and is
	// opaque to the backend; it is never subject to the fair-read cutoff.
	User
)

// Reading is one (tsc, wall-clock-ns) calibration sample.
type Reading struct {
	TSC uint64
	NS  int64
}

// ReadTSC returns the current value of the platform cycle counter. It is a
// package variable so tests can substitute a deterministic fake.
var ReadTSC = defaultReadTSC

// Clock maintains a linear map ns = a*tsc + b, recalibrated on Resync.
// The zero value is not usable; construct with New.
//
// Thread-safety: the backend worker is the sole mutator of a, b, and
// lastResync. Readers outside the backend load the clock handle itself
// through an atomic pointer (see Handle) and call Convert/NowNS, both of
// which only read the published a/b pair.
type Clock struct {
	a float64
	b float64

	resyncInterval time.Duration
	lastResync     time.Time

	now func() time.Time
}

// New constructs a Clock calibrated against a single (tsc, wall) sample pair
// taken immediately, then recalibrated on Resync.
func New(resyncInterval time.Duration) *Clock {
	c := &Clock{resyncInterval: resyncInterval, now: time.Now}
	c.calibrate()
	return c
}

// newForTest allows tests to inject a deterministic wall-clock source.
func newForTest(resyncInterval time.Duration, now func() time.Time) *Clock {
	c := &Clock{resyncInterval: resyncInterval, now: now}
	c.calibrate()
	return c
}

func (c *Clock) calibrate() {
	tsc1 := ReadTSC()
	wall := c.now().UnixNano()
	tsc2 := ReadTSC()
	mid := tsc1/2 + tsc2/2

	// Degenerate calibration (e.g. a fake ReadTSC returning a constant):
	// fall back to an identity-ish map anchored at wall so Convert still
	// returns monotone, sane values instead of dividing by zero.
	if tsc2 == tsc1 {
		c.a = 1
		c.b = float64(wall) - float64(mid)
		c.lastResync = c.now()
		return
	}

	c.a = 1.0
	c.b = float64(wall) - float64(mid)*c.a
	c.lastResync = c.now()
}

// NowNS returns nanoseconds since the Unix epoch, wall-clock time.
func (c *Clock) NowNS() uint64 {
	return uint64(c.now().UnixNano())
}

// Convert maps a raw TSC reading to nanoseconds since the Unix epoch using
// the current linear calibration.
func (c *Clock) Convert(tsc uint64) uint64 {
	ns := c.a*float64(tsc) + c.b
	if ns < 0 {
		return 0
	}
	return uint64(ns)
}

// ResyncDue reports whether now-lastResync exceeds the configured resync
// interval, i.e. whether Resync should be called this cycle.
func (c *Clock) ResyncDue() bool {
	if c.resyncInterval <= 0 {
		return false
	}
	return c.now().Sub(c.lastResync) > c.resyncInterval
}

// Resync recalibrates the linear map against a fresh (tsc, wall) sample,
// compensating for the expected latency between the sample and its
// observation by the caller (e.g. time spent crossing back from a syscall).
func (c *Clock) Resync(expectedLatency time.Duration) {
	tsc := ReadTSC()
	wall := c.now().Add(expectedLatency).UnixNano()
	// Keep the existing slope; only the intercept moves, matching a
	// single-sample resync rather than a full two-sample recalibration.
	c.b = float64(wall) - c.a*float64(tsc)
	c.lastResync = c.now()
}

// Handle is an atomically published *Clock, modeling the TSC clock's
// release/acquire lazy-init lifecycle: backend-internal code constructs and
// publishes it once on first TSC-tagged record; any reader (including
// outside the backend) must tolerate a nil load and treat it as "conversion
// unavailable, return 0."
type Handle struct {
	p atomic.Pointer[Clock]
}

// Load returns the published clock, or nil if none has been published yet.
func (h *Handle) Load() *Clock { return h.p.Load() }

// StorePublish publishes c with release semantics. Subsequent Load calls by
// any goroutine observe either nil or a fully constructed Clock, never a
// partially initialized one.
func (h *Handle) StorePublish(c *Clock) { h.p.Store(c) }

// ConvertOrZero is the public helper non-backend callers use: it loads the
// handle and converts tsc, returning 0 if the clock has not been published.
func (h *Handle) ConvertOrZero(tsc uint64) uint64 {
	c := h.Load()
	if c == nil {
		return 0
	}
	return c.Convert(tsc)
}
