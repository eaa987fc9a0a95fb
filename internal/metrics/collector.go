// Package metrics tracks backend worker counters: messages processed per
// level, drops/blocks summed over all producers, formatting failures, error
// counts per source name, and aggregate sink write timing, exposed
// read-only as a point-in-time snapshot.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector accumulates backend counters with atomics and sync.Map-backed
// per-key breakdowns, mutated from the single backend goroutine and read
// from any goroutine calling Snapshot.
type Collector struct {
	messagesByLevel sync.Map // map[int8]*atomic.Uint64
	messagesDropped uint64
	messagesBlocked uint64

	formatErrors uint64
	sinkErrors   sync.Map // map[string]*atomic.Uint64

	writeCount     uint64
	totalWriteTime int64 // nanoseconds
	maxWriteTime   int64 // nanoseconds

	reallocations uint64
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// SinkMetrics is a point-in-time snapshot of one sink's write activity.
type SinkMetrics struct {
	Name         string        `json:"name"`
	Writes       uint64        `json:"writes"`
	Errors       uint64        `json:"errors"`
	AvgLatency   time.Duration `json:"average_latency"`
}

// Snapshot is a read-only view of the backend's counters at one moment.
type Snapshot struct {
	MessagesByLevel map[int8]uint64 `json:"messages_by_level"`
	MessagesDropped uint64          `json:"messages_dropped"`
	MessagesBlocked uint64          `json:"messages_blocked"`

	QueueDepth       int     `json:"queue_depth"`
	QueueCapacity    int     `json:"queue_capacity"`
	QueueUtilization float64 `json:"queue_utilization"`

	FormatErrors   uint64            `json:"format_errors"`
	SinkErrors     map[string]uint64 `json:"sink_errors"`
	Reallocations  uint64            `json:"reallocations"`

	AverageWriteTime time.Duration `json:"average_write_time"`
	MaxWriteTime      time.Duration `json:"max_write_time"`

	Sinks []SinkMetrics `json:"sinks"`
}

// Snapshot returns the collector's current state. queueDepth/queueCapacity
// and sinks are supplied by the caller since the collector itself doesn't
// own queue or sink state.
func (c *Collector) Snapshot(queueDepth, queueCapacity int, sinks []SinkMetrics) Snapshot {
	snap := Snapshot{
		MessagesByLevel: make(map[int8]uint64),
		MessagesDropped: atomic.LoadUint64(&c.messagesDropped),
		MessagesBlocked: atomic.LoadUint64(&c.messagesBlocked),
		QueueDepth:      queueDepth,
		QueueCapacity:   queueCapacity,
		FormatErrors:    atomic.LoadUint64(&c.formatErrors),
		SinkErrors:      make(map[string]uint64),
		Reallocations:   atomic.LoadUint64(&c.reallocations),
		Sinks:           sinks,
	}

	if snap.QueueCapacity > 0 {
		snap.QueueUtilization = float64(snap.QueueDepth) / float64(snap.QueueCapacity)
	}

	c.messagesByLevel.Range(func(key, value interface{}) bool {
		level := key.(int8)
		counter := value.(*atomic.Uint64)
		if count := counter.Load(); count > 0 {
			snap.MessagesByLevel[level] = count
		}
		return true
	})

	c.sinkErrors.Range(func(key, value interface{}) bool {
		source := key.(string)
		counter := value.(*atomic.Uint64)
		if count := counter.Load(); count > 0 {
			snap.SinkErrors[source] = count
		}
		return true
	})

	writeCount := atomic.LoadUint64(&c.writeCount)
	if writeCount > 0 {
		snap.AverageWriteTime = time.Duration(atomic.LoadInt64(&c.totalWriteTime)) / time.Duration(writeCount)
	}
	snap.MaxWriteTime = time.Duration(atomic.LoadInt64(&c.maxWriteTime))

	return snap
}

// Reset zeroes every counter, used by tests that need a clean collector
// between scenarios.
func (c *Collector) Reset() {
	c.messagesByLevel.Range(func(key, value interface{}) bool {
		value.(*atomic.Uint64).Store(0)
		return true
	})
	atomic.StoreUint64(&c.messagesDropped, 0)
	atomic.StoreUint64(&c.messagesBlocked, 0)
	atomic.StoreUint64(&c.formatErrors, 0)
	atomic.StoreUint64(&c.writeCount, 0)
	atomic.StoreInt64(&c.totalWriteTime, 0)
	atomic.StoreInt64(&c.maxWriteTime, 0)
	atomic.StoreUint64(&c.reallocations, 0)
	c.sinkErrors.Range(func(key, value interface{}) bool {
		value.(*atomic.Uint64).Store(0)
		return true
	})
}

// TrackMessage increments the processed-message counter for level.
func (c *Collector) TrackMessage(level int8) {
	val, _ := c.messagesByLevel.LoadOrStore(level, &atomic.Uint64{})
	val.(*atomic.Uint64).Add(1)
}

// TrackDropped increments the bounded-dropping producer counter.
func (c *Collector) TrackDropped(n uint64) {
	atomic.AddUint64(&c.messagesDropped, n)
}

// TrackBlocked increments the bounded-blocking producer counter.
func (c *Collector) TrackBlocked(n uint64) {
	atomic.AddUint64(&c.messagesBlocked, n)
}

// TrackFormatError increments the formatting-failure counter.
func (c *Collector) TrackFormatError() {
	atomic.AddUint64(&c.formatErrors, 1)
}

// TrackReallocation increments the unbounded-queue reallocation counter.
func (c *Collector) TrackReallocation() {
	atomic.AddUint64(&c.reallocations, 1)
}

// TrackSinkError increments the error counter for sinkName. The backend
// passes the name of the logger whose sink write failed, so its counts are
// per logger, not per individual sink.
func (c *Collector) TrackSinkError(sinkName string) {
	val, _ := c.sinkErrors.LoadOrStore(sinkName, &atomic.Uint64{})
	val.(*atomic.Uint64).Add(1)
}

// TrackWrite records one sink write's latency, updating the running average
// and high-water mark Snapshot reports.
func (c *Collector) TrackWrite(duration time.Duration) {
	atomic.AddUint64(&c.writeCount, 1)
	atomic.AddInt64(&c.totalWriteTime, int64(duration))
	for {
		oldMax := atomic.LoadInt64(&c.maxWriteTime)
		if int64(duration) <= oldMax {
			break
		}
		if atomic.CompareAndSwapInt64(&c.maxWriteTime, oldMax, int64(duration)) {
			break
		}
	}
}

// MessageCount returns the number of messages processed at level.
func (c *Collector) MessageCount(level int8) uint64 {
	if val, ok := c.messagesByLevel.Load(level); ok {
		return val.(*atomic.Uint64).Load()
	}
	return 0
}
