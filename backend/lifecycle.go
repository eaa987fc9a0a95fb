package backend

import (
	"fmt"
	"runtime"
	"time"

	"github.com/quillback/quillback/backtrace"
	"github.com/quillback/quillback/clock"
	"github.com/quillback/quillback/internal/affinity"
	"github.com/quillback/quillback/registry"
	"github.com/quillback/quillback/transit"
	"github.com/quillback/quillback/wire"
)

// Run starts the backend's loop on a new goroutine and blocks until the
// worker has signaled it is ready, spinning with a short poll rather than a
// condition variable, matching the source design's startup handshake.
func (b *Backend) Run() {
	go b.loop()
	for !b.worker.Load() {
		time.Sleep(100 * time.Microsecond)
	}
}

// Stop requests the loop to exit, wakes it if idle, and blocks until it has
// fully stopped (including the exit-drain pass if Config.DrainOnExit is
// set) and flushed every sink one final time.
func (b *Backend) Stop() {
	b.running.Store(false)
	b.Notify()
	<-b.stopped
}

func (b *Backend) loop() {
	defer close(b.stopped)

	if b.cfg.CPUAffinity != NoAffinity {
		if err := affinity.Pin(int(b.cfg.CPUAffinity)); err != nil {
			b.notify("cpu affinity", "", ErrorLevelLow, err, nil)
		}
	}

	// Coerced here, once, after the worker has captured its own options,
	// not during Config.Validate.
	if b.cfg.SoftLimit == 0 {
		b.cfg.SoftLimit = 1
	}
	if b.cfg.HardLimit == 0 {
		b.cfg.HardLimit = 1
	}

	b.running.Store(true)
	b.worker.Store(true)

	for b.running.Load() {
		b.cycle()
	}

	if b.cfg.DrainOnExit {
		for !b.allEmpty() {
			b.cycle()
		}
	}

	b.flushAllSinks()
}

func (b *Backend) allEmpty() bool {
	for _, p := range b.producers.Snapshot() {
		if !p.Queue.Empty() || !p.Ring.Empty() {
			return false
		}
	}
	return true
}

// cycle runs one drain-merge-dispatch-idle iteration.
func (b *Backend) cycle() {
	b.producers.CheckAndClearNewProducer()
	producers := b.producers.Snapshot()
	b.ensureClock()

	var tsNow uint64
	if b.cfg.StrictOrder {
		tsNow = uint64(time.Now().UnixMicro())
	}

	opts := transit.DrainOptions{
		TSNowMicros:   tsNow,
		HardLimit:     b.cfg.HardLimit,
		TSC:           &b.clockHandle,
		Metadata:      b.metadata,
		Loggers:       b.loggers,
		Decoders:      b.decoders,
		Formatters:    b.formatters,
		MsgFormat:     b.msgFormat,
		NamedArgs:     b.namedArgs,
		Backtrace:     &backtraceHooks{store: b.backtraces, b: b},
		ErrorNotifier: b.cfg.ErrorNotifier,
	}

	for _, p := range producers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.notify("drain producer", p.ThreadName, ErrorLevelHigh, nil, r)
				}
			}()
			transit.DrainProducer(&transit.Producer{
				Queue:      p.Queue,
				ThreadID:   p.ThreadID,
				ThreadName: p.ThreadName,
				Ring:       p.Ring,
			}, opts)
		}()
	}

	dispatched := b.dispatchCycle(producers)

	if dispatched == 0 {
		b.idleMaintenance(producers)
		b.wait()
	}
}

// ensureClock lazily constructs the TSC clock the first time any producer's
// logger uses clock.Tsc, matching the source design's lazy-init-on-first-
// TSC-record rule. Returns true if it just published a new clock.
func (b *Backend) ensureClock() bool {
	if b.clockBuilt.Load() {
		return false
	}
	// Conservatively build on the first cycle that has any registered
	// logger using Tsc, regardless of whether it produced an event yet —
	// cheap, and avoids re-deriving "did we just decode a Tsc record" here.
	for _, l := range b.loggers.All() {
		if l.ClockSource() == clock.Tsc {
			b.clockHandle.StorePublish(clock.New(b.cfg.ResyncInterval))
			b.clockBuilt.Store(true)
			return true
		}
	}
	return false
}

// dispatchCycle applies the §4.9 drain-throttling policy: below the soft
// limit, process exactly one event and return to draining; at or above it,
// drain every ring to empty.
func (b *Backend) dispatchCycle(producers []*registry.ProducerContext) int {
	n := 0
	for _, p := range producers {
		n += p.Ring.Size()
	}
	if n == 0 {
		return 0
	}
	if n < int(b.cfg.SoftLimit) {
		if b.dispatchOne(producers) {
			return 1
		}
		return 0
	}
	count := 0
	for b.dispatchOne(producers) {
		count++
	}
	return count
}

// dispatchOne finds the ring with the least front timestamp across every
// producer, dispatches it, and pops it. Returns false when nothing is
// available.
func (b *Backend) dispatchOne(producers []*registry.ProducerContext) bool {
	var minP *registry.ProducerContext
	var minEv *transit.TransitEvent
	for _, p := range producers {
		ev, ok := p.Ring.Front()
		if !ok {
			continue
		}
		if minEv == nil || ev.Timestamp < minEv.Timestamp {
			minEv = ev
			minP = p
		}
	}
	if minEv == nil {
		return false
	}
	b.dispatchEvent(minEv)
	popped := minP.Ring.Pop()
	minP.Ring.Release(popped)
	return true
}

func (b *Backend) dispatchEvent(ev *transit.TransitEvent) {
	switch ev.Kind {
	case wire.Flush:
		b.flushAllSinks()
		if flag, ok := b.flags.Resolve(ev.FlushFlagID); ok {
			flag.Store(true)
			b.flags.Release(ev.FlushFlagID)
		}
	default:
		b.dispatchLog(ev)
	}
}

func (b *Backend) dispatchLog(ev *transit.TransitEvent) {
	meta, ok := b.metadata.Lookup(ev.MetadataID)
	if !ok {
		return
	}
	loggerView, ok := b.loggers.Lookup(ev.LoggerID)
	if !ok {
		return
	}
	logger, ok := b.loggers.Get(ev.LoggerID)
	if !ok {
		return
	}

	level := ev.Level(meta.Level)
	b.metricsC.TrackMessage(int8(level))

	name := loggerView.Name()

	// A record tagged wire.Backtrace is never written live; it exists only
	// to be buffered into the logger's ring, replayed later as context for
	// some future higher-severity event. Every other Log event is written
	// immediately regardless of its own severity.
	if level == wire.Backtrace {
		// ev's NamedArgs slice backs a ring slot that Release will return to
		// the free list once dispatchLog returns; clone it so a future
		// Acquire reusing that slot can't mutate an event still sitting in
		// the backtrace ring.
		namedArgs := make([]transit.NamedArg, len(ev.NamedArgs))
		copy(namedArgs, ev.NamedArgs)
		b.backtraces.Store(name, backtrace.Event{
			Timestamp:    ev.Timestamp,
			ThreadID:     ev.ThreadID,
			ThreadName:   ev.ThreadName,
			LoggerName:   name,
			MetadataID:   ev.MetadataID,
			Level:        level,
			FormattedMsg: ev.FormattedMsg,
			NamedArgs:    namedArgs,
		})
		return
	}

	for _, sink := range logger.Sinks() {
		b.dispatchToSink(sink, meta, ev, name, level)
	}

	// Having written the event, check whether its own severity crosses the
	// logger's configured backtrace flush level; if so, replay the buffered
	// ring as trailing context.
	if b.backtraces.Has(name) && level >= logger.BacktraceFlushLevel() {
		b.flushBacktrace(ev.LoggerID, name)
	}
}

func (b *Backend) dispatchToSink(sink registry.Sink, meta wire.Metadata, ev *transit.TransitEvent, loggerName string, level wire.LogLevel) {
	defer func() {
		if r := recover(); r != nil {
			b.notify("sink write", loggerName, ErrorLevelHigh, nil, r)
		}
	}()

	if !sink.ApplyFilters(meta, ev.Timestamp, ev.ThreadID, ev.ThreadName, loggerName, level, ev.FormattedMsg) {
		return
	}
	start := time.Now()
	err := sink.Write(meta, ev.Timestamp, ev.ThreadID, ev.ThreadName, loggerName, level, ev.FormattedMsg, ev.NamedArgs)
	b.metricsC.TrackWrite(time.Since(start))
	if err != nil {
		b.metricsC.TrackSinkError(loggerName)
		b.notify("sink write", loggerName, ErrorLevelMedium, fmt.Errorf("%w", err), nil)
	}
}

func (b *Backend) flushBacktrace(loggerID uint64, loggerName string) {
	(&backtraceHooks{store: b.backtraces, b: b}).Flush(loggerID, loggerName)
}

func (b *Backend) dispatchBacktraceEvent(loggerID uint64, loggerName string, e backtrace.Event) {
	logger, ok := b.loggers.Get(loggerID)
	if !ok {
		return
	}
	meta, _ := b.metadata.Lookup(e.MetadataID)
	for _, sink := range logger.Sinks() {
		b.dispatchToSink(sink, meta, &transit.TransitEvent{
			Timestamp:    e.Timestamp,
			ThreadID:     e.ThreadID,
			ThreadName:   e.ThreadName,
			FormattedMsg: e.FormattedMsg,
			NamedArgs:    e.NamedArgs,
		}, loggerName, e.Level)
	}
}

// idleMaintenance runs §4.10's lifecycle pass: flush and service sinks,
// report accumulated failure counters, resync the clock, and — only once
// every queue and ring is empty — collect invalidated producers/loggers and
// sweep the caches they own.
func (b *Backend) idleMaintenance(producers []*registry.ProducerContext) {
	b.flushAllSinks()
	for _, sink := range b.sinkReg.All() {
		b.safeRunPeriodic(sink)
	}

	b.reportFailures(producers)

	if c := b.clockHandle.Load(); c != nil && c.ResyncDue() {
		c.Resync(0)
	}

	if !b.allEmpty() {
		return
	}

	b.producers.CollectInvalidated()

	removed := b.loggers.RemoveInvalidated()
	if len(removed) == 0 {
		return
	}
	for _, l := range removed {
		for _, name := range l.SinkNames() {
			b.sinkReg.Release(name)
		}
		pattern, timePattern, tz := l.Pattern()
		b.formatters.Release(pattern, timePattern, tz)
		b.backtraces.Erase(l.Name())
	}
	b.formatters.Sweep()
	if removedSinks, errs := b.sinkReg.Sweep(); len(removedSinks) > 0 || len(errs) > 0 {
		for _, err := range errs {
			b.notify("sink close", "", ErrorLevelMedium, err, nil)
		}
	}
}

func (b *Backend) safeRunPeriodic(sink registry.Sink) {
	defer func() {
		if r := recover(); r != nil {
			b.notify("sink periodic task", "", ErrorLevelLow, nil, r)
		}
	}()
	sink.RunPeriodicTasks()
}

// wait blocks until Notify is called, SleepDuration elapses, or — if
// SleepDuration is zero — yields or spins per Config.YieldWhenIdle.
func (b *Backend) wait() {
	if b.cfg.SleepDuration > 0 {
		select {
		case <-b.wakeCh:
		case <-time.After(b.cfg.SleepDuration):
		}
		return
	}
	if b.cfg.YieldWhenIdle {
		runtime.Gosched()
	}
}
