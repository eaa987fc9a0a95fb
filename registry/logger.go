package registry

import (
	"sync"
	"sync/atomic"

	"github.com/quillback/quillback/clock"
	"github.com/quillback/quillback/transit"
	"github.com/quillback/quillback/wire"
)

// Sink is the polymorphic output endpoint contract every logger dispatches
// through: filterable, writable, flushable, and periodically serviced.
// All calls are fallible; the backend fault-isolates every one of them
// (§4.7) rather than letting a sink failure take down the loop.
type Sink interface {
	ApplyFilters(meta wire.Metadata, ts uint64, tid uint64, tname, loggerName string, level wire.LogLevel, formattedMsg string) bool
	Write(meta wire.Metadata, ts uint64, tid uint64, tname, loggerName string, level wire.LogLevel, formattedMsg string, namedArgs []transit.NamedArg) error
	Flush() error
	RunPeriodicTasks()
}

// Logger is a named entity with an output pattern, a clock source, an
// ordered sink list, and a pattern-formatter handle installed at most once
// by the backend and shared thereafter.
type Logger struct {
	name          string
	formatPattern string
	timePattern   string
	timezone      string
	source        clock.Source

	backtraceFlushLevel atomic.Int32

	mu        sync.Mutex
	sinks     []Sink
	sinkNames []string
	formatter transit.Formatter
	invalid   bool
}

// NewLogger constructs a logger with the given pattern components and
// clock source. Sinks are attached via AddSink.
func NewLogger(name, formatPattern, timePattern, timezone string, source clock.Source) *Logger {
	l := &Logger{name: name, formatPattern: formatPattern, timePattern: timePattern, timezone: timezone, source: source}
	l.backtraceFlushLevel.Store(int32(wire.None))
	return l
}

// Name implements transit.LoggerView.
func (l *Logger) Name() string { return l.name }

// ClockSource implements transit.LoggerView.
func (l *Logger) ClockSource() clock.Source { return l.source }

// Pattern implements transit.LoggerView.
func (l *Logger) Pattern() (string, string, string) { return l.formatPattern, l.timePattern, l.timezone }

// Formatter implements transit.LoggerView.
func (l *Logger) Formatter() transit.Formatter {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.formatter
}

// SetFormatter implements transit.LoggerView. Installing a formatter is
// idempotent from the caller's point of view: once non-nil, later calls
// (which should not happen per invariant 4, but are tolerated) are ignored.
func (l *Logger) SetFormatter(f transit.Formatter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.formatter == nil {
		l.formatter = f
	}
}

// BacktraceFlushLevel implements transit.LoggerView.
func (l *Logger) BacktraceFlushLevel() wire.LogLevel {
	return wire.LogLevel(l.backtraceFlushLevel.Load())
}

// SetBacktraceFlushLevel atomically updates the level at or above which a
// processed Log event triggers a backtrace flush for this logger.
func (l *Logger) SetBacktraceFlushLevel(level wire.LogLevel) {
	l.backtraceFlushLevel.Store(int32(level))
}

// AddSink attaches a shared sink, registered under name in the owning
// SinkRegistry, to this logger. name is retained so the logger's eventual
// removal can release exactly the reference counts it holds.
func (l *Logger) AddSink(name string, s Sink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks = append(l.sinks, s)
	l.sinkNames = append(l.sinkNames, name)
}

// Sinks returns the logger's current sink list.
func (l *Logger) Sinks() []Sink {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Sink, len(l.sinks))
	copy(out, l.sinks)
	return out
}

// SinkNames returns the registry names of every sink this logger holds, for
// the caller to release once the logger is removed.
func (l *Logger) SinkNames() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.sinkNames))
	copy(out, l.sinkNames)
	return out
}

// Invalidate marks this logger as removed by the user; it is only actually
// destroyed once every producer's queue and ring are empty.
func (l *Logger) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.invalid = true
}

// Invalid reports whether Invalidate has been called.
func (l *Logger) Invalid() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.invalid
}

// LoggerRegistry owns every live Logger, keyed by a wire-level handle the
// backend resolves records against. Insertion happens producer/controller
// side; the backend is the only remover, matching the ownership split the
// rest of the registry package follows.
type LoggerRegistry struct {
	mu   sync.Mutex
	byID map[uint64]*Logger
}

// NewLoggerRegistry creates an empty logger registry.
func NewLoggerRegistry() *LoggerRegistry {
	return &LoggerRegistry{byID: make(map[uint64]*Logger)}
}

// Register associates id with logger.
func (r *LoggerRegistry) Register(id uint64, logger *Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[id] = logger
}

// Lookup implements transit.LoggerLookup.
func (r *LoggerRegistry) Lookup(id uint64) (transit.LoggerView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return l, true
}

// Get returns the concrete *Logger for id, for callers (like the backend's
// backtrace dispatch) that need methods beyond transit.LoggerView.
func (r *LoggerRegistry) Get(id uint64) (*Logger, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.byID[id]
	return l, ok
}

// All returns every currently registered (id, *Logger) pair.
func (r *LoggerRegistry) All() map[uint64]*Logger {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uint64]*Logger, len(r.byID))
	for k, v := range r.byID {
		out[k] = v
	}
	return out
}

// RemoveInvalidated removes every invalidated logger and returns the removed
// *Logger values, for the caller to use when releasing the sink and
// formatter-cache references they held and sweeping backtrace rings. The
// caller is responsible for having already confirmed (via the producer
// registry) that no queue or ring holds a record referencing these loggers.
func (r *LoggerRegistry) RemoveInvalidated() []*Logger {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []*Logger
	for id, l := range r.byID {
		if l.Invalid() {
			removed = append(removed, l)
			delete(r.byID, id)
		}
	}
	return removed
}
