// Package transit reconstructs backend-owned TransitEvents from raw producer
// bytes: header decode, TSC conversion, pattern-formatter installation,
// argument decoding and message formatting, and the fair-read cutoff that
// keeps a strict-order backend from emitting one producer's future ahead of
// another's past.
package transit

import (
	"fmt"

	"github.com/quillback/quillback/clock"
	"github.com/quillback/quillback/namedargs"
	"github.com/quillback/quillback/queue"
	"github.com/quillback/quillback/wire"
)

// NamedArg is one (name, formatted value) pair recovered from a named-arg
// message.
type NamedArg struct {
	Name  string
	Value string
}

// TransitEvent is a backend-owned, reconstructed record awaiting dispatch.
// Instances are recycled across drain cycles by Ring; every field that is
// only conditionally populated must be explicitly cleared in Reset, since
// nothing may rely on zero-value defaults surviving reuse.
type TransitEvent struct {
	Timestamp  uint64
	ThreadID   uint64
	ThreadName string

	Kind       wire.EventKind
	MetadataID uint64
	LoggerID   uint64

	FormattedMsg string
	NamedArgs    []NamedArg

	FlushFlagID  uint64
	HasFlushFlag bool

	DynamicLevel  wire.LogLevel
	HasDynamicLvl bool
}

// Reset clears every field so a recycled slot carries no state from its
// previous occupant.
func (e *TransitEvent) Reset() {
	e.Timestamp = 0
	e.ThreadID = 0
	e.ThreadName = ""
	e.Kind = wire.Log
	e.MetadataID = 0
	e.LoggerID = 0
	e.FormattedMsg = ""
	e.NamedArgs = e.NamedArgs[:0]
	e.FlushFlagID = 0
	e.HasFlushFlag = false
	e.DynamicLevel = 0
	e.HasDynamicLvl = false
}

// Level resolves the event's effective log level: the dynamic tail value if
// present, else the level carried by its Metadata (resolved by the caller,
// since Ring itself has no Metadata lookup).
func (e *TransitEvent) Level(staticLevel wire.LogLevel) wire.LogLevel {
	if e.HasDynamicLvl {
		return e.DynamicLevel
	}
	return staticLevel
}

// ArgStore is the destination a DecoderFn writes decoded argument values
// into. Reset empties one for reuse; DrainProducer uses a new ArgStore for
// each record.
type ArgStore struct {
	Values []string
}

// Reset empties the store for reuse without discarding its backing array.
func (s *ArgStore) Reset() { s.Values = s.Values[:0] }

// Add appends one decoded, already-stringified argument value.
func (s *ArgStore) Add(v string) { s.Values = append(s.Values, v) }

// DecoderFn is the producer-supplied decoding of one record's argument
// payload: it consumes some prefix of data, appends decoded values to store,
// and reports how many bytes it consumed.
type DecoderFn func(data []byte, store *ArgStore) (consumed int, err error)

// MessageFormatter substitutes positional "{}" placeholders in a message
// format with decoded argument values. It is the reference stand-in for the
// out-of-scope character-level placeholder expansion engine.
type MessageFormatter interface {
	Format(messageFormat string, args []string) (string, error)
}

// Formatter renders one fully reconstructed event into its final output
// line per a logger's pattern. Installed once per logger and shared
// thereafter (see FormatterFactory).
type Formatter interface {
	Format(ts uint64, tid uint64, tname string, loggerName string, level wire.LogLevel, meta wire.Metadata, namedArgs []NamedArg, formattedMsg string) (string, error)
}

// FormatterFactory looks up or creates the shared Formatter for a
// (pattern, time_pattern, timezone) tuple.
type FormatterFactory interface {
	GetOrCreate(pattern, timePattern, timezone string) Formatter
}

// LoggerView is the subset of logger state the drain loop needs: its clock
// source, its pattern components, and its once-installed Formatter handle.
type LoggerView interface {
	Name() string
	ClockSource() clock.Source
	Pattern() (format, timePattern, timezone string)
	Formatter() Formatter
	SetFormatter(Formatter)
	BacktraceFlushLevel() wire.LogLevel
}

// MetadataLookup resolves a wire-level metadata handle to its descriptor.
type MetadataLookup interface {
	Lookup(id uint64) (wire.Metadata, bool)
}

// LoggerLookup resolves a wire-level logger handle to its view.
type LoggerLookup interface {
	Lookup(id uint64) (LoggerView, bool)
}

// DecoderLookup resolves a wire-level decoder handle to the function.
type DecoderLookup interface {
	Lookup(id uint64) (DecoderFn, bool)
}

// BacktraceHooks lets the drain loop act on InitBacktrace/FlushBacktrace
// records inline, without transit depending on the backtrace package.
type BacktraceHooks interface {
	Init(loggerID uint64, loggerName string, capacity uint32)
	Flush(loggerID uint64, loggerName string)
}

// Producer bundles one producer's queue, identity, and backend-owned ring.
type Producer struct {
	Queue      queue.Queue
	ThreadID   uint64
	ThreadName string
	Ring       *Ring
}

// DrainOptions carries every collaborator and policy knob the drain loop
// needs for one cycle.
type DrainOptions struct {
	// TSNowMicros is the strict-order cutoff captured at cycle start, in
	// microseconds since the epoch. Zero disables the cutoff (no-ordering
	// mode).
	TSNowMicros uint64
	HardLimit   uint32

	TSC        *clock.Handle
	Metadata   MetadataLookup
	Loggers    LoggerLookup
	Decoders   DecoderLookup
	Formatters FormatterFactory
	MsgFormat  MessageFormatter
	NamedArgs  *namedargs.Cache
	Backtrace  BacktraceHooks

	ErrorNotifier func(string)
}

// DrainProducer reads complete records from p until it has consumed the
// queue's capacity in bytes this cycle or p.Ring holds HardLimit events,
// reconstructing and formatting Log/Flush records into p.Ring and acting on
// InitBacktrace/FlushBacktrace records inline. It returns the number of
// bytes consumed.
func DrainProducer(p *Producer, opts DrainOptions) int {
	limit := p.Queue.Capacity()
	hardLimit := int(opts.HardLimit)
	if limit <= 0 || p.Ring.Size() >= hardLimit {
		return 0
	}

	totalRead := 0
	for totalRead < limit && p.Ring.Size() < hardLimit {
		data, ok := p.Queue.PrepareRead()
		if !ok {
			break
		}
		if budget := limit - totalRead; len(data) > budget {
			data = data[:budget]
		}

		consumed, cutoffHit := processOneRecord(p, data, opts)
		if consumed == 0 {
			break
		}
		p.Queue.FinishRead(consumed)
		totalRead += consumed
		if cutoffHit {
			break
		}
	}

	if totalRead > 0 {
		p.Queue.CommitRead()
	}

	if reporter, ok := p.Queue.(queue.AllocationReporter); ok {
		for _, ev := range reporter.DrainAllocationEvents() {
			if opts.ErrorNotifier != nil {
				opts.ErrorNotifier(fmt.Sprintf(
					"unbounded queue reallocation on thread %s: %d -> %d bytes",
					p.ThreadName, ev.OldCapacity, ev.NewCapacity))
			}
		}
	}

	return totalRead
}

// processOneRecord decodes and reconstructs a single record from data,
// returning bytes consumed (0 means the record is not yet complete in this
// buffer) and whether the strict-order cutoff stopped further decoding of
// this producer this cycle.
func processOneRecord(p *Producer, data []byte, opts DrainOptions) (consumed int, cutoffHit bool) {
	hdr, tail, err := wire.DecodeHeader(data)
	if err != nil {
		return 0, false
	}

	meta, ok := opts.Metadata.Lookup(hdr.MetadataID)
	if !ok {
		// Metadata handle not resolvable (race with registration); leave
		// unread and retry next cycle rather than guessing its shape.
		return 0, false
	}

	logger, ok := opts.Loggers.Lookup(hdr.LoggerID)
	if !ok {
		return 0, false
	}

	ts := hdr.Timestamp
	clockSource := logger.ClockSource()
	if clockSource == clock.Tsc {
		ts = opts.TSC.ConvertOrZero(ts)
	}

	if opts.TSNowMicros > 0 && clockSource != clock.User {
		if ts/1000 >= opts.TSNowMicros {
			return 0, true
		}
	}

	if logger.Formatter() == nil && opts.Formatters != nil {
		pattern, timePattern, tz := logger.Pattern()
		logger.SetFormatter(opts.Formatters.GetOrCreate(pattern, timePattern, tz))
	}

	switch meta.Kind {
	case wire.InitBacktrace:
		capacity, err := wire.DecodeBacktraceCapacity(tail)
		if err != nil {
			return 0, false
		}
		if opts.Backtrace != nil {
			opts.Backtrace.Init(hdr.LoggerID, logger.Name(), capacity)
		}
		return wire.HeaderSize() + 4, false

	case wire.FlushBacktrace:
		if opts.Backtrace != nil {
			opts.Backtrace.Flush(hdr.LoggerID, logger.Name())
		}
		return wire.HeaderSize(), false

	case wire.Flush:
		flagID, rest, err := wire.DecodeFlushTail(tail)
		if err != nil {
			return 0, false
		}
		ev := p.Ring.Acquire()
		ev.Timestamp = ts
		ev.ThreadID = p.ThreadID
		ev.ThreadName = p.ThreadName
		ev.Kind = wire.Flush
		ev.MetadataID = hdr.MetadataID
		ev.LoggerID = hdr.LoggerID
		ev.FlushFlagID = flagID
		ev.HasFlushFlag = true
		p.Ring.Commit(ev)
		return len(data) - len(rest), false

	default: // wire.Log
		return decodeLogRecord(p, data, tail, hdr, meta, logger, ts, opts)
	}
}

func decodeLogRecord(p *Producer, data, tail []byte, hdr wire.Header, meta wire.Metadata, logger LoggerView, ts uint64, opts DrainOptions) (int, bool) {
	decoder, ok := opts.Decoders.Lookup(hdr.DecoderID)
	if !ok {
		return 0, false
	}

	var store ArgStore
	argConsumed, err := decoder(tail, &store)
	if err != nil {
		// Formatting/decoding error: still consume the record (its bytes
		// were fully written by the producer) and surface a diagnostic
		// string instead of the real message.
		ev := p.Ring.Acquire()
		ev.Timestamp = ts
		ev.ThreadID = p.ThreadID
		ev.ThreadName = p.ThreadName
		ev.Kind = wire.Log
		ev.MetadataID = hdr.MetadataID
		ev.LoggerID = hdr.LoggerID
		ev.FormattedMsg = fmt.Sprintf(
			"[Could not format log statement. message: %q, location: %q, error: %q]",
			meta.MessageFormat, meta.SourceLocation, err.Error())
		if opts.ErrorNotifier != nil {
			opts.ErrorNotifier(ev.FormattedMsg)
		}
		applyDynamicLevel(ev, meta, tail[argConsumed:])
		p.Ring.Commit(ev)
		return wire.HeaderSize() + len(tail), false
	}

	ev := p.Ring.Acquire()
	ev.Timestamp = ts
	ev.ThreadID = p.ThreadID
	ev.ThreadName = p.ThreadName
	ev.Kind = wire.Log
	ev.MetadataID = hdr.MetadataID
	ev.LoggerID = hdr.LoggerID

	if meta.HasNamedArgs {
		tpl := opts.NamedArgs.GetOrParse(meta.MessageFormat)
		formatted, ferr := opts.MsgFormat.Format(tpl.Stripped, store.Values)
		if ferr != nil {
			formatted = fmt.Sprintf(
				"[Could not format log statement. message: %q, location: %q, error: %q]",
				meta.MessageFormat, meta.SourceLocation, ferr.Error())
			if opts.ErrorNotifier != nil {
				opts.ErrorNotifier(formatted)
			}
		}
		ev.FormattedMsg = formatted
		if len(tpl.Names) == len(store.Values) {
			ev.NamedArgs = ev.NamedArgs[:0]
			for i, name := range tpl.Names {
				ev.NamedArgs = append(ev.NamedArgs, NamedArg{Name: name, Value: store.Values[i]})
			}
		}
	} else {
		formatted, ferr := opts.MsgFormat.Format(meta.MessageFormat, store.Values)
		if ferr != nil {
			formatted = fmt.Sprintf(
				"[Could not format log statement. message: %q, location: %q, error: %q]",
				meta.MessageFormat, meta.SourceLocation, ferr.Error())
			if opts.ErrorNotifier != nil {
				opts.ErrorNotifier(formatted)
			}
		}
		ev.FormattedMsg = formatted
	}

	applyDynamicLevel(ev, meta, tail[argConsumed:])
	p.Ring.Commit(ev)
	return wire.HeaderSize() + argConsumed + dynamicLevelWidth(meta), false
}

func applyDynamicLevel(ev *TransitEvent, meta wire.Metadata, rest []byte) {
	if meta.Level != wire.Dynamic {
		ev.HasDynamicLvl = false
		return
	}
	lvl, err := wire.DecodeDynamicLevelTail(rest)
	if err != nil {
		ev.HasDynamicLvl = false
		return
	}
	ev.DynamicLevel = lvl
	ev.HasDynamicLvl = true
}

func dynamicLevelWidth(meta wire.Metadata) int {
	if meta.Level == wire.Dynamic {
		return 1
	}
	return 0
}
