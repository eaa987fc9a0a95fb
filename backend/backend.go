package backend

import (
	"sync"
	"sync/atomic"

	"github.com/quillback/quillback/backtrace"
	"github.com/quillback/quillback/clock"
	"github.com/quillback/quillback/namedargs"
	"github.com/quillback/quillback/queue"
	"github.com/quillback/quillback/registry"
	"github.com/quillback/quillback/transit"
	"github.com/quillback/quillback/wire"

	"github.com/quillback/quillback/internal/metrics"
)

// Backend owns every registry and runs the single drain-merge-dispatch loop
// against them. Callers populate its registries (producers, loggers,
// metadata, decoders, sinks) before or while Run is active; the backend
// itself is the only goroutine that ever reads from a producer's queue or
// mutates a shared cache.
type Backend struct {
	cfg Config

	clockHandle clock.Handle
	clockBuilt  atomic.Bool

	producers  *registry.ProducerRegistry
	loggers    *registry.LoggerRegistry
	metadata   *registry.MetadataRegistry
	decoders   *registry.DecoderRegistry
	formatters *registry.FormatterCache
	sinkReg    *registry.SinkRegistry
	backtraces *backtrace.Store
	flags      *FlagRegistry
	namedArgs  *namedargs.Cache
	msgFormat  transit.MessageFormatter
	metricsC   *metrics.Collector

	errorHandler ErrorHandler

	failuresMu sync.Mutex
	failures   map[uint64]failureCount

	running atomic.Bool
	worker  atomic.Bool
	wakeCh  chan struct{}
	stopped chan struct{}
}

// New constructs a Backend from cfg and a formatter constructor, validating
// cfg first and returning a *ConfigError if it's contradictory.
func New(cfg Config, newFormatter registry.NewFormatterFunc, msgFormat transit.MessageFormatter, errorHandler ErrorHandler) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Backend{
		cfg:          cfg,
		producers:    registry.NewProducerRegistry(),
		loggers:      registry.NewLoggerRegistry(),
		metadata:     registry.NewMetadataRegistry(),
		decoders:     registry.NewDecoderRegistry(),
		formatters:   registry.NewFormatterCache(newFormatter),
		sinkReg:      registry.NewSinkRegistry(),
		backtraces:   backtrace.NewStore(),
		flags:        NewFlagRegistry(),
		namedArgs:    namedargs.NewCache(),
		msgFormat:    msgFormat,
		metricsC:     metrics.NewCollector(),
		errorHandler: errorHandler,
		wakeCh:       make(chan struct{}, 1),
		stopped:      make(chan struct{}),
	}, nil
}

// RegisterProducer registers a new producer thread's queue with the
// backend and returns its context, for a caller to hold onto in order to
// call Invalidate when the thread exits.
func (b *Backend) RegisterProducer(threadID uint64, threadName string, q queue.Queue) *registry.ProducerContext {
	p := registry.NewProducerContext(threadID, threadName, q, b.cfg.RingInitialCapacity)
	b.producers.Register(p)
	b.Notify()
	return p
}

// RegisterLogger registers a logger under id, attaching it to every sink
// named in sinkNames (which must already be reachable via AttachSink).
func (b *Backend) RegisterLogger(id uint64, logger *registry.Logger, sinkNames ...string) {
	b.loggers.Register(id, logger)
	for _, name := range sinkNames {
		if s, ok := b.sinkReg.Get(name); ok {
			logger.AddSink(name, s)
		}
	}
}

// AttachSink registers s under name in the sink registry, incrementing its
// reference count once per call — callers typically call this once per
// logger that wants the sink.
func (b *Backend) AttachSink(name string, s registry.Sink) {
	b.sinkReg.Attach(name, s)
}

// RegisterMetadata associates id with meta.
func (b *Backend) RegisterMetadata(id uint64, meta wire.Metadata) {
	b.metadata.Register(id, meta)
}

// RegisterDecoder associates id with fn.
func (b *Backend) RegisterDecoder(id uint64, fn transit.DecoderFn) {
	b.decoders.Register(id, fn)
}

// RegisterFlushFlag allocates a handle for flag, for a test harness or a
// producer stand-in to encode into a Flush record's tail.
func (b *Backend) RegisterFlushFlag(flag *atomic.Bool) uint64 {
	return b.flags.Register(flag)
}

// Metrics returns a point-in-time snapshot of the backend's counters.
func (b *Backend) Metrics() metrics.Snapshot {
	depth, capacity := 0, 0
	for _, p := range b.producers.Snapshot() {
		depth += p.Ring.Size()
		capacity += p.Queue.Capacity()
	}
	return b.metricsC.Snapshot(depth, capacity, nil)
}

// Notify wakes the backend from an idle sleep, tolerating a backend that is
// not currently waiting (a buffered, non-blocking send).
func (b *Backend) Notify() {
	select {
	case b.wakeCh <- struct{}{}:
	default:
	}
}
