package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillback/quillback/clock"
	"github.com/quillback/quillback/queue"
	"github.com/quillback/quillback/transit"
	"github.com/quillback/quillback/wire"
)

func TestProducerRegistryNewProducerSignal(t *testing.T) {
	r := NewProducerRegistry()
	assert.False(t, r.CheckAndClearNewProducer())

	p := NewProducerContext(1, "t1", queue.NewUnboundedQueue(64), 4)
	r.Register(p)

	assert.True(t, r.CheckAndClearNewProducer())
	assert.False(t, r.CheckAndClearNewProducer())
	assert.Len(t, r.Snapshot(), 1)
}

func TestProducerRegistryCollectInvalidatedOnlyWhenDrained(t *testing.T) {
	r := NewProducerRegistry()
	q := queue.NewUnboundedQueue(64)
	p := NewProducerContext(1, "t1", q, 4)
	r.Register(p)

	p.Invalidate()
	require.NoError(t, q.Push([]byte("x")))
	assert.Empty(t, r.CollectInvalidated(), "queue not drained yet")

	data, ok := q.PrepareRead()
	require.True(t, ok)
	q.FinishRead(len(data))
	q.CommitRead()

	removed := r.CollectInvalidated()
	require.Len(t, removed, 1)
	assert.Equal(t, uint64(1), removed[0].ThreadID)
	assert.Empty(t, r.Snapshot())
}

func TestLoggerFormatterInstalledOnce(t *testing.T) {
	l := NewLogger("root", "%(message)", "%H:%M:%S", "UTC", clock.System)
	assert.Nil(t, l.Formatter())

	f1 := fakeFormatter{id: 1}
	l.SetFormatter(f1)
	l.SetFormatter(fakeFormatter{id: 2})

	assert.Equal(t, f1, l.Formatter())
}

type fakeFormatter struct{ id int }

func (fakeFormatter) Format(ts uint64, tid uint64, tname, loggerName string, level wire.LogLevel, meta wire.Metadata, namedArgs []transit.NamedArg, formattedMsg string) (string, error) {
	return formattedMsg, nil
}

func TestLoggerRegistryLookupAndRemoveInvalidated(t *testing.T) {
	reg := NewLoggerRegistry()
	l := NewLogger("root", "p", "t", "UTC", clock.System)
	reg.Register(1, l)

	view, ok := reg.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, "root", view.Name())

	assert.Empty(t, reg.RemoveInvalidated())
	l.Invalidate()
	removed := reg.RemoveInvalidated()
	require.Len(t, removed, 1)
	assert.Equal(t, "root", removed[0].Name())

	_, ok = reg.Lookup(1)
	assert.False(t, ok)
}

func TestFormatterCacheSharesInstanceForIdenticalTuple(t *testing.T) {
	calls := 0
	cache := NewFormatterCache(func(pattern, timePattern, timezone string) transit.Formatter {
		calls++
		return fakeFormatter{id: calls}
	})

	f1 := cache.GetOrCreate("p", "t", "UTC")
	f2 := cache.GetOrCreate("p", "t", "UTC")
	assert.Equal(t, f1, f2)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, cache.Len())
}

func TestFormatterCacheSweepPrunesZeroRefs(t *testing.T) {
	cache := NewFormatterCache(func(pattern, timePattern, timezone string) transit.Formatter {
		return fakeFormatter{}
	})
	cache.GetOrCreate("p", "t", "UTC")
	cache.Release("p", "t", "UTC")

	pruned := cache.Sweep()
	assert.Equal(t, 1, pruned)
	assert.Equal(t, 0, cache.Len())
}

type fakeSink struct {
	closed bool
}

func (f *fakeSink) ApplyFilters(wire.Metadata, uint64, uint64, string, string, wire.LogLevel, string) bool {
	return true
}
func (f *fakeSink) Write(wire.Metadata, uint64, uint64, string, string, wire.LogLevel, string, []transit.NamedArg) error {
	return nil
}
func (f *fakeSink) Flush() error { return nil }
func (f *fakeSink) RunPeriodicTasks() {}
func (f *fakeSink) Close() error { f.closed = true; return nil }

func TestSinkRegistrySweepRemovesUnreferenced(t *testing.T) {
	r := NewSinkRegistry()
	s := &fakeSink{}
	r.Attach("file1", s)
	r.Attach("file1", s) // second logger referencing the same sink
	r.Release("file1")
	assert.Empty(t, must(r.Sweep()))

	r.Release("file1")
	removed, errs := r.Sweep()
	assert.Equal(t, []string{"file1"}, removed)
	assert.Empty(t, errs)
	assert.True(t, s.closed)
}

func must(removed []string, errs []error) []string { return removed }
