package sinks

import (
	"sync"

	"github.com/quillback/quillback/transit"
	"github.com/quillback/quillback/wire"
)

// Entry is one line a MemorySink captured, kept for test assertions.
type Entry struct {
	Timestamp    uint64
	ThreadID     uint64
	ThreadName   string
	LoggerName   string
	Level        wire.LogLevel
	FormattedMsg string
	NamedArgs    []transit.NamedArg
}

// MemorySink is an in-process registry.Sink implementation that records
// every write it receives, for tests to assert ordering and content without
// touching the filesystem or network.
type MemorySink struct {
	mu         sync.Mutex
	entries    []Entry
	flushCount int
	periodicN  int
	minLevel   wire.LogLevel
}

// NewMemorySink creates an empty memory sink.
func NewMemorySink(minLevel wire.LogLevel) *MemorySink {
	return &MemorySink{minLevel: minLevel}
}

// ApplyFilters implements registry.Sink.
func (m *MemorySink) ApplyFilters(meta wire.Metadata, ts uint64, tid uint64, tname, loggerName string, level wire.LogLevel, formattedMsg string) bool {
	return level >= m.minLevel
}

// Write implements registry.Sink.
func (m *MemorySink) Write(meta wire.Metadata, ts uint64, tid uint64, tname, loggerName string, level wire.LogLevel, formattedMsg string, namedArgs []transit.NamedArg) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, Entry{
		Timestamp: ts, ThreadID: tid, ThreadName: tname, LoggerName: loggerName,
		Level: level, FormattedMsg: formattedMsg, NamedArgs: append([]transit.NamedArg(nil), namedArgs...),
	})
	return nil
}

// Flush implements registry.Sink.
func (m *MemorySink) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushCount++
	return nil
}

// RunPeriodicTasks implements registry.Sink.
func (m *MemorySink) RunPeriodicTasks() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.periodicN++
}

// Entries returns a copy of every captured entry, in write order.
func (m *MemorySink) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// FlushCount reports how many times Flush was called.
func (m *MemorySink) FlushCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushCount
}

// PeriodicCount reports how many times RunPeriodicTasks was called.
func (m *MemorySink) PeriodicCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.periodicN
}
