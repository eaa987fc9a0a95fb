package backend

import (
	"github.com/quillback/quillback/backtrace"
)

// backtraceHooks adapts backtrace.Store to transit.BacktraceHooks so the
// drain loop can act on InitBacktrace/FlushBacktrace records without
// transit depending on the backtrace package directly.
type backtraceHooks struct {
	store *backtrace.Store
	b     *Backend
}

// Init implements transit.BacktraceHooks.
func (h *backtraceHooks) Init(loggerID uint64, loggerName string, capacity uint32) {
	h.store.Init(loggerName, int(capacity))
}

// Flush implements transit.BacktraceHooks: it drains every stored event for
// loggerName, in insertion order, straight to that logger's sinks.
func (h *backtraceHooks) Flush(loggerID uint64, loggerName string) {
	h.store.Process(loggerName, func(e backtrace.Event) {
		h.b.dispatchBacktraceEvent(loggerID, loggerName, e)
	})
}
