package backend

import (
	"fmt"
	"time"

	"github.com/quillback/quillback/internal/xerrors"
)

// ErrorLevel mirrors the severity bands an error notifier can use to
// decide how loudly to surface a diagnostic.
type ErrorLevel int

const (
	ErrorLevelLow ErrorLevel = iota
	ErrorLevelWarn
	ErrorLevelMedium
	ErrorLevelHigh
	ErrorLevelCritical
)

func (l ErrorLevel) String() string {
	switch l {
	case ErrorLevelLow:
		return "low"
	case ErrorLevelWarn:
		return "warn"
	case ErrorLevelMedium:
		return "medium"
	case ErrorLevelHigh:
		return "high"
	case ErrorLevelCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// BackendError wraps a fault encountered while running the loop: a sink
// write/flush failure, a formatting failure, or a recovered panic.
type BackendError struct {
	Operation string
	Source    string // logger or sink name the fault occurred against
	Level     ErrorLevel
	Timestamp time.Time
	Err       error
}

func (e *BackendError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("backend: %s (%s): %v", e.Operation, e.Source, e.Err)
	}
	return fmt.Sprintf("backend: %s: %v", e.Operation, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// ErrorHandler receives every BackendError the loop produces. Nil is a
// valid ErrorHandler: errors are then dropped on the floor after being
// forwarded to Config.ErrorNotifier as a plain string.
type ErrorHandler func(*BackendError)

// notify reports a fault both to the Config.ErrorNotifier string sink (if
// set) and the structured ErrorHandler (if set), and fault-isolates a
// recovered panic from r into the wrapped error when non-nil.
func (b *Backend) notify(operation, source string, level ErrorLevel, err error, r interface{}) {
	if r != nil {
		err = xerrors.Recover(r)
	}
	be := &BackendError{Operation: operation, Source: source, Level: level, Timestamp: time.Now(), Err: err}
	if b.errorHandler != nil {
		b.errorHandler(be)
	}
	if b.cfg.ErrorNotifier != nil {
		b.cfg.ErrorNotifier(be.Error())
	}
}
