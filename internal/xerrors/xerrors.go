// Package xerrors wraps github.com/pkg/errors for annotating failures that
// cross a fault-isolation boundary (sink calls, format calls, decoder
// callbacks) without losing the underlying cause.
package xerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Wrap annotates err with a message, preserving the original as the cause.
// Returns nil if err is nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, message)
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, args...)
}

// Cause returns the root cause of err by repeatedly unwrapping, mirroring
// errors.Cause's behavior for chains built with Wrap.
func Cause(err error) error {
	return errors.Cause(err)
}

// Recover converts a recovered panic value into an error. The backend uses
// it for panics recovered around each producer's drain (which runs the
// decoder and format calls) and around sink write, flush and periodic-task
// calls, so a single producer's bad callback can't take the worker down.
func Recover(r interface{}) error {
	if r == nil {
		return nil
	}
	if err, ok := r.(error); ok {
		return errors.Wrap(err, "recovered panic")
	}
	return fmt.Errorf("recovered panic: %v", r)
}
