//go:build linux

// Package affinity pins the calling goroutine's backing OS thread to a
// specific CPU, best-effort, mirroring the source design's
// backend_cpu_affinity option. Pinning and any failure to pin are both
// non-fatal: the original design catches and reports these errors rather
// than aborting startup, so Pin never returns an error the caller must
// treat as fatal — callers that care can still log it if they want
// visibility into why pinning silently didn't take.
package affinity

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// Pin locks the calling goroutine to its current OS thread and restricts
// that thread to the given CPU. The caller must invoke this from the
// goroutine it wants pinned (the backend worker goroutine), since
// LockOSThread only affects the calling goroutine.
func Pin(cpu int) error {
	runtime.LockOSThread()

	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)

	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("affinity: sched_setaffinity cpu=%d: %w", cpu, err)
	}
	return nil
}
