//go:build !linux

package affinity

import "fmt"

// Pin is a no-op on platforms without a CPU affinity syscall the backend
// can target; it reports this so a caller can surface it through its error
// notifier, matching the non-fatal treatment of pinning failures on linux.
func Pin(cpu int) error {
	return fmt.Errorf("affinity: CPU pinning not supported on this platform")
}
