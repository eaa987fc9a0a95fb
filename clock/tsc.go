package clock

import "time"

// defaultReadTSC backs ReadTSC. Go has no portable intrinsic for the CPU
// cycle counter (unlike the `rdtsc` instruction the original design assumes),
// so the default source is the runtime's monotonic clock reading expressed
// in nanoseconds. It is monotone and cheap, which is the property the
// calibration math in Clock actually depends on; callers that genuinely need
// a hardware cycle counter on amd64/arm64 can replace ReadTSC with a
// cgo/assembly-backed implementation without touching Clock itself.
func defaultReadTSC() uint64 {
	return uint64(time.Now().UnixNano())
}
