package backend

import (
	"fmt"
	"time"

	"github.com/quillback/quillback/queue"
	"github.com/quillback/quillback/registry"
)

// reportFailures implements the §4.10 step-2 failure report: for every
// producer whose queue exposes cumulative drop/block counters, compute the
// delta since the last report and, if nonzero, forward a single
// human-readable line to Config.ErrorNotifier. Reallocation events are
// reported inline by transit.DrainProducer as they happen, not here.
func (b *Backend) reportFailures(producers []*registry.ProducerContext) {
	now := time.Now()
	for _, p := range producers {
		if fr, ok := p.Queue.(queue.FailureReporter); ok {
			b.reportQueueFailures(now, p, fr)
		}
	}
}

func (b *Backend) reportQueueFailures(now time.Time, p *registry.ProducerContext, fr queue.FailureReporter) {
	drops := fr.Drops()
	blocks := fr.Blocks()

	lastDrops, lastBlocks := b.failureCounts(p.ThreadID)
	deltaDrops := drops - lastDrops
	deltaBlocks := blocks - lastBlocks
	b.setFailureCounts(p.ThreadID, drops, blocks)

	if deltaDrops > 0 {
		b.metricsC.TrackDropped(deltaDrops)
		b.emitFailureLine(now, "Dropped %d log messages from thread %d", deltaDrops, p.ThreadID)
	}
	if deltaBlocks > 0 {
		b.metricsC.TrackBlocked(deltaBlocks)
		b.emitFailureLine(now, "%d blocking occurrences on thread %d", deltaBlocks, p.ThreadID)
	}
}

func (b *Backend) emitFailureLine(now time.Time, format string, args ...interface{}) {
	if b.cfg.ErrorNotifier == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	b.cfg.ErrorNotifier(fmt.Sprintf("%s INFO: %s", now.Format("15:04:05"), msg))
}

func (b *Backend) failureCounts(threadID uint64) (drops, blocks uint64) {
	b.failuresMu.Lock()
	defer b.failuresMu.Unlock()
	c := b.failures[threadID]
	return c.drops, c.blocks
}

func (b *Backend) setFailureCounts(threadID uint64, drops, blocks uint64) {
	b.failuresMu.Lock()
	defer b.failuresMu.Unlock()
	if b.failures == nil {
		b.failures = make(map[uint64]failureCount)
	}
	b.failures[threadID] = failureCount{drops: drops, blocks: blocks}
}

type failureCount struct {
	drops  uint64
	blocks uint64
}
