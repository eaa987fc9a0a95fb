package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewCollectorStartsAtZero(t *testing.T) {
	c := NewCollector()
	assert.Equal(t, uint64(0), c.MessageCount(1))
	snap := c.Snapshot(0, 0, nil)
	assert.Empty(t, snap.MessagesByLevel)
	assert.Equal(t, uint64(0), snap.MessagesDropped)
}

func TestTrackMessagePerLevel(t *testing.T) {
	c := NewCollector()
	for i := 0; i < 5; i++ {
		c.TrackMessage(2)
	}
	c.TrackMessage(1)

	assert.Equal(t, uint64(5), c.MessageCount(2))
	assert.Equal(t, uint64(1), c.MessageCount(1))
	assert.Equal(t, uint64(0), c.MessageCount(9))
}

func TestTrackDroppedAndBlocked(t *testing.T) {
	c := NewCollector()
	c.TrackDropped(5)
	c.TrackBlocked(2)

	snap := c.Snapshot(0, 0, nil)
	assert.Equal(t, uint64(5), snap.MessagesDropped)
	assert.Equal(t, uint64(2), snap.MessagesBlocked)
}

func TestTrackSinkError(t *testing.T) {
	c := NewCollector()
	c.TrackSinkError("file1")
	c.TrackSinkError("file1")
	c.TrackSinkError("nats1")

	snap := c.Snapshot(0, 0, nil)
	assert.Equal(t, uint64(2), snap.SinkErrors["file1"])
	assert.Equal(t, uint64(1), snap.SinkErrors["nats1"])
}

func TestTrackWriteTiming(t *testing.T) {
	c := NewCollector()
	c.TrackWrite(10 * time.Millisecond)
	c.TrackWrite(30 * time.Millisecond)

	snap := c.Snapshot(0, 0, nil)
	assert.Equal(t, 20*time.Millisecond, snap.AverageWriteTime)
	assert.Equal(t, 30*time.Millisecond, snap.MaxWriteTime)
}

func TestQueueUtilization(t *testing.T) {
	c := NewCollector()
	snap := c.Snapshot(25, 100, nil)
	assert.InDelta(t, 0.25, snap.QueueUtilization, 0.0001)
}

func TestResetClearsCounters(t *testing.T) {
	c := NewCollector()
	c.TrackMessage(1)
	c.TrackDropped(3)
	c.TrackSinkError("file1")
	c.Reset()

	snap := c.Snapshot(0, 0, nil)
	assert.Empty(t, snap.MessagesByLevel)
	assert.Equal(t, uint64(0), snap.MessagesDropped)
	assert.Empty(t, snap.SinkErrors)
}

func TestConcurrentTrackMessage(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.TrackMessage(4)
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(50), c.MessageCount(4))
}
