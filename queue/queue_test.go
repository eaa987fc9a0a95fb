package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundedQueuePushAndRead(t *testing.T) {
	q := NewBoundedQueue(32, DropNewest)
	require.NoError(t, q.Push([]byte("hello")))
	require.False(t, q.Empty())

	data, ok := q.PrepareRead()
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), data)

	q.FinishRead(len(data))
	q.CommitRead()
	assert.True(t, q.Empty())
}

func TestBoundedQueueDropsWhenFull(t *testing.T) {
	q := NewBoundedQueue(4, DropNewest)
	require.NoError(t, q.Push([]byte("ab")))
	require.NoError(t, q.Push([]byte("toolong-record")))
	assert.Equal(t, uint64(1), q.Drops())
}

func TestBoundedQueueBlockUntilSpace(t *testing.T) {
	q := NewBoundedQueue(4, Block)
	require.NoError(t, q.Push([]byte("abcd")))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		require.NoError(t, q.Push([]byte("cd")))
	}()

	data, ok := q.PrepareRead()
	require.True(t, ok)
	q.FinishRead(len(data))
	q.CommitRead()

	wg.Wait()
	assert.GreaterOrEqual(t, q.Blocks(), uint64(0))
}

func TestUnboundedQueueGrowsAndReports(t *testing.T) {
	q := NewUnboundedQueue(4)
	big := make([]byte, 100)
	require.NoError(t, q.Push(big))

	events := q.DrainAllocationEvents()
	require.NotEmpty(t, events)
	assert.Less(t, events[0].OldCapacity, events[0].NewCapacity)

	data, ok := q.PrepareRead()
	require.True(t, ok)
	assert.Len(t, data, 100)
	q.FinishRead(100)
	q.CommitRead()
	assert.True(t, q.Empty())
}

func TestUnboundedQueueNoEventsWhenNoGrowth(t *testing.T) {
	q := NewUnboundedQueue(1024)
	require.NoError(t, q.Push([]byte("small")))
	assert.Empty(t, q.DrainAllocationEvents())
}
