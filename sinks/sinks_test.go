package sinks

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillback/quillback/wire"
)

func TestMemorySinkCapturesWritesAndFilters(t *testing.T) {
	s := NewMemorySink(wire.Warning)
	assert.False(t, s.ApplyFilters(wire.Metadata{}, 0, 0, "", "", wire.Info, ""))
	assert.True(t, s.ApplyFilters(wire.Metadata{}, 0, 0, "", "", wire.Error, ""))

	require.NoError(t, s.Write(wire.Metadata{}, 100, 1, "t1", "root", wire.Error, "boom", nil))
	entries := s.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "boom", entries[0].FormattedMsg)

	require.NoError(t, s.Flush())
	assert.Equal(t, 1, s.FlushCount())

	s.RunPeriodicTasks()
	assert.Equal(t, 1, s.PeriodicCount())
}

func TestFileSinkWritesAndFlushes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.log")

	s, err := NewFileSink(path, wire.Info)
	require.NoError(t, err)

	require.NoError(t, s.Write(wire.Metadata{}, 0, 0, "t1", "root", wire.Info, "hello", nil))
	require.NoError(t, s.Flush())
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestFileSinkBatchedCoalescesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batched.log")

	s, err := NewFileSinkBatched(path, wire.Info, 1024, 100, 10*time.Millisecond)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Write(wire.Metadata{}, 0, 0, "t1", "root", wire.Info, "line", nil))
	}
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 5, countOccurrences(string(data), "line\n"))
}

func countOccurrences(s, sub string) int {
	count := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			count++
			i += len(sub) - 1
		}
	}
	return count
}

func TestFileSinkAppliesLevelFilter(t *testing.T) {
	s := &FileSink{minLevel: wire.Error}
	assert.False(t, s.ApplyFilters(wire.Metadata{}, 0, 0, "", "", wire.Warning, ""))
	assert.True(t, s.ApplyFilters(wire.Metadata{}, 0, 0, "", "", wire.Critical, ""))
}
