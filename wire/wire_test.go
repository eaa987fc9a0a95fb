package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{Timestamp: 123456789, MetadataID: 1, LoggerID: 2, DecoderID: 3}
	buf := make([]byte, HeaderSize()+16)
	n, err := EncodeHeader(buf, h)
	require.NoError(t, err)
	assert.Equal(t, HeaderSize(), n)

	got, rest, err := DecodeHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, h, got)
	assert.Len(t, rest, 16)
}

func TestDecodeHeaderShort(t *testing.T) {
	_, _, err := DecodeHeader(make([]byte, HeaderSize()-1))
	assert.ErrorIs(t, err, ErrShortRecord)
}

func TestFlushTailRoundTrip(t *testing.T) {
	buf := make([]byte, flushTailSize)
	n, err := EncodeFlushTail(buf, 42)
	require.NoError(t, err)
	assert.Equal(t, flushTailSize, n)

	id, rest, err := DecodeFlushTail(buf)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)
	assert.Empty(t, rest)
}

func TestDynamicLevelTail(t *testing.T) {
	lvl, err := DecodeDynamicLevelTail([]byte{byte(Warning)})
	require.NoError(t, err)
	assert.Equal(t, Warning, lvl)

	_, err = DecodeDynamicLevelTail(nil)
	assert.ErrorIs(t, err, ErrShortRecord)
}

func TestBacktraceCapacityRoundTrip(t *testing.T) {
	buf := make([]byte, backtraceTailSize)
	_, err := EncodeBacktraceCapacity(buf, 64)
	require.NoError(t, err)

	cap, err := DecodeBacktraceCapacity(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(64), cap)
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "INFO", Info.String())
	assert.Equal(t, "DYNAMIC", Dynamic.String())
	assert.Equal(t, "NONE", None.String())
}
