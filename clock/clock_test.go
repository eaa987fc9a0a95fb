package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertMonotoneForMonotoneInputs(t *testing.T) {
	c := New(time.Hour)
	prev := uint64(0)
	tsc := ReadTSC()
	for i := 0; i < 5; i++ {
		ns := c.Convert(tsc)
		assert.GreaterOrEqual(t, ns, prev)
		prev = ns
		tsc += uint64(time.Millisecond)
	}
}

func TestResyncDue(t *testing.T) {
	now := time.Now()
	clk := now
	c := newForTest(10*time.Millisecond, func() time.Time { return clk })
	assert.False(t, c.ResyncDue())

	clk = clk.Add(20 * time.Millisecond)
	assert.True(t, c.ResyncDue())

	c.Resync(0)
	assert.False(t, c.ResyncDue())
}

func TestResyncIntervalZeroNeverDue(t *testing.T) {
	c := New(0)
	assert.False(t, c.ResyncDue())
}

func TestHandleLazyInit(t *testing.T) {
	var h Handle
	assert.Nil(t, h.Load())
	assert.Equal(t, uint64(0), h.ConvertOrZero(12345))

	c := New(time.Second)
	h.StorePublish(c)
	require.NotNil(t, h.Load())
	assert.Equal(t, c.Convert(999), h.ConvertOrZero(999))
}
