package glowroot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSystemTickerMonotonic(t *testing.T) {
	a := SystemTicker.NanoTime()
	time.Sleep(time.Millisecond)
	b := SystemTicker.NanoTime()
	assert.Greater(t, b, a)
}

func TestTestTickerAdvance(t *testing.T) {
	tk := NewTestTicker(1000, 10)
	assert.Equal(t, int64(1000), tk.NanoTime())
	assert.Equal(t, int64(10), tk.MillisTime())

	tk.Advance(5 * time.Millisecond)
	assert.Equal(t, int64(1000+5*int64(time.Millisecond)), tk.NanoTime())
	assert.Equal(t, int64(15), tk.MillisTime())
}
