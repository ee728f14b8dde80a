package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualAdvance(t *testing.T) {
	m := NewManual()
	var fast, slow int
	m.Every(time.Second, func() { fast++ })
	h := m.Every(3*time.Second, func() { slow++ })

	m.Advance(2500 * time.Millisecond)
	assert.Equal(t, 2, fast)
	assert.Equal(t, 0, slow)

	m.Advance(500 * time.Millisecond)
	assert.Equal(t, 3, fast)
	assert.Equal(t, 1, slow)

	h.Stop()
	h.Stop()
	m.Advance(10 * time.Second)
	assert.Equal(t, 13, fast)
	assert.Equal(t, 1, slow)
	assert.Equal(t, 1, m.Len())
}

func TestManualStopFromInsideJob(t *testing.T) {
	m := NewManual()
	var calls int
	var h Handle
	h = m.Every(time.Second, func() {
		calls++
		if calls == 2 {
			h.Stop()
		}
	})
	m.Advance(5 * time.Second)
	assert.Equal(t, 2, calls)
	assert.Zero(t, m.Len())
}

func TestManualIgnoresNonPositiveInterval(t *testing.T) {
	m := NewManual()
	h := m.Every(0, func() { t.Fatal("must not fire") })
	m.Advance(time.Hour)
	h.Stop()
	assert.Zero(t, m.Len())
}

func TestTicker(t *testing.T) {
	tk := NewTicker()
	defer tk.Close()

	var n atomic.Int32
	h := tk.Every(5*time.Millisecond, func() { n.Add(1) })
	require.Eventually(t, func() bool { return n.Load() >= 3 }, time.Second, time.Millisecond)

	h.Stop()
	assert.Zero(t, tk.Len())
	stopped := n.Load()
	time.Sleep(30 * time.Millisecond)
	// at most one tick may race with Stop
	assert.LessOrEqual(t, n.Load(), stopped+1)
}

func TestTickerClose(t *testing.T) {
	tk := NewTicker()
	var n atomic.Int32
	tk.Every(time.Millisecond, func() { n.Add(1) })
	tk.Every(time.Millisecond, func() { n.Add(1) })
	tk.Close()
	tk.Close()

	after := n.Load()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, after, n.Load())

	h := tk.Every(time.Millisecond, func() { n.Add(1) })
	assert.NotNil(t, h)
	assert.Zero(t, tk.Len())
}
