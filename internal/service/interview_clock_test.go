package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockSelfStopLeavesNewerEntryAlone(t *testing.T) {
	c := NewInterviewClock(newTestStore(), nil)
	newer := make(chan struct{})
	c.running["c1"] = newer

	// 早一代循环退场时不得注销（更不得关闭）换上的新表
	older := make(chan struct{})
	c.stopOwn("c1", older)

	c.mu.Lock()
	cur, ok := c.running["c1"]
	c.mu.Unlock()
	require.True(t, ok)
	assert.True(t, cur == newer)

	c.stopOwn("c1", newer)
	c.mu.Lock()
	_, ok = c.running["c1"]
	c.mu.Unlock()
	assert.False(t, ok)
}

func TestClockLoopSelfStopsWhenStageLeavesRunning(t *testing.T) {
	store := newTestStore()
	addRunningQuestion(t, store, "c1", "q1", 600)

	c := NewInterviewClock(store, nil)
	c.interval = 5 * time.Millisecond
	c.Start("c1")

	store.Pause("c1")

	require.Eventually(t, func() bool {
		c.mu.Lock()
		_, ok := c.running["c1"]
		c.mu.Unlock()
		return !ok
	}, time.Second, 5*time.Millisecond)
}
