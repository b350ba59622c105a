package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunsTimersInOrder(t *testing.T) {
	s := New()
	var order []string

	s.After(3*time.Second, func() { order = append(order, "c") })
	s.After(1*time.Second, func() { order = append(order, "a") })
	s.After(2*time.Second, func() { order = append(order, "b") })
	s.After(2*time.Second, func() { order = append(order, "b2") })

	fired := s.Advance(10 * time.Second)

	assert.Equal(t, 4, fired)
	assert.Equal(t, []string{"a", "b", "b2", "c"}, order)
	assert.Equal(t, 10*time.Second, s.Now())
	assert.Equal(t, 0, s.Pending())
}

func TestScheduler_AdvanceStopsAtTarget(t *testing.T) {
	s := New()
	ran := false
	s.After(5*time.Second, func() { ran = true })

	s.Advance(4 * time.Second)
	assert.False(t, ran)
	assert.Equal(t, 1, s.Pending())

	s.Advance(time.Second)
	assert.True(t, ran)
}

func TestScheduler_NowInsideCallback(t *testing.T) {
	s := New()
	var seen time.Duration
	s.After(1500*time.Millisecond, func() { seen = s.Now() })

	s.Advance(3 * time.Second)
	assert.Equal(t, 1500*time.Millisecond, seen)
}

func TestScheduler_CallbackCanReschedule(t *testing.T) {
	s := New()
	count := 0
	var tick func()
	tick = func() {
		count++
		s.After(time.Second, tick)
	}
	s.After(time.Second, tick)

	s.Advance(5 * time.Second)
	assert.Equal(t, 5, count)
	assert.Equal(t, 1, s.Pending())
}

func TestTimer_Stop(t *testing.T) {
	s := New()
	ran := false
	timer := s.After(time.Second, func() { ran = true })

	require.True(t, timer.Stop())
	assert.False(t, timer.Stop(), "second stop reports not pending")

	s.Advance(2 * time.Second)
	assert.False(t, ran)

	var nilTimer *Timer
	assert.False(t, nilTimer.Stop())
}

func TestTimer_StopFromAnotherCallback(t *testing.T) {
	s := New()
	ran := false
	victim := s.After(2*time.Second, func() { ran = true })
	s.After(time.Second, func() { victim.Stop() })

	s.Advance(3 * time.Second)
	assert.False(t, ran)
}

func TestScheduler_ZeroDelayRunsInSameAdvance(t *testing.T) {
	s := New()
	var order []int
	s.After(0, func() {
		order = append(order, 1)
		s.After(0, func() { order = append(order, 2) })
	})

	s.Advance(0)
	assert.Equal(t, []int{1, 2}, order)
}

func TestScheduler_Do(t *testing.T) {
	s := New()
	called := false
	s.Do(func() { called = true })
	assert.True(t, called)
}
