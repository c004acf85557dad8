package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThrottle_WithinAllowance(t *testing.T) {
	l := New()
	now := time.Now()

	l.Tick()
	l.Tick()
	l.Consume(2)

	assert.Equal(t, time.Duration(0), l.Throttle(now))
	assert.Equal(t, time.Duration(0), l.Delay(now))
}

func TestThrottle_BacklogHold(t *testing.T) {
	l := New()
	now := time.Now()

	l.Tick()
	l.Consume(4)

	assert.Equal(t, 3*time.Second, l.Throttle(now))
	assert.Equal(t, 3*time.Second, l.Delay(now))
	assert.Equal(t, time.Duration(0), l.Delay(now.Add(3*time.Second)))
}

func TestThrottle_HoldCapped(t *testing.T) {
	l := New()
	now := time.Now()

	l.Consume(20)

	assert.Equal(t, 5*time.Second, l.Throttle(now))
}

func TestThrottle_ResetsCounters(t *testing.T) {
	l := New()
	now := time.Now()

	l.Consume(4)
	l.Throttle(now)

	// a fresh cycle within the allowance carries no residue from the previous one
	l.Tick()
	l.Consume(1)
	assert.Equal(t, time.Duration(0), l.Throttle(now.Add(5*time.Second)))
}

func TestBackoff(t *testing.T) {
	l := New()
	now := time.Now()

	l.Tick()
	l.Consume(10)
	l.Backoff(now)

	assert.Equal(t, 3*time.Second, l.Delay(now))
	// counters were fully reset, not just the backlog
	assert.Equal(t, time.Duration(0), l.Throttle(now))
}

func TestHold_NeverShortens(t *testing.T) {
	l := New()
	now := time.Now()

	l.Consume(20)
	l.Throttle(now) // 5s hold
	l.Backoff(now)  // 3s hold must not shorten the standing one

	assert.Equal(t, 5*time.Second, l.Delay(now))
}
