// Package ratelimit tracks the exchange API request allowance. The limiter never
// sleeps; it reports how long the caller must stay idle, so the owning loop
// can wait inside its own select and stay cancellable.
package ratelimit

import "time"

const (
	// longest throttle hold when the request backlog piles up
	maxThrottle = 5 * time.Second
	// hold applied after a failed fetch, alongside a full counter reset
	failureHold = 3 * time.Second
)

// Limiter accrues one request of allowance per tick and counts requests
// actually made. It is owned by a single goroutine and is not safe for
// concurrent use.
type Limiter struct {
	allowance    int
	consumed     int
	nextEligible time.Time
}

func New() *Limiter {
	return &Limiter{}
}

// Tick accrues one request of allowance. Called on the scheduler's 1-second
// cadence.
func (l *Limiter) Tick() {
	l.allowance++
}

// Consume records n requests made during the current cycle.
func (l *Limiter) Consume(n int) {
	l.consumed += n
}

// Throttle settles the cycle's request accounting: both counters reset, and
// if consumption outran the accrued allowance the limiter becomes ineligible
// for one second per excess request, capped at maxThrottle. Returns the hold
// applied.
func (l *Limiter) Throttle(now time.Time) time.Duration {
	backlog := l.consumed - l.allowance
	l.consumed = 0
	l.allowance = 0
	if backlog <= 0 {
		return 0
	}

	hold := time.Duration(backlog) * time.Second
	if hold > maxThrottle {
		hold = maxThrottle
	}
	l.setHold(now, hold)
	return hold
}

// Backoff applies the fetch-failure policy: full counter reset plus a fixed
// hold before the next cycle may start.
func (l *Limiter) Backoff(now time.Time) {
	l.consumed = 0
	l.allowance = 0
	l.setHold(now, failureHold)
}

// Delay returns how long the caller must wait before starting the next
// cycle, zero when eligible now.
func (l *Limiter) Delay(now time.Time) time.Duration {
	if now.Before(l.nextEligible) {
		return l.nextEligible.Sub(now)
	}
	return 0
}

func (l *Limiter) setHold(now time.Time, hold time.Duration) {
	until := now.Add(hold)
	if until.After(l.nextEligible) {
		l.nextEligible = until
	}
}
