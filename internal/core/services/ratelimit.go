package services

import (
	"context"
	"sync"
	"time"
)

// WindowLimiter throttles post processing with dual sliding windows: a
// per-minute and a per-hour budget. Within a window, acquires pass
// immediately until the budget is exhausted; further acquires block until
// the window resets. A limit of 0 disables that window.
//
// This is deliberately not a token bucket: bursts up to the full budget are
// allowed at window start.
type WindowLimiter struct {
	perMinute int
	perHour   int

	mu                sync.Mutex
	minuteWindowStart time.Time
	hourWindowStart   time.Time
	minuteCount       int
	hourCount         int
}

// NewWindowLimiter creates a limiter with the given budgets.
// Both zero means unlimited.
func NewWindowLimiter(perMinute, perHour int) *WindowLimiter {
	now := time.Now()
	return &WindowLimiter{
		perMinute:         perMinute,
		perHour:           perHour,
		minuteWindowStart: now,
		hourWindowStart:   now,
	}
}

// Acquire blocks until a slot is available in both windows, or until ctx is
// cancelled. The lock is never held while sleeping.
func (l *WindowLimiter) Acquire(ctx context.Context) error {
	if l.perMinute == 0 && l.perHour == 0 {
		return nil
	}

	for {
		l.mu.Lock()
		now := time.Now()

		if now.Sub(l.minuteWindowStart) >= time.Minute {
			l.minuteWindowStart = now
			l.minuteCount = 0
		}
		if now.Sub(l.hourWindowStart) >= time.Hour {
			l.hourWindowStart = now
			l.hourCount = 0
		}

		var wait time.Duration
		if l.perMinute > 0 && l.minuteCount >= l.perMinute {
			if d := time.Minute - now.Sub(l.minuteWindowStart); d > wait {
				wait = d
			}
		}
		if l.perHour > 0 && l.hourCount >= l.perHour {
			if d := time.Hour - now.Sub(l.hourWindowStart); d > wait {
				wait = d
			}
		}

		if wait <= 0 {
			if l.perMinute > 0 {
				l.minuteCount++
			}
			if l.perHour > 0 {
				l.hourCount++
			}
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		// Re-evaluate: another goroutine may have consumed the freed slot.
	}
}
