package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Interval enforces a minimum gap between successful calls, keyed by
// source name. Callers Wait before an upstream request and Advance only
// after the request succeeded, so a failing upstream can be retried
// immediately without burning the quota window.
type Interval struct {
	mu        sync.Mutex
	intervals map[string]time.Duration
	last      map[string]time.Time
	now       func() time.Time
}

func NewInterval() *Interval {
	return &Interval{
		intervals: make(map[string]time.Duration),
		last:      make(map[string]time.Time),
		now:       time.Now,
	}
}

// SetMinInterval sets the minimum spacing between successful calls for
// the given source. A zero or negative interval disables limiting.
func (l *Interval) SetMinInterval(source string, d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if d <= 0 {
		delete(l.intervals, source)
		return
	}
	l.intervals[source] = d
}

// Wait blocks until the configured interval since the last successful
// call to source has elapsed, or the context is cancelled.
func (l *Interval) Wait(ctx context.Context, source string) error {
	for {
		l.mu.Lock()
		d, ok := l.intervals[source]
		if !ok {
			l.mu.Unlock()
			return ctx.Err()
		}
		remaining := d - l.now().Sub(l.last[source])
		l.mu.Unlock()

		if remaining <= 0 {
			return ctx.Err()
		}

		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Advance records a successful call for source, starting a new window.
func (l *Interval) Advance(source string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last[source] = l.now()
}
