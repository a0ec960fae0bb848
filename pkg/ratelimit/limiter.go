package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Interval spaces calls to Wait at least Every apart. The crawler uses it for
// the courtesy delay between page requests.
type Interval struct {
	Every time.Duration

	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewInterval creates a pacer; d <= 0 disables pacing
func NewInterval(d time.Duration) *Interval {
	return &Interval{Every: d, now: time.Now}
}

// Wait blocks until Every has passed since the previous Wait returned, or
// ctx is cancelled. The first call returns immediately.
func (iv *Interval) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	iv.mu.Lock()
	var delay time.Duration
	if !iv.last.IsZero() && iv.Every > 0 {
		delay = iv.Every - iv.now().Sub(iv.last)
	}
	iv.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	iv.mu.Lock()
	iv.last = iv.now()
	iv.mu.Unlock()
	return nil
}

// Reset forgets the previous call so the next Wait returns immediately
func (iv *Interval) Reset() {
	iv.mu.Lock()
	iv.last = time.Time{}
	iv.mu.Unlock()
}
