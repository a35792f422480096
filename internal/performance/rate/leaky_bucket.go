// Package rate schedules iteration start times for arrival-rate executors.
package rate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// LeakyBucket hands out iteration start times spaced 1/rate apart.
//
// The bucket keeps a virtual schedule: each call to Next claims the next
// slot. When callers fall behind, at most maxBurst missed slots are
// replayed immediately and the rest are dropped, so a stalled consumer
// never triggers an unbounded burst.
//
// LeakyBucket is safe for concurrent use.
type LeakyBucket struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
	maxBurst int

	scheduled atomic.Int64
	dropped   atomic.Int64
	waited    atomic.Int64
}

// NewLeakyBucket creates a bucket emitting rate iterations per second with
// no catch-up burst. A non-positive rate is treated as 1/s.
func NewLeakyBucket(rate float64) *LeakyBucket {
	return NewLeakyBucketWithBurst(rate, 1)
}

// NewLeakyBucketWithBurst is NewLeakyBucket with up to maxBurst overdue slots
// replayed back to back.
func NewLeakyBucketWithBurst(rate float64, maxBurst int) *LeakyBucket {
	if maxBurst < 1 {
		maxBurst = 1
	}
	return &LeakyBucket{
		interval: intervalFor(rate),
		next:     time.Now(),
		maxBurst: maxBurst,
	}
}

func intervalFor(rate float64) time.Duration {
	if rate <= 0 {
		rate = 1
	}
	return time.Duration(float64(time.Second) / rate)
}

// Next claims the next slot and returns its start time. The time is in the
// past or now when the caller is behind schedule.
func (lb *LeakyBucket) Next() time.Time {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	now := time.Now()

	// Drop slots older than the burst window.
	if window := time.Duration(lb.maxBurst) * lb.interval; now.Sub(lb.next) > window {
		missed := int64(now.Sub(lb.next)/lb.interval) - int64(lb.maxBurst)
		if missed > 0 {
			lb.dropped.Add(missed)
		}
		lb.next = now.Add(-window + lb.interval)
	}

	slot := lb.next
	lb.next = slot.Add(lb.interval)
	lb.scheduled.Add(1)
	if wait := slot.Sub(now); wait > 0 {
		lb.waited.Add(int64(wait))
	}
	return slot
}

// Wait blocks until the next slot or until ctx is done.
func (lb *LeakyBucket) Wait(ctx context.Context) error {
	wait := time.Until(lb.Next())
	if wait <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SetRate changes the rate. The schedule restarts from now so a rate change
// never replays slots computed under the old rate.
func (lb *LeakyBucket) SetRate(rate float64) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.interval = intervalFor(rate)
	lb.next = time.Now()
}

// GetRate returns the current rate in iterations per second.
func (lb *LeakyBucket) GetRate() float64 {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return float64(time.Second) / float64(lb.interval)
}

// Stats returns counters describing the bucket's operation so far.
func (lb *LeakyBucket) Stats() LeakyBucketStats {
	return LeakyBucketStats{
		Rate:            lb.GetRate(),
		TotalIterations: lb.scheduled.Load(),
		Dropped:         lb.dropped.Load(),
		TotalWaitTime:   time.Duration(lb.waited.Load()),
	}
}

// LeakyBucketStats contains statistics about the leaky bucket.
type LeakyBucketStats struct {
	Rate            float64       `json:"rate"`
	TotalIterations int64         `json:"totalIterations"`
	Dropped         int64         `json:"dropped"`
	TotalWaitTime   time.Duration `json:"totalWaitTime"`
}
