package rate

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestNewLeakyBucket(t *testing.T) {
	tests := []struct {
		name     string
		rate     float64
		expected float64
	}{
		{"positive rate", 100.0, 100.0},
		{"zero rate defaults to 1", 0.0, 1.0},
		{"negative rate defaults to 1", -10.0, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lb := NewLeakyBucket(tt.rate)
			if lb.GetRate() != tt.expected {
				t.Errorf("GetRate() = %v, want %v", lb.GetRate(), tt.expected)
			}
		})
	}
}

func TestLeakyBucket_Next_ImmediateFirst(t *testing.T) {
	lb := NewLeakyBucket(100.0)

	if wait := time.Until(lb.Next()); wait > 5*time.Millisecond {
		t.Errorf("First Next() should be immediate, got delay of %v", wait)
	}
}

func TestLeakyBucket_Next_Spacing(t *testing.T) {
	lb := NewLeakyBucket(100.0) // 10ms apart

	first := lb.Next()
	second := lb.Next()
	third := lb.Next()

	if got := second.Sub(first); got != 10*time.Millisecond {
		t.Errorf("second - first = %v, want 10ms", got)
	}
	if got := third.Sub(second); got != 10*time.Millisecond {
		t.Errorf("third - second = %v, want 10ms", got)
	}
}

func TestLeakyBucket_DropsStaleSlots(t *testing.T) {
	lb := NewLeakyBucket(100.0)
	_ = lb.Next()

	time.Sleep(60 * time.Millisecond)

	// Without burst only one overdue slot is replayed.
	first := lb.Next()
	second := lb.Next()
	if time.Until(first) > time.Millisecond {
		t.Errorf("overdue slot should be immediate, got %v", time.Until(first))
	}
	if wait := time.Until(second); wait < 5*time.Millisecond {
		t.Errorf("slot after catch-up should be in the future, got %v", wait)
	}
	if lb.Stats().Dropped == 0 {
		t.Error("expected stale slots to be counted as dropped")
	}
}

func TestLeakyBucket_Burst(t *testing.T) {
	lb := NewLeakyBucketWithBurst(100.0, 3)
	_ = lb.Next()

	time.Sleep(80 * time.Millisecond)

	immediate := 0
	for i := 0; i < 5; i++ {
		if !lb.Next().After(time.Now()) {
			immediate++
		}
	}
	if immediate != 3 {
		t.Errorf("immediate slots after stall = %d, want 3", immediate)
	}
}

func TestLeakyBucket_Wait_RespectsContext(t *testing.T) {
	lb := NewLeakyBucket(1.0)
	_ = lb.Next()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := lb.Wait(ctx)
	elapsed := time.Since(start)

	if err != context.DeadlineExceeded {
		t.Errorf("Wait() error = %v, want DeadlineExceeded", err)
	}
	if elapsed > 100*time.Millisecond {
		t.Errorf("Wait() took %v, should return shortly after cancellation", elapsed)
	}
}

func TestLeakyBucket_Wait_Rate(t *testing.T) {
	lb := NewLeakyBucket(200.0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 21; i++ {
		if err := lb.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	elapsed := time.Since(start)

	// 21 waits at 200/s span 20 intervals of 5ms.
	if elapsed < 90*time.Millisecond || elapsed > 200*time.Millisecond {
		t.Errorf("21 waits took %v, want ~100ms", elapsed)
	}
}

func TestLeakyBucket_SetRate(t *testing.T) {
	lb := NewLeakyBucket(10.0)
	lb.SetRate(50.0)

	if lb.GetRate() != 50.0 {
		t.Errorf("GetRate() = %v, want 50", lb.GetRate())
	}

	first := lb.Next()
	second := lb.Next()
	if got := second.Sub(first); got != 20*time.Millisecond {
		t.Errorf("spacing after SetRate = %v, want 20ms", got)
	}

	lb.SetRate(0)
	if lb.GetRate() != 1.0 {
		t.Errorf("GetRate() after SetRate(0) = %v, want 1", lb.GetRate())
	}
}

func TestLeakyBucket_Concurrent(t *testing.T) {
	lb := NewLeakyBucket(1000.0)

	var mu sync.Mutex
	seen := make(map[time.Time]bool)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				slot := lb.Next()
				mu.Lock()
				seen[slot] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	stats := lb.Stats()
	if stats.TotalIterations != 100 {
		t.Errorf("TotalIterations = %d, want 100", stats.TotalIterations)
	}
	if len(seen) < 90 {
		t.Errorf("distinct slots = %d, want close to 100", len(seen))
	}
}
