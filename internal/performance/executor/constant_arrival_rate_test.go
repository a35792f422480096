package executor_test

import (
	"context"
	"testing"
	"time"

	"github.com/wesleyorama2/shortload/internal/performance/executor"
)

func TestConstantArrivalRate_Init(t *testing.T) {
	t.Run("defaults pool sizes", func(t *testing.T) {
		cfg := &executor.Config{Type: executor.TypeConstantArrivalRate, Rate: 10, Duration: time.Second}
		if err := executor.NewConstantArrivalRate().Init(context.Background(), cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		if cfg.PreAllocatedVUs != 1 {
			t.Errorf("PreAllocatedVUs = %d, want 1", cfg.PreAllocatedVUs)
		}
		if cfg.MaxVUs != 1 {
			t.Errorf("MaxVUs = %d, want 1", cfg.MaxVUs)
		}
	})

	t.Run("max raised to preallocated", func(t *testing.T) {
		cfg := &executor.Config{Type: executor.TypeConstantArrivalRate, Rate: 10, Duration: time.Second, PreAllocatedVUs: 5, MaxVUs: 2}
		_ = executor.NewConstantArrivalRate().Init(context.Background(), cfg)
		if cfg.MaxVUs != 5 {
			t.Errorf("MaxVUs = %d, want 5", cfg.MaxVUs)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		for _, cfg := range []*executor.Config{
			{Type: executor.TypeConstantVUs, Rate: 10, Duration: time.Second},
			{Type: executor.TypeConstantArrivalRate, Duration: time.Second},
			{Type: executor.TypeConstantArrivalRate, Rate: 10},
		} {
			if err := executor.NewConstantArrivalRate().Init(context.Background(), cfg); err == nil {
				t.Errorf("Init(%+v) expected error", cfg)
			}
		}
	})
}

func TestConstantArrivalRate_Run(t *testing.T) {
	scheduler, engine, c := newTestScheduler(t, 0)

	e := executor.NewConstantArrivalRate()
	cfg := &executor.Config{
		Type:            executor.TypeConstantArrivalRate,
		Rate:            50,
		Duration:        500 * time.Millisecond,
		PreAllocatedVUs: 2,
		MaxVUs:          5,
	}
	if err := e.Init(context.Background(), cfg); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := e.Run(context.Background(), scheduler, engine); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// 50/s for 500ms is about 25 iterations.
	stats := e.GetStats()
	if stats.Iterations < 15 || stats.Iterations > 30 {
		t.Errorf("Iterations = %d, want about 25", stats.Iterations)
	}
	if c.completed.Load() != stats.Iterations {
		t.Errorf("completed = %d, iterations = %d", c.completed.Load(), stats.Iterations)
	}
	if stats.TargetRate != 50 {
		t.Errorf("TargetRate = %v, want 50", stats.TargetRate)
	}
	if engine.GetActiveVUs() != 0 {
		t.Errorf("engine active VUs after run = %d, want 0", engine.GetActiveVUs())
	}
}

func TestConstantArrivalRate_PoolGrowsToMax(t *testing.T) {
	// Each iteration holds its VU for 200ms, so 50/s needs about 10 VUs.
	scheduler, engine, _ := newTestScheduler(t, 200*time.Millisecond)

	e := executor.NewConstantArrivalRate()
	_ = e.Init(context.Background(), &executor.Config{
		Type:            executor.TypeConstantArrivalRate,
		Rate:            50,
		Duration:        400 * time.Millisecond,
		PreAllocatedVUs: 1,
		MaxVUs:          4,
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(context.Background(), scheduler, engine)
	}()

	time.Sleep(250 * time.Millisecond)
	if got := e.GetActiveVUs(); got != 4 {
		t.Errorf("GetActiveVUs() = %d, want 4", got)
	}
	if got := engine.GetActiveVUs(); got != 4 {
		t.Errorf("engine active VUs = %d, want 4", got)
	}
	<-done

	if stats := e.GetStats(); stats.Dropped == 0 {
		t.Error("Dropped = 0, want slots dropped while the pool was exhausted")
	}
}

func TestConstantArrivalRate_Stop(t *testing.T) {
	scheduler, engine, _ := newTestScheduler(t, 0)

	e := executor.NewConstantArrivalRate()
	_ = e.Init(context.Background(), &executor.Config{
		Type:     executor.TypeConstantArrivalRate,
		Rate:     20,
		Duration: 10 * time.Second,
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(context.Background(), scheduler, engine)
	}()

	time.Sleep(100 * time.Millisecond)
	if err := e.Stop(context.Background()); err != nil {
		t.Errorf("Stop() error = %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after Stop()")
	}
	if e.GetProgress() != 1.0 {
		t.Errorf("GetProgress() after stop = %v, want 1.0", e.GetProgress())
	}
}
