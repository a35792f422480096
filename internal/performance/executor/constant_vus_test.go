package executor_test

import (
	"context"
	"testing"
	"time"

	"github.com/wesleyorama2/shortload/internal/performance"
	"github.com/wesleyorama2/shortload/internal/performance/executor"
	"github.com/wesleyorama2/shortload/internal/performance/metrics"
)

func TestConstantVUs_Type(t *testing.T) {
	e := executor.NewConstantVUs()
	if e.Type() != executor.TypeConstantVUs {
		t.Errorf("Type() = %v, want %v", e.Type(), executor.TypeConstantVUs)
	}
}

func TestConstantVUs_Init(t *testing.T) {
	tests := []struct {
		name    string
		config  *executor.Config
		wantErr bool
	}{
		{"valid", &executor.Config{Type: executor.TypeConstantVUs, VUs: 10, Duration: time.Minute}, false},
		{"wrong type", &executor.Config{Type: executor.TypeRampingVUs, VUs: 10, Duration: time.Minute}, true},
		{"zero vus", &executor.Config{Type: executor.TypeConstantVUs, Duration: time.Minute}, true},
		{"negative duration", &executor.Config{Type: executor.TypeConstantVUs, VUs: 1, Duration: -time.Minute}, true},
		{
			"with pacing",
			&executor.Config{Type: executor.TypeConstantVUs, VUs: 5, Duration: time.Second, Pacing: &executor.PacingConfig{Type: executor.PacingConstant, Duration: 100 * time.Millisecond}},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := executor.NewConstantVUs().Init(context.Background(), tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("Init() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConstantVUs_Run_Basic(t *testing.T) {
	scheduler, engine, c := newTestScheduler(t, 0)

	e := executor.NewConstantVUs()
	cfg := &executor.Config{
		Type:     executor.TypeConstantVUs,
		VUs:      2,
		Duration: 300 * time.Millisecond,
		Pacing:   &executor.PacingConfig{Type: executor.PacingConstant, Duration: 10 * time.Millisecond},
	}
	if err := e.Init(context.Background(), cfg); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	start := time.Now()
	if err := e.Run(context.Background(), scheduler, engine); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < 250*time.Millisecond || elapsed > time.Second {
		t.Errorf("Run() elapsed = %v, want ~300ms", elapsed)
	}
	if c.completed.Load() < 2 {
		t.Errorf("completed = %d, want at least 2", c.completed.Load())
	}

	stats := e.GetStats()
	if stats.Iterations < 2 {
		t.Errorf("Iterations = %d, want at least 2", stats.Iterations)
	}
	if stats.TargetVUs != 2 {
		t.Errorf("TargetVUs = %d, want 2", stats.TargetVUs)
	}
	if e.GetActiveVUs() != 0 {
		t.Errorf("GetActiveVUs() after run = %d, want 0", e.GetActiveVUs())
	}
	if engine.GetActiveVUs() != 0 {
		t.Errorf("engine active VUs after run = %d, want 0", engine.GetActiveVUs())
	}
	if e.GetProgress() != 1.0 {
		t.Errorf("GetProgress() after run = %v, want 1.0", e.GetProgress())
	}
}

func TestConstantVUs_ProfileWaitThrottles(t *testing.T) {
	scheduler, engine, c := newTestScheduler(t, 0)

	e := executor.NewConstantVUs()
	cfg := &executor.Config{
		Type:        executor.TypeConstantVUs,
		VUs:         1,
		Duration:    300 * time.Millisecond,
		DefaultWait: performance.WaitRange{Min: 100 * time.Millisecond, Max: 100 * time.Millisecond},
	}
	if err := e.Init(context.Background(), cfg); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	_ = e.Run(context.Background(), scheduler, engine)

	// One task, then a 100ms wait each time: about three tasks in 300ms.
	if got := c.started.Load(); got < 2 || got > 4 {
		t.Errorf("started = %d, want about 3", got)
	}
}

func TestConstantVUs_GracefulStop(t *testing.T) {
	t.Run("in-flight iterations finish", func(t *testing.T) {
		scheduler, engine, c := newTestScheduler(t, 200*time.Millisecond)

		e := executor.NewConstantVUs()
		cfg := &executor.Config{
			Type:         executor.TypeConstantVUs,
			VUs:          2,
			Duration:     50 * time.Millisecond,
			GracefulStop: 2 * time.Second,
		}
		_ = e.Init(context.Background(), cfg)
		_ = e.Run(context.Background(), scheduler, engine)

		if c.cancelled.Load() != 0 {
			t.Errorf("cancelled = %d, want 0", c.cancelled.Load())
		}
		if c.completed.Load() != 2 {
			t.Errorf("completed = %d, want 2", c.completed.Load())
		}
	})

	t.Run("iterations cancelled after timeout", func(t *testing.T) {
		scheduler, engine, c := newTestScheduler(t, 5*time.Second)

		e := executor.NewConstantVUs()
		cfg := &executor.Config{
			Type:         executor.TypeConstantVUs,
			VUs:          2,
			Duration:     50 * time.Millisecond,
			GracefulStop: 100 * time.Millisecond,
		}
		_ = e.Init(context.Background(), cfg)

		start := time.Now()
		_ = e.Run(context.Background(), scheduler, engine)
		if elapsed := time.Since(start); elapsed > 2*time.Second {
			t.Errorf("Run() elapsed = %v, want well under the task duration", elapsed)
		}
		if c.cancelled.Load() != 2 {
			t.Errorf("cancelled = %d, want 2", c.cancelled.Load())
		}
	})
}

func TestConstantVUs_Stop(t *testing.T) {
	scheduler, engine, _ := newTestScheduler(t, 0)

	e := executor.NewConstantVUs()
	cfg := &executor.Config{
		Type:     executor.TypeConstantVUs,
		VUs:      2,
		Duration: 10 * time.Second,
		Pacing:   &executor.PacingConfig{Type: executor.PacingConstant, Duration: 10 * time.Millisecond},
	}
	_ = e.Init(context.Background(), cfg)

	done := make(chan error, 1)
	go func() {
		done <- e.Run(context.Background(), scheduler, engine)
	}()

	time.Sleep(100 * time.Millisecond)
	if err := e.Stop(context.Background()); err != nil {
		t.Errorf("Stop() error = %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after Stop()")
	}
}

func TestConstantVUs_Stop_BeforeRun(t *testing.T) {
	e := executor.NewConstantVUs()
	_ = e.Init(context.Background(), &executor.Config{Type: executor.TypeConstantVUs, VUs: 1, Duration: time.Second})

	if err := e.Stop(context.Background()); err != nil {
		t.Errorf("Stop() before Run() error = %v", err)
	}
	if e.GetProgress() != 0 {
		t.Errorf("GetProgress() before Run() = %v, want 0", e.GetProgress())
	}
}

func TestConstantVUs_ContextCancellation(t *testing.T) {
	scheduler, engine, _ := newTestScheduler(t, 0)

	e := executor.NewConstantVUs()
	_ = e.Init(context.Background(), &executor.Config{
		Type:     executor.TypeConstantVUs,
		VUs:      2,
		Duration: 10 * time.Second,
		Pacing:   &executor.PacingConfig{Type: executor.PacingConstant, Duration: 10 * time.Millisecond},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_ = e.Run(ctx, scheduler, engine)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Run() elapsed = %v after cancellation, want ~100ms", elapsed)
	}
}

func TestConstantVUs_MetricsPhase(t *testing.T) {
	scheduler, engine, _ := newTestScheduler(t, 0)

	e := executor.NewConstantVUs()
	_ = e.Init(context.Background(), &executor.Config{
		Type:     executor.TypeConstantVUs,
		VUs:      1,
		Duration: 50 * time.Millisecond,
		Pacing:   &executor.PacingConfig{Type: executor.PacingConstant, Duration: 10 * time.Millisecond},
	})
	_ = e.Run(context.Background(), scheduler, engine)

	if phase := engine.GetPhase(); phase != metrics.PhaseSteady {
		t.Errorf("phase = %v, want %v", phase, metrics.PhaseSteady)
	}
}
