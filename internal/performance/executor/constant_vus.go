package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/wesleyorama2/shortload/internal/logger"
	"github.com/wesleyorama2/shortload/internal/performance"
	"github.com/wesleyorama2/shortload/internal/performance/metrics"
)

// ConstantVUs runs a fixed number of VUs for a specified duration.
//
// Each VU loops its behavior (closed model), pausing between iterations
// for the configured pacing or the profile's think time. This is how a
// fixed population of simulated users is modelled.
type ConstantVUs struct {
	lifecycle

	activeVUs atomic.Int32

	vus   []*performance.VirtualUser
	vusMu sync.Mutex
}

// NewConstantVUs creates a new constant VUs executor.
func NewConstantVUs() *ConstantVUs {
	return &ConstantVUs{}
}

// Type returns the executor type.
func (e *ConstantVUs) Type() Type {
	return TypeConstantVUs
}

// Init initializes the executor with configuration.
func (e *ConstantVUs) Init(ctx context.Context, config *Config) error {
	if config.Type != TypeConstantVUs {
		return fmt.Errorf("invalid config type: expected %s, got %s", TypeConstantVUs, config.Type)
	}
	if err := config.Validate(); err != nil {
		return err
	}

	e.config = config
	return nil
}

// Run spawns every VU, lets them loop for the duration and then drains them.
func (e *ConstantVUs) Run(ctx context.Context, scheduler *performance.VUScheduler, metricsEngine *metrics.Engine) error {
	iterCtx := e.begin(ctx)
	metricsEngine.SetPhase(metrics.PhaseSteady)

	wait := e.config.WaitRange()
	for i := 0; i < e.config.VUs; i++ {
		vu := scheduler.SpawnVU()
		e.vusMu.Lock()
		e.vus = append(e.vus, vu)
		e.vusMu.Unlock()

		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.activeVUs.Add(1)
			defer e.activeVUs.Add(-1)
			scheduler.RunVU(iterCtx, vu, wait)
		}()
	}
	logger.Log.Debugw("constant-vus started", "scenario", e.config.Name, "vus", e.config.VUs, "duration", e.config.Duration)

	e.untilDone(ctx, e.config.Duration)

	e.vusMu.Lock()
	for _, vu := range e.vus {
		vu.RequestStop()
	}
	e.vusMu.Unlock()

	if !e.drain() {
		logger.Log.Warnw("iterations cancelled after graceful stop", "scenario", e.config.Name, "gracefulStop", e.config.gracefulStop())
	}
	return nil
}

// GetActiveVUs returns current active VU count.
func (e *ConstantVUs) GetActiveVUs() int {
	return int(e.activeVUs.Load())
}

// GetStats returns executor statistics.
func (e *ConstantVUs) GetStats() *Stats {
	stats := e.baseStats()
	stats.ActiveVUs = e.GetActiveVUs()
	stats.TargetVUs = e.config.VUs

	e.vusMu.Lock()
	for _, vu := range e.vus {
		stats.Iterations += vu.GetIteration()
	}
	e.vusMu.Unlock()
	return stats
}

// Stop gracefully stops the executor.
func (e *ConstantVUs) Stop(ctx context.Context) error {
	return e.stop(ctx)
}

var _ Executor = (*ConstantVUs)(nil)
