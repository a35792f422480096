package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wesleyorama2/shortload/internal/logger"
	"github.com/wesleyorama2/shortload/internal/performance"
	"github.com/wesleyorama2/shortload/internal/performance/metrics"
)

// rampInterval is how often the VU target is recomputed.
const rampInterval = 100 * time.Millisecond

// RampingVUs ramps the VU count through stages.
//
// Within a stage the target moves linearly from the previous stage's target
// to this stage's target, like a user spawn rate. The first stage ramps from
// zero. Excess VUs are asked to stop and finish their current iteration.
type RampingVUs struct {
	lifecycle

	activeVUs    atomic.Int32
	targetVUs    atomic.Int32
	currentStage atomic.Int32

	vus     []*performance.VirtualUser
	retired []*performance.VirtualUser
	vusMu   sync.Mutex
}

// NewRampingVUs creates a new ramping VUs executor.
func NewRampingVUs() *RampingVUs {
	return &RampingVUs{}
}

// Type returns the executor type.
func (e *RampingVUs) Type() Type {
	return TypeRampingVUs
}

// Init initializes the executor with configuration.
func (e *RampingVUs) Init(ctx context.Context, config *Config) error {
	if config.Type != TypeRampingVUs {
		return fmt.Errorf("invalid config type: expected %s, got %s", TypeRampingVUs, config.Type)
	}
	if err := config.Validate(); err != nil {
		return err
	}

	e.config = config
	return nil
}

// Run adjusts the VU count every rampInterval until the stages are done.
func (e *RampingVUs) Run(ctx context.Context, scheduler *performance.VUScheduler, metricsEngine *metrics.Engine) error {
	iterCtx := e.begin(ctx)
	wait := e.config.WaitRange()

	adjust := func() {
		target := e.TargetAt(e.elapsed())
		e.targetVUs.Store(int32(target))
		e.adjustVUs(iterCtx, scheduler, target, wait)
		metricsEngine.SetPhase(e.phase())
	}
	adjust()

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(rampInterval)
		defer ticker.Stop()
		for {
			select {
			case <-e.stopped():
				return
			case <-ticker.C:
				adjust()
			}
		}
	}()

	e.untilDone(ctx, e.config.TotalDuration())
	<-done

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

// TargetAt returns the interpolated VU target at elapsed time into the run.
// After the last stage it returns the last stage's target.
func (e *RampingVUs) TargetAt(elapsed time.Duration) int {
	var stageStart time.Duration
	prevTarget := 0

	for i, stage := range e.config.Stages {
		stageEnd := stageStart + stage.Duration

		if elapsed < stageEnd {
			e.currentStage.Store(int32(i))

			progress := 1.0
			if stage.Duration > 0 {
				progress = float64(elapsed-stageStart) / float64(stage.Duration)
			}
			if progress < 0 {
				progress = 0
			}
			if progress > 1 {
				progress = 1
			}

			target := float64(prevTarget) + float64(stage.Target-prevTarget)*progress
			return int(target + 0.5)
		}

		prevTarget = stage.Target
		stageStart = stageEnd
	}

	if n := len(e.config.Stages); n > 0 {
		e.currentStage.Store(int32(n - 1))
		return e.config.Stages[n-1].Target
	}
	return 0
}

func (e *RampingVUs) adjustVUs(ctx context.Context, scheduler *performance.VUScheduler, target int, wait performance.WaitRange) {
	e.vusMu.Lock()
	defer e.vusMu.Unlock()

	current := len(e.vus)

	if target > current {
		for i := current; i < target; i++ {
			vu := scheduler.SpawnVU()
			e.vus = append(e.vus, vu)
			e.wg.Add(1)
			go func() {
				defer e.wg.Done()
				e.activeVUs.Add(1)
				defer e.activeVUs.Add(-1)
				scheduler.RunVU(ctx, vu, wait)
			}()
		}
	} else if target < current {
		// Newest VUs go first.
		for i := current - 1; i >= target; i-- {
			e.vus[i].RequestStop()
			e.retired = append(e.retired, e.vus[i])
		}
		e.vus = e.vus[:target]
	}
}

func (e *RampingVUs) phase() metrics.Phase {
	stageIdx := int(e.currentStage.Load())
	stages := e.config.Stages
	if stageIdx >= len(stages) {
		return metrics.PhaseSteady
	}

	prevTarget := 0
	if stageIdx > 0 {
		prevTarget = stages[stageIdx-1].Target
	}

	switch target := stages[stageIdx].Target; {
	case target > prevTarget:
		return metrics.PhaseRampUp
	case target < prevTarget:
		return metrics.PhaseRampDown
	default:
		return metrics.PhaseSteady
	}
}

// GetActiveVUs returns current active VU count.
func (e *RampingVUs) GetActiveVUs() int {
	return int(e.activeVUs.Load())
}

// GetStats returns executor statistics.
func (e *RampingVUs) GetStats() *Stats {
	stats := e.baseStats()
	stats.ActiveVUs = e.GetActiveVUs()
	stats.TargetVUs = int(e.targetVUs.Load())
	stats.TotalStages = len(e.config.Stages)

	stageIdx := int(e.currentStage.Load())
	stats.CurrentStage = stageIdx
	if stageIdx < len(e.config.Stages) {
		stats.CurrentStageName = e.config.Stages[stageIdx].Name
	}

	e.vusMu.Lock()
	for _, vu := range e.vus {
		stats.Iterations += vu.GetIteration()
	}
	for _, vu := range e.retired {
		stats.Iterations += vu.GetIteration()
	}
	e.vusMu.Unlock()
	return stats
}

// Stop gracefully stops the executor.
func (e *RampingVUs) Stop(ctx context.Context) error {
	return e.stop(ctx)
}

var _ Executor = (*RampingVUs)(nil)
