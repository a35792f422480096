package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/wesleyorama2/shortload/internal/logger"
	"github.com/wesleyorama2/shortload/internal/performance"
	"github.com/wesleyorama2/shortload/internal/performance/metrics"
	"github.com/wesleyorama2/shortload/internal/performance/rate"
)

// ConstantArrivalRate starts iterations at a fixed rate (open model).
//
// Throughput does not depend on response time: a leaky bucket hands out
// start slots and each slot borrows an idle VU from a pool. When the pool is
// empty the executor spawns VUs up to MaxVUs; past that, slots wait for a VU
// to come back and the bucket drops the ones that fall too far behind.
// Profile think time does not apply here.
//
// Example:
//
//	executor: constant-arrival-rate
//	rate: 100
//	duration: 5m
//	preAllocatedVUs: 10
//	maxVUs: 50
type ConstantArrivalRate struct {
	lifecycle

	scheduler *performance.VUScheduler
	metrics   *metrics.Engine
	bucket    *rate.LeakyBucket

	vuPool     chan *performance.VirtualUser
	allVUs     []*performance.VirtualUser
	currentVUs atomic.Int32
	vuPoolMu   sync.Mutex

	iterations atomic.Int64
}

// NewConstantArrivalRate creates a new constant arrival rate executor.
func NewConstantArrivalRate() *ConstantArrivalRate {
	return &ConstantArrivalRate{}
}

// Type returns the executor type.
func (e *ConstantArrivalRate) Type() Type {
	return TypeConstantArrivalRate
}

// Init initializes the executor with configuration.
func (e *ConstantArrivalRate) Init(ctx context.Context, config *Config) error {
	if config.Type != TypeConstantArrivalRate {
		return fmt.Errorf("invalid config type: expected %s, got %s", TypeConstantArrivalRate, config.Type)
	}
	if err := config.Validate(); err != nil {
		return err
	}

	if config.PreAllocatedVUs <= 0 {
		config.PreAllocatedVUs = 1
	}
	if config.MaxVUs < config.PreAllocatedVUs {
		config.MaxVUs = config.PreAllocatedVUs
	}

	e.config = config
	return nil
}

// Run schedules iterations until the duration ends or Stop is called.
func (e *ConstantArrivalRate) Run(ctx context.Context, scheduler *performance.VUScheduler, metricsEngine *metrics.Engine) error {
	e.scheduler = scheduler
	e.metrics = metricsEngine
	e.bucket = rate.NewLeakyBucketWithBurst(e.config.Rate, e.config.MaxVUs)
	e.vuPool = make(chan *performance.VirtualUser, e.config.MaxVUs)

	iterCtx := e.begin(ctx)
	metricsEngine.SetPhase(metrics.PhaseSteady)

	for i := 0; i < e.config.PreAllocatedVUs; i++ {
		e.vuPool <- e.spawn()
	}

	logger.Log.Debugw("arrival rate started", "scenario", e.config.Name, "rate", e.config.Rate, "preAllocatedVUs", e.config.PreAllocatedVUs, "maxVUs", e.config.MaxVUs)

	schedCtx, cancelSched := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.schedule(schedCtx, iterCtx)
	}()

	e.untilDone(ctx, e.config.Duration)
	cancelSched()
	<-done

	if !e.drain() {
		logger.Log.Warnw("iterations cancelled after graceful stop", "scenario", e.config.Name, "gracefulStop", e.config.gracefulStop())
	}

	e.vuPoolMu.Lock()
	for _, vu := range e.allVUs {
		vu.RequestStop()
		vu.MarkStopped()
	}
	e.vuPoolMu.Unlock()
	metricsEngine.AddActiveVUs(-int(e.currentVUs.Load()))
	return nil
}

// spawn adds a VU to the executor and the active VU gauge.
func (e *ConstantArrivalRate) spawn() *performance.VirtualUser {
	vu := e.scheduler.SpawnVU()
	e.vuPoolMu.Lock()
	e.allVUs = append(e.allVUs, vu)
	e.vuPoolMu.Unlock()
	e.currentVUs.Add(1)
	if e.metrics != nil {
		e.metrics.AddActiveVUs(1)
	}
	return vu
}

func (e *ConstantArrivalRate) schedule(ctx, iterCtx context.Context) {
	for {
		if err := e.bucket.Wait(ctx); err != nil {
			return
		}

		vu := e.getVU(ctx)
		if vu == nil {
			return
		}

		e.wg.Add(1)
		go e.runIteration(iterCtx, vu)
	}
}

// getVU takes an idle VU, spawning one if the pool is empty and MaxVUs
// allows it. It returns nil when ctx ends first.
func (e *ConstantArrivalRate) getVU(ctx context.Context) *performance.VirtualUser {
	select {
	case vu := <-e.vuPool:
		return vu
	default:
	}

	if int(e.currentVUs.Load()) < e.config.MaxVUs {
		return e.spawn()
	}

	select {
	case <-ctx.Done():
		return nil
	case vu := <-e.vuPool:
		return vu
	}
}

func (e *ConstantArrivalRate) runIteration(ctx context.Context, vu *performance.VirtualUser) {
	defer e.wg.Done()

	err := e.scheduler.RunIteration(ctx, vu)
	if errors.Is(err, performance.ErrSchedulerShutdown) {
		return
	}
	if err != nil && ctx.Err() == nil {
		logger.Log.Debugw("iteration failed", "scenario", e.config.Name, "vu", vu.ID, "error", err)
	}
	e.iterations.Add(1)

	select {
	case e.vuPool <- vu:
	default:
	}
}

// GetActiveVUs returns current active VU count.
func (e *ConstantArrivalRate) GetActiveVUs() int {
	return int(e.currentVUs.Load())
}

// GetStats returns executor statistics.
func (e *ConstantArrivalRate) GetStats() *Stats {
	stats := e.baseStats()
	stats.ActiveVUs = e.GetActiveVUs()
	stats.TargetVUs = e.config.MaxVUs
	stats.Iterations = e.iterations.Load()
	stats.TargetRate = e.config.Rate
	stats.CurrentRate = e.config.Rate

	if e.bucket != nil {
		bs := e.bucket.Stats()
		stats.Dropped = bs.Dropped
		if elapsed := stats.Elapsed.Seconds(); elapsed > 0 {
			stats.CurrentRate = float64(stats.Iterations) / elapsed
		}
	}
	return stats
}

// Stop gracefully stops the executor.
func (e *ConstantArrivalRate) Stop(ctx context.Context) error {
	return e.stop(ctx)
}

var _ Executor = (*ConstantArrivalRate)(nil)
