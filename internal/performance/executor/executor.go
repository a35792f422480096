// Package executor provides load generation strategies.
package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wesleyorama2/shortload/internal/performance"
	"github.com/wesleyorama2/shortload/internal/performance/metrics"
)

// Type identifies the type of executor.
type Type string

const (
	// TypeConstantVUs runs a fixed number of VUs for a duration.
	TypeConstantVUs Type = "constant-vus"

	// TypeRampingVUs ramps VU count up and down according to stages.
	TypeRampingVUs Type = "ramping-vus"

	// TypeConstantArrivalRate maintains a fixed iteration rate.
	TypeConstantArrivalRate Type = "constant-arrival-rate"
)

// DefaultGracefulStop is how long in-flight iterations may run past the end
// of a scenario before they are cancelled.
const DefaultGracefulStop = 30 * time.Second

// Executor defines the interface for load generation strategies.
//
// Executors control HOW load is generated: either a pool of looping users
// (closed model) or a fixed iteration rate (open model).
type Executor interface {
	// Type returns the executor type.
	Type() Type

	// Init validates and stores the configuration. Called once before Run.
	Init(ctx context.Context, config *Config) error

	// Run starts the executor and blocks until completion.
	Run(ctx context.Context, scheduler *performance.VUScheduler, metrics *metrics.Engine) error

	// GetProgress returns current progress (0.0 to 1.0).
	GetProgress() float64

	// GetActiveVUs returns current active VU count.
	GetActiveVUs() int

	// GetStats returns executor-specific statistics.
	GetStats() *Stats

	// Stop ends the run early, waiting for in-flight iterations up to the
	// graceful stop timeout.
	Stop(ctx context.Context) error
}

// Config contains configuration for an executor.
type Config struct {
	Name string `json:"name" yaml:"name"`
	Type Type   `json:"type" yaml:"type"`

	// VU-based executors
	VUs      int           `json:"vus,omitempty" yaml:"vus,omitempty"`
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`

	// Arrival-rate executors
	Rate            float64 `json:"rate,omitempty" yaml:"rate,omitempty"` // iterations/second
	PreAllocatedVUs int     `json:"preAllocatedVUs,omitempty" yaml:"preAllocatedVUs,omitempty"`
	MaxVUs          int     `json:"maxVUs,omitempty" yaml:"maxVUs,omitempty"`

	// Stages (for ramping-vus)
	Stages []Stage `json:"stages,omitempty" yaml:"stages,omitempty"`

	GracefulStop time.Duration `json:"gracefulStop,omitempty" yaml:"gracefulStop,omitempty"`

	// Pacing between iterations. Nil means DefaultWait.
	Pacing *PacingConfig `json:"pacing,omitempty" yaml:"pacing,omitempty"`

	// DefaultWait is the user profile's think time, used when Pacing is nil.
	DefaultWait performance.WaitRange `json:"-" yaml:"-"`
}

// Stage defines a stage in ramping executors.
type Stage struct {
	Duration time.Duration `json:"duration" yaml:"duration"`

	// Target VU count at the end of the stage
	Target int `json:"target" yaml:"target"`

	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// PacingConfig controls time between iterations.
type PacingConfig struct {
	Type PacingType `json:"type" yaml:"type"`

	// Duration for constant pacing
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`

	// Min and Max bound random pacing
	Min time.Duration `json:"min,omitempty" yaml:"min,omitempty"`
	Max time.Duration `json:"max,omitempty" yaml:"max,omitempty"`
}

// PacingType identifies the type of pacing.
type PacingType string

const (
	PacingNone     PacingType = "none"
	PacingConstant PacingType = "constant"
	PacingRandom   PacingType = "random"
)

// Stats contains real-time executor statistics.
type Stats struct {
	StartTime     time.Time     `json:"startTime"`
	CurrentTime   time.Time     `json:"currentTime"`
	Elapsed       time.Duration `json:"elapsed"`
	TotalDuration time.Duration `json:"totalDuration"`

	ActiveVUs int `json:"activeVUs"`
	TargetVUs int `json:"targetVUs"`

	Iterations int64 `json:"iterations"`

	// Stage info (for ramping executors)
	CurrentStage     int    `json:"currentStage"`
	CurrentStageName string `json:"currentStageName"`
	TotalStages      int    `json:"totalStages"`

	// Rate info (for arrival-rate executors)
	CurrentRate float64 `json:"currentRate"`
	TargetRate  float64 `json:"targetRate"`
	Dropped     int64   `json:"dropped"`
}

// Validate validates the executor configuration.
func (c *Config) Validate() error {
	if c.Type == "" {
		return &ValidationError{Field: "type", Message: "executor type is required"}
	}

	switch c.Type {
	case TypeConstantVUs:
		if c.VUs <= 0 {
			return &ValidationError{Field: "vus", Message: "vus must be > 0"}
		}
		if c.Duration <= 0 {
			return &ValidationError{Field: "duration", Message: "duration must be > 0"}
		}

	case TypeRampingVUs:
		if len(c.Stages) == 0 {
			return &ValidationError{Field: "stages", Message: "at least one stage is required"}
		}
		for _, s := range c.Stages {
			if s.Target < 0 {
				return &ValidationError{Field: "stages", Message: "stage target must be >= 0"}
			}
		}

	case TypeConstantArrivalRate:
		if c.Rate <= 0 {
			return &ValidationError{Field: "rate", Message: "rate must be > 0"}
		}
		if c.Duration <= 0 {
			return &ValidationError{Field: "duration", Message: "duration must be > 0"}
		}

	default:
		return &ValidationError{Field: "type", Message: "unknown executor type: " + string(c.Type)}
	}

	if c.Pacing != nil {
		switch c.Pacing.Type {
		case PacingNone, PacingConstant:
		case PacingRandom:
			if c.Pacing.Min > c.Pacing.Max {
				return &ValidationError{Field: "pacing", Message: "min must be <= max"}
			}
		default:
			return &ValidationError{Field: "pacing", Message: "unknown pacing type: " + string(c.Pacing.Type)}
		}
	}

	return nil
}

// TotalDuration calculates the total duration for this executor.
func (c *Config) TotalDuration() time.Duration {
	switch c.Type {
	case TypeRampingVUs:
		var total time.Duration
		for _, stage := range c.Stages {
			total += stage.Duration
		}
		return total
	default:
		return c.Duration
	}
}

// WaitRange returns the pause between a VU's iterations. An explicit pacing
// of "none" disables the profile's default think time.
func (c *Config) WaitRange() performance.WaitRange {
	if c.Pacing == nil {
		return c.DefaultWait
	}
	switch c.Pacing.Type {
	case PacingConstant:
		return performance.WaitRange{Min: c.Pacing.Duration, Max: c.Pacing.Duration}
	case PacingRandom:
		return performance.WaitRange{Min: c.Pacing.Min, Max: c.Pacing.Max}
	default:
		return performance.WaitRange{}
	}
}

func (c *Config) gracefulStop() time.Duration {
	if c.GracefulStop > 0 {
		return c.GracefulStop
	}
	return DefaultGracefulStop
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "validation error on field '" + e.Field + "': " + e.Message
}

// lifecycle holds the state every executor shares: run timing, the stop
// signal and the context that in-flight iterations run under.
type lifecycle struct {
	config *Config

	startTime time.Time
	running   atomic.Bool
	mu        sync.Mutex

	// stopCh ends the scheduling loop; cancelIters aborts in-flight
	// iterations once the graceful period is over.
	stopCh      chan struct{}
	stopOnce    sync.Once
	cancelIters context.CancelFunc

	wg sync.WaitGroup
}

// begin records the start and returns the context iterations should use.
func (l *lifecycle) begin(ctx context.Context) context.Context {
	l.mu.Lock()
	defer l.mu.Unlock()

	iterCtx, cancel := context.WithCancel(ctx)
	l.cancelIters = cancel
	l.stopCh = make(chan struct{})
	l.startTime = time.Now()
	l.running.Store(true)
	return iterCtx
}

// requestStop ends scheduling.
func (l *lifecycle) requestStop() {
	l.mu.Lock()
	ch := l.stopCh
	l.mu.Unlock()
	if ch == nil {
		return
	}
	l.stopOnce.Do(func() { close(ch) })
}

// stopped returns the channel closed by requestStop.
func (l *lifecycle) stopped() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopCh
}

// untilDone blocks until the duration elapses, Stop is called or ctx ends.
func (l *lifecycle) untilDone(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	case <-l.stopped():
	}
	l.requestStop()
}

// drain waits up to the graceful stop for iteration goroutines, then cancels
// what is left. It reports whether everything finished in time.
func (l *lifecycle) drain() bool {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(l.config.gracefulStop())
	defer timer.Stop()

	finished := true
	select {
	case <-done:
	case <-timer.C:
		finished = false
	}

	l.mu.Lock()
	cancel := l.cancelIters
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	<-done

	l.running.Store(false)
	return finished
}

// stop requests the end of the run and waits for it, bounded by ctx and the
// graceful stop timeout.
func (l *lifecycle) stop(ctx context.Context) error {
	l.requestStop()
	if !l.running.Load() {
		return nil
	}

	deadline := time.NewTimer(l.config.gracefulStop() + time.Second)
	defer deadline.Stop()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for l.running.Load() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("graceful stop timeout after %v", l.config.gracefulStop())
		case <-ticker.C:
		}
	}
	return nil
}

func (l *lifecycle) elapsed() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.startTime.IsZero() {
		return 0
	}
	return time.Since(l.startTime)
}

func (l *lifecycle) started() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.startTime
}

// GetProgress returns current progress (0.0 to 1.0).
func (l *lifecycle) GetProgress() float64 {
	if !l.running.Load() {
		if l.started().IsZero() {
			return 0.0
		}
		return 1.0
	}

	total := l.config.TotalDuration()
	if total <= 0 {
		return 1.0
	}
	progress := float64(l.elapsed()) / float64(total)
	if progress > 1.0 {
		progress = 1.0
	}
	return progress
}

func (l *lifecycle) baseStats() *Stats {
	return &Stats{
		StartTime:     l.started(),
		CurrentTime:   time.Now(),
		Elapsed:       l.elapsed(),
		TotalDuration: l.config.TotalDuration(),
	}
}
