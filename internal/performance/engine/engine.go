// Package engine runs a configured load test: it builds one user profile and
// executor per scenario, drives them against the shortener and evaluates
// thresholds on the combined metrics.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thoas/go-funk"
	"golang.org/x/sync/errgroup"

	"github.com/wesleyorama2/shortload/internal/logger"
	"github.com/wesleyorama2/shortload/internal/performance"
	"github.com/wesleyorama2/shortload/internal/performance/config"
	"github.com/wesleyorama2/shortload/internal/performance/executor"
	"github.com/wesleyorama2/shortload/internal/performance/metrics"
	"github.com/wesleyorama2/shortload/internal/shortener"
)

// ErrAlreadyRun is returned by Run on an engine that has already run.
var ErrAlreadyRun = errors.New("engine has already run")

// schedulerShutdown bounds how long a scenario waits for its VUs to exit
// after the executor returns.
const schedulerShutdown = 5 * time.Second

// Engine is the orchestrator for a load test run.
//
// It coordinates:
//   - Configuration validation and defaults
//   - Scenario execution with their respective executors
//   - Metrics collection shared by all scenarios
//   - Threshold evaluation
//
// Example usage:
//
//	cfg, _ := config.LoadConfig("test.yaml")
//	engine, _ := NewEngine(cfg)
//	result, _ := engine.Run(context.Background())
//	fmt.Printf("Test passed: %v\n", result.Passed)
type Engine struct {
	config *config.TestConfig
	runID  string

	// Metrics engine (shared across all scenarios)
	metricsEngine *metrics.Engine

	httpConfig performance.HTTPClientConfig

	scenarios map[string]*ScenarioRunner
	order     []string
	mu        sync.RWMutex

	startTime time.Time
	running   bool
	ran       bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

// ScenarioRunner manages the execution of a single scenario.
type ScenarioRunner struct {
	Name      string
	Config    *config.ScenarioConfig
	Profile   shortener.Profile
	Executor  executor.Executor
	Scheduler *performance.VUScheduler

	// StartTime delays the scenario relative to the start of the run.
	StartTime time.Duration

	Result *ScenarioResult
}

// ScenarioResult contains the results of a single scenario.
type ScenarioResult struct {
	Name       string        `json:"name"`
	Executor   string        `json:"executor"`
	Profile    string        `json:"profile"`
	Duration   time.Duration `json:"duration"`
	Iterations int64         `json:"iterations"`
	ActiveVUs  int           `json:"activeVUs"`
	Dropped    int64         `json:"dropped,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// TestResult contains the complete test results.
type TestResult struct {
	RunID       string        `json:"runId"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	BaseURL     string        `json:"baseUrl"`
	StartTime   time.Time     `json:"startTime"`
	EndTime     time.Time     `json:"endTime"`
	Duration    time.Duration `json:"duration"`

	Scenarios map[string]*ScenarioResult `json:"scenarios"`

	// Aggregated metrics across all scenarios
	Metrics    *metrics.Snapshot               `json:"metrics"`
	TimeSeries []*metrics.TimeBucket           `json:"timeSeries,omitempty"`
	Phases     []metrics.PhaseChange           `json:"phases,omitempty"`
	Requests   map[string]metrics.RequestStats `json:"requests,omitempty"`
	Failures   []metrics.Failure               `json:"failures,omitempty"`

	Passed     bool              `json:"passed"`
	Thresholds []ThresholdResult `json:"thresholds,omitempty"`

	// Error is set when a scenario failed to run to completion.
	Error string `json:"error,omitempty"`
}

// NewEngine validates cfg, applies defaults and prepares the shared metrics
// engine. Scenarios are built when Run is called.
func NewEngine(cfg *config.TestConfig) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("invalid configuration: nil config")
	}

	config.ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	httpConfig := performance.DefaultHTTPClientConfig()
	httpConfig.Timeout = cfg.Settings.Timeout.GetDuration(httpConfig.Timeout)
	if cfg.Settings.MaxIdleConnsPerHost > 0 {
		httpConfig.MaxIdleConnsPerHost = cfg.Settings.MaxIdleConnsPerHost
	}
	httpConfig.MaxConnsPerHost = cfg.Settings.MaxConnectionsPerHost
	httpConfig.InsecureSkipVerify = cfg.Settings.InsecureSkipVerify
	httpConfig.UseSharedClient = !cfg.Options.NoVUConnectionReuse

	return &Engine{
		config:        cfg,
		runID:         uuid.NewString(),
		metricsEngine: metrics.NewEngine(),
		httpConfig:    httpConfig,
		scenarios:     make(map[string]*ScenarioRunner),
		stopCh:        make(chan struct{}),
	}, nil
}

// Run executes all scenarios and returns the test results.
//
// By default, all scenarios run concurrently. If Options.Sequential is true,
// they run one at a time in name order. Cancelling ctx stops every scenario
// gracefully; the partial result is still returned.
func (e *Engine) Run(ctx context.Context) (*TestResult, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, fmt.Errorf("engine is already running")
	}
	if e.ran {
		e.mu.Unlock()
		return nil, ErrAlreadyRun
	}
	e.running = true
	e.ran = true
	e.startTime = time.Now()
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	if err := e.initializeScenarios(ctx); err != nil {
		e.metricsEngine.Stop()
		return nil, fmt.Errorf("failed to initialize scenarios: %w", err)
	}

	logger.Log.Infow("load test starting",
		"runId", e.runID,
		"name", e.config.Name,
		"baseUrl", e.config.Settings.BaseURL,
		"scenarios", e.order,
	)

	var runErr error
	if e.config.Options.Sequential {
		runErr = e.runScenariosSequentially(ctx)
	} else {
		runErr = e.runScenariosConcurrently(ctx)
	}

	e.metricsEngine.SetPhase(metrics.PhaseDone)
	e.metricsEngine.Stop()

	result := e.buildResult()
	if runErr != nil {
		result.Error = runErr.Error()
	}

	logger.Log.Infow("load test finished",
		"runId", e.runID,
		"requests", result.Metrics.TotalRequests,
		"failed", result.Metrics.FailedRequests,
		"passed", result.Passed,
		"duration", result.Duration,
	)

	return result, runErr
}

// initializeScenarios creates the profile, scheduler and executor of every
// scenario.
func (e *Engine) initializeScenarios(ctx context.Context) error {
	names := funk.Keys(e.config.Scenarios).([]string)
	sort.Strings(names)

	base := shortener.DefaultOptions()
	base.Client = shortener.ClientOptions{
		BaseURL:   e.config.Settings.BaseURL,
		UserAgent: e.config.Settings.UserAgent,
		Headers:   e.config.Settings.Headers,
	}

	runners := make(map[string]*ScenarioRunner, len(names))
	for i, name := range names {
		sc := e.config.Scenarios[name]

		profile, err := shortener.Lookup(sc.Profile)
		if err != nil {
			return fmt.Errorf("scenario %s: %w", name, err)
		}
		opts, err := base.WithProfileOptions(sc.Options)
		if err != nil {
			return fmt.Errorf("scenario %s: %w", name, err)
		}
		factory, err := profile.Factory(opts)
		if err != nil {
			return fmt.Errorf("scenario %s: %w", name, err)
		}

		execConfig, err := executor.FromScenario(name, sc)
		if err != nil {
			return fmt.Errorf("scenario %s: %w", name, err)
		}
		execConfig.DefaultWait = profile.Wait

		exec, err := executor.CreateAndInitExecutor(ctx, execConfig)
		if err != nil {
			return fmt.Errorf("failed to create executor for scenario %s: %w", name, err)
		}

		var startTime time.Duration
		if sc.StartTime != "" {
			if startTime, err = config.ParseDurationString(sc.StartTime); err != nil {
				return fmt.Errorf("scenario %s: invalid startTime: %w", name, err)
			}
		}

		runners[name] = &ScenarioRunner{
			Name:      name,
			Config:    sc,
			Profile:   profile,
			Executor:  exec,
			Scheduler: performance.NewVUScheduler(factory, e.metricsEngine, e.httpConfig, e.scenarioSeed(i)),
			StartTime: startTime,
		}
	}

	e.mu.Lock()
	e.scenarios = runners
	e.order = names
	e.mu.Unlock()
	return nil
}

// scenarioSeed spreads a configured seed across scenarios so their VUs do
// not share random streams.
func (e *Engine) scenarioSeed(index int) int64 {
	if e.config.Settings.Seed == 0 {
		return 0
	}
	return e.config.Settings.Seed + int64(index)*1_000_000
}

// runScenariosConcurrently runs all scenarios in parallel and returns the
// first error.
func (e *Engine) runScenariosConcurrently(ctx context.Context) error {
	var g errgroup.Group
	for _, name := range e.order {
		runner := e.scenarios[name]
		g.Go(func() error {
			if err := e.runScenario(ctx, runner); err != nil {
				return fmt.Errorf("scenario %s failed: %w", runner.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// runScenariosSequentially runs all scenarios one at a time.
func (e *Engine) runScenariosSequentially(ctx context.Context) error {
	for _, name := range e.order {
		if e.interrupted(ctx) {
			return ctx.Err()
		}
		if err := e.runScenario(ctx, e.scenarios[name]); err != nil {
			return fmt.Errorf("scenario %s failed: %w", name, err)
		}
	}
	return nil
}

// interrupted reports whether the run was cancelled or stopped.
func (e *Engine) interrupted(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-e.stopCh:
		return true
	default:
		return false
	}
}

// waitForStart blocks until the scenario's start offset has passed. It
// returns false if the run ended first.
func (e *Engine) waitForStart(ctx context.Context, runner *ScenarioRunner) bool {
	delay := time.Until(e.startTime.Add(runner.StartTime))
	if delay <= 0 {
		return !e.interrupted(ctx)
	}

	logger.Log.Debugw("delaying scenario", "scenario", runner.Name, "startTime", runner.StartTime)
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-e.stopCh:
		return false
	case <-timer.C:
		return true
	}
}

// runScenario runs a single scenario and stores its result on the runner.
func (e *Engine) runScenario(ctx context.Context, runner *ScenarioRunner) error {
	result := &ScenarioResult{
		Name:     runner.Name,
		Executor: string(runner.Executor.Type()),
		Profile:  runner.Profile.Name,
	}

	e.mu.Lock()
	runner.Result = result
	e.mu.Unlock()

	if !e.waitForStart(ctx, runner) {
		logger.Log.Infow("scenario skipped", "scenario", runner.Name)
		return nil
	}

	logger.Log.Infow("scenario starting",
		"scenario", runner.Name,
		"executor", runner.Executor.Type(),
		"profile", runner.Profile.Name,
	)

	startTime := time.Now()
	err := runner.Executor.Run(ctx, runner.Scheduler, e.metricsEngine)
	runner.Scheduler.Shutdown(schedulerShutdown)

	stats := runner.Executor.GetStats()

	e.mu.Lock()
	result.Duration = time.Since(startTime)
	result.Iterations = stats.Iterations
	result.ActiveVUs = stats.ActiveVUs
	result.Dropped = stats.Dropped
	if err != nil {
		result.Error = err.Error()
	}
	e.mu.Unlock()

	logger.Log.Infow("scenario finished",
		"scenario", runner.Name,
		"iterations", stats.Iterations,
		"duration", result.Duration,
	)
	return err
}

func (e *Engine) buildResult() *TestResult {
	snapshot := e.metricsEngine.GetSnapshot()
	thresholds := EvaluateThresholds(e.config.Thresholds, snapshot)

	passed := true
	for _, tr := range thresholds {
		if !tr.Passed {
			passed = false
			break
		}
	}

	e.mu.RLock()
	scenarios := make(map[string]*ScenarioResult, len(e.scenarios))
	for name, runner := range e.scenarios {
		if runner.Result != nil {
			copied := *runner.Result
			scenarios[name] = &copied
		}
	}
	e.mu.RUnlock()

	end := time.Now()
	return &TestResult{
		RunID:       e.runID,
		Name:        e.config.Name,
		Description: e.config.Description,
		BaseURL:     e.config.Settings.BaseURL,
		StartTime:   e.startTime,
		EndTime:     end,
		Duration:    end.Sub(e.startTime),
		Scenarios:   scenarios,
		Metrics:     snapshot,
		TimeSeries:  e.metricsEngine.GetTimeSeries(),
		Phases:      e.metricsEngine.GetPhaseHistory(),
		Requests:    e.metricsEngine.GetRequestStats(),
		Failures:    e.metricsEngine.GetFailures(),
		Passed:      passed,
		Thresholds:  thresholds,
	}
}

// RunID returns the identifier attached to this run's logs and reports.
func (e *Engine) RunID() string {
	return e.runID
}

// GetConfig returns the test configuration with defaults applied.
func (e *Engine) GetConfig() *config.TestConfig {
	return e.config
}

// MetricsEngine exposes the shared metrics engine, for example to register
// its Prometheus collector before the run starts.
func (e *Engine) MetricsEngine() *metrics.Engine {
	return e.metricsEngine
}

// GetMetrics returns the current metrics snapshot.
func (e *Engine) GetMetrics() *metrics.Snapshot {
	return e.metricsEngine.GetSnapshot()
}

// GetTimeSeries returns the time series data.
func (e *Engine) GetTimeSeries() []*metrics.TimeBucket {
	return e.metricsEngine.GetTimeSeries()
}

// IsRunning returns true if the engine is currently running.
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Stop gracefully stops the engine and all running scenarios. Scenarios
// still waiting for their start time are skipped.
func (e *Engine) Stop(ctx context.Context) error {
	e.stopOnce.Do(func() { close(e.stopCh) })

	e.mu.RLock()
	if !e.running {
		e.mu.RUnlock()
		return nil
	}
	runners := make([]*ScenarioRunner, 0, len(e.scenarios))
	for _, runner := range e.scenarios {
		runners = append(runners, runner)
	}
	e.mu.RUnlock()

	var lastErr error
	for _, runner := range runners {
		if err := runner.Executor.Stop(ctx); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// GetProgress returns the overall test progress (0.0 to 1.0).
func (e *Engine) GetProgress() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.scenarios) == 0 {
		return 0.0
	}

	var totalProgress float64
	for _, runner := range e.scenarios {
		totalProgress += runner.Executor.GetProgress()
	}
	return totalProgress / float64(len(e.scenarios))
}

// TotalDuration returns the planned length of the run, including start
// offsets. Graceful stop periods are not counted.
func (e *Engine) TotalDuration() time.Duration {
	names := funk.Keys(e.config.Scenarios).([]string)
	sort.Strings(names)

	var total time.Duration
	for _, name := range names {
		sc := e.config.Scenarios[name]
		execConfig, err := executor.FromScenario(name, sc)
		if err != nil {
			continue
		}
		d := execConfig.TotalDuration()
		if e.config.Options.Sequential {
			total += d
			continue
		}
		offset, _ := config.ParseDurationString(sc.StartTime)
		if offset+d > total {
			total = offset + d
		}
	}
	return total
}

// GetScenarioStats returns current stats for all scenarios.
func (e *Engine) GetScenarioStats() map[string]*executor.Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stats := make(map[string]*executor.Stats, len(e.scenarios))
	for name, runner := range e.scenarios {
		stats[name] = runner.Executor.GetStats()
	}
	return stats
}
