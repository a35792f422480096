// Package metrics collects latency, throughput and check outcomes for a
// load test run.
package metrics

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Engine aggregates request metrics using HDR histograms.
//
// Counters are atomic; histograms and the failure table are mutex-guarded
// because hdrhistogram.Histogram is not safe for concurrent writes. A
// background goroutine emits a time bucket every BucketInterval until Stop.
type Engine struct {
	latencyHist   *hdrhistogram.Histogram
	latencyHistMu sync.Mutex

	requests   map[string]*requestEntry
	requestsMu sync.RWMutex

	failures   map[failureKey]int64
	failuresMu sync.Mutex

	totalRequests   atomic.Int64
	successRequests atomic.Int64
	failedRequests  atomic.Int64
	totalBytes      atomic.Int64
	checksPassed    atomic.Int64
	checksFailed    atomic.Int64

	activeVUs atomic.Int32

	bucketStore *TimeBucketStore

	currentPhase Phase
	phaseMu      sync.RWMutex
	phaseHistory []PhaseChange

	startTime time.Time

	emitterCtx    context.Context
	emitterCancel context.CancelFunc
	emitterWg     sync.WaitGroup
	stopOnce      sync.Once

	config EngineConfig
}

type requestEntry struct {
	hist   *hdrhistogram.Histogram
	failed int64
}

type failureKey struct {
	name    string
	message string
}

// NewEngine creates a metrics engine with the default configuration.
func NewEngine() *Engine {
	return NewEngineWithConfig(DefaultEngineConfig())
}

// NewEngineWithConfig creates a metrics engine and starts its emitter.
func NewEngineWithConfig(config EngineConfig) *Engine {
	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		latencyHist:   hdrhistogram.New(config.HistogramMin, config.HistogramMax, config.HistogramSigFigs),
		requests:      make(map[string]*requestEntry),
		failures:      make(map[failureKey]int64),
		bucketStore:   NewTimeBucketStore(config.MaxBuckets),
		currentPhase:  PhaseInit,
		startTime:     time.Now(),
		emitterCtx:    ctx,
		emitterCancel: cancel,
		config:        config,
	}

	e.emitterWg.Add(1)
	go e.runEmitter()

	return e
}

// RecordLatency records one completed (or failed) request.
//
// requestName may be empty to skip the per-request breakdown.
func (e *Engine) RecordLatency(duration time.Duration, requestName string, success bool, bytes int64) {
	micros := duration.Microseconds()
	if micros < e.config.HistogramMin {
		micros = e.config.HistogramMin
	}
	if micros > e.config.HistogramMax {
		micros = e.config.HistogramMax
	}

	e.latencyHistMu.Lock()
	_ = e.latencyHist.RecordValue(micros)
	e.latencyHistMu.Unlock()

	if requestName != "" {
		e.recordRequest(requestName, micros, success)
	}

	e.totalRequests.Add(1)
	e.totalBytes.Add(bytes)
	if success {
		e.successRequests.Add(1)
	} else {
		e.failedRequests.Add(1)
	}

	e.bucketStore.RecordRequest(success)
}

func (e *Engine) recordRequest(name string, micros int64, success bool) {
	e.requestsMu.Lock()
	defer e.requestsMu.Unlock()

	entry, ok := e.requests[name]
	if !ok {
		entry = &requestEntry{
			hist: hdrhistogram.New(e.config.HistogramMin, e.config.HistogramMax, e.config.HistogramSigFigs),
		}
		e.requests[name] = entry
	}
	_ = entry.hist.RecordValue(micros)
	if !success {
		entry.failed++
	}
}

// RecordFailure adds one occurrence of message to the failure table.
func (e *Engine) RecordFailure(requestName, message string) {
	e.failuresMu.Lock()
	e.failures[failureKey{name: requestName, message: message}]++
	e.failuresMu.Unlock()
}

// RecordCheck counts one validated outcome.
func (e *Engine) RecordCheck(passed bool) {
	if passed {
		e.checksPassed.Add(1)
	} else {
		e.checksFailed.Add(1)
	}
}

// SetPhase records a phase transition. Setting the current phase is a no-op.
func (e *Engine) SetPhase(phase Phase) {
	e.phaseMu.Lock()
	defer e.phaseMu.Unlock()

	if e.currentPhase == phase {
		return
	}

	e.currentPhase = phase
	e.phaseHistory = append(e.phaseHistory, PhaseChange{
		Phase:     phase,
		Timestamp: time.Now(),
		Requests:  e.totalRequests.Load(),
	})
}

// GetPhase returns the current phase.
func (e *Engine) GetPhase() Phase {
	e.phaseMu.RLock()
	defer e.phaseMu.RUnlock()
	return e.currentPhase
}

// AddActiveVUs adjusts the active VU gauge by delta. Several scenarios share
// one engine, so executors report deltas rather than absolute counts.
func (e *Engine) AddActiveVUs(delta int) {
	e.activeVUs.Add(int32(delta))
}

// GetActiveVUs returns the active VU gauge.
func (e *Engine) GetActiveVUs() int {
	return int(e.activeVUs.Load())
}

func (e *Engine) runEmitter() {
	defer e.emitterWg.Done()

	ticker := time.NewTicker(e.config.BucketInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.emitterCtx.Done():
			return
		case <-ticker.C:
			e.emitBucket()
		}
	}
}

func (e *Engine) emitBucket() {
	e.bucketStore.CreateBucket(
		e.totalRequests.Load(),
		e.successRequests.Load(),
		e.failedRequests.Load(),
		e.totalBytes.Load(),
		e.GetLatencyPercentiles(),
		e.GetActiveVUs(),
		e.GetPhase(),
	)
}

// GetLatencyPercentiles returns the current overall percentiles.
func (e *Engine) GetLatencyPercentiles() LatencyPercentiles {
	e.latencyHistMu.Lock()
	defer e.latencyHistMu.Unlock()

	return LatencyPercentiles{
		Min: micros(e.latencyHist.Min()),
		Max: micros(e.latencyHist.Max()),
		P50: micros(e.latencyHist.ValueAtQuantile(50)),
		P90: micros(e.latencyHist.ValueAtQuantile(90)),
		P95: micros(e.latencyHist.ValueAtQuantile(95)),
		P99: micros(e.latencyHist.ValueAtQuantile(99)),
	}
}

// GetSnapshot returns the current totals and latency statistics.
func (e *Engine) GetSnapshot() *Snapshot {
	e.latencyHistMu.Lock()
	latency := latencyStats(e.latencyHist)
	e.latencyHistMu.Unlock()

	elapsed := time.Since(e.startTime)
	total := e.totalRequests.Load()
	failed := e.failedRequests.Load()

	rps := 0.0
	if elapsed.Seconds() > 0 {
		rps = float64(total) / elapsed.Seconds()
	}
	steadyRPS, steadyBuckets := e.bucketStore.CalculateSteadyStateRPS()
	if steadyBuckets > 0 {
		rps = steadyRPS
	}

	errorRate := 0.0
	if total > 0 {
		errorRate = float64(failed) / float64(total)
	}

	passed := e.checksPassed.Load()
	checksFailed := e.checksFailed.Load()
	checkRate := 0.0
	if passed+checksFailed > 0 {
		checkRate = float64(passed) / float64(passed+checksFailed)
	}

	return &Snapshot{
		TotalRequests:   total,
		SuccessRequests: e.successRequests.Load(),
		FailedRequests:  failed,
		TotalBytes:      e.totalBytes.Load(),
		Latency:         latency,
		RPS:             rps,
		SteadyStateRPS:  steadyRPS,
		ErrorRate:       errorRate,
		ChecksPassed:    passed,
		ChecksFailed:    checksFailed,
		CheckRate:       checkRate,
		ActiveVUs:       e.GetActiveVUs(),
		CurrentPhase:    e.GetPhase(),
		Elapsed:         elapsed,
		StartTime:       e.startTime,
		Timestamp:       time.Now(),
	}
}

// GetTimeSeries returns all retained time buckets.
func (e *Engine) GetTimeSeries() []*TimeBucket {
	return e.bucketStore.GetBuckets()
}

// GetPhaseHistory returns a copy of the phase transitions.
func (e *Engine) GetPhaseHistory() []PhaseChange {
	e.phaseMu.RLock()
	defer e.phaseMu.RUnlock()

	result := make([]PhaseChange, len(e.phaseHistory))
	copy(result, e.phaseHistory)
	return result
}

// GetRequestStats returns the per-request-name breakdown.
func (e *Engine) GetRequestStats() map[string]RequestStats {
	e.requestsMu.RLock()
	defer e.requestsMu.RUnlock()

	result := make(map[string]RequestStats, len(e.requests))
	for name, entry := range e.requests {
		stats := latencyStats(entry.hist)
		result[name] = RequestStats{
			Name:    name,
			Count:   stats.Count,
			Failed:  entry.failed,
			Latency: stats,
		}
	}
	return result
}

// GetFailures returns the failure table, most frequent first.
func (e *Engine) GetFailures() []Failure {
	e.failuresMu.Lock()
	result := make([]Failure, 0, len(e.failures))
	for k, n := range e.failures {
		result = append(result, Failure{Name: k.name, Message: k.message, Count: n})
	}
	e.failuresMu.Unlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].Message < result[j].Message
	})
	return result
}

// Stop stops the emitter and emits a final bucket. It is safe to call more
// than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.emitterCancel()
		e.emitterWg.Wait()
		e.emitBucket()
	})
}

func micros(v int64) time.Duration {
	return time.Duration(v) * time.Microsecond
}

func latencyStats(h *hdrhistogram.Histogram) LatencyStats {
	return LatencyStats{
		Min:    micros(h.Min()),
		Max:    micros(h.Max()),
		Mean:   time.Duration(h.Mean() * float64(time.Microsecond)),
		StdDev: time.Duration(h.StdDev() * float64(time.Microsecond)),
		P50:    micros(h.ValueAtQuantile(50)),
		P90:    micros(h.ValueAtQuantile(90)),
		P95:    micros(h.ValueAtQuantile(95)),
		P99:    micros(h.ValueAtQuantile(99)),
		Count:  h.TotalCount(),
	}
}
