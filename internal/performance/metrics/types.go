package metrics

import "time"

// Phase is a stage of a load test run.
type Phase string

const (
	PhaseInit     Phase = "init"
	PhaseWarmup   Phase = "warmup"
	PhaseRampUp   Phase = "ramp-up"
	PhaseSteady   Phase = "steady"
	PhaseRampDown Phase = "ramp-down"
	PhaseDone     Phase = "done"
)

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	TotalRequests   int64 `json:"totalRequests"`
	SuccessRequests int64 `json:"successRequests"`
	FailedRequests  int64 `json:"failedRequests"`
	TotalBytes      int64 `json:"totalBytes"`

	Latency LatencyStats `json:"latency"`

	// RPS is the steady-state rate when steady buckets exist, otherwise the
	// overall average since start.
	RPS            float64 `json:"rps"`
	SteadyStateRPS float64 `json:"steadyStateRps"`

	// ErrorRate is FailedRequests / TotalRequests.
	ErrorRate float64 `json:"errorRate"`

	// Checks counts every classified outcome, including the ones that did
	// not issue a request of their own.
	ChecksPassed int64   `json:"checksPassed"`
	ChecksFailed int64   `json:"checksFailed"`
	CheckRate    float64 `json:"checkRate"`

	ActiveVUs    int           `json:"activeVUs"`
	CurrentPhase Phase         `json:"currentPhase"`
	Elapsed      time.Duration `json:"elapsed"`
	StartTime    time.Time     `json:"startTime"`
	Timestamp    time.Time     `json:"timestamp"`
}

// LatencyStats summarises a latency histogram.
type LatencyStats struct {
	Min    time.Duration `json:"min"`
	Max    time.Duration `json:"max"`
	Mean   time.Duration `json:"mean"`
	StdDev time.Duration `json:"stdDev"`
	P50    time.Duration `json:"p50"`
	P90    time.Duration `json:"p90"`
	P95    time.Duration `json:"p95"`
	P99    time.Duration `json:"p99"`
	Count  int64         `json:"count"`
}

// RequestStats is the per-request-name breakdown.
type RequestStats struct {
	Name    string       `json:"name"`
	Count   int64        `json:"count"`
	Failed  int64        `json:"failed"`
	Latency LatencyStats `json:"latency"`
}

// Failure groups identical failure messages for one request name.
type Failure struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Count   int64  `json:"count"`
}

// LatencyPercentiles holds the percentiles stored in each time bucket.
type LatencyPercentiles struct {
	Min time.Duration
	Max time.Duration
	P50 time.Duration
	P90 time.Duration
	P95 time.Duration
	P99 time.Duration
}

// TimeBucket captures cumulative totals and interval deltas for one
// emission interval (1s by default).
type TimeBucket struct {
	Timestamp time.Time `json:"timestamp"`

	TotalRequests  int64 `json:"totalRequests"`
	TotalSuccesses int64 `json:"totalSuccesses"`
	TotalFailures  int64 `json:"totalFailures"`
	TotalBytes     int64 `json:"totalBytes"`

	IntervalRequests  int64   `json:"intervalRequests"`
	IntervalRPS       float64 `json:"intervalRPS"`
	IntervalErrorRate float64 `json:"intervalErrorRate"`

	LatencyMin time.Duration `json:"latencyMin"`
	LatencyMax time.Duration `json:"latencyMax"`
	LatencyP50 time.Duration `json:"latencyP50"`
	LatencyP90 time.Duration `json:"latencyP90"`
	LatencyP95 time.Duration `json:"latencyP95"`
	LatencyP99 time.Duration `json:"latencyP99"`

	ActiveVUs int   `json:"activeVUs"`
	Phase     Phase `json:"phase"`
}

// PhaseChange records a phase transition.
type PhaseChange struct {
	Phase     Phase     `json:"phase"`
	Timestamp time.Time `json:"timestamp"`
	Requests  int64     `json:"requests"`
}

// EngineConfig configures the metrics engine.
type EngineConfig struct {
	// BucketInterval is the time-series emission interval (default: 1s)
	BucketInterval time.Duration

	// MaxBuckets bounds the ring buffer (default: 3600)
	MaxBuckets int

	// Histogram range in microseconds and precision
	HistogramMin     int64
	HistogramMax     int64
	HistogramSigFigs int
}

// DefaultEngineConfig returns 1s buckets for an hour and a 1us..1h histogram.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		BucketInterval:   time.Second,
		MaxBuckets:       3600,
		HistogramMin:     1,
		HistogramMax:     3600000000,
		HistogramSigFigs: 3,
	}
}
