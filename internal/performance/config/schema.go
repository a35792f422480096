// Package config provides configuration parsing and validation for load
// test runs.
package config

import (
	"time"
)

// Profile names accepted in scenarios.
const (
	ProfileStandard    = "standard"
	ProfileHighLoad    = "high-load"
	ProfileCacheWarmup = "cache-warmup"
)

// Executor names accepted in scenarios.
const (
	ExecutorConstantVUs         = "constant-vus"
	ExecutorRampingVUs          = "ramping-vus"
	ExecutorConstantArrivalRate = "constant-arrival-rate"
)

// TestConfig is the root configuration for a load test.
//
// Example YAML:
//
//	name: "Shortener baseline"
//	settings:
//	  baseUrl: "http://localhost:8080"
//	  timeout: 10s
//	scenarios:
//	  users:
//	    executor: ramping-vus
//	    profile: standard
//	    stages:
//	      - duration: 30s
//	        target: 50
//	  warmup:
//	    executor: constant-vus
//	    profile: cache-warmup
//	    vus: 5
//	    duration: 30s
//	thresholds:
//	  checks: ["rate > 0.95"]
type TestConfig struct {
	// Name of the test (for reporting)
	Name string `json:"name" yaml:"name"`

	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Settings contains global settings for all scenarios
	Settings GlobalSettings `json:"settings,omitempty" yaml:"settings,omitempty"`

	// Scenarios defines the load profiles to run.
	// Each scenario runs independently with its own executor.
	Scenarios map[string]*ScenarioConfig `json:"scenarios" yaml:"scenarios"`

	// Thresholds define pass/fail criteria for metrics
	Thresholds *ThresholdsConfig `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`

	Options *ExecutionOptions `json:"options,omitempty" yaml:"options,omitempty"`
}

// GlobalSettings contains global HTTP and execution settings.
type GlobalSettings struct {
	// BaseURL is the shortener service root, e.g. http://localhost:8080
	BaseURL string `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty" env:"SHORTLOAD_HOST" validate:"omitempty,http_url"`

	// Timeout is the HTTP request timeout
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" env:"SHORTLOAD_TIMEOUT" validate:"gte=0"`

	// Seed makes VU randomness reproducible. Zero seeds from the clock.
	Seed int64 `json:"seed,omitempty" yaml:"seed,omitempty" env:"SHORTLOAD_SEED"`

	MaxConnectionsPerHost int `json:"maxConnectionsPerHost,omitempty" yaml:"maxConnectionsPerHost,omitempty" validate:"gte=0"`
	MaxIdleConnsPerHost   int `json:"maxIdleConnsPerHost,omitempty" yaml:"maxIdleConnsPerHost,omitempty" validate:"gte=0"`

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool `json:"insecureSkipVerify,omitempty" yaml:"insecureSkipVerify,omitempty"`

	// UserAgent is sent with every request
	UserAgent string `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`

	// Headers are default headers applied to all requests
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// LogLevel is one of debug, info, warn, error
	LogLevel string `json:"logLevel,omitempty" yaml:"logLevel,omitempty" env:"SHORTLOAD_LOG_LEVEL" validate:"omitempty,loglevel"`
}

// ScenarioConfig defines a single load testing scenario.
type ScenarioConfig struct {
	// Executor specifies the load generation strategy
	// Options: "constant-vus", "ramping-vus", "constant-arrival-rate"
	Executor string `json:"executor" yaml:"executor"`

	// Profile selects the simulated user: "standard", "high-load" or
	// "cache-warmup". Defaults to standard.
	Profile string `json:"profile,omitempty" yaml:"profile,omitempty"`

	// Options tune the profile.
	Options *ProfileOptions `json:"options,omitempty" yaml:"options,omitempty"`

	// VUs is the number of virtual users (for constant-vus)
	VUs int `json:"vus,omitempty" yaml:"vus,omitempty"`

	// Duration is how long to run (e.g., "30s", "2m", "1h")
	Duration string `json:"duration,omitempty" yaml:"duration,omitempty"`

	// Rate is iterations per second (for constant-arrival-rate)
	Rate float64 `json:"rate,omitempty" yaml:"rate,omitempty"`

	PreAllocatedVUs int `json:"preAllocatedVUs,omitempty" yaml:"preAllocatedVUs,omitempty"`
	MaxVUs          int `json:"maxVUs,omitempty" yaml:"maxVUs,omitempty"`

	// Stages defines ramping stages (for ramping-vus)
	Stages []StageConfig `json:"stages,omitempty" yaml:"stages,omitempty"`

	// GracefulStop is how long to wait for iterations to finish
	GracefulStop string `json:"gracefulStop,omitempty" yaml:"gracefulStop,omitempty"`

	// Pacing controls time between iterations. Without it the profile's
	// own wait range applies.
	Pacing *PacingConfig `json:"pacing,omitempty" yaml:"pacing,omitempty"`

	// StartTime delays this scenario relative to test start
	StartTime string `json:"startTime,omitempty" yaml:"startTime,omitempty"`
}

// ProfileOptions tune a user profile. Nil pointers keep the profile default.
type ProfileOptions struct {
	// SeedURLs is how many URLs a standard user creates on start (default 5)
	SeedURLs *int `json:"seedUrls,omitempty" yaml:"seedUrls,omitempty"`

	// PoolSize is how many popular URLs a cache-warmup user creates (default 20)
	PoolSize int `json:"poolSize,omitempty" yaml:"poolSize,omitempty"`

	// RedirectThreshold is the slowest passing redirect (default 50ms)
	RedirectThreshold string `json:"redirectThreshold,omitempty" yaml:"redirectThreshold,omitempty"`

	// Weights override the create/redirect/stats task weights
	Weights *WeightsConfig `json:"weights,omitempty" yaml:"weights,omitempty"`

	// StrictSchema validates create and stats bodies against a JSON schema
	StrictSchema bool `json:"strictSchema,omitempty" yaml:"strictSchema,omitempty"`
}

// WeightsConfig overrides task weights. A zero weight disables the task.
type WeightsConfig struct {
	Create   *int `json:"create,omitempty" yaml:"create,omitempty"`
	Redirect *int `json:"redirect,omitempty" yaml:"redirect,omitempty"`
	Stats    *int `json:"stats,omitempty" yaml:"stats,omitempty"`
}

// StageConfig defines a single stage in a ramping executor.
type StageConfig struct {
	// Duration of this stage (e.g., "30s", "2m")
	Duration string `json:"duration" yaml:"duration"`

	// Target VU count at the end of the stage
	Target int `json:"target" yaml:"target"`

	// Name is an optional name for this stage (for reporting)
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// PacingConfig controls pacing between iterations.
type PacingConfig struct {
	// Type is the pacing strategy: "none", "constant", "random"
	Type string `json:"type" yaml:"type"`

	// Duration is the wait time for constant pacing
	Duration string `json:"duration,omitempty" yaml:"duration,omitempty"`

	// Min and Max bound random pacing
	Min string `json:"min,omitempty" yaml:"min,omitempty"`
	Max string `json:"max,omitempty" yaml:"max,omitempty"`
}

// ThresholdsConfig defines pass/fail criteria for the test.
type ThresholdsConfig struct {
	// HTTPReqDuration thresholds for request duration
	// e.g., ["p95 < 500ms", "avg < 200ms"]
	HTTPReqDuration []string `json:"http_req_duration,omitempty" yaml:"http_req_duration,omitempty"`

	// HTTPReqFailed thresholds for failure rate
	// e.g., ["rate < 0.01"] (less than 1% failures)
	HTTPReqFailed []string `json:"http_req_failed,omitempty" yaml:"http_req_failed,omitempty"`

	// HTTPReqs thresholds for request count/rate
	// e.g., ["count > 1000", "rate > 100"]
	HTTPReqs []string `json:"http_reqs,omitempty" yaml:"http_reqs,omitempty"`

	// Checks thresholds on the response check pass rate
	// e.g., ["rate > 0.95"]
	Checks []string `json:"checks,omitempty" yaml:"checks,omitempty"`
}

// ExecutionOptions controls test execution behavior.
type ExecutionOptions struct {
	// Sequential runs scenarios one-by-one instead of in parallel
	Sequential bool `json:"sequential,omitempty" yaml:"sequential,omitempty"`

	// NoVUConnectionReuse gives every VU its own HTTP client
	NoVUConnectionReuse bool `json:"noVUConnectionReuse,omitempty" yaml:"noVUConnectionReuse,omitempty"`
}

// Duration is a time.Duration that can be unmarshaled from JSON/YAML strings.
type Duration time.Duration

// GetDuration returns the duration or a default if empty.
func (d Duration) GetDuration(defaultValue time.Duration) time.Duration {
	if d == 0 {
		return defaultValue
	}
	return time.Duration(d)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	if s == "" || s == "null" {
		*d = 0
		return nil
	}

	dur, err := ParseDurationString(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	if s == "" {
		*d = 0
		return nil
	}

	dur, err := ParseDurationString(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler for environment values.
func (d *Duration) UnmarshalText(b []byte) error {
	dur, err := ParseDurationString(string(b))
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}
