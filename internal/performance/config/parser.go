package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultBaseURL is used when neither the config nor SHORTLOAD_HOST names a
// target.
const DefaultBaseURL = "http://localhost"

// LoadConfig loads a test configuration from a file.
//
// The file format is determined by extension:
//   - .yaml, .yml -> YAML
//   - .json -> JSON
//
// Returns the parsed TestConfig or an error if parsing fails.
func LoadConfig(path string) (*TestConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data, path)
}

// ParseConfig parses configuration data.
//
// The format is determined by the file extension in path, or defaults to YAML
// if the path is empty or has an unknown extension.
func ParseConfig(data []byte, path string) (*TestConfig, error) {
	var config TestConfig

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		// Try YAML by default
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config (unknown format %s): %w", ext, err)
		}
	}

	return &config, nil
}

// ParseDurationString parses a duration string with support for common formats.
//
// Supported formats:
//   - Standard Go duration: "30s", "2m", "1h30m", "500ms"
//   - Seconds as integer: "30" (treated as 30 seconds)
//
// Returns the parsed duration or an error.
func ParseDurationString(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}

	// Try standard Go duration parsing first
	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}

	// Try parsing as integer seconds
	if seconds, err := strconv.Atoi(s); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}

	return 0, fmt.Errorf("invalid duration format: %s", s)
}

// ParseScenarioDuration parses the duration for a scenario config.
//
// For stage-based executors, if no explicit duration is set,
// the total duration is calculated from all stages.
func ParseScenarioDuration(sc *ScenarioConfig) (time.Duration, error) {
	// If duration is explicitly set, use it
	if sc.Duration != "" {
		return ParseDurationString(sc.Duration)
	}

	// For stage-based executors, sum up stage durations
	if len(sc.Stages) > 0 {
		var total time.Duration
		for _, stage := range sc.Stages {
			stageDur, err := ParseDurationString(stage.Duration)
			if err != nil {
				return 0, fmt.Errorf("invalid stage duration: %w", err)
			}
			total += stageDur
		}
		return total, nil
	}

	return 0, fmt.Errorf("no duration specified and no stages defined")
}

// ApplyEnv loads dotenvPath (if it exists) into the process environment and
// then overrides settings from SHORTLOAD_* variables. Variables already set
// in the environment win over the dotenv file.
func ApplyEnv(config *TestConfig, dotenvPath string) error {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", dotenvPath, err)
		}
	}

	if err := env.Parse(&config.Settings); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}

// ApplyDefaults applies default values to a TestConfig.
func ApplyDefaults(config *TestConfig) {
	if config.Settings.BaseURL == "" {
		config.Settings.BaseURL = DefaultBaseURL
	}
	config.Settings.BaseURL = strings.TrimRight(config.Settings.BaseURL, "/")
	if config.Settings.Timeout == 0 {
		config.Settings.Timeout = Duration(30 * time.Second)
	}
	if config.Settings.MaxConnectionsPerHost == 0 {
		config.Settings.MaxConnectionsPerHost = 100
	}
	if config.Settings.MaxIdleConnsPerHost == 0 {
		config.Settings.MaxIdleConnsPerHost = 100
	}
	if config.Settings.UserAgent == "" {
		config.Settings.UserAgent = "shortload/1.0"
	}

	if config.Options == nil {
		config.Options = &ExecutionOptions{}
	}

	for _, sc := range config.Scenarios {
		applyScenarioDefaults(sc)
	}
}

func applyScenarioDefaults(sc *ScenarioConfig) {
	if sc == nil {
		return
	}
	if sc.Executor == "" {
		sc.Executor = ExecutorConstantVUs
	}
	if sc.Profile == "" {
		sc.Profile = ProfileStandard
	}

	switch sc.Executor {
	case ExecutorConstantVUs:
		if sc.VUs == 0 {
			sc.VUs = 1
		}
	case ExecutorConstantArrivalRate:
		if sc.Rate == 0 {
			sc.Rate = 1
		}
		if sc.PreAllocatedVUs == 0 {
			sc.PreAllocatedVUs = 1
		}
		if sc.MaxVUs == 0 {
			sc.MaxVUs = sc.PreAllocatedVUs * 10
		}
	}
}

// ExecutorConfig is an intermediate representation for executor configuration.
// This is separate from the YAML/JSON schema to allow for duration parsing.
type ExecutorConfig struct {
	Name            string
	Type            string
	VUs             int
	Duration        time.Duration
	Rate            float64
	PreAllocatedVUs int
	MaxVUs          int
	Stages          []ExecutorStage
	GracefulStop    time.Duration
	StartTime       time.Duration
	Pacing          *ExecutorPacing
}

// ExecutorStage represents a parsed stage configuration.
type ExecutorStage struct {
	Duration time.Duration
	Target   int
	Name     string
}

// ExecutorPacing represents parsed pacing configuration.
type ExecutorPacing struct {
	Type     string
	Duration time.Duration
	Min      time.Duration
	Max      time.Duration
}

// ConvertToExecutorConfig converts a ScenarioConfig to an ExecutorConfig.
//
// This function bridges the config package types to the executor package types.
func ConvertToExecutorConfig(name string, sc *ScenarioConfig) (*ExecutorConfig, error) {
	config := &ExecutorConfig{
		Name: name,
		Type: sc.Executor,
		VUs:  sc.VUs,
		Rate: sc.Rate,
	}

	// Parse duration
	if sc.Duration != "" {
		dur, err := ParseDurationString(sc.Duration)
		if err != nil {
			return nil, fmt.Errorf("invalid duration: %w", err)
		}
		config.Duration = dur
	}

	// Parse graceful stop
	if sc.GracefulStop != "" {
		dur, err := ParseDurationString(sc.GracefulStop)
		if err != nil {
			return nil, fmt.Errorf("invalid gracefulStop: %w", err)
		}
		config.GracefulStop = dur
	}

	if sc.StartTime != "" {
		dur, err := ParseDurationString(sc.StartTime)
		if err != nil {
			return nil, fmt.Errorf("invalid startTime: %w", err)
		}
		config.StartTime = dur
	}

	// Arrival rate settings
	config.PreAllocatedVUs = sc.PreAllocatedVUs
	config.MaxVUs = sc.MaxVUs

	// Convert stages
	for _, stage := range sc.Stages {
		stageDur, err := ParseDurationString(stage.Duration)
		if err != nil {
			return nil, fmt.Errorf("invalid stage duration: %w", err)
		}
		config.Stages = append(config.Stages, ExecutorStage{
			Duration: stageDur,
			Target:   stage.Target,
			Name:     stage.Name,
		})
	}

	// For stage-based executors, calculate total duration from stages
	if len(config.Stages) > 0 && config.Duration == 0 {
		for _, stage := range config.Stages {
			config.Duration += stage.Duration
		}
	}

	// Convert pacing
	if sc.Pacing != nil {
		config.Pacing = &ExecutorPacing{
			Type: sc.Pacing.Type,
		}
		if sc.Pacing.Duration != "" {
			dur, err := ParseDurationString(sc.Pacing.Duration)
			if err != nil {
				return nil, fmt.Errorf("invalid pacing duration: %w", err)
			}
			config.Pacing.Duration = dur
		}
		if sc.Pacing.Min != "" {
			dur, err := ParseDurationString(sc.Pacing.Min)
			if err != nil {
				return nil, fmt.Errorf("invalid pacing min: %w", err)
			}
			config.Pacing.Min = dur
		}
		if sc.Pacing.Max != "" {
			dur, err := ParseDurationString(sc.Pacing.Max)
			if err != nil {
				return nil, fmt.Errorf("invalid pacing max: %w", err)
			}
			config.Pacing.Max = dur
		}
	}

	return config, nil
}
