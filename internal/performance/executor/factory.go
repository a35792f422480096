package executor

import (
	"context"
	"fmt"

	"github.com/wesleyorama2/shortload/internal/performance/config"
)

// NewExecutor creates a new executor of the specified type.
//
// Supported types:
//   - "constant-vus" - Fixed number of VUs for a duration
//   - "ramping-vus" - VU count ramps up/down according to stages
//   - "constant-arrival-rate" - Fixed iteration rate (open model)
//
// Returns an uninitialized executor. Call Init() before Run().
func NewExecutor(executorType Type) (Executor, error) {
	switch executorType {
	case TypeConstantVUs:
		return NewConstantVUs(), nil
	case TypeRampingVUs:
		return NewRampingVUs(), nil
	case TypeConstantArrivalRate:
		return NewConstantArrivalRate(), nil
	default:
		return nil, fmt.Errorf("unknown executor type: %s", executorType)
	}
}

// CreateAndInitExecutor creates and initializes an executor with the given config.
func CreateAndInitExecutor(ctx context.Context, cfg *Config) (Executor, error) {
	exec, err := NewExecutor(cfg.Type)
	if err != nil {
		return nil, err
	}

	if err := exec.Init(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize executor: %w", err)
	}

	return exec, nil
}

// FromScenario converts a parsed scenario into an executor config. The
// profile's wait range is filled in by the caller.
func FromScenario(name string, sc *config.ScenarioConfig) (*Config, error) {
	ec, err := config.ConvertToExecutorConfig(name, sc)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Name:            ec.Name,
		Type:            Type(ec.Type),
		VUs:             ec.VUs,
		Duration:        ec.Duration,
		Rate:            ec.Rate,
		PreAllocatedVUs: ec.PreAllocatedVUs,
		MaxVUs:          ec.MaxVUs,
		GracefulStop:    ec.GracefulStop,
	}
	for _, s := range ec.Stages {
		cfg.Stages = append(cfg.Stages, Stage{Duration: s.Duration, Target: s.Target, Name: s.Name})
	}
	if ec.Pacing != nil {
		cfg.Pacing = &PacingConfig{
			Type:     PacingType(ec.Pacing.Type),
			Duration: ec.Pacing.Duration,
			Min:      ec.Pacing.Min,
			Max:      ec.Pacing.Max,
		}
	}
	return cfg, nil
}

// IsValidExecutorType returns true if the type is a valid executor type.
func IsValidExecutorType(executorType string) bool {
	switch Type(executorType) {
	case TypeConstantVUs, TypeRampingVUs, TypeConstantArrivalRate:
		return true
	default:
		return false
	}
}

// GetSupportedExecutors returns a list of all supported executor types.
func GetSupportedExecutors() []Type {
	return []Type{
		TypeConstantVUs,
		TypeRampingVUs,
		TypeConstantArrivalRate,
	}
}

// ExecutorDescription provides documentation for an executor type.
type ExecutorDescription struct {
	Type        Type
	Name        string
	Description string
}

// GetExecutorDescription returns documentation for an executor type.
func GetExecutorDescription(executorType Type) *ExecutorDescription {
	switch executorType {
	case TypeConstantVUs:
		return &ExecutorDescription{
			Type:        TypeConstantVUs,
			Name:        "Constant VUs",
			Description: "A fixed number of users loop over their tasks for a duration, pausing for the profile's wait time between tasks.",
		}
	case TypeRampingVUs:
		return &ExecutorDescription{
			Type:        TypeRampingVUs,
			Name:        "Ramping VUs",
			Description: "The user count moves linearly between stage targets, like a spawn rate.",
		}
	case TypeConstantArrivalRate:
		return &ExecutorDescription{
			Type:        TypeConstantArrivalRate,
			Name:        "Constant Arrival Rate",
			Description: "Tasks start at a fixed rate per second regardless of response time. Users are borrowed from a pool that grows up to maxVUs.",
		}
	default:
		return nil
	}
}

// CalculateMaxVUs returns the maximum number of VUs that might be used.
func CalculateMaxVUs(cfg *Config) int {
	switch cfg.Type {
	case TypeRampingVUs:
		maxVUs := 0
		for _, stage := range cfg.Stages {
			if stage.Target > maxVUs {
				maxVUs = stage.Target
			}
		}
		return maxVUs
	case TypeConstantArrivalRate:
		return cfg.MaxVUs
	default:
		return cfg.VUs
	}
}
