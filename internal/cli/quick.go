package cli

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/thoas/go-funk"

	"github.com/wesleyorama2/shortload/internal/performance/config"
)

const (
	defaultUsers   = 10
	defaultRunTime = "30s"
)

// buildConfigFromFlags builds a single-scenario TestConfig from run flags.
//
// Without --executor the executor follows from the flags given: --stages or
// --spawn-rate ramp users, --rate holds an arrival rate, anything else keeps
// a constant user count.
func buildConfigFromFlags(opts runOptions) (*config.TestConfig, error) {
	executorType := opts.Executor
	if executorType == "" {
		switch {
		case opts.Stages != "", opts.SpawnRate > 0:
			executorType = config.ExecutorRampingVUs
		case opts.Rate > 0:
			executorType = config.ExecutorConstantArrivalRate
		default:
			executorType = config.ExecutorConstantVUs
		}
	}

	users := opts.Users
	if users == 0 {
		users = defaultUsers
	}
	runTime := opts.RunTime
	if runTime == "" && opts.Stages == "" {
		runTime = defaultRunTime
	}

	scenario := &config.ScenarioConfig{
		Executor: executorType,
		Profile:  opts.Profile,
	}

	switch executorType {
	case config.ExecutorConstantVUs:
		scenario.VUs = users
		scenario.Duration = runTime

	case config.ExecutorRampingVUs:
		switch {
		case opts.Stages != "":
			stages, err := parseStages(opts.Stages)
			if err != nil {
				return nil, fmt.Errorf("invalid stages format: %w", err)
			}
			scenario.Stages = stages
		case opts.SpawnRate > 0:
			total, err := config.ParseDurationString(runTime)
			if err != nil {
				return nil, err
			}
			scenario.Stages = spawnStages(users, opts.SpawnRate, total)
		default:
			return nil, fmt.Errorf("%s needs --stages or --spawn-rate", executorType)
		}

	case config.ExecutorConstantArrivalRate:
		scenario.Rate = opts.Rate
		scenario.Duration = runTime
		scenario.PreAllocatedVUs = opts.PreAllocatedVUs
		if scenario.PreAllocatedVUs == 0 && opts.Users > 0 {
			scenario.PreAllocatedVUs = opts.Users
		}
		scenario.MaxVUs = opts.MaxVUs

	default:
		return nil, fmt.Errorf("unknown executor type: %s", executorType)
	}

	return &config.TestConfig{
		Name:        "Quick test",
		Description: fmt.Sprintf("%s users via %s", scenario.Profile, executorType),
		Scenarios: map[string]*config.ScenarioConfig{
			"quick": scenario,
		},
	}, nil
}

// spawnStages ramps to users at spawnRate users per second and holds the
// count for the rest of total. A ramp longer than total is cut to total.
func spawnStages(users int, spawnRate float64, total time.Duration) []config.StageConfig {
	ramp := time.Duration(math.Ceil(float64(users)/spawnRate*1000)) * time.Millisecond
	if ramp >= total {
		return []config.StageConfig{
			{Duration: total.String(), Target: users, Name: "spawn"},
		}
	}
	return []config.StageConfig{
		{Duration: ramp.String(), Target: users, Name: "spawn"},
		{Duration: (total - ramp).String(), Target: users, Name: "hold"},
	}
}

// parseStages parses stages from CLI format "30s:10,2m:10,30s:0"
func parseStages(stagesStr string) ([]config.StageConfig, error) {
	var stages []config.StageConfig

	parts := strings.Split(stagesStr, ",")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		colonIdx := strings.LastIndex(part, ":")
		if colonIdx == -1 {
			return nil, fmt.Errorf("stage %d: expected 'duration:target' format, got '%s'", i+1, part)
		}

		durationStr := part[:colonIdx]
		targetStr := part[colonIdx+1:]

		if _, err := config.ParseDurationString(durationStr); err != nil {
			return nil, fmt.Errorf("stage %d: invalid duration '%s': %w", i+1, durationStr, err)
		}

		target, err := strconv.Atoi(targetStr)
		if err != nil {
			return nil, fmt.Errorf("stage %d: invalid target '%s': %w", i+1, targetStr, err)
		}
		if target < 0 {
			return nil, fmt.Errorf("stage %d: target cannot be negative", i+1)
		}

		stages = append(stages, config.StageConfig{
			Duration: durationStr,
			Target:   target,
			Name:     fmt.Sprintf("stage-%d", i+1),
		})
	}

	if len(stages) == 0 {
		return nil, fmt.Errorf("at least one stage is required")
	}

	return stages, nil
}

func sortedScenarioNames(cfg *config.TestConfig) []string {
	names := funk.Keys(cfg.Scenarios).([]string)
	sort.Strings(names)
	return names
}
