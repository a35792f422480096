package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Validate validates the entire test configuration.
//
// Returns nil if valid, or a ValidationErrors containing all validation errors.
func (c *TestConfig) Validate() error {
	errs := &ValidationErrors{}

	// Validate scenarios
	if len(c.Scenarios) == 0 {
		errs.Add("scenarios", "at least one scenario is required")
	}

	for name, scenario := range c.Scenarios {
		if scenario == nil {
			errs.Add("scenarios."+name, "scenario is empty")
			continue
		}
		validateScenario(name, scenario, errs)
	}

	// Validate thresholds
	if c.Thresholds != nil {
		validateThresholds(c.Thresholds, errs)
	}

	// Validate settings
	validateSettings(&c.Settings, errs)

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// validateScenario validates a single scenario configuration.
func validateScenario(name string, sc *ScenarioConfig, errs *ValidationErrors) {
	prefix := fmt.Sprintf("scenarios.%s", name)

	validExecutors := map[string]bool{
		ExecutorConstantVUs:         true,
		ExecutorRampingVUs:          true,
		ExecutorConstantArrivalRate: true,
	}

	if sc.Executor == "" {
		errs.Add(prefix+".executor", "executor type is required")
	} else if !validExecutors[sc.Executor] {
		errs.Add(prefix+".executor", fmt.Sprintf("unknown executor type: %s", sc.Executor))
	}

	switch sc.Executor {
	case ExecutorConstantVUs:
		validateConstantVUs(prefix, sc, errs)
	case ExecutorRampingVUs:
		validateRampingVUs(prefix, sc, errs)
	case ExecutorConstantArrivalRate:
		validateConstantArrivalRate(prefix, sc, errs)
	}

	validProfiles := map[string]bool{
		ProfileStandard:    true,
		ProfileHighLoad:    true,
		ProfileCacheWarmup: true,
	}
	if sc.Profile != "" && !validProfiles[sc.Profile] {
		errs.Add(prefix+".profile", fmt.Sprintf("unknown profile: %s", sc.Profile))
	}

	if sc.Options != nil {
		validateProfileOptions(prefix+".options", sc.Options, errs)
	}

	if sc.Pacing != nil {
		validatePacing(prefix+".pacing", sc.Pacing, errs)
	}

	for i, stage := range sc.Stages {
		validateStage(fmt.Sprintf("%s.stages[%d]", prefix, i), &stage, errs)
	}

	if sc.GracefulStop != "" {
		if _, err := ParseDurationString(sc.GracefulStop); err != nil {
			errs.Add(prefix+".gracefulStop", fmt.Sprintf("invalid gracefulStop: %v", err))
		}
	}
	if sc.StartTime != "" {
		if _, err := ParseDurationString(sc.StartTime); err != nil {
			errs.Add(prefix+".startTime", fmt.Sprintf("invalid startTime: %v", err))
		}
	}
}

func validateProfileOptions(prefix string, o *ProfileOptions, errs *ValidationErrors) {
	if o.SeedURLs != nil && *o.SeedURLs < 0 {
		errs.Add(prefix+".seedUrls", "seedUrls cannot be negative")
	}
	if o.PoolSize < 0 {
		errs.Add(prefix+".poolSize", "poolSize cannot be negative")
	}
	if o.RedirectThreshold != "" {
		if d, err := ParseDurationString(o.RedirectThreshold); err != nil {
			errs.Add(prefix+".redirectThreshold", fmt.Sprintf("invalid redirectThreshold: %v", err))
		} else if d <= 0 {
			errs.Add(prefix+".redirectThreshold", "redirectThreshold must be greater than 0")
		}
	}
	if w := o.Weights; w != nil {
		for field, v := range map[string]*int{"create": w.Create, "redirect": w.Redirect, "stats": w.Stats} {
			if v != nil && *v < 0 {
				errs.Add(prefix+".weights."+field, "weight cannot be negative")
			}
		}
	}
}

// validateConstantVUs validates constant-vus executor config.
func validateConstantVUs(prefix string, sc *ScenarioConfig, errs *ValidationErrors) {
	if sc.VUs <= 0 {
		errs.Add(prefix+".vus", "vus must be greater than 0")
	}

	if sc.Duration == "" {
		errs.Add(prefix+".duration", "duration is required for constant-vus executor")
	} else {
		if _, err := ParseDurationString(sc.Duration); err != nil {
			errs.Add(prefix+".duration", fmt.Sprintf("invalid duration: %v", err))
		}
	}
}

// validateRampingVUs validates ramping-vus executor config.
func validateRampingVUs(prefix string, sc *ScenarioConfig, errs *ValidationErrors) {
	if len(sc.Stages) == 0 {
		errs.Add(prefix+".stages", "at least one stage is required for ramping-vus executor")
	}
}

// validateConstantArrivalRate validates constant-arrival-rate executor config.
func validateConstantArrivalRate(prefix string, sc *ScenarioConfig, errs *ValidationErrors) {
	if sc.Rate <= 0 {
		errs.Add(prefix+".rate", "rate must be greater than 0")
	}

	if sc.Duration == "" {
		errs.Add(prefix+".duration", "duration is required for constant-arrival-rate executor")
	} else {
		if _, err := ParseDurationString(sc.Duration); err != nil {
			errs.Add(prefix+".duration", fmt.Sprintf("invalid duration: %v", err))
		}
	}

	// Validate pre-allocated VUs
	if sc.PreAllocatedVUs < 0 {
		errs.Add(prefix+".preAllocatedVUs", "preAllocatedVUs cannot be negative")
	}

	// Validate max VUs
	if sc.MaxVUs > 0 && sc.PreAllocatedVUs > sc.MaxVUs {
		errs.Add(prefix+".preAllocatedVUs", "preAllocatedVUs cannot be greater than maxVUs")
	}
}

// validatePacing validates pacing configuration.
func validatePacing(prefix string, pacing *PacingConfig, errs *ValidationErrors) {
	validTypes := map[string]bool{
		"none": true, "constant": true, "random": true,
	}

	if !validTypes[pacing.Type] {
		errs.Add(prefix+".type", fmt.Sprintf("invalid pacing type: %s", pacing.Type))
	}

	switch pacing.Type {
	case "constant":
		if pacing.Duration == "" {
			errs.Add(prefix+".duration", "duration is required for constant pacing")
		} else if _, err := ParseDurationString(pacing.Duration); err != nil {
			errs.Add(prefix+".duration", fmt.Sprintf("invalid duration: %v", err))
		}

	case "random":
		if pacing.Min == "" {
			errs.Add(prefix+".min", "min is required for random pacing")
		} else if _, err := ParseDurationString(pacing.Min); err != nil {
			errs.Add(prefix+".min", fmt.Sprintf("invalid min: %v", err))
		}

		if pacing.Max == "" {
			errs.Add(prefix+".max", "max is required for random pacing")
		} else if _, err := ParseDurationString(pacing.Max); err != nil {
			errs.Add(prefix+".max", fmt.Sprintf("invalid max: %v", err))
		}

		// Validate min < max
		if pacing.Min != "" && pacing.Max != "" {
			minDur, _ := ParseDurationString(pacing.Min)
			maxDur, _ := ParseDurationString(pacing.Max)
			if minDur > maxDur {
				errs.Add(prefix, "min must be less than or equal to max")
			}
		}
	}
}

// validateStage validates a single stage configuration.
func validateStage(prefix string, stage *StageConfig, errs *ValidationErrors) {
	if stage.Duration == "" {
		errs.Add(prefix+".duration", "duration is required")
	} else if _, err := ParseDurationString(stage.Duration); err != nil {
		errs.Add(prefix+".duration", fmt.Sprintf("invalid duration: %v", err))
	}

	if stage.Target < 0 {
		errs.Add(prefix+".target", "target cannot be negative")
	}
}

// validateThresholds validates threshold configuration.
func validateThresholds(t *ThresholdsConfig, errs *ValidationErrors) {
	// Validate duration thresholds
	for i, threshold := range t.HTTPReqDuration {
		if err := validateThresholdExpression(threshold); err != nil {
			errs.Add(fmt.Sprintf("thresholds.http_req_duration[%d]", i), err.Error())
		}
	}

	// Validate failure rate thresholds
	for i, threshold := range t.HTTPReqFailed {
		if err := validateThresholdExpression(threshold); err != nil {
			errs.Add(fmt.Sprintf("thresholds.http_req_failed[%d]", i), err.Error())
		}
	}

	// Validate request count thresholds
	for i, threshold := range t.HTTPReqs {
		if err := validateThresholdExpression(threshold); err != nil {
			errs.Add(fmt.Sprintf("thresholds.http_reqs[%d]", i), err.Error())
		}
	}

	// Check pass-rate thresholds only make sense as a rate
	for i, threshold := range t.Checks {
		if err := validateThresholdExpression(threshold); err != nil {
			errs.Add(fmt.Sprintf("thresholds.checks[%d]", i), err.Error())
		} else if !strings.HasPrefix(strings.TrimSpace(threshold), "rate") {
			errs.Add(fmt.Sprintf("thresholds.checks[%d]", i), "checks thresholds must use rate")
		}
	}
}

// validateThresholdExpression validates a threshold expression.
//
// Valid formats:
//   - "p95 < 500ms"
//   - "avg < 200ms"
//   - "rate < 0.01"
//   - "count > 1000"
func validateThresholdExpression(expr string) error {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return fmt.Errorf("threshold expression cannot be empty")
	}

	// Valid metrics
	validMetrics := []string{"p50", "p90", "p95", "p99", "min", "max", "avg", "med", "rate", "count"}

	// Valid operators
	validOps := []string{"<", ">", "<=", ">=", "==", "!="}

	// Check if expression starts with a valid metric
	found := false
	for _, metric := range validMetrics {
		if strings.HasPrefix(expr, metric) {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("threshold must start with a valid metric (p50, p90, p95, p99, min, max, avg, med, rate, count)")
	}

	// Check for valid operator
	hasOp := false
	for _, op := range validOps {
		if strings.Contains(expr, op) {
			hasOp = true
			break
		}
	}
	if !hasOp {
		return fmt.Errorf("threshold must contain a comparison operator (<, >, <=, >=, ==, !=)")
	}

	return nil
}

var (
	structValidator     *validator.Validate
	structValidatorOnce sync.Once
)

func getValidator() *validator.Validate {
	structValidatorOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
			switch fl.Field().String() {
			case "debug", "info", "warn", "error":
				return true
			}
			return false
		})
		structValidator = v
	})
	return structValidator
}

// validateSettings validates global settings against their struct tags.
func validateSettings(s *GlobalSettings, errs *ValidationErrors) {
	err := getValidator().Struct(s)
	if err == nil {
		return
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		errs.Add("settings", err.Error())
		return
	}

	for _, fe := range fieldErrs {
		field := "settings." + fe.Field()
		switch fe.Tag() {
		case "http_url":
			errs.Add(field, fmt.Sprintf("invalid URL: %v", fe.Value()))
		case "gte":
			errs.Add(field, "cannot be negative")
		case "loglevel":
			errs.Add(field, fmt.Sprintf("invalid log level: %v (want debug, info, warn or error)", fe.Value()))
		default:
			errs.Add(field, fmt.Sprintf("failed %s validation", fe.Tag()))
		}
	}
}
