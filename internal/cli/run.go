package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/shortload/internal/logger"
	"github.com/wesleyorama2/shortload/internal/performance/config"
	"github.com/wesleyorama2/shortload/internal/performance/engine"
	"github.com/wesleyorama2/shortload/internal/performance/executor"
	"github.com/wesleyorama2/shortload/internal/performance/metrics"
	"github.com/wesleyorama2/shortload/internal/performance/output"
	"github.com/wesleyorama2/shortload/internal/performance/report"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a load test against a URL shortener",
	Long: `Run simulated shortener users against a target service.

Either load a YAML/JSON test file with --config, or describe a single
scenario with flags.

Examples:
  # 50 standard users, 10 spawned per second, for 2 minutes
  shortload run --host http://localhost:8080 --users 50 --spawn-rate 10 --run-time 2m

  # Cache warmup at a fixed 20 iterations per second
  shortload run --host http://localhost:8080 --profile cache-warmup --rate 20 --run-time 1m

  # From a file, with an HTML report
  shortload run -c shortener.yaml --html --output results/report.html`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := runOptionsFromFlags(cmd)

		cfg, err := loadRunConfig(opts)
		if err != nil {
			return err
		}

		// Settings may carry a log level, which loses to the flag and env.
		if cfg.Settings.LogLevel != "" {
			if err := logger.Init(logLevel(cmd, cfg.Settings.LogLevel)); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runTest(ctx, cfg, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

// runOptions holds the run command flags.
type runOptions struct {
	ConfigFile string
	EnvFile    string
	Host       string
	Seed       int64

	Profile         string
	Executor        string
	Users           int
	SpawnRate       float64
	RunTime         string
	Stages          string
	Rate            float64
	MaxVUs          int
	PreAllocatedVUs int

	Output      string
	JSON        bool
	HTML        bool
	Quiet       bool
	Verbose     bool
	MetricsAddr string
}

func runOptionsFromFlags(cmd *cobra.Command) runOptions {
	var o runOptions
	o.ConfigFile, _ = cmd.Flags().GetString("config")
	o.EnvFile, _ = cmd.Flags().GetString("env-file")
	o.Host, _ = cmd.Flags().GetString("host")
	o.Seed, _ = cmd.Flags().GetInt64("seed")

	o.Profile, _ = cmd.Flags().GetString("profile")
	o.Executor, _ = cmd.Flags().GetString("executor")
	o.Users, _ = cmd.Flags().GetInt("users")
	if o.Users == 0 {
		o.Users, _ = cmd.Flags().GetInt("vus")
	}
	o.SpawnRate, _ = cmd.Flags().GetFloat64("spawn-rate")
	o.RunTime, _ = cmd.Flags().GetString("run-time")
	o.Stages, _ = cmd.Flags().GetString("stages")
	o.Rate, _ = cmd.Flags().GetFloat64("rate")
	o.MaxVUs, _ = cmd.Flags().GetInt("max-vus")
	o.PreAllocatedVUs, _ = cmd.Flags().GetInt("pre-allocated-vus")

	o.Output, _ = cmd.Flags().GetString("output")
	o.JSON, _ = cmd.Flags().GetBool("json")
	o.HTML, _ = cmd.Flags().GetBool("html")
	o.Quiet, _ = cmd.Flags().GetBool("quiet")
	o.Verbose, _ = cmd.Flags().GetBool("verbose")
	o.MetricsAddr, _ = cmd.Flags().GetString("metrics-addr")
	return o
}

// loadRunConfig reads the test file or builds one from flags, then layers
// the environment and the --host and --seed flags on top.
func loadRunConfig(opts runOptions) (*config.TestConfig, error) {
	var cfg *config.TestConfig
	var err error

	if opts.ConfigFile != "" {
		cfg, err = config.LoadConfig(opts.ConfigFile)
		if err != nil {
			return nil, err
		}
	} else {
		cfg, err = buildConfigFromFlags(opts)
		if err != nil {
			return nil, fmt.Errorf("error building config: %w", err)
		}
	}

	if err := config.ApplyEnv(cfg, opts.EnvFile); err != nil {
		return nil, err
	}
	if opts.Host != "" {
		cfg.Settings.BaseURL = opts.Host
	}
	if opts.Seed != 0 {
		cfg.Settings.Seed = opts.Seed
	}
	return cfg, nil
}

// runTest runs the engine with a live view, prints the summary and writes
// the requested reports. It returns ErrThresholdsFailed when the run
// completed but did not pass.
func runTest(ctx context.Context, cfg *config.TestConfig, opts runOptions, stdout, stderr io.Writer) error {
	eng, err := engine.NewEngine(cfg)
	if err != nil {
		return err
	}

	// JSON on stdout must not be interleaved with the console view.
	consoleWriter := stdout
	jsonToStdout := opts.JSON && opts.Output == ""
	if jsonToStdout {
		consoleWriter = stderr
	}

	totalDuration := eng.TotalDuration()
	console := output.NewConsoleOutput(output.ConsoleOutputConfig{
		TestName:       cfg.Name,
		Target:         cfg.Settings.BaseURL,
		ExecutorType:   displayExecutor(cfg),
		TotalDuration:  totalDuration,
		UpdateInterval: time.Second,
		Writer:         consoleWriter,
		Quiet:          opts.Quiet,
	})

	if opts.MetricsAddr != "" {
		shutdown, err := serveMetrics(opts.MetricsAddr, eng.MetricsEngine())
		if err != nil {
			return err
		}
		defer shutdown()
	}

	if opts.Verbose && !opts.Quiet {
		fmt.Fprintf(consoleWriter, "Starting load test: %s (run %s)\n", cfg.Name, eng.RunID())
		for _, name := range sortedScenarioNames(cfg) {
			sc := cfg.Scenarios[name]
			fmt.Fprintf(consoleWriter, "  Scenario: %s (executor: %s, profile: %s)\n", name, sc.Executor, sc.Profile)
		}
		fmt.Fprintln(consoleWriter)
	}

	console.PrintHeader()

	var (
		result *engine.TestResult
		runErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		result, runErr = eng.Run(ctx)
	}()

	targetVUs := getTargetVUs(cfg)
	ticker := time.NewTicker(console.UpdateInterval())
	defer ticker.Stop()

progressLoop:
	for {
		select {
		case <-done:
			break progressLoop
		case <-ticker.C:
			if !eng.IsRunning() {
				continue
			}
			currentStage, totalStages := getStageInfo(eng.GetScenarioStats())
			stats := output.StatsFromMetrics(
				eng.GetMetrics(),
				eng.GetProgress(),
				totalDuration,
				targetVUs,
				currentStage,
				totalStages,
			)
			if console.IsTTY() {
				console.Update(stats)
			} else if !opts.Quiet {
				console.PrintNonInteractiveUpdate(stats)
			}
		}
	}

	if result == nil {
		return runErr
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Log.Errorw("load test ended with an error", "runId", result.RunID, "error", runErr)
	}

	console.PrintSummary(result)

	if err := writeReports(result, opts, stdout, consoleWriter); err != nil {
		return err
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	if !result.Passed {
		return ErrThresholdsFailed
	}
	return nil
}

func writeReports(result *engine.TestResult, opts runOptions, stdout, notices io.Writer) error {
	if opts.JSON {
		if opts.Output == "" {
			data, err := report.MarshalJSON(result)
			if err != nil {
				return err
			}
			if _, err := stdout.Write(data); err != nil {
				return err
			}
		} else {
			path := jsonPath(opts.Output)
			if err := report.WriteJSON(result, path); err != nil {
				return fmt.Errorf("failed to write JSON report: %w", err)
			}
			fmt.Fprintf(notices, "JSON: %s\n", path)
		}
	}

	if opts.HTML {
		path := opts.Output
		if path == "" || opts.JSON {
			path = generateDefaultHTMLPath(result.Name)
		}
		if !strings.HasSuffix(strings.ToLower(path), ".html") {
			path += ".html"
		}
		if err := report.GenerateHTML(result, path); err != nil {
			return fmt.Errorf("failed to generate HTML report: %w", err)
		}
		fmt.Fprintf(notices, "Report: %s\n", path)
	}
	return nil
}

func jsonPath(path string) string {
	if filepath.Ext(path) == "" {
		return path + ".json"
	}
	return path
}

// serveMetrics exposes the run's metrics for Prometheus scraping until the
// returned function is called.
func serveMetrics(addr string, m *metrics.Engine) (func(), error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(m))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	// Surface bind errors before the run starts.
	select {
	case err := <-errCh:
		return nil, fmt.Errorf("metrics server: %w", err)
	case <-time.After(50 * time.Millisecond):
	}

	logger.Log.Infow("serving metrics", "addr", addr, "path", "/metrics")
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func displayExecutor(cfg *config.TestConfig) string {
	names := sortedScenarioNames(cfg)
	if len(names) == 1 {
		return cfg.Scenarios[names[0]].Executor
	}
	return fmt.Sprintf("%d scenarios", len(names))
}

// getTargetVUs gets the largest VU count any scenario asks for.
func getTargetVUs(cfg *config.TestConfig) int {
	maxVUs := 0
	for _, scenario := range cfg.Scenarios {
		if scenario.VUs > maxVUs {
			maxVUs = scenario.VUs
		}
		if scenario.MaxVUs > maxVUs {
			maxVUs = scenario.MaxVUs
		}
		for _, stage := range scenario.Stages {
			if stage.Target > maxVUs {
				maxVUs = stage.Target
			}
		}
	}
	return maxVUs
}

// getStageInfo extracts current stage info from executor stats.
func getStageInfo(stats map[string]*executor.Stats) (current, total int) {
	for _, s := range stats {
		if s == nil {
			continue
		}
		if s.CurrentStage > current {
			current = s.CurrentStage
		}
		if s.TotalStages > total {
			total = s.TotalStages
		}
	}
	return current, total
}

// generateDefaultHTMLPath creates a default HTML report path based on test name
func generateDefaultHTMLPath(testName string) string {
	safeName := strings.ReplaceAll(testName, " ", "-")
	safeName = strings.ReplaceAll(safeName, "/", "-")
	safeName = strings.ToLower(safeName)

	timestamp := time.Now().Format("20060102-150405")
	return fmt.Sprintf("shortload-report-%s-%s.html", safeName, timestamp)
}

func init() {
	runCmd.Flags().StringP("config", "c", "", "Test file (YAML or JSON)")
	runCmd.Flags().String("env-file", ".env", "Dotenv file with SHORTLOAD_* settings")
	runCmd.Flags().String("host", "", "Base URL of the shortener (overrides settings.baseUrl)")
	runCmd.Flags().Int64("seed", 0, "Random seed for reproducible user behavior")

	runCmd.Flags().String("profile", config.ProfileStandard, "User profile: standard, high-load, cache-warmup")
	runCmd.Flags().String("executor", "", "Executor type: constant-vus, ramping-vus, constant-arrival-rate")
	runCmd.Flags().IntP("users", "u", 0, "Number of simulated users")
	runCmd.Flags().Int("vus", 0, "Alias for --users")
	runCmd.Flags().Float64P("spawn-rate", "r", 0, "Users started per second")
	runCmd.Flags().StringP("run-time", "t", "", "Test duration (e.g., 5m, 30s)")
	runCmd.Flags().String("stages", "", "Stages in format 'duration:target,duration:target,...' for ramping-vus")
	runCmd.Flags().Float64("rate", 0, "Iterations per second for constant-arrival-rate")
	runCmd.Flags().Int("max-vus", 0, "Maximum VUs for constant-arrival-rate")
	runCmd.Flags().Int("pre-allocated-vus", 0, "Pre-allocated VUs for constant-arrival-rate")

	runCmd.Flags().StringP("output", "o", "", "Report file (JSON or HTML)")
	runCmd.Flags().Bool("json", false, "Write results as JSON (stdout unless --output is set)")
	runCmd.Flags().Bool("html", false, "Generate an HTML report")
	runCmd.Flags().BoolP("quiet", "q", false, "Disable live progress output, show only final summary")
	runCmd.Flags().BoolP("verbose", "v", false, "Enable verbose output")
	runCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address during the run")
}
