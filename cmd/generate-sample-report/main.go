// Command generate-sample-report runs a short load test against an
// in-process mock shortener and renders the HTML report, for previewing
// report changes.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/wesleyorama2/shortload/internal/mockserver"
	"github.com/wesleyorama2/shortload/internal/performance/config"
	"github.com/wesleyorama2/shortload/internal/performance/engine"
	"github.com/wesleyorama2/shortload/internal/performance/report"
)

func main() {
	outputPath := "sample-report.html"
	if len(os.Args) > 1 {
		outputPath = os.Args[1]
	}

	if err := run(outputPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Sample report generated: %s\n", outputPath)
}

func run(outputPath string) error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler: mockserver.New(mockserver.NewStore(), mockserver.Options{
			RedirectDelay: 5 * time.Millisecond,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go srv.Serve(ln) //nolint:errcheck
	defer srv.Close()

	eng, err := engine.NewEngine(sampleConfig("http://" + ln.Addr().String()))
	if err != nil {
		return err
	}

	result, err := eng.Run(context.Background())
	if err != nil {
		return err
	}

	return report.GenerateHTML(result, outputPath)
}

func sampleConfig(baseURL string) *config.TestConfig {
	return &config.TestConfig{
		Name:        "Shortener sample",
		Description: "Ramping standard users alongside a cache warmup",
		Settings: config.GlobalSettings{
			BaseURL: baseURL,
			Seed:    42,
		},
		Scenarios: map[string]*config.ScenarioConfig{
			"users": {
				Executor: config.ExecutorRampingVUs,
				Profile:  config.ProfileStandard,
				Stages: []config.StageConfig{
					{Duration: "5s", Target: 10, Name: "ramp-up"},
					{Duration: "10s", Target: 10, Name: "steady"},
					{Duration: "5s", Target: 0, Name: "ramp-down"},
				},
			},
			"warmup": {
				Executor: config.ExecutorConstantVUs,
				Profile:  config.ProfileCacheWarmup,
				VUs:      3,
				Duration: "20s",
			},
		},
		Thresholds: &config.ThresholdsConfig{
			HTTPReqDuration: []string{"p95 < 200ms"},
			HTTPReqFailed:   []string{"rate < 0.01"},
			Checks:          []string{"rate > 0.95"},
		},
	}
}
