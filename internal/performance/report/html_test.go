package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wesleyorama2/shortload/internal/performance/engine"
	"github.com/wesleyorama2/shortload/internal/performance/metrics"
)

func createSampleTestResult() *engine.TestResult {
	start := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

	return &engine.TestResult{
		RunID:     "0b0e7c4e-run",
		Name:      "Sample Load Test",
		BaseURL:   "http://localhost:8080",
		StartTime: start,
		EndTime:   start.Add(3 * time.Second),
		Duration:  3 * time.Second,
		Passed:    true,
		Metrics: &metrics.Snapshot{
			TotalRequests:   1500,
			SuccessRequests: 1485,
			FailedRequests:  15,
			TotalBytes:      2048,
			RPS:             500,
			ErrorRate:       0.01,
			CheckRate:       0.99,
			Latency: metrics.LatencyStats{
				Min: time.Millisecond,
				P50: 5 * time.Millisecond,
				P95: 42 * time.Millisecond,
				Max: 300 * time.Millisecond,
			},
		},
		TimeSeries: []*metrics.TimeBucket{
			{Timestamp: start.Add(time.Second), IntervalRPS: 480, LatencyP95: 40 * time.Millisecond, ActiveVUs: 5, Phase: metrics.PhaseRampUp},
			{Timestamp: start.Add(2 * time.Second), IntervalRPS: 510, LatencyP95: 44 * time.Millisecond, ActiveVUs: 10, Phase: metrics.PhaseSteady},
		},
		Phases: []metrics.PhaseChange{
			{Phase: metrics.PhaseRampUp, Timestamp: start},
			{Phase: metrics.PhaseSteady, Timestamp: start.Add(time.Second), Requests: 480},
		},
		Requests: map[string]metrics.RequestStats{
			"POST /api/v1/urls/": {Name: "POST /api/v1/urls/", Count: 400},
			"GET /[shortUrlId]":  {Name: "GET /[shortUrlId]", Count: 1100, Failed: 15},
		},
		Failures: []metrics.Failure{
			{Name: "GET /[shortUrlId]", Message: "Redirect too slow: 0.051s", Count: 15},
		},
		Scenarios: map[string]*engine.ScenarioResult{
			"users": {Name: "users", Executor: "ramping-vus", Profile: "standard", Iterations: 1500, Duration: 3 * time.Second},
		},
		Thresholds: []engine.ThresholdResult{
			{Metric: "checks", Expression: "rate > 0.95", Passed: true, Value: "0.9900"},
		},
	}
}

func TestGenerateHTMLString(t *testing.T) {
	html, err := GenerateHTMLString(createSampleTestResult())
	if err != nil {
		t.Fatalf("GenerateHTMLString failed: %v", err)
	}

	expectedContents := []string{
		"<!DOCTYPE html>",
		"<title>Sample Load Test - Load Test Report</title>",
		"✓ PASSED",
		"0b0e7c4e-run",
		"1,500",
		"99.00%",
		"42.0ms",
		"POST /api/v1/urls/",
		"GET /[shortUrlId]",
		"Redirect too slow: 0.051s",
		"ramping-vus",
		"rate &gt; 0.95",
		"chart.js",
		"rpsChart",
		"latencyChart",
		"timeSeriesData",
		`"second":1`,
	}
	for _, expected := range expectedContents {
		if !strings.Contains(html, expected) {
			t.Errorf("HTML does not contain expected content: %s", expected)
		}
	}
}

func TestGenerateHTMLString_Minimal(t *testing.T) {
	html, err := GenerateHTMLString(&engine.TestResult{Name: "Empty", Error: "scenario users failed"})
	if err != nil {
		t.Fatalf("GenerateHTMLString failed: %v", err)
	}
	if !strings.Contains(html, "✗ FAILED") {
		t.Error("expected failed status")
	}
	if !strings.Contains(html, "scenario users failed") {
		t.Error("expected the run error")
	}
	if strings.Contains(html, `id="rpsChart"`) {
		t.Error("charts should be omitted without a time series")
	}
}

func TestGenerateHTMLStringNilResult(t *testing.T) {
	if _, err := GenerateHTMLString(nil); err == nil {
		t.Error("Expected error for nil result, got nil")
	}
}

func TestGenerateHTML(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "nested", "report.html")

	if err := GenerateHTML(createSampleTestResult(), outputPath); err != nil {
		t.Fatalf("GenerateHTML failed: %v", err)
	}

	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("Failed to read generated file: %v", err)
	}
	if !strings.Contains(string(content), "<!DOCTYPE html>") {
		t.Error("Generated file does not contain valid HTML")
	}
}

func TestWriteJSON(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "result.json")

	if err := WriteJSON(createSampleTestResult(), outputPath); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	content, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("Failed to read generated file: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(content, &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if decoded["runId"] != "0b0e7c4e-run" {
		t.Errorf("runId = %v", decoded["runId"])
	}
	if _, ok := decoded["requests"].(map[string]interface{}); !ok {
		t.Error("expected per-request stats")
	}

	if _, err := MarshalJSON(nil); err == nil {
		t.Error("expected error for nil result")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected string
	}{
		{500 * time.Microsecond, "500µs"},
		{150 * time.Millisecond, "150ms"},
		{1500 * time.Millisecond, "1.5s"},
		{65 * time.Second, "1m 5s"},
		{2 * time.Hour, "2h"},
		{90 * time.Minute, "1h 30m"},
	}

	for _, tc := range tests {
		if result := formatDuration(tc.input); result != tc.expected {
			t.Errorf("formatDuration(%v) = %s, expected %s", tc.input, result, tc.expected)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0"},
		{100, "100"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-1234, "-1,234"},
	}

	for _, tc := range tests {
		if result := formatNumber(tc.input); result != tc.expected {
			t.Errorf("formatNumber(%d) = %s, expected %s", tc.input, result, tc.expected)
		}
	}
}

func TestFormatLatency(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected string
	}{
		{0, "0"},
		{250 * time.Microsecond, "250µs"},
		{2500 * time.Microsecond, "2.50ms"},
		{42 * time.Millisecond, "42.0ms"},
		{420 * time.Millisecond, "420ms"},
		{1500 * time.Millisecond, "1.50s"},
	}

	for _, tc := range tests {
		if result := formatLatency(tc.input); result != tc.expected {
			t.Errorf("formatLatency(%v) = %s, expected %s", tc.input, result, tc.expected)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{512, "512 B"},
		{2048, "2.00 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
	}

	for _, tc := range tests {
		if result := formatBytes(tc.input); result != tc.expected {
			t.Errorf("formatBytes(%d) = %s, expected %s", tc.input, result, tc.expected)
		}
	}
}
