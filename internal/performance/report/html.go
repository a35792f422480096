// Package report writes load test results as a standalone HTML page or as
// JSON.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/wesleyorama2/shortload/internal/performance/engine"
	"github.com/wesleyorama2/shortload/internal/performance/metrics"
)

// ReportData contains all data needed to render the HTML report.
type ReportData struct {
	*engine.TestResult
	TimeSeriesJSON template.JS
}

// TimeSeriesPoint is one chart sample. Latencies are in milliseconds.
type TimeSeriesPoint struct {
	Second            int     `json:"second"`
	IntervalRPS       float64 `json:"intervalRPS"`
	IntervalErrorRate float64 `json:"intervalErrorRate"`
	LatencyP50        float64 `json:"latencyP50"`
	LatencyP95        float64 `json:"latencyP95"`
	LatencyP99        float64 `json:"latencyP99"`
	ActiveVUs         int     `json:"activeVUs"`
	Phase             string  `json:"phase"`
}

var reportTemplate = template.Must(template.New("report").Funcs(templateFuncs()).Parse(htmlTemplate))

// GenerateHTML renders the report and writes it to outputPath, creating the
// parent directory if needed.
func GenerateHTML(result *engine.TestResult, outputPath string) error {
	html, err := GenerateHTMLString(result)
	if err != nil {
		return fmt.Errorf("failed to generate HTML: %w", err)
	}
	return writeFile(outputPath, []byte(html))
}

// GenerateHTMLString renders the report.
func GenerateHTMLString(result *engine.TestResult) (string, error) {
	if result == nil {
		return "", fmt.Errorf("result cannot be nil")
	}

	timeSeriesJSON, err := convertTimeSeriesJSON(result.StartTime, result.TimeSeries)
	if err != nil {
		return "", fmt.Errorf("failed to convert time series: %w", err)
	}

	data := ReportData{
		TestResult:     result,
		TimeSeriesJSON: template.JS(timeSeriesJSON),
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// WriteJSON writes the indented result to outputPath.
func WriteJSON(result *engine.TestResult, outputPath string) error {
	data, err := MarshalJSON(result)
	if err != nil {
		return err
	}
	return writeFile(outputPath, data)
}

// MarshalJSON returns the indented JSON encoding of result.
func MarshalJSON(result *engine.TestResult) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("result cannot be nil")
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return append(data, '\n'), nil
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func convertTimeSeriesJSON(start time.Time, timeSeries []*metrics.TimeBucket) (string, error) {
	points := make([]TimeSeriesPoint, 0, len(timeSeries))
	for i, bucket := range timeSeries {
		second := i + 1
		if !start.IsZero() {
			second = int(bucket.Timestamp.Sub(start).Round(time.Second) / time.Second)
		}
		points = append(points, TimeSeriesPoint{
			Second:            second,
			IntervalRPS:       bucket.IntervalRPS,
			IntervalErrorRate: bucket.IntervalErrorRate,
			LatencyP50:        toMillis(bucket.LatencyP50),
			LatencyP95:        toMillis(bucket.LatencyP95),
			LatencyP99:        toMillis(bucket.LatencyP99),
			ActiveVUs:         bucket.ActiveVUs,
			Phase:             string(bucket.Phase),
		})
	}

	jsonBytes, err := json.Marshal(points)
	if err != nil {
		return "[]", err
	}
	return string(jsonBytes), nil
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatDuration": formatDuration,
		"formatNumber":   formatNumber,
		"formatLatency":  formatLatency,
		"formatBytes":    formatBytes,
		"percent":        percent,
		"successRate":    successRate,
		"sinceStart":     sinceStart,
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		if secs == 0 {
			return fmt.Sprintf("%dm", mins)
		}
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	if mins == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh %dm", hours, mins)
}

func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	str := fmt.Sprintf("%d", n)
	var out []byte
	for i := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, str[i])
	}
	return string(out)
}

// formatLatency keeps three significant digits for sub-second values.
func formatLatency(d time.Duration) string {
	switch {
	case d == 0:
		return "0"
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < 10*time.Millisecond:
		return fmt.Sprintf("%.2fms", toMillis(d))
	case d < 100*time.Millisecond:
		return fmt.Sprintf("%.1fms", toMillis(d))
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}

func formatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

func percent(rate float64) string {
	return fmt.Sprintf("%.2f%%", rate*100)
}

func successRate(m *metrics.Snapshot) string {
	if m == nil || m.TotalRequests == 0 {
		return percent(0)
	}
	return percent(float64(m.SuccessRequests) / float64(m.TotalRequests))
}

// sinceStart renders a phase change as an offset from the run start.
func sinceStart(start, at time.Time) string {
	if start.IsZero() || at.Before(start) {
		return "0ms"
	}
	return formatDuration(at.Sub(start))
}
