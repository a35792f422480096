package output

import (
	"fmt"
	"sort"
	"strings"

	"github.com/thoas/go-funk"

	"github.com/wesleyorama2/shortload/internal/performance/engine"
)

// maxFailureRows bounds the failure table; the rest is summarised.
const maxFailureRows = 10

// PrintSummary prints the final test summary.
func (c *ConsoleOutput) PrintSummary(result *engine.TestResult) {
	p := c.colors
	if c.quiet {
		if result.Passed {
			c.writeln(p.Good.Sprint("PASSED"))
		} else {
			c.writeln(p.Bad.Sprint("FAILED"))
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isTTY {
		c.clearLive()
	}

	line := strings.Repeat(boxHorizontal, 56)
	status := p.Good.Sprint("Completed ✓")
	if !result.Passed {
		status = p.Bad.Sprint("Failed ✗")
	}

	c.writeln("")
	c.writeln(p.Accent.Sprint(line))
	c.writeln(fmt.Sprintf("%s - %s", p.Bold.Sprint(result.Name), status))
	c.writeln(p.Accent.Sprint(line))
	c.writeln("")

	c.writeln(fmt.Sprintf("Run ID:        %s", p.Dim.Sprint(result.RunID)))
	c.writeln(fmt.Sprintf("Target:        %s", result.BaseURL))
	c.writeln(fmt.Sprintf("Duration:      %s", p.Accent.Sprint(formatDuration(result.Duration))))
	if m := result.Metrics; m != nil {
		c.writeln(fmt.Sprintf("Total Reqs:    %s", p.Accent.Sprint(formatNumber(m.TotalRequests))))
		c.writeln(fmt.Sprintf("Throughput:    %s", p.Accent.Sprintf("%.1f req/s", m.RPS)))
		c.writeln(fmt.Sprintf("Success Rate:  %s", p.rate(m.ErrorRate).Sprintf("%.1f%%", (1-m.ErrorRate)*100)))
		c.writeln(fmt.Sprintf("Checks:        %s (%d passed, %d failed)",
			p.rate(1-m.CheckRate).Sprintf("%.1f%%", m.CheckRate*100), m.ChecksPassed, m.ChecksFailed))
		if result.Error != "" {
			c.writeln(fmt.Sprintf("Error:         %s", p.Bad.Sprint(result.Error)))
		}
		c.writeln("")

		c.writeln(p.Bold.Sprint("Latency Distribution:"))
		c.writeln(fmt.Sprintf("  Min:       %s", formatDurationShort(m.Latency.Min)))
		c.writeln(fmt.Sprintf("  P50:       %s", formatDurationShort(m.Latency.P50)))
		c.writeln(fmt.Sprintf("  P90:       %s", formatDurationShort(m.Latency.P90)))
		c.writeln(fmt.Sprintf("  P95:       %s", formatDurationShort(m.Latency.P95)))
		c.writeln(fmt.Sprintf("  P99:       %s", formatDurationShort(m.Latency.P99)))
		c.writeln(fmt.Sprintf("  Max:       %s", formatDurationShort(m.Latency.Max)))
		c.writeln("")
	}

	c.printScenarios(result)
	c.printRequests(result)
	c.printFailures(result)

	if len(result.Thresholds) > 0 {
		c.writeln(p.Bold.Sprint("Thresholds:"))
		for _, t := range result.Thresholds {
			mark := p.Good.Sprint("✓")
			if !t.Passed {
				mark = p.Bad.Sprint("✗")
			}
			c.writeln(fmt.Sprintf("  %s %s %s (actual: %s)", mark, t.Metric, t.Expression, t.Value))
		}
		c.writeln("")
	}
}

func (c *ConsoleOutput) printScenarios(result *engine.TestResult) {
	if len(result.Scenarios) == 0 {
		return
	}

	c.writeln(c.colors.Bold.Sprint("Scenarios:"))
	c.writeln(fmt.Sprintf("  %-20s %-24s %-14s %10s %10s", "Name", "Executor", "Profile", "Iters", "Duration"))
	for _, name := range sortedKeys(result.Scenarios) {
		sc := result.Scenarios[name]
		c.writeln(fmt.Sprintf("  %-20s %-24s %-14s %10s %10s",
			name, sc.Executor, sc.Profile, formatNumber(sc.Iterations), formatDuration(sc.Duration)))
		if sc.Error != "" {
			c.writeln("    " + c.colors.Bad.Sprint(sc.Error))
		}
	}
	c.writeln("")
}

func (c *ConsoleOutput) printRequests(result *engine.TestResult) {
	if len(result.Requests) == 0 {
		return
	}

	c.writeln(c.colors.Bold.Sprint("Requests:"))
	c.writeln(fmt.Sprintf("  %-28s %10s %8s %9s %9s %9s", "Name", "Count", "Failed", "Avg", "P95", "P99"))
	for _, name := range sortedKeys(result.Requests) {
		rs := result.Requests[name]
		failed := fmt.Sprintf("%8d", rs.Failed)
		if rs.Failed > 0 {
			failed = c.colors.Bad.Sprint(failed)
		}
		c.writeln(fmt.Sprintf("  %-28s %10s %s %9s %9s %9s",
			name,
			formatNumber(rs.Count),
			failed,
			formatDurationShort(rs.Latency.Mean),
			formatDurationShort(rs.Latency.P95),
			formatDurationShort(rs.Latency.P99)))
	}
	c.writeln("")
}

func (c *ConsoleOutput) printFailures(result *engine.TestResult) {
	if len(result.Failures) == 0 {
		return
	}

	c.writeln(c.colors.Bold.Sprint("Failures:"))
	shown := result.Failures
	if len(shown) > maxFailureRows {
		shown = shown[:maxFailureRows]
	}
	for _, f := range shown {
		c.writeln(fmt.Sprintf("  %s %-28s %s",
			c.colors.Bad.Sprintf("%6d", f.Count), f.Name, f.Message))
	}
	if rest := len(result.Failures) - len(shown); rest > 0 {
		c.writeln(c.colors.Dim.Sprintf("  ... and %d more", rest))
	}
	c.writeln("")
}

// sortedKeys returns the keys of a string-keyed map in order.
func sortedKeys(m interface{}) []string {
	keys, ok := funk.Keys(m).([]string)
	if !ok {
		return nil
	}
	sort.Strings(keys)
	return keys
}
