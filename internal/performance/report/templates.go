package report

// htmlTemplate renders a ReportData. Charts use Chart.js from a CDN and read
// the series from timeSeriesData.
const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Name}} - Load Test Report</title>
<script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
<style>
  :root { --fg: #1e293b; --muted: #64748b; --line: #e2e8f0; --bg: #f8fafc; --ok: #16a34a; --bad: #dc2626; --accent: #2563eb; }
  * { box-sizing: border-box; }
  body { margin: 0; font: 14px/1.5 -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; color: var(--fg); background: var(--bg); }
  main { max-width: 1200px; margin: 0 auto; padding: 24px; }
  header { display: flex; justify-content: space-between; align-items: flex-start; gap: 16px; margin-bottom: 24px; }
  h1 { margin: 0 0 4px; font-size: 24px; }
  h2 { font-size: 16px; margin: 32px 0 12px; }
  .meta { color: var(--muted); font-size: 13px; }
  .meta span { margin-right: 16px; }
  .status { padding: 6px 14px; border-radius: 6px; font-weight: 600; color: #fff; }
  .status.pass { background: var(--ok); }
  .status.fail { background: var(--bad); }
  .cards { display: grid; grid-template-columns: repeat(auto-fit, minmax(160px, 1fr)); gap: 12px; }
  .card { background: #fff; border: 1px solid var(--line); border-radius: 8px; padding: 14px; }
  .card .label { color: var(--muted); font-size: 12px; text-transform: uppercase; letter-spacing: .04em; }
  .card .value { font-size: 22px; font-weight: 600; }
  table { width: 100%; border-collapse: collapse; background: #fff; border: 1px solid var(--line); border-radius: 8px; overflow: hidden; }
  th, td { padding: 8px 12px; text-align: left; border-bottom: 1px solid var(--line); }
  th { background: var(--bg); font-size: 12px; color: var(--muted); text-transform: uppercase; }
  td.num, th.num { text-align: right; font-variant-numeric: tabular-nums; }
  .bad { color: var(--bad); }
  .ok { color: var(--ok); }
  .charts { display: grid; grid-template-columns: repeat(auto-fit, minmax(480px, 1fr)); gap: 12px; }
  .chart { background: #fff; border: 1px solid var(--line); border-radius: 8px; padding: 12px; height: 280px; }
  footer { margin-top: 32px; color: var(--muted); font-size: 12px; }
</style>
</head>
<body>
<main>
<header>
  <div>
    <h1>{{.Name}}</h1>
    {{if .Description}}<p>{{.Description}}</p>{{end}}
    <div class="meta">
      <span>Run {{.RunID}}</span>
      <span>Target {{.BaseURL}}</span>
      <span>Started {{.StartTime.Format "2006-01-02 15:04:05"}}</span>
      <span>Duration {{formatDuration .Duration}}</span>
    </div>
  </div>
  <div class="status {{if .Passed}}pass{{else}}fail{{end}}">{{if .Passed}}✓ PASSED{{else}}✗ FAILED{{end}}</div>
</header>
{{if .Error}}<p class="bad">Error: {{.Error}}</p>{{end}}

{{with .Metrics}}
<section class="cards">
  <div class="card"><div class="label">Total Requests</div><div class="value">{{formatNumber .TotalRequests}}</div></div>
  <div class="card"><div class="label">Throughput</div><div class="value">{{printf "%.1f" .RPS}} req/s</div></div>
  <div class="card"><div class="label">Success Rate</div><div class="value">{{successRate .}}</div></div>
  <div class="card"><div class="label">Check Pass Rate</div><div class="value">{{percent .CheckRate}}</div></div>
  <div class="card"><div class="label">P95 Latency</div><div class="value">{{formatLatency .Latency.P95}}</div></div>
  <div class="card"><div class="label">Data Received</div><div class="value">{{formatBytes .TotalBytes}}</div></div>
</section>

<h2>Latency</h2>
<table>
  <tr><th class="num">Min</th><th class="num">Mean</th><th class="num">P50</th><th class="num">P90</th><th class="num">P95</th><th class="num">P99</th><th class="num">Max</th><th class="num">Std Dev</th></tr>
  <tr>
    <td class="num">{{formatLatency .Latency.Min}}</td>
    <td class="num">{{formatLatency .Latency.Mean}}</td>
    <td class="num">{{formatLatency .Latency.P50}}</td>
    <td class="num">{{formatLatency .Latency.P90}}</td>
    <td class="num">{{formatLatency .Latency.P95}}</td>
    <td class="num">{{formatLatency .Latency.P99}}</td>
    <td class="num">{{formatLatency .Latency.Max}}</td>
    <td class="num">{{formatLatency .Latency.StdDev}}</td>
  </tr>
</table>
{{end}}

{{if .TimeSeries}}
<h2>Over Time</h2>
<section class="charts">
  <div class="chart"><canvas id="rpsChart"></canvas></div>
  <div class="chart"><canvas id="latencyChart"></canvas></div>
  <div class="chart"><canvas id="vusChart"></canvas></div>
  <div class="chart"><canvas id="errorChart"></canvas></div>
</section>
{{end}}

{{if .Requests}}
<h2>Requests</h2>
<table>
  <tr><th>Name</th><th class="num">Count</th><th class="num">Failed</th><th class="num">Mean</th><th class="num">P50</th><th class="num">P95</th><th class="num">P99</th><th class="num">Max</th></tr>
  {{range $name, $stats := .Requests}}
  <tr>
    <td>{{$name}}</td>
    <td class="num">{{formatNumber $stats.Count}}</td>
    <td class="num{{if $stats.Failed}} bad{{end}}">{{formatNumber $stats.Failed}}</td>
    <td class="num">{{formatLatency $stats.Latency.Mean}}</td>
    <td class="num">{{formatLatency $stats.Latency.P50}}</td>
    <td class="num">{{formatLatency $stats.Latency.P95}}</td>
    <td class="num">{{formatLatency $stats.Latency.P99}}</td>
    <td class="num">{{formatLatency $stats.Latency.Max}}</td>
  </tr>
  {{end}}
</table>
{{end}}

{{if .Failures}}
<h2>Failures</h2>
<table>
  <tr><th>Request</th><th>Message</th><th class="num">Count</th></tr>
  {{range .Failures}}
  <tr><td>{{.Name}}</td><td class="bad">{{.Message}}</td><td class="num">{{formatNumber .Count}}</td></tr>
  {{end}}
</table>
{{end}}

{{if .Scenarios}}
<h2>Scenarios</h2>
<table>
  <tr><th>Name</th><th>Executor</th><th>Profile</th><th class="num">Iterations</th><th class="num">Dropped</th><th class="num">Duration</th><th>Error</th></tr>
  {{range $name, $sc := .Scenarios}}
  <tr>
    <td>{{$name}}</td><td>{{$sc.Executor}}</td><td>{{$sc.Profile}}</td>
    <td class="num">{{formatNumber $sc.Iterations}}</td>
    <td class="num">{{formatNumber $sc.Dropped}}</td>
    <td class="num">{{formatDuration $sc.Duration}}</td>
    <td class="bad">{{$sc.Error}}</td>
  </tr>
  {{end}}
</table>
{{end}}

{{if .Phases}}
<h2>Phases</h2>
<table>
  <tr><th>Phase</th><th class="num">At</th><th class="num">Requests So Far</th></tr>
  {{$start := .StartTime}}
  {{range .Phases}}
  <tr><td>{{.Phase}}</td><td class="num">{{sinceStart $start .Timestamp}}</td><td class="num">{{formatNumber .Requests}}</td></tr>
  {{end}}
</table>
{{end}}

{{if .Thresholds}}
<h2>Thresholds</h2>
<table>
  <tr><th></th><th>Metric</th><th>Expression</th><th>Actual</th><th>Message</th></tr>
  {{range .Thresholds}}
  <tr>
    <td class="{{if .Passed}}ok{{else}}bad{{end}}">{{if .Passed}}✓{{else}}✗{{end}}</td>
    <td>{{.Metric}}</td><td>{{.Expression}}</td><td>{{.Value}}</td><td class="bad">{{.Message}}</td>
  </tr>
  {{end}}
</table>
{{end}}

<footer>Generated by shortload • {{.EndTime.Format "2006-01-02 15:04:05 MST"}}</footer>
</main>
<script>
  const timeSeriesData = {{.TimeSeriesJSON}};

  function lineChart(id, datasets, yTitle) {
    const el = document.getElementById(id);
    if (!el || typeof Chart === 'undefined') return;
    new Chart(el, {
      type: 'line',
      data: { labels: timeSeriesData.map(d => d.second + 's'), datasets: datasets },
      options: {
        responsive: true,
        maintainAspectRatio: false,
        interaction: { mode: 'index', intersect: false },
        elements: { point: { radius: 0 } },
        scales: { y: { beginAtZero: true, title: { display: true, text: yTitle } } },
        plugins: {
          tooltip: { callbacks: { afterTitle: items => 'phase: ' + timeSeriesData[items[0].dataIndex].phase } }
        }
      }
    });
  }

  lineChart('rpsChart', [{ label: 'Requests/s', data: timeSeriesData.map(d => d.intervalRPS), borderColor: '#2563eb' }], 'req/s');
  lineChart('latencyChart', [
    { label: 'P50', data: timeSeriesData.map(d => d.latencyP50), borderColor: '#16a34a' },
    { label: 'P95', data: timeSeriesData.map(d => d.latencyP95), borderColor: '#f59e0b' },
    { label: 'P99', data: timeSeriesData.map(d => d.latencyP99), borderColor: '#dc2626' }
  ], 'ms');
  lineChart('vusChart', [{ label: 'Active VUs', data: timeSeriesData.map(d => d.activeVUs), borderColor: '#7c3aed' }], 'VUs');
  lineChart('errorChart', [{ label: 'Error %', data: timeSeriesData.map(d => d.intervalErrorRate * 100), borderColor: '#dc2626' }], '%');
</script>
</body>
</html>
`
