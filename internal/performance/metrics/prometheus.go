package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shortload"

// Collector exposes an Engine's live snapshot as Prometheus metrics.
// Values are read on every scrape, so nothing is duplicated in memory.
type Collector struct {
	engine *Engine

	requests      *prometheus.Desc
	bytes         *prometheus.Desc
	checks        *prometheus.Desc
	activeVUs     *prometheus.Desc
	latency       *prometheus.Desc
	requestCount  *prometheus.Desc
	requestFailed *prometheus.Desc
	failures      *prometheus.Desc
}

// NewCollector creates a collector for engine.
func NewCollector(engine *Engine) *Collector {
	return &Collector{
		engine: engine,
		requests: prometheus.NewDesc(namespace+"_requests_total",
			"Requests issued, by result.", []string{"result"}, nil),
		bytes: prometheus.NewDesc(namespace+"_received_bytes_total",
			"Response bytes received.", nil, nil),
		checks: prometheus.NewDesc(namespace+"_checks_total",
			"Response checks evaluated, by result.", []string{"result"}, nil),
		activeVUs: prometheus.NewDesc(namespace+"_active_vus",
			"Virtual users currently running.", nil, nil),
		latency: prometheus.NewDesc(namespace+"_request_duration_seconds",
			"Request latency quantiles over the whole run.", []string{"quantile"}, nil),
		requestCount: prometheus.NewDesc(namespace+"_endpoint_requests_total",
			"Requests per endpoint.", []string{"name"}, nil),
		requestFailed: prometheus.NewDesc(namespace+"_endpoint_failures_total",
			"Failed requests per endpoint.", []string{"name"}, nil),
		failures: prometheus.NewDesc(namespace+"_failure_messages_total",
			"Failures grouped by endpoint and message.", []string{"name", "message"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.requests
	ch <- c.bytes
	ch <- c.checks
	ch <- c.activeVUs
	ch <- c.latency
	ch <- c.requestCount
	ch <- c.requestFailed
	ch <- c.failures
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.engine.GetSnapshot()

	ch <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(s.SuccessRequests), "success")
	ch <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(s.FailedRequests), "failure")
	ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.CounterValue, float64(s.TotalBytes))
	ch <- prometheus.MustNewConstMetric(c.checks, prometheus.CounterValue, float64(s.ChecksPassed), "pass")
	ch <- prometheus.MustNewConstMetric(c.checks, prometheus.CounterValue, float64(s.ChecksFailed), "fail")
	ch <- prometheus.MustNewConstMetric(c.activeVUs, prometheus.GaugeValue, float64(s.ActiveVUs))

	quantiles := map[string]float64{
		"0.5":  s.Latency.P50.Seconds(),
		"0.9":  s.Latency.P90.Seconds(),
		"0.95": s.Latency.P95.Seconds(),
		"0.99": s.Latency.P99.Seconds(),
	}
	for q, v := range quantiles {
		ch <- prometheus.MustNewConstMetric(c.latency, prometheus.GaugeValue, v, q)
	}

	for name, rs := range c.engine.GetRequestStats() {
		ch <- prometheus.MustNewConstMetric(c.requestCount, prometheus.CounterValue, float64(rs.Count), name)
		ch <- prometheus.MustNewConstMetric(c.requestFailed, prometheus.CounterValue, float64(rs.Failed), name)
	}

	for _, f := range c.engine.GetFailures() {
		ch <- prometheus.MustNewConstMetric(c.failures, prometheus.CounterValue, float64(f.Count), f.Name, f.Message)
	}
}

var _ prometheus.Collector = (*Collector)(nil)

// Handler serves engine's metrics, plus Go runtime metrics, in the
// Prometheus text format. Each call uses its own registry.
func Handler(engine *Engine) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		NewCollector(engine),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
