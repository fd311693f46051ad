package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
)

// Metrics tracks operational metrics for fetches and renders. All
// counters are atomics; concurrent updates need no coordination.
type Metrics struct {
	// Fetch outcomes
	FetchesTotal     atomic.Int64
	FetchesSucceeded atomic.Int64
	FetchesFailed    atomic.Int64

	// Failure taxonomy
	Timeouts        atomic.Int64
	TransportErrors atomic.Int64
	UpstreamErrors  atomic.Int64
	ParseErrors     atomic.Int64
	BinaryRejected  atomic.Int64

	// Response classes
	Responses2xx atomic.Int64
	Responses3xx atomic.Int64
	Responses4xx atomic.Int64
	Responses5xx atomic.Int64

	BytesFetched atomic.Int64

	// Render service
	RendersTotal  atomic.Int64
	RendersFailed atomic.Int64
	ActivePages   atomic.Int32

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

// CountStatus increments the response-class counter for a status code.
// A zero code (no status determined) counts nothing.
func (m *Metrics) CountStatus(code int) {
	switch {
	case code >= 200 && code < 300:
		m.Responses2xx.Add(1)
	case code >= 300 && code < 400:
		m.Responses3xx.Add(1)
	case code >= 400 && code < 500:
		m.Responses4xx.Add(1)
	case code >= 500 && code < 600:
		m.Responses5xx.Add(1)
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	metrics := []struct {
		name  string
		help  string
		value int64
	}{
		{"pagehaul_fetches_total", "Total fetch calls", m.FetchesTotal.Load()},
		{"pagehaul_fetches_succeeded_total", "Total successful fetches", m.FetchesSucceeded.Load()},
		{"pagehaul_fetches_failed_total", "Total failed fetches", m.FetchesFailed.Load()},
		{"pagehaul_fetch_timeouts_total", "Fetches that hit the deadline", m.Timeouts.Load()},
		{"pagehaul_fetch_transport_errors_total", "Fetches with connection/DNS errors", m.TransportErrors.Load()},
		{"pagehaul_fetch_upstream_errors_total", "Fetches rejected by upstream status", m.UpstreamErrors.Load()},
		{"pagehaul_fetch_parse_errors_total", "Malformed render envelopes", m.ParseErrors.Load()},
		{"pagehaul_fetch_binary_rejected_total", "Bodies rejected as binary/PDF", m.BinaryRejected.Load()},
		{"pagehaul_responses_2xx_total", "Total 2xx responses", m.Responses2xx.Load()},
		{"pagehaul_responses_3xx_total", "Total 3xx responses", m.Responses3xx.Load()},
		{"pagehaul_responses_4xx_total", "Total 4xx responses", m.Responses4xx.Load()},
		{"pagehaul_responses_5xx_total", "Total 5xx responses", m.Responses5xx.Load()},
		{"pagehaul_bytes_fetched_total", "Total body bytes retrieved", m.BytesFetched.Load()},
		{"pagehaul_renders_total", "Total render requests served", m.RendersTotal.Load()},
		{"pagehaul_renders_failed_total", "Total failed renders", m.RendersFailed.Load()},
		{"pagehaul_active_pages", "Browser pages currently rendering", int64(m.ActivePages.Load())},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", metric.name)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// Snapshot returns all metrics as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"fetches_total":     m.FetchesTotal.Load(),
		"fetches_succeeded": m.FetchesSucceeded.Load(),
		"fetches_failed":    m.FetchesFailed.Load(),
		"timeouts":          m.Timeouts.Load(),
		"transport_errors":  m.TransportErrors.Load(),
		"upstream_errors":   m.UpstreamErrors.Load(),
		"parse_errors":      m.ParseErrors.Load(),
		"binary_rejected":   m.BinaryRejected.Load(),
		"bytes_fetched":     m.BytesFetched.Load(),
		"renders_total":     m.RendersTotal.Load(),
		"renders_failed":    m.RendersFailed.Load(),
	}
}
