/*
Package metrics holds the Prometheus collectors for a scraper run. A run is a
batch job, so the registry is written to a node-exporter textfile at the end
instead of being served.
*/
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the collectors for one run. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	ItemsTotal      *prometheus.CounterVec
	ErrorsTotal     *prometheus.CounterVec
	GeocodeFailures prometheus.Counter
	EmailsTotal     *prometheus.CounterVec
	LastRunSeconds  prometheus.Gauge
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bottlescraper_requests_total",
			Help: "Total HTTP requests issued to the store locator.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bottlescraper_request_duration_seconds",
			Help:    "Latency of store locator requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	items := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bottlescraper_items_total",
			Help: "Catalog items searched, by result kind.",
		},
		[]string{"kind"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bottlescraper_errors_total",
			Help: "Request errors by type.",
		},
		[]string{"error_type"},
	)
	geocodeFailures := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bottlescraper_geocode_failures_total",
			Help: "Store addresses that could not be placed on a map.",
		},
	)
	emails := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bottlescraper_emails_total",
			Help: "Report e-mails by delivery result.",
		},
		[]string{"result"},
	)
	lastRun := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bottlescraper_last_run_timestamp_seconds",
			Help: "Unix time the last run completed.",
		},
	)

	registry.MustRegister(requests, requestDuration, items, errorsTotal, geocodeFailures, emails, lastRun)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		ItemsTotal:      items,
		ErrorsTotal:     errorsTotal,
		GeocodeFailures: geocodeFailures,
		EmailsTotal:     emails,
		LastRunSeconds:  lastRun,
	}
}

// IncRequest counts a request for phase ("prime" or "search").
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncItem counts a searched item by result kind.
func (m *Metrics) IncItem(kind string) {
	if m == nil {
		return
	}
	m.ItemsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

func (m *Metrics) AddGeocodeFailures(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.GeocodeFailures.Add(float64(n))
}

// IncEmail counts a report e-mail with result "sent" or "failed".
func (m *Metrics) IncEmail(result string) {
	if m == nil {
		return
	}
	m.EmailsTotal.WithLabelValues(result).Inc()
}

// MarkCompleted stamps the completion time of the run.
func (m *Metrics) MarkCompleted(t time.Time) {
	if m == nil {
		return
	}
	m.LastRunSeconds.Set(float64(t.Unix()))
}

// WriteTextfile writes the registry in text exposition format to path.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create metrics directory %s: %w", dir, err)
		}
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
