// Package metrics exposes watcher metrics for Prometheus scraping.
// It uses the null object pattern to avoid nil checks throughout the codebase.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder defines the interface for recording watcher metrics.
type Recorder interface {
	// SetCriticalCount overwrites the per-source critical gauge for the
	// current cycle.
	SetCriticalCount(source string, count int)

	// RecordAlertSent increments the per-source delivered-alert counter.
	RecordAlertSent(source string)

	// RecordFetchError increments the per-source fetch failure counter.
	RecordFetchError(source string)
}

// NoOp is a Recorder that discards all metrics. Use it when metrics
// collection is not configured.
type NoOp struct{}

// NewNoOp creates a new no-op metrics recorder.
func NewNoOp() *NoOp {
	return &NoOp{}
}

func (n *NoOp) SetCriticalCount(_ string, _ int) {}
func (n *NoOp) RecordAlertSent(_ string)         {}
func (n *NoOp) RecordFetchError(_ string)        {}

var _ Recorder = (*NoOp)(nil)

// Prometheus records metrics to a prometheus registry.
type Prometheus struct {
	critical *prometheus.GaugeVec
	sent     *prometheus.CounterVec
	fetchErr *prometheus.CounterVec
}

// NewPrometheus creates the watcher's collectors on the given registry.
func NewPrometheus(reg *prometheus.Registry) *Prometheus {
	factory := promauto.With(reg)
	return &Prometheus{
		critical: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cve_critical_total",
				Help: "Number of critical (CVSS >= 9) vulnerabilities found in the last check, by source.",
			},
			[]string{"source"},
		),
		sent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cvewatch_alerts_sent_total",
				Help: "Total alerts successfully delivered, by source.",
			},
			[]string{"source"},
		),
		fetchErr: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cvewatch_fetch_errors_total",
				Help: "Total source fetch failures, by source.",
			},
			[]string{"source"},
		),
	}
}

func (p *Prometheus) SetCriticalCount(source string, count int) {
	p.critical.WithLabelValues(source).Set(float64(count))
}

func (p *Prometheus) RecordAlertSent(source string) {
	p.sent.WithLabelValues(source).Inc()
}

func (p *Prometheus) RecordFetchError(source string) {
	p.fetchErr.WithLabelValues(source).Inc()
}

var _ Recorder = (*Prometheus)(nil)

// NewServer creates the HTTP server that exposes the registry on /metrics
// for pull-based scraping.
func NewServer(port string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
