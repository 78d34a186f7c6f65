// Package metrics exposes check results as Prometheus metrics, either written
// to a node_exporter textfile after a one-shot check or served over HTTP in
// watch mode.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/supporttools/logcheck/pkg/types"
)

// Metrics contains all the Prometheus metrics recorded by logcheck
type Metrics struct {
	// Counter metrics
	LinesScannedTotal    *prometheus.CounterVec
	LinesMatchedTotal    *prometheus.CounterVec
	LinesClassifiedTotal *prometheus.CounterVec
	ClassifierErrors     *prometheus.CounterVec
	ChecksTotal          *prometheus.CounterVec

	// Gauge metrics
	Verdict    *prometheus.GaugeVec
	SeekOffset *prometheus.GaugeVec
	Info       *prometheus.GaugeVec

	// Histogram metrics
	CheckDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metric definitions
func NewMetrics(namespace string, constLabels prometheus.Labels) *Metrics {
	if namespace == "" {
		namespace = types.DefaultMetricsNamespace
	}

	labels := make(prometheus.Labels)
	for k, v := range constLabels {
		labels[k] = v
	}

	return &Metrics{
		LinesScannedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "lines_scanned_total",
				Help:        "Total number of log lines read",
				ConstLabels: labels,
			},
			[]string{"target"},
		),

		LinesMatchedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "lines_matched_total",
				Help:        "Total number of log lines accepted by the match and ignore patterns",
				ConstLabels: labels,
			},
			[]string{"target"},
		),

		LinesClassifiedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "lines_classified_total",
				Help:        "Total number of matched lines counted by the classifier",
				ConstLabels: labels,
			},
			[]string{"target"},
		),

		ClassifierErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "classifier_errors_total",
				Help:        "Total number of classifier faults",
				ConstLabels: labels,
			},
			[]string{"target"},
		),

		ChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "checks_total",
				Help:        "Total number of checks run, by verdict",
				ConstLabels: labels,
			},
			[]string{"target", "verdict"},
		),

		Verdict: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Name:        "verdict",
				Help:        "Verdict of the last check (0=OK, 1=WARNING, 2=CRITICAL, 3=UNKNOWN)",
				ConstLabels: labels,
			},
			[]string{"target"},
		),

		SeekOffset: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Name:        "seek_offset_bytes",
				Help:        "Byte offset persisted after the last check",
				ConstLabels: labels,
			},
			[]string{"target"},
		),

		Info: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Name:        "build_info",
				Help:        "Build information, value is always 1",
				ConstLabels: labels,
			},
			[]string{"version", "git_commit"},
		),

		CheckDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Name:        "check_duration_seconds",
				Help:        "Duration of a check in seconds",
				ConstLabels: labels,
				Buckets:     []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"target"},
		),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.LinesScannedTotal,
		m.LinesMatchedTotal,
		m.LinesClassifiedTotal,
		m.ClassifierErrors,
		m.ChecksTotal,
		m.Verdict,
		m.SeekOffset,
		m.Info,
		m.CheckDuration,
	}
}

// Register registers all metrics with the provided registry
func (m *Metrics) Register(registry *prometheus.Registry) error {
	for _, collector := range m.collectors() {
		if err := registry.Register(collector); err != nil {
			return fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return nil
}

// Unregister removes all metrics from the provided registry
func (m *Metrics) Unregister(registry *prometheus.Registry) {
	for _, collector := range m.collectors() {
		registry.Unregister(collector)
	}
}

// SetBuildInfo publishes the build information gauge.
func (m *Metrics) SetBuildInfo(version, gitCommit string) {
	m.Info.WithLabelValues(version, gitCommit).Set(1)
}

// ObserveCheck records one finished check. target is the configured log
// target, not the resolved file, so rotated names do not create new series.
func (m *Metrics) ObserveCheck(target string, verdict types.Verdict, res *types.ScanResult, duration time.Duration) {
	m.ChecksTotal.WithLabelValues(target, verdict.String()).Inc()
	m.Verdict.WithLabelValues(target).Set(float64(verdict.ExitCode()))
	m.CheckDuration.WithLabelValues(target).Observe(duration.Seconds())

	if res == nil {
		return
	}
	m.LinesScannedTotal.WithLabelValues(target).Add(float64(res.TotalLines))
	m.LinesMatchedTotal.WithLabelValues(target).Add(float64(res.MatchCount))
	m.LinesClassifiedTotal.WithLabelValues(target).Add(float64(res.ClassifiedCount))
	m.ClassifierErrors.WithLabelValues(target).Add(float64(len(res.Warnings)))
	m.SeekOffset.WithLabelValues(target).Set(float64(res.Offset))
}
