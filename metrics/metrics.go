package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "argo_import"

// Metrics holds the Prometheus counters and histograms for a scan run
type Metrics struct {
	registry *prometheus.Registry

	FilesProcessed     *prometheus.CounterVec // labels: status={loaded,zero-loaded,rejected,failed}
	MeasurementsLoaded prometheus.Counter
	RowsDropped        prometheus.Counter
	FloatsResolved     *prometheus.CounterVec // labels: policy={raw,adjusted}
	FileDuration       prometheus.Histogram
	LastRunTimestamp   prometheus.Gauge
}

// New creates the metrics on their own registry. A run writes them out
// once at the end, so nothing is registered globally.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FilesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_processed_total",
			Help:      "Float files processed by outcome.",
		}, []string{"status"}),
		MeasurementsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "measurements_loaded_total",
			Help:      "Measurement rows appended.",
		}),
		RowsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Rows dropped for missing required fields.",
		}),
		FloatsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "floats_resolved_total",
			Help:      "Float identities resolved by field mapping policy.",
		}, []string{"policy"}),
		FileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "file_duration_seconds",
			Help:      "Time to decode, map and load one file.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last scan finished.",
		}),
	}

	m.registry.MustRegister(
		m.FilesProcessed,
		m.MeasurementsLoaded,
		m.RowsDropped,
		m.FloatsResolved,
		m.FileDuration,
		m.LastRunTimestamp,
	)

	return m
}

// ObserveFile records the outcome of one file
func (m *Metrics) ObserveFile(status, policy string, loaded, dropped int, floatResolved bool, d time.Duration) {
	m.FilesProcessed.WithLabelValues(status).Inc()
	m.MeasurementsLoaded.Add(float64(loaded))
	m.RowsDropped.Add(float64(dropped))
	if floatResolved {
		m.FloatsResolved.WithLabelValues(policy).Inc()
	}
	m.FileDuration.Observe(d.Seconds())
}

// Finish stamps the end of a run
func (m *Metrics) Finish(at time.Time) {
	m.LastRunTimestamp.Set(float64(at.Unix()))
}

// WriteTextfile writes the metrics in the text exposition format, for a
// node exporter textfile collector
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
