package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"sketchd/internal/features"
)

// Extraction outcomes used as the "result" label.
const (
	ResultOK       = "ok"
	ResultInvalid  = "invalid"
	ResultRejected = "rejected"
)

// SketchMetrics holds all sketchd-specific metrics. A nil *SketchMetrics is
// valid and records nothing.
type SketchMetrics struct {
	registry *Registry

	ExtractionsTotal   *prometheus.CounterVec
	QCFlagsTotal       *prometheus.CounterVec
	SessionsRecorded   prometheus.Counter
	DuplicateSessions  prometheus.Counter
	ChangePointsTotal  prometheus.Counter
	ExtractionDuration prometheus.Histogram
	AnomalyScore       prometheus.Histogram
	HistoryDepth       prometheus.Histogram
	LastRunTimestamp   prometheus.Gauge
}

// NewSketchMetrics creates and registers all sketchd metrics.
func NewSketchMetrics(registry *Registry) *SketchMetrics {
	if registry == nil {
		registry = NewRegistry()
	}

	m := &SketchMetrics{
		registry: registry,

		ExtractionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "extractions_total",
			Help:      "Total drawings processed by outcome.",
		}, []string{"result"}), // "ok", "invalid", "rejected"

		QCFlagsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "qc_flags_total",
			Help:      "Total quality-control flags raised by flag.",
		}, []string{"flag"}),

		SessionsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "store",
			Name:      "sessions_recorded_total",
			Help:      "Total sessions written to the store.",
		}),

		DuplicateSessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "store",
			Name:      "duplicate_sessions_total",
			Help:      "Total drawings rejected because the subject already recorded them.",
		}),

		ChangePointsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "trend",
			Name:      "change_points_total",
			Help:      "Total sessions flagged as change points when they were recorded.",
		}),

		ExtractionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Feature extraction latency in seconds.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),

		AnomalyScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "anomaly_score",
			Help:      "Distribution of session anomaly scores.",
			Buckets:   []float64{0.5, 1, 1.5, 2, 3, 5, 10, 20},
		}),

		HistoryDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "baseline_history_depth",
			Help:      "Number of prior sessions available when scoring.",
			Buckets:   []float64{0, 1, 3, 5, 10, 20, 30},
		}),

		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last processed drawing.",
		}),
	}

	registry.MustRegister(
		m.ExtractionsTotal,
		m.QCFlagsTotal,
		m.SessionsRecorded,
		m.DuplicateSessions,
		m.ChangePointsTotal,
		m.ExtractionDuration,
		m.AnomalyScore,
		m.HistoryDepth,
		m.LastRunTimestamp,
	)

	return m
}

// Registry returns the registry the metrics live in.
func (m *SketchMetrics) Registry() *Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveExtraction records one extraction attempt.
func (m *SketchMetrics) ObserveExtraction(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.ExtractionsTotal.WithLabelValues(result).Inc()
	if result == ResultOK {
		m.ExtractionDuration.Observe(d.Seconds())
	}
	m.LastRunTimestamp.SetToCurrentTime()
}

// ObserveQC counts each raised quality-control flag.
func (m *SketchMetrics) ObserveQC(flags features.QCFlags) {
	if m == nil {
		return
	}
	for _, flag := range flags.Raised() {
		m.QCFlagsTotal.WithLabelValues(flag).Inc()
	}
}

// ObserveScore records an anomaly score and the history it was scored on.
func (m *SketchMetrics) ObserveScore(score float64, historyDepth int) {
	if m == nil {
		return
	}
	m.AnomalyScore.Observe(score)
	m.HistoryDepth.Observe(float64(historyDepth))
}

// SessionRecorded counts a stored session.
func (m *SketchMetrics) SessionRecorded() {
	if m == nil {
		return
	}
	m.SessionsRecorded.Inc()
}

// Duplicate counts a rejected duplicate drawing.
func (m *SketchMetrics) Duplicate() {
	if m == nil {
		return
	}
	m.DuplicateSessions.Inc()
}

// ChangePoint counts a session flagged as a change point.
func (m *SketchMetrics) ChangePoint() {
	if m == nil {
		return
	}
	m.ChangePointsTotal.Inc()
}
