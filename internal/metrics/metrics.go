// Package metrics provides Prometheus instrumentation for sketchd.
//
// Features:
//   - Counters for extractions, QC flags, recorded sessions, change points
//   - Histograms for extraction latency and anomaly scores
//   - Text exposition for the node-exporter textfile collector
//   - Optional HTTP endpoint for scraping
package metrics

import (
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

// Namespace prefixes every sketchd metric.
const Namespace = "sketchd"

// Registry is an isolated Prometheus registry. Each Registry owns its
// collectors so that tests and short-lived CLI runs never collide on the
// global default registerer.
type Registry struct {
	reg *prometheus.Registry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{reg: prometheus.NewRegistry()}
}

// MustRegister registers collectors and panics on duplicates.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.reg.MustRegister(cs...)
}

// Gatherer exposes the underlying registry for promhttp and textfile output.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// WritePrometheus writes all metrics in the Prometheus text format.
func (r *Registry) WritePrometheus(w io.Writer) error {
	families, err := r.reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// WriteTextfile atomically writes all metrics to path for the node-exporter
// textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// HTTPHandler returns an HTTP handler serving the registry.
func (r *Registry) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
