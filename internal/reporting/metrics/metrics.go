package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics provides observability for the change-reporting engine.
type Metrics struct {
	// Report assembly latency by root kind and outcome
	ReportLatency *prometheus.HistogramVec

	// Classified nodes by kind and action
	NodesClassified *prometheus.CounterVec

	// Nodes dropped because no snapshot could be resolved
	Unresolvable *prometheus.CounterVec

	// Transient (created and deleted in window) entities filtered out
	TransientFiltered *prometheus.CounterVec

	// Snapshots served from the live table because history was incomplete
	LiveFallbacks *prometheus.CounterVec

	// Closed-window cache lookups by result
	CacheLookups *prometheus.CounterVec
}

// New creates the engine metrics and registers them with reg. A nil reg uses
// the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		ReportLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "changereport_report_duration_seconds",
			Help:    "Duration of report assembly by root kind and outcome",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"kind", "outcome"}), // outcome: "ok", "partial", "error", "cached"

		NodesClassified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "changereport_nodes_classified_total",
			Help: "Total report nodes classified by kind and action",
		}, []string{"kind", "action"}),

		Unresolvable: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "changereport_unresolvable_total",
			Help: "Total nodes dropped because no snapshot could be resolved",
		}, []string{"kind"}),

		TransientFiltered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "changereport_transient_filtered_total",
			Help: "Total entities created and deleted inside the window and filtered out",
		}, []string{"kind"}),

		LiveFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "changereport_live_fallbacks_total",
			Help: "Total snapshots resolved from the live table because history was incomplete",
		}, []string{"kind"}),

		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "changereport_cache_lookups_total",
			Help: "Closed-window cache lookups by result",
		}, []string{"result"}), // result: "hit", "miss", "error"
	}
	reg.MustRegister(
		m.ReportLatency,
		m.NodesClassified,
		m.Unresolvable,
		m.TransientFiltered,
		m.LiveFallbacks,
		m.CacheLookups,
	)
	return m
}

// ObserveReport records the duration of one report request.
func (m *Metrics) ObserveReport(kind, outcome string, d time.Duration) {
	if m != nil {
		m.ReportLatency.WithLabelValues(kind, outcome).Observe(d.Seconds())
	}
}

// IncClassified records a classified node.
func (m *Metrics) IncClassified(kind, action string) {
	if m != nil {
		m.NodesClassified.WithLabelValues(kind, action).Inc()
	}
}

// IncUnresolvable records a dropped node.
func (m *Metrics) IncUnresolvable(kind string) {
	if m != nil {
		m.Unresolvable.WithLabelValues(kind).Inc()
	}
}

// IncTransient records a filtered transient entity.
func (m *Metrics) IncTransient(kind string) {
	if m != nil {
		m.TransientFiltered.WithLabelValues(kind).Inc()
	}
}

// IncLiveFallback records a live-table snapshot.
func (m *Metrics) IncLiveFallback(kind string) {
	if m != nil {
		m.LiveFallbacks.WithLabelValues(kind).Inc()
	}
}

// IncCacheLookup records a cache lookup result.
func (m *Metrics) IncCacheLookup(result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(result).Inc()
	}
}
