package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Update outcome labels.
const (
	UpdateApplied  = "applied"
	UpdateNoop     = "noop"
	UpdateRejected = "rejected"
	UpdateNotFound = "not_found"
	UpdateError    = "error"
)

// Metrics holds all Prometheus metrics for the record store.
type Metrics struct {
	UpdatesTotal     *prometheus.CounterVec
	AuditEventsTotal prometheus.Counter
	StatsComputed    prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		UpdatesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "payboard_updates_total",
			Help: "Total number of transaction update calls by outcome",
		}, []string{"outcome"}),
		AuditEventsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "payboard_audit_events_total",
			Help: "Total number of audit events appended to the trail",
		}),
		StatsComputed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "payboard_stats_snapshots_total",
			Help: "Total number of dashboard stats snapshots computed",
		}),
	}
}

// ObserveUpdate records the outcome of one update call.
func (m *Metrics) ObserveUpdate(outcome string) {
	m.UpdatesTotal.WithLabelValues(outcome).Inc()
}

// AddAuditEvents increments the audit event counter by n.
func (m *Metrics) AddAuditEvents(n int) {
	m.AuditEventsTotal.Add(float64(n))
}

// IncStatsComputed increments the stats snapshot counter by 1.
func (m *Metrics) IncStatsComputed() {
	m.StatsComputed.Inc()
}
