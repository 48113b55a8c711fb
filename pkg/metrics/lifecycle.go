package metrics

import "github.com/prometheus/client_golang/prometheus"

// LifecycleMetrics counts order and report status transitions.
type LifecycleMetrics struct {
	transitions *prometheus.CounterVec
	overrides   *prometheus.CounterVec
	rejected    *prometheus.CounterVec
}

// NewLifecycleMetrics registers the lifecycle counters on the provided registerer.
func NewLifecycleMetrics(reg prometheus.Registerer) *LifecycleMetrics {
	if reg == nil {
		return &LifecycleMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lifecycle_transitions_total",
		Help: "Applied status transitions by aggregate.",
	}, []string{"aggregate", "from", "to"})
	overrides := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lifecycle_admin_overrides_total",
		Help: "Admin status writes that left the normal transition graph.",
	}, []string{"aggregate", "from", "to"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lifecycle_rejected_total",
		Help: "Transition attempts refused by a lifecycle guard.",
	}, []string{"aggregate", "reason"})
	reg.MustRegister(transitions, overrides, rejected)
	return &LifecycleMetrics{transitions: transitions, overrides: overrides, rejected: rejected}
}

// Transition records an applied status change.
func (l *LifecycleMetrics) Transition(aggregate, from, to string) {
	if l == nil || l.transitions == nil {
		return
	}
	l.transitions.WithLabelValues(normalizeLabel(aggregate), normalizeLabel(from), normalizeLabel(to)).Inc()
}

// Override records an admin write outside the transition graph.
func (l *LifecycleMetrics) Override(aggregate, from, to string) {
	if l == nil || l.overrides == nil {
		return
	}
	l.overrides.WithLabelValues(normalizeLabel(aggregate), normalizeLabel(from), normalizeLabel(to)).Inc()
}

// Rejected records a guard refusal such as an illegal transition.
func (l *LifecycleMetrics) Rejected(aggregate, reason string) {
	if l == nil || l.rejected == nil {
		return
	}
	l.rejected.WithLabelValues(normalizeLabel(aggregate), normalizeLabel(reason)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
