package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics records publisher batch outcomes.
type OutboxMetrics struct {
	published  *prometheus.CounterVec
	failed     *prometheus.CounterVec
	deadLetter *prometheus.CounterVec
	held       *prometheus.CounterVec
	batch      prometheus.Histogram
}

// NewOutboxMetrics registers the outbox publisher metrics on the provided registerer.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_published_total",
		Help: "Outbox events published.",
	}, []string{"event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_publish_failures_total",
		Help: "Outbox publish attempts that failed.",
	}, []string{"event_type"})
	deadLetter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_dead_lettered_total",
		Help: "Outbox events moved to the DLQ.",
	}, []string{"event_type", "reason"})
	held := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_held_total",
		Help: "Outbox events held back behind an earlier failed event of the same aggregate.",
	}, []string{"aggregate_type"})
	batch := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "outbox_batch_duration_seconds",
		Help:    "Duration of outbox publish batches.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(published, failed, deadLetter, held, batch)
	return &OutboxMetrics{published: published, failed: failed, deadLetter: deadLetter, held: held, batch: batch}
}

func (o *OutboxMetrics) IncPublished(eventType string) {
	if o == nil || o.published == nil {
		return
	}
	o.published.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (o *OutboxMetrics) IncFailure(eventType string) {
	if o == nil || o.failed == nil {
		return
	}
	o.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (o *OutboxMetrics) IncDeadLetter(eventType, reason string) {
	if o == nil || o.deadLetter == nil {
		return
	}
	o.deadLetter.WithLabelValues(normalizeLabel(eventType), normalizeLabel(reason)).Inc()
}

// IncHeld counts an event skipped because its aggregate is waiting on a retry.
func (o *OutboxMetrics) IncHeld(aggregateType string) {
	if o == nil || o.held == nil {
		return
	}
	o.held.WithLabelValues(normalizeLabel(aggregateType)).Inc()
}

// ObserveBatch records how long a publish batch took.
func (o *OutboxMetrics) ObserveBatch(d time.Duration) {
	if o == nil || o.batch == nil {
		return
	}
	o.batch.Observe(d.Seconds())
}
