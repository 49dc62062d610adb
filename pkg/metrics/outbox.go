package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics tracks outbox dispatcher throughput per event type.
type OutboxMetrics struct {
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
	skipped   *prometheus.CounterVec
}

// NewOutboxMetrics registers the outbox dispatcher metrics.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_published_total",
		Help: "Outbox events published to Pub/Sub.",
	}, []string{"event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_failed_total",
		Help: "Outbox events that failed to publish.",
	}, []string{"event_type"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_skipped_total",
		Help: "Outbox events dropped as non-retryable.",
	}, []string{"event_type"})
	reg.MustRegister(published, failed, skipped)
	return &OutboxMetrics{
		published: published,
		failed:    failed,
		skipped:   skipped,
	}
}

// IncPublished increments the published counter for the event type.
func (o *OutboxMetrics) IncPublished(eventType string) {
	if o == nil || o.published == nil {
		return
	}
	o.published.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncFailed increments the failure counter for the event type.
func (o *OutboxMetrics) IncFailed(eventType string) {
	if o == nil || o.failed == nil {
		return
	}
	o.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncSkipped increments the skipped counter for the event type.
func (o *OutboxMetrics) IncSkipped(eventType string) {
	if o == nil || o.skipped == nil {
		return
	}
	o.skipped.WithLabelValues(normalizeLabel(eventType)).Inc()
}
