// Package metrics exports Prometheus collectors for the delivery pipeline.
// A nil *Metrics, or one built without a registerer, records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "postbox"

// Metrics implements delivery.Metrics and reminder.Metrics.
type Metrics struct {
	enqueued         *prometheus.CounterVec
	sent             *prometheus.CounterVec
	retried          *prometheus.CounterVec
	failed           *prometheus.CounterVec
	providerFailures *prometheus.CounterVec
	trackingEvents   *prometheus.CounterVec
	remindersDone    *prometheus.CounterVec
	remindersFailed  *prometheus.CounterVec
	tickDuration     prometheus.Histogram
	tickDue          prometheus.Gauge
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}

	m := &Metrics{
		enqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_enqueued_total",
			Help:      "Deliveries admitted to the queue.",
		}, []string{"document_type"}),
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_sent_total",
			Help:      "Deliveries accepted by a provider.",
		}, []string{"provider"}),
		retried: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_retried_total",
			Help:      "Failed delivery attempts scheduled for retry.",
		}, []string{"document_type"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_failed_total",
			Help:      "Deliveries that ended failed.",
		}, []string{"reason"}),
		providerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_failures_total",
			Help:      "Send failures per provider, including ones recovered by failover.",
		}, []string{"provider"}),
		trackingEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracking_events_total",
			Help:      "Provider tracking events received.",
		}, []string{"event_type", "matched"}),
		remindersDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_processed_total",
			Help:      "Reminders handed to the delivery pipeline.",
		}, []string{"recurrence"}),
		remindersFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_failed_total",
			Help:      "Reminders that could not be processed.",
		}, []string{"reason"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_tick_duration_seconds",
			Help:      "Duration of scheduler ticks.",
			Buckets:   prometheus.DefBuckets,
		}),
		tickDue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_due_reminders",
			Help:      "Due reminders loaded by the last tick.",
		}),
	}

	reg.MustRegister(
		m.enqueued, m.sent, m.retried, m.failed, m.providerFailures,
		m.trackingEvents, m.remindersDone, m.remindersFailed, m.tickDuration, m.tickDue,
	)
	return m
}

func (m *Metrics) DeliveryEnqueued(documentType string) {
	if m == nil || m.enqueued == nil {
		return
	}
	m.enqueued.WithLabelValues(label(documentType)).Inc()
}

func (m *Metrics) DeliverySent(provider string) {
	if m == nil || m.sent == nil {
		return
	}
	m.sent.WithLabelValues(label(provider)).Inc()
}

func (m *Metrics) DeliveryRetried(documentType string) {
	if m == nil || m.retried == nil {
		return
	}
	m.retried.WithLabelValues(label(documentType)).Inc()
}

func (m *Metrics) DeliveryFailed(reason string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(label(reason)).Inc()
}

// ProviderFailed matches the mailer chain failure hook.
func (m *Metrics) ProviderFailed(provider string, _ error) {
	if m == nil || m.providerFailures == nil {
		return
	}
	m.providerFailures.WithLabelValues(label(provider)).Inc()
}

func (m *Metrics) TrackingEvent(eventType string, matched bool) {
	if m == nil || m.trackingEvents == nil {
		return
	}
	v := "false"
	if matched {
		v = "true"
	}
	m.trackingEvents.WithLabelValues(label(eventType), v).Inc()
}

func (m *Metrics) ReminderProcessed(recurrence string) {
	if m == nil || m.remindersDone == nil {
		return
	}
	m.remindersDone.WithLabelValues(label(recurrence)).Inc()
}

func (m *Metrics) ReminderFailed(reason string) {
	if m == nil || m.remindersFailed == nil {
		return
	}
	m.remindersFailed.WithLabelValues(label(reason)).Inc()
}

func (m *Metrics) SchedulerTick(took time.Duration, due int) {
	if m == nil || m.tickDuration == nil {
		return
	}
	m.tickDuration.Observe(took.Seconds())
	m.tickDue.Set(float64(due))
}

func label(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
