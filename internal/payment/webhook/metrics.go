package webhook

import (
	"time"

	paymentdomain "github.com/medilink/medilink/internal/payment/domain"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	events   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medilink",
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Stripe webhook deliveries by event kind and outcome.",
		}, []string{"kind", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "medilink",
			Subsystem: "webhook",
			Name:      "duration_seconds",
			Help:      "Time spent reconciling one Stripe webhook event.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}
	if reg != nil {
		reg.MustRegister(m.events, m.duration)
	}
	return m
}

func (m *metrics) observe(kind paymentdomain.EventKind, outcome string, started time.Time) {
	m.events.WithLabelValues(string(kind), outcome).Inc()
	if !started.IsZero() {
		m.duration.WithLabelValues(string(kind)).Observe(time.Since(started).Seconds())
	}
}
