// Package metrics records relay activity as Prometheus metrics and serves
// them alongside a health endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "smtp2webhook"

// Recorder holds the relay collectors. A nil *Recorder records nothing.
type Recorder struct {
	received   prometheus.Counter
	rejected   *prometheus.CounterVec
	deliveries *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewRecorder registers the relay collectors with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		received: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of complete messages handed over by the SMTP transport",
		}),
		rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_rejected_total",
			Help:      "Total number of messages refused at the SMTP level by reason",
		}, []string{"reason"}),
		deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Total number of delivery attempts by sink and outcome",
		}, []string{"sink", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_duration_seconds",
			Help:      "Duration of delivery attempts in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"sink"}),
	}
}

// MessageReceived counts one message handed to the coordinator.
func (r *Recorder) MessageReceived() {
	if r == nil {
		return
	}
	r.received.Inc()
}

// MessageRejected counts one message refused at the protocol level.
func (r *Recorder) MessageRejected(reason string) {
	if r == nil {
		return
	}
	r.rejected.WithLabelValues(reason).Inc()
}

// Delivery records one delivery attempt. outcome is "delivered" or a
// failure class.
func (r *Recorder) Delivery(sink, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.deliveries.WithLabelValues(sink, outcome).Inc()
	r.duration.WithLabelValues(sink).Observe(d.Seconds())
}
