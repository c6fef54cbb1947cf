// Package metrics holds the Prometheus instrumentation of the gateway.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gateway"

// Request outcomes used as the "outcome" label of gateway_requests_total.
const (
	OutcomeOK                  = "ok"
	OutcomePreflightAllowed    = "preflight_allowed"
	OutcomePreflightRejected   = "preflight_rejected"
	OutcomeForbidden           = "forbidden"
	OutcomeMethodNotAllowed    = "method_not_allowed"
	OutcomeMalformedBody       = "malformed_body"
	OutcomeInvalidPrompt       = "invalid_prompt"
	OutcomeCollaboratorFailure = "collaborator_failure"
	OutcomeRateLimited         = "rate_limited"
	OutcomeOverCapacity        = "over_capacity"
)

type Metrics struct {
	requests             *prometheus.CounterVec
	originRejections     prometheus.Counter
	collaboratorDuration *prometheus.HistogramVec
	inFlight             prometheus.Gauge
}

func New(registerer prometheus.Registerer) *Metrics {
	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests handled by the gateway, by outcome.",
		},
		[]string{"outcome"},
	)
	registerer.MustRegister(requests)

	originRejections := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "origin_rejections_total",
		Help: "Non-preflight requests rejected because of their Origin header.",
	})
	registerer.MustRegister(originRejections)

	collaboratorDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "collaborator",
			Name:      "duration_seconds",
			Help:      "Time spent waiting for the generation provider.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider", "result"},
	)
	registerer.MustRegister(collaboratorDuration)

	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "in_flight_requests",
		Help: "Requests currently being served by the gateway handler.",
	})
	registerer.MustRegister(inFlight)

	return &Metrics{
		requests:             requests,
		originRejections:     originRejections,
		collaboratorDuration: collaboratorDuration,
		inFlight:             inFlight,
	}
}

func (m *Metrics) RequestHandled(outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) OriginRejected() {
	if m == nil {
		return
	}
	m.originRejections.Inc()
}

// ObserveCollaborator records one provider call. result is "ok" or a failure kind.
func (m *Metrics) ObserveCollaborator(provider, result string, took time.Duration) {
	if m == nil {
		return
	}
	m.collaboratorDuration.WithLabelValues(provider, result).Observe(took.Seconds())
}

// TrackInFlight increments the in-flight gauge and returns the matching decrement.
func (m *Metrics) TrackInFlight() func() {
	if m == nil {
		return func() {}
	}
	m.inFlight.Inc()
	return m.inFlight.Dec
}

// Handler serves the metrics gathered by gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
