// Package metrics exposes bridge health as Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/resident-x/go-fronius/internal/solarapi"
)

const namespace = "fronius"

// Metrics holds the bridge collectors. It implements solarapi.Observer and
// the datamanager version observer.
type Metrics struct {
	Requests   *prometheus.CounterVec
	Latency    *prometheus.HistogramVec
	APIVersion *prometheus.GaugeVec
	Points     prometheus.Gauge
	Reconnects prometheus.Counter
	Publishes  *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg skips
// registration, which tests use to avoid global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Solar API requests by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Solar API request latency",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),
		APIVersion: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "api_version_info",
			Help:      "Negotiated Solar API version (1 for the active version)",
		}, []string{"version", "fallback"}),
		Points: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "datastore_points",
			Help:      "Data points currently held in the data store",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Connections to the Datamanager that ended and were retried",
		}),
		Publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_publishes_total",
			Help:      "MQTT publish attempts by result",
		}, []string{"result"}),
	}

	if reg != nil {
		reg.MustRegister(m.Requests, m.Latency, m.APIVersion, m.Points, m.Reconnects, m.Publishes)
	}
	return m
}

// ObserveRequest implements solarapi.Observer.
func (m *Metrics) ObserveRequest(endpoint string, outcome solarapi.Outcome, elapsed time.Duration) {
	m.Requests.WithLabelValues(endpoint, string(outcome)).Inc()
	m.Latency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// ObserveVersion records the negotiated dialect.
func (m *Metrics) ObserveVersion(version solarapi.APIVersion, fallback bool) {
	m.APIVersion.Reset()
	fb := "false"
	if fallback {
		fb = "true"
	}
	m.APIVersion.WithLabelValues(string(version), fb).Set(1)
}

// SetPoints records the data store size.
func (m *Metrics) SetPoints(n int) {
	m.Points.Set(float64(n))
}

// Reconnected counts one reconnect.
func (m *Metrics) Reconnected() {
	m.Reconnects.Inc()
}

// Published counts one publish attempt.
func (m *Metrics) Published(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Publishes.WithLabelValues(result).Inc()
}
