// Package metrics exposes Prometheus instrumentation for proving and
// verification. Each Metrics value owns its registry so hosts in the same
// process do not collide.
package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vybium/vybium-fleet-zkvm/internal/vybium-fleet-zkvm/utils"
)

const namespace = "vybium_fleet"

// Outcome label values
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
)

// Metrics holds the collectors of one host or verifier
type Metrics struct {
	Registry *prometheus.Registry

	Proofs        *prometheus.CounterVec
	Attempts      prometheus.Counter
	Retries       prometheus.Counter
	ProveDuration *prometheus.HistogramVec
	GuestCycles   prometheus.Histogram
	InFlight      prometheus.Gauge
	Verifications *prometheus.CounterVec
}

// New creates and registers every collector
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Proofs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proofs_total",
			Help:      "Proving runs by guest image and outcome.",
		}, []string{"image", "outcome"}),
		Attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prove_attempts_total",
			Help:      "Proving attempts including retries.",
		}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prove_retries_total",
			Help:      "Attempts retried after a proving failure.",
		}),
		ProveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prove_duration_seconds",
			Help:      "Wall time of successful proving runs.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"image"}),
		GuestCycles: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "guest_cycles",
			Help:      "Cycles executed by completed guest runs.",
			Buckets:   prometheus.ExponentialBuckets(8, 4, 10),
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "prove_in_flight",
			Help:      "Proving runs currently executing.",
		}),
		Verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifications_total",
			Help:      "Receipt verifications by outcome.",
		}, []string{"outcome"}),
	}
	m.Registry.MustRegister(
		m.Proofs, m.Attempts, m.Retries, m.ProveDuration,
		m.GuestCycles, m.InFlight, m.Verifications,
	)
	return m
}

// Outcome maps an error to its outcome label
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	return strings.ReplaceAll(utils.CodeOf(err).String(), " ", "_")
}

// ObserveProof records the end of a proving run
func (m *Metrics) ObserveProof(image string, cycles uint64, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.Proofs.WithLabelValues(image, Outcome(err)).Inc()
	if err == nil {
		m.ProveDuration.WithLabelValues(image).Observe(elapsed.Seconds())
		m.GuestCycles.Observe(float64(cycles))
	}
}

// Attempt counts one proving attempt
func (m *Metrics) Attempt() {
	if m != nil {
		m.Attempts.Inc()
	}
}

// Retry counts one retried attempt
func (m *Metrics) Retry() {
	if m != nil {
		m.Retries.Inc()
	}
}

// Track raises the in-flight gauge until the returned func is called
func (m *Metrics) Track() func() {
	if m == nil {
		return func() {}
	}
	m.InFlight.Inc()
	return m.InFlight.Dec
}

// ObserveVerification records a verification result
func (m *Metrics) ObserveVerification(accepted bool) {
	if m == nil {
		return
	}
	if accepted {
		m.Verifications.WithLabelValues(OutcomeOK).Inc()
		return
	}
	m.Verifications.WithLabelValues(OutcomeRejected).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
