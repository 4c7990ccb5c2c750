// Package metrics exposes prometheus instrumentation for the payment core.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the payment core's prometheus collectors.
type Recorder struct {
	payments      *prometheus.CounterVec
	verifications *prometheus.CounterVec
	gateChecks    *prometheus.CounterVec
	chainLatency  *prometheus.HistogramVec
}

// New registers the collectors on the given registerer. Pass a fresh
// prometheus.NewRegistry in tests.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		payments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "walletcore",
				Name:      "payments_total",
				Help:      "Payment request outcomes",
			},
			[]string{"outcome"},
		),
		verifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "walletcore",
				Name:      "verifications_total",
				Help:      "x402 payment verification verdicts",
			},
			[]string{"result"},
		),
		gateChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "walletcore",
				Name:      "token_gate_checks_total",
				Help:      "Token gate evaluations",
			},
			[]string{"mode", "result"},
		),
		chainLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "walletcore",
				Name:      "chain_latency_seconds",
				Help:      "Latency of chain gateway operations",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}

	reg.MustRegister(r.payments, r.verifications, r.gateChecks, r.chainLatency)
	return r
}

// PaymentOutcome counts a terminal payment state (free, paid, failed).
func (r *Recorder) PaymentOutcome(outcome string) {
	r.payments.WithLabelValues(outcome).Inc()
}

// Verification counts a verification verdict.
func (r *Recorder) Verification(valid bool) {
	result := "rejected"
	if valid {
		result = "verified"
	}
	r.verifications.WithLabelValues(result).Inc()
}

// GateCheck counts a token gate evaluation.
func (r *Recorder) GateCheck(mode string, passed bool) {
	result := "denied"
	if passed {
		result = "granted"
	}
	r.gateChecks.WithLabelValues(mode, result).Inc()
}

// ObserveChain records the latency of one gateway operation.
func (r *Recorder) ObserveChain(operation string, d time.Duration) {
	r.chainLatency.WithLabelValues(operation).Observe(d.Seconds())
}
