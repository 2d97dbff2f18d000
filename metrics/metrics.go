// Package metrics collects and exposes Prometheus metrics for the auth service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the service layer needs from metrics
type Recorder interface {
	RecordNonceIssued()
	RecordLoginSuccess(newUser bool)
	RecordLoginRejected(state, reason string)
	RecordVerifyLatency(d time.Duration)
	RecordRateLimited(route string)
}

// Collector is the Prometheus implementation of Recorder
type Collector struct {
	noncesIssued  prometheus.Counter
	loginSuccess  *prometheus.CounterVec
	loginRejected *prometheus.CounterVec
	verifyLatency prometheus.Histogram
	rateLimited   *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		noncesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "regrant_auth_nonces_issued_total",
			Help: "Number of SIWE nonces issued",
		}),
		loginSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "regrant_auth_login_success_total",
			Help: "Number of successful SIWE logins",
		}, []string{"new_user"}),
		loginRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "regrant_auth_login_rejected_total",
			Help: "Number of rejected SIWE logins by the state reached and the reason",
		}, []string{"state", "reason"}),
		verifyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "regrant_auth_signature_verify_seconds",
			Help:    "Latency of SIWE signature verification in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "regrant_auth_rate_limited_total",
			Help: "Number of requests rejected by the rate limiter",
		}, []string{"route"}),
	}

	reg.MustRegister(
		c.noncesIssued,
		c.loginSuccess,
		c.loginRejected,
		c.verifyLatency,
		c.rateLimited,
	)

	return c
}

func (c *Collector) RecordNonceIssued() {
	c.noncesIssued.Inc()
}

func (c *Collector) RecordLoginSuccess(newUser bool) {
	label := "false"
	if newUser {
		label = "true"
	}
	c.loginSuccess.WithLabelValues(label).Inc()
}

func (c *Collector) RecordLoginRejected(state, reason string) {
	c.loginRejected.WithLabelValues(state, reason).Inc()
}

func (c *Collector) RecordVerifyLatency(d time.Duration) {
	c.verifyLatency.Observe(d.Seconds())
}

func (c *Collector) RecordRateLimited(route string) {
	c.rateLimited.WithLabelValues(route).Inc()
}

// Handler serves the metrics gathered by g
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Nop discards everything. Used when metrics are not wired, e.g. in tests
type Nop struct{}

func (Nop) RecordNonceIssued() {}
func (Nop) RecordLoginSuccess(bool) {}
func (Nop) RecordLoginRejected(string, string) {}
func (Nop) RecordVerifyLatency(time.Duration) {}
func (Nop) RecordRateLimited(string) {}
