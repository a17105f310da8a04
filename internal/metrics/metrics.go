// Package metrics provides Prometheus instrumentation for the API.
// It exposes HTTP request counters and latency histograms plus
// counters for the security-sensitive passkey ceremony paths.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all API metrics
	Namespace = "enterprise_api"

	// Label names
	LabelMethod     = "method"
	LabelPath       = "path"
	LabelStatusCode = "status_code"
	LabelCeremony   = "ceremony"
	LabelStatus     = "status"
	LabelOperation  = "operation"
	LabelResult     = "result"

	// Status values
	StatusSuccess = "success"
	StatusFailure = "failure"

	// Ceremony names
	CeremonyRegistration   = "registration"
	CeremonyAuthentication = "authentication"

	// Cache results
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

var (
	// HTTPRequestsTotal tracks the total number of HTTP requests by method, path and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path and status code",
		},
		[]string{LabelMethod, LabelPath, LabelStatusCode},
	)

	// HTTPRequestDuration tracks the duration of HTTP requests in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelMethod, LabelPath},
	)

	// WebauthnCeremoniesTotal tracks passkey registration and authentication
	// outcomes. Failures on the authentication ceremony are a security signal.
	WebauthnCeremoniesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "webauthn",
			Name:      "ceremonies_total",
			Help:      "Total number of WebAuthn ceremonies by ceremony type and status",
		},
		[]string{LabelCeremony, LabelStatus},
	)

	// SignCountRegressionsTotal counts assertions rejected because the
	// authenticator sign count moved backwards. A non-zero value suggests
	// a cloned authenticator.
	SignCountRegressionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "webauthn",
			Name:      "sign_count_regressions_total",
			Help:      "Total number of assertions rejected due to sign count regression",
		},
	)

	// CacheOperationsTotal tracks cache operations by operation and result.
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "cache",
			Name:      "operations_total",
			Help:      "Total number of cache operations by operation and result",
		},
		[]string{LabelOperation, LabelResult},
	)

	// RateLimitRejectionsTotal counts requests rejected by the rate limiter.
	RateLimitRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rate_limit_rejections_total",
			Help:      "Total number of requests rejected by the rate limiter",
		},
		[]string{LabelPath},
	)

	// ActiveChallenges tracks the number of outstanding WebAuthn challenges.
	ActiveChallenges = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "webauthn",
			Name:      "active_challenges",
			Help:      "Number of outstanding WebAuthn challenges awaiting completion",
		},
	)
)

// RecordHTTPRequest increments the request counter and observes the latency
// histogram for a completed HTTP request.
func RecordHTTPRequest(method, path, statusCode string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordCeremony increments the ceremony counter for a registration or
// authentication attempt.
func RecordCeremony(ceremony, status string) {
	WebauthnCeremoniesTotal.WithLabelValues(ceremony, status).Inc()
}

// RecordCacheOperation increments the cache operation counter.
func RecordCacheOperation(operation, result string) {
	CacheOperationsTotal.WithLabelValues(operation, result).Inc()
}
