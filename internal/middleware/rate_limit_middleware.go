package middleware

import (
	"context"
	"net"
	"net/http"

	"github.com/bluefin-labs/enterprise-api/internal/metrics"
	"github.com/bluefin-labs/enterprise-api/internal/utils"
)

// RateLimiter reports whether a request keyed by client is within
// budget.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimitMiddleware rejects requests over the per-client budget with
// 429. Clients are keyed by remote IP.
func RateLimitMiddleware(limiter RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := limiter.Allow(r.Context(), clientIP(r))
			if err != nil {
				utils.Logger.WithError(err).Warn("Rate limiter error, allowing request")
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				metrics.RateLimitRejectionsTotal.WithLabelValues(r.URL.Path).Inc()
				utils.RespondErrorWithCode(
					w, http.StatusTooManyRequests, utils.ErrCodeRateLimitExceeded,
					"Too many requests, slow down", nil,
				)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers X-Forwarded-For so limits hold behind a proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
