package gateway

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"

	"github.com/flemzord/recall/internal/security"
	"github.com/flemzord/recall/internal/telemetry"
)

// authMiddleware validates the bearer token in constant time. Clients that
// keep failing are throttled by limiter, keyed on their address. A valid
// token clears the client's failure history.
func authMiddleware(cfg AuthConfig, limiter *security.RateLimiter, metrics *telemetry.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if ok && constantTimeEqual(token, cfg.BearerToken) {
				limiter.Forget(clientKey(r))
				next.ServeHTTP(w, r)
				return
			}

			if err := limiter.Allow(clientKey(r)); err != nil {
				metrics.RateLimited("auth")
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})
	}
}

// clientKey strips the port from RemoteAddr when present.
func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// constantTimeEqual compares two strings in constant time.
func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
