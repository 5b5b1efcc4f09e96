package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/nkiryanov/vendorpos/internal/handlers/render"
	"github.com/nkiryanov/vendorpos/internal/ratelimit"
)

type limiter interface {
	Allow(ctx context.Context, clientID string) (ratelimit.Decision, error)
}

type warnLogger interface {
	Warn(msg string, args ...any)
}

// Limit requests per client IP.
// Limiter errors let the request through.
func RateLimitMiddleware(lim limiter, l warnLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)

			decision, err := lim.Allow(r.Context(), ClientKey(r))
			if err != nil {
				l.Warn("rate limiter unavailable, request allowed", "remote", ip, "error", err)
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

			if !decision.Allowed {
				retry := int(math.Ceil(decision.RetryAfter.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				render.ServiceError(w, "Too many attempts, try again later", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Limiter key for the request's client
func ClientKey(r *http.Request) string {
	return "ip:" + ClientIP(r)
}

// Client address without port
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
