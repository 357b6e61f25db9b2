package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/secissues/secissues-go/internal/ratelimit"
)

// Admitter decides whether a request from ip may proceed.
type Admitter interface {
	Admit(ctx context.Context, ip string) (ratelimit.Decision, error)
}

// Governed returns middleware that charges each request against the client
// IP's fixed-window budget. When the counter store is down the request is
// rejected with 503 unless failOpen is set.
func Governed(gov Admitter, failOpen bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)

			d, err := gov.Admit(r.Context(), ip)
			if err != nil {
				if failOpen {
					logger.Warn("rate limiter unavailable, admitting request", slog.String("ip", ip), slog.Any("error", err))
					next.ServeHTTP(w, r)
					return
				}
				writeJSONError(w, http.StatusServiceUnavailable, "rate limiter unavailable")
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

			if !d.Allowed {
				retry := int(math.Ceil(d.RetryAfter(time.Now()).Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(max(retry, 1)))
				logger.Info("rate limited", slog.String("ip", ip), slog.Int("count", d.Count))
				writeJSONError(w, http.StatusTooManyRequests, "too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
