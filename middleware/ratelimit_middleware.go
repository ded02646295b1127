package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/vinodhsukumarvictor/Church-Bible-App/services/ratelimit"
	"github.com/vinodhsukumarvictor/Church-Bible-App/utils"
	"go.uber.org/zap"
)

// CallerKey identifies the caller for rate limiting: the first
// X-Forwarded-For entry, else the connection address without its port,
// else "global"
func CallerKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
			return host
		}
		return r.RemoteAddr
	}
	return "global"
}

// RateLimit admits requests through limiter, keyed by CallerKey. Rejected
// requests get 429 with a Retry-After header.
func RateLimit(limiter ratelimit.Limiter, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestIDFromContext(ctx)
			key := CallerKey(r)

			decision, err := limiter.Admit(ctx, key)
			if err != nil {
				logger.Error("failed to check rate limit",
					zap.String("request_id", requestID),
					zap.Error(err))
				_ = utils.WriteInternalServerError(w, "Failed to check rate limit")
				return
			}

			if !decision.Allowed {
				logger.Warn("request blocked by rate limit",
					zap.String("request_id", requestID),
					zap.String("caller", key),
					zap.String("path", r.URL.Path))
				_ = utils.WriteTooManyRequests(w, "", decision.RetryAfter)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			next.ServeHTTP(w, r)
		})
	}
}
