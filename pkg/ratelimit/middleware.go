package ratelimit

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/2gPigeon/jig-intern-public/pkg/httputil"
)

// Middleware rejects requests with 429 once the server-wide rate is exceeded.
// perSecond <= 0 disables limiting.
func Middleware(perSecond, burst int) func(http.Handler) http.Handler {
	if perSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				httputil.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
