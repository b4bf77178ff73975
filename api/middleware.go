package api

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// rateLimitMiddleware provides rate limiting per client IP. Limiters live
// in an expiring LRU so idle clients age out without a sweeper goroutine.
func (a *API) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getRealIP(r, a.config.API.TrustProxy, a.config.API.TrustedProxyNetworks)

		limiter, ok := a.rateLimiters.Get(ip)
		if !ok {
			limiter = rate.NewLimiter(
				rate.Limit(a.config.API.RateLimit.RequestsPerSecond),
				a.config.API.RateLimit.Burst)
			a.rateLimiters.Add(ip, limiter)
		}

		if !limiter.Allow() {
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware adds CORS headers for the dashboard origin
func (a *API) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		for _, allowed := range a.config.API.AllowedOrigins {
			if origin == allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				break
			}
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Agent-ID")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware converts handler panics into 500 responses. The stack
// trace is logged server-side only.
func (a *API) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				requestID := uuid.New().String()
				a.logger.Errorw("Panic recovered in handler",
					"error", fmt.Sprintf("%v", err),
					"request_id", requestID,
					"method", r.Method,
					"path", r.URL.Path,
					"client_ip", getRealIP(r, a.config.API.TrustProxy, a.config.API.TrustedProxyNetworks),
					"stack_trace", string(debug.Stack()),
				)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
