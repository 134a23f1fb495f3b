// Package middleware provides net/http rate-limit middleware built on a
// decider.Limiter. Framework-specific adapters live in their own
// sub-packages (ginmw, echomw, fibermw, grpcmw) so importing this package
// never drags in a web framework a caller doesn't use.
package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	decider "github.com/ratelimitd/decider"
)

// KeyFunc extracts the rate limiting key from an HTTP request.
// The returned string identifies the caller (e.g. IP, API key, user ID).
type KeyFunc func(r *http.Request) string

// ErrorHandler is called when the limiter returns an error.
// Default behavior: 500 Internal Server Error.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// DeniedHandler is called when a request is rate limited.
// Default behavior: 429 Too Many Requests with Retry-After header.
type DeniedHandler func(w http.ResponseWriter, r *http.Request, envelope decider.Envelope)

// Config holds the rate limit middleware configuration.
type Config struct {
	// Limiter is the rate limiter instance (required).
	Limiter decider.Limiter

	// KeyFunc extracts the rate limit key from the request (required).
	KeyFunc KeyFunc

	// ErrorHandler is called when the limiter returns an error.
	// Default: responds with 500.
	ErrorHandler ErrorHandler

	// DeniedHandler is called when a request is denied.
	// Default: responds with 429 and Retry-After header.
	DeniedHandler DeniedHandler

	// ExcludePaths are request paths that bypass rate limiting.
	ExcludePaths map[string]bool

	// Headers controls whether X-RateLimit-* headers are set on responses.
	// Default: true.
	Headers *bool

	// Message is the response body for denied requests.
	// Default: "Too Many Requests".
	Message string

	// StatusCode is the HTTP status code for denied requests.
	// Default: 429.
	StatusCode int
}

// RateLimit creates HTTP middleware with default settings.
// It sets standard rate limit headers and returns 429 on denial.
//
// Usage with net/http:
//
//	mux := http.NewServeMux()
//	mux.Handle("/api/", middleware.RateLimit(limiter, middleware.KeyByIP)(handler))
func RateLimit(limiter decider.Limiter, keyFunc KeyFunc) func(http.Handler) http.Handler {
	return RateLimitWithConfig(Config{
		Limiter: limiter,
		KeyFunc: keyFunc,
	})
}

// RateLimitWithConfig creates HTTP middleware with full configuration control.
func RateLimitWithConfig(cfg Config) func(http.Handler) http.Handler {
	if cfg.Limiter == nil {
		panic("decider/middleware: Limiter is required")
	}
	if cfg.KeyFunc == nil {
		panic("decider/middleware: KeyFunc is required")
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}
	if cfg.DeniedHandler == nil {
		cfg.DeniedHandler = defaultDeniedHandler(cfg.Message, cfg.StatusCode)
	}
	sendHeaders := cfg.Headers == nil || *cfg.Headers

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.ExcludePaths != nil && cfg.ExcludePaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			key := cfg.KeyFunc(r)
			envelope, err := cfg.Limiter.Check(r.Context(), key)
			if err != nil {
				cfg.ErrorHandler(w, r, err)
				return
			}

			if sendHeaders {
				setRateLimitHeaders(w, envelope)
			}

			if !envelope.Allowed {
				if envelope.RetryAfter > 0 {
					w.Header().Set("Retry-After", strconv.FormatInt(int64(envelope.RetryAfter.Seconds()+0.5), 10))
				}
				cfg.DeniedHandler(w, r, envelope)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ─── Built-in Key Extractors ─────────────────────────────────────────────────

// KeyByIP extracts the client IP address as the rate limit key.
// It checks X-Forwarded-For, X-Real-IP, then falls back to RemoteAddr.
func KeyByIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0]); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// KeyByHeader returns a KeyFunc that uses the value of the given header.
// Useful for API key-based rate limiting.
func KeyByHeader(header string) KeyFunc {
	return func(r *http.Request) string {
		return r.Header.Get(header)
	}
}

// KeyByPathAndIP returns a KeyFunc that combines the request path and client IP.
// Useful for per-endpoint rate limiting.
func KeyByPathAndIP(r *http.Request) string {
	return r.URL.Path + ":" + KeyByIP(r)
}

// ─── Headers ─────────────────────────────────────────────────────────────────

func setRateLimitHeaders(w http.ResponseWriter, envelope decider.Envelope) {
	w.Header().Set("X-RateLimit-Limit", formatQuantity(envelope.Limit))
	w.Header().Set("X-RateLimit-Remaining", formatQuantity(envelope.Remaining))
}

func formatQuantity(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ─── Default Handlers ────────────────────────────────────────────────────────

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, _ error) {
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

func defaultDeniedHandler(message string, statusCode int) DeniedHandler {
	if message == "" {
		message = "Too Many Requests"
	}
	if statusCode == 0 {
		statusCode = http.StatusTooManyRequests
	}
	return func(w http.ResponseWriter, _ *http.Request, _ decider.Envelope) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(statusCode)
		fmt.Fprintln(w, message)
	}
}
