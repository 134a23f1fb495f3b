// Package httpapi exposes the Decision Engine over HTTP: POST
// /v1/check/{algorithm} (spec §4.5) and GET /v1/health, grounded in the
// reference service's api/v1/rate_limit.py and api/v1/health.py.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	decider "github.com/ratelimitd/decider"
)

// Engine is the subset of *decider.Engine the HTTP surface depends on.
type Engine interface {
	DecideTokenBucket(ctx context.Context, subject string, capacity, refillRate float64) (decider.Envelope, error)
	DecideLeakyBucket(ctx context.Context, subject string, capacity, leakRate float64) (decider.Envelope, error)
	DecideSlidingWindow(ctx context.Context, subject string, maxRequests, windowSeconds float64) (decider.Envelope, error)
	Ping(ctx context.Context) error
}

// Config names the service for health reporting (spec §4.5, §6).
type Config struct {
	AppName     string
	Environment string
}

// Handler builds the decision HTTP surface as an http.Handler. logger
// defaults to zap.NewNop() if nil.
func Handler(engine Engine, cfg Config, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{engine: engine, cfg: cfg, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/check/{algorithm}", h.check)
	mux.HandleFunc("GET /v1/health", h.health)
	return accessLog(logger, mux)
}

type handler struct {
	engine Engine
	cfg    Config
	logger *zap.Logger
}

// checkRequest mirrors RateLimitCheckRequest from the reference service:
// only the fields the chosen algorithm needs are required.
type checkRequest struct {
	Subject    string   `json:"subject"`
	Capacity   float64  `json:"capacity"`
	RefillRate *float64 `json:"refill_rate,omitempty"`
	LeakRate   *float64 `json:"leak_rate,omitempty"`
	WindowSize *float64 `json:"window_size,omitempty"`
}

type checkResponse struct {
	Allowed    bool    `json:"allowed"`
	Remaining  float64 `json:"remaining"`
	Limit      float64 `json:"limit"`
	RetryAfter float64 `json:"retry_after,omitempty"`
}

func (h *handler) check(w http.ResponseWriter, r *http.Request) {
	algorithm := r.PathValue("algorithm")

	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Subject == "" {
		writeError(w, http.StatusBadRequest, "subject is required")
		return
	}
	if req.Capacity != math.Trunc(req.Capacity) || req.Capacity < 1 {
		writeError(w, http.StatusBadRequest, "capacity must be an integer >= 1")
		return
	}

	var envelope decider.Envelope
	var err error

	switch algorithm {
	case "token_bucket":
		if req.RefillRate == nil {
			writeError(w, http.StatusBadRequest, "refill_rate not found")
			return
		}
		envelope, err = h.engine.DecideTokenBucket(r.Context(), req.Subject, req.Capacity, *req.RefillRate)
	case "leaky_bucket":
		if req.LeakRate == nil {
			writeError(w, http.StatusBadRequest, "leak_rate not found")
			return
		}
		envelope, err = h.engine.DecideLeakyBucket(r.Context(), req.Subject, req.Capacity, *req.LeakRate)
	case "sliding_window":
		if req.WindowSize == nil {
			writeError(w, http.StatusBadRequest, "window_size not found")
			return
		}
		envelope, err = h.engine.DecideSlidingWindow(r.Context(), req.Subject, req.Capacity, *req.WindowSize)
	default:
		writeError(w, http.StatusBadRequest, "unknown algorithm: "+algorithm)
		return
	}

	if err != nil {
		var badReq *decider.BadRequestError
		if errors.As(err, &badReq) {
			writeError(w, http.StatusBadRequest, badReq.Error())
			return
		}
		h.logger.Warn("decision failed", zap.String("algorithm", algorithm), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}

	resp := checkResponse{
		Allowed:   envelope.Allowed,
		Remaining: envelope.Remaining,
		Limit:     envelope.Limit,
	}

	status := http.StatusOK
	if !envelope.Allowed {
		status = http.StatusTooManyRequests
		retrySeconds := envelope.RetryAfter.Seconds()
		resp.RetryAfter = retrySeconds
		w.Header().Set("Retry-After", strconv.FormatInt(int64(retrySeconds+0.5), 10))
	}
	w.Header().Set("X-RateLimit-Remaining", formatQuantity(envelope.Remaining))
	w.Header().Set("X-RateLimit-Limit", formatQuantity(envelope.Limit))
	writeJSON(w, status, resp)
}

type healthResponse struct {
	Status      string `json:"status"`
	App         string `json:"app"`
	Environment string `json:"environment"`
	Store       string `json:"store"`
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	store := "UP"
	if err := h.engine.Ping(ctx); err != nil {
		store = "DOWN"
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		App:         h.cfg.AppName,
		Environment: h.cfg.Environment,
		Store:       store,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func formatQuantity(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// accessLog wraps next with structured request logging (ambient stack).
func accessLog(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
