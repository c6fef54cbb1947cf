package handlers

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/httprate"

	"cdr.dev/slog/v3"

	"github.com/bencsbalazs/gemini-proxy/internal/httpapi"
	"github.com/bencsbalazs/gemini-proxy/internal/metrics"
)

// OverloadConfig bounds the load the gateway endpoint accepts. Zero values
// switch the corresponding limit off.
type OverloadConfig struct {
	// MaxConcurrency caps requests being served at once.
	MaxConcurrency int64
	// RateLimit is requests per RateWindow per client IP.
	RateLimit  int
	RateWindow time.Duration
}

// OverloadProtection guards the endpoint against request floods. Preflight
// requests are never limited.
type OverloadProtection struct {
	config  OverloadConfig
	logger  slog.Logger
	metrics *metrics.Metrics

	inFlight    atomic.Int64
	rateLimiter func(http.Handler) http.Handler
}

func NewOverloadProtection(config OverloadConfig, logger slog.Logger, m *metrics.Metrics) *OverloadProtection {
	op := &OverloadProtection{
		config:  config,
		logger:  logger.Named("overload"),
		metrics: m,
	}

	if config.RateLimit > 0 && config.RateWindow > 0 {
		op.rateLimiter = httprate.Limit(config.RateLimit, config.RateWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				op.metrics.RequestHandled(metrics.OutcomeRateLimited)
				httpapi.WriteError(w, http.StatusTooManyRequests, httpapi.MessageTooManyRequests)
			}),
		)
	}

	return op
}

// InFlightLimiter returns nil when MaxConcurrency is unset.
func (op *OverloadProtection) InFlightLimiter() func(http.Handler) http.Handler {
	if op.config.MaxConcurrency <= 0 {
		return nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := op.inFlight.Add(1)
			defer op.inFlight.Add(-1)

			if n > op.config.MaxConcurrency {
				op.logger.Warn(r.Context(), "rejecting request, gateway at capacity",
					slog.F("in_flight", n),
					slog.F("max_concurrency", op.config.MaxConcurrency),
				)
				op.metrics.RequestHandled(metrics.OutcomeOverCapacity)
				httpapi.WriteError(w, http.StatusServiceUnavailable, httpapi.MessageAtCapacity)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// InFlight reports the requests currently admitted or being rejected.
func (op *OverloadProtection) InFlight() int64 {
	return op.inFlight.Load()
}

// WrapHandler wraps handler with all enabled protections.
func (op *OverloadProtection) WrapHandler(handler http.Handler) http.Handler {
	capInFlight := op.InFlightLimiter()
	if capInFlight == nil && op.rateLimiter == nil {
		return handler
	}

	limited := handler
	if capInFlight != nil {
		limited = capInFlight(limited)
	}
	// The rate limiter is outermost.
	if op.rateLimiter != nil {
		limited = op.rateLimiter(limited)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			handler.ServeHTTP(w, r)
			return
		}
		limited.ServeHTTP(w, r)
	})
}
