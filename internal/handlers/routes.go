package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"cdr.dev/slog/v3"

	"github.com/bencsbalazs/gemini-proxy/internal/metrics"
)

// HealthPath answers liveness probes.
const HealthPath = "/healthz"

type RouterOptions struct {
	// Path the gateway is mounted on. Every method is routed to the
	// gateway handler so it can answer 405 itself.
	Path              string
	TrustProxyHeaders bool
	Overload          OverloadConfig
}

// NewRouter wires the gateway handler behind the common middleware stack.
// Overload protection applies only to requests that pass the origin gate.
func NewRouter(gateway *GatewayHandler, opts RouterOptions, logger slog.Logger, m *metrics.Metrics) http.Handler {
	path := opts.Path
	if path == "" {
		path = "/"
	}

	r := chi.NewRouter()
	if opts.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(
		AttachRequestID,
		Logger(logger),
		Recover(logger),
	)

	r.Get(HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	op := NewOverloadProtection(opts.Overload, logger, m)
	r.Handle(path, gateway.WithAdmission(op.WrapHandler))

	return r
}
