package handlers

import (
	"io"
	"net/http"

	"golang.org/x/xerrors"

	"cdr.dev/slog/v3"

	"github.com/bencsbalazs/gemini-proxy/internal/core"
	"github.com/bencsbalazs/gemini-proxy/internal/core/domain"
	"github.com/bencsbalazs/gemini-proxy/internal/core/ports"
	"github.com/bencsbalazs/gemini-proxy/internal/httpapi"
	"github.com/bencsbalazs/gemini-proxy/internal/metrics"
)

// DefaultMaxBodyBytes caps request bodies when HandlerOptions leaves it unset.
const DefaultMaxBodyBytes = 1 << 20

// HandlerOptions is fixed at startup.
type HandlerOptions struct {
	Origins domain.OriginSet
	// RequireOrigin rejects non-preflight requests that carry no Origin
	// header. By default such requests are let through.
	RequireOrigin bool
	MaxBodyBytes  int64
}

// GatewayHandler gates one HTTP exchange between a browser origin and the
// generation service.
type GatewayHandler struct {
	service ports.GatewayService
	opts    HandlerOptions
	logger  slog.Logger
	metrics *metrics.Metrics

	// admitted serves requests that passed the origin gate.
	admitted http.Handler
}

var _ http.Handler = (*GatewayHandler)(nil)

func NewGatewayHandler(s ports.GatewayService, opts HandlerOptions, logger slog.Logger, m *metrics.Metrics) *GatewayHandler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	h := &GatewayHandler{
		service: s,
		opts:    opts,
		logger:  logger,
		metrics: m,
	}
	h.admitted = http.HandlerFunc(h.serveAdmitted)
	return h
}

// WithAdmission returns a copy of h whose requests pass through mw once
// they have cleared the origin gate. Rejected origins never reach mw, and
// anything mw writes already carries the CORS headers.
func (h *GatewayHandler) WithAdmission(mw func(http.Handler) http.Handler) *GatewayHandler {
	c := *h
	c.admitted = mw(http.HandlerFunc(c.serveAdmitted))
	return &c
}

func (h *GatewayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.metrics.TrackInFlight()()

	// 1. Origin
	origin := r.Header.Get("Origin")
	allowed := h.opts.Origins.Allows(origin)

	// 2. CORS preflight. Disallowed origins get an empty 204 and the browser
	// blocks the follow-up request.
	if r.Method == http.MethodOptions {
		if allowed {
			setCORSHeaders(w, origin)
			w.Header().Set("Access-Control-Allow-Methods", http.MethodPost)
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Max-Age", "3600")
			h.metrics.RequestHandled(metrics.OutcomePreflightAllowed)
		} else {
			h.metrics.RequestHandled(metrics.OutcomePreflightRejected)
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	// 3. Origin enforcement
	if !allowed && (origin != "" || h.opts.RequireOrigin) {
		h.logger.Warn(ctx, "security violation: forbidden origin",
			slog.F("origin", origin),
			slog.F("method", r.Method),
		)
		h.metrics.OriginRejected()
		h.metrics.RequestHandled(metrics.OutcomeForbidden)
		httpapi.WriteError(w, http.StatusForbidden, httpapi.MessageForbidden)
		return
	}
	if allowed {
		setCORSHeaders(w, origin)
	}

	h.admitted.ServeHTTP(w, r)
}

func (h *GatewayHandler) serveAdmitted(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// 4. Method
	if r.Method != http.MethodPost {
		h.metrics.RequestHandled(metrics.OutcomeMethodNotAllowed)
		httpapi.WriteError(w, http.StatusMethodNotAllowed, httpapi.MessageMethodNotAllowed)
		return
	}

	// 5-6. Body and prompt
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes))
	if err != nil {
		h.logger.Debug(ctx, "read request body", slog.Error(err))
		h.metrics.RequestHandled(metrics.OutcomeMalformedBody)
		httpapi.WriteError(w, http.StatusBadRequest, httpapi.MessageInvalidJSON)
		return
	}
	payload, err := core.ParsePrompt(r.Header.Get("Content-Type"), body)
	switch {
	case xerrors.Is(err, domain.ErrInvalidPrompt):
		h.metrics.RequestHandled(metrics.OutcomeInvalidPrompt)
		httpapi.WriteError(w, http.StatusBadRequest, httpapi.MessageInvalidPrompt)
		return
	case err != nil:
		h.metrics.RequestHandled(metrics.OutcomeMalformedBody)
		httpapi.WriteError(w, http.StatusBadRequest, httpapi.MessageInvalidJSON)
		return
	}

	// 7. Delegate. The service has already logged the failure detail.
	result, err := h.service.Generate(ctx, payload.Prompt)
	if err != nil {
		h.metrics.RequestHandled(metrics.OutcomeCollaboratorFailure)
		httpapi.InternalServerError(w)
		return
	}

	h.metrics.RequestHandled(metrics.OutcomeOK)
	httpapi.Write(w, http.StatusOK, httpapi.TextResponse{Text: result.Text})
}

func setCORSHeaders(w http.ResponseWriter, origin string) {
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Add("Vary", "Origin")
}
