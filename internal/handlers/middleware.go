package handlers

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"cdr.dev/slog/v3"

	"github.com/bencsbalazs/gemini-proxy/internal/httpapi"
)

type requestIDContextKey struct{}

// RequestID returns the ID attached by AttachRequestID, or uuid.Nil.
func RequestID(r *http.Request) uuid.UUID {
	rid, ok := r.Context().Value(requestIDContextKey{}).(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return rid
}

// AttachRequestID adds a request ID to each HTTP request and its log context.
func AttachRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rid := uuid.New()

		ctx := context.WithValue(r.Context(), requestIDContextKey{}, rid)
		ctx = slog.With(ctx, slog.F("request_id", rid))

		rw.Header().Set("X-Request-Id", rid.String())
		next.ServeHTTP(rw, r.WithContext(ctx))
	})
}

// Recover turns a panic into the generic 500 body.
func Recover(log slog.Logger) func(h http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := httpapi.NewStatusWriter(w)
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler {
					panic(p)
				}
				log.Warn(r.Context(),
					"panic serving http request (recovered)",
					slog.F("panic", p),
					slog.F("stack", string(debug.Stack())),
				)
				// Only write an error if nothing was sent yet.
				if !sw.WroteHeader() {
					httpapi.InternalServerError(sw)
				}
			}()

			h.ServeHTTP(sw, r)
		})
	}
}

// Logger writes one access log line per request.
func Logger(log slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := httpapi.NewStatusWriter(rw)

			next.ServeHTTP(sw, r)

			status := sw.Status
			if status == 0 {
				status = http.StatusOK
			}
			end := time.Now()
			httplog := log.With(
				slog.F("method", r.Method),
				slog.F("path", r.URL.Path),
				slog.F("remote_addr", r.RemoteAddr),
				slog.F("origin", r.Header.Get("Origin")),
				slog.F("status_code", status),
				slog.F("took", end.Sub(start)),
				slog.F("latency_ms", float64(end.Sub(start)/time.Millisecond)),
			)

			// 5xx is logged at warn, not error: the failure detail has
			// already been logged where it happened.
			if status >= http.StatusInternalServerError {
				httplog.Warn(r.Context(), r.Method)
			} else {
				httplog.Debug(r.Context(), r.Method)
			}
		})
	}
}
