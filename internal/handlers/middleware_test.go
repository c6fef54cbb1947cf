package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdr.dev/slog/v3/sloggers/slogtest"

	"github.com/bencsbalazs/gemini-proxy/internal/handlers"
	"github.com/bencsbalazs/gemini-proxy/internal/httpapi"
)

func TestAttachRequestID(t *testing.T) {
	t.Parallel()

	var seen uuid.UUID
	h := handlers.AttachRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = handlers.RequestID(r)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))

	require.NotEqual(t, uuid.Nil, seen)
	assert.Equal(t, seen.String(), w.Header().Get("X-Request-Id"))
}

func TestRequestID_Missing(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uuid.Nil, handlers.RequestID(httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestRecover(t *testing.T) {
	t.Parallel()

	t.Run("BeforeWrite", func(t *testing.T) {
		t.Parallel()

		h := handlers.Recover(slogtest.Make(t, nil))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"error": "`+httpapi.MessageInternalError+`"}`, w.Body.String())
	})

	t.Run("AfterWrite", func(t *testing.T) {
		t.Parallel()

		h := handlers.Recover(slogtest.Make(t, nil))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			panic("boom")
		}))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Body.String())
	})

	t.Run("AbortHandler", func(t *testing.T) {
		t.Parallel()

		h := handlers.Recover(slogtest.Make(t, nil))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic(http.ErrAbortHandler)
		}))
		assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
		})
	})
}

func TestLogger_PassesThroughStatus(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusOK, http.StatusForbidden, http.StatusInternalServerError} {
		h := handlers.Logger(slogtest.Make(t, nil))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			httpapi.WriteError(w, status, "x")
		}))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))

		assert.Equal(t, status, w.Code)
	}
}
