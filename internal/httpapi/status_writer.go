package httpapi

import "net/http"

// StatusWriter records the status code written to the wrapped ResponseWriter.
type StatusWriter struct {
	http.ResponseWriter
	Status       int
	wroteHeader  bool
	BytesWritten int
}

var _ http.ResponseWriter = (*StatusWriter)(nil)

func NewStatusWriter(rw http.ResponseWriter) *StatusWriter {
	if sw, ok := rw.(*StatusWriter); ok {
		return sw
	}
	return &StatusWriter{ResponseWriter: rw}
}

// WriteHeader forwards only the first status; later calls are dropped.
func (w *StatusWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.Status = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *StatusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.BytesWritten += n
	return n, err
}

// WroteHeader reports whether a status has been sent.
func (w *StatusWriter) WroteHeader() bool {
	return w.wroteHeader
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *StatusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
