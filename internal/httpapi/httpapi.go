package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// Stable client-facing messages. Internal error text never replaces these.
const (
	MessageForbidden        = "Forbidden"
	MessageMethodNotAllowed = "Method not allowed"
	MessageInvalidJSON      = "Invalid JSON in request body"
	MessageInvalidPrompt    = "Missing or invalid 'prompt' in request body"
	MessageInternalError    = "An error occurred while processing your request."
	MessageTooManyRequests  = "Too many requests"
	MessageAtCapacity       = "Service is at capacity"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// TextResponse is the body of a successful generation.
type TextResponse struct {
	Text string `json:"text"`
}

// Write outputs a JSON body with the given status.
func Write(rw http.ResponseWriter, status int, response interface{}) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(true)
	err := enc.Encode(response)
	if err != nil {
		http.Error(rw, err.Error(), http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(status)
	_, _ = rw.Write(buf.Bytes())
}

// WriteError outputs an ErrorResponse with the given status and message.
func WriteError(rw http.ResponseWriter, status int, message string) {
	Write(rw, status, ErrorResponse{Error: message})
}

// InternalServerError writes the generic 500 body.
func InternalServerError(rw http.ResponseWriter) {
	WriteError(rw, http.StatusInternalServerError, MessageInternalError)
}
