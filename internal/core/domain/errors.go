package domain

import (
	"context"
	"fmt"

	"golang.org/x/xerrors"
)

var (
	// ErrMalformedBody means the request body could not be read as a JSON object.
	ErrMalformedBody = xerrors.New("malformed request body")
	// ErrInvalidPrompt means the body is JSON but has no usable prompt.
	ErrInvalidPrompt = xerrors.New("missing or invalid prompt")
)

// FailureKind classifies a failed collaborator call.
type FailureKind string

const (
	// FailureProvider means the provider answered with an error.
	FailureProvider FailureKind = "provider"
	// FailureTransport means no usable answer was received.
	FailureTransport FailureKind = "transport"
	// FailureEmpty means the provider answered without any text.
	FailureEmpty FailureKind = "empty"
	// FailureCanceled means the request context ended first.
	FailureCanceled FailureKind = "canceled"
)

// CollaboratorError wraps a failure returned by a generation provider.
type CollaboratorError struct {
	Provider string
	Kind     FailureKind
	Err      error
}

func NewCollaboratorError(provider string, kind FailureKind, err error) *CollaboratorError {
	return &CollaboratorError{Provider: provider, Kind: kind, Err: err}
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %s failure: %v", e.Provider, e.Kind, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// KindOf reports the failure kind of err. Errors that were never classified
// count as transport failures unless the context ended.
func KindOf(err error) FailureKind {
	var cerr *CollaboratorError
	if xerrors.As(err, &cerr) {
		return cerr.Kind
	}
	if xerrors.Is(err, context.Canceled) || xerrors.Is(err, context.DeadlineExceeded) {
		return FailureCanceled
	}
	return FailureTransport
}
