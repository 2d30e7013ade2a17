package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable signals a downstream whose circuit is open or that has
	// no healthy endpoints registered.
	ErrUnavailable = errors.New("service unavailable")
	// ErrTimeout signals that the request deadline elapsed.
	ErrTimeout = errors.New("request timed out")
	// ErrPoolExhausted signals that no connection slot became free in time.
	ErrPoolExhausted = errors.New("connection pool exhausted")
	// ErrDownstreamRejected signals a non-retryable rejection by a downstream.
	ErrDownstreamRejected = errors.New("downstream rejected request")
)

// RejectedError wraps ErrDownstreamRejected with the downstream's status and
// detail. Detail is surfaced to the caller only when Safe is set; otherwise
// the transport substitutes a generic message.
type RejectedError struct {
	Status int
	Detail string
	Safe   bool
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", ErrDownstreamRejected.Error(), e.Status, e.Detail)
}

func (e *RejectedError) Unwrap() error { return ErrDownstreamRejected }

// NewRejected creates a downstream rejection error.
func NewRejected(status int, detail string, safe bool) error {
	return &RejectedError{Status: status, Detail: detail, Safe: safe}
}
