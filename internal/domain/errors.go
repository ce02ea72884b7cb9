package domain

import (
	"context"
	"errors"
	"fmt"
)

// Error types for consistent error handling across the ledger core.

// ErrValidation indicates bad input, rejected locally or by the ledger API.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Message)
	}
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrNotFound indicates an entity vanished, typically deleted by another session.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrConflict indicates the ledger API refused a write, e.g. a duplicate
// category name. Message is the backend's text, surfaced verbatim.
type ErrConflict struct {
	Resource string
	Message  string
}

func (e *ErrConflict) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s conflict", e.Resource)
	}
	return e.Message
}

// ErrTransport indicates a failure talking to the ledger API: network,
// timeout, 5xx, malformed payload or an open circuit breaker.
type ErrTransport struct {
	Service string
	Op      string
	Err     error
}

func (e *ErrTransport) Error() string {
	return fmt.Sprintf("external service error [%s %s]: %v", e.Service, e.Op, e.Err)
}

func (e *ErrTransport) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a deadline.
func (e *ErrTransport) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// ErrBusy is returned when a write for the same entity is already in flight.
type ErrBusy struct {
	Key string
}

func (e *ErrBusy) Error() string {
	return fmt.Sprintf("already saving: %s", e.Key)
}

// IsStale reports whether err proves the local view of an entity is out of
// date (NotFound or Conflict).
func IsStale(err error) bool {
	var notFound *ErrNotFound
	var conflict *ErrConflict
	return errors.As(err, &notFound) || errors.As(err, &conflict)
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	var transport *ErrTransport
	return errors.As(err, &transport)
}

// IsDomain reports whether err is a domain answer from the ledger API rather
// than an infrastructure failure. Circuit breakers must not count these.
func IsDomain(err error) bool {
	var validation *ErrValidation
	return errors.As(err, &validation) || IsStale(err)
}
