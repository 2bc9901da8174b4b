//nolint:revive // types is a standard Go package name pattern
package types

import (
	"fmt"

	"github.com/google/uuid"
)

// ValidationError reports missing or invalid input to a pipeline component.
// Sessions failing validation never enter processing.
type ValidationError struct {
	Component string
	Message   string
}

func (e *ValidationError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("validation error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ExternalServiceError reports a transient network or service failure that
// survived the bounded retry policy. Terminal for the session.
type ExternalServiceError struct {
	Op       string
	Attempts int
	Cause    error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("external service error in %s after %d attempts: %v", e.Op, e.Attempts, e.Cause)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Cause
}

// MalformedResponseError reports LLM output that stayed unparsable after the
// bounded corrective retries. Terminal for the session.
type MalformedResponseError struct {
	Stage    string
	Attempts int
	Cause    error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response in stage %s after %d attempts: %v", e.Stage, e.Attempts, e.Cause)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Cause
}

// ConcurrencyConflict reports a lost claim race. The losing worker logs the
// conflict and makes no state change.
type ConcurrencyConflict struct {
	SessionID uuid.UUID
}

func (e *ConcurrencyConflict) Error() string {
	return fmt.Sprintf("session %s already claimed by another worker", e.SessionID)
}

// QuotaExceeded reports that the user's token budget would be exceeded.
// Raised before any LLM call is dispatched, so it carries no token cost.
type QuotaExceeded struct {
	UserID    uuid.UUID
	Available int
}

func (e *QuotaExceeded) Error() string {
	return fmt.Sprintf("token quota exhausted for user %s (%d tokens available)", e.UserID, e.Available)
}
