// Package economy holds the error taxonomy shared by the auction, prize and
// claim packages. Callers branch on these with errors.As; everything else is
// wrapped transport noise.
package economy

import "fmt"

// ValidationError rejects malformed input outright. Not retryable.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConflictError signals a lost conditional update: a stale observed price on
// a bid, or an already-claimed auction. Bidders recover by re-reading
// CurrentPrice and resubmitting; claims treat it as idempotent success.
type ConflictError struct {
	CurrentPrice int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting update, current price is %d", e.CurrentPrice)
}

// StateError rejects an operation the auction's lifecycle no longer (or not
// yet) permits. Terminal for the request.
type StateError struct {
	Status string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("operation not allowed while auction is %s", e.Status)
}

// AuthorizationError rejects a claim by anyone but the auction's winner.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("not authorized: %s", e.Reason)
}
