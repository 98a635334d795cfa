package architect

import (
	"errors"
	"fmt"
)

// Sentinel errors for the pipeline's value-like failures. Callers branch on
// these with errors.Is; the transport layer maps them to HTTP classes.
var (
	// ErrThrottled means the request gate denied admission.
	ErrThrottled = errors.New("architect: request throttled")

	// ErrNoCandidates means deterministic filtering removed every tool
	// before any generator was consulted.
	ErrNoCandidates = errors.New("architect: no tools satisfy the constraints")

	// ErrSessionNotFound means the session id is unknown or expired.
	ErrSessionNotFound = errors.New("architect: session not found")
)

// InvalidInputError rejects a request before any model call is made.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("architect: invalid input: %s: %s", e.Field, e.Reason)
}

func invalidInputf(field, format string, args ...any) *InvalidInputError {
	return &InvalidInputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// SafetyRefusalError reports that a generator declined the request on
// policy grounds. The summary is the generator's own wording and is safe
// to surface to the client.
type SafetyRefusalError struct {
	Summary string
}

func (e *SafetyRefusalError) Error() string {
	if e.Summary == "" {
		return "architect: request refused on safety grounds"
	}
	return fmt.Sprintf("architect: request refused on safety grounds: %s", e.Summary)
}
