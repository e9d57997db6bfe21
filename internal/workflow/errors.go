// Package workflow implements the negotiation state machine as a
// pure function of (current document state, action) -> outcome. It
// owns the tagged error taxonomy every workflow caller pattern-matches
// on; persistence and side effects are applied by the service layer.
package workflow

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors for the action surface. Handlers translate these
// into HTTP responses; the token family is deliberately surfaced to
// end users as a single "this link is no longer valid" message so no
// internal detail leaks.
var (
	// ErrInvalidTransition means the action is not legal for the
	// document's current status. Recoverable: the caller retries the
	// correct action after reloading.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrTokenNotFound means no token row matches the presented string.
	ErrTokenNotFound = errors.New("token not found")

	// ErrTokenExpired means the token exists but its expiry passed.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenConsumed means a single-use token was already spent.
	// Callers retrying a completed action should treat this as
	// success-already-happened, not as a user-facing failure.
	ErrTokenConsumed = errors.New("token already consumed")

	// ErrTokenScope means the token does not grant the capability the
	// action demands (e.g. an EDIT action with a VIEW token).
	ErrTokenScope = errors.New("token scope mismatch")

	// ErrConcurrentModification means the optimistic status check
	// failed at write time: another action won the race. The caller
	// should reload and retry; the data is intact.
	ErrConcurrentModification = errors.New("concurrent modification")
)

// ValidationError reports payload fields that are missing or
// malformed. The engine never silently defaults a required field;
// field-level detail goes back to the caller.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		names = append(names, f)
	}
	sort.Strings(names)
	return fmt.Sprintf("validation failed: %s", strings.Join(names, ", "))
}

// Validation builds a ValidationError for a single bad field.
func Validation(field, problem string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: problem}}
}
