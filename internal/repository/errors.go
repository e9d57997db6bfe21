// Package repository defines error types that are reused across
// multiple repositories. These sentinel values allow higher layers
// such as handlers to distinguish failure scenarios: ErrForbidden
// means the caller does not own the resource, ErrConflict means
// dependent state blocks the operation. Workflow- and token-specific
// failures use the taxonomy in internal/workflow instead.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own. Handlers should translate this into an
// HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an operation cannot proceed because of
// conflicting state. Handlers should translate this into HTTP 409.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned by UserRepo.Create for duplicate emails.
var ErrEmailExists = errors.New("email already exists")
