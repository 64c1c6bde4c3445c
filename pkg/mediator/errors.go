// Package mediator is C15: the command dispatcher the orchestrator (C9)
// talks to through its narrow Commands interface, and the orchestrator's
// only path for writes to pkg/repository (C14). It owns optimistic-concurrency
// retry/conflict mapping so neither the orchestrator nor the repository
// has to know about the other.
package mediator

import "errors"

// ErrNotFound is returned when a command targets a conversation, template,
// or agent definition that does not exist.
var ErrNotFound = errors.New("mediator: not found")

// ErrInvalidInput is returned when a command's arguments fail validation
// before any repository write is attempted.
var ErrInvalidInput = errors.New("mediator: invalid input")

// ErrConflict is returned when a command could not commit because the
// underlying aggregate was concurrently modified, even after retrying
// (spec §6 "Update must enforce optimistic concurrency").
var ErrConflict = errors.New("mediator: concurrent modification")

// ValidationError names the offending field, mirroring the teacher's
// pkg/services.ValidationError.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "mediator: validation error on field '" + e.Field + "': " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}
