// Package repository defines C14: the storage abstractions the mediator
// (C15) writes conversation, template, agent-definition, and access-policy
// state through, plus process-local reference implementations.
//
// Spec §1 scopes persistence engines themselves out of this project — the
// contract is what matters, not a driver. ent/schema/*.go documents the
// backing shape these DTOs would take in a real database (teacher idiom:
// field/edge/index declarations, never codegen'd), while the in-memory
// implementations here give the mediator and its tests something to write
// through without a database dependency.
package repository

import "errors"

// ErrNotFound is returned when an entity id has no matching record.
var ErrNotFound = errors.New("repository: entity not found")

// ErrVersionConflict is returned by Update when the caller's version does
// not match the stored version — optimistic concurrency failure
// (spec §6 "Update must enforce optimistic concurrency on a numeric
// version").
var ErrVersionConflict = errors.New("repository: version conflict")
