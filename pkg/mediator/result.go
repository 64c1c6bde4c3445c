package mediator

import "errors"

// Status is the mediator's own typed status code, independent of any
// transport. A REST surface (out of scope for this spec) would map these
// 1:1 onto HTTP statuses the way the teacher's mapServiceError does.
type Status int

const (
	StatusOK Status = iota
	StatusBadRequest
	StatusNotFound
	StatusConflict
	StatusInternalServerError
)

// OperationResult is the uniform return shape for every command and query
// the mediator exposes (spec §6/§4.13), generalizing the teacher's
// per-handler `mapServiceError` into a value the caller inspects instead
// of an error type switch at the call site.
type OperationResult struct {
	Success bool
	Data    any
	Errors  []string
	Status  Status
}

func ok(data any) OperationResult {
	return OperationResult{Success: true, Data: data, Status: StatusOK}
}

func badRequest(msg string) OperationResult {
	return OperationResult{Errors: []string{msg}, Status: StatusBadRequest}
}

func notFound(msg string) OperationResult {
	return OperationResult{Errors: []string{msg}, Status: StatusNotFound}
}

func conflict(msg string) OperationResult {
	return OperationResult{Errors: []string{msg}, Status: StatusConflict}
}

func internalServerError(msg string) OperationResult {
	return OperationResult{Errors: []string{msg}, Status: StatusInternalServerError}
}

// FromError maps a mediator command's returned error onto an
// OperationResult, mirroring the teacher's mapServiceError
// (pkg/api/errors.go) errors.As/errors.Is chain. Kept as a pure function
// so it is unit-testable without any transport (spec §7).
func FromError(err error) OperationResult {
	if err == nil {
		return ok(nil)
	}

	var validErr *ValidationError
	if errors.As(err, &validErr) {
		return badRequest(validErr.Error())
	}
	if errors.Is(err, ErrInvalidInput) {
		return badRequest(err.Error())
	}
	if errors.Is(err, ErrNotFound) {
		return notFound(err.Error())
	}
	if errors.Is(err, ErrConflict) {
		return conflict(err.Error())
	}
	return internalServerError(err.Error())
}
