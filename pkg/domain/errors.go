package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrHandlerNotFound is returned when a task handler ID is not registered in the catalog.
var ErrHandlerNotFound = errors.New("handler not found")

// ErrConfirmationNotFound is returned when a confirmation ID cannot be found in the store.
var ErrConfirmationNotFound = errors.New("confirmation not found")

// ErrAmbiguous is returned when the router cannot confidently select a single
// handler. Callers should re-prompt using the decision's alternatives.
var ErrAmbiguous = errors.New("ambiguous routing decision")

// InvalidInputError reports a request whose input violates the handler's
// declared input schema. It is always surfaced to the caller and never retried.
type InvalidInputError struct {
	HandlerID string
	Err       error
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input for handler %s: %v", e.HandlerID, e.Err)
}

func (e *InvalidInputError) Unwrap() error { return e.Err }

// ContractViolationError reports a handler that returned data violating its
// own declared output schema. This is a programming defect in the handler,
// not a user error.
type ContractViolationError struct {
	HandlerID string
	Err       error
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("handler %s violated its output contract: %v", e.HandlerID, e.Err)
}

func (e *ContractViolationError) Unwrap() error { return e.Err }

// DependencyDegradedError reports a failed call to an external collaborator
// (classifier, backing store). The failure is scoped to a single request and
// is often recoverable: classifier degradation falls back to deterministic
// scoring, and a lost session write does not fail a successful execution.
type DependencyDegradedError struct {
	Dependency string
	Err        error
}

func (e *DependencyDegradedError) Error() string {
	return fmt.Sprintf("dependency %s degraded: %v", e.Dependency, e.Err)
}

func (e *DependencyDegradedError) Unwrap() error { return e.Err }
