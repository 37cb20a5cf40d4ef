package service

import (
	"errors"
	"fmt"

	"requisition/internal/repository"
	"requisition/internal/workflow"
)

// Error kinds surfaced to the transport layer. Check with errors.Is.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotFound        = errors.New("not found")
	ErrNotEditable     = workflow.ErrNotEditable
	ErrNotDeletable    = workflow.ErrNotDeletable
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrPersistence     = errors.New("persistence failure")
)

func invalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// classify maps repository and workflow errors onto service error kinds,
// keeping the cause in the chain.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case isKind(err):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, repository.ErrDuplicate), errors.Is(err, repository.ErrStaleVersion):
		return fmt.Errorf("%s: %w: %w", op, ErrConflict, err)
	case errors.Is(err, workflow.ErrNotPendingWithApprover):
		return fmt.Errorf("%s: %w: %w", op, ErrForbidden, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
	}
}

func isKind(err error) bool {
	for _, kind := range []error{ErrUnauthenticated, ErrInvalidInput, ErrNotFound, ErrNotEditable, ErrNotDeletable, ErrForbidden, ErrConflict, ErrPersistence} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
