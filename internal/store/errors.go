package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations. They form the
// error taxonomy every layer above maps from: NotFound, Conflict,
// InvalidArgument, Unavailable.
var (
	// ErrNotFound is returned when a requested entity does not exist in the
	// store, or is not owned by the caller.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned when an optimistic-concurrency write loses to
	// a concurrent writer, or when a uniqueness constraint is violated
	// (e.g. a second active session for the same user).
	ErrConflict = errors.New("conflicting concurrent write")

	// ErrInvalidArgument is returned when a request is structurally invalid:
	// a bad grade value, a non-positive distribution window, a past exam
	// date, a regressing completion counter.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnavailable is returned when the store cannot be reached or times
	// out. Operations failing with ErrUnavailable are safe to retry.
	ErrUnavailable = errors.New("store unavailable")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// Entity-specific "not found" errors

	// ErrCardNotFound indicates that the requested review card does not exist.
	ErrCardNotFound = fmt.Errorf("%w: review card", ErrNotFound)

	// ErrSessionNotFound indicates that the requested study session does not exist.
	ErrSessionNotFound = fmt.Errorf("%w: study session", ErrNotFound)

	// Entity-specific conflict errors

	// ErrStaleCard indicates that an upsert lost the optimistic-concurrency
	// race: another writer advanced updated_at past the caller's last read.
	ErrStaleCard = fmt.Errorf("%w: review card version is stale", ErrConflict)

	// ErrActiveSessionExists indicates that the user already has an active
	// study session.
	ErrActiveSessionExists = fmt.Errorf("%w: active session already exists", ErrConflict)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflictError checks if the error is any kind of conflict error.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsRetryable reports whether the operation that produced err may be safely
// retried without re-reading: only transient store unavailability qualifies.
// Conflicts require a re-read first.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "review_card", "study_session")
	Operation string // The operation that failed (e.g., "upsert", "list")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation on %s failed: %s: %v", e.Operation, e.Entity, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation, message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
