// Package session implements study session tracking: exclusive active
// sessions per user, heartbeat liveness, explicit ends, and a background
// reaper that closes sessions whose client went away.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medrevise/revise-api/internal/domain"
)

// Common error types for the session service.
var (
	// ErrSessionNotFound indicates the session does not exist or is not
	// owned by the caller.
	ErrSessionNotFound = errors.New("study session not found")

	// ErrNoActiveSession indicates the user has no session in progress.
	ErrNoActiveSession = errors.New("no active study session")

	// ErrActiveSessionExists indicates a different activity is already in
	// progress; the caller must end it before starting another.
	ErrActiveSessionExists = errors.New("an active study session already exists")

	// ErrInvalidActivityType indicates an unrecognized activity type.
	ErrInvalidActivityType = errors.New("invalid activity type")

	// ErrItemsRegression indicates an end request reporting fewer completed
	// items than already recorded.
	ErrItemsRegression = errors.New("items completed cannot decrease")
)

// StartResult reports the session a start request resolved to. Resumed is
// true when an active session of the same activity type was reused instead
// of creating a new one.
type StartResult struct {
	Session *domain.StudySession `json:"session"`
	Resumed bool                 `json:"resumed"`
}

// Service tracks study sessions.
type Service interface {
	// Start begins a session for the given activity. If the user already
	// has an active session of the same activity type it is returned
	// unchanged; an active session of a different type returns
	// ErrActiveSessionExists.
	Start(ctx context.Context, userID uuid.UUID, activityType domain.ActivityType) (*StartResult, error)

	// Heartbeat marks the session alive. Heartbeats against an ended
	// session return the session unchanged; the client learns it ended
	// from the returned EndedAt.
	Heartbeat(ctx context.Context, userID, sessionID uuid.UUID) (*domain.StudySession, error)

	// End closes the session with the final completed-item count. Ending an
	// already-ended session returns it unchanged, so retries are safe.
	End(ctx context.Context, userID, sessionID uuid.UUID, itemsCompleted int) (*domain.StudySession, error)

	// Active returns the user's session in progress, or ErrNoActiveSession.
	Active(ctx context.Context, userID uuid.UUID) (*domain.StudySession, error)

	// TotalStudyTime sums the durations of the user's ended sessions.
	TotalStudyTime(ctx context.Context, userID uuid.UUID) (time.Duration, error)
}

// ServiceError wraps session service failures with the failing operation.
type ServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError returns a ServiceError for the given operation.
func NewServiceError(operation, message string, err error) *ServiceError {
	return &ServiceError{Operation: operation, Message: message, Err: err}
}
