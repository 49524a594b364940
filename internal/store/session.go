package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/medrevise/revise-api/internal/domain"
)

// StudySessionStore defines the interface for study session persistence.
type StudySessionStore interface {
	// Create inserts a new active session. The partial unique index on
	// (user_id) WHERE ended_at IS NULL makes a second active session fail
	// with ErrActiveSessionExists.
	Create(ctx context.Context, session *domain.StudySession) error

	// GetByID retrieves a session by ID, scoped to the owner.
	// Returns ErrSessionNotFound if it does not exist or is not owned.
	GetByID(ctx context.Context, userID, sessionID uuid.UUID) (*domain.StudySession, error)

	// GetActive retrieves the user's single active session.
	// Returns ErrSessionNotFound when no session is active.
	GetActive(ctx context.Context, userID uuid.UUID) (*domain.StudySession, error)

	// Heartbeat sets last_heartbeat_at on an active session. Ended sessions
	// are left untouched and reported via the returned bool (false = the
	// session was already ended or absent); that makes late heartbeats a
	// benign no-op rather than an error.
	Heartbeat(ctx context.Context, sessionID uuid.UUID, at time.Time) (bool, error)

	// End closes the session, recording ended_at and the final
	// items_completed. Only the first writer wins: ending an already-ended
	// session reports false and changes nothing, which settles the race
	// between an explicit end and the inactivity reaper.
	End(ctx context.Context, sessionID uuid.UUID, endedAt time.Time, itemsCompleted int) (bool, error)

	// ListStale returns active sessions whose last heartbeat is older than
	// the cutoff. The reaper uses it to find sessions to close.
	ListStale(ctx context.Context, cutoff time.Time) ([]*domain.StudySession, error)

	// TotalStudyTime sums the durations of the user's ended sessions.
	TotalStudyTime(ctx context.Context, userID uuid.UUID) (time.Duration, error)

	// WithTx returns a StudySessionStore bound to the given transaction.
	WithTx(tx *sql.Tx) StudySessionStore
}
