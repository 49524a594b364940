package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/medrevise/revise-api/internal/domain"
	"github.com/medrevise/revise-api/internal/store"
)

// sessionColumns is the column list shared by every SELECT in this file,
// in scanSession order.
const sessionColumns = `id, user_id, activity_type, started_at,
	last_heartbeat_at, ended_at, items_completed, created_at, updated_at`

// PostgresStudySessionStore implements store.StudySessionStore using PostgreSQL.
type PostgresStudySessionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresStudySessionStore creates a PostgreSQL implementation of the
// StudySessionStore interface.
func NewPostgresStudySessionStore(db store.DBTX, logger *slog.Logger) *PostgresStudySessionStore {
	if db == nil {
		// ALLOW-PANIC: constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresStudySessionStore{
		db:     db,
		logger: logger.With(slog.String("component", "study_session_store")),
	}
}

// Ensure PostgresStudySessionStore implements store.StudySessionStore.
var _ store.StudySessionStore = (*PostgresStudySessionStore)(nil)

// WithTx implements store.StudySessionStore.WithTx.
func (s *PostgresStudySessionStore) WithTx(tx *sql.Tx) store.StudySessionStore {
	return &PostgresStudySessionStore{db: tx, logger: s.logger}
}

// Create implements store.StudySessionStore.Create. The partial unique
// index study_sessions_one_active_idx turns a second active session into a
// unique violation, which maps to ErrActiveSessionExists.
func (s *PostgresStudySessionStore) Create(ctx context.Context, session *domain.StudySession) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `INSERT INTO study_sessions (id, user_id, activity_type,
		started_at, last_heartbeat_at, ended_at, items_completed,
		created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.db.ExecContext(ctx, query,
		session.ID, session.UserID, string(session.ActivityType),
		session.StartedAt, session.LastHeartbeatAt, session.EndedAt,
		session.ItemsCompleted, session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return store.ErrActiveSessionExists
		}
		return MapError(err)
	}

	s.logger.DebugContext(ctx, "created study session",
		slog.String("session_id", session.ID.String()),
		slog.String("activity_type", string(session.ActivityType)))
	return nil
}

// GetByID implements store.StudySessionStore.GetByID.
func (s *PostgresStudySessionStore) GetByID(
	ctx context.Context,
	userID, sessionID uuid.UUID,
) (*domain.StudySession, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM study_sessions WHERE id = $1 AND user_id = $2`,
		sessionColumns,
	)

	session, err := scanSession(s.db.QueryRowContext(ctx, query, sessionID, userID))
	if err != nil {
		if mapped := MapError(err); store.IsNotFoundError(mapped) {
			return nil, store.ErrSessionNotFound
		}
		return nil, MapError(err)
	}
	return session, nil
}

// GetActive implements store.StudySessionStore.GetActive.
func (s *PostgresStudySessionStore) GetActive(
	ctx context.Context,
	userID uuid.UUID,
) (*domain.StudySession, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM study_sessions
		 WHERE user_id = $1 AND ended_at IS NULL
		 ORDER BY started_at DESC LIMIT 1`,
		sessionColumns,
	)

	session, err := scanSession(s.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if mapped := MapError(err); store.IsNotFoundError(mapped) {
			return nil, store.ErrSessionNotFound
		}
		return nil, MapError(err)
	}
	return session, nil
}

// Heartbeat implements store.StudySessionStore.Heartbeat. The ended_at IS
// NULL guard makes a heartbeat against an ended session match zero rows,
// reported as false rather than an error.
func (s *PostgresStudySessionStore) Heartbeat(
	ctx context.Context,
	sessionID uuid.UUID,
	at time.Time,
) (bool, error) {
	query := `UPDATE study_sessions
		SET last_heartbeat_at = $1, updated_at = $1
		WHERE id = $2 AND ended_at IS NULL`

	result, err := s.db.ExecContext(ctx, query, at, sessionID)
	if err != nil {
		return false, MapError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// End implements store.StudySessionStore.End. First writer wins: the
// ended_at IS NULL guard settles the race between an explicit end and the
// inactivity reaper.
func (s *PostgresStudySessionStore) End(
	ctx context.Context,
	sessionID uuid.UUID,
	endedAt time.Time,
	itemsCompleted int,
) (bool, error) {
	query := `UPDATE study_sessions
		SET ended_at = $1, items_completed = $2, updated_at = $3
		WHERE id = $4 AND ended_at IS NULL`

	result, err := s.db.ExecContext(ctx, query, endedAt, itemsCompleted, time.Now().UTC(), sessionID)
	if err != nil {
		return false, MapError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// ListStale implements store.StudySessionStore.ListStale.
func (s *PostgresStudySessionStore) ListStale(
	ctx context.Context,
	cutoff time.Time,
) ([]*domain.StudySession, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM study_sessions
		 WHERE ended_at IS NULL AND last_heartbeat_at < $1
		 ORDER BY last_heartbeat_at ASC`,
		sessionColumns,
	)

	rows, err := s.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*domain.StudySession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, MapError(err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return sessions, nil
}

// TotalStudyTime implements store.StudySessionStore.TotalStudyTime.
func (s *PostgresStudySessionStore) TotalStudyTime(
	ctx context.Context,
	userID uuid.UUID,
) (time.Duration, error) {
	query := `SELECT COALESCE(SUM(EXTRACT(EPOCH FROM (ended_at - started_at))), 0)
		FROM study_sessions
		WHERE user_id = $1 AND ended_at IS NOT NULL`

	var seconds float64
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&seconds); err != nil {
		return 0, MapError(err)
	}

	return time.Duration(seconds * float64(time.Second)), nil
}

// scanSession scans one study_sessions row in sessionColumns order.
func scanSession(row rowScanner) (*domain.StudySession, error) {
	var session domain.StudySession
	var activityType string
	var endedAt sql.NullTime

	err := row.Scan(
		&session.ID, &session.UserID, &activityType, &session.StartedAt,
		&session.LastHeartbeatAt, &endedAt, &session.ItemsCompleted,
		&session.CreatedAt, &session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	session.ActivityType = domain.ActivityType(activityType)
	if endedAt.Valid {
		t := endedAt.Time
		session.EndedAt = &t
	}

	return &session, nil
}
