package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/medrevise/revise-api/internal/domain"
	"github.com/medrevise/revise-api/internal/platform/logger"
	"github.com/medrevise/revise-api/internal/store"
)

// Verify interface compliance at compile time
var _ Service = (*serviceImpl)(nil)

// serviceImpl implements the Service interface.
type serviceImpl struct {
	sessions store.StudySessionStore
	logger   *slog.Logger

	// now is swapped out in tests.
	now func() time.Time
}

// NewService creates a new session Service.
func NewService(sessions store.StudySessionStore, log *slog.Logger) Service {
	// ALLOW-PANIC: Constructor enforces required dependencies
	if sessions == nil {
		panic("sessions store cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &serviceImpl{
		sessions: sessions,
		logger:   log.With(slog.String("component", "session_service")),
		now:      time.Now,
	}
}

// Start implements Service.Start.
func (s *serviceImpl) Start(
	ctx context.Context,
	userID uuid.UUID,
	activityType domain.ActivityType,
) (*StartResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !activityType.IsValid() {
		return nil, ErrInvalidActivityType
	}

	now := s.now().UTC()
	sess, err := domain.NewStudySession(userID, activityType, now)
	if err != nil {
		return nil, NewServiceError("start", "failed to build session", err)
	}

	err = s.sessions.Create(ctx, sess)
	if err == nil {
		log.Info("study session started",
			slog.String("user_id", userID.String()),
			slog.String("session_id", sess.ID.String()),
			slog.String("activity_type", string(activityType)))
		return &StartResult{Session: sess}, nil
	}
	if !store.IsConflictError(err) {
		return nil, NewServiceError("start", "failed to create session", err)
	}

	// Exclusivity tripped: another session is active. Same activity means
	// the client reconnected, so hand its session back unchanged; the
	// client's own heartbeat loop keeps it alive from here.
	active, getErr := s.sessions.GetActive(ctx, userID)
	if getErr != nil {
		if store.IsNotFoundError(getErr) {
			// The blocking session ended between our insert and read.
			return nil, NewServiceError("start", "failed to start session", err)
		}
		return nil, NewServiceError("start", "failed to load active session", getErr)
	}
	if active.ActivityType != activityType {
		return nil, ErrActiveSessionExists
	}

	log.Info("study session resumed",
		slog.String("user_id", userID.String()),
		slog.String("session_id", active.ID.String()),
		slog.String("activity_type", string(activityType)))
	return &StartResult{Session: active, Resumed: true}, nil
}

// Heartbeat implements Service.Heartbeat.
func (s *serviceImpl) Heartbeat(
	ctx context.Context,
	userID, sessionID uuid.UUID,
) (*domain.StudySession, error) {
	sess, err := s.sessions.GetByID(ctx, userID, sessionID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, NewServiceError("heartbeat", "failed to load session", err)
	}

	now := s.now().UTC()
	alive, err := s.sessions.Heartbeat(ctx, sessionID, now)
	if err != nil {
		return nil, NewServiceError("heartbeat", "failed to record heartbeat", err)
	}
	if alive {
		sess.LastHeartbeatAt = now
		return sess, nil
	}

	// The session ended between read and write; return the final state.
	sess, err = s.sessions.GetByID(ctx, userID, sessionID)
	if err != nil {
		return nil, NewServiceError("heartbeat", "failed to reload ended session", err)
	}
	return sess, nil
}

// End implements Service.End.
func (s *serviceImpl) End(
	ctx context.Context,
	userID, sessionID uuid.UUID,
	itemsCompleted int,
) (*domain.StudySession, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	sess, err := s.sessions.GetByID(ctx, userID, sessionID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, NewServiceError("end", "failed to load session", err)
	}

	if itemsCompleted < 0 || itemsCompleted < sess.ItemsCompleted {
		return nil, ErrItemsRegression
	}

	now := s.now().UTC()
	ended, err := s.sessions.End(ctx, sessionID, now, itemsCompleted)
	if err != nil {
		return nil, NewServiceError("end", "failed to end session", err)
	}
	if !ended {
		// The reaper or a concurrent end won; its timestamps stand.
		sess, err = s.sessions.GetByID(ctx, userID, sessionID)
		if err != nil {
			return nil, NewServiceError("end", "failed to reload ended session", err)
		}
		return sess, nil
	}

	sess.EndedAt = &now
	sess.ItemsCompleted = itemsCompleted
	sess.UpdatedAt = now

	log.Info("study session ended",
		slog.String("user_id", userID.String()),
		slog.String("session_id", sessionID.String()),
		slog.Int("items_completed", itemsCompleted),
		slog.Duration("duration", sess.Duration(now)))
	return sess, nil
}

// Active implements Service.Active.
func (s *serviceImpl) Active(ctx context.Context, userID uuid.UUID) (*domain.StudySession, error) {
	sess, err := s.sessions.GetActive(ctx, userID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, ErrNoActiveSession
		}
		return nil, NewServiceError("active", "failed to load active session", err)
	}
	return sess, nil
}

// TotalStudyTime implements Service.TotalStudyTime.
func (s *serviceImpl) TotalStudyTime(ctx context.Context, userID uuid.UUID) (time.Duration, error) {
	total, err := s.sessions.TotalStudyTime(ctx, userID)
	if err != nil {
		return 0, NewServiceError("total_study_time", "failed to sum study time", err)
	}
	return total, nil
}
