package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ActivityType identifies what the user is doing during a study session.
type ActivityType string

// Supported activity types.
const (
	ActivityTypeReview        ActivityType = "review"
	ActivityTypeQuestions     ActivityType = "questions"
	ActivityTypeFlashcards    ActivityType = "flashcards"
	ActivityTypeSimulatedExam ActivityType = "simulated_exam"
	ActivityTypeReading       ActivityType = "reading"
)

// IsValid reports whether the activity type is one of the supported values.
func (a ActivityType) IsValid() bool {
	switch a {
	case ActivityTypeReview, ActivityTypeQuestions, ActivityTypeFlashcards,
		ActivityTypeSimulatedExam, ActivityTypeReading:
		return true
	default:
		return false
	}
}

// StudySession-specific validation errors.
var (
	// ErrSessionIDEmpty is returned when a session ID is empty or nil.
	ErrSessionIDEmpty = errors.New("study session ID cannot be empty")

	// ErrSessionUserIDEmpty is returned when a session's user ID is empty or nil.
	ErrSessionUserIDEmpty = errors.New("study session user ID cannot be empty")

	// ErrInvalidActivityType is returned when an activity type is not a supported value.
	ErrInvalidActivityType = errors.New("invalid activity type")

	// ErrNegativeItemsCompleted is returned when an items-completed count is negative.
	ErrNegativeItemsCompleted = errors.New("items completed cannot be negative")
)

// StudySession is the ephemeral liveness record for one study sitting.
// At most one session per user may be active (EndedAt == nil) at any time;
// the store enforces this with a partial unique index.
type StudySession struct {
	ID           uuid.UUID    `json:"id"`
	UserID       uuid.UUID    `json:"user_id"`
	ActivityType ActivityType `json:"activity_type"`

	StartedAt       time.Time  `json:"started_at"`
	LastHeartbeatAt time.Time  `json:"last_heartbeat_at"`
	EndedAt         *time.Time `json:"ended_at"`

	// ItemsCompleted is supplied by the caller and must never decrease.
	ItemsCompleted int `json:"items_completed"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewStudySession creates an active session starting now.
// Returns an error if validation fails.
func NewStudySession(userID uuid.UUID, activityType ActivityType, now time.Time) (*StudySession, error) {
	session := &StudySession{
		ID:              uuid.New(),
		UserID:          userID,
		ActivityType:    activityType,
		StartedAt:       now,
		LastHeartbeatAt: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := session.Validate(); err != nil {
		return nil, err
	}

	return session, nil
}

// Validate checks the StudySession against its structural invariants.
func (s *StudySession) Validate() error {
	if s.ID == uuid.Nil {
		return ErrSessionIDEmpty
	}

	if s.UserID == uuid.Nil {
		return ErrSessionUserIDEmpty
	}

	if !s.ActivityType.IsValid() {
		return ErrInvalidActivityType
	}

	if s.ItemsCompleted < 0 {
		return ErrNegativeItemsCompleted
	}

	return nil
}

// IsActive reports whether the session has not ended.
func (s *StudySession) IsActive() bool {
	return s.EndedAt == nil
}

// Duration returns the elapsed session time. For active sessions it is
// measured against now; for ended sessions, against EndedAt.
func (s *StudySession) Duration(now time.Time) time.Duration {
	if s.EndedAt != nil {
		return s.EndedAt.Sub(s.StartedAt)
	}
	return now.Sub(s.StartedAt)
}
