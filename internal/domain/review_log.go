package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ReviewLog-specific validation errors.
var (
	// ErrLogCardIDEmpty is returned when a review log's card ID is empty or nil.
	ErrLogCardIDEmpty = errors.New("review log card ID cannot be empty")

	// ErrNegativeReviewTime is returned when a review duration is negative.
	ErrNegativeReviewTime = errors.New("review time cannot be negative")
)

// ReviewLog records one completed review of a card: what was graded, when,
// and how long the user took. Logs are append-only; bulk operations never
// touch them, so review history survives reschedules and resets.
type ReviewLog struct {
	ID           uuid.UUID   `json:"id"`
	UserID       uuid.UUID   `json:"user_id"`
	CardID       uuid.UUID   `json:"card_id"`
	ContentType  ContentType `json:"content_type"`
	Grade        Grade       `json:"grade"`
	ReviewTimeMs int         `json:"review_time_ms"`
	ReviewedAt   time.Time   `json:"reviewed_at"`
}

// NewReviewLog creates a log entry for a review completed at the given time.
// Returns an error if validation fails.
func NewReviewLog(
	userID, cardID uuid.UUID,
	contentType ContentType,
	grade Grade,
	reviewTimeMs int,
	reviewedAt time.Time,
) (*ReviewLog, error) {
	log := &ReviewLog{
		ID:           uuid.New(),
		UserID:       userID,
		CardID:       cardID,
		ContentType:  contentType,
		Grade:        grade,
		ReviewTimeMs: reviewTimeMs,
		ReviewedAt:   reviewedAt,
	}

	if err := log.Validate(); err != nil {
		return nil, err
	}

	return log, nil
}

// Validate checks the ReviewLog against its structural invariants.
func (l *ReviewLog) Validate() error {
	if l.ID == uuid.Nil {
		return ErrCardIDEmpty
	}
	if l.UserID == uuid.Nil {
		return ErrCardUserIDEmpty
	}
	if l.CardID == uuid.Nil {
		return ErrLogCardIDEmpty
	}
	if !l.ContentType.IsValid() {
		return ErrInvalidContentType
	}
	if !l.Grade.IsValid() {
		return ErrInvalidGrade
	}
	if l.ReviewTimeMs < 0 {
		return ErrNegativeReviewTime
	}
	return nil
}
