// Package review implements the unified review surface: recording grades
// against the scheduler and aggregating cards into the pending, future, and
// completed pools that clients render.
package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medrevise/revise-api/internal/domain"
	"github.com/medrevise/revise-api/internal/service/content"
)

// Common error types for the review service.
var (
	// ErrCardNotFound indicates that no card exists for the requested item.
	ErrCardNotFound = errors.New("review card not found")

	// ErrInvalidGrade indicates an unrecognized grade value.
	ErrInvalidGrade = errors.New("invalid grade")

	// ErrInvalidContentType indicates an unrecognized content type value.
	ErrInvalidContentType = errors.New("invalid content type")

	// ErrWriteConflict indicates that concurrent writers kept invalidating
	// the optimistic write even after a retry.
	ErrWriteConflict = errors.New("concurrent card update conflict")
)

// RecordRequest carries one graded review of a studied item.
type RecordRequest struct {
	ContentType  domain.ContentType `json:"content_type"`
	ContentID    uuid.UUID          `json:"content_id"`
	Grade        domain.Grade       `json:"grade"`
	ReviewTimeMs int                `json:"review_time_ms"`
}

// RecordResult reports the card after a grade was applied. Created is true
// when the item entered scheduling with this review.
type RecordResult struct {
	Card    *domain.ReviewCard `json:"card"`
	Created bool               `json:"created"`
}

// Card is a scheduled card enriched with display data from the owning
// content system. Display is nil when the content no longer resolves.
type Card struct {
	*domain.ReviewCard
	Display *content.Display `json:"display,omitempty"`
}

// Page is one page of an aggregated pool listing.
type Page struct {
	Cards      []*Card `json:"cards"`
	NextCursor string  `json:"next_cursor,omitempty"`
}

// ListOptions narrow and page a pool listing.
type ListOptions struct {
	// ContentTypes restricts the listing; empty means all types.
	ContentTypes []domain.ContentType

	// TZOffsetMinutes is the caller's offset from UTC, used by the today
	// view and the due listing to find the caller's end of day. Negative
	// west of UTC.
	TZOffsetMinutes int

	// DueOnly restricts the due listing to cards whose due time has
	// already passed, instead of folding in cards due later in the
	// caller's local day.
	DueOnly bool

	// StartDate and EndDate bound the future listing's due window. The
	// start bound is inclusive, as is the end bound.
	StartDate *time.Time
	EndDate   *time.Time

	// LookbackDays overrides the completed pool's review window. Zero
	// uses the configured default.
	LookbackDays int

	Cursor string
	Limit  int
}

// PoolCounts breaks one pool down by content type and state.
type PoolCounts struct {
	Total         int                        `json:"total"`
	ByContentType map[domain.ContentType]int `json:"by_content_type"`
	ByState       map[domain.CardState]int   `json:"by_state"`
}

// Summary reports the size of every pool at one instant. All numbers come
// from the same filters the pool listings use, so the counts a client shows
// always match the cards it would fetch.
type Summary struct {
	AsOf      time.Time  `json:"as_of"`
	Pending   PoolCounts `json:"pending"`
	DueToday  int        `json:"due_today"`
	Future    PoolCounts `json:"future"`
	Completed PoolCounts `json:"completed"`
}

// OverdueStats describes the backlog of cards past due.
type OverdueStats struct {
	Total         int                        `json:"total"`
	ByContentType map[domain.ContentType]int `json:"by_content_type"`

	// OldestDue is the due timestamp of the most overdue card, nil when
	// nothing is overdue.
	OldestDue *time.Time `json:"oldest_due,omitempty"`
}

// Service is the unified review surface over all scheduled content types.
type Service interface {
	// RecordGrade applies a grade to the card for the given item and
	// appends a review log entry. If the item has never been scheduled, a
	// card is created first. A concurrent write invalidating the update is
	// retried once; a second conflict returns ErrWriteConflict.
	RecordGrade(ctx context.Context, userID uuid.UUID, req RecordRequest) (*RecordResult, error)

	// Preview returns the card state that each grade would produce, without
	// persisting anything. Returns ErrCardNotFound for unscheduled items.
	Preview(ctx context.Context, userID uuid.UUID, contentType domain.ContentType, contentID uuid.UUID) (map[domain.Grade]*domain.ReviewCard, error)

	// TodayCards lists the caller's queue for the current local day:
	// everything due before their end of day, capped at the effective
	// daily review limit, most overdue first.
	TodayCards(ctx context.Context, userID uuid.UUID, opts ListOptions) (*Page, error)

	// DueCards lists the pending pool, most overdue first. By default it
	// merges in cards due later in the caller's local day; DueOnly limits
	// it to cards already past due.
	DueCards(ctx context.Context, userID uuid.UUID, opts ListOptions) (*Page, error)

	// FutureCards lists cards scheduled beyond now that were not reviewed
	// inside the completed lookback window, soonest first. StartDate and
	// EndDate narrow the listing to a due window.
	FutureCards(ctx context.Context, userID uuid.UUID, opts ListOptions) (*Page, error)

	// CompletedCards lists cards reviewed inside the lookback window and
	// not yet due again, most recently reviewed first. LookbackDays
	// widens or narrows the window per request.
	CompletedCards(ctx context.Context, userID uuid.UUID, opts ListOptions) (*Page, error)

	// Summary reports pool sizes as of now, including the today count for
	// the caller's timezone.
	Summary(ctx context.Context, userID uuid.UUID, tzOffsetMinutes int) (*Summary, error)

	// OverdueStats reports the overdue backlog as of now.
	OverdueStats(ctx context.Context, userID uuid.UUID) (*OverdueStats, error)
}

// ServiceError wraps review service failures with the failing operation so
// consumers can differentiate with errors.As instead of string matching.
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
