// Package bulkops implements bulk mutations over a user's review cards:
// rescheduling, progress resets, suspension, deletion, and exam cramming
// activation. Operations run in bounded pages so arbitrarily large selections
// cannot hold a transaction open; the consistency contract is per page, and
// results report how far an interrupted run got.
package bulkops

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medrevise/revise-api/internal/domain"
)

// Common error types for the bulk operation engine.
var (
	// ErrInvalidDistributeDays indicates a non-positive distribution span.
	ErrInvalidDistributeDays = errors.New("distribute days must be positive")

	// ErrNoRescheduleTarget indicates a reschedule request with neither a
	// new due date nor a distribution span.
	ErrNoRescheduleTarget = errors.New("reschedule requires a new due date or a distribution span")

	// ErrAmbiguousRescheduleTarget indicates a reschedule request with both
	// a new due date and a distribution span.
	ErrAmbiguousRescheduleTarget = errors.New("reschedule cannot take both a new due date and a distribution span")

	// ErrExamDateInPast indicates a cramming activation for an exam that
	// already happened.
	ErrExamDateInPast = errors.New("exam date cannot be in the past")

	// ErrEmptyDeleteSelection indicates a delete request with neither card
	// IDs nor the delete-all flag.
	ErrEmptyDeleteSelection = errors.New("delete requires card IDs or delete_all")
)

// Selection picks the cards a bulk operation applies to. IDs and the field
// filters combine conjunctively; an all-zero selection matches every active
// card the user owns.
type Selection struct {
	IDs              []uuid.UUID          `json:"ids,omitempty"`
	ContentTypes     []domain.ContentType `json:"content_types,omitempty"`
	States           []domain.CardState   `json:"states,omitempty"`
	IncludeSuspended bool                 `json:"include_suspended,omitempty"`
}

// RescheduleRequest moves the selected cards to new due dates. Exactly one
// of NewDue and DistributeDays must be set: NewDue sends every card to the
// same instant, DistributeDays spreads them evenly over the next N days.
type RescheduleRequest struct {
	Selection
	NewDue         *time.Time `json:"new_due,omitempty"`
	DistributeDays int        `json:"distribute_days,omitempty"`
}

// DeleteRequest picks the cards a bulk delete removes. With DeleteAll set
// the ID list is ignored and every card matching the field filters goes,
// or truly every card when those are empty too; without it an explicit ID
// list is required.
type DeleteRequest struct {
	Selection
	DeleteAll bool `json:"delete_all,omitempty"`
}

// Result reports a bulk run. Matched counts cards the selection reached,
// Updated counts persisted changes, Failed counts rows lost to concurrent
// writers. Matched exceeding Updated+Failed means the transform skipped
// cards that already had the target state.
type Result struct {
	Matched int `json:"matched"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// CrammingPlan describes an activated cramming window.
type CrammingPlan struct {
	// Days is the length of the window, capped at the cramming maximum.
	Days int `json:"days"`

	// CardsPerDay is the bucket size for each day of the window.
	CardsPerDay []int `json:"cards_per_day"`

	// CapUntil is when the raised daily review cap expires.
	CapUntil time.Time `json:"cap_until"`

	// EffectiveCap is the raised daily review cap during the window.
	EffectiveCap int `json:"effective_cap"`

	Result Result `json:"result"`
}

// Engine applies bulk mutations to a user's review cards.
type Engine interface {
	// Reschedule moves the selected cards per the request. Validation
	// failures return ErrInvalidDistributeDays, ErrNoRescheduleTarget, or
	// ErrAmbiguousRescheduleTarget before anything is written.
	Reschedule(ctx context.Context, userID uuid.UUID, req RescheduleRequest) (*Result, error)

	// ResetProgress returns the selected cards to the unreviewed state:
	// new, due now, no history counters. Review logs are untouched.
	ResetProgress(ctx context.Context, userID uuid.UUID, sel Selection) (*Result, error)

	// SetSuspended soft-removes the selected cards from every pool
	// (or restores them). Suspended cards keep their schedule.
	SetSuspended(ctx context.Context, userID uuid.UUID, sel Selection, suspended bool) (*Result, error)

	// Delete hard-removes the selected cards. Missing IDs are skipped, so
	// repeating a delete is safe; the count is rows actually removed.
	// A request without IDs and without DeleteAll returns
	// ErrEmptyDeleteSelection.
	Delete(ctx context.Context, userID uuid.UUID, req DeleteRequest) (int, error)

	// ActivateCramming spreads the user's pending and future cards evenly
	// across the days remaining before the exam (capped at the cramming
	// maximum) and raises their daily review cap for the window.
	ActivateCramming(ctx context.Context, userID uuid.UUID, examDate time.Time) (*CrammingPlan, error)

	// DeactivateCramming restores the user's normal daily review cap.
	// Card schedules set by a previous activation are left in place.
	DeactivateCramming(ctx context.Context, userID uuid.UUID) error
}

// EngineError wraps bulk engine failures with the failing operation.
type EngineError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for EngineError.
func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewEngineError returns an EngineError for the given operation.
func NewEngineError(operation, message string, err error) *EngineError {
	return &EngineError{Operation: operation, Message: message, Err: err}
}
