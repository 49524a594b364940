package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/medrevise/revise-api/internal/domain"
)

// CardFilter narrows ReviewCard queries. Zero values mean "no constraint".
// Every query is implicitly scoped to one user; cross-user reads do not exist.
type CardFilter struct {
	UserID       uuid.UUID
	ContentTypes []domain.ContentType
	States       []domain.CardState
	IDs          []uuid.UUID

	// DueBefore / DueAfter bound the due timestamp (inclusive before,
	// exclusive after), matching the pool definitions.
	DueBefore *time.Time
	DueAfter  *time.Time

	// ReviewedSince keeps only cards whose last_review falls inside the
	// lookback window (the completed pool).
	ReviewedSince *time.Time

	// NotReviewedSince keeps only cards never reviewed, or last reviewed
	// strictly before the given instant. Complements ReviewedSince so the
	// future and completed pools partition cleanly.
	NotReviewedSince *time.Time

	// IncludeSuspended keeps soft-deleted cards in the result. Pools never
	// set this; bulk operations may.
	IncludeSuspended bool
}

// CardPage is a bounded, restartable slice of a filtered card listing.
type CardPage struct {
	Cards []*domain.ReviewCard

	// NextCursor restarts the listing after the last returned card.
	// Empty when the listing is exhausted.
	NextCursor string
}

// CardSort selects the sort key for ListByFilter.
type CardSort string

// Supported sort orders.
const (
	SortByDueAsc         CardSort = "due_asc"
	SortByLastReviewDesc CardSort = "last_review_desc"
)

// CardTransform mutates a card in place during a BulkWrite page. Returning
// false skips the card without counting it as failed.
type CardTransform func(card *domain.ReviewCard) bool

// BulkWriteResult summarizes a BulkWrite run. Pages are atomic individually,
// not collectively: a deadline hit mid-run leaves a well-defined prefix of
// pages committed, and Matched > Updated tells the caller how far it got.
// Matched counts each card once, even when a transform moves it past the
// pagination cursor and a later page lists it again.
type BulkWriteResult struct {
	Matched int
	Updated int
	Failed  int
}

// ReviewCardStore defines the interface for review card persistence.
type ReviewCardStore interface {
	// Get retrieves the single card for (userID, contentType, contentID).
	// Returns ErrCardNotFound if no such card exists.
	Get(ctx context.Context, userID uuid.UUID, contentType domain.ContentType, contentID uuid.UUID) (*domain.ReviewCard, error)

	// GetByID retrieves a card by its primary key, scoped to the owner.
	// Returns ErrCardNotFound if the card does not exist or belongs to a
	// different user.
	GetByID(ctx context.Context, userID, cardID uuid.UUID) (*domain.ReviewCard, error)

	// Create inserts a new card. The unique (user_id, content_type,
	// content_id) index makes a second insert for the same studied item
	// fail with ErrConflict; callers re-add items via Upsert instead.
	Create(ctx context.Context, card *domain.ReviewCard) error

	// Upsert writes the card using optimistic concurrency: the write only
	// succeeds if the stored updated_at still equals expectedUpdatedAt.
	// Returns ErrStaleCard when a concurrent writer advanced the row first;
	// the caller must re-read and re-apply.
	Upsert(ctx context.Context, card *domain.ReviewCard, expectedUpdatedAt time.Time) error

	// ListByFilter returns one page of cards matching the filter, ordered by
	// the given sort key (ties broken by id). A limit of 0 applies the
	// store's default page size.
	ListByFilter(ctx context.Context, filter CardFilter, sort CardSort, cursor string, limit int) (*CardPage, error)

	// CountByFilter returns per-(content type, state) counts of cards
	// matching the filter, without paging through them.
	CountByFilter(ctx context.Context, filter CardFilter) (map[domain.ContentType]map[domain.CardState]int, error)

	// BulkWrite applies transform to every card matching the filter, in
	// bounded pages. Each page commits in its own transaction; see
	// BulkWriteResult for the consistency contract.
	BulkWrite(ctx context.Context, filter CardFilter, transform CardTransform) (*BulkWriteResult, error)

	// Delete hard-removes the cards with the given IDs for the user.
	// Missing IDs are skipped silently; the returned count is the number of
	// rows actually removed, which makes repeated deletes idempotent.
	Delete(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int, error)

	// DeleteByFilter hard-removes every card matching the filter and
	// returns the removed count.
	DeleteByFilter(ctx context.Context, filter CardFilter) (int, error)

	// WithTx returns a ReviewCardStore bound to the given transaction.
	WithTx(tx *sql.Tx) ReviewCardStore
}
