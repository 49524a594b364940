package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/medrevise/revise-api/internal/domain"
)

// ReviewLogStore defines the interface for the append-only review history.
type ReviewLogStore interface {
	// Create persists a new review log entry.
	// Returns validation errors from the domain ReviewLog if data is invalid.
	Create(ctx context.Context, log *domain.ReviewLog) error

	// ListByCard retrieves the most recent log entries for a card,
	// newest first, up to limit.
	ListByCard(ctx context.Context, userID, cardID uuid.UUID, limit int) ([]*domain.ReviewLog, error)

	// CountSince returns the number of reviews the user completed at or
	// after the given instant.
	CountSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)

	// WithTx returns a new store instance that uses the provided transaction.
	WithTx(tx DBTX) ReviewLogStore
}
