package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/medrevise/revise-api/internal/domain"
	"github.com/medrevise/revise-api/internal/store"
)

const logColumns = "id, user_id, card_id, content_type, grade, review_time_ms, reviewed_at"

// PostgresReviewLogStore implements store.ReviewLogStore against the
// append-only review_logs table.
type PostgresReviewLogStore struct {
	db     store.DBTX
	logger *slog.Logger
}

var _ store.ReviewLogStore = (*PostgresReviewLogStore)(nil)

// NewPostgresReviewLogStore creates a new PostgresReviewLogStore.
func NewPostgresReviewLogStore(db store.DBTX, logger *slog.Logger) *PostgresReviewLogStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresReviewLogStore{
		db:     db,
		logger: logger.With(slog.String("component", "review_log_store")),
	}
}

// WithTx implements store.ReviewLogStore.WithTx.
func (s *PostgresReviewLogStore) WithTx(tx store.DBTX) store.ReviewLogStore {
	return &PostgresReviewLogStore{db: tx, logger: s.logger}
}

// Create implements store.ReviewLogStore.Create.
func (s *PostgresReviewLogStore) Create(ctx context.Context, log *domain.ReviewLog) error {
	if err := log.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	query := fmt.Sprintf(
		`INSERT INTO review_logs (%s) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		logColumns,
	)

	_, err := s.db.ExecContext(ctx, query,
		log.ID, log.UserID, log.CardID,
		log.ContentType, log.Grade, log.ReviewTimeMs, log.ReviewedAt,
	)
	if err != nil {
		return store.NewStoreError("review_log", "create", "failed to insert review log", MapError(err))
	}
	return nil
}

// ListByCard implements store.ReviewLogStore.ListByCard.
func (s *PostgresReviewLogStore) ListByCard(
	ctx context.Context,
	userID, cardID uuid.UUID,
	limit int,
) ([]*domain.ReviewLog, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := fmt.Sprintf(
		`SELECT %s FROM review_logs
		 WHERE user_id = $1 AND card_id = $2
		 ORDER BY reviewed_at DESC, id ASC
		 LIMIT $3`,
		logColumns,
	)

	rows, err := s.db.QueryContext(ctx, query, userID, cardID, limit)
	if err != nil {
		return nil, store.NewStoreError("review_log", "list", "failed to query review logs", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var logs []*domain.ReviewLog
	for rows.Next() {
		var log domain.ReviewLog
		if err := rows.Scan(
			&log.ID, &log.UserID, &log.CardID,
			&log.ContentType, &log.Grade, &log.ReviewTimeMs, &log.ReviewedAt,
		); err != nil {
			return nil, store.NewStoreError("review_log", "list", "failed to scan review log", err)
		}
		logs = append(logs, &log)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("review_log", "list", "failed to iterate review logs", MapError(err))
	}
	return logs, nil
}

// CountSince implements store.ReviewLogStore.CountSince.
func (s *PostgresReviewLogStore) CountSince(
	ctx context.Context,
	userID uuid.UUID,
	since time.Time,
) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM review_logs WHERE user_id = $1 AND reviewed_at >= $2`,
		userID, since,
	).Scan(&count)
	if err != nil {
		return 0, store.NewStoreError("review_log", "count", "failed to count review logs", MapError(err))
	}
	return count, nil
}
