package postgres

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medrevise/revise-api/internal/domain"
	"github.com/medrevise/revise-api/internal/store"
)

const (
	// defaultListLimit bounds listings when the caller passes limit = 0.
	defaultListLimit = 50

	// bulkPageSize is the page size for BulkWrite. Each page commits in its
	// own transaction to bound lock duration on large selections.
	bulkPageSize = 500
)

// cardColumns is the column list shared by every SELECT in this file, in
// scanCard order.
const cardColumns = `id, user_id, content_type, content_id, state, due,
	stability, difficulty, elapsed_days, scheduled_days, reps, lapses,
	last_review, suspended, created_at, updated_at`

// PostgresReviewCardStore implements store.ReviewCardStore using PostgreSQL.
type PostgresReviewCardStore struct {
	db     store.DBTX
	sqlDB  *sql.DB // nil when already inside a transaction
	logger *slog.Logger
}

// NewPostgresReviewCardStore creates a PostgreSQL implementation of the
// ReviewCardStore interface. The *sql.DB is retained so BulkWrite can open
// its own per-page transactions.
func NewPostgresReviewCardStore(db *sql.DB, logger *slog.Logger) *PostgresReviewCardStore {
	if db == nil {
		// ALLOW-PANIC: constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresReviewCardStore{
		db:     db,
		sqlDB:  db,
		logger: logger.With(slog.String("component", "review_card_store")),
	}
}

// Ensure PostgresReviewCardStore implements store.ReviewCardStore.
var _ store.ReviewCardStore = (*PostgresReviewCardStore)(nil)

// WithTx implements store.ReviewCardStore.WithTx. The returned store runs
// every operation, including BulkWrite, inside the given transaction.
func (s *PostgresReviewCardStore) WithTx(tx *sql.Tx) store.ReviewCardStore {
	return &PostgresReviewCardStore{db: tx, logger: s.logger}
}

// Get implements store.ReviewCardStore.Get.
func (s *PostgresReviewCardStore) Get(
	ctx context.Context,
	userID uuid.UUID,
	contentType domain.ContentType,
	contentID uuid.UUID,
) (*domain.ReviewCard, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM review_cards
		 WHERE user_id = $1 AND content_type = $2 AND content_id = $3`,
		cardColumns,
	)

	card, err := scanCard(s.db.QueryRowContext(ctx, query, userID, string(contentType), contentID))
	if err != nil {
		if mapped := MapError(err); store.IsNotFoundError(mapped) {
			return nil, store.ErrCardNotFound
		}
		return nil, MapError(err)
	}
	return card, nil
}

// GetByID implements store.ReviewCardStore.GetByID.
func (s *PostgresReviewCardStore) GetByID(
	ctx context.Context,
	userID, cardID uuid.UUID,
) (*domain.ReviewCard, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM review_cards WHERE id = $1 AND user_id = $2`,
		cardColumns,
	)

	card, err := scanCard(s.db.QueryRowContext(ctx, query, cardID, userID))
	if err != nil {
		if mapped := MapError(err); store.IsNotFoundError(mapped) {
			return nil, store.ErrCardNotFound
		}
		return nil, MapError(err)
	}
	return card, nil
}

// Create implements store.ReviewCardStore.Create.
func (s *PostgresReviewCardStore) Create(ctx context.Context, card *domain.ReviewCard) error {
	if err := card.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `INSERT INTO review_cards (id, user_id, content_type, content_id,
		state, due, stability, difficulty, elapsed_days, scheduled_days,
		reps, lapses, last_review, suspended, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := s.db.ExecContext(ctx, query,
		card.ID, card.UserID, string(card.ContentType), card.ContentID,
		string(card.State), card.Due, card.Stability, card.Difficulty,
		card.ElapsedDays, card.ScheduledDays, card.Reps, card.Lapses,
		card.LastReview, card.Suspended, card.CreatedAt, card.UpdatedAt,
	)
	if err != nil {
		return MapError(err)
	}

	s.logger.DebugContext(ctx, "created review card",
		slog.String("card_id", card.ID.String()),
		slog.String("content_type", string(card.ContentType)))
	return nil
}

// Upsert implements store.ReviewCardStore.Upsert. The WHERE clause on
// updated_at is the optimistic-concurrency check: a concurrent writer that
// advanced the row first makes this update match zero rows.
func (s *PostgresReviewCardStore) Upsert(
	ctx context.Context,
	card *domain.ReviewCard,
	expectedUpdatedAt time.Time,
) error {
	if err := card.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `UPDATE review_cards SET
		state = $1, due = $2, stability = $3, difficulty = $4,
		elapsed_days = $5, scheduled_days = $6, reps = $7, lapses = $8,
		last_review = $9, suspended = $10, updated_at = $11
		WHERE id = $12 AND user_id = $13 AND updated_at = $14`

	result, err := s.db.ExecContext(ctx, query,
		string(card.State), card.Due, card.Stability, card.Difficulty,
		card.ElapsedDays, card.ScheduledDays, card.Reps, card.Lapses,
		card.LastReview, card.Suspended, card.UpdatedAt,
		card.ID, card.UserID, expectedUpdatedAt,
	)
	if err != nil {
		return MapError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		// Either the row is gone or somebody advanced it. Distinguish so
		// the caller knows whether to re-read or give up.
		var exists bool
		checkErr := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM review_cards WHERE id = $1 AND user_id = $2)`,
			card.ID, card.UserID,
		).Scan(&exists)
		if checkErr != nil {
			return MapError(checkErr)
		}
		if !exists {
			return store.ErrCardNotFound
		}
		return store.ErrStaleCard
	}

	return nil
}

// ListByFilter implements store.ReviewCardStore.ListByFilter.
func (s *PostgresReviewCardStore) ListByFilter(
	ctx context.Context,
	filter store.CardFilter,
	sort store.CardSort,
	cursor string,
	limit int,
) (*store.CardPage, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	where, args := buildCardWhere(filter)

	orderBy := "due ASC, id ASC"
	if sort == store.SortByLastReviewDesc {
		orderBy = "last_review DESC, id ASC"
	}

	if cursor != "" {
		cursorTime, cursorID, err := decodeCursor(cursor)
		if err != nil {
			return nil, fmt.Errorf("%w: bad pagination cursor: %v", store.ErrInvalidArgument, err)
		}
		n := len(args)
		if sort == store.SortByLastReviewDesc {
			where = append(where, fmt.Sprintf(
				"(last_review < $%d OR (last_review = $%d AND id > $%d))", n+1, n+1, n+2))
		} else {
			where = append(where, fmt.Sprintf(
				"(due > $%d OR (due = $%d AND id > $%d))", n+1, n+1, n+2))
		}
		args = append(args, cursorTime, cursorID)
	}

	query := fmt.Sprintf(
		`SELECT %s FROM review_cards WHERE %s ORDER BY %s LIMIT %d`,
		cardColumns, strings.Join(where, " AND "), orderBy, limit,
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	page := &store.CardPage{}
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, MapError(err)
		}
		page.Cards = append(page.Cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	// A full page may have more behind it; hand back a restart point.
	if len(page.Cards) == limit {
		last := page.Cards[len(page.Cards)-1]
		if sort == store.SortByLastReviewDesc && last.LastReview != nil {
			page.NextCursor = encodeCursor(*last.LastReview, last.ID)
		} else {
			page.NextCursor = encodeCursor(last.Due, last.ID)
		}
	}

	return page, nil
}

// CountByFilter implements store.ReviewCardStore.CountByFilter.
func (s *PostgresReviewCardStore) CountByFilter(
	ctx context.Context,
	filter store.CardFilter,
) (map[domain.ContentType]map[domain.CardState]int, error) {
	where, args := buildCardWhere(filter)

	query := fmt.Sprintf(
		`SELECT content_type, state, COUNT(*) FROM review_cards
		 WHERE %s GROUP BY content_type, state`,
		strings.Join(where, " AND "),
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[domain.ContentType]map[domain.CardState]int)
	for rows.Next() {
		var contentType, state string
		var count int
		if err := rows.Scan(&contentType, &state, &count); err != nil {
			return nil, MapError(err)
		}
		ct := domain.ContentType(contentType)
		if counts[ct] == nil {
			counts[ct] = make(map[domain.CardState]int)
		}
		counts[ct][domain.CardState(state)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return counts, nil
}

// BulkWrite implements store.ReviewCardStore.BulkWrite. Pages are read with
// the filter, transformed in memory, and written back under per-page
// transactions with per-row optimistic checks; rows that a concurrent writer
// advanced between read and write count as failed rather than aborting the
// page.
func (s *PostgresReviewCardStore) BulkWrite(
	ctx context.Context,
	filter store.CardFilter,
	transform store.CardTransform,
) (*store.BulkWriteResult, error) {
	result := &store.BulkWriteResult{}
	seen := make(map[uuid.UUID]struct{})
	cursor := ""

	for {
		if err := ctx.Err(); err != nil {
			// Committed pages stay committed; report how far we got.
			return result, MapError(err)
		}

		page, err := s.ListByFilter(ctx, filter, store.SortByDueAsc, cursor, bulkPageSize)
		if err != nil {
			return result, err
		}
		if len(page.Cards) == 0 {
			return result, nil
		}

		writePage := func(cardStore store.ReviewCardStore) error {
			for _, card := range page.Cards {
				// A transform that moves a card past the keyset cursor
				// makes it reappear in a later page; count it once.
				if _, ok := seen[card.ID]; ok {
					continue
				}
				seen[card.ID] = struct{}{}
				result.Matched++

				expected := card.UpdatedAt
				if !transform(card) {
					continue
				}
				card.UpdatedAt = time.Now().UTC()
				if err := cardStore.Upsert(ctx, card, expected); err != nil {
					if store.IsConflictError(err) || store.IsNotFoundError(err) {
						result.Failed++
						continue
					}
					return err
				}
				result.Updated++
			}
			return nil
		}

		if s.sqlDB != nil {
			err = store.RunInTransaction(ctx, s.sqlDB, func(ctx context.Context, tx *sql.Tx) error {
				return writePage(s.WithTx(tx))
			})
		} else {
			// Already inside a caller-managed transaction.
			err = writePage(s)
		}
		if err != nil {
			return result, err
		}

		if page.NextCursor == "" {
			return result, nil
		}
		cursor = page.NextCursor
	}
}

// Delete implements store.ReviewCardStore.Delete. Absent IDs are not an
// error; the count tells the caller how many rows actually went away.
func (s *PostgresReviewCardStore) Delete(
	ctx context.Context,
	userID uuid.UUID,
	ids []uuid.UUID,
) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	args := []any{userID}
	holders := make([]string, len(ids))
	for i, id := range ids {
		holders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}

	query := fmt.Sprintf(
		`DELETE FROM review_cards WHERE user_id = $1 AND id IN (%s)`,
		strings.Join(holders, ", "),
	)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, MapError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(rows), nil
}

// DeleteByFilter implements store.ReviewCardStore.DeleteByFilter.
func (s *PostgresReviewCardStore) DeleteByFilter(
	ctx context.Context,
	filter store.CardFilter,
) (int, error) {
	where, args := buildCardWhere(filter)

	query := fmt.Sprintf(
		`DELETE FROM review_cards WHERE %s`,
		strings.Join(where, " AND "),
	)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, MapError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(rows), nil
}

// buildCardWhere converts a CardFilter into WHERE clauses and bind args.
func buildCardWhere(filter store.CardFilter) ([]string, []any) {
	where := []string{"user_id = $1"}
	args := []any{filter.UserID}

	next := func() int { return len(args) + 1 }

	if len(filter.ContentTypes) > 0 {
		holders := make([]string, len(filter.ContentTypes))
		for i, ct := range filter.ContentTypes {
			holders[i] = fmt.Sprintf("$%d", next())
			args = append(args, string(ct))
		}
		where = append(where, fmt.Sprintf("content_type IN (%s)", strings.Join(holders, ", ")))
	}

	if len(filter.States) > 0 {
		holders := make([]string, len(filter.States))
		for i, st := range filter.States {
			holders[i] = fmt.Sprintf("$%d", next())
			args = append(args, string(st))
		}
		where = append(where, fmt.Sprintf("state IN (%s)", strings.Join(holders, ", ")))
	}

	if len(filter.IDs) > 0 {
		holders := make([]string, len(filter.IDs))
		for i, id := range filter.IDs {
			holders[i] = fmt.Sprintf("$%d", next())
			args = append(args, id)
		}
		where = append(where, fmt.Sprintf("id IN (%s)", strings.Join(holders, ", ")))
	}

	if filter.DueBefore != nil {
		where = append(where, fmt.Sprintf("due <= $%d", next()))
		args = append(args, *filter.DueBefore)
	}

	if filter.DueAfter != nil {
		where = append(where, fmt.Sprintf("due > $%d", next()))
		args = append(args, *filter.DueAfter)
	}

	if filter.ReviewedSince != nil {
		where = append(where, fmt.Sprintf("last_review >= $%d", next()))
		args = append(args, *filter.ReviewedSince)
	}

	if filter.NotReviewedSince != nil {
		where = append(where, fmt.Sprintf("(last_review IS NULL OR last_review < $%d)", next()))
		args = append(args, *filter.NotReviewedSince)
	}

	if !filter.IncludeSuspended {
		where = append(where, "NOT suspended")
	}

	return where, args
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanCard.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanCard scans one review_cards row in cardColumns order.
func scanCard(row rowScanner) (*domain.ReviewCard, error) {
	var card domain.ReviewCard
	var contentType, state string
	var lastReview sql.NullTime

	err := row.Scan(
		&card.ID, &card.UserID, &contentType, &card.ContentID, &state,
		&card.Due, &card.Stability, &card.Difficulty, &card.ElapsedDays,
		&card.ScheduledDays, &card.Reps, &card.Lapses, &lastReview,
		&card.Suspended, &card.CreatedAt, &card.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	card.ContentType = domain.ContentType(contentType)
	card.State = domain.CardState(state)
	if lastReview.Valid {
		t := lastReview.Time
		card.LastReview = &t
	}

	return &card, nil
}

// encodeCursor packs a (timestamp, id) restart point into an opaque string.
func encodeCursor(t time.Time, id uuid.UUID) string {
	raw := t.UTC().Format(time.RFC3339Nano) + "|" + id.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// decodeCursor unpacks a cursor produced by encodeCursor.
func decodeCursor(cursor string) (time.Time, uuid.UUID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, uuid.Nil, fmt.Errorf("malformed cursor")
	}

	t, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("invalid cursor timestamp: %w", err)
	}

	id, err := uuid.Parse(parts[1])
	if err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("invalid cursor id: %w", err)
	}

	return t, id, nil
}
