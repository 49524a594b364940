package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/medrevise/revise-api/internal/domain"
	"github.com/medrevise/revise-api/internal/domain/srs"
	"github.com/medrevise/revise-api/internal/platform/logger"
	"github.com/medrevise/revise-api/internal/service/content"
	"github.com/medrevise/revise-api/internal/store"
)

// Verify interface compliance at compile time
var _ Service = (*serviceImpl)(nil)

// Config carries the tunables the review surface needs.
type Config struct {
	// DefaultPageSize bounds pool listings when the caller gives no limit.
	DefaultPageSize int

	// CompletedLookbackDays is the completed pool window.
	CompletedLookbackDays int
}

// serviceImpl implements the Service interface.
type serviceImpl struct {
	db        *sql.DB
	cards     store.ReviewCardStore
	logs      store.ReviewLogStore
	scheduler srs.Scheduler
	provider  content.Provider
	caps      *Caps
	cfg       Config
	logger    *slog.Logger

	// now is swapped out in tests.
	now func() time.Time
}

// NewService creates a new review Service. db may be nil when the stores are
// not SQL-backed; grade recording then skips transactional grouping.
func NewService(
	db *sql.DB,
	cards store.ReviewCardStore,
	logs store.ReviewLogStore,
	scheduler srs.Scheduler,
	provider content.Provider,
	caps *Caps,
	cfg Config,
	log *slog.Logger,
) Service {
	// ALLOW-PANIC: Constructor enforces required dependencies
	if cards == nil {
		panic("cards store cannot be nil")
	}
	if logs == nil {
		panic("logs store cannot be nil")
	}
	if scheduler == nil {
		panic("scheduler cannot be nil")
	}
	if caps == nil {
		panic("caps cannot be nil")
	}
	if provider == nil {
		provider = content.NopProvider{}
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 20
	}
	if cfg.CompletedLookbackDays <= 0 {
		cfg.CompletedLookbackDays = 30
	}

	return &serviceImpl{
		db:        db,
		cards:     cards,
		logs:      logs,
		scheduler: scheduler,
		provider:  provider,
		caps:      caps,
		cfg:       cfg,
		logger:    log.With(slog.String("component", "review_service")),
		now:       time.Now,
	}
}

// RecordGrade implements Service.RecordGrade.
func (s *serviceImpl) RecordGrade(
	ctx context.Context,
	userID uuid.UUID,
	req RecordRequest,
) (*RecordResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !req.Grade.IsValid() {
		return nil, ErrInvalidGrade
	}
	if !req.ContentType.IsValid() {
		return nil, ErrInvalidContentType
	}
	if req.ReviewTimeMs < 0 {
		return nil, NewServiceError("record_grade", "review time cannot be negative", domain.ErrNegativeReviewTime)
	}

	now := s.now().UTC()

	// One automatic retry: a conflict means another device graded the same
	// card between our read and write, so re-read and re-apply.
	result, err := s.recordOnce(ctx, userID, req, now)
	if errors.Is(err, store.ErrStaleCard) {
		log.Debug("card changed under grade write, retrying",
			slog.String("user_id", userID.String()),
			slog.String("content_id", req.ContentID.String()))
		result, err = s.recordOnce(ctx, userID, req, now)
		if errors.Is(err, store.ErrStaleCard) {
			return nil, fmt.Errorf("%w: %w", ErrWriteConflict, err)
		}
	}
	if err != nil {
		log.Error("failed to record grade",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()),
			slog.String("content_type", string(req.ContentType)),
			slog.String("content_id", req.ContentID.String()))
		return nil, err
	}

	log.Debug("grade recorded",
		slog.String("user_id", userID.String()),
		slog.String("card_id", result.Card.ID.String()),
		slog.String("grade", string(req.Grade)),
		slog.String("state", string(result.Card.State)))
	return result, nil
}

// recordOnce performs a single read-apply-write attempt.
func (s *serviceImpl) recordOnce(
	ctx context.Context,
	userID uuid.UUID,
	req RecordRequest,
	now time.Time,
) (*RecordResult, error) {
	card, err := s.cards.Get(ctx, userID, req.ContentType, req.ContentID)
	created := false
	switch {
	case err == nil:
	case store.IsNotFoundError(err):
		// First grade for this item: it enters scheduling here.
		card, err = domain.NewReviewCard(userID, req.ContentType, req.ContentID)
		if err != nil {
			return nil, NewServiceError("record_grade", "failed to create card", err)
		}
		created = true
	default:
		return nil, NewServiceError("record_grade", "failed to load card", err)
	}

	expected := card.UpdatedAt

	updated, err := s.scheduler.Apply(card, req.Grade, now)
	if err != nil {
		return nil, NewServiceError("record_grade", "failed to apply grade", err)
	}

	entry, err := domain.NewReviewLog(userID, updated.ID, req.ContentType, req.Grade, req.ReviewTimeMs, now)
	if err != nil {
		return nil, NewServiceError("record_grade", "failed to build review log", err)
	}

	write := func(cards store.ReviewCardStore, logs store.ReviewLogStore) error {
		if created {
			if err := cards.Create(ctx, updated); err != nil {
				// A concurrent first grade won the insert race; surface it
				// as staleness so the retry picks up the winner's row.
				if store.IsConflictError(err) {
					return fmt.Errorf("%w: %w", store.ErrStaleCard, err)
				}
				return err
			}
		} else {
			if err := cards.Upsert(ctx, updated, expected); err != nil {
				return err
			}
		}
		return logs.Create(ctx, entry)
	}

	if s.db != nil {
		err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
			return write(s.cards.WithTx(tx), s.logs.WithTx(tx))
		})
	} else {
		err = write(s.cards, s.logs)
	}
	if err != nil {
		if errors.Is(err, store.ErrStaleCard) {
			return nil, err
		}
		return nil, NewServiceError("record_grade", "failed to persist review", err)
	}

	return &RecordResult{Card: updated, Created: created}, nil
}

// Preview implements Service.Preview.
func (s *serviceImpl) Preview(
	ctx context.Context,
	userID uuid.UUID,
	contentType domain.ContentType,
	contentID uuid.UUID,
) (map[domain.Grade]*domain.ReviewCard, error) {
	if !contentType.IsValid() {
		return nil, ErrInvalidContentType
	}

	card, err := s.cards.Get(ctx, userID, contentType, contentID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, ErrCardNotFound
		}
		return nil, NewServiceError("preview", "failed to load card", err)
	}

	preview, err := s.scheduler.Preview(card, s.now().UTC())
	if err != nil {
		return nil, NewServiceError("preview", "failed to preview grades", err)
	}
	return preview, nil
}

// TodayCards implements Service.TodayCards.
func (s *serviceImpl) TodayCards(ctx context.Context, userID uuid.UUID, opts ListOptions) (*Page, error) {
	now := s.now().UTC()
	endOfDay := endOfLocalDay(now, opts.TZOffsetMinutes)

	dailyCap := s.caps.Effective(userID, now)
	if opts.Limit <= 0 || opts.Limit > dailyCap {
		opts.Limit = dailyCap
	}

	filter := store.CardFilter{
		UserID:       userID,
		ContentTypes: opts.ContentTypes,
		DueBefore:    &endOfDay,
	}
	return s.listPool(ctx, "today", filter, store.SortByDueAsc, opts, userID)
}

// DueCards implements Service.DueCards.
func (s *serviceImpl) DueCards(ctx context.Context, userID uuid.UUID, opts ListOptions) (*Page, error) {
	now := s.now().UTC()
	filter := s.pendingFilter(userID, now, opts.ContentTypes)
	if !opts.DueOnly {
		// The default view folds in cards due later in the caller's
		// local day, the same adjustment the today queue makes.
		endOfDay := endOfLocalDay(now, opts.TZOffsetMinutes)
		filter.DueBefore = &endOfDay
	}
	return s.listPool(ctx, "due", filter, store.SortByDueAsc, opts, userID)
}

// FutureCards implements Service.FutureCards.
func (s *serviceImpl) FutureCards(ctx context.Context, userID uuid.UUID, opts ListOptions) (*Page, error) {
	now := s.now().UTC()
	filter := s.futureFilter(userID, now, opts.ContentTypes)
	if opts.StartDate != nil && opts.StartDate.After(now) {
		// DueAfter is exclusive; shift so the caller's start date counts.
		start := opts.StartDate.UTC().Add(-time.Nanosecond)
		filter.DueAfter = &start
	}
	if opts.EndDate != nil {
		end := opts.EndDate.UTC()
		filter.DueBefore = &end
	}
	return s.listPool(ctx, "future", filter, store.SortByDueAsc, opts, userID)
}

// CompletedCards implements Service.CompletedCards.
func (s *serviceImpl) CompletedCards(ctx context.Context, userID uuid.UUID, opts ListOptions) (*Page, error) {
	now := s.now().UTC()
	filter := s.completedFilter(userID, now, opts.ContentTypes, opts.LookbackDays)
	return s.listPool(ctx, "completed", filter, store.SortByLastReviewDesc, opts, userID)
}

// Summary implements Service.Summary.
func (s *serviceImpl) Summary(ctx context.Context, userID uuid.UUID, tzOffsetMinutes int) (*Summary, error) {
	now := s.now().UTC()

	pending, err := s.poolCounts(ctx, s.pendingFilter(userID, now, nil))
	if err != nil {
		return nil, NewServiceError("summary", "failed to count pending pool", err)
	}
	future, err := s.poolCounts(ctx, s.futureFilter(userID, now, nil))
	if err != nil {
		return nil, NewServiceError("summary", "failed to count future pool", err)
	}
	completed, err := s.poolCounts(ctx, s.completedFilter(userID, now, nil, 0))
	if err != nil {
		return nil, NewServiceError("summary", "failed to count completed pool", err)
	}

	endOfDay := endOfLocalDay(now, tzOffsetMinutes)
	today, err := s.poolCounts(ctx, store.CardFilter{UserID: userID, DueBefore: &endOfDay})
	if err != nil {
		return nil, NewServiceError("summary", "failed to count today queue", err)
	}

	return &Summary{
		AsOf:      now,
		Pending:   pending,
		DueToday:  today.Total,
		Future:    future,
		Completed: completed,
	}, nil
}

// OverdueStats implements Service.OverdueStats.
func (s *serviceImpl) OverdueStats(ctx context.Context, userID uuid.UUID) (*OverdueStats, error) {
	now := s.now().UTC()
	filter := s.pendingFilter(userID, now, nil)

	counts, err := s.poolCounts(ctx, filter)
	if err != nil {
		return nil, NewServiceError("overdue_stats", "failed to count overdue cards", err)
	}

	stats := &OverdueStats{
		Total:         counts.Total,
		ByContentType: counts.ByContentType,
	}
	if counts.Total == 0 {
		return stats, nil
	}

	page, err := s.cards.ListByFilter(ctx, filter, store.SortByDueAsc, "", 1)
	if err != nil {
		return nil, NewServiceError("overdue_stats", "failed to find oldest overdue card", err)
	}
	if len(page.Cards) > 0 {
		due := page.Cards[0].Due
		stats.OldestDue = &due
	}
	return stats, nil
}

// Pool filters. Every pool query goes through these three constructors so
// listings and summary counts can never disagree on pool membership. The
// pools partition the user's active cards: pending takes everything due,
// completed takes the rest reviewed inside the lookback window, future takes
// what remains.

func (s *serviceImpl) pendingFilter(userID uuid.UUID, asOf time.Time, types []domain.ContentType) store.CardFilter {
	return store.CardFilter{
		UserID:       userID,
		ContentTypes: types,
		DueBefore:    &asOf,
	}
}

func (s *serviceImpl) futureFilter(userID uuid.UUID, asOf time.Time, types []domain.ContentType) store.CardFilter {
	windowStart := asOf.AddDate(0, 0, -s.cfg.CompletedLookbackDays)
	return store.CardFilter{
		UserID:           userID,
		ContentTypes:     types,
		DueAfter:         &asOf,
		NotReviewedSince: &windowStart,
	}
}

func (s *serviceImpl) completedFilter(userID uuid.UUID, asOf time.Time, types []domain.ContentType, lookbackDays int) store.CardFilter {
	if lookbackDays <= 0 {
		lookbackDays = s.cfg.CompletedLookbackDays
	}
	windowStart := asOf.AddDate(0, 0, -lookbackDays)
	return store.CardFilter{
		UserID:        userID,
		ContentTypes:  types,
		DueAfter:      &asOf,
		ReviewedSince: &windowStart,
	}
}

// listPool runs one paged pool query and enriches the result.
func (s *serviceImpl) listPool(
	ctx context.Context,
	pool string,
	filter store.CardFilter,
	sort store.CardSort,
	opts ListOptions,
	userID uuid.UUID,
) (*Page, error) {
	if opts.Limit <= 0 {
		opts.Limit = s.cfg.DefaultPageSize
	}

	page, err := s.cards.ListByFilter(ctx, filter, sort, opts.Cursor, opts.Limit)
	if err != nil {
		return nil, NewServiceError("list_"+pool, "failed to list cards", err)
	}

	enriched, err := s.enrich(ctx, userID, page.Cards)
	if err != nil {
		return nil, err
	}
	return &Page{Cards: enriched, NextCursor: page.NextCursor}, nil
}

// poolCounts flattens a CountByFilter result into PoolCounts.
func (s *serviceImpl) poolCounts(ctx context.Context, filter store.CardFilter) (PoolCounts, error) {
	raw, err := s.cards.CountByFilter(ctx, filter)
	if err != nil {
		return PoolCounts{}, err
	}

	counts := PoolCounts{
		ByContentType: make(map[domain.ContentType]int),
		ByState:       make(map[domain.CardState]int),
	}
	for contentType, states := range raw {
		for state, n := range states {
			counts.Total += n
			counts.ByContentType[contentType] += n
			counts.ByState[state] += n
		}
	}
	return counts, nil
}

// enrich attaches display data to cards. A failing or partial content lookup
// degrades to cards without display data rather than failing the listing.
func (s *serviceImpl) enrich(ctx context.Context, userID uuid.UUID, cards []*domain.ReviewCard) ([]*Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	refs := make([]content.Ref, 0, len(cards))
	for _, c := range cards {
		refs = append(refs, content.Ref{ContentType: c.ContentType, ContentID: c.ContentID})
	}

	displays := map[content.Ref]*content.Display{}
	if len(refs) > 0 {
		var err error
		displays, err = s.provider.BatchDisplay(ctx, userID, refs)
		if err != nil {
			log.Warn("content enrichment failed, returning bare cards",
				slog.String("error", err.Error()),
				slog.String("user_id", userID.String()))
			displays = map[content.Ref]*content.Display{}
		}
	}

	out := make([]*Card, 0, len(cards))
	for _, c := range cards {
		out = append(out, &Card{
			ReviewCard: c,
			Display:    displays[content.Ref{ContentType: c.ContentType, ContentID: c.ContentID}],
		})
	}
	return out, nil
}

// endOfLocalDay returns the last instant of the caller's current local day,
// expressed in UTC. The offset is minutes east of UTC.
func endOfLocalDay(now time.Time, tzOffsetMinutes int) time.Time {
	loc := time.FixedZone("caller", tzOffsetMinutes*60)
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
	return next.Add(-time.Nanosecond).UTC()
}
