package bulkops

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/medrevise/revise-api/internal/domain"
	"github.com/medrevise/revise-api/internal/platform/logger"
	"github.com/medrevise/revise-api/internal/service/review"
	"github.com/medrevise/revise-api/internal/store"
)

const (
	// maxCrammingDays bounds the cramming window regardless of how far out
	// the exam is.
	maxCrammingDays = 15

	// collectPageSize bounds the read pages used to order a selection
	// before distribution.
	collectPageSize = 500
)

// Verify interface compliance at compile time
var _ Engine = (*engineImpl)(nil)

// engineImpl implements the Engine interface.
type engineImpl struct {
	cards  store.ReviewCardStore
	caps   *review.Caps
	logger *slog.Logger

	// crammingCap is the raised daily limit reported in cramming plans.
	crammingCap int

	// now is swapped out in tests.
	now func() time.Time
}

// NewEngine creates a new bulk operation Engine.
func NewEngine(
	cards store.ReviewCardStore,
	caps *review.Caps,
	crammingCap int,
	log *slog.Logger,
) Engine {
	// ALLOW-PANIC: Constructor enforces required dependencies
	if cards == nil {
		panic("cards store cannot be nil")
	}
	if caps == nil {
		panic("caps cannot be nil")
	}
	if crammingCap <= 0 {
		panic("cramming cap must be positive")
	}
	if log == nil {
		log = slog.Default()
	}

	return &engineImpl{
		cards:       cards,
		caps:        caps,
		crammingCap: crammingCap,
		logger:      log.With(slog.String("component", "bulkops_engine")),
		now:         time.Now,
	}
}

// Reschedule implements Engine.Reschedule.
func (e *engineImpl) Reschedule(
	ctx context.Context,
	userID uuid.UUID,
	req RescheduleRequest,
) (*Result, error) {
	log := logger.FromContextOrDefault(ctx, e.logger)

	if req.NewDue == nil && req.DistributeDays == 0 {
		return nil, ErrNoRescheduleTarget
	}
	if req.NewDue != nil && req.DistributeDays != 0 {
		return nil, ErrAmbiguousRescheduleTarget
	}
	if req.NewDue == nil && req.DistributeDays <= 0 {
		return nil, ErrInvalidDistributeDays
	}

	filter := e.selectionFilter(userID, req.Selection)

	var targets map[uuid.UUID]time.Time
	if req.NewDue != nil {
		due := req.NewDue.UTC()
		result, err := e.applyTargets(ctx, filter, func(id uuid.UUID) (time.Time, bool) {
			return due, true
		})
		if err != nil {
			return nil, NewEngineError("reschedule", "failed to move cards", err)
		}
		log.Info("rescheduled cards to fixed date",
			slog.String("user_id", userID.String()),
			slog.Time("new_due", due),
			slog.Int("updated", result.Updated))
		return result, nil
	}

	// Even distribution needs the full selection in due order before any
	// write moves a card.
	ordered, err := e.collectOrdered(ctx, filter)
	if err != nil {
		return nil, NewEngineError("reschedule", "failed to read selection", err)
	}

	now := e.now().UTC()
	targets = distribute(ordered, req.DistributeDays, now.AddDate(0, 0, 1))

	result, err := e.applyTargets(ctx, filter, func(id uuid.UUID) (time.Time, bool) {
		due, ok := targets[id]
		return due, ok
	})
	if err != nil {
		return nil, NewEngineError("reschedule", "failed to distribute cards", err)
	}

	log.Info("distributed cards",
		slog.String("user_id", userID.String()),
		slog.Int("days", req.DistributeDays),
		slog.Int("matched", result.Matched),
		slog.Int("updated", result.Updated))
	return result, nil
}

// ResetProgress implements Engine.ResetProgress.
func (e *engineImpl) ResetProgress(
	ctx context.Context,
	userID uuid.UUID,
	sel Selection,
) (*Result, error) {
	log := logger.FromContextOrDefault(ctx, e.logger)
	now := e.now().UTC()

	raw, err := e.cards.BulkWrite(ctx, e.selectionFilter(userID, sel), func(card *domain.ReviewCard) bool {
		if card.State == domain.CardStateNew && card.Reps == 0 && card.LastReview == nil {
			return false
		}
		card.State = domain.CardStateNew
		card.Due = now
		card.Stability = 0
		card.Difficulty = domain.DefaultDifficulty
		card.ElapsedDays = 0
		card.ScheduledDays = 0
		card.Reps = 0
		card.Lapses = 0
		card.LastReview = nil
		return true
	})
	if err != nil {
		return nil, NewEngineError("reset_progress", "failed to reset cards", err)
	}

	log.Info("reset card progress",
		slog.String("user_id", userID.String()),
		slog.Int("updated", raw.Updated),
		slog.Int("failed", raw.Failed))
	return fromBulkResult(raw), nil
}

// SetSuspended implements Engine.SetSuspended.
func (e *engineImpl) SetSuspended(
	ctx context.Context,
	userID uuid.UUID,
	sel Selection,
	suspended bool,
) (*Result, error) {
	log := logger.FromContextOrDefault(ctx, e.logger)

	filter := e.selectionFilter(userID, sel)
	// Restoring cards has to see the suspended rows it is restoring.
	filter.IncludeSuspended = !suspended

	raw, err := e.cards.BulkWrite(ctx, filter, func(card *domain.ReviewCard) bool {
		if card.Suspended == suspended {
			return false
		}
		card.Suspended = suspended
		return true
	})
	if err != nil {
		return nil, NewEngineError("set_suspended", "failed to update suspension", err)
	}

	log.Info("updated card suspension",
		slog.String("user_id", userID.String()),
		slog.Bool("suspended", suspended),
		slog.Int("updated", raw.Updated))
	return fromBulkResult(raw), nil
}

// Delete implements Engine.Delete.
func (e *engineImpl) Delete(ctx context.Context, userID uuid.UUID, req DeleteRequest) (int, error) {
	log := logger.FromContextOrDefault(ctx, e.logger)

	var deleted int
	var err error
	if req.DeleteAll {
		filter := e.selectionFilter(userID, req.Selection)
		filter.IDs = nil
		// A full delete takes suspended cards with it.
		filter.IncludeSuspended = true
		deleted, err = e.cards.DeleteByFilter(ctx, filter)
	} else {
		if len(req.IDs) == 0 {
			return 0, ErrEmptyDeleteSelection
		}
		deleted, err = e.cards.Delete(ctx, userID, req.IDs)
	}
	if err != nil {
		return 0, NewEngineError("delete", "failed to delete cards", err)
	}

	log.Info("deleted cards",
		slog.String("user_id", userID.String()),
		slog.Bool("delete_all", req.DeleteAll),
		slog.Int("deleted", deleted))
	return deleted, nil
}

// ActivateCramming implements Engine.ActivateCramming.
func (e *engineImpl) ActivateCramming(
	ctx context.Context,
	userID uuid.UUID,
	examDate time.Time,
) (*CrammingPlan, error) {
	log := logger.FromContextOrDefault(ctx, e.logger)
	now := e.now().UTC()

	if examDate.Before(now) {
		return nil, ErrExamDateInPast
	}

	days := int(examDate.Sub(now).Hours() / 24)
	if days < 1 {
		days = 1
	}
	if days > maxCrammingDays {
		days = maxCrammingDays
	}

	// Cramming compresses the whole outstanding schedule into the window:
	// the pending backlog and every future card redistribute together,
	// earlier-due cards landing on earlier days.
	filter := store.CardFilter{UserID: userID}

	ordered, err := e.collectOrdered(ctx, filter)
	if err != nil {
		return nil, NewEngineError("activate_cramming", "failed to read outstanding cards", err)
	}

	targets := distribute(ordered, days, now)

	result, err := e.applyTargets(ctx, filter, func(id uuid.UUID) (time.Time, bool) {
		due, ok := targets[id]
		return due, ok
	})
	if err != nil {
		return nil, NewEngineError("activate_cramming", "failed to distribute outstanding cards", err)
	}

	capUntil := now.AddDate(0, 0, days)
	e.caps.ActivateCramming(userID, capUntil)

	log.Info("activated cramming",
		slog.String("user_id", userID.String()),
		slog.Time("exam_date", examDate),
		slog.Int("days", days),
		slog.Int("cards", len(ordered)),
		slog.Time("cap_until", capUntil))

	return &CrammingPlan{
		Days:         days,
		CardsPerDay:  bucketSizes(len(ordered), days),
		CapUntil:     capUntil,
		EffectiveCap: e.crammingCap,
		Result:       *result,
	}, nil
}

// DeactivateCramming implements Engine.DeactivateCramming.
func (e *engineImpl) DeactivateCramming(ctx context.Context, userID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, e.logger)
	e.caps.DeactivateCramming(userID)
	log.Info("deactivated cramming", slog.String("user_id", userID.String()))
	return nil
}

// selectionFilter converts a Selection into a store filter.
func (e *engineImpl) selectionFilter(userID uuid.UUID, sel Selection) store.CardFilter {
	return store.CardFilter{
		UserID:           userID,
		IDs:              sel.IDs,
		ContentTypes:     sel.ContentTypes,
		States:           sel.States,
		IncludeSuspended: sel.IncludeSuspended,
	}
}

// collectOrdered pages through the filter and returns the matching card IDs
// in (due, id) order, which fixes each card's bucket before any write.
func (e *engineImpl) collectOrdered(ctx context.Context, filter store.CardFilter) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	cursor := ""
	for {
		page, err := e.cards.ListByFilter(ctx, filter, store.SortByDueAsc, cursor, collectPageSize)
		if err != nil {
			return nil, err
		}
		for _, card := range page.Cards {
			ids = append(ids, card.ID)
		}
		if page.NextCursor == "" {
			return ids, nil
		}
		cursor = page.NextCursor
	}
}

// applyTargets moves each matched card to its target due date. The transform
// is idempotent: a card already at its target is skipped, so re-listing a
// moved card during paging cannot double-apply.
func (e *engineImpl) applyTargets(
	ctx context.Context,
	filter store.CardFilter,
	target func(id uuid.UUID) (time.Time, bool),
) (*Result, error) {
	raw, err := e.cards.BulkWrite(ctx, filter, func(card *domain.ReviewCard) bool {
		due, ok := target(card.ID)
		if !ok || card.Due.Equal(due) {
			return false
		}
		card.Due = due
		return true
	})
	if err != nil {
		return nil, err
	}
	return fromBulkResult(raw), nil
}

// distribute assigns each ID, in order, to one of count daily buckets
// starting at start. Bucket sizes differ by at most one, with the earlier
// days taking the extra cards.
func distribute(ids []uuid.UUID, count int, start time.Time) map[uuid.UUID]time.Time {
	targets := make(map[uuid.UUID]time.Time, len(ids))
	if count <= 0 || len(ids) == 0 {
		return targets
	}

	sizes := bucketSizes(len(ids), count)
	i := 0
	for day, size := range sizes {
		due := start.AddDate(0, 0, day)
		for j := 0; j < size; j++ {
			targets[ids[i]] = due
			i++
		}
	}
	return targets
}

// bucketSizes splits n cards over count days as evenly as possible.
func bucketSizes(n, count int) []int {
	if count <= 0 {
		return nil
	}
	sizes := make([]int, count)
	base := n / count
	extra := n % count
	for i := range sizes {
		sizes[i] = base
		if i < extra {
			sizes[i]++
		}
	}
	return sizes
}

// fromBulkResult converts the store result into the engine's result type.
func fromBulkResult(raw *store.BulkWriteResult) *Result {
	return &Result{Matched: raw.Matched, Updated: raw.Updated, Failed: raw.Failed}
}
