package bulkops

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medrevise/revise-api/internal/domain"
	"github.com/medrevise/revise-api/internal/service/review"
	"github.com/medrevise/revise-api/internal/store/storetest"
)

type fixture struct {
	engine *engineImpl
	cards  *storetest.CardStore
	caps   *review.Caps
	now    time.Time
	userID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cards := storetest.NewCardStore()
	caps := review.NewCaps(50, 200)
	eng := NewEngine(cards, caps, 200, nil)

	impl := eng.(*engineImpl)
	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	impl.now = func() time.Time { return now }

	return &fixture{engine: impl, cards: cards, caps: caps, now: now, userID: uuid.New()}
}

func (f *fixture) seedCards(t *testing.T, n int, due time.Time) []uuid.UUID {
	t.Helper()

	ids := make([]uuid.UUID, 0, n)
	for i := 0; i < n; i++ {
		card, err := domain.NewReviewCard(f.userID, domain.ContentTypeFlashcard, uuid.New())
		require.NoError(t, err)
		card.Due = due.Add(time.Duration(i) * time.Minute)
		f.cards.Seed(card)
		ids = append(ids, card.ID)
	}
	return ids
}

func TestReschedule_Validation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	due := f.now.AddDate(0, 0, 3)

	_, err := f.engine.Reschedule(ctx, f.userID, RescheduleRequest{})
	assert.ErrorIs(t, err, ErrNoRescheduleTarget)

	_, err = f.engine.Reschedule(ctx, f.userID, RescheduleRequest{NewDue: &due, DistributeDays: 5})
	assert.ErrorIs(t, err, ErrAmbiguousRescheduleTarget)

	_, err = f.engine.Reschedule(ctx, f.userID, RescheduleRequest{DistributeDays: -2})
	assert.ErrorIs(t, err, ErrInvalidDistributeDays)
}

func TestReschedule_FixedDate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ids := f.seedCards(t, 3, f.now.Add(-time.Hour))
	newDue := f.now.AddDate(0, 0, 7)

	result, err := f.engine.Reschedule(context.Background(), f.userID, RescheduleRequest{
		Selection: Selection{IDs: ids},
		NewDue:    &newDue,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Updated)
	assert.Zero(t, result.Failed)
	for _, id := range ids {
		card := f.cards.Snapshot(id)
		assert.True(t, card.Due.Equal(newDue))
	}
}

func TestReschedule_Distribute(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ids := f.seedCards(t, 7, f.now.Add(-24*time.Hour))

	result, err := f.engine.Reschedule(context.Background(), f.userID, RescheduleRequest{
		Selection:      Selection{IDs: ids},
		DistributeDays: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, 7, result.Updated)

	// Distribution starts tomorrow and spans exactly the requested days,
	// with bucket sizes differing by at most one and earlier days fuller.
	perDay := map[time.Time]int{}
	for _, id := range ids {
		perDay[f.cards.Snapshot(id).Due]++
	}

	start := f.now.AddDate(0, 0, 1)
	assert.Equal(t, 3, perDay[start])
	assert.Equal(t, 2, perDay[start.AddDate(0, 0, 1)])
	assert.Equal(t, 2, perDay[start.AddDate(0, 0, 2)])
}

func TestReschedule_DistributePreservesDueOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	// Seed in reverse so insertion order differs from due order.
	late, err := domain.NewReviewCard(f.userID, domain.ContentTypeQuestion, uuid.New())
	require.NoError(t, err)
	late.Due = f.now.Add(-time.Hour)
	early, err := domain.NewReviewCard(f.userID, domain.ContentTypeQuestion, uuid.New())
	require.NoError(t, err)
	early.Due = f.now.Add(-72 * time.Hour)
	f.cards.Seed(late, early)

	_, err = f.engine.Reschedule(context.Background(), f.userID, RescheduleRequest{
		Selection:      Selection{IDs: []uuid.UUID{late.ID, early.ID}},
		DistributeDays: 2,
	})
	require.NoError(t, err)

	// The most overdue card lands on the earliest day.
	assert.True(t, f.cards.Snapshot(early.ID).Due.Before(f.cards.Snapshot(late.ID).Due))
}

func TestReschedule_MatchedCountsDistinctCards(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ids := f.seedCards(t, 60, f.now.Add(-time.Hour))
	newDue := f.now.AddDate(0, 0, 3)

	result, err := f.engine.Reschedule(context.Background(), f.userID, RescheduleRequest{
		Selection: Selection{IDs: ids},
		NewDue:    &newDue,
	})
	require.NoError(t, err)

	// Moved cards reappear in pages after the keyset cursor once their due
	// jumps forward; they must not inflate the counts.
	assert.Equal(t, 60, result.Matched)
	assert.Equal(t, 60, result.Updated)
	assert.Zero(t, result.Failed)
}

func TestResetProgress(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	reviewed := f.now.AddDate(0, 0, -2)
	card, err := domain.NewReviewCard(f.userID, domain.ContentTypeFlashcard, uuid.New())
	require.NoError(t, err)
	card.State = domain.CardStateReview
	card.Due = f.now.AddDate(0, 0, 12)
	card.Stability = 22.5
	card.Difficulty = 6.3
	card.Reps = 9
	card.Lapses = 2
	card.LastReview = &reviewed

	untouched, err := domain.NewReviewCard(f.userID, domain.ContentTypeFlashcard, uuid.New())
	require.NoError(t, err)
	f.cards.Seed(card, untouched)

	result, err := f.engine.ResetProgress(context.Background(), f.userID, Selection{})
	require.NoError(t, err)

	// The pristine new card is matched but not rewritten.
	assert.Equal(t, 2, result.Matched)
	assert.Equal(t, 1, result.Updated)

	got := f.cards.Snapshot(card.ID)
	assert.Equal(t, domain.CardStateNew, got.State)
	assert.True(t, got.Due.Equal(f.now))
	assert.Zero(t, got.Stability)
	assert.Equal(t, domain.DefaultDifficulty, got.Difficulty)
	assert.Zero(t, got.Reps)
	assert.Zero(t, got.Lapses)
	assert.Nil(t, got.LastReview)
}

func TestSetSuspended_RoundTrip(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ids := f.seedCards(t, 2, f.now)
	ctx := context.Background()

	result, err := f.engine.SetSuspended(ctx, f.userID, Selection{IDs: ids}, true)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Updated)
	for _, id := range ids {
		assert.True(t, f.cards.Snapshot(id).Suspended)
	}

	// Suspending again is a no-op; the cards still match.
	result, err = f.engine.SetSuspended(ctx, f.userID, Selection{IDs: ids}, true)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Matched)
	assert.Zero(t, result.Updated)

	// Restoring sees the suspended rows and flips them back.
	result, err = f.engine.SetSuspended(ctx, f.userID, Selection{IDs: ids}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Updated)
	for _, id := range ids {
		assert.False(t, f.cards.Snapshot(id).Suspended)
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ids := f.seedCards(t, 3, f.now)

	deleted, err := f.engine.Delete(context.Background(), f.userID, DeleteRequest{
		Selection: Selection{IDs: ids[:2]},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	assert.Equal(t, 1, f.cards.Len())

	// Re-deleting is idempotent.
	deleted, err = f.engine.Delete(context.Background(), f.userID, DeleteRequest{
		Selection: Selection{IDs: ids[:2]},
	})
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestDelete_RequiresSelection(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedCards(t, 2, f.now)

	_, err := f.engine.Delete(context.Background(), f.userID, DeleteRequest{})
	assert.ErrorIs(t, err, ErrEmptyDeleteSelection)
	assert.Equal(t, 2, f.cards.Len())
}

func TestDelete_AllByContentType(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedCards(t, 3, f.now)

	suspended, err := domain.NewReviewCard(f.userID, domain.ContentTypeFlashcard, uuid.New())
	require.NoError(t, err)
	suspended.Suspended = true
	question, err := domain.NewReviewCard(f.userID, domain.ContentTypeQuestion, uuid.New())
	require.NoError(t, err)
	f.cards.Seed(suspended, question)

	// delete_all ignores the id list; the field filters pick the cards,
	// and suspended rows go too.
	deleted, err := f.engine.Delete(context.Background(), f.userID, DeleteRequest{
		Selection: Selection{
			IDs:          []uuid.UUID{question.ID},
			ContentTypes: []domain.ContentType{domain.ContentTypeFlashcard},
		},
		DeleteAll: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, deleted)
	assert.NotNil(t, f.cards.Snapshot(question.ID))
	assert.Nil(t, f.cards.Snapshot(suspended.ID))
}

func TestActivateCramming(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ids := f.seedCards(t, 10, f.now.Add(-48*time.Hour))

	// Future cards compress into the window along with the backlog.
	future, err := domain.NewReviewCard(f.userID, domain.ContentTypeQuestion, uuid.New())
	require.NoError(t, err)
	future.Due = f.now.AddDate(0, 0, 20)
	f.cards.Seed(future)

	examDate := f.now.AddDate(0, 0, 4)
	plan, err := f.engine.ActivateCramming(context.Background(), f.userID, examDate)
	require.NoError(t, err)

	assert.Equal(t, 4, plan.Days)
	assert.Equal(t, []int{3, 3, 3, 2}, plan.CardsPerDay)
	assert.Equal(t, 200, plan.EffectiveCap)
	assert.Equal(t, 11, plan.Result.Updated)
	assert.True(t, plan.CapUntil.Equal(f.now.AddDate(0, 0, 4)))

	// The cap is in force for the window.
	assert.Equal(t, 200, f.caps.Effective(f.userID, f.now))

	// Every card lands inside [now, now+days); the future card, due last,
	// takes the final day.
	for _, id := range append(ids, future.ID) {
		due := f.cards.Snapshot(id).Due
		assert.False(t, due.Before(f.now))
		assert.True(t, due.Before(f.now.AddDate(0, 0, 4)))
	}
	assert.True(t, f.cards.Snapshot(future.ID).Due.Equal(f.now.AddDate(0, 0, 3)))
}

func TestActivateCramming_CoversPendingAndFuture(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedCards(t, 50, f.now.Add(-24*time.Hour))
	f.seedCards(t, 100, f.now.AddDate(0, 0, 30))

	plan, err := f.engine.ActivateCramming(context.Background(), f.userID, f.now.AddDate(0, 0, 10))
	require.NoError(t, err)

	assert.Equal(t, 10, plan.Days)
	assert.Equal(t, 150, plan.Result.Matched)
	assert.Equal(t, 150, plan.Result.Updated)
	for _, n := range plan.CardsPerDay {
		assert.Equal(t, 15, n)
	}
}

func TestActivateCramming_DayBounds(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.ActivateCramming(ctx, f.userID, f.now.Add(-time.Hour))
	assert.ErrorIs(t, err, ErrExamDateInPast)

	// An exam within 24 hours still gets one day.
	plan, err := f.engine.ActivateCramming(ctx, f.userID, f.now.Add(6*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, plan.Days)

	// A far-off exam clamps to the maximum window.
	plan, err = f.engine.ActivateCramming(ctx, f.userID, f.now.AddDate(0, 0, 60))
	require.NoError(t, err)
	assert.Equal(t, 15, plan.Days)
}

func TestDeactivateCramming(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	f.caps.ActivateCramming(f.userID, f.now.AddDate(0, 0, 5))
	require.Equal(t, 200, f.caps.Effective(f.userID, f.now))

	require.NoError(t, f.engine.DeactivateCramming(context.Background(), f.userID))
	assert.Equal(t, 50, f.caps.Effective(f.userID, f.now))
}

func TestDistribute_Evenness(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		n     int
		count int
	}{
		{"exact split", 12, 4},
		{"remainder to early days", 13, 5},
		{"fewer cards than days", 2, 7},
		{"single day", 9, 1},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ids := make([]uuid.UUID, tc.n)
			for i := range ids {
				ids[i] = uuid.New()
			}

			targets := distribute(ids, tc.count, start)
			require.Len(t, targets, tc.n)

			perDay := make([]int, tc.count)
			for _, due := range targets {
				day := int(due.Sub(start).Hours() / 24)
				require.GreaterOrEqual(t, day, 0)
				require.Less(t, day, tc.count)
				perDay[day]++
			}

			min, max := perDay[0], perDay[0]
			for _, n := range perDay {
				if n < min {
					min = n
				}
				if n > max {
					max = n
				}
			}
			assert.LessOrEqual(t, max-min, 1)

			// Earlier days take the extras.
			for i := 1; i < tc.count; i++ {
				assert.GreaterOrEqual(t, perDay[i-1], perDay[i])
			}
		})
	}
}

func TestBucketSizes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []int{3, 3, 2, 2}, bucketSizes(10, 4))
	assert.Equal(t, []int{1, 1, 0}, bucketSizes(2, 3))
	assert.Equal(t, []int{5}, bucketSizes(5, 1))
	assert.Nil(t, bucketSizes(5, 0))
}
