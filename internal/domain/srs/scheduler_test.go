package srs_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medrevise/revise-api/internal/domain"
	"github.com/medrevise/revise-api/internal/domain/srs"
)

func newCard(t *testing.T) *domain.ReviewCard {
	t.Helper()
	card, err := domain.NewReviewCard(uuid.New(), domain.ContentTypeFlashcard, uuid.New())
	require.NoError(t, err)
	return card
}

// reviewCard returns a card already graduated into the review state, with a
// last review elapsedDays before now.
func reviewCard(t *testing.T, now time.Time, elapsedDays int) *domain.ReviewCard {
	t.Helper()
	card := newCard(t)
	last := now.AddDate(0, 0, -elapsedDays)
	card.State = domain.CardStateReview
	card.Stability = 10.0
	card.Difficulty = 5.0
	card.Reps = 3
	card.LastReview = &last
	return card
}

func TestApply_StateTransitions(t *testing.T) {
	t.Parallel()

	s := srs.NewDefaultScheduler()
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		from      domain.CardState
		grade     domain.Grade
		wantState domain.CardState
	}{
		{"new again stays learning", domain.CardStateNew, domain.GradeAgain, domain.CardStateLearning},
		{"new hard enters learning", domain.CardStateNew, domain.GradeHard, domain.CardStateLearning},
		{"new good fast-tracks to review", domain.CardStateNew, domain.GradeGood, domain.CardStateReview},
		{"new easy fast-tracks to review", domain.CardStateNew, domain.GradeEasy, domain.CardStateReview},
		{"learning again stays learning", domain.CardStateLearning, domain.GradeAgain, domain.CardStateLearning},
		{"learning hard stays learning", domain.CardStateLearning, domain.GradeHard, domain.CardStateLearning},
		{"learning good graduates", domain.CardStateLearning, domain.GradeGood, domain.CardStateReview},
		{"learning easy graduates", domain.CardStateLearning, domain.GradeEasy, domain.CardStateReview},
		{"review again lapses to relearning", domain.CardStateReview, domain.GradeAgain, domain.CardStateRelearning},
		{"review hard stays review", domain.CardStateReview, domain.GradeHard, domain.CardStateReview},
		{"review good stays review", domain.CardStateReview, domain.GradeGood, domain.CardStateReview},
		{"relearning again stays relearning", domain.CardStateRelearning, domain.GradeAgain, domain.CardStateRelearning},
		{"relearning hard stays relearning", domain.CardStateRelearning, domain.GradeHard, domain.CardStateRelearning},
		{"relearning good recovers to review", domain.CardStateRelearning, domain.GradeGood, domain.CardStateReview},
		{"relearning easy recovers to review", domain.CardStateRelearning, domain.GradeEasy, domain.CardStateReview},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			card := newCard(t)
			if tc.from != domain.CardStateNew {
				last := now.Add(-48 * time.Hour)
				card.State = tc.from
				card.Stability = 5.0
				card.Reps = 2
				card.LastReview = &last
			}

			next, err := s.Apply(card, tc.grade, now)
			require.NoError(t, err)
			assert.Equal(t, tc.wantState, next.State)
		})
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	s := srs.NewDefaultScheduler()
	now := time.Now().UTC()
	card := newCard(t)
	before := *card

	_, err := s.Apply(card, domain.GradeGood, now)
	require.NoError(t, err)
	assert.Equal(t, before, *card)
}

func TestApply_Lapses(t *testing.T) {
	t.Parallel()

	s := srs.NewDefaultScheduler()
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	t.Run("review again increments lapses", func(t *testing.T) {
		t.Parallel()

		card := reviewCard(t, now, 10)
		card.Lapses = 2

		next, err := s.Apply(card, domain.GradeAgain, now)
		require.NoError(t, err)
		assert.Equal(t, 3, next.Lapses)
	})

	t.Run("learning again increments lapses", func(t *testing.T) {
		t.Parallel()

		card := newCard(t)
		last := now.Add(-10 * time.Minute)
		card.State = domain.CardStateLearning
		card.Stability = 0.5
		card.Reps = 1
		card.LastReview = &last

		next, err := s.Apply(card, domain.GradeAgain, now)
		require.NoError(t, err)
		assert.Equal(t, 1, next.Lapses)
	})

	t.Run("relearning again does not increment", func(t *testing.T) {
		t.Parallel()

		card := reviewCard(t, now, 10)
		card.State = domain.CardStateRelearning
		card.Lapses = 1

		next, err := s.Apply(card, domain.GradeAgain, now)
		require.NoError(t, err)
		assert.Equal(t, 1, next.Lapses)
	})

	t.Run("passing grades never increment", func(t *testing.T) {
		t.Parallel()

		for _, g := range []domain.Grade{domain.GradeHard, domain.GradeGood, domain.GradeEasy} {
			card := reviewCard(t, now, 10)
			card.Lapses = 4

			next, err := s.Apply(card, g, now)
			require.NoError(t, err)
			assert.Equal(t, 4, next.Lapses, string(g))
		}
	})
}

func TestApply_Reps(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	t.Run("reps advance on every grade by default", func(t *testing.T) {
		t.Parallel()

		s := srs.NewDefaultScheduler()
		card := newCard(t)
		last := now.Add(-10 * time.Minute)
		card.State = domain.CardStateLearning
		card.Stability = 0.5
		card.Reps = 2
		card.LastReview = &last

		next, err := s.Apply(card, domain.GradeAgain, now)
		require.NoError(t, err)
		assert.Equal(t, 3, next.Reps)
	})

	t.Run("learning again resets reps when enabled", func(t *testing.T) {
		t.Parallel()

		params := srs.NewDefaultParams()
		params.LearningAgainResetsReps = true
		s, err := srs.NewScheduler(params)
		require.NoError(t, err)

		card := newCard(t)
		last := now.Add(-10 * time.Minute)
		card.State = domain.CardStateLearning
		card.Stability = 0.5
		card.Reps = 5
		card.LastReview = &last

		next, err := s.Apply(card, domain.GradeAgain, now)
		require.NoError(t, err)
		assert.Zero(t, next.Reps)

		// The reset is learning-specific: a review lapse still advances.
		review := reviewCard(t, now, 10)
		review.Reps = 5
		next, err = s.Apply(review, domain.GradeAgain, now)
		require.NoError(t, err)
		assert.Equal(t, 6, next.Reps)
	})
}

func TestApply_Intervals(t *testing.T) {
	t.Parallel()

	s := srs.NewDefaultScheduler()
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	t.Run("held cards come back after the learning step", func(t *testing.T) {
		t.Parallel()

		card := newCard(t)
		next, err := s.Apply(card, domain.GradeAgain, now)
		require.NoError(t, err)

		assert.Equal(t, now.Add(10*time.Minute), next.Due)
		assert.Zero(t, next.ScheduledDays)
	})

	t.Run("review intervals are whole days and ordered by grade", func(t *testing.T) {
		t.Parallel()

		hard, err := s.Apply(reviewCard(t, now, 10), domain.GradeHard, now)
		require.NoError(t, err)
		good, err := s.Apply(reviewCard(t, now, 10), domain.GradeGood, now)
		require.NoError(t, err)
		easy, err := s.Apply(reviewCard(t, now, 10), domain.GradeEasy, now)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, hard.ScheduledDays, 1)
		assert.LessOrEqual(t, hard.ScheduledDays, good.ScheduledDays)
		assert.LessOrEqual(t, good.ScheduledDays, easy.ScheduledDays)

		assert.Equal(t, now.AddDate(0, 0, good.ScheduledDays), good.Due)
	})

	t.Run("interval respects the configured cap", func(t *testing.T) {
		t.Parallel()

		params := srs.NewDefaultParams()
		params.MaximumIntervalDays = 3
		capped, err := srs.NewScheduler(params)
		require.NoError(t, err)

		card := reviewCard(t, now, 10)
		card.Stability = 5000

		next, err := capped.Apply(card, domain.GradeEasy, now)
		require.NoError(t, err)
		assert.Equal(t, 3, next.ScheduledDays)
	})
}

func TestApply_MemoryState(t *testing.T) {
	t.Parallel()

	s := srs.NewDefaultScheduler()
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	t.Run("first grade seeds stability and difficulty", func(t *testing.T) {
		t.Parallel()

		next, err := s.Apply(newCard(t), domain.GradeGood, now)
		require.NoError(t, err)

		assert.Greater(t, next.Stability, 0.0)
		assert.GreaterOrEqual(t, next.Difficulty, 1.0)
		assert.LessOrEqual(t, next.Difficulty, 10.0)
		require.NotNil(t, next.LastReview)
		assert.Equal(t, now, *next.LastReview)
		assert.Equal(t, 1, next.Reps)
	})

	t.Run("successful recall grows stability", func(t *testing.T) {
		t.Parallel()

		card := reviewCard(t, now, 10)
		next, err := s.Apply(card, domain.GradeGood, now)
		require.NoError(t, err)
		assert.Greater(t, next.Stability, card.Stability)
	})

	t.Run("lapse shrinks stability", func(t *testing.T) {
		t.Parallel()

		card := reviewCard(t, now, 10)
		next, err := s.Apply(card, domain.GradeAgain, now)
		require.NoError(t, err)
		assert.Less(t, next.Stability, card.Stability)
	})

	t.Run("elapsed days recorded from last review", func(t *testing.T) {
		t.Parallel()

		card := reviewCard(t, now, 7)
		next, err := s.Apply(card, domain.GradeGood, now)
		require.NoError(t, err)
		assert.Equal(t, 7, next.ElapsedDays)
	})
}

func TestApply_Errors(t *testing.T) {
	t.Parallel()

	s := srs.NewDefaultScheduler()
	now := time.Now().UTC()

	_, err := s.Apply(nil, domain.GradeGood, now)
	assert.ErrorIs(t, err, srs.ErrNilCard)

	_, err = s.Apply(newCard(t), domain.Grade("stellar"), now)
	assert.ErrorIs(t, err, srs.ErrInvalidGrade)
}

func TestPreview(t *testing.T) {
	t.Parallel()

	s := srs.NewDefaultScheduler()
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	card := reviewCard(t, now, 10)
	before := *card

	preview, err := s.Preview(card, now)
	require.NoError(t, err)
	require.Len(t, preview, 4)

	// The preview matches what Apply would do for each grade.
	for _, g := range []domain.Grade{
		domain.GradeAgain, domain.GradeHard, domain.GradeGood, domain.GradeEasy,
	} {
		applied, err := s.Apply(card, g, now)
		require.NoError(t, err)
		require.NotNil(t, preview[g], string(g))
		assert.Equal(t, applied.State, preview[g].State, string(g))
		assert.Equal(t, applied.Due, preview[g].Due, string(g))
		assert.Equal(t, applied.Reps, preview[g].Reps, string(g))
	}

	// Previewing records nothing on the card itself.
	assert.Equal(t, before, *card)
}

func TestParams_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(p *srs.Params)
		ok     bool
	}{
		{"defaults", func(*srs.Params) {}, true},
		{"zero retention", func(p *srs.Params) { p.DesiredRetention = 0 }, false},
		{"retention above one", func(p *srs.Params) { p.DesiredRetention = 1.5 }, false},
		{"zero max interval", func(p *srs.Params) { p.MaximumIntervalDays = 0 }, false},
		{"zero learning step", func(p *srs.Params) { p.LearningStep = 0 }, false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			p := srs.NewDefaultParams()
			tc.mutate(p)
			err := p.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
