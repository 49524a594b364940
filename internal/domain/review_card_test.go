package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medrevise/revise-api/internal/domain"
)

func TestNewReviewCard(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	contentID := uuid.New()

	card, err := domain.NewReviewCard(userID, domain.ContentTypeFlashcard, contentID)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, card.ID)
	assert.Equal(t, userID, card.UserID)
	assert.Equal(t, domain.ContentTypeFlashcard, card.ContentType)
	assert.Equal(t, contentID, card.ContentID)
	assert.Equal(t, domain.CardStateNew, card.State)
	assert.Equal(t, domain.DefaultDifficulty, card.Difficulty)
	assert.Zero(t, card.Stability)
	assert.Zero(t, card.Reps)
	assert.Zero(t, card.Lapses)
	assert.Nil(t, card.LastReview)
	assert.False(t, card.Suspended)

	// New cards are due immediately.
	assert.True(t, card.IsDue(time.Now().UTC().Add(time.Second)))
}

func TestNewReviewCard_Invalid(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	contentID := uuid.New()

	tests := []struct {
		name        string
		userID      uuid.UUID
		contentType domain.ContentType
		contentID   uuid.UUID
		wantErr     error
	}{
		{
			name:        "nil user ID",
			userID:      uuid.Nil,
			contentType: domain.ContentTypeQuestion,
			contentID:   contentID,
			wantErr:     domain.ErrCardUserIDEmpty,
		},
		{
			name:        "nil content ID",
			userID:      userID,
			contentType: domain.ContentTypeQuestion,
			contentID:   uuid.Nil,
			wantErr:     domain.ErrCardContentIDEmpty,
		},
		{
			name:        "unknown content type",
			userID:      userID,
			contentType: domain.ContentType("podcast"),
			contentID:   contentID,
			wantErr:     domain.ErrInvalidContentType,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			card, err := domain.NewReviewCard(tc.userID, tc.contentType, tc.contentID)
			assert.Nil(t, card)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestReviewCard_Validate_NewStateInvariant(t *testing.T) {
	t.Parallel()

	card, err := domain.NewReviewCard(uuid.New(), domain.ContentTypeQuestion, uuid.New())
	require.NoError(t, err)

	card.Reps = 3
	assert.ErrorIs(t, card.Validate(), domain.ErrNewCardHasHistory)

	card.Reps = 0
	reviewed := time.Now().UTC()
	card.LastReview = &reviewed
	assert.ErrorIs(t, card.Validate(), domain.ErrNewCardHasHistory)

	// The same history is fine once the card leaves the new state.
	card.State = domain.CardStateLearning
	card.Reps = 1
	assert.NoError(t, card.Validate())
}

func TestReviewCard_IsDue(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		due  time.Time
		want bool
	}{
		{name: "past due", due: now.Add(-time.Hour), want: true},
		{name: "due exactly now", due: now, want: true},
		{name: "due later", due: now.Add(time.Minute), want: false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			card := &domain.ReviewCard{Due: tc.due}
			assert.Equal(t, tc.want, card.IsDue(now))
		})
	}
}

func TestContentType_IsValid(t *testing.T) {
	t.Parallel()

	for _, ct := range domain.AllContentTypes {
		assert.True(t, ct.IsValid(), string(ct))
	}
	assert.False(t, domain.ContentType("").IsValid())
	assert.False(t, domain.ContentType("video").IsValid())
}

func TestGrade_IsValid(t *testing.T) {
	t.Parallel()

	for _, g := range []domain.Grade{
		domain.GradeAgain, domain.GradeHard, domain.GradeGood, domain.GradeEasy,
	} {
		assert.True(t, g.IsValid(), string(g))
	}
	assert.False(t, domain.Grade("perfect").IsValid())
	assert.False(t, domain.Grade("").IsValid())
}
