package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ContentType identifies which kind of studied item a ReviewCard schedules.
// It is a closed set: scheduling logic never branches on it, only storage
// and display enrichment do.
type ContentType string

// Supported content types.
const (
	ContentTypeFlashcard     ContentType = "flashcard"
	ContentTypeQuestion      ContentType = "question"
	ContentTypeErrorNotebook ContentType = "error_notebook"
)

// AllContentTypes lists every valid content type, in a stable order.
var AllContentTypes = []ContentType{
	ContentTypeFlashcard,
	ContentTypeQuestion,
	ContentTypeErrorNotebook,
}

// IsValid reports whether the content type is one of the supported values.
func (t ContentType) IsValid() bool {
	switch t {
	case ContentTypeFlashcard, ContentTypeQuestion, ContentTypeErrorNotebook:
		return true
	default:
		return false
	}
}

// CardState describes the memory-model phase of a ReviewCard.
type CardState string

// Possible card states.
const (
	CardStateNew        CardState = "new"
	CardStateLearning   CardState = "learning"
	CardStateReview     CardState = "review"
	CardStateRelearning CardState = "relearning"
)

// IsValid reports whether the state is one of the supported values.
func (s CardState) IsValid() bool {
	switch s {
	case CardStateNew, CardStateLearning, CardStateReview, CardStateRelearning:
		return true
	default:
		return false
	}
}

// Grade represents the recall quality a user reports for a review.
type Grade string

// Possible grade values, ordinal from worst to best.
const (
	GradeAgain Grade = "again" // complete failure to recall
	GradeHard  Grade = "hard"
	GradeGood  Grade = "good"
	GradeEasy  Grade = "easy"
)

// IsValid reports whether the grade is one of the supported values.
func (g Grade) IsValid() bool {
	switch g {
	case GradeAgain, GradeHard, GradeGood, GradeEasy:
		return true
	default:
		return false
	}
}

// ReviewCard-specific validation errors.
var (
	// ErrCardIDEmpty is returned when a review card ID is empty or nil.
	ErrCardIDEmpty = errors.New("review card ID cannot be empty")

	// ErrCardUserIDEmpty is returned when a review card's user ID is empty or nil.
	ErrCardUserIDEmpty = errors.New("review card user ID cannot be empty")

	// ErrCardContentIDEmpty is returned when a review card's content ID is empty.
	ErrCardContentIDEmpty = errors.New("review card content ID cannot be empty")

	// ErrInvalidContentType is returned when a content type is not a supported value.
	ErrInvalidContentType = errors.New("invalid content type")

	// ErrInvalidCardState is returned when a card state is not a supported value.
	ErrInvalidCardState = errors.New("invalid card state")

	// ErrInvalidGrade is returned when a grade is not a supported value.
	ErrInvalidGrade = errors.New("invalid grade")

	// ErrNewCardHasHistory is returned when a card in the new state carries
	// review history, which violates the state invariant.
	ErrNewCardHasHistory = errors.New("new card cannot have reps or a last review")
)

// DefaultDifficulty is the memory-model midpoint assigned to cards that have
// never been graded.
const DefaultDifficulty = 5.0

// ReviewCard is the per-user scheduling record for one studied item.
// Exactly one ReviewCard exists per (UserID, ContentType, ContentID); the
// underlying content lives in an external content service and is never
// stored here.
type ReviewCard struct {
	ID          uuid.UUID   `json:"id"`
	UserID      uuid.UUID   `json:"user_id"`
	ContentType ContentType `json:"content_type"`
	ContentID   uuid.UUID   `json:"content_id"`

	State         CardState  `json:"state"`
	Due           time.Time  `json:"due"`
	Stability     float64    `json:"stability"`
	Difficulty    float64    `json:"difficulty"`
	ElapsedDays   int        `json:"elapsed_days"`
	ScheduledDays int        `json:"scheduled_days"`
	Reps          int        `json:"reps"`
	Lapses        int        `json:"lapses"`
	LastReview    *time.Time `json:"last_review"`

	// Suspended removes the card from every aggregator pool without
	// deleting its scheduling history.
	Suspended bool `json:"suspended"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewReviewCard creates a scheduling record for a studied item entering the
// spaced-repetition system. The card starts in the new state, due immediately.
// Returns an error if validation fails.
func NewReviewCard(userID uuid.UUID, contentType ContentType, contentID uuid.UUID) (*ReviewCard, error) {
	now := time.Now().UTC()
	card := &ReviewCard{
		ID:          uuid.New(),
		UserID:      userID,
		ContentType: contentType,
		ContentID:   contentID,
		State:       CardStateNew,
		Due:         now,
		Difficulty:  DefaultDifficulty,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := card.Validate(); err != nil {
		return nil, err
	}

	return card, nil
}

// Validate checks the ReviewCard against its structural invariants.
func (c *ReviewCard) Validate() error {
	if c.ID == uuid.Nil {
		return ErrCardIDEmpty
	}

	if c.UserID == uuid.Nil {
		return ErrCardUserIDEmpty
	}

	if c.ContentID == uuid.Nil {
		return ErrCardContentIDEmpty
	}

	if !c.ContentType.IsValid() {
		return ErrInvalidContentType
	}

	if !c.State.IsValid() {
		return ErrInvalidCardState
	}

	// state = new implies reps = 0 and no recorded review.
	if c.State == CardStateNew && (c.Reps != 0 || c.LastReview != nil) {
		return ErrNewCardHasHistory
	}

	return nil
}

// IsDue reports whether the card should be presented at the given instant.
// New cards are due as soon as they are scheduled.
func (c *ReviewCard) IsDue(now time.Time) bool {
	return !c.Due.After(now)
}
