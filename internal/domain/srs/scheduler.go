package srs

import (
	"errors"
	"fmt"
	"time"

	"github.com/medrevise/revise-api/internal/domain"
)

// Common errors.
var (
	ErrNilCard      = errors.New("review card cannot be nil")
	ErrInvalidGrade = errors.New("invalid grade")
)

// Scheduler is the pluggable memory model. Apply is a pure function from
// (card, grade, now) to the card's next scheduling state; implementations
// must follow the four-state transition table and never mutate the input.
type Scheduler interface {
	// Apply computes the card's next state and due date for the given grade.
	// The returned card is a new value; the input is left untouched.
	Apply(card *domain.ReviewCard, grade domain.Grade, now time.Time) (*domain.ReviewCard, error)

	// Preview returns the would-be result of Apply for every grade without
	// recording anything. Study UIs use it to label the grade buttons.
	Preview(card *domain.ReviewCard, now time.Time) (map[domain.Grade]*domain.ReviewCard, error)
}

// defaultScheduler is the standard FSRS-style implementation.
type defaultScheduler struct {
	params *Params
	algo   algo
}

// NewDefaultScheduler creates a Scheduler with default parameters.
func NewDefaultScheduler() Scheduler {
	s, err := NewScheduler(NewDefaultParams())
	if err != nil {
		// Defaults are validated by tests; this cannot happen at runtime.
		// ALLOW-PANIC: construction from known-good defaults
		panic(err)
	}
	return s
}

// NewScheduler creates a Scheduler with the given parameters.
func NewScheduler(params *Params) (Scheduler, error) {
	if params == nil {
		params = NewDefaultParams()
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scheduler params: %w", err)
	}
	return &defaultScheduler{params: params, algo: newAlgo(params.Weights)}, nil
}

// Apply implements Scheduler.Apply.
func (s *defaultScheduler) Apply(
	card *domain.ReviewCard,
	grade domain.Grade,
	now time.Time,
) (*domain.ReviewCard, error) {
	if card == nil {
		return nil, ErrNilCard
	}
	if !grade.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGrade, grade)
	}

	next := *card

	elapsedDays := 0.0
	if card.LastReview != nil {
		elapsedDays = now.Sub(*card.LastReview).Hours() / 24.0
		if elapsedDays < 0 {
			elapsedDays = 0
		}
	}

	s.updateMemory(&next, grade, elapsedDays)

	next.State = nextState(card.State, grade)

	// Lapse bookkeeping: forgetting a learning or review card counts as a
	// lapse; retrying an already-relearning card does not.
	if grade == domain.GradeAgain &&
		(card.State == domain.CardStateLearning || card.State == domain.CardStateReview) {
		next.Lapses++
	}

	// Reps never decrease. The learning-again policy optionally resets the
	// counter instead of pausing it.
	if grade == domain.GradeAgain && card.State == domain.CardStateLearning &&
		s.params.LearningAgainResetsReps {
		next.Reps = 0
	} else {
		next.Reps++
	}

	interval := s.interval(&next)
	next.Due = now.Add(interval)
	if interval >= 24*time.Hour {
		next.ScheduledDays = int(interval.Hours() / 24)
	} else {
		next.ScheduledDays = 0
	}
	next.ElapsedDays = int(elapsedDays)

	lastReview := now
	next.LastReview = &lastReview
	next.UpdatedAt = now

	return &next, nil
}

// Preview implements Scheduler.Preview.
func (s *defaultScheduler) Preview(
	card *domain.ReviewCard,
	now time.Time,
) (map[domain.Grade]*domain.ReviewCard, error) {
	if card == nil {
		return nil, ErrNilCard
	}

	out := make(map[domain.Grade]*domain.ReviewCard, 4)
	for _, g := range []domain.Grade{
		domain.GradeAgain, domain.GradeHard, domain.GradeGood, domain.GradeEasy,
	} {
		next, err := s.Apply(card, g, now)
		if err != nil {
			return nil, err
		}
		out[g] = next
	}
	return out, nil
}

// nextState is the four-state transition table. Forgetting a review card
// always routes through relearning, never straight back to learning.
func nextState(current domain.CardState, grade domain.Grade) domain.CardState {
	switch current {
	case domain.CardStateNew:
		// Good and easy fast-track a new card into review.
		if grade == domain.GradeGood || grade == domain.GradeEasy {
			return domain.CardStateReview
		}
		return domain.CardStateLearning

	case domain.CardStateLearning:
		// A passing grade meets the learning-step threshold and graduates.
		if grade == domain.GradeGood || grade == domain.GradeEasy {
			return domain.CardStateReview
		}
		return domain.CardStateLearning

	case domain.CardStateReview:
		if grade == domain.GradeAgain {
			return domain.CardStateRelearning
		}
		return domain.CardStateReview

	case domain.CardStateRelearning:
		if grade == domain.GradeGood || grade == domain.GradeEasy {
			return domain.CardStateReview
		}
		return domain.CardStateRelearning

	default:
		return current
	}
}

// updateMemory updates stability and difficulty in place.
func (s *defaultScheduler) updateMemory(card *domain.ReviewCard, grade domain.Grade, elapsedDays float64) {
	if card.State == domain.CardStateNew || card.Stability <= 0 {
		card.Stability = s.algo.initStability(grade)
		card.Difficulty = s.algo.initDifficulty(grade, true)
		return
	}

	if elapsedDays < 1 {
		// Same-day review: not enough forgetting to apply the long-term
		// formulas.
		card.Stability = s.algo.shortTermStability(card.Stability, grade)
	} else {
		retr := s.algo.retrievability(elapsedDays, card.Stability)
		card.Stability = s.algo.nextStability(card.Difficulty, card.Stability, retr, grade)
	}
	card.Difficulty = s.algo.nextDifficulty(card.Difficulty, grade)
}

// interval returns the delay until the card is next due, based on the state
// it just transitioned into. Cards held in learning or relearning come back
// after the intra-day learning step; review cards get a whole-day interval
// from the stability formula, always at least one day.
func (s *defaultScheduler) interval(card *domain.ReviewCard) time.Duration {
	if card.State != domain.CardStateReview {
		return s.params.LearningStep
	}

	days := s.algo.nextIntervalDays(card.Stability, s.params.DesiredRetention, s.params.MaximumIntervalDays)
	return time.Duration(days) * 24 * time.Hour
}
