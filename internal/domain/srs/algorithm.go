package srs

import (
	"math"

	"github.com/medrevise/revise-api/internal/domain"
)

// gradeOrdinal maps a grade onto the 1..4 scale the weight formulas use.
func gradeOrdinal(g domain.Grade) float64 {
	switch g {
	case domain.GradeAgain:
		return 1
	case domain.GradeHard:
		return 2
	case domain.GradeGood:
		return 3
	case domain.GradeEasy:
		return 4
	default:
		return 0
	}
}

// algo holds constants precomputed from the model weights.
type algo struct {
	w      [WeightCount]float64
	decay  float64 // -w[20]
	factor float64 // 0.9^(1/decay) - 1
}

func newAlgo(w [WeightCount]float64) algo {
	decay := -w[20]
	return algo{
		w:      w,
		decay:  decay,
		factor: math.Pow(0.9, 1.0/decay) - 1.0,
	}
}

// retrievability computes R(t, S), the probability of recall after
// elapsedDays with the given stability.
func (a *algo) retrievability(elapsedDays, stability float64) float64 {
	return math.Pow(1+a.factor*elapsedDays/stability, a.decay)
}

// initStability returns the initial stability for the first grade of a card.
func (a *algo) initStability(g domain.Grade) float64 {
	return clampStability(a.w[int(gradeOrdinal(g))-1])
}

// initDifficulty returns the initial difficulty for the first grade of a card.
// The result is clamped to [1, 10] unless clamp is false (the unclamped value
// is the mean-reversion target in nextDifficulty).
func (a *algo) initDifficulty(g domain.Grade, clamp bool) float64 {
	d := a.w[4] - math.Exp(a.w[5]*(gradeOrdinal(g)-1)) + 1
	if clamp {
		return clampDifficulty(d)
	}
	return d
}

// nextDifficulty applies linear damping and mean reversion toward the
// initial easy difficulty.
func (a *algo) nextDifficulty(difficulty float64, g domain.Grade) float64 {
	deltaD := -a.w[6] * (gradeOrdinal(g) - 3)
	damped := difficulty + (10-difficulty)*deltaD/9
	target := a.initDifficulty(domain.GradeEasy, false)
	return clampDifficulty(a.w[7]*target + (1-a.w[7])*damped)
}

// nextStability dispatches to the recall or forget update.
func (a *algo) nextStability(difficulty, stability, retr float64, g domain.Grade) float64 {
	if g == domain.GradeAgain {
		return a.forgetStability(difficulty, stability, retr)
	}
	return a.recallStability(difficulty, stability, retr, g)
}

// recallStability computes stability after a successful recall.
func (a *algo) recallStability(difficulty, stability, retr float64, g domain.Grade) float64 {
	hardPenalty := 1.0
	if g == domain.GradeHard {
		hardPenalty = a.w[15]
	}
	easyBonus := 1.0
	if g == domain.GradeEasy {
		easyBonus = a.w[16]
	}
	return clampStability(stability * (1 + math.Exp(a.w[8])*
		(11-difficulty)*
		math.Pow(stability, -a.w[9])*
		(math.Exp((1-retr)*a.w[10])-1)*
		hardPenalty*easyBonus))
}

// forgetStability computes stability after a lapse. The short-term bound
// keeps a same-day lapse from inflating stability.
func (a *algo) forgetStability(difficulty, stability, retr float64) float64 {
	long := a.w[11] *
		math.Pow(difficulty, -a.w[12]) *
		(math.Pow(stability+1, a.w[13]) - 1) *
		math.Exp((1-retr)*a.w[14])
	short := stability / math.Exp(a.w[17]*a.w[18])
	return clampStability(math.Min(long, short))
}

// shortTermStability computes the stability update for a same-day review,
// where no meaningful forgetting has happened yet.
func (a *algo) shortTermStability(stability float64, g domain.Grade) float64 {
	inc := math.Exp(a.w[17]*(gradeOrdinal(g)-3+a.w[18])) * math.Pow(stability, -a.w[19])
	if g == domain.GradeGood || g == domain.GradeEasy {
		inc = math.Max(inc, 1.0)
	}
	return clampStability(stability * inc)
}

// nextIntervalDays converts stability into a whole-day interval targeting
// the desired retention, clamped to [1, maxDays].
func (a *algo) nextIntervalDays(stability, desiredRetention float64, maxDays int) int {
	ivl := stability / a.factor * (math.Pow(desiredRetention, 1.0/a.decay) - 1)
	days := int(math.Round(ivl))
	if days < 1 {
		days = 1
	}
	if days > maxDays {
		days = maxDays
	}
	return days
}

func clampStability(s float64) float64 {
	return math.Max(s, 0.001)
}

func clampDifficulty(d float64) float64 {
	return math.Min(math.Max(d, 1.0), 10.0)
}
