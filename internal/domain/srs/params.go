// Package srs implements the spaced-repetition memory model behind a
// pluggable Scheduler interface. The default implementation is an FSRS-style
// stability/difficulty model; the aggregator and bulk engine never depend on
// the concrete formulas, only on the interface.
package srs

import (
	"fmt"
	"math"
	"time"
)

// WeightCount is the number of model weights the default scheduler expects.
const WeightCount = 21

// DefaultWeights are the published FSRS v6 defaults. They are a reasonable
// starting point for users without enough review history to optimize against.
var DefaultWeights = [WeightCount]float64{
	0.2172, 1.1771, 3.2602, 16.1507, 7.0114, 0.57, 2.0966, 0.0069, 1.5261,
	0.112, 1.0178, 1.849, 0.1133, 0.3127, 2.2934, 0.2191, 3.0004, 0.7536,
	0.3332, 0.1437, 0.2,
}

// Params defines all configurable parameters for the default scheduler.
type Params struct {
	// Weights are the model weights driving stability/difficulty updates.
	Weights [WeightCount]float64

	// DesiredRetention is the recall probability the scheduler targets
	// when converting stability into an interval. Range (0, 1].
	DesiredRetention float64

	// MaximumIntervalDays caps the scheduled interval.
	MaximumIntervalDays int

	// LearningStep is the intra-day delay applied when a card stays in the
	// learning or relearning state (again/hard before graduation).
	LearningStep time.Duration

	// LearningAgainResetsReps controls the reps counter when "again" is
	// graded on a learning card: true resets reps to zero, false merely
	// pauses advancement. The source behavior was ambiguous, so this is a
	// policy knob rather than a constant.
	LearningAgainResetsReps bool
}

// NewDefaultParams returns Params with the published default weights,
// 90% desired retention, a 100-year interval cap, and a 10 minute
// learning step.
func NewDefaultParams() *Params {
	return &Params{
		Weights:             DefaultWeights,
		DesiredRetention:    0.9,
		MaximumIntervalDays: 36500,
		LearningStep:        10 * time.Minute,
	}
}

// Validate checks that the parameters are usable.
func (p *Params) Validate() error {
	if p.DesiredRetention <= 0 || p.DesiredRetention > 1 {
		return fmt.Errorf("desired retention %v out of range (0, 1]", p.DesiredRetention)
	}
	if p.MaximumIntervalDays < 1 {
		return fmt.Errorf("maximum interval %d must be at least 1 day", p.MaximumIntervalDays)
	}
	if p.LearningStep <= 0 {
		return fmt.Errorf("learning step %v must be positive", p.LearningStep)
	}
	for i, w := range p.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("weight %d is not finite", i)
		}
	}
	return nil
}
