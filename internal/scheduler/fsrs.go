// Package scheduler implements the FSRS-6 state machine: pure
// functions over a card's numeric state, with no I/O and no knowledge of
// storage, tenancy, or any other component. Every exported function is
// side-effect free and safe to call from any goroutine.
package scheduler

import (
	"math"

	"github.com/morphexe/vestige/internal/types"
)

const (
	minStability = 0.1
	maxStability = 36500.0
	minDifficulty = 1.0
	maxDifficulty = 10.0
)

// Params configures a scheduler run. The zero value is not
// valid; use NewParams for defaults.
type Params struct {
	Weights            Weights
	DesiredRetention   float64 // in [0.7, 0.99]
	MaximumInterval    float64 // days
	EnableFuzz         bool
	FuzzSeed           uint32
	EnableSentimentBoost bool
	MaxSentimentBoost  float64 // in [1, 3]
}

// NewParams returns the default scheduler configuration.
func NewParams() Params {
	return Params{
		Weights:            DefaultWeights(),
		DesiredRetention:   0.9,
		MaximumInterval:    36500,
		EnableFuzz:         false,
		FuzzSeed:           0,
		EnableSentimentBoost: false,
		MaxSentimentBoost:  2.0,
	}
}

// State is the scheduler-owned subset of a knowledge item.
type State struct {
	Stability  float64
	Difficulty float64
	CardState  types.CardState
	Reps       int
	Lapses     int
}

// ReviewResult is the outcome of a single Review call.
type ReviewResult struct {
	State         State
	Retrievability float64
	IntervalDays  int
	IsLapse       bool
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// InitialDifficulty computes D0(grade) = clamp(w4 - exp(w5*(G-1)) + 1, 1, 10).
func InitialDifficulty(w Weights, grade types.Grade) float64 {
	g := float64(grade)
	d := w[4] - math.Exp(w[5]*(g-1)) + 1
	return clamp(d, minDifficulty, maxDifficulty)
}

// InitialStability computes S0(grade) = max(0.1, w[grade-1]).
func InitialStability(w Weights, grade types.Grade) float64 {
	idx := int(grade) - 1
	s := w[idx]
	if s < minStability {
		return minStability
	}
	return s
}

// forgettingFactor computes f(w20) = 0.9^(-1/w20) - 1.
func forgettingFactor(w20 float64) float64 {
	return math.Pow(0.9, -1/w20) - 1
}

// Retrievability computes R(S, t): R(S,0)=1, R(S<=0,t)=0,
// clamped to [0,1].
func Retrievability(w Weights, stability, elapsedDays float64) float64 {
	if elapsedDays <= 0 {
		return 1
	}
	if stability <= 0 {
		return 0
	}
	f := forgettingFactor(w[20])
	r := math.Pow(1+f*elapsedDays/stability, -w[20])
	return clamp(r, 0, 1)
}

// NextInterval computes the inverse of Retrievability: the elapsed-day
// count at which R(S, t) = desiredRetention, rounded to the nearest
// integer day. desired >= 1 returns 0; desired <= 0 returns 36500.
func NextInterval(w Weights, stability, desiredRetention float64) int {
	if desiredRetention >= 1 {
		return 0
	}
	if desiredRetention <= 0 {
		return 36500
	}
	f := forgettingFactor(w[20])
	t := (stability / f) * (math.Pow(desiredRetention, -1/w[20]) - 1)
	return int(math.Round(t))
}

// updateDifficulty applies the mean-reversion update.
func updateDifficulty(w Weights, d float64, grade types.Grade) float64 {
	g := float64(grade)
	delta := -w[6] * (g - 3)
	dNew := d + delta*(10-d)/9
	d0Easy := InitialDifficulty(w, types.GradeEasy)
	return clamp(w[7]*d0Easy+(1-w[7])*dNew, minDifficulty, maxDifficulty)
}

// recallStability applies the successful-recall growth formula (grades 2-4).
func recallStability(w Weights, s, d, r float64, grade types.Grade) float64 {
	hp := 1.0
	if grade == types.GradeHard {
		hp = w[15]
	}
	eb := 1.0
	if grade == types.GradeEasy {
		eb = w[16]
	}
	growth := math.Exp(w[8]) * (11 - d) * math.Pow(s, -w[9]) * (math.Exp(w[10]*(1-r)) - 1) * hp * eb
	sNew := s * (growth + 1)
	return clamp(sNew, minStability, maxStability)
}

// forgetStability applies the post-lapse formula (grade 1). The result
// never exceeds the pre-lapse stability.
func forgetStability(w Weights, s, d, r float64) float64 {
	sf := w[11] * math.Pow(d, -w[12]) * (math.Pow(s+1, w[13]) - 1) * math.Exp(w[14]*(1-r))
	sf = clamp(sf, minStability, maxStability)
	if sf > s {
		return s
	}
	return sf
}

// sameDayStability applies the same-day-review formula.
func sameDayStability(w Weights, s float64, grade types.Grade) float64 {
	g := float64(grade)
	sNew := s * math.Exp(w[17]*(g-3+w[18])) * math.Pow(s, -w[19])
	return clamp(sNew, minStability, maxStability)
}

// Fuzz deterministically perturbs an interval by up to ±max(1, floor(0.05*t))
// days, seeded by seed. t <= 2 is returned unchanged. Same seed and input
// always produce the same output.
func Fuzz(t int, seed uint32) int {
	if t <= 2 {
		return t
	}
	spread := int(math.Floor(0.05 * float64(t)))
	if spread < 1 {
		spread = 1
	}
	// A 32-bit LCG (Numerical Recipes constants) gives a deterministic,
	// seed-dependent pseudorandom stream without pulling in math/rand's
	// global state.
	x := seed*1664525 + 1013904223
	// offset in [-spread, spread]
	span := uint32(2*spread + 1)
	offset := int(x%span) - spread
	result := t + offset
	if result < 1 {
		result = 1
	}
	return result
}

// SentimentBoost scales stability upward by sentiment intensity.
// Monotone non-decreasing in intensity; identity at intensity 0.
func SentimentBoost(s, sentiment, maxBoost float64) float64 {
	sentiment = clamp(sentiment, 0, 1)
	return s * (1 + (maxBoost-1)*sentiment)
}

// NewCard returns the initial scheduler state for a freshly ingested item,
// computed from a Good-grade baseline.
func NewCard(w Weights) State {
	return State{
		Stability:  InitialStability(w, types.GradeGood),
		Difficulty: InitialDifficulty(w, types.GradeGood),
		CardState:  types.StateNew,
		Reps:       0,
		Lapses:     0,
	}
}

// nextState applies the state-machine transition table. Same-day
// reviews (elapsed < 1, reps >= 1) preserve the current state except
// New -> Learning, overriding the table below; is_lapse is true only when
// a review actually transitions out of Review or Relearning on grade 1,
// which cannot happen on a same-day review since state is preserved.
func nextState(cur types.CardState, grade types.Grade, sameDay bool) (next types.CardState, isLapse bool) {
	if sameDay {
		if cur == types.StateNew {
			return types.StateLearning, false
		}
		return cur, false
	}
	switch cur {
	case types.StateNew, types.StateLearning:
		if grade == types.GradeAgain || grade == types.GradeHard {
			return types.StateLearning, false
		}
		return types.StateReview, false
	case types.StateReview:
		if grade == types.GradeAgain {
			return types.StateRelearning, true
		}
		return types.StateReview, false
	case types.StateRelearning:
		if grade == types.GradeAgain {
			return types.StateRelearning, false
		}
		return types.StateReview, false
	default:
		return cur, false
	}
}

// Review applies one review to state and returns the updated scheduler
// fields, the retrievability observed at review time, the resulting
// interval in days, and whether this review was a lapse.
// sentiment, if non-nil, applies the sentiment-boost multiplier when
// EnableSentimentBoost is set.
func Review(p Params, state State, grade types.Grade, elapsedDays float64, sentiment *float64) ReviewResult {
	w := p.Weights
	sameDay := elapsedDays < 1 && state.Reps >= 1

	r := Retrievability(w, state.Stability, elapsedDays)

	var newStability float64
	switch {
	case sameDay:
		newStability = sameDayStability(w, state.Stability, grade)
	case grade == types.GradeAgain:
		newStability = forgetStability(w, state.Stability, state.Difficulty, r)
	default:
		newStability = recallStability(w, state.Stability, state.Difficulty, r, grade)
	}

	if p.EnableSentimentBoost && sentiment != nil {
		newStability = clamp(SentimentBoost(newStability, *sentiment, p.MaxSentimentBoost), minStability, maxStability)
	}

	newDifficulty := updateDifficulty(w, state.Difficulty, grade)

	nState, isLapse := nextState(state.CardState, grade, sameDay)

	interval := NextInterval(w, newStability, p.DesiredRetention)
	if float64(interval) > p.MaximumInterval {
		interval = int(p.MaximumInterval)
	}
	if p.EnableFuzz {
		interval = Fuzz(interval, p.FuzzSeed)
	}

	lapses := state.Lapses
	if isLapse {
		lapses++
	}

	return ReviewResult{
		State: State{
			Stability:  newStability,
			Difficulty: newDifficulty,
			CardState:  nState,
			Reps:       state.Reps + 1,
			Lapses:     lapses,
		},
		Retrievability: r,
		IntervalDays:   interval,
		IsLapse:        isLapse,
	}
}
