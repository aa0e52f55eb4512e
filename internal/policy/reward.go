package policy

import "time"

// Outcome describes the observed result of an action, combining whatever
// signals the caller has: completion status, timing, quality scoring, and
// user feedback. Optional signals are pointers; nil means "not observed".
type Outcome struct {
	Success bool
	Partial bool
	Timeout bool

	Duration time.Duration
	Quality  *float64 // 0..1 scorer output
	Rating   *int     // 1..5 user rating
}

// Reward shaping weights. Components are independent and additive; the
// reward is their raw sum with no normalization or clamping.
const (
	rewardSuccess = 1.0
	rewardPartial = 0.5
	rewardFailure = -0.5

	rewardFast       = 0.2
	rewardSlow       = -0.1
	fastThreshold    = 1000 * time.Millisecond
	slowThreshold    = 10000 * time.Millisecond
	rewardHighQual   = 0.3
	highQualCutoff   = 0.8
	rewardGoodRating = 0.8
	rewardBadRating  = -0.8
	rewardTimeout    = -0.3
)

// CalculateReward maps an outcome to a scalar training signal. Every
// component is evaluated independently, so bonuses and penalties can
// co-occur (a fast, high-quality success that still timed out sums all
// four terms).
func CalculateReward(o Outcome) float64 {
	var reward float64

	switch {
	case o.Success:
		reward += rewardSuccess
	case o.Partial:
		reward += rewardPartial
	default:
		reward += rewardFailure
	}

	if o.Duration > 0 {
		if o.Duration < fastThreshold {
			reward += rewardFast
		} else if o.Duration > slowThreshold {
			reward += rewardSlow
		}
	}

	if o.Quality != nil && *o.Quality > highQualCutoff {
		reward += rewardHighQual
	}

	if o.Rating != nil {
		if *o.Rating >= 4 {
			reward += rewardGoodRating
		} else if *o.Rating <= 2 {
			reward += rewardBadRating
		}
	}

	if o.Timeout {
		reward += rewardTimeout
	}

	return reward
}
