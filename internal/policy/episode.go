package policy

import (
	"time"

	"github.com/google/uuid"
)

// ExperienceStep is one recorded transition inside an episode.
type ExperienceStep struct {
	StateKey     string    `json:"stateKey"`
	Action       string    `json:"action"`
	Reward       float64   `json:"reward"`
	NextStateKey string    `json:"nextStateKey"`
	Timestamp    time.Time `json:"timestamp"`
}

// Episode is a closed, ordered sequence of steps with aggregate reward.
type Episode struct {
	ID          string           `json:"id"`
	Steps       []ExperienceStep `json:"steps"`
	TotalReward float64          `json:"totalReward"`
	StepCount   int              `json:"stepCount"`
	StartTime   time.Time        `json:"startTime"`
	EndTime     time.Time        `json:"endTime"`
}

// episodeTracker groups sequential steps into a current open episode and
// keeps a bounded FIFO history of closed ones. Not goroutine-safe; the
// owning engine serializes access.
type episodeTracker struct {
	current    []ExperienceStep
	startTime  time.Time
	history    []Episode
	maxHistory int
}

func newEpisodeTracker(maxHistory int) *episodeTracker {
	return &episodeTracker{maxHistory: maxHistory}
}

// record appends a step to the current episode, opening it if needed.
func (t *episodeTracker) record(step ExperienceStep) {
	if len(t.current) == 0 {
		t.startTime = step.Timestamp
	}
	t.current = append(t.current, step)
}

// end finalizes the current episode and appends it to history, evicting
// the oldest entry once the bound is reached. Returns nil if no steps
// were recorded since the last end.
func (t *episodeTracker) end(now time.Time) *Episode {
	if len(t.current) == 0 {
		return nil
	}

	var total float64
	for _, step := range t.current {
		total += step.Reward
	}

	ep := Episode{
		ID:          uuid.New().String(),
		Steps:       t.current,
		TotalReward: total,
		StepCount:   len(t.current),
		StartTime:   t.startTime,
		EndTime:     now,
	}

	t.history = append(t.history, ep)
	if len(t.history) > t.maxHistory {
		t.history = t.history[len(t.history)-t.maxHistory:]
	}
	t.current = nil
	return &ep
}

// episodes returns a copy of the closed-episode history, oldest first.
func (t *episodeTracker) episodes() []Episode {
	out := make([]Episode, len(t.history))
	copy(out, t.history)
	return out
}

// count returns the number of closed episodes retained.
func (t *episodeTracker) count() int {
	return len(t.history)
}

// openSteps returns the number of steps in the current open episode.
func (t *episodeTracker) openSteps() int {
	return len(t.current)
}

// reset clears the open buffer and the history.
func (t *episodeTracker) reset() {
	t.current = nil
	t.history = nil
}
