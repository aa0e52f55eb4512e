package policy

import (
	"fmt"
	"sort"

	"instinct/internal/logging"
	"instinct/internal/sampling"
)

// Selection is the result of an epsilon-greedy choice.
type Selection struct {
	Action        string
	IsExploration bool
	StateKey      string
}

// ActionSample pairs a candidate action with its Thompson draw.
type ActionSample struct {
	Action string  `json:"action"`
	Sample float64 `json:"sample"`
}

// ThompsonSelection is the result of a Thompson-sampling choice. The
// AllSamples slice is sorted by sample descending for observability.
type ThompsonSelection struct {
	Action     string
	Sample     float64
	AllSamples []ActionSample
}

// SelectAction chooses an action epsilon-greedily: with probability equal
// to the current exploration rate a uniformly random candidate, otherwise
// the best known action with deterministic first-occurrence tie-breaks.
// Selection never mutates the Q-table or the action statistics.
func (e *Engine) SelectAction(state any, availableActions []string) (Selection, error) {
	if len(availableActions) == 0 {
		return Selection{}, fmt.Errorf("%w: selectAction requires at least one candidate", ErrNoActions)
	}

	stateKey := StateKey(state)

	e.mu.Lock()
	rate := e.explorationRate
	var sel Selection
	if e.rng.Float64() < rate {
		sel = Selection{
			Action:        availableActions[e.rng.Intn(len(availableActions))],
			IsExploration: true,
			StateKey:      stateKey,
		}
		e.explorationActions++
	} else {
		sel = Selection{
			Action:   e.qtable.BestAction(stateKey, availableActions),
			StateKey: stateKey,
		}
		e.exploitationActions++
	}
	e.mu.Unlock()

	logging.PolicyDebug("Selected action=%s state=%s exploration=%v rate=%.4f", sel.Action, stateKey, sel.IsExploration, rate)
	e.publish(EventActionSelected, map[string]any{
		"stateKey":        stateKey,
		"action":          sel.Action,
		"isExploration":   sel.IsExploration,
		"explorationRate": rate,
	})
	return sel, nil
}

// SelectActionThompson chooses an action by drawing one Beta sample per
// candidate from its success/failure posterior and taking the maximum,
// with first-occurrence tie-breaks. Unobserved actions sample from the
// uniform Beta(1,1) prior.
func (e *Engine) SelectActionThompson(state any, availableActions []string) (ThompsonSelection, error) {
	if len(availableActions) == 0 {
		return ThompsonSelection{}, fmt.Errorf("%w: selectActionThompson requires at least one candidate", ErrNoActions)
	}

	stateKey := StateKey(state)

	e.mu.Lock()
	samples := make([]ActionSample, len(availableActions))
	best := 0
	for i, action := range availableActions {
		stat := e.stats.For(action)
		samples[i] = ActionSample{
			Action: action,
			Sample: sampling.Beta(e.rng, float64(stat.Successes), float64(stat.Failures)),
		}
		if samples[i].Sample > samples[best].Sample {
			best = i
		}
	}
	e.mu.Unlock()

	sel := ThompsonSelection{
		Action:     samples[best].Action,
		Sample:     samples[best].Sample,
		AllSamples: samples,
	}
	sort.Slice(sel.AllSamples, func(i, j int) bool {
		return sel.AllSamples[i].Sample > sel.AllSamples[j].Sample
	})

	logging.PolicyDebug("Thompson selected action=%s state=%s sample=%.4f", sel.Action, stateKey, sel.Sample)
	e.publish(EventActionSelected, map[string]any{
		"stateKey":      stateKey,
		"action":        sel.Action,
		"isExploration": false,
		"sample":        sel.Sample,
	})
	return sel, nil
}
