package policy

// QTable maps state keys to per-action Q-values. Entries are materialized
// on first write; absent entries read as zero. The table itself is not
// goroutine-safe - the owning engine serializes access.
type QTable struct {
	values map[string]map[string]float64
}

// NewQTable creates an empty Q-table.
func NewQTable() *QTable {
	return &QTable{values: make(map[string]map[string]float64)}
}

// Get returns the Q-value for a state-action pair, 0 if absent.
func (t *QTable) Get(stateKey, action string) float64 {
	return t.values[stateKey][action]
}

// Set stores a Q-value, creating the state's action map lazily.
func (t *QTable) Set(stateKey, action string, value float64) {
	actions, ok := t.values[stateKey]
	if !ok {
		actions = make(map[string]float64)
		t.values[stateKey] = actions
	}
	actions[action] = value
}

// Max returns the highest stored Q-value for a state, 0 if the state has
// no recorded actions. A zero result therefore does not distinguish an
// unseen state from a state whose best known value is zero.
func (t *QTable) Max(stateKey string) float64 {
	actions, ok := t.values[stateKey]
	if !ok || len(actions) == 0 {
		return 0
	}
	first := true
	var max float64
	for _, v := range actions {
		if first || v > max {
			max = v
			first = false
		}
	}
	return max
}

// BestAction returns the candidate with the strictly highest Q-value.
// Ties are broken by first-occurrence order in candidates, so the choice
// is deterministic for a given candidate list.
func (t *QTable) BestAction(stateKey string, candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	best := candidates[0]
	bestQ := t.Get(stateKey, best)
	for _, action := range candidates[1:] {
		if q := t.Get(stateKey, action); q > bestQ {
			best = action
			bestQ = q
		}
	}
	return best
}

// States returns the number of states with at least one recorded action.
func (t *QTable) States() int {
	return len(t.values)
}

// Snapshot returns a deep copy of the table contents.
func (t *QTable) Snapshot() map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(t.values))
	for state, actions := range t.values {
		copied := make(map[string]float64, len(actions))
		for action, v := range actions {
			copied[action] = v
		}
		out[state] = copied
	}
	return out
}

// ValuesFor returns a copy of the action map for one state.
func (t *QTable) ValuesFor(stateKey string) map[string]float64 {
	actions := t.values[stateKey]
	out := make(map[string]float64, len(actions))
	for action, v := range actions {
		out[action] = v
	}
	return out
}

// Restore replaces the table contents wholesale.
func (t *QTable) Restore(values map[string]map[string]float64) {
	t.values = make(map[string]map[string]float64, len(values))
	for state, actions := range values {
		copied := make(map[string]float64, len(actions))
		for action, v := range actions {
			copied[action] = v
		}
		t.values[state] = copied
	}
}

// Reset clears all entries.
func (t *QTable) Reset() {
	t.values = make(map[string]map[string]float64)
}

// ActionStat holds the Beta posterior counters for one action.
type ActionStat struct {
	Successes uint64 `json:"successes"`
	Failures  uint64 `json:"failures"`
}

// ActionStats tracks per-action success/failure counters used by Thompson
// sampling. Unobserved actions carry the uniform Beta(1,1) prior; the
// prior is materialized only when an outcome is recorded, so reads never
// mutate the store.
type ActionStats struct {
	counters map[string]ActionStat
}

// NewActionStats creates an empty stats store.
func NewActionStats() *ActionStats {
	return &ActionStats{counters: make(map[string]ActionStat)}
}

// For returns the counters for an action, defaulting to the (1,1) prior.
func (s *ActionStats) For(action string) ActionStat {
	if stat, ok := s.counters[action]; ok {
		return stat
	}
	return ActionStat{Successes: 1, Failures: 1}
}

// RecordOutcome increments the success or failure counter, materializing
// the (1,1) prior on the first observation of the action.
func (s *ActionStats) RecordOutcome(action string, success bool) {
	stat, ok := s.counters[action]
	if !ok {
		stat = ActionStat{Successes: 1, Failures: 1}
	}
	if success {
		stat.Successes++
	} else {
		stat.Failures++
	}
	s.counters[action] = stat
}

// Actions returns the number of actions with recorded outcomes.
func (s *ActionStats) Actions() int {
	return len(s.counters)
}

// Snapshot returns a copy of all recorded counters.
func (s *ActionStats) Snapshot() map[string]ActionStat {
	out := make(map[string]ActionStat, len(s.counters))
	for action, stat := range s.counters {
		out[action] = stat
	}
	return out
}

// Restore replaces the counters wholesale.
func (s *ActionStats) Restore(counters map[string]ActionStat) {
	s.counters = make(map[string]ActionStat, len(counters))
	for action, stat := range counters {
		s.counters[action] = stat
	}
}

// Reset clears all counters.
func (s *ActionStats) Reset() {
	s.counters = make(map[string]ActionStat)
}
