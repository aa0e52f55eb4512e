package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"instinct/internal/audit"
	"instinct/internal/logging"
)

// Snapshot is the durable projection of the engine state, written to the
// knowledge store as one whole-document replace.
type Snapshot struct {
	QTable          []SnapshotState      `json:"qTable"`
	ActionSuccesses []SnapshotActionStat `json:"actionSuccesses"`
	ExplorationRate float64              `json:"explorationRate"`
	Stats           SnapshotStats        `json:"stats"`
	Config          SnapshotConfig       `json:"config"`
	SavedAt         time.Time            `json:"savedAt"`
}

// SnapshotState holds the recorded action values for one state.
type SnapshotState struct {
	State   string        `json:"state"`
	Actions []ActionValue `json:"actions"`
}

// ActionValue is one (action, Q-value) pair.
type ActionValue struct {
	Action string  `json:"action"`
	Value  float64 `json:"value"`
}

// SnapshotActionStat holds the posterior counters for one action.
type SnapshotActionStat struct {
	Action string     `json:"action"`
	Stat   ActionStat `json:"stat"`
}

// SnapshotStats carries the running counters across restarts.
type SnapshotStats struct {
	TotalUpdates        int64   `json:"totalUpdates"`
	AverageReward       float64 `json:"averageReward"`
	ExplorationActions  int64   `json:"explorationActions"`
	ExploitationActions int64   `json:"exploitationActions"`
}

// SnapshotConfig records the hyperparameters the snapshot was written
// under, for inspection; load does not apply them.
type SnapshotConfig struct {
	LearningRate   float64 `json:"learningRate"`
	DiscountFactor float64 `json:"discountFactor"`
	MinExploration float64 `json:"minExploration"`
}

// buildSnapshot copies the engine state under the lock. Entries are
// sorted so the document is deterministic within a process run.
func (e *Engine) buildSnapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	qvalues := e.qtable.Snapshot()
	states := make([]SnapshotState, 0, len(qvalues))
	for state, actions := range qvalues {
		entry := SnapshotState{State: state, Actions: make([]ActionValue, 0, len(actions))}
		for action, v := range actions {
			entry.Actions = append(entry.Actions, ActionValue{Action: action, Value: v})
		}
		sort.Slice(entry.Actions, func(i, j int) bool { return entry.Actions[i].Action < entry.Actions[j].Action })
		states = append(states, entry)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].State < states[j].State })

	counters := e.stats.Snapshot()
	stats := make([]SnapshotActionStat, 0, len(counters))
	for action, stat := range counters {
		stats = append(stats, SnapshotActionStat{Action: action, Stat: stat})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Action < stats[j].Action })

	return Snapshot{
		QTable:          states,
		ActionSuccesses: stats,
		ExplorationRate: e.explorationRate,
		Stats: SnapshotStats{
			TotalUpdates:        e.totalUpdates,
			AverageReward:       e.meanReward,
			ExplorationActions:  e.explorationActions,
			ExploitationActions: e.exploitationActions,
		},
		Config: SnapshotConfig{
			LearningRate:   e.cfg.Learner.LearningRate,
			DiscountFactor: e.cfg.Learner.DiscountFactor,
			MinExploration: e.cfg.Learner.MinExploration,
		},
		SavedAt: e.now(),
	}
}

// restoreSnapshot replaces the in-memory state from a snapshot. Stats are
// replaced wholesale, never merged. The exploration rate is restored only
// when it has not been pinned by SetExplorationRate.
func (e *Engine) restoreSnapshot(snap Snapshot) {
	qvalues := make(map[string]map[string]float64, len(snap.QTable))
	for _, entry := range snap.QTable {
		actions := make(map[string]float64, len(entry.Actions))
		for _, av := range entry.Actions {
			actions[av.Action] = av.Value
		}
		qvalues[entry.State] = actions
	}
	counters := make(map[string]ActionStat, len(snap.ActionSuccesses))
	for _, entry := range snap.ActionSuccesses {
		counters[entry.Action] = entry.Stat
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.qtable.Restore(qvalues)
	e.stats.Restore(counters)
	e.totalUpdates = snap.Stats.TotalUpdates
	e.meanReward = snap.Stats.AverageReward
	e.explorationActions = snap.Stats.ExplorationActions
	e.exploitationActions = snap.Stats.ExploitationActions
	if !e.ratePinned {
		e.explorationRate = snap.ExplorationRate
	}
}

// Initialize restores the latest snapshot, if one exists, and starts the
// periodic save scheduler. A failed or missing snapshot read is a cold
// start, not an error.
func (e *Engine) Initialize(ctx context.Context) error {
	if e.store != nil {
		e.load(ctx)
		e.startScheduler()
	}
	logging.Boot("Engine initialized: states=%d actions=%d explorationRate=%.4f", e.GetStats().StateCount, e.GetStats().ActionCount, e.ExplorationRate())
	return nil
}

// load restores from the knowledge store, proceeding empty on any failure.
func (e *Engine) load(ctx context.Context) {
	doc, err := e.store.ReadSnapshot(ctx, e.cfg.Store.SnapshotKey)
	if err != nil {
		logging.BootWarn("No snapshot restored (cold start): %v", err)
		return
	}

	var snap Snapshot
	if err := json.Unmarshal(doc, &snap); err != nil {
		logging.BootWarn("Snapshot unreadable (cold start): %v", err)
		return
	}

	e.restoreSnapshot(snap)
	logging.Boot("Snapshot restored: key=%s states=%d savedAt=%s", e.cfg.Store.SnapshotKey, len(snap.QTable), snap.SavedAt.Format(time.RFC3339))
}

// SavePolicy serializes the current state and writes it to the knowledge
// store as one document. Concurrent saves are collapsed into a single
// write, so a save never runs concurrently with itself.
func (e *Engine) SavePolicy(ctx context.Context) error {
	if e.store == nil {
		return nil
	}

	_, err, _ := e.saveGroup.Do("save", func() (any, error) {
		snap := e.buildSnapshot()
		doc, err := json.Marshal(snap)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
		}
		if err := e.store.WriteSnapshot(ctx, e.cfg.Store.SnapshotKey, doc); err != nil {
			return nil, err
		}
		logging.Store("Policy saved: key=%s states=%d bytes=%d", e.cfg.Store.SnapshotKey, len(snap.QTable), len(doc))
		e.auditAppend(audit.Record{
			Agent:     "instinct",
			Kind:      audit.KindSnapshotSaved,
			Context:   fmt.Sprintf("key=%s", e.cfg.Store.SnapshotKey),
			Decision:  "snapshot written",
			Reasoning: fmt.Sprintf("states=%d updates=%d", len(snap.QTable), snap.Stats.TotalUpdates),
		})
		return nil, nil
	})
	return err
}

// startScheduler launches the periodic save loop.
func (e *Engine) startScheduler() {
	if e.schedDone != nil {
		return
	}
	e.schedDone = make(chan struct{})

	go func() {
		defer close(e.schedDone)
		ticker := time.NewTicker(e.cfg.Store.SaveInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := e.SavePolicy(context.Background()); err != nil {
					logging.StoreWarn("Periodic save failed (will retry next tick): %v", err)
				}
			case <-e.stopCh:
				return
			}
		}
	}()
}

// Shutdown stops the save scheduler and performs one final save. Unlike
// periodic saves, a failure here is surfaced to the caller.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.stopOnce.Do(func() { close(e.stopCh) })
	if e.schedDone != nil {
		<-e.schedDone
	}

	if err := e.SavePolicy(ctx); err != nil {
		return fmt.Errorf("final save failed: %w", err)
	}
	logging.Boot("Engine shut down cleanly")
	return nil
}
