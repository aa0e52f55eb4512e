// Package policy implements the tabular reinforcement-learning core of
// instinct: a Q-learning engine with epsilon-greedy and Thompson-sampling
// action selection, additive reward shaping, bounded episode tracking,
// and periodic snapshot persistence to an external knowledge store.
package policy

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"instinct/internal/audit"
	"instinct/internal/config"
	"instinct/internal/logging"
)

// Engine owns the Q-table, action statistics, and exploration rate. All
// mutation flows through Update, RecordOutcome (internal) or Reset, and
// is serialized by a single mutex so concurrent updates on the same
// state-action pair can never lose a read-modify-write.
type Engine struct {
	mu  sync.Mutex
	cfg config.Config

	qtable   *QTable
	stats    *ActionStats
	episodes *episodeTracker

	rng *rand.Rand
	now func() time.Time

	explorationRate float64
	ratePinned      bool // set by SetExplorationRate, blocks restore-from-snapshot

	totalUpdates        int64
	meanReward          float64
	explorationActions  int64
	exploitationActions int64

	store    KnowledgeStore
	events   EventSink
	auditLog AuditSink

	saveGroup singleflight.Group
	stopOnce  sync.Once
	stopCh    chan struct{}
	schedDone chan struct{}
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithStore injects the knowledge store used for snapshot persistence.
// Without a store the engine runs purely in memory.
func WithStore(s KnowledgeStore) Option {
	return func(e *Engine) { e.store = s }
}

// WithEventSink injects the fire-and-forget event sink.
func WithEventSink(s EventSink) Option {
	return func(e *Engine) { e.events = s }
}

// WithAuditSink injects the best-effort decision audit log.
func WithAuditSink(s AuditSink) Option {
	return func(e *Engine) { e.auditLog = s }
}

// WithRand injects the random source, for deterministic tests.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// WithClock injects the time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New constructs an engine from a validated configuration.
func New(cfg config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	e := &Engine{
		cfg:             cfg,
		qtable:          NewQTable(),
		stats:           NewActionStats(),
		episodes:        newEpisodeTracker(cfg.Learner.MaxEpisodes),
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
		now:             time.Now,
		explorationRate: cfg.Learner.ExplorationRate,
		stopCh:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Update applies the Q-learning rule for one observed transition and
// returns the new Q-value:
//
//	newQ = q + alpha*(reward + gamma*maxQ(next) - q)
//
// A nil nextState marks a terminal transition (maxQ resolves to 0, as it
// does for any state with no recorded actions). The exploration rate
// decays after every update, floored at the configured minimum. Event
// and audit side effects are best-effort and never abort the update.
func (e *Engine) Update(ctx context.Context, state any, action string, reward float64, nextState any) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	stateKey := StateKey(state)
	nextStateKey := StateKey(nextState)

	e.mu.Lock()

	currentQ := e.qtable.Get(stateKey, action)
	maxNextQ := e.qtable.Max(nextStateKey)
	newQ := currentQ + e.cfg.Learner.LearningRate*(reward+e.cfg.Learner.DiscountFactor*maxNextQ-currentQ)
	e.qtable.Set(stateKey, action, newQ)

	e.stats.RecordOutcome(action, reward > 0)

	e.explorationRate = math.Max(e.cfg.Learner.MinExploration, e.explorationRate*e.cfg.Learner.ExplorationDecay)

	e.episodes.record(ExperienceStep{
		StateKey:     stateKey,
		Action:       action,
		Reward:       reward,
		NextStateKey: nextStateKey,
		Timestamp:    e.now(),
	})

	e.totalUpdates++
	e.meanReward += (reward - e.meanReward) / float64(e.totalUpdates)
	totalUpdates := e.totalUpdates

	e.mu.Unlock()

	logging.PolicyDebug("Q-update: state=%s action=%s reward=%.3f q %.4f -> %.4f", stateKey, action, reward, currentQ, newQ)

	e.publish(EventPolicyUpdated, map[string]any{
		"stateKey":     stateKey,
		"action":       action,
		"reward":       reward,
		"previousQ":    currentQ,
		"newQ":         newQ,
		"totalUpdates": totalUpdates,
	})
	e.auditAppend(audit.Record{
		Agent:     "instinct",
		Kind:      audit.KindLearningUpdate,
		Context:   fmt.Sprintf("state=%s action=%s next=%s", stateKey, action, nextStateKey),
		Decision:  fmt.Sprintf("q %.6f -> %.6f", currentQ, newQ),
		Reasoning: fmt.Sprintf("reward=%.3f maxNextQ=%.6f alpha=%.3f gamma=%.3f", reward, maxNextQ, e.cfg.Learner.LearningRate, e.cfg.Learner.DiscountFactor),
		Metadata:  map[string]any{"totalUpdates": totalUpdates},
	})

	return newQ, nil
}

// CalculateReward shapes an outcome into a scalar reward and publishes a
// reward_calculated event. The computation itself is the pure package
// function CalculateReward.
func (e *Engine) CalculateReward(o Outcome) float64 {
	reward := CalculateReward(o)
	e.publish(EventRewardCalculated, map[string]any{
		"outcomeSummary": fmt.Sprintf("success=%v partial=%v timeout=%v duration=%s", o.Success, o.Partial, o.Timeout, o.Duration),
		"reward":         reward,
	})
	return reward
}

// EndEpisode closes the current episode, if any steps were recorded, and
// returns it. Returns nil when the open buffer is empty.
func (e *Engine) EndEpisode() *Episode {
	e.mu.Lock()
	ep := e.episodes.end(e.now())
	episodeCount := e.episodes.count()
	e.mu.Unlock()

	if ep == nil {
		return nil
	}

	logging.Episode("Episode closed: id=%s steps=%d totalReward=%.3f", ep.ID, ep.StepCount, ep.TotalReward)
	e.publish(EventEpisodeEnded, map[string]any{
		"episodeId":    ep.ID,
		"totalReward":  ep.TotalReward,
		"steps":        ep.StepCount,
		"episodeCount": episodeCount,
	})
	e.auditAppend(audit.Record{
		Agent:     "instinct",
		Kind:      audit.KindEpisodeEnd,
		Context:   fmt.Sprintf("episode=%s", ep.ID),
		Decision:  "episode closed",
		Reasoning: fmt.Sprintf("steps=%d totalReward=%.3f", ep.StepCount, ep.TotalReward),
	})
	return ep
}

// EpisodeHistory returns a copy of the closed-episode history, oldest
// first, bounded by the configured maximum.
func (e *Engine) EpisodeHistory() []Episode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.episodes.episodes()
}

// GetQValues returns a copy of the Q-values recorded for a state.
func (e *Engine) GetQValues(state any) map[string]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.qtable.ValuesFor(StateKey(state))
}

// GetAllQValues returns a deep copy of the full Q-table.
func (e *Engine) GetAllQValues() map[string]map[string]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.qtable.Snapshot()
}

// GetActionStats returns the success/failure counters for an action,
// defaulting to the Beta(1,1) prior for unobserved actions.
func (e *Engine) GetActionStats(action string) ActionStat {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats.For(action)
}

// ExplorationRate returns the current exploration rate.
func (e *Engine) ExplorationRate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.explorationRate
}

// SetExplorationRate pins the exploration rate. A pinned rate still
// decays on updates but is no longer restored from snapshots on load.
func (e *Engine) SetExplorationRate(rate float64) error {
	if rate < 0 || rate > 1 {
		return fmt.Errorf("%w: %v", ErrRateOutOfRange, rate)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.explorationRate = rate
	e.ratePinned = true
	return nil
}

// Reset clears the Q-table, action statistics, episode history, and
// running counters. With keepConfig true the current exploration rate
// (and any pin) survives; otherwise the rate returns to its configured
// initial value and the pin is cleared.
func (e *Engine) Reset(keepConfig bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.qtable.Reset()
	e.stats.Reset()
	e.episodes.reset()
	e.totalUpdates = 0
	e.meanReward = 0
	e.explorationActions = 0
	e.exploitationActions = 0

	if !keepConfig {
		e.explorationRate = e.cfg.Learner.ExplorationRate
		e.ratePinned = false
	}
	logging.Policy("Engine reset (keepConfig=%v)", keepConfig)
}

// Stats is the summary returned by GetStats.
type Stats struct {
	TotalUpdates        int64   `json:"totalUpdates"`
	AverageReward       float64 `json:"averageReward"`
	ExplorationActions  int64   `json:"explorationActions"`
	ExploitationActions int64   `json:"exploitationActions"`
	StateCount          int     `json:"stateCount"`
	ActionCount         int     `json:"actionCount"`
	EpisodeCount        int     `json:"episodeCount"`
	OpenEpisodeSteps    int     `json:"openEpisodeSteps"`
	ExplorationRate     float64 `json:"explorationRate"`
}

// GetStats returns a consistent snapshot of the engine counters.
func (e *Engine) GetStats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statsLocked()
}

func (e *Engine) statsLocked() Stats {
	return Stats{
		TotalUpdates:        e.totalUpdates,
		AverageReward:       e.meanReward,
		ExplorationActions:  e.explorationActions,
		ExploitationActions: e.exploitationActions,
		StateCount:          e.qtable.States(),
		ActionCount:         e.stats.Actions(),
		EpisodeCount:        e.episodes.count(),
		OpenEpisodeSteps:    e.episodes.openSteps(),
		ExplorationRate:     e.explorationRate,
	}
}

// publish emits an event when a sink is configured. Emission is
// fire-and-forget; a panicking sink is contained here so it can never
// abort the learning path.
func (e *Engine) publish(name string, payload map[string]any) {
	if e.events == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logging.EventsWarn("event sink panicked on %s: %v", name, r)
		}
	}()
	e.events.Publish(name, payload)
}

// auditAppend appends a record when an audit sink is configured,
// swallowing failures.
func (e *Engine) auditAppend(rec audit.Record) {
	if e.auditLog == nil {
		return
	}
	if err := e.auditLog.Append(rec); err != nil {
		logging.EventsWarn("audit append failed: %v", err)
	}
}
