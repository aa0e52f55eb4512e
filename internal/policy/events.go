package policy

import (
	"context"
	"errors"

	"instinct/internal/audit"
)

// Errors surfaced to callers. Collaborator failures (store, events,
// audit) are never wrapped in these; they are either logged and swallowed
// or returned as plain wrapped errors from the persistence paths.
var (
	// ErrNoActions is returned when a selector is given an empty
	// candidate list.
	ErrNoActions = errors.New("no available actions")

	// ErrRateOutOfRange is returned by SetExplorationRate for rates
	// outside [0,1].
	ErrRateOutOfRange = errors.New("exploration rate outside [0,1]")
)

// Event names published to the event sink.
const (
	EventActionSelected   = "action_selected"
	EventPolicyUpdated    = "policy_updated"
	EventRewardCalculated = "reward_calculated"
	EventEpisodeEnded     = "episode_ended"
)

// EventSink receives fire-and-forget policy events. Implementations must
// not block; the engine never retries or checks delivery.
type EventSink interface {
	Publish(name string, payload map[string]any)
}

// AuditSink receives best-effort decision records. Append failures are
// logged by the engine and never abort the triggering operation.
type AuditSink interface {
	Append(rec audit.Record) error
}

// KnowledgeStore is the external snapshot persistence contract. Any
// key-value document store satisfies it; writes are whole-document
// replaces with no merge semantics.
type KnowledgeStore interface {
	ReadSnapshot(ctx context.Context, key string) ([]byte, error)
	WriteSnapshot(ctx context.Context, key string, doc []byte) error
}
