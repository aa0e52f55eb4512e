package policy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"instinct/internal/audit"
)

type fakeStore struct {
	mu       sync.Mutex
	docs     map[string][]byte
	writeErr error
	writes   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[string][]byte)}
}

func (f *fakeStore) ReadSnapshot(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[key]
	if !ok {
		return nil, errors.New("snapshot not found")
	}
	return doc, nil
}

func (f *fakeStore) WriteSnapshot(_ context.Context, key string, doc []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes++
	f.docs[key] = doc
	return nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeEvents) Publish(name string, _ map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, name)
}

func (f *fakeEvents) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

type failingAudit struct{}

func (failingAudit) Append(audit.Record) error { return errors.New("audit unavailable") }

func TestSnapshotRoundTrip(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()

	src := newTestEngine(t, testConfig(), WithStore(store))
	states := []string{"build", "test", "review"}
	actions := []string{"retry", "skip", "escalate"}
	for i, s := range states {
		for j, a := range actions {
			reward := float64(i-j) * 0.4
			if _, err := src.Update(ctx, s, a, reward, states[(i+1)%len(states)]); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := src.SavePolicy(ctx); err != nil {
		t.Fatalf("SavePolicy failed: %v", err)
	}

	dst := newTestEngine(t, testConfig(), WithStore(store))
	if err := dst.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer dst.Shutdown(ctx)

	if diff := cmp.Diff(src.GetAllQValues(), dst.GetAllQValues()); diff != "" {
		t.Errorf("Q-values differ after round trip (-src +dst):\n%s", diff)
	}
	for _, a := range actions {
		if diff := cmp.Diff(src.GetActionStats(a), dst.GetActionStats(a)); diff != "" {
			t.Errorf("stats for %s differ (-src +dst):\n%s", a, diff)
		}
	}

	srcStats, dstStats := src.GetStats(), dst.GetStats()
	if srcStats.TotalUpdates != dstStats.TotalUpdates {
		t.Errorf("TotalUpdates = %d, want %d", dstStats.TotalUpdates, srcStats.TotalUpdates)
	}
	if srcStats.ExplorationRate != dstStats.ExplorationRate {
		t.Errorf("ExplorationRate = %v, want %v", dstStats.ExplorationRate, srcStats.ExplorationRate)
	}
}

func TestLoadSkipsRateWhenPinned(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()

	src := newTestEngine(t, testConfig(), WithStore(store))
	for i := 0; i < 20; i++ {
		if _, err := src.Update(ctx, "s", "a", 1, nil); err != nil {
			t.Fatal(err)
		}
	}
	if err := src.SavePolicy(ctx); err != nil {
		t.Fatal(err)
	}

	dst := newTestEngine(t, testConfig(), WithStore(store))
	if err := dst.SetExplorationRate(0.9); err != nil {
		t.Fatal(err)
	}
	dst.load(ctx)

	if got := dst.ExplorationRate(); got != 0.9 {
		t.Errorf("pinned rate = %v, want 0.9", got)
	}
	// The tables still restore.
	if len(dst.GetAllQValues()) == 0 {
		t.Error("Q-table not restored")
	}
}

func TestColdStartOnMissingSnapshot(t *testing.T) {
	e := newTestEngine(t, testConfig(), WithStore(newFakeStore()))
	if err := e.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize should tolerate a missing snapshot: %v", err)
	}
	defer e.Shutdown(context.Background())

	if got := e.GetStats(); got.StateCount != 0 || got.TotalUpdates != 0 {
		t.Errorf("cold start not empty: %+v", got)
	}
}

func TestCorruptSnapshotIsColdStart(t *testing.T) {
	store := newFakeStore()
	store.docs["policy/default"] = []byte("{not json")

	e := newTestEngine(t, testConfig(), WithStore(store))
	e.load(context.Background())

	if got := e.GetStats(); got.StateCount != 0 {
		t.Errorf("corrupt snapshot restored state: %+v", got)
	}
}

func TestSaveWithoutStoreIsNoop(t *testing.T) {
	e := newTestEngine(t, testConfig())
	if err := e.SavePolicy(context.Background()); err != nil {
		t.Errorf("SavePolicy without store = %v, want nil", err)
	}
}

func TestShutdownSurfacesFinalSaveError(t *testing.T) {
	store := newFakeStore()
	store.writeErr = errors.New("disk full")

	e := newTestEngine(t, testConfig(), WithStore(store))
	if err := e.Shutdown(context.Background()); err == nil {
		t.Fatal("expected final save error surfaced")
	}
}

func TestPeriodicSaveScheduler(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := testConfig()
	cfg.Store.SaveInterval = 10 * time.Millisecond
	store := newFakeStore()

	e := newTestEngine(t, cfg, WithStore(store))
	ctx := context.Background()
	if err := e.Initialize(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Update(ctx, "s", "a", 1, nil); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for {
		store.mu.Lock()
		writes := store.writes
		store.mu.Unlock()
		if writes >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("scheduler produced no periodic saves")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if err := e.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	e := newTestEngine(t, testConfig(), WithStore(newFakeStore()))
	ctx := context.Background()
	if err := e.Initialize(ctx); err != nil {
		t.Fatal(err)
	}
	if err := e.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
	if err := e.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown failed: %v", err)
	}
}

func TestSideEffectFailuresDoNotAbortUpdate(t *testing.T) {
	events := &fakeEvents{}
	e := newTestEngine(t, testConfig(), WithEventSink(events), WithAuditSink(failingAudit{}))
	ctx := context.Background()

	newQ, err := e.Update(ctx, "s", "a", 1.0, nil)
	if err != nil {
		t.Fatalf("Update aborted by collaborator failure: %v", err)
	}
	if newQ == 0 {
		t.Error("update not applied")
	}

	names := events.names()
	if len(names) == 0 || names[len(names)-1] != EventPolicyUpdated {
		t.Errorf("expected %s event, got %v", EventPolicyUpdated, names)
	}
}

func TestSelectionPublishesEvent(t *testing.T) {
	events := &fakeEvents{}
	e := newTestEngine(t, testConfig(), WithEventSink(events))

	if _, err := e.SelectAction("s", []string{"a"}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.SelectActionThompson("s", []string{"a"}); err != nil {
		t.Fatal(err)
	}
	e.EndEpisode() // empty, no event

	names := events.names()
	want := []string{EventActionSelected, EventActionSelected}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
}
