package transparency

import (
	"testing"
	"time"
)

func TestEventBusEmitImmediate(t *testing.T) {
	bus := NewEventBus()
	bus.Enable()
	ch := bus.Subscribe()
	defer bus.Close()

	bus.EmitImmediate(Event{Name: "policy_updated"})

	select {
	case evt := <-ch:
		if evt.Name != "policy_updated" {
			t.Fatalf("unexpected name: %s", evt.Name)
		}
		if evt.ID == 0 {
			t.Fatalf("expected sequence id")
		}
		if evt.Timestamp.IsZero() {
			t.Fatalf("expected timestamp")
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("expected event to be delivered")
	}
}

func TestEventBusPublishBatches(t *testing.T) {
	bus := NewEventBus()
	bus.Enable()
	ch := bus.Subscribe()
	defer bus.Close()

	for i := 0; i < 10; i++ {
		bus.Publish("action_selected", map[string]any{"i": i})
	}

	// Batch limit is 10, so the batch should flush without waiting
	// for the window timer.
	var last uint64
	for i := 0; i < 10; i++ {
		select {
		case evt := <-ch:
			if evt.ID <= last {
				t.Fatalf("events out of order: %d after %d", evt.ID, last)
			}
			last = evt.ID
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestEventBusDisabledDropsEvents(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe()
	defer bus.Close()

	bus.Publish("reward_calculated", nil)
	bus.Flush()

	select {
	case <-ch:
		t.Fatalf("unexpected event while disabled")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEventBusDoesNotBlockWhenSubscriberFull(t *testing.T) {
	bus := NewEventBus()
	bus.Enable()
	_ = bus.Subscribe() // Never drained
	defer bus.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			bus.EmitImmediate(Event{Name: "policy_updated"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("emitter blocked on full subscriber")
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus()
	bus.Enable()
	ch := bus.Subscribe()

	bus.Unsubscribe(ch)
	if _, open := <-ch; open {
		t.Fatal("expected channel closed after unsubscribe")
	}
	bus.Close()
}
