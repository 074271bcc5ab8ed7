package events

import (
	"testing"
	"time"
)

func recvEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := New(8)
	defer bus.Close()

	ch := bus.Subscribe()
	bus.Publish(NewRunEvent(TypeRunStarted, "run-1", "wf-1", "running", ""))
	bus.Publish(NewStepEvent(TypeStepCompleted, "run-1", "n1", "n1#1", "compute", 1, ""))

	if ev := recvEvent(t, ch); ev.EventType() != TypeRunStarted {
		t.Errorf("first event = %s", ev.EventType())
	}
	if ev := recvEvent(t, ch); ev.EventType() != TypeStepCompleted {
		t.Errorf("second event = %s", ev.EventType())
	}
}

func TestBus_SubscribeFiltered(t *testing.T) {
	bus := New(8)
	defer bus.Close()

	ch := bus.Subscribe(TypeRunCompleted)
	bus.Publish(NewRunEvent(TypeRunStarted, "run-1", "wf-1", "running", ""))
	bus.Publish(NewRunEvent(TypeRunCompleted, "run-1", "wf-1", "succeeded", ""))

	ev := recvEvent(t, ch)
	if ev.EventType() != TypeRunCompleted {
		t.Errorf("event = %s, want only the subscribed type", ev.EventType())
	}
	select {
	case extra := <-ch:
		t.Errorf("unexpected extra event %s", extra.EventType())
	default:
	}
}

func TestBus_DropOldestWhenFull(t *testing.T) {
	bus := New(2)
	defer bus.Close()

	ch := bus.Subscribe()
	for i := 0; i < 5; i++ {
		bus.Publish(NewRunEvent(TypeRunStarted, "run", "wf", "running", ""))
	}

	if bus.DroppedCount() != 3 {
		t.Errorf("DroppedCount = %d, want 3", bus.DroppedCount())
	}
	// The newest events survive; the buffer still holds exactly two.
	recvEvent(t, ch)
	recvEvent(t, ch)
	select {
	case <-ch:
		t.Error("buffer held more than its capacity")
	default:
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New(8)
	defer bus.Close()

	ch := bus.Subscribe()
	bus.Unsubscribe(ch)

	if _, open := <-ch; open {
		t.Error("channel should be closed after Unsubscribe")
	}
	// Publishing after unsubscribe must not panic.
	bus.Publish(NewRunEvent(TypeRunStarted, "run", "wf", "running", ""))
}

func TestBus_Close(t *testing.T) {
	bus := New(8)
	ch := bus.Subscribe()

	bus.Close()
	bus.Close() // idempotent

	if _, open := <-ch; open {
		t.Error("channel should be closed after Close")
	}
	bus.Publish(NewRunEvent(TypeRunStarted, "run", "wf", "running", ""))
}

func TestRunEventFields(t *testing.T) {
	ev := NewRunEvent(TypeRunFailed, "run-1", "wf-1", "failed", "boom")
	if ev.RunID() != "run-1" || ev.WorkflowID != "wf-1" || ev.Error != "boom" {
		t.Errorf("event = %+v", ev)
	}
	if ev.Timestamp().IsZero() {
		t.Error("timestamp not set")
	}
}
