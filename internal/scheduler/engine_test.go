package scheduler

import (
	"testing"
	"time"
)

func TestEngineEmitsInTriggerOrder(t *testing.T) {
	engine := NewEngine(8)
	engine.Start()
	defer engine.Stop()

	now := time.Now().UTC()
	if err := engine.Schedule(Event{ID: "later", Kind: KindClear, TriggerAt: now.Add(80 * time.Millisecond)}); err != nil {
		t.Fatalf("schedule later: %v", err)
	}
	if err := engine.Schedule(Event{ID: "sooner", Kind: KindRefresh, TriggerAt: now.Add(20 * time.Millisecond)}); err != nil {
		t.Fatalf("schedule sooner: %v", err)
	}

	first := waitEvent(t, engine.C(), time.Second)
	second := waitEvent(t, engine.C(), time.Second)
	if first.ID != "sooner" || second.ID != "later" {
		t.Fatalf("unexpected order: first=%s second=%s", first.ID, second.ID)
	}
	if first.Kind != KindRefresh || second.Kind != KindClear {
		t.Fatalf("unexpected kinds: %s %s", first.Kind, second.Kind)
	}
}

func TestEngineRepeatsEveryPeriod(t *testing.T) {
	engine := NewEngine(8)
	engine.Start()
	defer engine.Stop()

	if err := engine.Every("refresh", KindRefresh, 15*time.Millisecond); err != nil {
		t.Fatalf("every: %v", err)
	}
	for i := 0; i < 3; i++ {
		ev := waitEvent(t, engine.C(), time.Second)
		if ev.ID != "refresh" {
			t.Fatalf("unexpected event %q", ev.ID)
		}
	}
	if engine.Pending() != 1 {
		t.Fatalf("expected repeating event to stay armed, pending=%d", engine.Pending())
	}
}

func TestEngineCancel(t *testing.T) {
	engine := NewEngine(8)
	engine.Start()
	defer engine.Stop()

	if err := engine.Every("clear", KindClear, time.Hour); err != nil {
		t.Fatalf("every: %v", err)
	}
	if err := engine.Schedule(Event{ID: "once", Kind: KindRefresh, TriggerAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if removed := engine.Cancel("clear"); removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if engine.Pending() != 1 {
		t.Fatalf("expected 1 pending, got %d", engine.Pending())
	}
}

func TestPopDueRearmsRelativeToNowWhenBehind(t *testing.T) {
	engine := NewEngine(8)
	base := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)
	engine.push(Event{ID: "r", Kind: KindRefresh, TriggerAt: base, Every: time.Minute})

	late := base.Add(10 * time.Minute)
	due := engine.popDue(late)
	if len(due) != 1 {
		t.Fatalf("expected a single catch-up firing, got %d", len(due))
	}
	next, ok := engine.peek()
	if !ok || !next.TriggerAt.Equal(late.Add(time.Minute)) {
		t.Fatalf("unexpected re-arm time: %v", next.TriggerAt)
	}
}

func TestEngineNonBlockingDropsWhenConsumerIsSlow(t *testing.T) {
	engine := NewEngine(1)
	engine.Start()
	defer engine.Stop()

	now := time.Now().UTC().Add(20 * time.Millisecond)
	for i := 0; i < 25; i++ {
		if err := engine.Schedule(Event{
			ID:        "evt",
			Kind:      KindClear,
			TriggerAt: now,
		}); err != nil {
			t.Fatalf("schedule event: %v", err)
		}
	}

	time.Sleep(120 * time.Millisecond)
	if engine.Dropped() == 0 {
		t.Fatalf("expected dropped events > 0, got %d", engine.Dropped())
	}
}

func TestScheduleValidatesTriggerTime(t *testing.T) {
	engine := NewEngine(1)
	if err := engine.Schedule(Event{ID: "bad"}); err != ErrInvalidTriggerTime {
		t.Fatalf("expected ErrInvalidTriggerTime, got %v", err)
	}
	if err := engine.Every("bad", KindRefresh, 0); err != ErrInvalidTriggerTime {
		t.Fatalf("expected ErrInvalidTriggerTime for zero period, got %v", err)
	}
}

func TestScheduleAfterStop(t *testing.T) {
	engine := NewEngine(1)
	engine.Start()
	engine.Stop()
	if err := engine.Schedule(Event{ID: "late", TriggerAt: time.Now()}); err != ErrEngineStopped {
		t.Fatalf("expected ErrEngineStopped, got %v", err)
	}
}

func waitEvent(t *testing.T, ch <-chan Event, timeout time.Duration) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for event")
		return Event{}
	}
}
