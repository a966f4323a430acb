package scheduler

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestEngineStressRepeatingThenCancel(t *testing.T) {
	engine := NewEngine(1024)
	engine.Start()
	defer engine.Stop()

	const timers = 32
	const wantFires = 3
	period := 5 * time.Millisecond

	var wg sync.WaitGroup
	wg.Add(timers)
	for i := 0; i < timers; i++ {
		go func() {
			defer wg.Done()
			if err := engine.Every(fmt.Sprintf("poll-%d", i), KindRefresh, period); err != nil {
				t.Errorf("every failed: %v", err)
			}
		}()
	}
	wg.Wait()

	fired := make(map[string]int, timers)
	done := 0
	deadline := time.After(5 * time.Second)
	for done < timers {
		select {
		case <-deadline:
			t.Fatalf("timeout: %d of %d timers fired %d times, dropped=%d", done, timers, wantFires, engine.Dropped())
		case ev := <-engine.C():
			if ev.Kind != KindRefresh || ev.Every != period {
				t.Fatalf("unexpected event %+v", ev)
			}
			fired[ev.ID]++
			if fired[ev.ID] == wantFires {
				done++
			}
		}
	}

	wg.Add(timers)
	for i := 0; i < timers; i++ {
		go func() {
			defer wg.Done()
			engine.Cancel(fmt.Sprintf("poll-%d", i))
		}()
	}
	wg.Wait()

	if got := engine.Pending(); got != 0 {
		t.Fatalf("expected no pending events after cancel, got=%d", got)
	}

	// drain whatever was already buffered, then expect silence
	for {
		select {
		case <-engine.C():
			continue
		case <-time.After(10 * period):
		}
		break
	}
	select {
	case ev := <-engine.C():
		t.Fatalf("event fired after cancel: %+v", ev)
	case <-time.After(10 * period):
	}
}
