// Package deadline turns the current task list into overdue and due-soon
// alerts.
package deadline

import (
	"context"
	"fmt"
	"time"

	"github.com/sandeepkv93/taskfuse/internal/dedup"
	"github.com/sandeepkv93/taskfuse/internal/model"
	"github.com/sandeepkv93/taskfuse/internal/notify"
)

const DefaultSoon = time.Hour

const (
	KindOverdue = "overdue"
	KindSoon    = "soon"
)

// KeyMode picks the suppression key for generated alerts.
type KeyMode int

const (
	// KeyByTask suppresses per task and alert kind, so renaming a task does
	// not re-alert.
	KeyByTask KeyMode = iota
	// KeyByMessage suppresses on the literal text and severity.
	KeyByMessage
)

// Shower admits and displays an event, reporting whether it was shown.
type Shower interface {
	Show(ctx context.Context, ev notify.Event) bool
}

type Checker struct {
	Soon time.Duration
	Keys KeyMode
}

func NewChecker(soon time.Duration, keys KeyMode) Checker {
	if soon <= 0 {
		soon = DefaultSoon
	}
	return Checker{Soon: soon, Keys: keys}
}

// Alert is the alert a task warrants at now, if any.
func (c Checker) Alert(now time.Time, task model.Task) (notify.Event, bool) {
	if !task.HasDeadline() || task.Done() {
		return notify.Event{}, false
	}
	soon := c.Soon
	if soon <= 0 {
		soon = DefaultSoon
	}

	var ev notify.Event
	switch due := *task.DueAt; {
	case now.After(due):
		ev = notify.Event{
			Kind:     KindOverdue,
			Message:  fmt.Sprintf("Task '%s' deadline has passed", task.Title),
			Severity: model.SeverityError,
		}
	case due.Sub(now) <= soon:
		ev = notify.Event{
			Kind:     KindSoon,
			Message:  fmt.Sprintf("Less than %s remaining for task '%s'", soonPhrase(soon), task.Title),
			Severity: model.SeverityUrgent,
		}
	default:
		return notify.Event{}, false
	}

	ev.TaskID = task.ID
	if c.Keys == KeyByTask {
		ev.Key = dedup.TaskKey(task.ID, ev.Kind)
	} else {
		ev.Key = dedup.LiteralKey(ev.Message, ev.Severity)
	}
	return ev, true
}

// Scan offers every warranted alert to shower and returns the ones shown.
func (c Checker) Scan(ctx context.Context, now time.Time, tasks []model.Task, shower Shower) []notify.Event {
	shown := make([]notify.Event, 0)
	for _, task := range tasks {
		ev, ok := c.Alert(now, task)
		if !ok {
			continue
		}
		if shower.Show(ctx, ev) {
			shown = append(shown, ev)
		}
	}
	return shown
}

func soonPhrase(d time.Duration) string {
	if d == time.Hour {
		return "one hour"
	}
	if d%time.Hour == 0 {
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	}
	if d%time.Minute == 0 {
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
	return d.String()
}
