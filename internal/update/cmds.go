package update

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/taskfuse/internal/model"
	"github.com/sandeepkv93/taskfuse/internal/notify"
)

const requestTimeout = 30 * time.Second

func refreshCmd(r Refresher, now func() time.Time, scheduled bool) tea.Cmd {
	if r == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		snap, err := r.Refresh(ctx, now())
		return SnapshotMsg{Snapshot: snap, Err: err, Scheduled: scheduled}
	}
}

func loadCachedCmd(r Refresher) tea.Cmd {
	if r == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		snap, err := r.Cached(ctx)
		if err != nil {
			return nil
		}
		return CachedMsg{Snapshot: snap}
	}
}

func toggleCmd(c Completer, id int64, completed bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		task, err := c.SetCompleted(ctx, id, completed)
		return ToggledMsg{Task: task, Err: err}
	}
}

func createCmd(e Editor, draft model.TaskDraft) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		task, err := e.CreateTask(ctx, draft)
		return SavedMsg{Task: task, Created: true, Err: err}
	}
}

func updateCmd(e Editor, id int64, patch model.TaskPatch) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		task, err := e.UpdateTask(ctx, id, patch)
		return SavedMsg{Task: task, Err: err}
	}
}

func deleteCmd(e Editor, task model.Task) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		err := e.DeleteTask(ctx, task.ID)
		return DeletedMsg{ID: task.ID, Title: task.Title, Err: err}
	}
}

func refreshAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return RefreshDueMsg{} })
}

func tickAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func clearAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return ClearDueMsg{} })
}

func hideBannerAfter(ev notify.Event, now time.Time) tea.Cmd {
	wait := ev.HideAt.Sub(now)
	if wait < 0 {
		wait = 0
	}
	id := ev.ID
	return tea.Tick(wait, func(time.Time) tea.Msg { return HideBannerMsg{ID: id} })
}

func waitForAlertCmd(ch <-chan notify.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return AlertMsg{Event: ev}
	}
}
