package update

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/taskfuse/internal/api"
	"github.com/sandeepkv93/taskfuse/internal/model"
	"github.com/sandeepkv93/taskfuse/internal/views"
)

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tickAfter(m.opts.TickInterval),
		clearAfter(m.opts.ClearInterval),
		waitForAlertCmd(m.deps.Alerts),
	}
	if m.deps.Refresher != nil {
		cmds = append(cmds,
			loadCachedCmd(m.deps.Refresher),
			refreshCmd(m.deps.Refresher, m.deps.Now, true),
			m.fetchSpinner.Tick,
		)
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := m.update(msg)
	next.syncDetail()
	return next, cmd
}

func (m Model) update(msg tea.Msg) (Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(typed.Width, typed.Height)
		return m, nil
	case tea.KeyMsg:
		if m.Palette.Active {
			return m.handlePaletteKey(typed)
		}
		if m.ConfirmDelete != nil {
			return m.handleConfirmKey(typed)
		}
		return m.handleKey(typed)
	case spinner.TickMsg:
		if m.Fetching {
			var cmd tea.Cmd
			m.fetchSpinner, cmd = m.fetchSpinner.Update(typed)
			return m, cmd
		}
		return m, nil
	case RefreshDueMsg:
		if m.Fetching {
			// a manual refresh is in flight; keep the timer loop alive
			return m, refreshAfter(m.opts.RefreshInterval)
		}
		m.Fetching = true
		return m, tea.Batch(m.fetchSpinner.Tick, refreshCmd(m.deps.Refresher, m.deps.Now, true))
	case SnapshotMsg:
		m.applySnapshot(typed)
		if typed.Scheduled {
			return m, refreshAfter(m.opts.RefreshInterval)
		}
		return m, nil
	case CachedMsg:
		if m.FetchedAt.IsZero() && len(m.Tasks) == 0 && len(typed.Snapshot.Tasks) > 0 {
			m.Tasks = typed.Snapshot.Tasks
			m.FetchedAt = typed.Snapshot.FetchedAt
			m.Stale = true
			m.syncCursor(m.visibleRows())
		}
		return m, nil
	case TickMsg:
		if m.Banner != nil && !m.now().Before(m.Banner.HideAt) {
			m.Banner = nil
		}
		return m, tickAfter(m.opts.TickInterval)
	case ClearDueMsg:
		if m.deps.Seen != nil {
			m.deps.Seen.Sweep()
		}
		return m, clearAfter(m.opts.ClearInterval)
	case AlertMsg:
		ev := typed.Event
		m.Banner = &ev
		m.Recent = append(m.Recent, ev)
		if len(m.Recent) > maxRecentAlerts {
			m.Recent = m.Recent[len(m.Recent)-maxRecentAlerts:]
		}
		return m, tea.Batch(hideBannerAfter(ev, m.now()), waitForAlertCmd(m.deps.Alerts))
	case HideBannerMsg:
		if m.Banner != nil && m.Banner.ID == typed.ID {
			m.Banner = nil
		}
		return m, nil
	case ToggledMsg:
		if typed.Err != nil {
			m.LastError = typed.Err
			m.Status = StatusBar{Text: "update failed: " + describeError(typed.Err), IsError: true}
			return m, nil
		}
		m.replaceTask(typed.Task)
		if typed.Task.Done() {
			m.Status = StatusBar{Text: fmt.Sprintf("marked done: %s", typed.Task.Title)}
		} else {
			m.Status = StatusBar{Text: fmt.Sprintf("reopened: %s", typed.Task.Title)}
		}
		m.syncCursor(m.visibleRows())
		return m, nil
	case SavedMsg:
		if typed.Err != nil {
			m.LastError = typed.Err
			m.Status = StatusBar{Text: "save failed: " + describeError(typed.Err), IsError: true}
			return m, nil
		}
		if typed.Created {
			m.Tasks = append(m.Tasks, typed.Task)
			m.SelectedID = typed.Task.ID
			m.Status = StatusBar{Text: fmt.Sprintf("created: %s", typed.Task.Title)}
		} else {
			m.replaceTask(typed.Task)
			m.Status = StatusBar{Text: fmt.Sprintf("saved: %s", typed.Task.Title)}
		}
		m.syncCursor(m.visibleRows())
		return m, nil
	case DeletedMsg:
		if typed.Err != nil {
			m.LastError = typed.Err
			m.Status = StatusBar{Text: "delete failed: " + describeError(typed.Err), IsError: true}
			return m, nil
		}
		m.removeTask(typed.ID)
		m.Status = StatusBar{Text: fmt.Sprintf("deleted: %s", typed.Title)}
		m.syncCursor(m.visibleRows())
		return m, nil
	case SetStatusMsg:
		m.Status = StatusBar{Text: typed.Text, IsError: typed.IsError}
		return m, nil
	case ClearStatusMsg:
		m.Status = StatusBar{}
		return m, nil
	case AppErrorMsg:
		m.LastError = typed.Err
		if typed.Err != nil {
			m.Status = StatusBar{Text: typed.Err.Error(), IsError: true}
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Keys.Quit):
		m.Quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.Keys.Help):
		m.HelpVisible = !m.HelpVisible
		m.helpModel.ShowAll = m.HelpVisible
		return m, nil
	case key.Matches(msg, m.Keys.Palette):
		m.Palette = CommandPaletteState{Active: true}
		m.commandInput.SetValue("")
		return m, m.commandInput.Focus()
	case key.Matches(msg, m.Keys.Down):
		m.moveCursor(1)
		return m, nil
	case key.Matches(msg, m.Keys.Up):
		m.moveCursor(-1)
		return m, nil
	case key.Matches(msg, m.Keys.Refresh):
		return m.startManualRefresh()
	case key.Matches(msg, m.Keys.Toggle):
		return m.toggleSelected()
	case key.Matches(msg, m.Keys.NewTask):
		m.Palette = CommandPaletteState{Active: true, Input: "add "}
		m.commandInput.SetValue("add ")
		m.commandInput.CursorEnd()
		return m, m.commandInput.Focus()
	case key.Matches(msg, m.Keys.Delete):
		m.requestDelete()
		return m, nil
	case key.Matches(msg, m.Keys.Clear):
		m.clearSeen()
		return m, nil
	}
	return m, nil
}

// handleConfirmKey resolves a pending delete: "y" deletes, anything else
// cancels.
func (m Model) handleConfirmKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	task := *m.ConfirmDelete
	m.ConfirmDelete = nil
	switch msg.String() {
	case "y", "Y":
		m.Status = StatusBar{Text: fmt.Sprintf("deleting: %s", task.Title)}
		return m, deleteCmd(m.deps.Editor, task)
	case "ctrl+c":
		m.Quitting = true
		return m, tea.Quit
	}
	m.Status = StatusBar{Text: "delete cancelled"}
	return m, nil
}

func (m *Model) requestDelete() {
	task, ok := m.selectedTask()
	if !ok {
		m.Status = StatusBar{Text: "no task selected", IsError: true}
		return
	}
	if m.deps.Editor == nil {
		m.Status = StatusBar{Text: "task editing is unavailable", IsError: true}
		return
	}
	m.ConfirmDelete = &task
	m.Status = StatusBar{Text: fmt.Sprintf("delete %q? press y to confirm", task.Title)}
}

func (m Model) startManualRefresh() (Model, tea.Cmd) {
	if m.deps.Refresher == nil {
		m.Status = StatusBar{Text: "no task source configured", IsError: true}
		return m, nil
	}
	if m.Fetching {
		m.Status = StatusBar{Text: "refresh already running"}
		return m, nil
	}
	m.Fetching = true
	m.Status = StatusBar{Text: "refreshing"}
	return m, tea.Batch(m.fetchSpinner.Tick, refreshCmd(m.deps.Refresher, m.deps.Now, false))
}

func (m Model) toggleSelected() (Model, tea.Cmd) {
	task, ok := m.selectedTask()
	if !ok {
		m.Status = StatusBar{Text: "no task selected", IsError: true}
		return m, nil
	}
	if m.deps.Completer == nil {
		m.Status = StatusBar{Text: "task updates are unavailable", IsError: true}
		return m, nil
	}
	m.Status = StatusBar{Text: fmt.Sprintf("updating: %s", task.Title)}
	return m, toggleCmd(m.deps.Completer, task.ID, !task.Done())
}

func (m *Model) clearSeen() {
	if m.deps.Seen == nil {
		return
	}
	m.deps.Seen.Clear(context.Background())
	m.Status = StatusBar{Text: "seen notifications cleared"}
}

func (m *Model) applySnapshot(msg SnapshotMsg) {
	m.Fetching = false
	snap := msg.Snapshot
	if msg.Err != nil {
		m.LastError = msg.Err
		m.Stale = true
		if len(snap.Tasks) > 0 {
			m.Tasks = snap.Tasks
			m.FetchedAt = snap.FetchedAt
		}
		m.Status = StatusBar{Text: "refresh failed: " + describeError(msg.Err), IsError: true}
	} else {
		m.LastError = nil
		m.Stale = false
		m.Tasks = snap.Tasks
		m.FetchedAt = snap.FetchedAt
		if m.Status.IsError {
			m.Status = StatusBar{}
		}
	}
	m.syncCursor(m.visibleRows())
}

func describeError(err error) string {
	var statusErr *api.StatusError
	switch {
	case errors.Is(err, api.ErrUnauthorized):
		return "session expired, run `taskfuse login`"
	case errors.Is(err, api.ErrUnavailable):
		return "backend unavailable, showing cached tasks"
	case errors.Is(err, model.ErrDueInPast):
		return "due date is in the past"
	case errors.Is(err, api.ErrTaskNotFound):
		return "task no longer exists, refresh to update"
	case errors.Is(err, api.ErrInvalidTask) && errors.As(err, &statusErr):
		return "backend rejected the task: " + statusErr.Detail
	default:
		return err.Error()
	}
}

func (m Model) View() string {
	if m.Quitting {
		return ""
	}
	now := m.now()

	fetched := ""
	if !m.FetchedAt.IsZero() {
		fetched = m.FetchedAt.Local().Format("15:04:05")
	}
	spin := ""
	if m.Fetching {
		spin = m.fetchSpinner.View()
	}

	banner := ""
	if m.Banner != nil && now.Before(m.Banner.HideAt) {
		banner = views.RenderBanner(string(m.Banner.Severity), m.Banner.Message)
	}

	overlay := strings.TrimSpace(strings.Join([]string{
		m.renderCommandPalette(),
		m.renderHelpIfVisible(),
	}, "\n"))

	return views.RenderApp(views.AppData{
		Header:     views.RenderHeader(m.deps.User, fetched, m.Stale, spin),
		Banner:     banner,
		ListPane:   m.renderTaskList(),
		DetailPane: m.renderDetailPane(),
		Overlay:    overlay,
		StatusLine: m.Status.Text,
		StatusErr:  m.Status.IsError,
		Footer:     m.helpModel.ShortHelpView(m.Keys.ShortHelp()),
		Width:      m.width,
	})
}
