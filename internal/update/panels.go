package update

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/taskfuse/internal/commands"
	"github.com/sandeepkv93/taskfuse/internal/model"
	"github.com/sandeepkv93/taskfuse/internal/views"
)

func (m *Model) resize(width, height int) {
	if width > 0 {
		m.width = width
	}
	if height > 0 {
		m.height = height
	}
	listWidth, detailWidth := views.PaneWidths(m.width)
	barWidth := listWidth - 30
	if barWidth < 10 {
		barWidth = 10
	}
	for tier, bar := range m.tierBars {
		bar.Width = barWidth
		m.tierBars[tier] = bar
	}
	m.detail.Width = detailWidth - 4
	m.detail.Height = m.height / 2
	if m.detail.Height < 6 {
		m.detail.Height = 6
	}
	m.commandInput.Width = listWidth - 8
	m.helpModel.Width = m.width
	m.detailKey = ""
}

// syncDetail re-renders the selected task's description when the
// selection, its text or the pane width changes.
func (m *Model) syncDetail() {
	task, ok := m.selectedTask()
	if !ok {
		if m.detailKey != "" {
			m.detail.SetContent("")
			m.detailKey = ""
		}
		return
	}
	k := fmt.Sprintf("%d|%d|%s", task.ID, m.detail.Width, task.Description)
	if k == m.detailKey {
		return
	}
	m.detailKey = k
	md := task.Description
	if strings.TrimSpace(md) == "" {
		md = "_No description_"
	}
	m.detail.SetContent(views.RenderMarkdown(md, m.detail.Width))
	m.detail.GotoTop()
}

func (m Model) renderTaskList() string {
	rows := m.visibleRows()
	data := views.TaskListData{
		Filter: string(m.Filter),
		Sort:   sortDescription(m.SortField, m.SortDesc),
		Total:  len(m.Tasks),
		Rows:   make([]views.TaskRowData, 0, len(rows)),
	}
	for _, row := range rows {
		item := views.TaskRowData{
			Title:    row.Task.Title,
			Label:    rowLabel(row),
			Tier:     string(row.Fuse.Tier),
			Expired:  row.HasFuse && row.Fuse.IsExpired,
			Done:     row.Task.Done(),
			Selected: row.Task.ID == m.SelectedID,
			NoFuse:   !row.HasFuse || row.Task.Done(),
		}
		if row.HasFuse && !row.Task.Done() {
			if bar, ok := m.tierBars[row.Fuse.Tier]; ok {
				item.Bar = bar.ViewAs(row.Fuse.Fraction())
			}
		}
		data.Rows = append(data.Rows, item)
	}
	return views.RenderTaskList(data)
}

func (m Model) renderDetailPane() string {
	task, ok := m.selectedTask()
	if !ok {
		return views.RenderDetail(views.DetailData{}, "")
	}
	row := buildRow(m.now(), task)
	data := views.DetailData{
		Title:   task.Title,
		State:   stateText(task),
		Created: task.CreatedAt.Local().Format("2006-01-02 15:04"),
		Label:   rowLabel(row),
	}
	if task.HasDeadline() {
		data.Due = task.DueAt.Local().Format("2006-01-02 15:04")
	}
	return views.RenderDetail(data, m.detail.View())
}

func (m Model) renderCommandPalette() string {
	return views.RenderCommandPalette(m.Palette.Active, m.commandInput.View())
}

func (m Model) handlePaletteKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closePalette()
		m.Status = StatusBar{Text: "command palette closed"}
		return m, nil
	case "enter":
		m.Palette.Input = m.commandInput.Value()
		return m.executePaletteCommand()
	case "ctrl+c":
		m.Quitting = true
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.commandInput, cmd = m.commandInput.Update(msg)
	m.Palette.Input = m.commandInput.Value()
	return m, cmd
}

func (m *Model) closePalette() {
	m.Palette = CommandPaletteState{}
	m.commandInput.SetValue("")
	m.commandInput.Blur()
}

func (m Model) executePaletteCommand() (Model, tea.Cmd) {
	raw := strings.TrimSpace(m.Palette.Input)
	m.closePalette()
	m.Status = StatusBar{}

	cmd, err := commands.Parse(raw)
	if err != nil {
		m.Status = StatusBar{Text: err.Error(), IsError: true}
		return m, nil
	}
	now := m.now()

	var follow tea.Cmd
	res, err := commands.Execute(cmd, commands.Handlers{
		Filter: func(a commands.FilterArgs) (commands.Result, error) {
			m.Filter = a.Mode
			m.syncCursor(m.visibleRows())
			return commands.Result{Message: fmt.Sprintf("filter: %s", a.Mode)}, nil
		},
		Sort: func(a commands.SortArgs) (commands.Result, error) {
			m.SortField = a.Field
			m.SortDesc = a.Desc
			m.syncCursor(m.visibleRows())
			return commands.Result{Message: "sort: " + sortDescription(a.Field, a.Desc)}, nil
		},
		Refresh: func() (commands.Result, error) {
			m, follow = m.startManualRefresh()
			return commands.Result{Message: m.Status.Text}, nil
		},
		Clear: func() (commands.Result, error) {
			if m.deps.Seen == nil {
				return commands.Result{}, &commands.CommandError{Code: commands.ErrCodeHandlerMissing, Message: "no notification center"}
			}
			m.clearSeen()
			return commands.Result{Message: m.Status.Text}, nil
		},
		Done: func() (commands.Result, error) {
			m, follow = m.toggleSelected()
			return commands.Result{Message: m.Status.Text}, nil
		},
		Add: func(a commands.AddArgs) (commands.Result, error) {
			if m.deps.Editor == nil {
				return commands.Result{}, errEditingUnavailable
			}
			draft := model.TaskDraft{Title: a.Title}
			if a.Due != nil {
				draft.DueAt = a.Due.Resolve(now)
			}
			if err := draft.Validate(now); err != nil {
				return commands.Result{}, err
			}
			follow = createCmd(m.deps.Editor, draft)
			return commands.Result{Message: fmt.Sprintf("creating: %s", strings.TrimSpace(a.Title))}, nil
		},
		Due: func(a commands.DueArgs) (commands.Result, error) {
			patch := model.TaskPatch{ClearDue: a.When.Clear, DueAt: a.When.Resolve(now)}
			return m.editSelected(now, patch, &follow)
		},
		Rename: func(a commands.TextArgs) (commands.Result, error) {
			return m.editSelected(now, model.TaskPatch{Title: &a.Text}, &follow)
		},
		Desc: func(a commands.TextArgs) (commands.Result, error) {
			return m.editSelected(now, model.TaskPatch{Description: &a.Text}, &follow)
		},
		Remove: func() (commands.Result, error) {
			m.requestDelete()
			return commands.Result{Message: m.Status.Text}, nil
		},
	})
	if err != nil {
		m.Status = StatusBar{Text: describeError(err), IsError: true}
		return m, nil
	}
	if m.Status.IsError {
		return m, follow
	}
	m.Status = StatusBar{Text: res.Message}
	return m, follow
}

var errEditingUnavailable = errors.New("task editing is unavailable")

// editSelected validates patch against the selected task and queues the
// update.
func (m Model) editSelected(now time.Time, patch model.TaskPatch, follow *tea.Cmd) (commands.Result, error) {
	task, ok := m.selectedTask()
	if !ok {
		return commands.Result{}, errors.New("no task selected")
	}
	if m.deps.Editor == nil {
		return commands.Result{}, errEditingUnavailable
	}
	if err := patch.Validate(now); err != nil {
		return commands.Result{}, err
	}
	*follow = updateCmd(m.deps.Editor, task.ID, patch)
	return commands.Result{Message: fmt.Sprintf("saving: %s", task.Title)}, nil
}
