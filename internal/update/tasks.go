package update

import (
	"sort"
	"strings"
	"time"

	"github.com/sandeepkv93/taskfuse/internal/commands"
	"github.com/sandeepkv93/taskfuse/internal/fuse"
	"github.com/sandeepkv93/taskfuse/internal/model"
)

type taskRow struct {
	Task    model.Task
	Fuse    fuse.Result
	HasFuse bool
}

func buildRow(now time.Time, t model.Task) taskRow {
	res, ok := fuse.Compute(now, t.CreatedAt, t.DueAt, t.Done())
	return taskRow{Task: t, Fuse: res, HasFuse: ok}
}

// visibleRows applies the current filter and sort to the task list.
func (m Model) visibleRows() []taskRow {
	now := m.now()
	rows := make([]taskRow, 0, len(m.Tasks))
	for _, t := range m.Tasks {
		row := buildRow(now, t)
		if matchesFilter(m.Filter, now, row) {
			rows = append(rows, row)
		}
	}
	sortRows(rows, m.SortField, m.SortDesc)
	return rows
}

func matchesFilter(mode commands.FilterMode, now time.Time, row taskRow) bool {
	switch mode {
	case commands.FilterActive:
		return !row.Task.Done()
	case commands.FilterOverdue:
		return row.Task.Overdue(now)
	case commands.FilterUrgent:
		return !row.Task.Done() && row.HasFuse && row.Fuse.Tier == fuse.TierUrgent
	case commands.FilterDone:
		return row.Task.Done()
	default:
		return true
	}
}

// sortRows orders rows by field; rows missing the field sort last in
// either direction and ties fall back to task ID.
func sortRows(rows []taskRow, field commands.SortField, desc bool) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch field {
		case commands.SortCreated:
			if !a.Task.CreatedAt.Equal(b.Task.CreatedAt) {
				return desc != a.Task.CreatedAt.Before(b.Task.CreatedAt)
			}
		case commands.SortTitle:
			at, bt := strings.ToLower(a.Task.Title), strings.ToLower(b.Task.Title)
			if at != bt {
				return desc != (at < bt)
			}
		case commands.SortProgress:
			if a.HasFuse != b.HasFuse {
				return a.HasFuse
			}
			if a.HasFuse && a.Fuse.PercentRemaining != b.Fuse.PercentRemaining {
				return desc != (a.Fuse.PercentRemaining < b.Fuse.PercentRemaining)
			}
		default:
			if a.Task.HasDeadline() != b.Task.HasDeadline() {
				return a.Task.HasDeadline()
			}
			if a.Task.HasDeadline() && !a.Task.DueAt.Equal(*b.Task.DueAt) {
				return desc != a.Task.DueAt.Before(*b.Task.DueAt)
			}
		}
		return a.Task.ID < b.Task.ID
	})
}

// syncCursor keeps the selection on the same task across refreshes, filter
// and sort changes, falling back to the nearest row.
func (m *Model) syncCursor(rows []taskRow) {
	if len(rows) == 0 {
		m.Cursor = 0
		m.SelectedID = 0
		return
	}
	for i, row := range rows {
		if row.Task.ID == m.SelectedID {
			m.Cursor = i
			return
		}
	}
	if m.Cursor >= len(rows) {
		m.Cursor = len(rows) - 1
	}
	if m.Cursor < 0 {
		m.Cursor = 0
	}
	m.SelectedID = rows[m.Cursor].Task.ID
}

func (m *Model) moveCursor(delta int) {
	rows := m.visibleRows()
	m.syncCursor(rows)
	if len(rows) == 0 {
		return
	}
	m.Cursor += delta
	if m.Cursor < 0 {
		m.Cursor = 0
	}
	if m.Cursor >= len(rows) {
		m.Cursor = len(rows) - 1
	}
	m.SelectedID = rows[m.Cursor].Task.ID
}

func (m Model) selectedTask() (model.Task, bool) {
	if m.SelectedID == 0 {
		return model.Task{}, false
	}
	for _, t := range m.Tasks {
		if t.ID == m.SelectedID {
			return t, true
		}
	}
	return model.Task{}, false
}

func (m *Model) replaceTask(updated model.Task) bool {
	for i := range m.Tasks {
		if m.Tasks[i].ID == updated.ID {
			m.Tasks[i] = updated
			return true
		}
	}
	return false
}

func (m *Model) removeTask(id int64) bool {
	for i := range m.Tasks {
		if m.Tasks[i].ID == id {
			m.Tasks = append(m.Tasks[:i:i], m.Tasks[i+1:]...)
			return true
		}
	}
	return false
}

func sortDescription(field commands.SortField, desc bool) string {
	if desc {
		return string(field) + " desc"
	}
	return string(field) + " asc"
}

func rowLabel(row taskRow) string {
	switch {
	case row.Task.Done():
		return "Completed"
	case !row.HasFuse && row.Task.HasDeadline():
		return "Due " + row.Task.DueAt.Local().Format("Jan 2 15:04")
	case !row.HasFuse:
		return "No deadline"
	default:
		return fuse.Label(row.Fuse)
	}
}

func stateText(t model.Task) string {
	if t.Done() {
		return "completed"
	}
	if t.Status != nil {
		return t.Status.String()
	}
	return "open"
}
