package deadline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandeepkv93/taskfuse/internal/dedup"
	"github.com/sandeepkv93/taskfuse/internal/model"
	"github.com/sandeepkv93/taskfuse/internal/notify"
)

var now = time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := now.Add(d)
	return &t
}

func newCenter() *notify.Center {
	return notify.NewCenter(dedup.NewCache(time.Hour), nil).WithClock(func() time.Time { return now })
}

func TestScan_OverdueAndSoon(t *testing.T) {
	tasks := []model.Task{
		{ID: 1, Title: "Report", DueAt: at(-time.Minute), CreatedAt: now.Add(-24 * time.Hour)},
		{ID: 2, Title: "Call", DueAt: at(40 * time.Minute), CreatedAt: now.Add(-time.Hour)},
		{ID: 3, Title: "Later", DueAt: at(3 * time.Hour), CreatedAt: now.Add(-time.Hour)},
		{ID: 4, Title: "Someday", CreatedAt: now.Add(-time.Hour)},
		{ID: 5, Title: "Finished", DueAt: at(-time.Hour), CreatedAt: now.Add(-2 * time.Hour), Completed: true},
	}

	shown := NewChecker(time.Hour, KeyByTask).Scan(context.Background(), now, tasks, newCenter())

	require.Len(t, shown, 2)
	assert.Equal(t, "Task 'Report' deadline has passed", shown[0].Message)
	assert.Equal(t, model.SeverityError, shown[0].Severity)
	assert.Equal(t, "task:1|overdue", shown[0].Key)
	assert.Equal(t, "Less than one hour remaining for task 'Call'", shown[1].Message)
	assert.Equal(t, model.SeverityUrgent, shown[1].Severity)
	assert.Equal(t, "task:2|soon", shown[1].Key)
}

func TestScan_SecondScanSuppressed(t *testing.T) {
	tasks := []model.Task{
		{ID: 1, Title: "Report", DueAt: at(-time.Minute), CreatedAt: now.Add(-time.Hour)},
	}
	center := newCenter()
	checker := NewChecker(0, KeyByMessage)

	assert.Len(t, checker.Scan(context.Background(), now, tasks, center), 1)
	assert.Empty(t, checker.Scan(context.Background(), now, tasks, center))

	center.Clear(context.Background())
	assert.Len(t, checker.Scan(context.Background(), now, tasks, center), 1)
}

func TestAlert_Boundaries(t *testing.T) {
	c := NewChecker(time.Hour, KeyByTask)

	_, ok := c.Alert(now, model.Task{ID: 1, Title: "x", DueAt: at(time.Hour + time.Second)})
	assert.False(t, ok, "just outside the soon window")

	ev, ok := c.Alert(now, model.Task{ID: 1, Title: "x", DueAt: at(time.Hour)})
	require.True(t, ok)
	assert.Equal(t, KindSoon, ev.Kind)

	ev, ok = c.Alert(now, model.Task{ID: 1, Title: "x", DueAt: at(0)})
	require.True(t, ok)
	assert.Equal(t, KindSoon, ev.Kind, "due exactly now is not yet past")

	status := model.StatusDone
	_, ok = c.Alert(now, model.Task{ID: 1, Title: "x", DueAt: at(-time.Hour), Status: &status})
	assert.False(t, ok, "done via status")
}

func TestAlert_KeyByMessage(t *testing.T) {
	ev, ok := NewChecker(time.Hour, KeyByMessage).Alert(now, model.Task{ID: 9, Title: "Ship", DueAt: at(-time.Second)})
	require.True(t, ok)
	assert.Equal(t, "Task 'Ship' deadline has passed|error", ev.Key)
}

func TestSoonPhrase(t *testing.T) {
	assert.Equal(t, "one hour", soonPhrase(time.Hour))
	assert.Equal(t, "2 hours", soonPhrase(2*time.Hour))
	assert.Equal(t, "30 minutes", soonPhrase(30*time.Minute))
}
