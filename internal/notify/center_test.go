package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sandeepkv93/taskfuse/internal/dedup"
	"github.com/sandeepkv93/taskfuse/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	events []Event
}

func (r *recordingSink) Deliver(_ context.Context, ev Event) error {
	r.events = append(r.events, ev)
	return nil
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

type failingSuppressor struct{}

func (failingSuppressor) Admit(context.Context, string, time.Time) (bool, error) {
	return false, errors.New("connection refused")
}

func (failingSuppressor) Clear(context.Context) error { return errors.New("connection refused") }

func newTestCenter(sinks ...Sink) (*Center, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)}
	c := NewCenter(dedup.NewCache(time.Hour), nil, sinks...).WithClock(clock.Now)
	return c, clock
}

func TestCenter_TryShowTwiceThenClear(t *testing.T) {
	sink := &recordingSink{}
	c, _ := newTestCenter(sink)

	assert.True(t, c.TryShow("Task 'a' deadline has passed", model.SeverityError))
	assert.False(t, c.TryShow("Task 'a' deadline has passed", model.SeverityError))
	require.Len(t, sink.events, 1)

	c.Clear(context.Background())
	assert.True(t, c.TryShow("Task 'a' deadline has passed", model.SeverityError))
	assert.Len(t, sink.events, 2)
}

func TestCenter_DistinctTextIsDistinctKey(t *testing.T) {
	c, _ := newTestCenter()
	assert.True(t, c.TryShow("Task 'a' deadline has passed", model.SeverityError))
	assert.True(t, c.TryShow("Task 'b' deadline has passed", model.SeverityError))
	assert.True(t, c.TryShow("Task 'a' deadline has passed", model.SeverityUrgent))
}

func TestCenter_StampsEvent(t *testing.T) {
	sink := &recordingSink{}
	c, clock := newTestCenter(sink)
	c.WithDisplayDuration(3 * time.Second)

	ok := c.Show(context.Background(), Event{Key: "task:1|overdue", TaskID: 1, Kind: "overdue", Message: "m", Severity: model.SeverityError})
	require.True(t, ok)
	require.Len(t, sink.events, 1)

	ev := sink.events[0]
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "task:1|overdue", ev.Key)
	assert.Equal(t, clock.t, ev.ShownAt)
	assert.Equal(t, clock.t.Add(3*time.Second), ev.HideAt)
}

func TestCenter_WindowExpiry(t *testing.T) {
	c, clock := newTestCenter()
	assert.True(t, c.TryShow("m", model.SeverityUrgent))
	clock.t = clock.t.Add(59 * time.Minute)
	assert.False(t, c.TryShow("m", model.SeverityUrgent))
	clock.t = clock.t.Add(2 * time.Minute)
	assert.True(t, c.TryShow("m", model.SeverityUrgent))
}

func TestCenter_Sweep(t *testing.T) {
	c, clock := newTestCenter()
	c.TryShow("m", model.SeverityUrgent)
	clock.t = clock.t.Add(2 * time.Hour)
	assert.Equal(t, 1, c.Sweep())
}

func TestCenter_RejectsInvalidSeverity(t *testing.T) {
	sink := &recordingSink{}
	c, _ := newTestCenter(sink)
	assert.False(t, c.TryShow("m", model.Severity("loud")))
	assert.Empty(t, sink.events)
}

func TestCenter_FailsOpenWhenSuppressorErrors(t *testing.T) {
	sink := &recordingSink{}
	c := NewCenter(failingSuppressor{}, nil, sink)
	assert.True(t, c.TryShow("m", model.SeverityError))
	assert.True(t, c.TryShow("m", model.SeverityError))
	assert.Len(t, sink.events, 2)
	c.Clear(context.Background())
}

func TestCenter_SinkErrorDoesNotStopOthers(t *testing.T) {
	sink := &recordingSink{}
	broken := SinkFunc(func(context.Context, Event) error { return errors.New("boom") })
	c, _ := newTestCenter(broken, sink)
	assert.True(t, c.TryShow("m", model.SeverityWarning))
	assert.Len(t, sink.events, 1)
}

func TestBellSink_RingsOnlyForUrgent(t *testing.T) {
	var buf bytes.Buffer
	s := BellSink{W: &buf}
	require.NoError(t, s.Deliver(context.Background(), Event{Severity: model.SeverityError}))
	assert.Empty(t, buf.String())
	require.NoError(t, s.Deliver(context.Background(), Event{Severity: model.SeverityUrgent}))
	assert.Equal(t, "\a", buf.String())
}

func TestDesktopSink_LinuxArgs(t *testing.T) {
	var gotName string
	var gotArgs []string
	s := NewDesktopSink(5000)
	s.GOOS = "linux"
	s.Run = func(name string, args ...string) error {
		gotName = name
		gotArgs = args
		return nil
	}
	require.NoError(t, s.Deliver(context.Background(), Event{Message: "soon", Severity: model.SeverityUrgent}))
	assert.Equal(t, "notify-send", gotName)
	assert.Equal(t, []string{"-a", "taskfuse", "-u", "critical", "-t", "5000", "taskfuse", "soon"}, gotArgs)
}

func TestDesktopSink_DarwinEscapesQuotes(t *testing.T) {
	var gotArgs []string
	s := NewDesktopSink(0)
	s.GOOS = "darwin"
	s.Run = func(_ string, args ...string) error {
		gotArgs = args
		return nil
	}
	require.NoError(t, s.Deliver(context.Background(), Event{Message: `say "hi"`, Severity: model.SeveritySuccess}))
	require.Len(t, gotArgs, 2)
	assert.Contains(t, gotArgs[1], `say \"hi\"`)
}

func TestChanSink_DropsWhenFull(t *testing.T) {
	s := NewChanSink(1)
	require.NoError(t, s.Deliver(context.Background(), Event{ID: "1"}))
	require.NoError(t, s.Deliver(context.Background(), Event{ID: "2"}))
	assert.Equal(t, uint64(1), s.Dropped())
	assert.Equal(t, "1", (<-s.C()).ID)
}

func TestEncodeEventAndRoutingKey(t *testing.T) {
	ev := Event{
		ID:       "id-1",
		Key:      "task:3|soon",
		TaskID:   3,
		Kind:     "soon",
		Message:  "Less than one hour remaining for task 'x'",
		Severity: model.SeverityUrgent,
		ShownAt:  time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC),
	}
	body, err := encodeEvent(ev)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "urgent", decoded["severity"])
	assert.Equal(t, "2026-02-09T12:00:00Z", decoded["shown_at"])
	assert.Equal(t, "notification.urgent.soon", routingKey(ev))
	assert.Equal(t, "notification.error", routingKey(Event{Severity: model.SeverityError}))
}

func TestCenter_TryShowKeyedSuppressesByKeyNotText(t *testing.T) {
	sink := &recordingSink{}
	c, _ := newTestCenter(sink)

	key := dedup.TaskKey(4, "overdue")
	assert.True(t, c.TryShowKeyed(key, 4, "overdue", "Task 'old' deadline has passed", model.SeverityError))
	assert.False(t, c.TryShowKeyed(key, 4, "overdue", "Task 'renamed' deadline has passed", model.SeverityError))

	require.Len(t, sink.events, 1)
	assert.Equal(t, int64(4), sink.events[0].TaskID)
	assert.Equal(t, "overdue", sink.events[0].Kind)
}
