package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/sandeepkv93/taskfuse/internal/model"
	"github.com/sandeepkv93/taskfuse/internal/storage"
)

// DesktopSink shows events through notify-send or osascript.
type DesktopSink struct {
	Title   string
	ExpireM int
	GOOS    string
	Run     func(name string, args ...string) error
}

func NewDesktopSink(expireMillis int) DesktopSink {
	return DesktopSink{
		Title:   "taskfuse",
		ExpireM: expireMillis,
		GOOS:    runtime.GOOS,
		Run: func(name string, args ...string) error {
			return exec.Command(name, args...).Run()
		},
	}
}

func (s DesktopSink) Deliver(_ context.Context, ev Event) error {
	switch s.GOOS {
	case "linux":
		args := []string{"-a", s.Title}
		if ev.Severity == model.SeverityUrgent || ev.Severity == model.SeverityError {
			args = append(args, "-u", "critical")
		}
		if s.ExpireM > 0 {
			args = append(args, "-t", strconv.Itoa(s.ExpireM))
		}
		args = append(args, s.Title, ev.Message)
		return s.Run("notify-send", args...)
	case "darwin":
		script := fmt.Sprintf(`display notification "%s" with title "%s"`, escapeAppleScript(ev.Message), escapeAppleScript(s.Title))
		return s.Run("osascript", "-e", script)
	default:
		return nil
	}
}

func escapeAppleScript(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

// BellSink rings the terminal bell for urgent alerts.
type BellSink struct {
	W io.Writer
}

func (s BellSink) Deliver(_ context.Context, ev Event) error {
	if ev.Severity != model.SeverityUrgent || s.W == nil {
		return nil
	}
	_, err := io.WriteString(s.W, "\a")
	return err
}

type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Deliver(ctx context.Context, ev Event) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	switch ev.Severity {
	case model.SeverityError, model.SeverityUrgent:
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, ev.Message, "severity", ev.Severity, "task_id", ev.TaskID, "kind", ev.Kind)
	return nil
}

// ChanSink hands events to a single consumer without blocking the caller;
// events are dropped when the buffer is full.
type ChanSink struct {
	ch      chan Event
	dropped uint64
}

func NewChanSink(buffer int) *ChanSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChanSink{ch: make(chan Event, buffer)}
}

func (s *ChanSink) C() <-chan Event {
	return s.ch
}

func (s *ChanSink) Dropped() uint64 {
	return atomic.LoadUint64(&s.dropped)
}

func (s *ChanSink) Deliver(_ context.Context, ev Event) error {
	select {
	case s.ch <- ev:
	default:
		atomic.AddUint64(&s.dropped, 1)
	}
	return nil
}

type HistoryStore interface {
	RecordNotification(ctx context.Context, in storage.Notification) error
}

// HistorySink keeps a copy of each displayed event in the local store.
type HistorySink struct {
	Store HistoryStore
}

func (s HistorySink) Deliver(ctx context.Context, ev Event) error {
	if s.Store == nil {
		return nil
	}
	return s.Store.RecordNotification(ctx, storage.Notification{
		ID:       ev.ID,
		Key:      ev.Key,
		TaskID:   ev.TaskID,
		Kind:     ev.Kind,
		Message:  ev.Message,
		Severity: string(ev.Severity),
		ShownAt:  ev.ShownAt,
	})
}
