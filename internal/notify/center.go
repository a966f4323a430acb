// Package notify displays deadline alerts once per suppression window and
// fans each admitted alert out to the configured sinks.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sandeepkv93/taskfuse/internal/dedup"
	"github.com/sandeepkv93/taskfuse/internal/model"
)

const DefaultDisplayDuration = 5 * time.Second

type Event struct {
	ID       string
	Key      string
	TaskID   int64
	Kind     string
	Message  string
	Severity model.Severity
	ShownAt  time.Time
	HideAt   time.Time
}

// Sink performs one display side effect for an admitted event.
type Sink interface {
	Deliver(ctx context.Context, ev Event) error
}

type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) Deliver(ctx context.Context, ev Event) error { return f(ctx, ev) }

type Center struct {
	mu         sync.RWMutex
	suppressor dedup.Suppressor
	sinks      []Sink
	now        func() time.Time
	display    time.Duration
	logger     *slog.Logger
}

func NewCenter(suppressor dedup.Suppressor, logger *slog.Logger, sinks ...Sink) *Center {
	if suppressor == nil {
		suppressor = dedup.NewCache(dedup.DefaultWindow)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Center{
		suppressor: suppressor,
		sinks:      sinks,
		now:        time.Now,
		display:    DefaultDisplayDuration,
		logger:     logger,
	}
}

// WithClock replaces the wall clock used to stamp and admit events.
func (c *Center) WithClock(now func() time.Time) *Center {
	if now != nil {
		c.now = now
	}
	return c
}

func (c *Center) WithDisplayDuration(d time.Duration) *Center {
	if d > 0 {
		c.display = d
	}
	return c
}

func (c *Center) AddSink(s Sink) {
	if s == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinks = append(c.sinks, s)
}

func (c *Center) DisplayDuration() time.Duration {
	return c.display
}

// TryShow keys the alert on its literal text and severity.
func (c *Center) TryShow(message string, severity model.Severity) bool {
	return c.Show(context.Background(), Event{Message: message, Severity: severity})
}

// TryShowKeyed shows a task alert under an explicit suppression key.
func (c *Center) TryShowKeyed(key string, taskID int64, kind, message string, severity model.Severity) bool {
	return c.Show(context.Background(), Event{
		Key:      key,
		TaskID:   taskID,
		Kind:     kind,
		Message:  message,
		Severity: severity,
	})
}

// Show admits ev through the suppressor and delivers it. An empty Key falls
// back to the literal text key. It reports whether the event was displayed.
func (c *Center) Show(ctx context.Context, ev Event) bool {
	if !ev.Severity.IsValid() {
		c.logger.Warn("notification dropped", "reason", "invalid severity", "severity", ev.Severity)
		return false
	}
	if ev.Key == "" {
		ev.Key = dedup.LiteralKey(ev.Message, ev.Severity)
	}
	now := c.now()

	admitted, err := c.suppressor.Admit(ctx, ev.Key, now)
	if err != nil {
		// fail open: a missed duplicate is better than a missed deadline
		c.logger.Warn("suppressor unavailable", "key", ev.Key, "error", err)
		admitted = true
	}
	if !admitted {
		c.logger.Debug("notification suppressed", "key", ev.Key)
		return false
	}

	ev.ID = uuid.NewString()
	ev.ShownAt = now
	ev.HideAt = now.Add(c.display)

	c.mu.RLock()
	sinks := append([]Sink(nil), c.sinks...)
	c.mu.RUnlock()
	for _, s := range sinks {
		if err := s.Deliver(ctx, ev); err != nil {
			c.logger.Warn("notification sink failed", "key", ev.Key, "error", err)
		}
	}
	c.logger.Info("notification shown", "key", ev.Key, "severity", ev.Severity, "task_id", ev.TaskID)
	return true
}

// Clear forgets every key, so the next occurrence of any alert shows again.
func (c *Center) Clear(ctx context.Context) {
	if err := c.suppressor.Clear(ctx); err != nil {
		c.logger.Warn("clear seen notifications failed", "error", err)
	}
}

// Sweep drops expired entries when the suppressor keeps them in memory.
func (c *Center) Sweep() int {
	if cache, ok := c.suppressor.(*dedup.Cache); ok {
		n := cache.Sweep(c.now())
		c.logger.Debug("seen notifications swept", "removed", n, "kept", cache.Len())
		return n
	}
	return 0
}
