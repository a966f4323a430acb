// Package watch runs the refresh and clear timers without a terminal UI.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sandeepkv93/taskfuse/internal/refresh"
	"github.com/sandeepkv93/taskfuse/internal/scheduler"
)

const (
	refreshID = "refresh"
	clearID   = "clear"
)

type Refresher interface {
	Refresh(ctx context.Context, now time.Time) (refresh.Snapshot, error)
}

// Sweeper forgets expired seen-notification keys.
type Sweeper interface {
	Sweep() int
}

// Pruner trims notification history.
type Pruner interface {
	PruneNotifications(ctx context.Context, before time.Time) (int64, error)
}

type Options struct {
	RefreshInterval time.Duration
	ClearInterval   time.Duration
	// HistoryRetention bounds notification history; zero keeps everything.
	HistoryRetention time.Duration
	Logger           *slog.Logger
	Now              func() time.Time
	// OnSnapshot observes each refresh result.
	OnSnapshot func(refresh.Snapshot, error)
}

type Runner struct {
	engine    *scheduler.Engine
	refresher Refresher
	sweeper   Sweeper
	pruner    Pruner
	opts      Options
	logger    *slog.Logger
}

func NewRunner(engine *scheduler.Engine, refresher Refresher, sweeper Sweeper, pruner Pruner, opts Options) *Runner {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = 30 * time.Second
	}
	if opts.ClearInterval <= 0 {
		opts.ClearInterval = time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		engine:    engine,
		refresher: refresher,
		sweeper:   sweeper,
		pruner:    pruner,
		opts:      opts,
		logger:    logger,
	}
}

// Run refreshes once immediately, then on every timer event until ctx is
// cancelled. Cancellation is not an error.
func (r *Runner) Run(ctx context.Context) error {
	r.engine.Start()
	defer r.engine.Stop()

	r.refresh(ctx)

	defer r.stopTimers()
	if err := r.engine.Every(refreshID, scheduler.KindRefresh, r.opts.RefreshInterval); err != nil {
		return err
	}
	if err := r.engine.Every(clearID, scheduler.KindClear, r.opts.ClearInterval); err != nil {
		return err
	}
	r.logger.Info("watching tasks",
		"refresh_interval", r.opts.RefreshInterval,
		"clear_interval", r.opts.ClearInterval,
	)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("watch stopped")
			return nil
		case ev, ok := <-r.engine.C():
			if !ok {
				return nil
			}
			r.Handle(ctx, ev)
		}
	}
}

// stopTimers disarms the repeating events so nothing fires after Run
// returns, even if the engine is shared.
func (r *Runner) stopTimers() {
	n := r.engine.Cancel(refreshID) + r.engine.Cancel(clearID)
	r.logger.Debug("watch timers cancelled", "count", n)
}

func (r *Runner) Handle(ctx context.Context, ev scheduler.Event) {
	switch ev.Kind {
	case scheduler.KindRefresh:
		r.refresh(ctx)
	case scheduler.KindClear:
		r.clear(ctx)
	default:
		r.logger.Debug("ignoring timer event", "id", ev.ID, "kind", ev.Kind)
	}
}

func (r *Runner) refresh(ctx context.Context) {
	snap, err := r.refresher.Refresh(ctx, r.opts.Now())
	if err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Warn("refresh failed; using cached tasks", "cached", len(snap.Tasks), "error", err)
	} else if err == nil {
		r.logger.Info("refresh complete", "tasks", len(snap.Tasks), "alerts", len(snap.Alerts))
	}
	if r.opts.OnSnapshot != nil {
		r.opts.OnSnapshot(snap, err)
	}
}

func (r *Runner) clear(ctx context.Context) {
	if r.sweeper != nil {
		n := r.sweeper.Sweep()
		r.logger.Debug("expired seen notifications", "count", n)
	}
	if r.pruner != nil && r.opts.HistoryRetention > 0 {
		before := r.opts.Now().Add(-r.opts.HistoryRetention)
		n, err := r.pruner.PruneNotifications(ctx, before)
		if err != nil {
			r.logger.Warn("prune notification history failed", "error", err)
			return
		}
		r.logger.Debug("pruned notification history", "count", n)
	}
}
