// Package refresh runs one fetch-cache-check cycle. When the backend is
// unreachable it serves the last cached snapshot so fuses keep burning
// and overdue alerts keep firing offline.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sandeepkv93/taskfuse/internal/deadline"
	"github.com/sandeepkv93/taskfuse/internal/model"
	"github.com/sandeepkv93/taskfuse/internal/notify"
	"github.com/sandeepkv93/taskfuse/internal/storage"
)

type TaskSource interface {
	ListTasks(ctx context.Context) ([]model.Task, error)
}

// Cache is the slice of storage.Repository a refresh needs.
type Cache interface {
	ReplaceTasks(ctx context.Context, tasks []storage.Task, fetchedAt time.Time) error
	ListTasks(ctx context.Context, filter storage.TaskListFilter) ([]storage.Task, error)
	LastFetchedAt(ctx context.Context) (*time.Time, error)
}

type Snapshot struct {
	Tasks     []model.Task
	FetchedAt time.Time
	// Stale is set when Tasks came from the cache after a failed fetch.
	Stale  bool
	Alerts []notify.Event
}

type Refresher struct {
	source  TaskSource
	cache   Cache
	checker deadline.Checker
	shower  deadline.Shower
	logger  *slog.Logger
}

// New wires a refresher. cache and shower may be nil.
func New(source TaskSource, cache Cache, checker deadline.Checker, shower deadline.Shower, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		source:  source,
		cache:   cache,
		checker: checker,
		shower:  shower,
		logger:  logger,
	}
}

// Refresh fetches, caches and checks. On fetch failure the error is
// returned alongside a stale snapshot from the cache, if one exists.
func (r *Refresher) Refresh(ctx context.Context, now time.Time) (Snapshot, error) {
	tasks, fetchErr := r.source.ListTasks(ctx)
	if fetchErr != nil {
		r.logger.Warn("task fetch failed", "error", fetchErr)
		snap, err := r.Cached(ctx)
		if err != nil {
			r.logger.Warn("task cache read failed", "error", err)
		}
		snap.Stale = true
		snap.Alerts = r.check(ctx, now, snap.Tasks)
		return snap, fetchErr
	}

	if r.cache != nil {
		if err := r.cache.ReplaceTasks(ctx, ToStorage(tasks), now); err != nil {
			r.logger.Warn("task cache write failed", "error", err)
		}
	}
	r.logger.Debug("tasks refreshed", "count", len(tasks))

	snap := Snapshot{Tasks: tasks, FetchedAt: now}
	snap.Alerts = r.check(ctx, now, tasks)
	return snap, nil
}

// Cached returns the last stored snapshot without touching the network.
func (r *Refresher) Cached(ctx context.Context) (Snapshot, error) {
	if r.cache == nil {
		return Snapshot{}, nil
	}
	rows, err := r.cache.ListTasks(ctx, storage.TaskListFilter{})
	if err != nil {
		return Snapshot{}, fmt.Errorf("refresh: list cached tasks: %w", err)
	}
	snap := Snapshot{Tasks: FromStorage(rows)}
	fetchedAt, err := r.cache.LastFetchedAt(ctx)
	if err != nil {
		return snap, fmt.Errorf("refresh: last fetched at: %w", err)
	}
	if fetchedAt != nil {
		snap.FetchedAt = *fetchedAt
	}
	return snap, nil
}

func (r *Refresher) check(ctx context.Context, now time.Time, tasks []model.Task) []notify.Event {
	if r.shower == nil {
		return nil
	}
	return r.checker.Scan(ctx, now, tasks, r.shower)
}

func ToStorage(tasks []model.Task) []storage.Task {
	out := make([]storage.Task, 0, len(tasks))
	for _, t := range tasks {
		row := storage.Task{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			DueAt:       t.DueAt,
			CreatedAt:   t.CreatedAt,
			Completed:   t.Completed,
		}
		if t.Status != nil {
			s := int(*t.Status)
			row.Status = &s
		}
		out = append(out, row)
	}
	return out
}

func FromStorage(rows []storage.Task) []model.Task {
	out := make([]model.Task, 0, len(rows))
	for _, row := range rows {
		t := model.Task{
			ID:          row.ID,
			Title:       row.Title,
			Description: row.Description,
			DueAt:       row.DueAt,
			CreatedAt:   row.CreatedAt,
			Completed:   row.Completed,
		}
		if row.Status != nil {
			s := model.Status(*row.Status)
			if s.IsValid() {
				t.Status = &s
			}
		}
		out = append(out, t)
	}
	return out
}
