package storage

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("storage: not found")

type Repository interface {
	ReplaceTasks(ctx context.Context, tasks []Task, fetchedAt time.Time) error
	GetTask(ctx context.Context, id int64) (Task, error)
	ListTasks(ctx context.Context, filter TaskListFilter) ([]Task, error)
	LastFetchedAt(ctx context.Context) (*time.Time, error)

	RecordNotification(ctx context.Context, in Notification) error
	ListNotifications(ctx context.Context, filter NotificationListFilter) ([]Notification, error)
	PruneNotifications(ctx context.Context, before time.Time) (int64, error)

	Close() error
}
