package storage

import "time"

// Task is the last-fetched copy of a backend task.
type Task struct {
	ID          int64
	Title       string
	Description string
	DueAt       *time.Time
	CreatedAt   time.Time
	Completed   bool
	Status      *int
	FetchedAt   time.Time
}

type Notification struct {
	ID       string
	Key      string
	TaskID   int64
	Kind     string
	Message  string
	Severity string
	ShownAt  time.Time
}

type TaskListFilter struct {
	Completed *bool
	Limit     int
	Offset    int
}

type NotificationListFilter struct {
	Severity string
	TaskID   int64
	Limit    int
	Offset   int
}
