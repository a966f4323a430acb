package api

import (
	"strings"
	"time"

	"github.com/sandeepkv93/taskfuse/internal/model"
)

type taskPayload struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Completed   bool    `json:"completed"`
	DueDate     *string `json:"due_date"`
	CreatedAt   string  `json:"created_at"`
	UserID      int64   `json:"user_id"`
	Status      *int    `json:"status"`
}

type userPayload struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

// toModel never fails: a malformed due date becomes "no deadline" and a
// malformed created_at leaves CreatedAt zero, both of which render without
// a fuse.
func (p taskPayload) toModel(loc *time.Location) model.Task {
	task := model.Task{
		ID:        p.ID,
		Title:     p.Title,
		Completed: p.Completed,
	}
	if p.Description != nil {
		task.Description = *p.Description
	}
	if p.DueDate != nil {
		if due, ok := parseTimestamp(*p.DueDate, loc); ok {
			task.DueAt = &due
		}
	}
	if created, ok := parseTimestamp(p.CreatedAt, loc); ok {
		task.CreatedAt = created
	}
	if p.Status != nil {
		s := model.Status(*p.Status)
		if s.IsValid() {
			task.Status = &s
		}
	}
	return task
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseTimestamp accepts RFC 3339 and the offset-less ISO forms the backend
// emits for naive datetimes; the latter are read in loc.
func parseTimestamp(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, true
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
