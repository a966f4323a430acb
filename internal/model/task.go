package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	ErrInvalidStatus      = errors.New("model: invalid task status")
	ErrTitleRequired      = errors.New("model: task title is required")
	ErrTitleTooLong       = errors.New("model: task title is too long")
	ErrDescriptionTooLong = errors.New("model: task description is too long")
	ErrDueInPast          = errors.New("model: due date is in the past")
	ErrEmptyPatch         = errors.New("model: nothing to update")
)

// Backend column limits, counted in characters.
const (
	MaxTitleLen       = 100
	MaxDescriptionLen = 1000
)

// Status is the tri-state progress flag some backend revisions send instead
// of the boolean completed flag.
type Status int

const (
	StatusNotStarted Status = 0
	StatusInProgress Status = 1
	StatusDone       Status = 2
)

func (s Status) IsValid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusDone:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "not started"
	case StatusInProgress:
		return "in progress"
	case StatusDone:
		return "done"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

type Task struct {
	ID          int64
	Title       string
	Description string
	DueAt       *time.Time
	CreatedAt   time.Time
	Completed   bool
	Status      *Status
}

// Done reports completion under either flag the backend may send.
func (t Task) Done() bool {
	if t.Completed {
		return true
	}
	return t.Status != nil && *t.Status == StatusDone
}

func (t Task) HasDeadline() bool {
	return t.DueAt != nil && !t.DueAt.IsZero()
}

// Overdue reports whether the deadline is not after now and the task is still open.
func (t Task) Overdue(now time.Time) bool {
	return t.HasDeadline() && !t.DueAt.After(now) && !t.Done()
}

// Validate checks the fields every row from the backend must carry. A zero
// CreatedAt is allowed; such a task just has no fuse.
func (t Task) Validate() error {
	if t.ID <= 0 {
		return errors.New("model: task id is required")
	}
	if strings.TrimSpace(t.Title) == "" {
		return ErrTitleRequired
	}
	if t.Status != nil && !t.Status.IsValid() {
		return fmt.Errorf("%w: %d", ErrInvalidStatus, int(*t.Status))
	}
	return nil
}

// TaskDraft is a task before the backend assigns it an id.
type TaskDraft struct {
	Title       string
	Description string
	DueAt       *time.Time
}

func (d TaskDraft) Validate(now time.Time) error {
	if err := validateTitle(d.Title); err != nil {
		return err
	}
	if err := validateDescription(d.Description); err != nil {
		return err
	}
	if d.DueAt != nil && d.DueAt.Before(now) {
		return ErrDueInPast
	}
	return nil
}

// TaskPatch changes selected fields of an existing task. Nil fields are
// left alone; ClearDue removes the deadline.
type TaskPatch struct {
	Title       *string
	Description *string
	DueAt       *time.Time
	ClearDue    bool
	Completed   *bool
}

func (p TaskPatch) Validate(now time.Time) error {
	if p.Title == nil && p.Description == nil && p.DueAt == nil && !p.ClearDue && p.Completed == nil {
		return ErrEmptyPatch
	}
	if p.Title != nil {
		if err := validateTitle(*p.Title); err != nil {
			return err
		}
	}
	if p.Description != nil {
		if err := validateDescription(*p.Description); err != nil {
			return err
		}
	}
	if !p.ClearDue && p.DueAt != nil && p.DueAt.Before(now) {
		return ErrDueInPast
	}
	return nil
}

func validateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrTitleRequired
	}
	if utf8.RuneCountInString(title) > MaxTitleLen {
		return fmt.Errorf("%w: max %d characters", ErrTitleTooLong, MaxTitleLen)
	}
	return nil
}

func validateDescription(desc string) error {
	if utf8.RuneCountInString(desc) > MaxDescriptionLen {
		return fmt.Errorf("%w: max %d characters", ErrDescriptionTooLong, MaxDescriptionLen)
	}
	return nil
}
