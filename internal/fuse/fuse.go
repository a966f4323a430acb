// Package fuse turns a task's creation and due times into the shrinking
// "fuse" shown next to it: the share of the time budget still left, an
// urgency tier and a short label.
package fuse

import (
	"fmt"
	"time"
)

// Tier is the urgency band a fuse falls into.
type Tier string

const (
	TierUrgent Tier = "urgent"
	TierMedium Tier = "medium"
	TierSafe   Tier = "safe"
)

// Tier boundaries in percent remaining; each boundary belongs to the lower tier.
const (
	UrgentMaxPercent = 30.0
	MediumMaxPercent = 60.0
)

// Result is the fuse of one task at a given instant.
type Result struct {
	PercentRemaining float64
	Tier             Tier
	IsExpired        bool
	// Remaining is due minus now and goes negative once the deadline passes.
	Remaining time.Duration
}

// Fraction is PercentRemaining scaled to [0,1] for progress widgets.
func (r Result) Fraction() float64 {
	return r.PercentRemaining / 100
}

// Compute reports false when the task has no usable deadline or creation
// time; callers render no fuse in that case.
func Compute(now, createdAt time.Time, dueAt *time.Time, completed bool) (Result, bool) {
	if dueAt == nil || dueAt.IsZero() || createdAt.IsZero() {
		return Result{}, false
	}
	due := *dueAt
	remaining := due.Sub(now)

	total := due.Sub(createdAt)
	if total <= 0 {
		return Result{PercentRemaining: 0, Tier: TierUrgent, IsExpired: true, Remaining: remaining}, true
	}

	elapsed := now.Sub(createdAt)
	used := clamp(float64(elapsed)/float64(total)*100, 0, 100)
	percent := 100 - used

	expired := !due.After(now) && !completed
	if expired {
		percent = 0
	}
	return Result{
		PercentRemaining: percent,
		Tier:             TierFor(percent),
		IsExpired:        expired,
		Remaining:        remaining,
	}, true
}

// TierFor maps percent remaining onto a tier.
func TierFor(percent float64) Tier {
	switch {
	case percent <= UrgentMaxPercent:
		return TierUrgent
	case percent <= MediumMaxPercent:
		return TierMedium
	default:
		return TierSafe
	}
}

// Label is the short status text next to the bar, "Overdue!" once the
// deadline has passed.
func Label(r Result) string {
	if r.IsExpired || r.Remaining <= 0 {
		return "Overdue!"
	}
	left := FormatRemaining(r.Remaining)
	switch r.Tier {
	case TierUrgent:
		return fmt.Sprintf("Urgent! (%s)", left)
	case TierMedium:
		return fmt.Sprintf("Attention (%s)", left)
	default:
		return fmt.Sprintf("On track (%s)", left)
	}
}

// FormatRemaining uses the two coarsest units: "2d 3h", "4h 10m", or
// minutes alone, rounded up so a few seconds left still reads "1m".
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return "0m"
	}
	const day = 24 * time.Hour
	days := int(d / day)
	hours := int(d % day / time.Hour)
	if days > 0 {
		return fmt.Sprintf("%dd %dh", days, hours)
	}
	minutes := int(d % time.Hour / time.Minute)
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	if d%time.Minute > 0 {
		minutes++
	}
	return fmt.Sprintf("%dm", minutes)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
