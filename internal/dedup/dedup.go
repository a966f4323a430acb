// Package dedup decides whether a notification key was already shown inside
// the suppression window.
package dedup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sandeepkv93/taskfuse/internal/model"
)

const DefaultWindow = time.Hour

// Suppressor admits a key at most once per window.
type Suppressor interface {
	// Admit records key as seen at now and reports true, or reports false
	// when key is still suppressed.
	Admit(ctx context.Context, key string, now time.Time) (bool, error)
	Clear(ctx context.Context) error
}

// LiteralKey keys on the rendered text, so two phrasings of the same fact
// are distinct keys.
func LiteralKey(message string, severity model.Severity) string {
	return message + "|" + string(severity)
}

// TaskKey keys on the task and the kind of alert, independent of wording.
func TaskKey(taskID int64, kind string) string {
	return fmt.Sprintf("task:%d|%s", taskID, kind)
}

// Cache is the in-process suppressor. Entries expire individually after the
// window; Clear drops all of them at once.
type Cache struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
}

func NewCache(window time.Duration) *Cache {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Cache{
		window: window,
		seen:   make(map[string]time.Time),
	}
}

func (c *Cache) Admit(_ context.Context, key string, now time.Time) (bool, error) {
	return c.TryAdmit(key, now), nil
}

// TryAdmit is Admit without the context and error plumbing.
func (c *Cache) TryAdmit(key string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if at, ok := c.seen[key]; ok && now.Sub(at) < c.window {
		return false
	}
	c.seen[key] = now
	return true
}

func (c *Cache) Clear(context.Context) error {
	c.Reset()
	return nil
}

func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = make(map[string]time.Time)
}

// Sweep evicts expired entries and returns how many were dropped.
func (c *Cache) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	dropped := 0
	for key, at := range c.seen {
		if now.Sub(at) >= c.window {
			delete(c.seen, key)
			dropped++
		}
	}
	return dropped
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
