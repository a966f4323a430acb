// Package api talks to the task backend: bearer-authenticated JSON calls
// behind a circuit breaker.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"

	"github.com/sandeepkv93/taskfuse/internal/model"
)

var (
	ErrUnauthorized = errors.New("api: unauthorized")
	ErrUnavailable  = errors.New("api: backend unavailable")
	ErrTaskNotFound = errors.New("api: task not found")
	// ErrInvalidTask matches 422 responses to task writes.
	ErrInvalidTask = errors.New("api: task rejected")
)

// StatusError reports a non-2xx response other than 401.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Detail string
	// Field is the request field a validation error points at, if any.
	Field string
}

// Is lets callers match on the meaning of the status code.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrTaskNotFound:
		return e.Code == http.StatusNotFound
	case ErrInvalidTask:
		return e.Code == http.StatusUnprocessableEntity
	case model.ErrDueInPast:
		return e.Code == http.StatusUnprocessableEntity && e.Field == "due_date"
	}
	return false
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("api: %s %s: status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("api: %s %s: status %d: %s", e.Method, e.Path, e.Code, e.Detail)
}

type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"-"`
}

type Options struct {
	Timeout         time.Duration
	BreakerFailures int
	// BreakerCooldown is how long the breaker stays open before probing.
	BreakerCooldown time.Duration
	Logger          *slog.Logger
	Transport       http.RoundTripper
	// Location is used for timestamps sent without an offset.
	Location *time.Location
	Now      func() time.Time
}

// invalidator is implemented by token sources that can drop a token the
// backend no longer accepts.
type invalidator interface {
	Invalidate()
}

type Client struct {
	baseURL    string
	http       *http.Client
	breaker    *gobreaker.CircuitBreaker[any]
	logger     *slog.Logger
	location   *time.Location
	now        func() time.Time
	invalidate func()
}

func NewClient(baseURL string, source oauth2.TokenSource, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.BreakerFailures <= 0 {
		opts.BreakerFailures = 3
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = 30 * time.Second
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	failures := uint32(opts.BreakerFailures)
	settings := gobreaker.Settings{
		Name:        "taskfuse-api",
		MaxRequests: 1,
		Timeout:     opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: isBreakerSuccess,
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: &oauth2.Transport{Source: source, Base: base},
		},
		breaker:  gobreaker.NewCircuitBreaker[any](settings),
		logger:   logger,
		location: loc,
		now:      opts.Now,
	}
	if inv, ok := source.(invalidator); ok {
		c.invalidate = inv.Invalidate
	}
	return c
}

// BreakerState reports "closed", "half-open" or "open".
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// ListTasks fetches the user's tasks. Rows that fail validation are
// logged and skipped.
func (c *Client) ListTasks(ctx context.Context) ([]model.Task, error) {
	var payload []taskPayload
	if err := c.do(ctx, http.MethodGet, "/tasks/", nil, &payload); err != nil {
		return nil, err
	}
	tasks := make([]model.Task, 0, len(payload))
	for _, p := range payload {
		task := p.toModel(c.location)
		if err := task.Validate(); err != nil {
			c.logger.Warn("skipping invalid task", "id", p.ID, "error", err)
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (c *Client) Me(ctx context.Context) (User, error) {
	var payload userPayload
	if err := c.do(ctx, http.MethodGet, "/users/me/", nil, &payload); err != nil {
		return User{}, err
	}
	user := User{ID: payload.ID, Email: payload.Email, Role: payload.Role}
	if t, ok := parseTimestamp(payload.CreatedAt, c.location); ok {
		user.CreatedAt = t
	}
	return user, nil
}

func (c *Client) SetCompleted(ctx context.Context, id int64, completed bool) (model.Task, error) {
	return c.UpdateTask(ctx, id, model.TaskPatch{Completed: &completed})
}

// CreateTask posts a new task. Drafts the backend would reject are refused
// before any request is made.
func (c *Client) CreateTask(ctx context.Context, draft model.TaskDraft) (model.Task, error) {
	if err := draft.Validate(c.now()); err != nil {
		return model.Task{}, err
	}
	body := map[string]any{
		"title":     strings.TrimSpace(draft.Title),
		"completed": false,
		"due_date":  nil,
	}
	if draft.Description != "" {
		body["description"] = draft.Description
	}
	if draft.DueAt != nil {
		body["due_date"] = c.formatTimestamp(*draft.DueAt)
	}
	var payload taskPayload
	if err := c.do(ctx, http.MethodPost, "/tasks/", body, &payload); err != nil {
		return model.Task{}, err
	}
	return payload.toModel(c.location), nil
}

// UpdateTask sends only the fields set in patch.
func (c *Client) UpdateTask(ctx context.Context, id int64, patch model.TaskPatch) (model.Task, error) {
	if err := patch.Validate(c.now()); err != nil {
		return model.Task{}, err
	}
	body := map[string]any{}
	if patch.Title != nil {
		body["title"] = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		body["description"] = *patch.Description
	}
	switch {
	case patch.ClearDue:
		body["due_date"] = nil
	case patch.DueAt != nil:
		body["due_date"] = c.formatTimestamp(*patch.DueAt)
	}
	if patch.Completed != nil {
		body["completed"] = *patch.Completed
	}
	var payload taskPayload
	if err := c.do(ctx, http.MethodPut, taskPath(id), body, &payload); err != nil {
		return model.Task{}, err
	}
	return payload.toModel(c.location), nil
}

func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, taskPath(id), nil, nil)
}

func taskPath(id int64) string {
	return "/tasks/" + strconv.FormatInt(id, 10)
}

// formatTimestamp renders t the way the backend stores it: naive, in the
// backend's zone.
func (c *Client) formatTimestamp(t time.Time) string {
	return t.In(c.location).Format("2006-01-02T15:04:05")
}

// do runs one call through the breaker. A 401 with a renewable token
// source drops the token and retries once with a fresh grant.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	err := c.execute(ctx, method, path, in, out)
	if errors.Is(err, ErrUnauthorized) && c.invalidate != nil {
		c.logger.Info("access token rejected, requesting a new one", "method", method, "path", path)
		c.invalidate()
		err = c.execute(ctx, method, path, in, out)
	}
	return err
}

func (c *Client) execute(ctx context.Context, method, path string, in, out any) error {
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.roundTrip(ctx, method, path, in, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("api: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("api: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isUnauthorizedTokenError(err) {
			return ErrUnauthorized
		}
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, field := readDetail(resp.Body)
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Detail: detail, Field: field}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decode %s %s: %w", method, path, err)
	}
	return nil
}

// isBreakerSuccess keeps client-side failures from tripping the breaker.
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, context.Canceled) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code < 500
	}
	return false
}

func isUnauthorizedTokenError(err error) bool {
	var retrieve *oauth2.RetrieveError
	if !errors.As(err, &retrieve) || retrieve.Response == nil {
		return false
	}
	code := retrieve.Response.StatusCode
	return code == http.StatusUnauthorized || code == http.StatusBadRequest
}

// readDetail pulls FastAPI's {"detail": ...} message when present. For
// validation errors it also returns the offending body field.
func readDetail(r io.Reader) (detail, field string) {
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(raw) == 0 {
		return "", ""
	}
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || len(payload.Detail) == 0 {
		return strings.TrimSpace(string(raw)), ""
	}
	var text string
	if err := json.Unmarshal(payload.Detail, &text); err == nil {
		return text, ""
	}
	var items []struct {
		Loc []any  `json:"loc"`
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &items); err == nil && len(items) > 0 {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			msgs = append(msgs, strings.TrimPrefix(item.Msg, "Value error, "))
			if field == "" && len(item.Loc) > 0 {
				if name, ok := item.Loc[len(item.Loc)-1].(string); ok {
					field = name
				}
			}
		}
		return strings.Join(msgs, "; "), field
	}
	return strings.TrimSpace(string(raw)), ""
}
