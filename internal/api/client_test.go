package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/sandeepkv93/taskfuse/internal/model"
)

type fakeBackend struct {
	tokenCalls atomic.Int32
	grants     atomic.Int32
	taskCalls  atomic.Int32
	failTasks  atomic.Bool
	// minToken rejects every tok-N with N below it, as if those expired.
	minToken atomic.Int32

	mu       sync.Mutex
	lastPut  map[string]any
	lastPost map[string]any
	deleted  []string
}

func (b *fakeBackend) authorized(r *http.Request) bool {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer tok-")
	if !ok {
		return false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return false
	}
	return n >= 1 && int32(n) >= b.minToken.Load()
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		b.tokenCalls.Add(1)
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("grant_type") != "password" ||
			r.PostForm.Get("username") != "ada@example.com" ||
			r.PostForm.Get("password") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"bad credentials"}`))
			return
		}
		n := b.grants.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"bearer"}`, n)
	})
	mux.HandleFunc("/tasks/", func(w http.ResponseWriter, r *http.Request) {
		if !b.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/tasks/":
			b.taskCalls.Add(1)
			if b.failTasks.Load() {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[
				{"id":1,"title":"Report","description":"**Q1**","completed":false,
				 "due_date":"2026-02-10T12:00:00","created_at":"2026-02-09T12:00:00.123456","user_id":7},
				{"id":2,"title":"Plain","description":null,"completed":true,
				 "due_date":null,"created_at":"2026-02-09T08:00:00Z","user_id":7},
				{"id":3,"title":"Broken","completed":false,
				 "due_date":"someday","created_at":"2026-02-09T08:00:00+02:00","user_id":7,"status":1},
				{"id":4,"title":"  ","completed":false,"created_at":"2026-02-09T08:00:00","user_id":7}
			]`))
		case r.Method == http.MethodPost && r.URL.Path == "/tasks/":
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			b.mu.Lock()
			b.lastPost = body
			b.mu.Unlock()
			if body["due_date"] == "2020-01-01T00:00:00" {
				w.WriteHeader(http.StatusUnprocessableEntity)
				_, _ = w.Write([]byte(`{"detail":[{"type":"value_error","loc":["body","due_date"],
					"msg":"Value error, due date cannot be in the past","input":"2020-01-01T00:00:00"}]}`))
				return
			}
			due, _ := json.Marshal(body["due_date"])
			_, _ = fmt.Fprintf(w, `{"id":10,"title":%q,"description":null,"completed":false,
				"due_date":%s,"created_at":"2026-02-09T12:00:00","user_id":7}`, body["title"], due)
		case r.Method == http.MethodPut && r.URL.Path == "/tasks/1":
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				w.WriteHeader(http.StatusUnprocessableEntity)
				return
			}
			b.mu.Lock()
			b.lastPut = body
			b.mu.Unlock()
			title := "Report"
			if v, ok := body["title"].(string); ok {
				title = v
			}
			completed, _ := body["completed"].(bool)
			_, _ = fmt.Fprintf(w, `{"id":1,"title":%q,"completed":%t,
				"due_date":"2026-02-10T12:00:00","created_at":"2026-02-09T12:00:00","user_id":7}`, title, completed)
		case r.Method == http.MethodDelete && r.URL.Path == "/tasks/1":
			b.mu.Lock()
			b.deleted = append(b.deleted, r.URL.Path)
			b.mu.Unlock()
			_, _ = w.Write([]byte(`{"id":1,"title":"Report","completed":false,"created_at":"2026-02-09T12:00:00","user_id":7}`))
		case r.Method == http.MethodPut, r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Task not found"}`))
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/users/me/", func(w http.ResponseWriter, r *http.Request) {
		if !b.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id":7,"email":"ada@example.com","role":"user","created_at":"2026-01-01T00:00:00"}`))
	})
	return mux
}

var testNow = time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T, b *fakeBackend, source func(url string) oauth2.TokenSource) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)
	client := NewClient(srv.URL, source(srv.URL), Options{
		Timeout:         2 * time.Second,
		BreakerFailures: 2,
		BreakerCooldown: time.Minute,
		Location:        time.UTC,
		Now:             func() time.Time { return testNow },
	})
	return client, srv
}

func TestListTasksDecodesBackendPayload(t *testing.T) {
	b := &fakeBackend{}
	client, _ := newTestClient(t, b, func(url string) oauth2.TokenSource {
		return PasswordSource(context.Background(), url, "ada@example.com", "secret")
	})

	tasks, err := client.ListTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 3, "the blank-titled row is skipped")

	report := tasks[0]
	assert.Equal(t, int64(1), report.ID)
	assert.Equal(t, "**Q1**", report.Description)
	require.NotNil(t, report.DueAt)
	assert.Equal(t, time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC), *report.DueAt)
	assert.Equal(t, time.Date(2026, 2, 9, 12, 0, 0, 123456000, time.UTC), report.CreatedAt)

	plain := tasks[1]
	assert.Nil(t, plain.DueAt)
	assert.True(t, plain.Done())
	assert.Empty(t, plain.Description)

	broken := tasks[2]
	assert.Nil(t, broken.DueAt, "malformed due date means no deadline")
	require.NotNil(t, broken.Status)
	assert.Equal(t, model.StatusInProgress, *broken.Status)
	assert.Equal(t, time.Date(2026, 2, 9, 6, 0, 0, 0, time.UTC), broken.CreatedAt.UTC())

	_, err = client.ListTasks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), b.tokenCalls.Load(), "token is reused across calls")
}

func TestMeAndSetCompleted(t *testing.T) {
	b := &fakeBackend{}
	client, _ := newTestClient(t, b, func(string) oauth2.TokenSource {
		return StaticSource(&oauth2.Token{AccessToken: "tok-1", TokenType: "bearer"})
	})

	user, err := client.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, "user", user.Role)
	assert.Equal(t, 2026, user.CreatedAt.Year())

	task, err := client.SetCompleted(context.Background(), 1, true)
	require.NoError(t, err)
	assert.True(t, task.Completed)
	b.mu.Lock()
	assert.Equal(t, map[string]any{"completed": true}, b.lastPut)
	b.mu.Unlock()

	_, err = client.SetCompleted(context.Background(), 99, true)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
	assert.Equal(t, "Task not found", statusErr.Detail)
}

func TestUnauthorized(t *testing.T) {
	b := &fakeBackend{}
	client, _ := newTestClient(t, b, func(string) oauth2.TokenSource {
		return StaticSource(&oauth2.Token{AccessToken: "stale", TokenType: "bearer"})
	})

	_, err := client.ListTasks(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)

	badGrant, _ := newTestClient(t, b, func(url string) oauth2.TokenSource {
		return PasswordSource(context.Background(), url, "ada@example.com", "wrong")
	})
	_, err = badGrant.ListTasks(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "closed", badGrant.BreakerState(), "auth failures do not trip the breaker")
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := &fakeBackend{}
	b.failTasks.Store(true)
	client, _ := newTestClient(t, b, func(string) oauth2.TokenSource {
		return StaticSource(&oauth2.Token{AccessToken: "tok-1", TokenType: "bearer"})
	})

	for i := 0; i < 2; i++ {
		_, err := client.ListTasks(context.Background())
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusBadGateway, statusErr.Code)
	}
	assert.Equal(t, "open", client.BreakerState())

	_, err := client.ListTasks(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(2), b.taskCalls.Load(), "open breaker short-circuits the request")
}

func TestLogin(t *testing.T) {
	b := &fakeBackend{}
	srv := httptest.NewServer(b.handler())
	defer srv.Close()

	tok, err := Login(context.Background(), srv.URL+"/", "ada@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok.AccessToken)

	_, err = Login(context.Background(), srv.URL, "ada@example.com", "nope")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCredentialsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")

	_, err := LoadCredentials(path)
	assert.ErrorIs(t, err, ErrNoToken)

	creds := Credentials{
		BaseURL: "http://localhost:8000",
		Email:   "ada@example.com",
		Token:   &oauth2.Token{AccessToken: "tok-1", TokenType: "bearer"},
	}
	require.NoError(t, SaveCredentials(path, creds))

	loaded, err := LoadCredentials(path)
	require.NoError(t, err)
	assert.Equal(t, creds.BaseURL, loaded.BaseURL)
	assert.Equal(t, "tok-1", loaded.Token.AccessToken)
}

func TestParseTimestamp(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	cases := []struct {
		raw  string
		want time.Time
		ok   bool
	}{
		{"2026-02-10T12:00:00Z", time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC), true},
		{"2026-02-10T12:00:00", time.Date(2026, 2, 10, 12, 0, 0, 0, loc), true},
		{"2026-02-10T12:00", time.Date(2026, 2, 10, 12, 0, 0, 0, loc), true},
		{"2026-02-10 12:00:00", time.Date(2026, 2, 10, 12, 0, 0, 0, loc), true},
		{"", time.Time{}, false},
		{"tomorrow", time.Time{}, false},
	}
	for _, tc := range cases {
		got, ok := parseTimestamp(tc.raw, loc)
		assert.Equal(t, tc.ok, ok, tc.raw)
		if tc.ok {
			assert.True(t, tc.want.Equal(got), "%s: got %v", tc.raw, got)
		}
	}
}

func TestIsBreakerSuccess(t *testing.T) {
	assert.True(t, isBreakerSuccess(nil))
	assert.True(t, isBreakerSuccess(ErrUnauthorized))
	assert.True(t, isBreakerSuccess(&StatusError{Code: 404}))
	assert.False(t, isBreakerSuccess(&StatusError{Code: 503}))
	assert.False(t, isBreakerSuccess(errors.New("connection refused")))
}

func TestPasswordSourceRegrantsAfterTokenExpires(t *testing.T) {
	b := &fakeBackend{}
	client, _ := newTestClient(t, b, func(url string) oauth2.TokenSource {
		return PasswordSource(context.Background(), url, "ada@example.com", "secret")
	})

	_, err := client.ListTasks(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(1), b.grants.Load())

	// the backend stops accepting tok-1, as it does once the JWT expires
	b.minToken.Store(2)
	for i := 0; i < 3; i++ {
		_, err = client.ListTasks(context.Background())
		require.NoError(t, err, "call %d", i)
	}
	assert.Equal(t, int32(2), b.grants.Load(), "one new grant, then reused")
	assert.Equal(t, "closed", client.BreakerState())
}

func TestStaticSourceDoesNotRetryUnauthorized(t *testing.T) {
	b := &fakeBackend{}
	b.minToken.Store(2)
	client, _ := newTestClient(t, b, func(string) oauth2.TokenSource {
		return StaticSource(&oauth2.Token{AccessToken: "tok-1", TokenType: "bearer"})
	})

	_, err := client.ListTasks(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(0), b.taskCalls.Load())
	assert.Equal(t, int32(0), b.tokenCalls.Load())
}

func staticClient(t *testing.T, b *fakeBackend) *Client {
	t.Helper()
	client, _ := newTestClient(t, b, func(string) oauth2.TokenSource {
		return StaticSource(&oauth2.Token{AccessToken: "tok-1", TokenType: "bearer"})
	})
	return client
}

func TestCreateTask(t *testing.T) {
	b := &fakeBackend{}
	client := staticClient(t, b)

	due := testNow.Add(2 * time.Hour)
	task, err := client.CreateTask(context.Background(), model.TaskDraft{Title: "  Write summary ", Description: "notes", DueAt: &due})
	require.NoError(t, err)
	assert.Equal(t, int64(10), task.ID)
	assert.Equal(t, "Write summary", task.Title)
	require.NotNil(t, task.DueAt)
	assert.True(t, due.Equal(*task.DueAt))

	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Equal(t, map[string]any{
		"title":       "Write summary",
		"description": "notes",
		"completed":   false,
		"due_date":    "2026-02-09T14:00:00",
	}, b.lastPost)
}

func TestCreateTaskRejectsPastDueLocally(t *testing.T) {
	b := &fakeBackend{}
	client := staticClient(t, b)

	past := testNow.Add(-time.Minute)
	_, err := client.CreateTask(context.Background(), model.TaskDraft{Title: "Late", DueAt: &past})
	assert.ErrorIs(t, err, model.ErrDueInPast)

	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Nil(t, b.lastPost, "nothing is sent")
}

func TestCreateTaskMapsBackendValidationError(t *testing.T) {
	b := &fakeBackend{}
	// a client clock far behind the backend's lets the draft through
	client, _ := newTestClient(t, b, func(string) oauth2.TokenSource {
		return StaticSource(&oauth2.Token{AccessToken: "tok-1", TokenType: "bearer"})
	})
	client.now = func() time.Time { return time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC) }

	due := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := client.CreateTask(context.Background(), model.TaskDraft{Title: "Old", DueAt: &due})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTask)
	assert.ErrorIs(t, err, model.ErrDueInPast)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, "due_date", statusErr.Field)
	assert.Equal(t, "due date cannot be in the past", statusErr.Detail)
	assert.Equal(t, "closed", client.BreakerState(), "validation errors do not trip the breaker")
}

func TestUpdateTaskSendsOnlySetFields(t *testing.T) {
	b := &fakeBackend{}
	client := staticClient(t, b)

	title := "Quarterly report"
	task, err := client.UpdateTask(context.Background(), 1, model.TaskPatch{Title: &title, ClearDue: true})
	require.NoError(t, err)
	assert.Equal(t, "Quarterly report", task.Title)

	b.mu.Lock()
	assert.Equal(t, map[string]any{"title": "Quarterly report", "due_date": nil}, b.lastPut)
	b.mu.Unlock()

	_, err = client.UpdateTask(context.Background(), 1, model.TaskPatch{})
	assert.ErrorIs(t, err, model.ErrEmptyPatch)
}

func TestDeleteTask(t *testing.T) {
	b := &fakeBackend{}
	client := staticClient(t, b)

	require.NoError(t, client.DeleteTask(context.Background(), 1))
	b.mu.Lock()
	assert.Equal(t, []string{"/tasks/1"}, b.deleted)
	b.mu.Unlock()

	err := client.DeleteTask(context.Background(), 42)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestReadDetail(t *testing.T) {
	detail, field := readDetail(strings.NewReader(`{"detail":"Task not found"}`))
	assert.Equal(t, "Task not found", detail)
	assert.Empty(t, field)

	detail, field = readDetail(strings.NewReader(`{"detail":[{"loc":["body","title"],"msg":"String should have at least 1 character"}]}`))
	assert.Equal(t, "String should have at least 1 character", detail)
	assert.Equal(t, "title", field)

	detail, _ = readDetail(strings.NewReader("upstream exploded"))
	assert.Equal(t, "upstream exploded", detail)
}
