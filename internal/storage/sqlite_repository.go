package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	sqliteTimeLayout = time.RFC3339Nano
	lastFetchedKey   = "last_fetched_at"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) (*SQLiteRepository, error) {
	if db == nil {
		return nil, errors.New("storage: nil db")
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

// OpenSQLite opens the database at path, creating its directory, and applies
// the embedded migrations.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := MigrateUp(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	repo, err := NewSQLiteRepository(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// ReplaceTasks swaps the whole snapshot in one transaction so readers never
// see a half-written list.
func (r *SQLiteRepository) ReplaceTasks(ctx context.Context, tasks []Task, fetchedAt time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks`); err != nil {
		return fmt.Errorf("clear tasks: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tasks (id, title, description, due_at, created_at, completed, status, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	fetched := mustTime(fetchedAt)
	for _, in := range tasks {
		if _, err := stmt.ExecContext(ctx,
			in.ID, in.Title, in.Description, nullTime(in.DueAt), mustTime(in.CreatedAt),
			boolInt(in.Completed), nullInt(in.Status), fetched,
		); err != nil {
			return fmt.Errorf("insert task %d: %w", in.ID, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sync_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, lastFetchedKey, fetched); err != nil {
		return fmt.Errorf("update sync state: %w", err)
	}
	return tx.Commit()
}

func (r *SQLiteRepository) GetTask(ctx context.Context, id int64) (Task, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, title, description, due_at, created_at, completed, status, fetched_at
		FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, err
	}
	return task, nil
}

func (r *SQLiteRepository) ListTasks(ctx context.Context, filter TaskListFilter) ([]Task, error) {
	query := `SELECT id, title, description, due_at, created_at, completed, status, fetched_at FROM tasks`
	args := make([]any, 0, 3)
	if filter.Completed != nil {
		query += ` WHERE completed = ?`
		args = append(args, boolInt(*filter.Completed))
	}
	query += ` ORDER BY due_at IS NULL, due_at ASC, id ASC`
	query += applyPagination(&args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Task, 0)
	for rows.Next() {
		task, scanErr := scanTask(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) LastFetchedAt(ctx context.Context) (*time.Time, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM sync_state WHERE key = ?`, lastFetchedKey).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	tm, err := parseRequiredTime(raw)
	if err != nil {
		return nil, err
	}
	return &tm, nil
}

func (r *SQLiteRepository) RecordNotification(ctx context.Context, in Notification) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, dedup_key, task_id, kind, message, severity, shown_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.Key, in.TaskID, in.Kind, in.Message, in.Severity, mustTime(in.ShownAt),
	)
	return err
}

func (r *SQLiteRepository) ListNotifications(ctx context.Context, filter NotificationListFilter) ([]Notification, error) {
	query := `SELECT id, dedup_key, task_id, kind, message, severity, shown_at FROM notifications`
	clauses := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if filter.Severity != "" {
		clauses = append(clauses, "severity = ?")
		args = append(args, filter.Severity)
	}
	if filter.TaskID != 0 {
		clauses = append(clauses, "task_id = ?")
		args = append(args, filter.TaskID)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY shown_at DESC`
	query += applyPagination(&args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Notification, 0)
	for rows.Next() {
		item, scanErr := scanNotification(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) PruneNotifications(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE shown_at < ?`, mustTime(before))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.UTC().Format(sqliteTimeLayout)
}

func mustTime(v time.Time) string {
	return v.UTC().Format(sqliteTimeLayout)
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func parseNullableTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	tm, err := time.Parse(sqliteTimeLayout, v.String)
	if err != nil {
		return nil, err
	}
	return &tm, nil
}

func parseRequiredTime(v string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, v)
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func applyPagination(args *[]any, limit, offset int) string {
	sql := ""
	if limit > 0 {
		sql += " LIMIT ?"
		*args = append(*args, limit)
	} else if offset > 0 {
		sql += " LIMIT -1"
	}
	if offset > 0 {
		sql += " OFFSET ?"
		*args = append(*args, offset)
	}
	return sql
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (Task, error) {
	var out Task
	var due sql.NullString
	var created string
	var completed int
	var status sql.NullInt64
	var fetched string
	if err := s.Scan(&out.ID, &out.Title, &out.Description, &due, &created, &completed, &status, &fetched); err != nil {
		return Task{}, err
	}
	createdAt, err := parseRequiredTime(created)
	if err != nil {
		return Task{}, err
	}
	dueAt, err := parseNullableTime(due)
	if err != nil {
		return Task{}, err
	}
	fetchedAt, err := parseRequiredTime(fetched)
	if err != nil {
		return Task{}, err
	}
	out.CreatedAt = createdAt
	out.DueAt = dueAt
	out.FetchedAt = fetchedAt
	out.Completed = completed == 1
	if status.Valid {
		v := int(status.Int64)
		out.Status = &v
	}
	return out, nil
}

func scanNotification(s scanner) (Notification, error) {
	var out Notification
	var shown string
	if err := s.Scan(&out.ID, &out.Key, &out.TaskID, &out.Kind, &out.Message, &out.Severity, &shown); err != nil {
		return Notification{}, err
	}
	shownAt, err := parseRequiredTime(shown)
	if err != nil {
		return Notification{}, err
	}
	out.ShownAt = shownAt
	return out, nil
}
