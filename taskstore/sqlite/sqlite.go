// Package sqlite implements agentmesh.TaskStore using pure-Go SQLite.
// Zero CGO required.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/agentmesh-go/agentmesh"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets a structured logger for the store. When set, the store
// emits debug logs for every operation including timing and key
// parameters. If not set, no logs are emitted.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// Store implements agentmesh.TaskStore backed by a local SQLite file.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ agentmesh.TaskStore = (*Store)(nil)

var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// New creates a Store using a local SQLite file at dbPath. It opens a
// single shared connection pool with SetMaxOpenConns(1) so that all
// goroutines serialize through one connection, eliminating SQLITE_BUSY
// errors caused by concurrent writers opening independent connections.
func New(dbPath string, opts ...StoreOption) *Store {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		// sql.Open only fails when the driver is not registered; with the
		// blank import above that never happens.
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, logger: nopLogger}
	for _, o := range opts {
		o(s)
	}
	s.logger.Debug("sqlite: store opened", "path", dbPath)
	return s
}

// Init creates the tasks table and its indexes.
func (s *Store) Init(ctx context.Context) error {
	start := time.Now()
	s.logger.Debug("sqlite: init started")

	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS tasks (
		task_id     TEXT PRIMARY KEY,
		status      TEXT NOT NULL,
		name        TEXT NOT NULL,
		content     TEXT NOT NULL,
		submit_time INTEGER NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	_, _ = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_submit_time ON tasks(submit_time)`)
	_, _ = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`)

	s.logger.Info("sqlite: init completed", "duration", time.Since(start))
	return nil
}

// Create inserts a new Task row.
func (s *Store) Create(ctx context.Context, t agentmesh.Task) error {
	start := time.Now()
	s.logger.Debug("sqlite: create task", "task_id", t.TaskID, "name", t.Name)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (task_id, status, name, content, submit_time) VALUES (?, ?, ?, ?, ?)`,
		t.TaskID, string(t.Status), t.Name, t.Content, t.SubmitTime,
	)
	if err != nil {
		s.logger.Error("sqlite: create task failed", "task_id", t.TaskID, "error", err, "duration", time.Since(start))
		return fmt.Errorf("create task: %w", err)
	}
	s.logger.Debug("sqlite: create task ok", "task_id", t.TaskID, "duration", time.Since(start))
	return nil
}

// UpdateStatus mutates only the status column of an existing row.
func (s *Store) UpdateStatus(ctx context.Context, taskID string, status agentmesh.TaskStatus) error {
	start := time.Now()
	s.logger.Debug("sqlite: update task status", "task_id", taskID, "status", status)

	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET status = ? WHERE task_id = ?`, string(status), taskID)
	if err != nil {
		s.logger.Error("sqlite: update task status failed", "task_id", taskID, "error", err, "duration", time.Since(start))
		return fmt.Errorf("update task status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return agentmesh.ErrTaskNotFound
	}
	s.logger.Debug("sqlite: update task status ok", "task_id", taskID, "duration", time.Since(start))
	return nil
}

// Get returns a single Task row, or agentmesh.ErrTaskNotFound.
func (s *Store) Get(ctx context.Context, taskID string) (agentmesh.Task, error) {
	start := time.Now()
	s.logger.Debug("sqlite: get task", "task_id", taskID)

	var t agentmesh.Task
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT task_id, status, name, content, submit_time FROM tasks WHERE task_id = ?`, taskID,
	).Scan(&t.TaskID, &status, &t.Name, &t.Content, &t.SubmitTime)
	if err == sql.ErrNoRows {
		s.logger.Debug("sqlite: get task not found", "task_id", taskID, "duration", time.Since(start))
		return agentmesh.Task{}, agentmesh.ErrTaskNotFound
	}
	if err != nil {
		s.logger.Error("sqlite: get task failed", "task_id", taskID, "error", err, "duration", time.Since(start))
		return agentmesh.Task{}, fmt.Errorf("get task: %w", err)
	}
	t.Status = agentmesh.TaskStatus(status)
	s.logger.Debug("sqlite: get task ok", "task_id", taskID, "duration", time.Since(start))
	return t, nil
}

// Query returns a page of Task rows matching q, sorted by submit_time
// descending.
func (s *Store) Query(ctx context.Context, q agentmesh.TaskQuery) (agentmesh.TaskPage, error) {
	start := time.Now()
	s.logger.Debug("sqlite: query tasks", "page", q.Page, "page_size", q.PageSize, "status", q.Status, "name_like", q.NameLike)

	page := q.Page
	if page < 1 {
		page = 1
	}
	pageSize := q.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var where []string
	var args []any
	if q.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(q.Status))
	}
	if q.NameLike != "" {
		where = append(where, "name LIKE ?")
		args = append(args, "%"+q.NameLike+"%")
	}
	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`+whereClause, args...).Scan(&total); err != nil {
		s.logger.Error("sqlite: query tasks count failed", "error", err, "duration", time.Since(start))
		return agentmesh.TaskPage{}, fmt.Errorf("count tasks: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT task_id, status, name, content, submit_time FROM tasks`+whereClause+
			` ORDER BY submit_time DESC LIMIT ? OFFSET ?`,
		append(append([]any{}, args...), pageSize, (page-1)*pageSize)...,
	)
	if err != nil {
		s.logger.Error("sqlite: query tasks failed", "error", err, "duration", time.Since(start))
		return agentmesh.TaskPage{}, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []agentmesh.Task
	for rows.Next() {
		var t agentmesh.Task
		var status string
		if err := rows.Scan(&t.TaskID, &status, &t.Name, &t.Content, &t.SubmitTime); err != nil {
			return agentmesh.TaskPage{}, fmt.Errorf("scan task: %w", err)
		}
		t.Status = agentmesh.TaskStatus(status)
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return agentmesh.TaskPage{}, fmt.Errorf("iterate tasks: %w", err)
	}

	s.logger.Debug("sqlite: query tasks ok", "total", total, "returned", len(tasks), "duration", time.Since(start))
	return agentmesh.TaskPage{Total: total, Page: page, PageSize: pageSize, Tasks: tasks}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	s.logger.Debug("sqlite: closing store")
	err := s.db.Close()
	if err != nil {
		s.logger.Error("sqlite: close failed", "error", err)
	}
	return err
}
