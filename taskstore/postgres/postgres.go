// Package postgres implements agentmesh.TaskStore using PostgreSQL.
//
// Store accepts an externally-owned *pgxpool.Pool via constructor
// injection. The caller creates and closes the pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agentmesh-go/agentmesh"
)

// Store implements agentmesh.TaskStore backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ agentmesh.TaskStore = (*Store)(nil)

// New creates a Store using an existing pgxpool.Pool. The caller owns the
// pool and is responsible for closing it.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Init creates the tasks table and its indexes. Safe to call multiple
// times (all statements are idempotent).
func (s *Store) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			task_id     TEXT PRIMARY KEY,
			status      TEXT NOT NULL,
			name        TEXT NOT NULL,
			content     TEXT NOT NULL,
			submit_time BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_submit_time ON tasks(submit_time)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init tasks table: %w", err)
		}
	}
	return nil
}

// Create inserts a new Task row.
func (s *Store) Create(ctx context.Context, t agentmesh.Task) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tasks (task_id, status, name, content, submit_time) VALUES ($1, $2, $3, $4, $5)`,
		t.TaskID, string(t.Status), t.Name, t.Content, t.SubmitTime,
	)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// UpdateStatus mutates only the status column of an existing row.
func (s *Store) UpdateStatus(ctx context.Context, taskID string, status agentmesh.TaskStatus) error {
	tag, err := s.pool.Exec(ctx, `UPDATE tasks SET status = $1 WHERE task_id = $2`, string(status), taskID)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return agentmesh.ErrTaskNotFound
	}
	return nil
}

// Get returns a single Task row, or agentmesh.ErrTaskNotFound.
func (s *Store) Get(ctx context.Context, taskID string) (agentmesh.Task, error) {
	var t agentmesh.Task
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT task_id, status, name, content, submit_time FROM tasks WHERE task_id = $1`, taskID,
	).Scan(&t.TaskID, &status, &t.Name, &t.Content, &t.SubmitTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return agentmesh.Task{}, agentmesh.ErrTaskNotFound
	}
	if err != nil {
		return agentmesh.Task{}, fmt.Errorf("get task: %w", err)
	}
	t.Status = agentmesh.TaskStatus(status)
	return t, nil
}

// Query returns a page of Task rows matching q, sorted by submit_time
// descending.
func (s *Store) Query(ctx context.Context, q agentmesh.TaskQuery) (agentmesh.TaskPage, error) {
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
	argN := 1
	if q.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", argN))
		args = append(args, string(q.Status))
		argN++
	}
	if q.NameLike != "" {
		where = append(where, fmt.Sprintf("name LIKE $%d", argN))
		args = append(args, "%"+q.NameLike+"%")
		argN++
	}
	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks`+whereClause, args...).Scan(&total); err != nil {
		return agentmesh.TaskPage{}, fmt.Errorf("count tasks: %w", err)
	}

	pageArgs := append(append([]any{}, args...), pageSize, (page-1)*pageSize)
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT task_id, status, name, content, submit_time FROM tasks%s ORDER BY submit_time DESC LIMIT $%d OFFSET $%d`,
			whereClause, argN, argN+1),
		pageArgs...,
	)
	if err != nil {
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

	return agentmesh.TaskPage{Total: total, Page: page, PageSize: pageSize, Tasks: tasks}, nil
}
