// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-json-experiment/json"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	a2a "github.com/go-a2a/a2a-gateway"
	"github.com/go-a2a/a2a-gateway/internal/sqlitepool"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	id         TEXT PRIMARY KEY,
	context_id TEXT NOT NULL,
	state      TEXT NOT NULL,
	body       TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_context ON tasks(context_id);

CREATE TABLE IF NOT EXISTS context_sessions (
	context_id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// SQLiteStore is an embedded single-file SQL implementation of Store.
type SQLiteStore struct {
	pool *sqlitepool.Pool
}

var _ Store = (*SQLiteStore)(nil)

// SQLiteStoreConfig holds configuration for SQLiteStore.
type SQLiteStoreConfig struct {
	Path     string
	PoolSize int
	Logger   *slog.Logger
}

// NewSQLiteStore opens the database at config.Path, creating the schema on
// every new connection.
func NewSQLiteStore(config SQLiteStoreConfig) (*SQLiteStore, error) {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     config.Path,
		PoolSize: config.PoolSize,
		Logger:   config.Logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, sqliteSchema, nil)
		},
	})
	if err != nil {
		return nil, NewStoreError("open", config.Path, err)
	}
	return &SQLiteStore{pool: pool}, nil
}

// GetTask retrieves a task by its ID.
func (s *SQLiteStore) GetTask(ctx context.Context, taskID string) (*a2a.Task, error) {
	if taskID == "" {
		return nil, fmt.Errorf("task ID cannot be empty")
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, NewStoreError("get_task", taskID, err)
	}
	defer s.pool.Put(conn)

	var body string
	found := false
	err = sqlitex.Execute(conn, "SELECT body FROM tasks WHERE id = ?", &sqlitex.ExecOptions{
		Args: []any{taskID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			body = stmt.ColumnText(0)
			found = true
			return nil
		},
	})
	if err != nil {
		return nil, NewStoreError("get_task", taskID, err)
	}
	if !found {
		return nil, a2a.TaskNotFoundError{TaskID: taskID}
	}

	var task a2a.Task
	if err := json.Unmarshal([]byte(body), &task); err != nil {
		return nil, NewStoreError("get_task", taskID, fmt.Errorf("decode task: %w", err))
	}
	return &task, nil
}

// PutTask upserts a task.
func (s *SQLiteStore) PutTask(ctx context.Context, task *a2a.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(task, lenientText)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", task.ID, err)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return NewStoreError("put_task", task.ID, err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `INSERT INTO tasks (id, context_id, state, body, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			context_id = excluded.context_id,
			state = excluded.state,
			body = excluded.body,
			updated_at = excluded.updated_at`, &sqlitex.ExecOptions{
		Args: []any{task.ID, task.ContextID, string(task.Status.State), string(body), time.Now().UnixNano()},
	})
	if err != nil {
		return NewStoreError("put_task", task.ID, err)
	}
	return nil
}

// GetContextSession returns the session bound to contextID.
func (s *SQLiteStore) GetContextSession(ctx context.Context, contextID string) (string, bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return "", false, NewStoreError("get_context_session", contextID, err)
	}
	defer s.pool.Put(conn)

	var sessionID string
	found := false
	err = sqlitex.Execute(conn, "SELECT session_id FROM context_sessions WHERE context_id = ?", &sqlitex.ExecOptions{
		Args: []any{contextID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			sessionID = stmt.ColumnText(0)
			found = true
			return nil
		},
	})
	if err != nil {
		return "", false, NewStoreError("get_context_session", contextID, err)
	}
	return sessionID, found, nil
}

// PutContextSession binds contextID to sessionID.
func (s *SQLiteStore) PutContextSession(ctx context.Context, contextID, sessionID string) error {
	if contextID == "" {
		return fmt.Errorf("context ID cannot be empty")
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return NewStoreError("put_context_session", contextID, err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `INSERT INTO context_sessions (context_id, session_id, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(context_id) DO UPDATE SET
			session_id = excluded.session_id,
			updated_at = excluded.updated_at`, &sqlitex.ExecOptions{
		Args: []any{contextID, sessionID, time.Now().UnixNano()},
	})
	if err != nil {
		return NewStoreError("put_context_session", contextID, err)
	}
	return nil
}

// Ready reports whether a connection can be taken and queried.
func (s *SQLiteStore) Ready(ctx context.Context) bool {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return false
	}
	defer s.pool.Put(conn)
	return sqlitex.ExecuteTransient(conn, "SELECT 1", nil) == nil
}

// Close closes the connection pool.
func (s *SQLiteStore) Close() error {
	return s.pool.Close()
}
