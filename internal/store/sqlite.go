package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nibzard/tasktrack/internal/datadir"
	"github.com/nibzard/tasktrack/internal/todo"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	user_id      TEXT    NOT NULL,
	position     INTEGER NOT NULL,
	description  TEXT    NOT NULL,
	due_date     TEXT    NOT NULL DEFAULT '',
	priority     INTEGER NOT NULL,
	status       INTEGER NOT NULL,
	created_at   INTEGER NOT NULL,
	completed_at INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (user_id, position)
);`

// SQLiteBackend stores every account's tasks in one SQLite database.
type SQLiteBackend struct {
	db   *sql.DB
	path string
}

// NewSQLiteBackend opens (creating if needed) the database at path.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, &datadir.StorageError{Op: "create dir", Path: filepath.Dir(path), Err: err}
	}
	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, &datadir.StorageError{Op: "open", Path: path, Err: err}
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = FULL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, &datadir.StorageError{Op: "open", Path: path, Err: fmt.Errorf("pragma %q: %w", p, err)}
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, &datadir.StorageError{Op: "migrate", Path: path, Err: err}
	}
	return &SQLiteBackend{db: db, path: path}, nil
}

// Load returns the account's rows ordered by position. Rows with
// out-of-range ordinals are skipped and counted.
func (b *SQLiteBackend) Load(userID string) ([]todo.Task, int, error) {
	rows, err := b.db.Query(`SELECT description, due_date, priority, status, created_at, completed_at
		FROM tasks WHERE user_id = ? ORDER BY position`, userID)
	if err != nil {
		return nil, 0, &datadir.StorageError{Op: "query", Path: b.path, Err: err}
	}
	defer rows.Close()

	var (
		tasks   []todo.Task
		skipped int
	)
	for rows.Next() {
		var (
			t                      todo.Task
			priority, status       int
			createdAt, completedAt int64
		)
		if err := rows.Scan(&t.Description, &t.DueDate, &priority, &status, &createdAt, &completedAt); err != nil {
			return nil, 0, &datadir.StorageError{Op: "scan", Path: b.path, Err: err}
		}
		t.Priority = todo.Priority(priority)
		t.Status = todo.Status(status)
		if !t.Priority.Valid() || !t.Status.Valid() || createdAt < 0 || completedAt < 0 {
			skipped++
			continue
		}
		t.CreatedAt = time.Unix(createdAt, 0)
		if completedAt != 0 {
			t.CompletedAt = time.Unix(completedAt, 0)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, &datadir.StorageError{Op: "query", Path: b.path, Err: err}
	}
	return tasks, skipped, nil
}

// Save replaces the account's rows in a single transaction.
func (b *SQLiteBackend) Save(userID string, tasks []todo.Task) error {
	tx, err := b.db.Begin()
	if err != nil {
		return &datadir.StorageError{Op: "begin", Path: b.path, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM tasks WHERE user_id = ?`, userID); err != nil {
		return &datadir.StorageError{Op: "delete", Path: b.path, Err: err}
	}
	stmt, err := tx.Prepare(`INSERT INTO tasks
		(user_id, position, description, due_date, priority, status, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return &datadir.StorageError{Op: "prepare", Path: b.path, Err: err}
	}
	defer stmt.Close()

	for i, t := range tasks {
		var completedAt int64
		if !t.CompletedAt.IsZero() {
			completedAt = t.CompletedAt.Unix()
		}
		if _, err := stmt.Exec(userID, i, t.Description, t.DueDate, int(t.Priority), int(t.Status), t.CreatedAt.Unix(), completedAt); err != nil {
			return &datadir.StorageError{Op: "insert", Path: b.path, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &datadir.StorageError{Op: "commit", Path: b.path, Err: err}
	}
	return nil
}

// Close closes the database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
