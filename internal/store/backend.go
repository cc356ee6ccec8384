package store

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/nibzard/tasktrack/internal/datadir"
	"github.com/nibzard/tasktrack/internal/todo"
)

// Backend kinds accepted by OpenBackend.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// ErrUnknownBackend is returned by OpenBackend for an unsupported kind.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Backend persists the task list of each account.
type Backend interface {
	// Load returns the stored tasks for userID in order and the number of
	// malformed records that were skipped. Missing data is an empty list.
	Load(userID string) (tasks []todo.Task, skipped int, err error)
	// Save replaces the stored tasks for userID.
	Save(userID string, tasks []todo.Task) error
	Close() error
}

// OpenBackend opens the backend named by kind inside layout.
func OpenBackend(kind string, layout datadir.Layout) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", BackendFile:
		return NewFileBackend(layout), nil
	case BackendSQLite:
		return NewSQLiteBackend(layout.DBPath())
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, kind)
}

// FileBackend keeps one pipe-delimited file per account.
type FileBackend struct {
	layout datadir.Layout
}

// NewFileBackend returns a backend writing under layout's tasks directory.
func NewFileBackend(layout datadir.Layout) *FileBackend {
	return &FileBackend{layout: layout}
}

// Path returns the task file for userID.
func (b *FileBackend) Path(userID string) string {
	return b.layout.TaskFile(userID)
}

// Load reads the task file. A missing file yields no tasks.
func (b *FileBackend) Load(userID string) ([]todo.Task, int, error) {
	path := b.Path(userID)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, &datadir.StorageError{Op: "read", Path: path, Err: err}
	}
	tasks, skipped, err := todo.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, &datadir.StorageError{Op: "read", Path: path, Err: err}
	}
	return tasks, skipped, nil
}

// Save rewrites the task file atomically.
func (b *FileBackend) Save(userID string, tasks []todo.Task) error {
	return datadir.WriteFileAtomic(b.Path(userID), todo.Marshal(tasks), 0o600)
}

// Close is a no-op.
func (b *FileBackend) Close() error {
	return nil
}
