// Package datadir lays out the tracker's state directory and writes files into it.
package datadir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// Dir is the default state directory name under the user's home.
	Dir = ".tasktrack"

	// DefaultRegistryFile is the account registry file name.
	DefaultRegistryFile = "user_details.txt"

	// DefaultTasksDir holds one task file per account.
	DefaultTasksDir = "tasks"

	// DefaultDBFile is the SQLite database used by the sqlite storage backend.
	DefaultDBFile = "tasks.db"

	// DefaultLogDir holds activity journals.
	DefaultLogDir = "logs"

	// DefaultConfigFile is the config file name.
	DefaultConfigFile = "tasktrack.toml"

	// TaskFileExt is appended to a user id to name its task file.
	TaskFileExt = ".txt"
)

// ErrStorageUnavailable matches every StorageError.
var ErrStorageUnavailable = errors.New("storage unavailable")

// StorageError reports a failed read or write of persisted state.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrStorageUnavailable) match any StorageError.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorageUnavailable
}

// Layout resolves the files under a data directory.
type Layout struct {
	Root         string
	RegistryFile string
	TasksDir     string
	DBFile       string
}

// NewLayout returns the default layout rooted at root.
func NewLayout(root string) Layout {
	return Layout{
		Root:         root,
		RegistryFile: DefaultRegistryFile,
		TasksDir:     DefaultTasksDir,
		DBFile:       DefaultDBFile,
	}
}

// RegistryPath returns the account registry path.
func (l Layout) RegistryPath() string {
	return l.resolve(l.RegistryFile)
}

// TasksPath returns the per-account task directory.
func (l Layout) TasksPath() string {
	return l.resolve(l.TasksDir)
}

// TaskFile returns the task file path for userID.
func (l Layout) TaskFile(userID string) string {
	return filepath.Join(l.TasksPath(), userID+TaskFileExt)
}

// DBPath returns the SQLite database path.
func (l Layout) DBPath() string {
	return l.resolve(l.DBFile)
}

func (l Layout) resolve(p string) string {
	if filepath.IsAbs(p) || l.Root == "" {
		return p
	}
	return filepath.Join(l.Root, p)
}

// WriteFileAtomic replaces path with data through a synced temp file and a
// rename, so readers see either the previous file or the new one.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &StorageError{Op: "create dir", Path: dir, Err: err}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return &StorageError{Op: "write", Path: path, Err: err}
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return &StorageError{Op: "write", Path: path, Err: err}
	}
	if err := tmp.Chmod(perm); err != nil {
		return &StorageError{Op: "write", Path: path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		return &StorageError{Op: "sync", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &StorageError{Op: "write", Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return &StorageError{Op: "rename", Path: path, Err: err}
	}
	committed = true
	return nil
}

// AppendLine appends line plus a newline to path, creating it if needed.
func AppendLine(path, line string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &StorageError{Op: "create dir", Path: filepath.Dir(path), Err: err}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return &StorageError{Op: "open", Path: path, Err: err}
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		_ = f.Close()
		return &StorageError{Op: "append", Path: path, Err: err}
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return &StorageError{Op: "sync", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &StorageError{Op: "close", Path: path, Err: err}
	}
	return nil
}
