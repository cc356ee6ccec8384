// Package logging builds the console logger and writes per-session JSONL
// activity journals.
package logging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// JournalExt is the journal file extension.
const JournalExt = ".jsonl"

// timeNow is a package-level var to allow test injection.
var timeNow = time.Now

// Event is one journal line.
type Event struct {
	Time    time.Time         `json:"time"`
	Session string            `json:"session,omitempty"`
	User    string            `json:"user,omitempty"`
	Kind    string            `json:"kind"`
	Index   int               `json:"index"`
	Task    string            `json:"task,omitempty"`
	Data    map[string]string `json:"data,omitempty"`
}

// Journal appends the events of one session to its own JSONL file.
type Journal struct {
	Dir     string
	RunID   string
	LogPath string
	Session string
	User    string

	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// OpenJournal creates <baseDir>/<userID>/<runID>.jsonl.
func OpenJournal(baseDir, userID, sessionID string) (*Journal, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("log base dir is empty")
	}
	if userID == "" {
		return nil, fmt.Errorf("journal user is empty")
	}

	dir := UserLogDir(baseDir, userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	id := runID()
	path := filepath.Join(dir, id+JournalExt)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}

	return &Journal{
		Dir:     dir,
		RunID:   id,
		LogPath: path,
		Session: sessionID,
		User:    userID,
		file:    file,
		enc:     json.NewEncoder(file),
	}, nil
}

// Record writes ev, filling in time, session and user when unset.
func (j *Journal) Record(ev Event) error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return errors.New("journal closed")
	}
	if ev.Time.IsZero() {
		ev.Time = timeNow().UTC()
	}
	if ev.Session == "" {
		ev.Session = j.Session
	}
	if ev.User == "" {
		ev.User = j.User
	}
	return j.enc.Encode(ev)
}

// Close closes the journal file.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}

// UserLogDir returns the journal directory for userID.
func UserLogDir(baseDir, userID string) string {
	return filepath.Join(baseDir, sanitizeLabel(userID))
}

func sanitizeLabel(input string) string {
	if strings.TrimSpace(input) == "" {
		return "user"
	}

	var b strings.Builder
	for i := 0; i < len(input); i++ {
		c := input[i]
		valid := (c >= 'A' && c <= 'Z') ||
			(c >= 'a' && c <= 'z') ||
			(c >= '0' && c <= '9') ||
			c == '_' || c == '-'
		if !valid {
			b.WriteByte('_')
			continue
		}
		b.WriteByte(c)
	}

	label := strings.Trim(b.String(), "_")
	if label == "" {
		return "user"
	}
	return label
}

func runID() string {
	return fmt.Sprintf("%s-%d", timeNow().UTC().Format("20060102-150405"), os.Getpid())
}

// ReadEvents decodes every event in a journal file. Lines that are not valid
// JSON are skipped.
func ReadEvents(path string) ([]Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	var events []Event
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// FindLatestLog finds the latest JSONL log file in a directory.
func FindLatestLog(logDir string) (string, error) {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read log dir: %w", err)
	}

	var latest string
	var latestTime time.Time

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), JournalExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latest = filepath.Join(logDir, entry.Name())
		}
	}

	return latest, nil
}

// LogRun is one journal file.
type LogRun struct {
	RunID   string
	ModTime time.Time
	Path    string
	Size    int64
}

// FindLogRuns lists the journals in a directory, newest first.
func FindLogRuns(logDir string) ([]LogRun, error) {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read log dir: %w", err)
	}

	var runs []LogRun
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, JournalExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		runs = append(runs, LogRun{
			RunID:   strings.TrimSuffix(name, JournalExt),
			ModTime: info.ModTime(),
			Path:    filepath.Join(logDir, name),
			Size:    info.Size(),
		})
	}

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].ModTime.Equal(runs[j].ModTime) {
			return runs[i].RunID > runs[j].RunID
		}
		return runs[i].ModTime.After(runs[j].ModTime)
	})

	return runs, nil
}

// TailLog writes a log file to w, optionally following it until ctx is done.
func TailLog(ctx context.Context, w io.Writer, path string, n int, follow bool) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if n > 0 {
		if err := tailSeek(file, n); err != nil {
			return fmt.Errorf("seek to tail position: %w", err)
		}
	}

	if _, err := io.Copy(w, file); err != nil {
		return err
	}
	if !follow {
		return nil
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := io.Copy(w, file); err != nil {
				return err
			}
		}
	}
}

// tailSeek positions file at the start of the last n lines.
func tailSeek(file *os.File, n int) error {
	stat, err := file.Stat()
	if err != nil {
		return err
	}

	const chunk = 4096
	size := stat.Size()
	offset := size
	newlines := 0
	buf := make([]byte, chunk)

	for offset > 0 {
		readSize := int64(chunk)
		if offset < readSize {
			readSize = offset
		}
		offset -= readSize
		if _, err := file.ReadAt(buf[:readSize], offset); err != nil && err != io.EOF {
			return err
		}
		for i := readSize - 1; i >= 0; i-- {
			if buf[i] != '\n' {
				continue
			}
			// A trailing newline ends the last line rather than starting one.
			if offset+i == size-1 {
				continue
			}
			newlines++
			if newlines == n {
				_, err := file.Seek(offset+i+1, io.SeekStart)
				return err
			}
		}
	}

	_, err = file.Seek(0, io.SeekStart)
	return err
}
