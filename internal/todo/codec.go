package todo

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Separator delimits fields in a persisted task line.
const Separator = "|"

// recordFields is the minimum number of fields in a task line:
// description|dueDate|priority|status|createdAt|completedAt
const recordFields = 6

// ErrMalformedRecord reports a task line that cannot be decoded.
var ErrMalformedRecord = errors.New("malformed task record")

// EncodeLine renders t as a single persisted line, without the newline.
func EncodeLine(t Task) string {
	completed := int64(0)
	if !t.CompletedAt.IsZero() {
		completed = t.CompletedAt.Unix()
	}
	return strings.Join([]string{
		t.Description,
		t.DueDate,
		strconv.Itoa(int(t.Priority)),
		strconv.Itoa(int(t.Status)),
		strconv.FormatInt(t.CreatedAt.Unix(), 10),
		strconv.FormatInt(completed, 10),
	}, Separator)
}

// DecodeLine parses a persisted line. Fields past the sixth are ignored.
func DecodeLine(line string) (Task, error) {
	parts := strings.Split(line, Separator)
	if len(parts) < recordFields {
		return Task{}, fmt.Errorf("%w: want %d fields, got %d", ErrMalformedRecord, recordFields, len(parts))
	}

	priority, err := strconv.Atoi(parts[2])
	if err != nil || !Priority(priority).Valid() {
		return Task{}, fmt.Errorf("%w: priority %q", ErrMalformedRecord, parts[2])
	}
	status, err := strconv.Atoi(parts[3])
	if err != nil || !Status(status).Valid() {
		return Task{}, fmt.Errorf("%w: status %q", ErrMalformedRecord, parts[3])
	}
	created, err := strconv.ParseInt(parts[4], 10, 64)
	if err != nil || created < 0 {
		return Task{}, fmt.Errorf("%w: created %q", ErrMalformedRecord, parts[4])
	}
	completed, err := strconv.ParseInt(parts[5], 10, 64)
	if err != nil || completed < 0 {
		return Task{}, fmt.Errorf("%w: completed %q", ErrMalformedRecord, parts[5])
	}

	task := Task{
		Description: parts[0],
		DueDate:     parts[1],
		Priority:    Priority(priority),
		Status:      Status(status),
		CreatedAt:   time.Unix(created, 0),
	}
	if completed != 0 {
		task.CompletedAt = time.Unix(completed, 0)
	}
	return task, nil
}

// Marshal renders tasks as newline-terminated lines.
func Marshal(tasks []Task) []byte {
	var buf bytes.Buffer
	for _, t := range tasks {
		buf.WriteString(EncodeLine(t))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// Decode reads task lines from r. Malformed lines are skipped and counted;
// blank lines are ignored.
func Decode(r io.Reader) (tasks []Task, skipped int, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		task, err := DecodeLine(line)
		if err != nil {
			skipped++
			continue
		}
		tasks = append(tasks, task)
	}
	if err := scanner.Err(); err != nil {
		return tasks, skipped, fmt.Errorf("read task records: %w", err)
	}
	return tasks, skipped, nil
}
