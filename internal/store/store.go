// Package store holds an account's ordered task list and persists every
// change through a Backend.
//
// Tasks are addressed by their 0-based position. Removing a task shifts the
// tasks after it down by one.
package store

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nibzard/tasktrack/internal/dates"
	"github.com/nibzard/tasktrack/internal/logging"
	"github.com/nibzard/tasktrack/internal/query"
	"github.com/nibzard/tasktrack/internal/todo"
)

var (
	ErrOutOfRange   = errors.New("task index out of range")
	ErrUnknownField = errors.New("unknown task field")
)

// Field names an editable task field.
type Field string

const (
	FieldDescription Field = "description"
	FieldDueDate     Field = "due"
	FieldPriority    Field = "priority"
	FieldStatus      Field = "status"
)

// Fields lists the editable fields in menu order.
var Fields = []Field{FieldDescription, FieldDueDate, FieldPriority, FieldStatus}

// ParseField maps a field name to a Field.
func ParseField(s string) (Field, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "description", "desc":
		return FieldDescription, nil
	case "due", "due_date", "duedate", "due-date":
		return FieldDueDate, nil
	case "priority":
		return FieldPriority, nil
	case "status":
		return FieldStatus, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// Journal records store mutations.
type Journal interface {
	Record(logging.Event) error
}

// TaskStore is the task list of one account.
type TaskStore struct {
	userID  string
	tasks   []todo.Task
	backend Backend
	now     func() time.Time
	logger  *log.Logger
	journal Journal
}

// Option configures a TaskStore.
type Option func(*TaskStore)

// WithClock sets the clock used for creation and completion stamps.
func WithClock(now func() time.Time) Option {
	return func(s *TaskStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger for store events.
func WithLogger(logger *log.Logger) Option {
	return func(s *TaskStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithJournal records every mutation to j.
func WithJournal(j Journal) Option {
	return func(s *TaskStore) {
		s.journal = j
	}
}

func newStore(backend Backend, userID string, opts []Option) *TaskStore {
	s := &TaskStore{
		userID:  userID,
		backend: backend,
		now:     time.Now,
		logger:  log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create returns an empty store for userID and persists it immediately.
func Create(backend Backend, userID string, opts ...Option) (*TaskStore, error) {
	s := newStore(backend, userID, opts)
	if err := s.Save(); err != nil {
		return nil, err
	}
	return s, nil
}

// Open loads the stored tasks for userID. Missing data is an empty store and
// malformed records are skipped.
func Open(backend Backend, userID string, opts ...Option) (*TaskStore, error) {
	s := newStore(backend, userID, opts)
	tasks, skipped, err := backend.Load(userID)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		s.logger.Warn("skipped malformed task records", "user", userID, "skipped", skipped)
	}
	s.tasks = tasks
	s.logger.Debug("tasks loaded", "user", userID, "count", len(tasks))
	return s, nil
}

// UserID returns the owning account.
func (s *TaskStore) UserID() string {
	return s.userID
}

// Len returns the number of tasks.
func (s *TaskStore) Len() int {
	return len(s.tasks)
}

// Tasks returns a copy of the task list in its current order.
func (s *TaskStore) Tasks() []todo.Task {
	out := make([]todo.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Get returns the task at index.
func (s *TaskStore) Get(index int) (todo.Task, error) {
	if err := s.checkIndex(index); err != nil {
		return todo.Task{}, err
	}
	return s.tasks[index], nil
}

// Add appends a new pending task and persists the list.
func (s *TaskStore) Add(description, dueDate string, priority todo.Priority) (todo.Task, error) {
	task, err := todo.New(description, dueDate, priority, s.now())
	if err != nil {
		return todo.Task{}, err
	}
	next := append(s.clone(), task)
	if err := s.commit(next); err != nil {
		return todo.Task{}, err
	}
	s.record("add", len(s.tasks)-1, task)
	return task, nil
}

// Edit updates one field of the task at index using the same rules as Add.
// The list is saved even when the new value is rejected; an out-of-range
// index returns without saving. A failed save leaves the task unchanged.
func (s *TaskStore) Edit(index int, field Field, value string) error {
	if err := s.checkIndex(index); err != nil {
		return err
	}

	task := s.tasks[index]
	editErr := s.apply(&task, field, value)
	next := s.clone()
	next[index] = task
	if err := s.commit(next); err != nil {
		return errors.Join(editErr, err)
	}
	if editErr != nil {
		return editErr
	}
	s.record("edit", index, task, "field", string(field))
	return nil
}

func (s *TaskStore) apply(t *todo.Task, field Field, value string) error {
	switch field {
	case FieldDescription:
		if err := todo.ValidateDescription(value); err != nil {
			return err
		}
		t.Description = value
	case FieldDueDate:
		if err := todo.ValidateDueDate(value, s.now()); err != nil {
			return err
		}
		t.DueDate = value
	case FieldPriority:
		p, err := todo.ParsePriority(value)
		if err != nil {
			return &todo.ValidationError{Field: "priority", Err: err}
		}
		t.Priority = p
	case FieldStatus:
		st, err := todo.ParseStatus(value)
		if err != nil {
			return &todo.ValidationError{Field: "status", Err: err}
		}
		return t.SetStatus(st, s.now())
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}

// Remove deletes the task at index and persists the list.
func (s *TaskStore) Remove(index int) (todo.Task, error) {
	if err := s.checkIndex(index); err != nil {
		return todo.Task{}, err
	}
	removed := s.tasks[index]
	next := make([]todo.Task, 0, len(s.tasks)-1)
	next = append(next, s.tasks[:index]...)
	next = append(next, s.tasks[index+1:]...)
	if err := s.commit(next); err != nil {
		return todo.Task{}, err
	}
	s.record("remove", index, removed)
	return removed, nil
}

// SetStatus moves the task at index to status, persists, and returns the
// updated task.
func (s *TaskStore) SetStatus(index int, status todo.Status) (todo.Task, error) {
	if err := s.checkIndex(index); err != nil {
		return todo.Task{}, err
	}
	task := s.tasks[index]
	if err := task.SetStatus(status, s.now()); err != nil {
		return todo.Task{}, err
	}
	next := s.clone()
	next[index] = task
	if err := s.commit(next); err != nil {
		return todo.Task{}, err
	}
	s.record("status", index, task)
	return task, nil
}

// Sort reorders the list in place. The new order is persisted by the next
// save.
func (s *TaskStore) Sort(key query.SortKey) error {
	if err := query.Sort(s.tasks, key); err != nil {
		return err
	}
	s.logger.Debug("tasks sorted", "user", s.userID, "key", key.String())
	return nil
}

// Append adds already-built tasks, as read from an export, and persists.
// Descriptions and due-date shape are checked; past due dates are allowed.
func (s *TaskStore) Append(tasks ...todo.Task) error {
	for i, t := range tasks {
		if err := todo.ValidateDescription(t.Description); err != nil {
			return fmt.Errorf("task %d: %w", i+1, err)
		}
		if t.DueDate != "" && !dates.IsValid(t.DueDate) {
			return fmt.Errorf("task %d: %w", i+1, &todo.ValidationError{Field: "due date", Err: dates.ErrMalformedDate})
		}
		if !t.Priority.Valid() {
			return fmt.Errorf("task %d: %w", i+1, &todo.ValidationError{Field: "priority", Err: todo.ErrInvalidPriority})
		}
		if !t.Status.Valid() {
			return fmt.Errorf("task %d: %w", i+1, &todo.ValidationError{Field: "status", Err: todo.ErrInvalidStatus})
		}
		if t.CreatedAt.IsZero() || t.CreatedAt.Unix() < 0 {
			return fmt.Errorf("task %d: %w", i+1, &todo.ValidationError{Field: "created at", Err: todo.ErrMissingCreatedAt})
		}
	}
	start := len(s.tasks)
	if err := s.commit(append(s.clone(), tasks...)); err != nil {
		return err
	}
	for i, t := range tasks {
		s.record("import", start+i, t)
	}
	return nil
}

// Save persists the full list.
func (s *TaskStore) Save() error {
	return s.commit(s.tasks)
}

// commit persists next and makes it the current list. On failure the
// current list is kept.
func (s *TaskStore) commit(next []todo.Task) error {
	if err := s.backend.Save(s.userID, next); err != nil {
		s.logger.Error("save failed", "user", s.userID, "err", err)
		return err
	}
	s.tasks = next
	return nil
}

func (s *TaskStore) clone() []todo.Task {
	next := make([]todo.Task, len(s.tasks), len(s.tasks)+1)
	copy(next, s.tasks)
	return next
}

// Clear drops the in-memory list without touching storage.
func (s *TaskStore) Clear() {
	s.tasks = nil
}

func (s *TaskStore) checkIndex(index int) error {
	if index < 0 || index >= len(s.tasks) {
		return fmt.Errorf("%w: %d (have %d)", ErrOutOfRange, index, len(s.tasks))
	}
	return nil
}

func (s *TaskStore) record(kind string, index int, t todo.Task, kv ...string) {
	s.logger.Debug("task "+kind, "user", s.userID, "index", index)
	if s.journal == nil {
		return
	}
	ev := logging.Event{
		Kind:  kind,
		Index: index,
		Task:  t.Description,
		Data:  map[string]string{"status": t.Status.Key(), "priority": t.Priority.Key()},
	}
	if t.DueDate != "" {
		ev.Data["due"] = t.DueDate
	}
	for i := 0; i+1 < len(kv); i += 2 {
		ev.Data[kv[i]] = kv[i+1]
	}
	if err := s.journal.Record(ev); err != nil {
		s.logger.Warn("journal write failed", "err", err)
	}
}
