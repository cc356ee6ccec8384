package todo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nibzard/tasktrack/internal/dates"
)

// MaxDescriptionLength is the longest accepted description, in characters.
const MaxDescriptionLength = 200

var (
	// ErrEmptyDescription is returned for an empty description.
	ErrEmptyDescription = errors.New("description cannot be empty")
	// ErrDescriptionTooLong is returned past MaxDescriptionLength characters.
	ErrDescriptionTooLong = fmt.Errorf("description too long, maximum %d characters", MaxDescriptionLength)
	// ErrInvalidDescription is returned for a description holding the record
	// separator or a line break.
	ErrInvalidDescription = errors.New("description cannot contain '|' or line breaks")
	// ErrInvalidPriority is returned for an unknown priority name or ordinal.
	ErrInvalidPriority = errors.New("invalid priority, must be low, medium or high")
	// ErrInvalidStatus is returned for an unknown status name or ordinal.
	ErrInvalidStatus = errors.New("invalid status, must be pending, in progress or completed")
	// ErrMissingCreatedAt is returned for an imported task without a
	// creation time.
	ErrMissingCreatedAt = errors.New("creation time is missing or before 1970")
)

// Priority is a task priority. The numeric values are the persisted ordinals.
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityMedium Priority = 2
	PriorityHigh   Priority = 3
)

// Priorities lists all priorities from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityHigh
}

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityMedium:
		return "Medium"
	case PriorityHigh:
		return "High"
	default:
		return "Unknown"
	}
}

// Key returns the lowercase name used in exports and on the command line.
func (p Priority) Key() string {
	return strings.ToLower(p.String())
}

// ParsePriority accepts a priority name ("low", "High") or its ordinal ("1".."3").
func ParsePriority(s string) (Priority, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "low", "l":
		return PriorityLow, nil
	case "medium", "med", "m":
		return PriorityMedium, nil
	case "high", "h":
		return PriorityHigh, nil
	}
	if n, err := strconv.Atoi(s); err == nil && Priority(n).Valid() {
		return Priority(n), nil
	}
	return 0, ErrInvalidPriority
}

// Status is a task lifecycle state. The numeric values are the persisted ordinals.
type Status int

const (
	StatusPending    Status = 0
	StatusInProgress Status = 1
	StatusCompleted  Status = 2
)

// Statuses lists all statuses in lifecycle order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s >= StatusPending && s <= StatusCompleted
}

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusInProgress:
		return "In Progress"
	case StatusCompleted:
		return "Completed"
	default:
		return "Unknown"
	}
}

// Key returns the snake_case name used in exports and on the command line.
func (s Status) Key() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// ParseStatus accepts a status name ("pending", "In Progress", "in_progress")
// or its ordinal ("0".."2").
func ParseStatus(s string) (Status, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(norm)
	switch norm {
	case "pending", "todo":
		return StatusPending, nil
	case "inprogress", "doing":
		return StatusInProgress, nil
	case "completed", "done":
		return StatusCompleted, nil
	}
	if n, err := strconv.Atoi(norm); err == nil && Status(n).Valid() {
		return Status(n), nil
	}
	return 0, ErrInvalidStatus
}

// Task is a single entry in an account's task list.
type Task struct {
	Description string
	DueDate     string // YYYY-MM-DD, empty for none
	Priority    Priority
	Status      Status
	CreatedAt   time.Time
	CompletedAt time.Time // zero until the first completion
}

// ValidationError reports which task field failed validation.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// New builds a pending task created at now. The due date must pass the
// due-date policy relative to now.
func New(description, dueDate string, priority Priority, now time.Time) (Task, error) {
	if err := ValidateDescription(description); err != nil {
		return Task{}, err
	}
	if err := ValidateDueDate(dueDate, now); err != nil {
		return Task{}, err
	}
	if !priority.Valid() {
		return Task{}, &ValidationError{Field: "priority", Err: ErrInvalidPriority}
	}
	return Task{
		Description: description,
		DueDate:     dueDate,
		Priority:    priority,
		Status:      StatusPending,
		CreatedAt:   truncate(now),
	}, nil
}

// ValidateDescription checks length and forbidden characters.
func ValidateDescription(description string) error {
	if description == "" {
		return &ValidationError{Field: "description", Err: ErrEmptyDescription}
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return &ValidationError{Field: "description", Err: ErrDescriptionTooLong}
	}
	if strings.ContainsAny(description, "|\r\n") {
		return &ValidationError{Field: "description", Err: ErrInvalidDescription}
	}
	return nil
}

// ValidateDueDate applies the due-date policy relative to now.
func ValidateDueDate(dueDate string, now time.Time) error {
	if err := dates.ValidateDue(dueDate, now); err != nil {
		return &ValidationError{Field: "due date", Err: err}
	}
	return nil
}

// SetStatus moves the task to status. The first entry into Completed stamps
// CompletedAt; CompletedAt is never cleared afterwards.
func (t *Task) SetStatus(status Status, now time.Time) error {
	if !status.Valid() {
		return &ValidationError{Field: "status", Err: ErrInvalidStatus}
	}
	t.Status = status
	if status == StatusCompleted && t.CompletedAt.IsZero() {
		t.CompletedAt = truncate(now)
	}
	return nil
}

// HasDueDate reports whether a due date is set.
func (t Task) HasDueDate() bool {
	return t.DueDate != ""
}

// IsOverdue reports whether the task is past due on today and not completed.
func (t Task) IsOverdue(today string) bool {
	return t.HasDueDate() && t.DueDate < today && t.Status != StatusCompleted
}

// DueLabel returns the due date or "None".
func (t Task) DueLabel() string {
	if t.DueDate == "" {
		return "None"
	}
	return t.DueDate
}

// ShortDescription keeps the first max characters of the description and
// appends "..." when it had to cut.
func (t Task) ShortDescription(max int) string {
	if max <= 0 || utf8.RuneCountInString(t.Description) <= max {
		return t.Description
	}
	runes := []rune(t.Description)
	return string(runes[:max]) + "..."
}

// truncate drops sub-second precision so timestamps survive the epoch-seconds
// file format unchanged.
func truncate(t time.Time) time.Time {
	return time.Unix(t.Unix(), 0)
}
