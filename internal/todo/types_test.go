package todo

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nibzard/tasktrack/internal/dates"
)

func TestNew(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 30, 15, 500, time.Local)

	task, err := New("Buy milk", "2099-01-01", PriorityLow, now)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if task.Status != StatusPending {
		t.Errorf("Status: got %v, want Pending", task.Status)
	}
	if !task.CompletedAt.IsZero() {
		t.Errorf("CompletedAt: got %v, want zero", task.CompletedAt)
	}
	if task.CreatedAt.Unix() != now.Unix() {
		t.Errorf("CreatedAt: got %v, want %v", task.CreatedAt, now)
	}
	if task.CreatedAt.Nanosecond() != 0 {
		t.Errorf("CreatedAt should have whole-second precision, got %d ns", task.CreatedAt.Nanosecond())
	}
}

func TestNewValidation(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.Local)

	tests := []struct {
		name     string
		desc     string
		due      string
		priority Priority
		want     error
	}{
		{"empty description", "", "", PriorityMedium, ErrEmptyDescription},
		{"too long", strings.Repeat("x", MaxDescriptionLength+1), "", PriorityMedium, ErrDescriptionTooLong},
		{"pipe in description", "a|b", "", PriorityMedium, ErrInvalidDescription},
		{"newline in description", "a\nb", "", PriorityMedium, ErrInvalidDescription},
		{"malformed due", "ok", "2025-13-01", PriorityMedium, dates.ErrMalformedDate},
		{"past due", "ok", "2025-05-31", PriorityMedium, dates.ErrPastDate},
		{"bad priority", "ok", "", Priority(7), ErrInvalidPriority},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.desc, tt.due, tt.priority, now)
			if !errors.Is(err, tt.want) {
				t.Fatalf("New() error = %v, want %v", err, tt.want)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("expected *ValidationError, got %T", err)
			}
		})
	}

	if _, err := New(strings.Repeat("é", MaxDescriptionLength), "", PriorityHigh, now); err != nil {
		t.Errorf("200 multi-byte characters should be accepted: %v", err)
	}
}

func TestSetStatusCompletionStamp(t *testing.T) {
	created := time.Date(2025, 6, 1, 9, 0, 0, 0, time.Local)
	task, err := New("Buy milk", "2099-01-01", PriorityLow, created)
	if err != nil {
		t.Fatal(err)
	}

	first := created.Add(time.Hour)
	if err := task.SetStatus(StatusCompleted, first); err != nil {
		t.Fatal(err)
	}
	if !task.CompletedAt.Equal(first) {
		t.Fatalf("CompletedAt: got %v, want %v", task.CompletedAt, first)
	}

	// Completing again keeps the first stamp.
	if err := task.SetStatus(StatusCompleted, first.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if !task.CompletedAt.Equal(first) {
		t.Errorf("CompletedAt changed on second completion: %v", task.CompletedAt)
	}

	// Leaving Completed never clears the stamp.
	if err := task.SetStatus(StatusPending, first.Add(2*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if task.Status != StatusPending {
		t.Errorf("Status: got %v, want Pending", task.Status)
	}
	if !task.CompletedAt.Equal(first) {
		t.Errorf("CompletedAt cleared or changed: %v", task.CompletedAt)
	}

	if err := task.SetStatus(Status(9), first); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("SetStatus(9) error = %v, want ErrInvalidStatus", err)
	}
}

func TestAnyStatusTransition(t *testing.T) {
	now := time.Now()
	for _, from := range Statuses {
		for _, to := range Statuses {
			task := Task{Description: "x", Priority: PriorityMedium, Status: from, CreatedAt: now}
			if err := task.SetStatus(to, now); err != nil {
				t.Errorf("%v -> %v: %v", from, to, err)
			}
			if task.Status != to {
				t.Errorf("%v -> %v: got %v", from, to, task.Status)
			}
		}
	}
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in   string
		want Priority
		ok   bool
	}{
		{"low", PriorityLow, true},
		{"Medium", PriorityMedium, true},
		{" HIGH ", PriorityHigh, true},
		{"1", PriorityLow, true},
		{"3", PriorityHigh, true},
		{"0", 0, false},
		{"4", 0, false},
		{"urgent", 0, false},
	}
	for _, tt := range tests {
		got, err := ParsePriority(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("ParsePriority(%q) error = %v, want ok=%v", tt.in, err, tt.ok)
			continue
		}
		if tt.ok && got != tt.want {
			t.Errorf("ParsePriority(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want Status
		ok   bool
	}{
		{"pending", StatusPending, true},
		{"In Progress", StatusInProgress, true},
		{"in_progress", StatusInProgress, true},
		{"in-progress", StatusInProgress, true},
		{"Completed", StatusCompleted, true},
		{"done", StatusCompleted, true},
		{"0", StatusPending, true},
		{"2", StatusCompleted, true},
		{"3", 0, false},
		{"blocked", 0, false},
	}
	for _, tt := range tests {
		got, err := ParseStatus(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("ParseStatus(%q) error = %v, want ok=%v", tt.in, err, tt.ok)
			continue
		}
		if tt.ok && got != tt.want {
			t.Errorf("ParseStatus(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDisplayHelpers(t *testing.T) {
	task := Task{Description: strings.Repeat("a", 30)}
	if got := task.ShortDescription(27); got != strings.Repeat("a", 27)+"..." {
		t.Errorf("ShortDescription: got %q", got)
	}
	task.Description = "short"
	if got := task.ShortDescription(27); got != "short" {
		t.Errorf("ShortDescription: got %q, want short", got)
	}
	if got := task.DueLabel(); got != "None" {
		t.Errorf("DueLabel: got %q, want None", got)
	}
	if StatusInProgress.String() != "In Progress" {
		t.Errorf("StatusInProgress.String() = %q", StatusInProgress.String())
	}
	if PriorityHigh.Key() != "high" {
		t.Errorf("PriorityHigh.Key() = %q", PriorityHigh.Key())
	}
}

func TestIsOverdue(t *testing.T) {
	today := "2025-06-01"
	tests := []struct {
		name string
		task Task
		want bool
	}{
		{"past pending", Task{DueDate: "2025-05-01", Status: StatusPending}, true},
		{"past in progress", Task{DueDate: "2025-05-01", Status: StatusInProgress}, true},
		{"past completed", Task{DueDate: "2025-05-01", Status: StatusCompleted}, false},
		{"today", Task{DueDate: "2025-06-01"}, false},
		{"no due date", Task{}, false},
	}
	for _, tt := range tests {
		if got := tt.task.IsOverdue(today); got != tt.want {
			t.Errorf("%s: IsOverdue = %v, want %v", tt.name, got, tt.want)
		}
	}
}
