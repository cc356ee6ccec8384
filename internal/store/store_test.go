package store

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/nibzard/tasktrack/internal/datadir"
	"github.com/nibzard/tasktrack/internal/dates"
	"github.com/nibzard/tasktrack/internal/logging"
	"github.com/nibzard/tasktrack/internal/query"
	"github.com/nibzard/tasktrack/internal/todo"
)

type stepClock struct {
	t time.Time
}

func (c *stepClock) now() time.Time {
	return c.t
}

func (c *stepClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newClock() *stepClock {
	return &stepClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.Local)}
}

type backendCase struct {
	name string
	open func(t *testing.T) Backend
}

func backends() []backendCase {
	return []backendCase{
		{"file", func(t *testing.T) Backend {
			return NewFileBackend(datadir.NewLayout(t.TempDir()))
		}},
		{"sqlite", func(t *testing.T) Backend {
			b, err := OpenBackend(BackendSQLite, datadir.NewLayout(t.TempDir()))
			if err != nil {
				t.Fatalf("open sqlite backend: %v", err)
			}
			t.Cleanup(func() { b.Close() })
			return b
		}},
	}
}

func TestBuyMilkScenario(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			clock := newClock()
			backend := bc.open(t)
			st, err := Create(backend, "alice123", WithClock(clock.now))
			if err != nil {
				t.Fatal(err)
			}

			task, err := st.Add("Buy milk", "2099-01-01", todo.PriorityLow)
			if err != nil {
				t.Fatalf("Add failed: %v", err)
			}
			if task.Status != todo.StatusPending || !task.CompletedAt.IsZero() {
				t.Fatalf("new task: %+v", task)
			}

			clock.advance(time.Hour)
			done, err := st.SetStatus(0, todo.StatusCompleted)
			if err != nil {
				t.Fatal(err)
			}
			if !done.CompletedAt.Equal(clock.t) {
				t.Fatalf("CompletedAt = %v, want %v", done.CompletedAt, clock.t)
			}
			stamp := done.CompletedAt

			clock.advance(time.Hour)
			back, err := st.SetStatus(0, todo.StatusPending)
			if err != nil {
				t.Fatal(err)
			}
			if back.Status != todo.StatusPending || !back.CompletedAt.Equal(stamp) {
				t.Errorf("after reopening: %+v", back)
			}

			reloaded, err := Open(backend, "alice123")
			if err != nil {
				t.Fatal(err)
			}
			got, err := reloaded.Get(0)
			if err != nil {
				t.Fatal(err)
			}
			if got.Status != todo.StatusPending || !got.CompletedAt.Equal(stamp) || got.DueDate != "2099-01-01" {
				t.Errorf("reloaded task: %+v", got)
			}
		})
	}
}

func TestRemoveRenumbers(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			backend := bc.open(t)
			st, err := Create(backend, "alice123", WithClock(newClock().now))
			if err != nil {
				t.Fatal(err)
			}
			for _, d := range []string{"one", "two", "three"} {
				if _, err := st.Add(d, "", todo.PriorityMedium); err != nil {
					t.Fatal(err)
				}
			}

			removed, err := st.Remove(0)
			if err != nil {
				t.Fatal(err)
			}
			if removed.Description != "one" {
				t.Errorf("removed %q", removed.Description)
			}
			first, _ := st.Get(0)
			if first.Description != "two" {
				t.Errorf("position 0 after removal = %q, want two", first.Description)
			}
			if _, err := st.Get(2); !errors.Is(err, ErrOutOfRange) {
				t.Errorf("Get(2) error = %v, want ErrOutOfRange", err)
			}

			reloaded, err := Open(backend, "alice123")
			if err != nil {
				t.Fatal(err)
			}
			if reloaded.Len() != 2 {
				t.Errorf("reloaded Len = %d, want 2", reloaded.Len())
			}
		})
	}
}

func TestOutOfRange(t *testing.T) {
	st, err := Create(NewFileBackend(datadir.NewLayout(t.TempDir())), "alice123")
	if err != nil {
		t.Fatal(err)
	}
	for _, idx := range []int{-1, 0, 5} {
		if _, err := st.Remove(idx); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("Remove(%d) error = %v", idx, err)
		}
		if _, err := st.SetStatus(idx, todo.StatusCompleted); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("SetStatus(%d) error = %v", idx, err)
		}
		if err := st.Edit(idx, FieldDescription, "x"); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("Edit(%d) error = %v", idx, err)
		}
	}
}

func TestAddValidation(t *testing.T) {
	st, err := Create(NewFileBackend(datadir.NewLayout(t.TempDir())), "alice123", WithClock(newClock().now))
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		desc, due string
		want      error
	}{
		{"", "", todo.ErrEmptyDescription},
		{strings.Repeat("x", 201), "", todo.ErrDescriptionTooLong},
		{"ok", "2025-02-29", dates.ErrMalformedDate},
		{"ok", "2025-05-31", dates.ErrPastDate},
	}
	for _, tt := range tests {
		if _, err := st.Add(tt.desc, tt.due, todo.PriorityMedium); !errors.Is(err, tt.want) {
			t.Errorf("Add(%q, %q) error = %v, want %v", tt.desc, tt.due, err, tt.want)
		}
	}
	if st.Len() != 0 {
		t.Errorf("rejected tasks were stored: %d", st.Len())
	}
}

// countingBackend wraps a backend and counts saves.
type countingBackend struct {
	Backend
	saves int
}

func (b *countingBackend) Save(userID string, tasks []todo.Task) error {
	b.saves++
	return b.Backend.Save(userID, tasks)
}

func TestEdit(t *testing.T) {
	clock := newClock()
	backend := &countingBackend{Backend: NewFileBackend(datadir.NewLayout(t.TempDir()))}
	st, err := Create(backend, "alice123", WithClock(clock.now))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.Add("Buy milk", "2099-01-01", todo.PriorityLow); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		field Field
		value string
		check func(todo.Task) bool
	}{
		{FieldDescription, "Buy oat milk", func(t todo.Task) bool { return t.Description == "Buy oat milk" }},
		{FieldDueDate, "2030-02-28", func(t todo.Task) bool { return t.DueDate == "2030-02-28" }},
		{FieldPriority, "high", func(t todo.Task) bool { return t.Priority == todo.PriorityHigh }},
		{FieldStatus, "2", func(t todo.Task) bool { return t.Status == todo.StatusCompleted && !t.CompletedAt.IsZero() }},
		{FieldDueDate, "", func(t todo.Task) bool { return t.DueDate == "" }},
	}
	for _, tt := range tests {
		if err := st.Edit(0, tt.field, tt.value); err != nil {
			t.Fatalf("Edit(%s, %q) failed: %v", tt.field, tt.value, err)
		}
		got, _ := st.Get(0)
		if !tt.check(got) {
			t.Errorf("after Edit(%s, %q): %+v", tt.field, tt.value, got)
		}
	}

	before, _ := st.Get(0)
	saves := backend.saves
	if err := st.Edit(0, FieldDueDate, "2025-13-01"); !errors.Is(err, dates.ErrMalformedDate) {
		t.Fatalf("invalid edit error = %v", err)
	}
	if backend.saves != saves+1 {
		t.Errorf("rejected edit should still save: saves %d -> %d", saves, backend.saves)
	}
	after, _ := st.Get(0)
	if after.DueDate != before.DueDate {
		t.Errorf("rejected edit changed due date to %q", after.DueDate)
	}

	saves = backend.saves
	if err := st.Edit(3, FieldDescription, "x"); !errors.Is(err, ErrOutOfRange) {
		t.Fatal(err)
	}
	if backend.saves != saves {
		t.Error("out-of-range edit should not save")
	}

	if err := st.Edit(0, FieldPriority, "urgent"); !errors.Is(err, todo.ErrInvalidPriority) {
		t.Errorf("bad priority error = %v", err)
	}
}

func TestSortPersistsOnNextSave(t *testing.T) {
	clock := newClock()
	backend := NewFileBackend(datadir.NewLayout(t.TempDir()))
	st, err := Create(backend, "alice123", WithClock(clock.now))
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []todo.Priority{todo.PriorityLow, todo.PriorityHigh, todo.PriorityMedium} {
		if _, err := st.Add(p.String(), "", p); err != nil {
			t.Fatal(err)
		}
	}
	if err := st.Sort(query.SortPriority); err != nil {
		t.Fatal(err)
	}
	first, _ := st.Get(0)
	if first.Priority != todo.PriorityHigh {
		t.Fatalf("after sort first = %+v", first)
	}

	onDisk, _, _ := backend.Load("alice123")
	if onDisk[0].Priority != todo.PriorityLow {
		t.Error("sort should not write by itself")
	}
	if err := st.Save(); err != nil {
		t.Fatal(err)
	}
	onDisk, _, _ = backend.Load("alice123")
	if onDisk[0].Priority != todo.PriorityHigh {
		t.Error("sorted order not persisted by Save")
	}
}

func TestOpenMissingAndMalformed(t *testing.T) {
	layout := datadir.NewLayout(t.TempDir())
	backend := NewFileBackend(layout)

	st, err := Open(backend, "nobody")
	if err != nil || st.Len() != 0 {
		t.Fatalf("Open missing = %v, %v", st, err)
	}

	if err := os.MkdirAll(layout.TasksPath(), 0o755); err != nil {
		t.Fatal(err)
	}
	content := "good||2|0|1700000000|0\nbroken line\nalso|bad\n"
	if err := os.WriteFile(backend.Path("alice123"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	st, err = Open(backend, "alice123")
	if err != nil {
		t.Fatal(err)
	}
	if st.Len() != 1 {
		t.Errorf("Len = %d, want 1", st.Len())
	}
}

func TestFileFormat(t *testing.T) {
	clock := newClock()
	layout := datadir.NewLayout(t.TempDir())
	backend := NewFileBackend(layout)
	st, err := Create(backend, "alice123", WithClock(clock.now))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.Add("Buy milk", "2099-01-01", todo.PriorityLow); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(layout.TaskFile("alice123"))
	if err != nil {
		t.Fatal(err)
	}
	want := "Buy milk|2099-01-01|1|0|" + strconv.FormatInt(clock.t.Unix(), 10) + "|0\n"
	if string(data) != want {
		t.Errorf("file = %q, want %q", data, want)
	}
}

func TestAppend(t *testing.T) {
	backend := NewFileBackend(datadir.NewLayout(t.TempDir()))
	st, err := Create(backend, "alice123")
	if err != nil {
		t.Fatal(err)
	}
	imported := []todo.Task{
		{Description: "old", DueDate: "2023-01-01", Priority: todo.PriorityHigh, Status: todo.StatusCompleted, CreatedAt: time.Unix(1672531200, 0)},
	}
	if err := st.Append(imported...); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if st.Len() != 1 {
		t.Errorf("Len = %d", st.Len())
	}

	bad := []todo.Task{{Description: "x", DueDate: "2023-02-30", Priority: todo.PriorityLow}}
	if err := st.Append(bad...); !errors.Is(err, dates.ErrMalformedDate) {
		t.Errorf("Append bad date error = %v", err)
	}
	if st.Len() != 1 {
		t.Error("rejected import should not change the store")
	}
}

func TestAppendRejectsMissingCreatedAt(t *testing.T) {
	for _, bc := range backends() {
		t.Run(bc.name, func(t *testing.T) {
			backend := bc.open(t)
			st, err := Create(backend, "alice123")
			if err != nil {
				t.Fatal(err)
			}
			err = st.Append(todo.Task{Description: "x", Priority: todo.PriorityLow})
			if !errors.Is(err, todo.ErrMissingCreatedAt) {
				t.Fatalf("Append error = %v, want ErrMissingCreatedAt", err)
			}

			reopened, err := Open(backend, "alice123")
			if err != nil {
				t.Fatal(err)
			}
			if reopened.Len() != 0 {
				t.Errorf("rejected import was stored: %+v", reopened.Tasks())
			}
		})
	}
}

// failingBackend wraps a backend and fails every save while failing is set.
type failingBackend struct {
	Backend
	failing bool
}

func (b *failingBackend) Save(userID string, tasks []todo.Task) error {
	if b.failing {
		return &datadir.StorageError{Op: "write", Path: userID, Err: errors.New("disk full")}
	}
	return b.Backend.Save(userID, tasks)
}

func TestFailedSaveLeavesStoreUnchanged(t *testing.T) {
	tests := []struct {
		name string
		op   func(st *TaskStore) error
	}{
		{"add", func(st *TaskStore) error {
			_, err := st.Add("Walk dog", "", todo.PriorityHigh)
			return err
		}},
		{"remove", func(st *TaskStore) error {
			_, err := st.Remove(0)
			return err
		}},
		{"set status", func(st *TaskStore) error {
			_, err := st.SetStatus(0, todo.StatusCompleted)
			return err
		}},
		{"edit", func(st *TaskStore) error {
			return st.Edit(0, FieldDescription, "Buy oat milk")
		}},
		{"append", func(st *TaskStore) error {
			return st.Append(todo.Task{Description: "old", Priority: todo.PriorityLow, CreatedAt: time.Unix(1672531200, 0)})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &failingBackend{Backend: NewFileBackend(datadir.NewLayout(t.TempDir()))}
			st, err := Create(backend, "alice123", WithClock(newClock().now))
			if err != nil {
				t.Fatal(err)
			}
			if _, err := st.Add("Buy milk", "", todo.PriorityLow); err != nil {
				t.Fatal(err)
			}
			want := st.Tasks()

			backend.failing = true
			if err := tt.op(st); !errors.Is(err, datadir.ErrStorageUnavailable) {
				t.Fatalf("error = %v, want ErrStorageUnavailable", err)
			}
			got := st.Tasks()
			if len(got) != len(want) || got[0] != want[0] {
				t.Fatalf("store changed after failed save: got %+v, want %+v", got, want)
			}

			// The next successful save must not carry the failed change.
			backend.failing = false
			if err := st.Save(); err != nil {
				t.Fatal(err)
			}
			reopened, err := Open(backend, "alice123")
			if err != nil {
				t.Fatal(err)
			}
			stored := reopened.Tasks()
			if len(stored) != 1 || stored[0].Description != "Buy milk" || stored[0].Status != todo.StatusPending {
				t.Errorf("persisted after recovery: %+v", stored)
			}
		})
	}
}

type memJournal struct {
	events []logging.Event
}

func (j *memJournal) Record(ev logging.Event) error {
	j.events = append(j.events, ev)
	return nil
}

func TestJournalEvents(t *testing.T) {
	j := &memJournal{}
	st, err := Create(NewFileBackend(datadir.NewLayout(t.TempDir())), "alice123", WithJournal(j), WithClock(newClock().now))
	if err != nil {
		t.Fatal(err)
	}
	st.Add("Buy milk", "", todo.PriorityLow)
	st.Edit(0, FieldPriority, "high")
	st.SetStatus(0, todo.StatusCompleted)
	st.Remove(0)

	want := []string{"add", "edit", "status", "remove"}
	if len(j.events) != len(want) {
		t.Fatalf("events = %+v", j.events)
	}
	for i, k := range want {
		if j.events[i].Kind != k {
			t.Errorf("event %d kind = %q, want %q", i, j.events[i].Kind, k)
		}
	}
	if j.events[1].Data["field"] != "priority" || j.events[1].Data["priority"] != "high" {
		t.Errorf("edit event data = %v", j.events[1].Data)
	}
}

func TestParseFieldAndBackend(t *testing.T) {
	if f, err := ParseField("Due"); err != nil || f != FieldDueDate {
		t.Errorf("ParseField(Due) = %v, %v", f, err)
	}
	if _, err := ParseField("color"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("ParseField(color) error = %v", err)
	}
	if _, err := OpenBackend("postgres", datadir.NewLayout(t.TempDir())); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("OpenBackend(postgres) error = %v", err)
	}
}
