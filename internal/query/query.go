// Package query sorts, filters and summarizes task lists.
package query

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nibzard/tasktrack/internal/dates"
	"github.com/nibzard/tasktrack/internal/todo"
)

// WeekDays is the length of the due-this-week window after today.
const WeekDays = 7

var (
	ErrUnknownSortKey = errors.New("unknown sort key")
	ErrUnknownFilter  = errors.New("unknown filter")
	ErrNoTasks        = errors.New("no tasks")
)

// SortKey selects a sort order.
type SortKey int

const (
	SortDueDate SortKey = iota + 1
	SortPriority
	SortStatus
	SortCreated
)

// SortKeys lists every sort key in menu order.
var SortKeys = []SortKey{SortDueDate, SortPriority, SortStatus, SortCreated}

func (k SortKey) String() string {
	switch k {
	case SortDueDate:
		return "due date"
	case SortPriority:
		return "priority"
	case SortStatus:
		return "status"
	case SortCreated:
		return "creation date"
	default:
		return fmt.Sprintf("SortKey(%d)", int(k))
	}
}

// ParseSortKey maps "due", "priority", "status" or "created" to a key.
func ParseSortKey(s string) (SortKey, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "due", "due_date", "duedate", "due-date":
		return SortDueDate, nil
	case "priority":
		return SortPriority, nil
	case "status":
		return SortStatus, nil
	case "created", "created_at", "creation", "newest":
		return SortCreated, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSortKey, s)
}

// Sort reorders tasks in place. Ties keep their current relative order,
// so sorting twice by the same key changes nothing.
func Sort(tasks []todo.Task, key SortKey) error {
	var less func(a, b todo.Task) bool
	switch key {
	case SortDueDate:
		less = func(a, b todo.Task) bool {
			if a.HasDueDate() != b.HasDueDate() {
				return a.HasDueDate()
			}
			return a.DueDate < b.DueDate
		}
	case SortPriority:
		less = func(a, b todo.Task) bool { return a.Priority > b.Priority }
	case SortStatus:
		less = func(a, b todo.Task) bool { return a.Status < b.Status }
	case SortCreated:
		less = func(a, b todo.Task) bool { return a.CreatedAt.After(b.CreatedAt) }
	default:
		return fmt.Errorf("%w: %d", ErrUnknownSortKey, int(key))
	}
	sort.SliceStable(tasks, func(i, j int) bool { return less(tasks[i], tasks[j]) })
	return nil
}

// Window is the inclusive due-this-week range.
type Window struct {
	Today   string
	WeekEnd string
}

// Contains reports whether date falls inside the window.
func (w Window) Contains(date string) bool {
	return date != "" && date >= w.Today && date <= w.WeekEnd
}

// Filter is a named task predicate evaluated against a window.
type Filter struct {
	Name  string
	match func(todo.Task, Window) bool
}

// Match reports whether t passes the filter within w.
func (f Filter) Match(t todo.Task, w Window) bool {
	return f.match != nil && f.match(t, w)
}

// StatusIs matches tasks with exactly status s.
func StatusIs(s todo.Status) Filter {
	return Filter{
		Name:  "status " + s.String(),
		match: func(t todo.Task, _ Window) bool { return t.Status == s },
	}
}

// PriorityIs matches tasks with exactly priority p.
func PriorityIs(p todo.Priority) Filter {
	return Filter{
		Name:  "priority " + p.String(),
		match: func(t todo.Task, _ Window) bool { return t.Priority == p },
	}
}

// DueToday matches tasks due today.
func DueToday() Filter {
	return Filter{
		Name:  "due today",
		match: func(t todo.Task, w Window) bool { return t.DueDate == w.Today },
	}
}

// DueThisWeek matches tasks due from today through today plus seven days.
func DueThisWeek() Filter {
	return Filter{
		Name:  "due this week",
		match: func(t todo.Task, w Window) bool { return w.Contains(t.DueDate) },
	}
}

// Overdue matches unfinished tasks whose due date has passed.
func Overdue() Filter {
	return Filter{
		Name:  "overdue",
		match: func(t todo.Task, w Window) bool { return t.IsOverdue(w.Today) },
	}
}

// ParseFilter maps a filter name to a Filter. Accepted forms are
// "status:<status>", "priority:<priority>", "today", "week", "overdue",
// and bare status or priority names.
func ParseFilter(s string) (Filter, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if kind, value, ok := strings.Cut(name, ":"); ok {
		switch kind {
		case "status":
			st, err := todo.ParseStatus(value)
			if err != nil {
				return Filter{}, fmt.Errorf("%w: %q", ErrUnknownFilter, s)
			}
			return StatusIs(st), nil
		case "priority":
			p, err := todo.ParsePriority(value)
			if err != nil {
				return Filter{}, fmt.Errorf("%w: %q", ErrUnknownFilter, s)
			}
			return PriorityIs(p), nil
		}
		return Filter{}, fmt.Errorf("%w: %q", ErrUnknownFilter, s)
	}

	switch name {
	case "today", "due-today", "due_today":
		return DueToday(), nil
	case "week", "this-week", "due-this-week", "due_this_week":
		return DueThisWeek(), nil
	case "overdue":
		return Overdue(), nil
	}
	for _, st := range todo.Statuses {
		if name == st.Key() || name == strings.ToLower(st.String()) {
			return StatusIs(st), nil
		}
	}
	for _, p := range todo.Priorities {
		if name == p.Key() {
			return PriorityIs(p), nil
		}
	}
	return Filter{}, fmt.Errorf("%w: %q", ErrUnknownFilter, s)
}

// Engine evaluates date-relative queries against its clock.
type Engine struct {
	now func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used to compute today.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine returns an engine using the system clock unless overridden.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Today returns the current local date.
func (e *Engine) Today() string {
	return dates.Today(e.now())
}

// Window returns today and the last day of the due-this-week window.
func (e *Engine) Window() Window {
	today := e.Today()
	end, err := dates.AddDays(today, WeekDays)
	if err != nil {
		end = today
	}
	return Window{Today: today, WeekEnd: end}
}

// Filter returns the tasks matching f in their current order. The input is
// not modified. An empty result is not an error.
func (e *Engine) Filter(tasks []todo.Task, f Filter) []todo.Task {
	w := e.Window()
	out := make([]todo.Task, 0, len(tasks))
	for _, t := range tasks {
		if f.Match(t, w) {
			out = append(out, t)
		}
	}
	return out
}

// Stats summarizes a non-empty task list.
type Stats struct {
	Total      int
	ByStatus   map[todo.Status]int
	ByPriority map[todo.Priority]int
	Overdue    int
}

// Percent returns n as a floored percentage of Total.
func (s Stats) Percent(n int) int {
	if s.Total == 0 {
		return 0
	}
	return n * 100 / s.Total
}

// Statistics counts tasks by status and priority and counts overdue tasks.
// It returns ErrNoTasks for an empty list.
func (e *Engine) Statistics(tasks []todo.Task) (Stats, error) {
	if len(tasks) == 0 {
		return Stats{}, ErrNoTasks
	}
	today := e.Today()
	s := Stats{
		Total:      len(tasks),
		ByStatus:   make(map[todo.Status]int, len(todo.Statuses)),
		ByPriority: make(map[todo.Priority]int, len(todo.Priorities)),
	}
	for _, t := range tasks {
		s.ByStatus[t.Status]++
		s.ByPriority[t.Priority]++
		if t.IsOverdue(today) {
			s.Overdue++
		}
	}
	return s, nil
}
