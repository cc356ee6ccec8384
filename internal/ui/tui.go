// Package ui provides the optional terminal dashboard.
package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nibzard/tasktrack/internal/dates"
	"github.com/nibzard/tasktrack/internal/query"
	"github.com/nibzard/tasktrack/internal/store"
	"github.com/nibzard/tasktrack/internal/todo"
)

const descriptionWidth = 40

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	headingStyle = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	cursorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	overdueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// TUIOption configures the dashboard.
type TUIOption func(*tuiModel)

// WithEngine sets the query engine used for filters and overdue marks.
func WithEngine(e *query.Engine) TUIOption {
	return func(m *tuiModel) {
		if e != nil {
			m.engine = e
		}
	}
}

// WithRefreshInterval sets how often the dashboard recomputes date-relative views.
func WithRefreshInterval(d time.Duration) TUIOption {
	return func(m *tuiModel) {
		if d > 0 {
			m.tickInterval = d
		}
	}
}

// RunTUI shows the dashboard for st until the user quits or ctx is done.
func RunTUI(ctx context.Context, st *store.TaskStore, opts ...TUIOption) error {
	if !IsTTY(os.Stdout) {
		return fmt.Errorf("tui requires a TTY")
	}
	model := newTUIModel(st, opts...)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	finalModel, err := program.Run()
	if err != nil {
		return err
	}
	if m, ok := finalModel.(*tuiModel); ok && m.sortErr != nil {
		return m.sortErr
	}
	return nil
}

type tuiModel struct {
	store        *store.TaskStore
	engine       *query.Engine
	tickInterval time.Duration

	filter   *query.Filter
	sortKey  query.SortKey
	sortErr  error
	cursor   int
	showHelp bool
	detail   bool

	window  query.Window
	visible []todo.Task
	stats   query.Stats
	empty   bool
}

type tickMsg time.Time

func newTUIModel(st *store.TaskStore, opts ...TUIOption) *tuiModel {
	m := &tuiModel{
		store:        st,
		engine:       query.NewEngine(),
		tickInterval: time.Minute,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.refresh()
	return m
}

func (m *tuiModel) Init() tea.Cmd {
	return tickCmd(m.tickInterval)
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "r", "f5":
			m.refresh()
		case "h", "?":
			m.showHelp = !m.showHelp
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.visible)-1 {
				m.cursor++
			}
		case "enter", " ":
			m.detail = !m.detail
		case "1":
			m.setFilter(query.StatusIs(todo.StatusPending))
		case "2":
			m.setFilter(query.StatusIs(todo.StatusInProgress))
		case "3":
			m.setFilter(query.StatusIs(todo.StatusCompleted))
		case "4":
			m.setFilter(query.Overdue())
		case "5":
			m.setFilter(query.DueThisWeek())
		case "6":
			m.setFilter(query.DueToday())
		case "0":
			m.filter = nil
			m.refresh()
		case "d":
			m.sortBy(query.SortDueDate)
		case "p":
			m.sortBy(query.SortPriority)
		case "s":
			m.sortBy(query.SortStatus)
		case "c":
			m.sortBy(query.SortCreated)
		}
	case tickMsg:
		m.refresh()
		return m, tickCmd(m.tickInterval)
	}
	return m, nil
}

func (m *tuiModel) setFilter(f query.Filter) {
	m.filter = &f
	m.cursor = 0
	m.refresh()
}

func (m *tuiModel) sortBy(key query.SortKey) {
	if err := m.store.Sort(key); err != nil {
		m.sortErr = err
		return
	}
	m.sortKey = key
	m.refresh()
}

func (m *tuiModel) refresh() {
	tasks := m.store.Tasks()
	m.window = m.engine.Window()
	stats, err := m.engine.Statistics(tasks)
	m.empty = err != nil
	m.stats = stats
	if m.filter != nil {
		tasks = m.engine.Filter(tasks, *m.filter)
	}
	m.visible = tasks
	if m.cursor >= len(m.visible) {
		m.cursor = len(m.visible) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *tuiModel) View() string {
	var b strings.Builder
	writeTitle(&b, m.store.UserID())

	if m.showHelp {
		writeHelp(&b)
		writeFooter(&b)
		return b.String()
	}

	writeOverview(&b, m.stats, m.empty)

	if m.filter != nil {
		b.WriteString(fmt.Sprintf("Filter: %s (0 to clear)\n", m.filter.Name))
	}
	if m.sortKey != 0 {
		b.WriteString(fmt.Sprintf("Sorted by %s\n", m.sortKey))
	}
	if m.sortErr != nil {
		b.WriteString(errorStyle.Render("Sort failed: "+m.sortErr.Error()) + "\n")
	}
	b.WriteString("\n")

	m.writeTasks(&b)
	if m.detail && len(m.visible) > 0 {
		writeDetail(&b, m.visible[m.cursor])
	}
	writeFooter(&b)
	return b.String()
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func writeTitle(b *strings.Builder, user string) {
	b.WriteString(titleStyle.Render("tasktrack: "+user) + "\n\n")
}

func writeOverview(b *strings.Builder, s query.Stats, empty bool) {
	b.WriteString(headingStyle.Render("Overview") + "\n")
	if empty {
		b.WriteString("  No tasks yet.\n\n")
		return
	}
	b.WriteString(fmt.Sprintf("  Pending: %d  In Progress: %d  Completed: %d (%d%%)  Overdue: %d\n\n",
		s.ByStatus[todo.StatusPending],
		s.ByStatus[todo.StatusInProgress],
		s.ByStatus[todo.StatusCompleted],
		s.Percent(s.ByStatus[todo.StatusCompleted]),
		s.Overdue,
	))
}

func (m *tuiModel) writeTasks(b *strings.Builder) {
	b.WriteString(headingStyle.Render("Tasks") + "\n")
	if len(m.visible) == 0 {
		b.WriteString("  No tasks match.\n\n")
		return
	}
	for i, t := range m.visible {
		line := formatTask(t, m.window.Today)
		switch {
		case i == m.cursor:
			line = cursorStyle.Render("> " + line)
		case t.IsOverdue(m.window.Today):
			line = "  " + overdueStyle.Render(line)
		case t.Status == todo.StatusCompleted:
			line = "  " + doneStyle.Render(line)
		default:
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n")
}

func writeDetail(b *strings.Builder, t todo.Task) {
	b.WriteString(headingStyle.Render("Details") + "\n")
	b.WriteString("  Description: " + t.Description + "\n")
	b.WriteString("  Due:         " + t.DueLabel() + "\n")
	b.WriteString("  Priority:    " + t.Priority.String() + "\n")
	b.WriteString("  Status:      " + t.Status.String() + "\n")
	b.WriteString("  Created:     " + dates.FormatTime(t.CreatedAt) + "\n")
	if t.Status == todo.StatusCompleted && !t.CompletedAt.IsZero() {
		b.WriteString("  Completed:   " + dates.FormatTime(t.CompletedAt) + "\n")
	}
	b.WriteString("\n")
}

func writeHelp(b *strings.Builder) {
	b.WriteString(headingStyle.Render("Keyboard Shortcuts") + "\n\n")
	b.WriteString("  q, ctrl+c    Quit\n")
	b.WriteString("  r, F5        Refresh\n")
	b.WriteString("  j/k, arrows  Move\n")
	b.WriteString("  enter        Toggle task details\n")
	b.WriteString("  1 2 3        Filter pending, in progress, completed\n")
	b.WriteString("  4 5 6        Filter overdue, due this week, due today\n")
	b.WriteString("  0            Clear filter\n")
	b.WriteString("  d p s c      Sort by due date, priority, status, creation\n")
	b.WriteString("  h, ?         Toggle this help screen\n\n")
}

func writeFooter(b *strings.Builder) {
	b.WriteString(dimStyle.Render("Press h for help | q to quit") + "\n")
}

func formatTask(t todo.Task, today string) string {
	icon := " "
	switch t.Status {
	case todo.StatusInProgress:
		icon = ">"
	case todo.StatusCompleted:
		icon = "x"
	}
	if t.IsOverdue(today) {
		icon = "!"
	}
	return fmt.Sprintf("[%s] %-*s %-10s %-6s", icon, descriptionWidth+3, t.ShortDescription(descriptionWidth), t.DueLabel(), t.Priority)
}

// IsTTY returns true if w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
