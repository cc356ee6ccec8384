package menu

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nibzard/tasktrack/internal/dates"
	"github.com/nibzard/tasktrack/internal/query"
	"github.com/nibzard/tasktrack/internal/store"
	"github.com/nibzard/tasktrack/internal/todo"
)

const (
	listDescriptionWidth = 27
	taskRuleWidth        = 84
	filterRuleWidth      = 72
)

func (m *Menu) taskStore() *store.TaskStore {
	st, err := m.sess.Store()
	if err != nil {
		return nil
	}
	return st
}

func (m *Menu) addTask() error {
	st := m.taskStore()
	m.println("\n=== Add New Task ===")

	var description string
	for {
		d, err := m.readLine(fmt.Sprintf("Enter task description (max %d characters): ", todo.MaxDescriptionLength))
		if err != nil {
			return err
		}
		if err := todo.ValidateDescription(d); err != nil {
			m.println("Task " + descriptionMessage(err))
			continue
		}
		description = d
		break
	}

	var due string
	for {
		d, err := m.readLine("Enter due date (YYYY-MM-DD, leave empty for no due date): ")
		if err != nil {
			return err
		}
		if err := todo.ValidateDueDate(d, m.now()); err != nil {
			if errors.Is(err, dates.ErrMalformedDate) {
				m.println("Invalid date format. Please use YYYY-MM-DD format.")
			} else {
				m.println(dueDateMessage(err))
			}
			continue
		}
		due = d
		break
	}

	var priority todo.Priority
	for {
		m.println("Select priority:")
		m.printPriorities()
		n, err := m.readInt("Enter choice (1-3): ")
		if errors.Is(err, ErrInvalidNumber) {
			m.println("Invalid input. Please enter a number.")
			continue
		}
		if err != nil {
			return err
		}
		if !todo.Priority(n).Valid() {
			m.println("Invalid choice. Please enter a number between 1 and 3.")
			continue
		}
		priority = todo.Priority(n)
		break
	}

	if _, err := st.Add(description, due, priority); err != nil {
		m.reportError("add task", err)
		return nil
	}
	m.println("Task added successfully!")
	return nil
}

func (m *Menu) viewTasks() {
	tasks := m.taskStore().Tasks()
	m.println("\n=== Your Tasks ===")
	if len(tasks) == 0 {
		m.println("No tasks available.")
		return
	}
	m.printf("%-5s%-30s%-12s%-10s%-15s%-12s\n", "ID", "Description", "Due Date", "Priority", "Status", "Created")
	m.println(strings.Repeat("-", taskRuleWidth))
	for i, t := range tasks {
		m.printf("%-5d%-30s%-12s%-10s%-15s%-12s\n", i+1, t.ShortDescription(listDescriptionWidth),
			t.DueLabel(), t.Priority, t.Status, dates.FormatTime(t.CreatedAt))
	}
	m.println("")
}

// pickTask lists the tasks and asks for a 1-based task number. It returns
// ok=false after telling the user why no task was picked.
func (m *Menu) pickTask(prompt string) (index int, ok bool, err error) {
	st := m.taskStore()
	if st.Len() == 0 {
		m.println("No tasks available.")
		return 0, false, nil
	}
	m.viewTasks()
	n, err := m.readInt(prompt)
	if errors.Is(err, ErrInvalidNumber) {
		m.println("Invalid input.")
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if n < 1 || n > st.Len() {
		m.println("Invalid task ID.")
		return 0, false, nil
	}
	return n - 1, true, nil
}

func (m *Menu) viewDetails() error {
	i, ok, err := m.pickTask("Enter task ID to view details: ")
	if !ok {
		return err
	}
	t, err := m.taskStore().Get(i)
	if err != nil {
		m.reportError("view task", err)
		return nil
	}
	m.println("\n=== Task Details ===")
	m.printf("ID: %d\n", i+1)
	m.printf("Description: %s\n", t.Description)
	m.printf("Due Date: %s\n", t.DueLabel())
	m.printf("Priority: %s\n", t.Priority)
	m.printf("Status: %s\n", t.Status)
	m.printf("Created: %s\n", dates.FormatTime(t.CreatedAt))
	if t.Status == todo.StatusCompleted && !t.CompletedAt.IsZero() {
		m.printf("Completed: %s\n", dates.FormatTime(t.CompletedAt))
	}
	m.println("")
	return nil
}

// readStatus asks for a status by menu number (1-3). ok is false after an
// invalid answer has been reported.
func (m *Menu) readStatus(heading string) (status todo.Status, ok bool, err error) {
	m.println(heading)
	for i, s := range todo.Statuses {
		m.printf("%d. %s\n", i+1, s)
	}
	n, err := m.readInt("Enter choice (1-3): ")
	if errors.Is(err, ErrInvalidNumber) {
		m.println("Invalid input.")
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if n < 1 || n > len(todo.Statuses) {
		m.println("Invalid choice.")
		return 0, false, nil
	}
	return todo.Statuses[n-1], true, nil
}

// readPriority asks for a priority by menu number (1-3).
func (m *Menu) readPriority(heading string) (priority todo.Priority, ok bool, err error) {
	m.println(heading)
	m.printPriorities()
	n, err := m.readInt("Enter choice (1-3): ")
	if errors.Is(err, ErrInvalidNumber) {
		m.println("Invalid input.")
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if !todo.Priority(n).Valid() {
		m.println("Invalid choice.")
		return 0, false, nil
	}
	return todo.Priority(n), true, nil
}

func (m *Menu) printPriorities() {
	for _, p := range todo.Priorities {
		m.printf("%d. %s\n", int(p), p)
	}
}

func (m *Menu) updateStatus() error {
	i, ok, err := m.pickTask("Enter task ID to update status: ")
	if !ok {
		return err
	}
	status, ok, err := m.readStatus("Select new status:")
	if !ok {
		return err
	}

	st := m.taskStore()
	before, err := st.Get(i)
	if err != nil {
		m.reportError("update status", err)
		return nil
	}
	t, err := st.SetStatus(i, status)
	if err != nil {
		m.reportError("update status", err)
		return nil
	}
	if t.Status == todo.StatusCompleted && before.Status != todo.StatusCompleted {
		m.printf("Task marked as completed on %s\n", dates.FormatTime(t.CompletedAt))
	} else {
		m.printf("Task status updated to %s\n", t.Status)
	}
	return nil
}

// editTask changes one field. The list is saved whatever the outcome once a
// field number has been read.
func (m *Menu) editTask() error {
	i, ok, err := m.pickTask("Enter task ID to edit: ")
	if !ok {
		return err
	}
	st := m.taskStore()
	t, err := st.Get(i)
	if err != nil {
		m.reportError("edit task", err)
		return nil
	}

	m.println("\n=== Edit Task ===")
	m.println("Current details:")
	m.printf("1. Description: %s\n", t.Description)
	m.printf("2. Due Date: %s\n", t.DueLabel())
	m.printf("3. Priority: %s\n", t.Priority)
	m.printf("4. Status: %s\n", t.Status)

	choice, err := m.readInt("Enter field number to edit (1-4), or 0 to cancel: ")
	if errors.Is(err, ErrInvalidNumber) {
		m.println("Invalid input.")
		return nil
	}
	if err != nil {
		return err
	}

	switch choice {
	case 0:
		m.println("Edit cancelled.")
	case 1:
		value, err := m.readLine("Enter new description: ")
		if err != nil {
			return err
		}
		if err := st.Edit(i, store.FieldDescription, value); err != nil {
			m.editFailed(err)
			return nil
		}
		m.println("Description updated.")
		return nil
	case 2:
		value, err := m.readLine("Enter new due date (YYYY-MM-DD, leave empty to remove): ")
		if err != nil {
			return err
		}
		if err := st.Edit(i, store.FieldDueDate, value); err != nil {
			m.editFailed(err)
			return nil
		}
		if value == "" {
			m.println("Due date removed.")
		} else {
			m.println("Due date updated.")
		}
		return nil
	case 3:
		p, ok, err := m.readPriority("Select new priority:")
		if err != nil {
			return err
		}
		if ok {
			if err := st.Edit(i, store.FieldPriority, p.Key()); err != nil {
				m.editFailed(err)
				return nil
			}
			m.printf("Priority updated to %s\n", p)
			return nil
		}
	case 4:
		s, ok, err := m.readStatus("Select new status:")
		if err != nil {
			return err
		}
		if ok {
			if err := st.Edit(i, store.FieldStatus, s.Key()); err != nil {
				m.editFailed(err)
				return nil
			}
			m.printf("Status updated to %s\n", s)
			return nil
		}
	default:
		m.println("Invalid choice.")
	}

	if err := st.Save(); err != nil {
		m.reportError("save tasks", err)
	}
	return nil
}

func (m *Menu) editFailed(err error) {
	var verr *todo.ValidationError
	if !errors.As(err, &verr) {
		m.reportError("edit task", err)
		return
	}
	switch verr.Field {
	case "description":
		m.println(capitalize(descriptionMessage(err)))
	case "due date":
		if errors.Is(err, dates.ErrMalformedDate) {
			m.println("Invalid date format.")
		} else {
			m.println(dueDateMessage(err))
		}
	default:
		m.println("Invalid choice.")
	}
}

func (m *Menu) removeTask() error {
	i, ok, err := m.pickTask("Enter task ID to remove: ")
	if !ok {
		return err
	}
	st := m.taskStore()
	t, err := st.Get(i)
	if err != nil {
		m.reportError("remove task", err)
		return nil
	}
	answer, err := m.readLine(fmt.Sprintf("Are you sure you want to remove task \"%s\"? (y/n): ", t.Description))
	if err != nil {
		return err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" || (answer[0] != 'y' && answer[0] != 'Y') {
		m.println("Task removal cancelled.")
		return nil
	}
	if _, err := st.Remove(i); err != nil {
		m.reportError("remove task", err)
		return nil
	}
	m.println("Task removed successfully.")
	return nil
}

var sortMessages = map[query.SortKey]string{
	query.SortDueDate:  "Tasks sorted by due date.",
	query.SortPriority: "Tasks sorted by priority (High to Low).",
	query.SortStatus:   "Tasks sorted by status (Pending to Completed).",
	query.SortCreated:  "Tasks sorted by creation date (Newest to Oldest).",
}

func (m *Menu) sortTasks() error {
	st := m.taskStore()
	if st.Len() == 0 {
		m.println("No tasks available.")
		return nil
	}
	m.println("\n=== Sort Tasks ===")
	m.println("1. By Due Date")
	m.println("2. By Priority")
	m.println("3. By Status")
	m.println("4. By Creation Date")
	n, err := m.readInt("Enter choice (1-4): ")
	if errors.Is(err, ErrInvalidNumber) {
		m.println("Invalid input.")
		return nil
	}
	if err != nil {
		return err
	}
	if n < 1 || n > len(query.SortKeys) {
		m.println("Invalid choice.")
		return nil
	}
	key := query.SortKeys[n-1]
	if err := st.Sort(key); err != nil {
		m.reportError("sort tasks", err)
		return nil
	}
	m.println(sortMessages[key])
	m.viewTasks()
	return nil
}

func (m *Menu) filterTasks() error {
	st := m.taskStore()
	if st.Len() == 0 {
		m.println("No tasks available.")
		return nil
	}
	m.println("\n=== Filter Tasks ===")
	m.println("1. By Status")
	m.println("2. By Priority")
	m.println("3. By Due Date (Today)")
	m.println("4. By Due Date (This Week)")
	m.println("5. By Due Date (Overdue)")
	n, err := m.readInt("Enter choice (1-5): ")
	if errors.Is(err, ErrInvalidNumber) {
		m.println("Invalid input.")
		return nil
	}
	if err != nil {
		return err
	}

	var (
		filter  query.Filter
		heading string
	)
	w := m.engine.Window()
	switch n {
	case 1:
		s, ok, err := m.readStatus("Select status:")
		if !ok {
			return err
		}
		filter, heading = query.StatusIs(s), fmt.Sprintf("Tasks with status %s:", s)
	case 2:
		p, ok, err := m.readPriority("Select priority:")
		if !ok {
			return err
		}
		filter, heading = query.PriorityIs(p), fmt.Sprintf("Tasks with %s priority:", p)
	case 3:
		filter, heading = query.DueToday(), fmt.Sprintf("Tasks due today (%s):", w.Today)
	case 4:
		filter, heading = query.DueThisWeek(), fmt.Sprintf("Tasks due this week (%s to %s):", w.Today, w.WeekEnd)
	case 5:
		filter, heading = query.Overdue(), "Overdue tasks:"
	default:
		m.println("Invalid choice.")
		return nil
	}

	m.println(heading)
	matched := m.engine.Filter(st.Tasks(), filter)
	if len(matched) == 0 {
		m.println("No tasks match the filter criteria.")
		return nil
	}
	m.printf("%-5s%-30s%-12s%-10s%-15s\n", "ID", "Description", "Due Date", "Priority", "Status")
	m.println(strings.Repeat("-", filterRuleWidth))
	for i, t := range matched {
		m.printf("%-5d%-30s%-12s%-10s%-15s\n", i+1, t.ShortDescription(listDescriptionWidth),
			t.DueLabel(), t.Priority, t.Status)
	}
	m.println("")
	return nil
}

func (m *Menu) showStatistics() {
	stats, err := m.engine.Statistics(m.taskStore().Tasks())
	if errors.Is(err, query.ErrNoTasks) {
		m.println("No tasks available.")
		return
	}
	m.println("\n=== Task Statistics ===")
	m.printf("Total Tasks: %d\n", stats.Total)
	m.println("By Status:")
	for _, s := range todo.Statuses {
		n := stats.ByStatus[s]
		m.printf("  %s: %d (%d%%)\n", s, n, stats.Percent(n))
	}
	m.println("By Priority:")
	for _, p := range todo.Priorities {
		n := stats.ByPriority[p]
		m.printf("  %s: %d (%d%%)\n", p, n, stats.Percent(n))
	}
	m.printf("Overdue Tasks: %d\n", stats.Overdue)
	m.println("")
}

func (m *Menu) reportError(op string, err error) {
	m.logger.Error(op+" failed", "err", err)
	m.printf("Error: %v\n", err)
}

// descriptionMessage words a description validation error as a sentence
// starting with "description".
func descriptionMessage(err error) string {
	switch {
	case errors.Is(err, todo.ErrEmptyDescription):
		return "description cannot be empty."
	case errors.Is(err, todo.ErrDescriptionTooLong):
		return fmt.Sprintf("description too long. Maximum %d characters allowed.", todo.MaxDescriptionLength)
	case errors.Is(err, todo.ErrInvalidDescription):
		return "description cannot contain '|' or line breaks."
	}
	return err.Error()
}

func dueDateMessage(err error) string {
	if errors.Is(err, dates.ErrPastDate) {
		return "Due date must be today or in the future."
	}
	return "Invalid date format."
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
