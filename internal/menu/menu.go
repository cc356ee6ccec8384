// Package menu implements the interactive numbered-menu front end.
//
// The menu reads one answer per line from its input and writes prompts and
// results to its output. It owns no state beyond the current session: every
// change goes through the session's task store, which persists before
// returning.
package menu

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nibzard/tasktrack/internal/account"
	"github.com/nibzard/tasktrack/internal/query"
	"github.com/nibzard/tasktrack/internal/session"
)

const appName = "To-Do List Manager"

// ErrInvalidNumber is returned by readInt for input that is not an integer.
var ErrInvalidNumber = errors.New("not a number")

// Menu drives the main menu and, once logged in, the task menu.
type Menu struct {
	manager *session.Manager
	engine  *query.Engine
	in      *bufio.Reader
	out     io.Writer
	now     func() time.Time
	logger  *log.Logger

	sess *session.Session

	// set by Run
	ctx   context.Context
	lines chan inputLine
	done  chan struct{}
}

type inputLine struct {
	text string
	err  error
}

// Option configures a Menu.
type Option func(*Menu)

// WithClock sets the clock used for due-date checks and date filters.
func WithClock(now func() time.Time) Option {
	return func(m *Menu) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the logger for failures the menu reports to the user.
func WithLogger(logger *log.Logger) Option {
	return func(m *Menu) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New returns a menu reading answers from in and writing to out.
func New(manager *session.Manager, in io.Reader, out io.Writer, opts ...Option) *Menu {
	m := &Menu{
		manager: manager,
		in:      bufio.NewReader(in),
		out:     out,
		now:     time.Now,
		logger:  log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.engine = query.NewEngine(query.WithClock(m.now))
	return m
}

// Session returns the logged-in session, or nil.
func (m *Menu) Session() *session.Session {
	return m.sess
}

// Run shows the menus until the user exits, the input ends or ctx is done.
// An open session is logged out, and so saved, before Run returns.
func (m *Menu) Run(ctx context.Context) error {
	m.ctx = ctx
	m.lines = make(chan inputLine)
	m.done = make(chan struct{})
	defer close(m.done)
	go m.readInput()

	m.println("\t\t\tWelcome to the " + appName)
	m.println("\t\t******************************************")

	for {
		if err := ctx.Err(); err != nil {
			m.closeSession()
			return err
		}

		var (
			done bool
			err  error
		)
		if m.sess.Authenticated() {
			err = m.taskMenu()
		} else {
			done, err = m.mainMenu()
		}
		if errors.Is(err, io.EOF) {
			m.closeSession()
			return nil
		}
		if err != nil {
			m.closeSession()
			return err
		}
		if done {
			return nil
		}
	}
}

func (m *Menu) mainMenu() (bool, error) {
	m.println("\n=== " + appName + " ===")
	m.println("1. Create Account")
	m.println("2. Log In")
	m.println("3. Exit")
	choice, err := m.readInt("Enter your choice: ")
	if errors.Is(err, ErrInvalidNumber) {
		m.println("Invalid input. Please enter a number.")
		return false, nil
	}
	if err != nil {
		return false, err
	}

	switch choice {
	case 1:
		return false, m.createAccount()
	case 2:
		return false, m.login()
	case 3:
		m.println("Thank you for using " + appName + ". Goodbye!")
		return true, nil
	default:
		m.println("Invalid choice. Please try again.")
	}
	return false, nil
}

func (m *Menu) taskMenu() error {
	m.println("\n=== Task Menu ===")
	m.println("1. Add Task")
	m.println("2. View Tasks")
	m.println("3. View Task Details")
	m.println("4. Update Task Status")
	m.println("5. Edit Task")
	m.println("6. Remove Task")
	m.println("7. Sort Tasks")
	m.println("8. Filter Tasks")
	m.println("9. Show Statistics")
	m.println("10. Logout")
	choice, err := m.readInt("Enter your choice: ")
	if errors.Is(err, ErrInvalidNumber) {
		m.println("Invalid input. Please enter a number.")
		return nil
	}
	if err != nil {
		return err
	}

	switch choice {
	case 1:
		return m.addTask()
	case 2:
		m.viewTasks()
	case 3:
		return m.viewDetails()
	case 4:
		return m.updateStatus()
	case 5:
		return m.editTask()
	case 6:
		return m.removeTask()
	case 7:
		return m.sortTasks()
	case 8:
		return m.filterTasks()
	case 9:
		m.showStatistics()
	case 10:
		m.logout()
	default:
		m.println("Invalid choice. Please try again.")
	}
	return nil
}

func (m *Menu) createAccount() error {
	m.println("\n=== Create Your Account ===")

	var userID string
	for {
		id, err := m.readLine(fmt.Sprintf("Enter User ID (alphanumeric, %d-%d characters): ",
			account.MinUserIDLength, account.MaxUserIDLength))
		if err != nil {
			return err
		}
		if len(id) < account.MinUserIDLength || len(id) > account.MaxUserIDLength {
			m.printf("User ID must be between %d and %d characters.\n", account.MinUserIDLength, account.MaxUserIDLength)
			continue
		}
		if account.ValidateUserID(id) != nil {
			m.println("User ID must contain only alphanumeric characters.")
			continue
		}
		exists, err := m.manager.AccountExists(id)
		if err != nil {
			m.logger.Error("registry unavailable", "err", err)
			m.println("Error: Unable to create account.")
			return nil
		}
		if exists {
			m.println("User ID already exists. Please choose another one.")
			continue
		}
		userID = id
		break
	}

	var password string
	for {
		pw, err := m.readLine(fmt.Sprintf("Enter Password (at least %d characters): ", account.MinPasswordLength))
		if err != nil {
			return err
		}
		if account.ValidatePassword(pw) != nil {
			m.printf("Password must be at least %d characters long.\n", account.MinPasswordLength)
			continue
		}
		confirm, err := m.readLine("Confirm Password: ")
		if err != nil {
			return err
		}
		if confirm != pw {
			m.println("Passwords do not match. Please try again.")
			continue
		}
		password = pw
		break
	}

	sess, err := m.manager.CreateAccount(userID, password)
	if errors.Is(err, account.ErrAlreadyExists) {
		m.println("User ID already exists. Please choose another one.")
		return nil
	}
	if err != nil {
		m.logger.Error("create account failed", "user", userID, "err", err)
		m.println("Error: Unable to create account.")
		return nil
	}
	m.sess = sess
	m.println("Account created successfully!")
	return nil
}

// prompter asks for credentials on the menu's input.
type prompter struct {
	m *Menu
}

func (p prompter) Credentials(int) (string, string, error) {
	userID, err := p.m.readLine("Enter User ID: ")
	if err != nil {
		return "", "", err
	}
	password, err := p.m.readLine("Enter Password: ")
	if err != nil {
		return "", "", err
	}
	return userID, password, nil
}

func (p prompter) Rejected(remaining int) {
	p.m.printf("Invalid User ID or Password. Attempts remaining: %d\n", remaining)
}

func (m *Menu) login() error {
	m.println("\n=== Log In to Your Account ===")

	sess, err := m.manager.Login(prompter{m: m})
	switch {
	case err == nil:
		m.sess = sess
		m.println("Login successful!")
	case errors.Is(err, session.ErrLockedOut):
		m.println("Maximum login attempts reached. Please try again later.")
	case errors.Is(err, io.EOF), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		m.logger.Error("login failed", "err", err)
		m.println("Error: Unable to access user database.")
	}
	return nil
}

func (m *Menu) logout() {
	if err := m.manager.Logout(m.sess); err != nil {
		m.logger.Error("logout failed", "err", err)
		m.printf("Error: %v\n", err)
		return
	}
	m.sess = nil
	m.println("Logged out successfully.")
}

// closeSession saves and closes a session left open when the menu stops.
func (m *Menu) closeSession() {
	if !m.sess.Authenticated() {
		return
	}
	if err := m.manager.Logout(m.sess); err != nil {
		m.logger.Error("logout failed", "err", err)
	}
	m.sess = nil
}

// readInput feeds input lines to readLine until the input fails or Run
// returns, then closes the channel.
func (m *Menu) readInput() {
	defer close(m.lines)
	for {
		text, err := m.in.ReadString('\n')
		select {
		case m.lines <- inputLine{text: text, err: err}:
		case <-m.done:
			return
		}
		if err != nil {
			return
		}
	}
}

// readLine prompts and returns the next input line without its line ending.
// A final line without a newline is returned as is; io.EOF is returned only
// when nothing was left to read. A done context interrupts the wait.
func (m *Menu) readLine(prompt string) (string, error) {
	m.printf("%s", prompt)
	var (
		in inputLine
		ok bool
	)
	select {
	case <-m.ctx.Done():
		return "", m.ctx.Err()
	case in, ok = <-m.lines:
	}
	if !ok {
		return "", io.EOF
	}
	if in.err != nil && !(errors.Is(in.err, io.EOF) && in.text != "") {
		return "", in.err
	}
	return strings.TrimRight(in.text, "\r\n"), nil
}

func (m *Menu) readInt(prompt string) (int, error) {
	line, err := m.readLine(prompt)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return 0, ErrInvalidNumber
	}
	return n, nil
}

func (m *Menu) println(s string) {
	fmt.Fprintln(m.out, s)
}

func (m *Menu) printf(format string, args ...any) {
	fmt.Fprintf(m.out, format, args...)
}
