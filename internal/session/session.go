// Package session authenticates accounts and hands out sessions bound to
// their task store.
package session

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/nibzard/tasktrack/internal/account"
	"github.com/nibzard/tasktrack/internal/logging"
	"github.com/nibzard/tasktrack/internal/store"
)

// DefaultMaxAttempts is the number of login attempts allowed per call.
const DefaultMaxAttempts = 3

var (
	ErrAuthFailure      = errors.New("authentication failed")
	ErrLockedOut        = fmt.Errorf("%w: too many failed attempts", ErrAuthFailure)
	ErrNotAuthenticated = errors.New("not logged in")
)

// Prompter supplies credentials for each login attempt.
type Prompter interface {
	// Credentials returns the user id and password for attempt (1-based).
	Credentials(attempt int) (userID, password string, err error)
	// Rejected is called after a failed attempt with the attempts left.
	Rejected(remaining int)
}

// StaticPrompter answers every attempt with the same credentials.
type StaticPrompter struct {
	UserID   string
	Password string
}

// Credentials returns the fixed credentials.
func (p StaticPrompter) Credentials(int) (string, string, error) {
	return p.UserID, p.Password, nil
}

// Rejected does nothing.
func (p StaticPrompter) Rejected(int) {}

// Manager creates accounts and sessions.
type Manager struct {
	registry    *account.Registry
	backend     store.Backend
	maxAttempts int
	logDir      string
	now         func() time.Time
	logger      *log.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxAttempts sets the attempts allowed per Login call.
func WithMaxAttempts(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxAttempts = n
		}
	}
}

// WithJournalDir enables per-session activity journals under dir.
func WithJournalDir(dir string) Option {
	return func(m *Manager) {
		m.logDir = dir
	}
}

// WithClock sets the clock passed to task stores.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the logger for session events.
func WithLogger(logger *log.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager returns a manager over registry and backend.
func NewManager(registry *account.Registry, backend store.Backend, opts ...Option) *Manager {
	m := &Manager{
		registry:    registry,
		backend:     backend,
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
		logger:      log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MaxAttempts returns the attempts allowed per Login call.
func (m *Manager) MaxAttempts() int {
	return m.maxAttempts
}

// AccountExists reports whether userID is registered.
func (m *Manager) AccountExists(userID string) (bool, error) {
	return m.registry.Exists(userID)
}

// CreateAccount registers userID, persists an empty task list for it and
// returns an authenticated session.
func (m *Manager) CreateAccount(userID, password string) (*Session, error) {
	if err := m.registry.Register(userID, password); err != nil {
		return nil, err
	}
	sess := m.newSession(userID)
	st, err := store.Create(m.backend, userID, m.storeOptions(sess)...)
	if err != nil {
		sess.closeJournal()
		return nil, err
	}
	sess.store = st
	sess.record("create_account")
	m.logger.Info("account created", "user", userID, "session", sess.ID)
	return sess, nil
}

// Verify checks credentials without opening a session. A mismatch returns
// ErrAuthFailure.
func (m *Manager) Verify(userID, password string) error {
	ok, err := m.registry.Verify(userID, password)
	if err != nil {
		return err
	}
	if !ok {
		m.logger.Warn("credential check failed", "user", userID)
		return ErrAuthFailure
	}
	return nil
}

// Login asks prompter for credentials up to MaxAttempts times. It returns
// ErrLockedOut once every attempt has failed; the caller may call Login again.
func (m *Manager) Login(prompter Prompter) (*Session, error) {
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		userID, password, err := prompter.Credentials(attempt)
		if err != nil {
			return nil, err
		}
		ok, err := m.registry.Verify(userID, password)
		if err != nil {
			return nil, err
		}
		if ok {
			return m.open(userID)
		}
		remaining := m.maxAttempts - attempt
		m.logger.Warn("login failed", "user", userID, "remaining", remaining)
		prompter.Rejected(remaining)
	}
	return nil, ErrLockedOut
}

func (m *Manager) open(userID string) (*Session, error) {
	sess := m.newSession(userID)
	st, err := store.Open(m.backend, userID, m.storeOptions(sess)...)
	if err != nil {
		sess.closeJournal()
		return nil, err
	}
	sess.store = st
	sess.record("login")
	m.logger.Info("logged in", "user", userID, "session", sess.ID, "tasks", st.Len())
	return sess, nil
}

// Logout persists the session's tasks and clears it. Logging out of a
// session that is not authenticated returns ErrNotAuthenticated.
func (m *Manager) Logout(sess *Session) error {
	if sess == nil || sess.store == nil {
		return ErrNotAuthenticated
	}
	if err := sess.store.Save(); err != nil {
		return err
	}
	sess.record("logout")
	m.logger.Info("logged out", "user", sess.UserID, "session", sess.ID)
	sess.store.Clear()
	sess.store = nil
	sess.UserID = ""
	sess.closeJournal()
	return nil
}

func (m *Manager) newSession(userID string) *Session {
	sess := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		StartedAt: m.now(),
	}
	if m.logDir != "" {
		j, err := logging.OpenJournal(m.logDir, userID, sess.ID)
		if err != nil {
			m.logger.Warn("journal disabled", "err", err)
		} else {
			sess.journal = j
		}
	}
	return sess
}

func (m *Manager) storeOptions(sess *Session) []store.Option {
	opts := []store.Option{store.WithClock(m.now), store.WithLogger(m.logger)}
	if sess.journal != nil {
		opts = append(opts, store.WithJournal(sess.journal))
	}
	return opts
}

// Session is one authenticated user's access to their tasks.
type Session struct {
	ID        string
	UserID    string
	StartedAt time.Time

	store   *store.TaskStore
	journal *logging.Journal
}

// Authenticated reports whether the session is logged in.
func (s *Session) Authenticated() bool {
	return s != nil && s.store != nil
}

// Store returns the session's task store.
func (s *Session) Store() (*store.TaskStore, error) {
	if !s.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	return s.store, nil
}

// JournalPath returns the session's journal file, or "" when journaling is off.
func (s *Session) JournalPath() string {
	if s == nil || s.journal == nil {
		return ""
	}
	return s.journal.LogPath
}

func (s *Session) record(kind string) {
	if s.journal == nil {
		return
	}
	_ = s.journal.Record(logging.Event{Kind: kind, Index: -1})
}

func (s *Session) closeJournal() {
	if s.journal != nil {
		_ = s.journal.Close()
		s.journal = nil
	}
}
