// Package account stores user credentials in an append-only registry file.
//
// Each line of the registry holds one account:
//
//	alice123 7c9a2f01b3e4d5c6
//
// The digest is a fast rolling checksum used only to compare a login attempt
// with the registered password. It is not a security primitive.
package account

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/nibzard/tasktrack/internal/datadir"
)

const (
	MinUserIDLength   = 3
	MaxUserIDLength   = 20
	MinPasswordLength = 8

	digestSeed = 5381
)

var (
	ErrAlreadyExists   = errors.New("user id already exists")
	ErrInvalidUserID   = errors.New("user id must be 3-20 alphanumeric characters")
	ErrInvalidPassword = errors.New("password must be at least 8 characters")
)

// Digest returns the rolling digest of password as lower-case hex.
func Digest(password string) string {
	var h uint64 = digestSeed
	for i := 0; i < len(password); i++ {
		h = h*33 + uint64(password[i])
	}
	return strconv.FormatUint(h, 16)
}

// ValidateUserID checks length and that every character is an ASCII letter or digit.
func ValidateUserID(id string) error {
	if len(id) < MinUserIDLength || len(id) > MaxUserIDLength {
		return ErrInvalidUserID
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9') {
			return ErrInvalidUserID
		}
	}
	return nil
}

// ValidatePassword checks the minimum password length.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrInvalidPassword
	}
	return nil
}

// Registry is the account registry file.
type Registry struct {
	path   string
	logger *log.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for registry events.
func WithLogger(logger *log.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry returns a registry backed by path. The file is created on the
// first registration.
func NewRegistry(path string, opts ...Option) *Registry {
	r := &Registry{path: path, logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Path returns the registry file path.
func (r *Registry) Path() string {
	return r.path
}

// Register validates and appends a new account.
func (r *Registry) Register(userID, password string) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	if err := ValidatePassword(password); err != nil {
		return err
	}

	exists, err := r.Exists(userID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, userID)
	}

	if err := datadir.AppendLine(r.path, userID+" "+Digest(password)); err != nil {
		return err
	}
	r.logger.Info("account registered", "user", userID)
	return nil
}

// Verify reports whether userID is registered with password.
func (r *Registry) Verify(userID, password string) (bool, error) {
	digest := Digest(password)
	found := false
	err := r.scan(func(id, d string) bool {
		if id == userID && d == digest {
			found = true
			return false
		}
		return true
	})
	if err != nil {
		return false, err
	}
	if !found {
		r.logger.Debug("credentials rejected", "user", userID)
	}
	return found, nil
}

// Exists reports whether userID is registered.
func (r *Registry) Exists(userID string) (bool, error) {
	found := false
	err := r.scan(func(id, _ string) bool {
		if id == userID {
			found = true
			return false
		}
		return true
	})
	return found, err
}

// Users returns every registered user id in registration order.
func (r *Registry) Users() ([]string, error) {
	var users []string
	err := r.scan(func(id, _ string) bool {
		users = append(users, id)
		return true
	})
	return users, err
}

// scan calls fn for each well-formed record until fn returns false.
// A missing registry is empty.
func (r *Registry) scan(fn func(userID, digest string) bool) error {
	f, err := os.Open(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return &datadir.StorageError{Op: "open", Path: r.path, Err: err}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		if !fn(fields[0], fields[1]) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return &datadir.StorageError{Op: "read", Path: r.path, Err: err}
	}
	return nil
}
