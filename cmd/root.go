// Package cmd implements the CLI command structure for tasktrack.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/nibzard/tasktrack/internal/account"
	"github.com/nibzard/tasktrack/internal/config"
	"github.com/nibzard/tasktrack/internal/logging"
	"github.com/nibzard/tasktrack/internal/menu"
	"github.com/nibzard/tasktrack/internal/session"
	"github.com/nibzard/tasktrack/internal/store"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Standard streams, replaced in tests.
var (
	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// ErrNoCredentials is returned when a non-interactive command has no user or password.
var ErrNoCredentials = errors.New("missing credentials")

// Run executes the tasktrack CLI.
func Run(ctx context.Context, args []string) error {
	// Create a flag set for global options
	fs := flag.NewFlagSet("tasktrack", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		printUsage(fs, stderr)
	}
	help := fs.Bool("help", false, "Show help")
	fs.BoolVar(help, "h", false, "Show help")
	showVersion := fs.Bool("version", false, "Show version")
	fs.BoolVar(showVersion, "v", false, "Show version")
	user := fs.String("user", "", "User id for tui, export, import and history")

	cfg, err := config.Load(fs, args)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *help {
		printUsage(fs, stdout)
		return nil
	}
	if *showVersion {
		return versionCommand()
	}

	// Determine the subcommand; "menu" when none is given.
	subcommand := "menu"
	remainingArgs := fs.Args()
	globalArgs := args[:len(args)-len(remainingArgs)]
	if len(remainingArgs) > 0 && !strings.HasPrefix(remainingArgs[0], "-") {
		subcommand = remainingArgs[0]
		remainingArgs = remainingArgs[1:]
	}

	switch subcommand {
	case "menu":
		return menuCommand(ctx, cfg, remainingArgs)
	case "tui":
		return tuiCommand(ctx, cfg, *user, remainingArgs)
	case "export":
		return exportCommand(cfg, *user, remainingArgs)
	case "import":
		return importCommand(cfg, *user, remainingArgs)
	case "history":
		return historyCommand(ctx, cfg, *user, remainingArgs)
	case "config":
		return configCommand(globalArgs, remainingArgs)
	case "version":
		return versionCommand()
	case "help":
		printUsage(fs, stdout)
		return nil
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", subcommand)
		printUsage(fs, stderr)
		return fmt.Errorf("unknown command: %s", subcommand)
	}
}

// app holds the components shared by every command.
type app struct {
	cfg     *config.Config
	logger  *log.Logger
	backend store.Backend
	manager *session.Manager
}

func newApp(cfg *config.Config) (*app, error) {
	logger := logging.NewConsoleFromConfig(cfg.LogLevel, cfg.LogFormat, cfg.LogTimestamps, cfg.LogCaller, "")
	logger.SetOutput(stderr)

	backend, err := store.OpenBackend(cfg.Storage, cfg.Layout())
	if err != nil {
		return nil, fmt.Errorf("opening %s storage: %w", cfg.Storage, err)
	}
	registry := account.NewRegistry(cfg.Layout().RegistryPath(), account.WithLogger(logger))
	manager := session.NewManager(registry, backend,
		session.WithMaxAttempts(cfg.MaxLoginAttempts),
		session.WithJournalDir(cfg.JournalDir()),
		session.WithLogger(logger),
	)
	logger.Debug("storage ready", "backend", cfg.Storage, "data_dir", cfg.DataDir)
	return &app{cfg: cfg, logger: logger, backend: backend, manager: manager}, nil
}

func (a *app) Close() error {
	return a.backend.Close()
}

// credentials returns the password for userID from the environment.
func credentials(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: --user is required", ErrNoCredentials)
	}
	password := os.Getenv(config.PasswordEnv)
	if password == "" {
		return "", fmt.Errorf("%w: %s is not set", ErrNoCredentials, config.PasswordEnv)
	}
	return password, nil
}

// login opens a session for userID with the password from the environment.
func (a *app) login(userID string) (*session.Session, error) {
	password, err := credentials(userID)
	if err != nil {
		return nil, err
	}
	sess, err := a.manager.Login(session.StaticPrompter{UserID: userID, Password: password})
	if err != nil {
		return nil, fmt.Errorf("logging in as %s: %w", userID, err)
	}
	return sess, nil
}

// authorize checks userID's password from the environment without opening a
// session.
func (a *app) authorize(userID string) error {
	password, err := credentials(userID)
	if err != nil {
		return err
	}
	if err := a.manager.Verify(userID, password); err != nil {
		return fmt.Errorf("checking credentials for %s: %w", userID, err)
	}
	return nil
}

// logout saves and closes sess, keeping the first error seen.
func (a *app) logout(sess *session.Session, err *error) {
	if lerr := a.manager.Logout(sess); lerr != nil && *err == nil {
		*err = lerr
	}
}

// menuCommand runs the interactive menu.
func menuCommand(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %v", args)
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	m := menu.New(a.manager, stdin, stdout, menu.WithLogger(a.logger))
	return m.Run(ctx)
}

// versionCommand prints version information.
func versionCommand() error {
	fmt.Fprintf(stdout, "tasktrack version %s\n", Version)
	return nil
}

// printUsage prints the usage message.
func printUsage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintln(w, "Tasktrack - A local, multi-account task list")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  tasktrack [options] [command]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  menu          Interactive menu (default command)")
	fmt.Fprintln(w, "  tui           Terminal dashboard for one account")
	fmt.Fprintln(w, "  export        Write an account's tasks as JSON")
	fmt.Fprintln(w, "  import <file> Append tasks from an export file")
	fmt.Fprintln(w, "  history [ls]  Show or list activity journals")
	fmt.Fprintln(w, "  config        Show the effective configuration")
	fmt.Fprintln(w, "  version       Show version information")
	fmt.Fprintln(w, "  help          Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global Options:")
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Commands that log in without a prompt (tui, export, import, history) take the\n")
	fmt.Fprintf(w, "user from --user and the password from %s.\n", config.PasswordEnv)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Export Options:")
	fmt.Fprintln(w, "  -out string")
	fmt.Fprintln(w, "        Output file (default stdout)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "History Options:")
	fmt.Fprintln(w, "  -f, --follow")
	fmt.Fprintln(w, "        Follow the journal (like tail -f)")
	fmt.Fprintln(w, "  -n int")
	fmt.Fprintln(w, "        Number of lines to show (0 = all)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config Options:")
	fmt.Fprintln(w, "  -example")
	fmt.Fprintln(w, "        Print an example config file")
}
