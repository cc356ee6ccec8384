package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/nibzard/tasktrack/internal/config"
	"github.com/nibzard/tasktrack/internal/logging"
	"github.com/nibzard/tasktrack/internal/query"
	"github.com/nibzard/tasktrack/internal/todo"
	"github.com/nibzard/tasktrack/internal/ui"
)

// tuiCommand logs in and launches the dashboard.
func tuiCommand(ctx context.Context, cfg *config.Config, user string, args []string) (err error) {
	fs := flag.NewFlagSet("tasktrack tui", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&user, "user", user, "User id")
	refresh := fs.Duration("refresh", 0, "Refresh interval for date-relative views (0 = default)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	sess, err := a.login(user)
	if err != nil {
		return err
	}
	defer a.logout(sess, &err)

	st, err := sess.Store()
	if err != nil {
		return err
	}
	return ui.RunTUI(ctx, st, ui.WithEngine(query.NewEngine()), ui.WithRefreshInterval(*refresh))
}

// exportCommand writes the user's tasks as an export document.
func exportCommand(cfg *config.Config, user string, args []string) (err error) {
	fs := flag.NewFlagSet("tasktrack export", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&user, "user", user, "User id")
	out := fs.String("out", "", "Output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	sess, err := a.login(user)
	if err != nil {
		return err
	}
	defer a.logout(sess, &err)

	st, err := sess.Store()
	if err != nil {
		return err
	}
	doc := todo.NewExport(sess.UserID, st.Tasks(), time.Now())
	if *out == "" || *out == "-" {
		return doc.Encode(stdout)
	}
	if err := doc.Save(*out); err != nil {
		return err
	}
	a.logger.Info("tasks exported", "user", sess.UserID, "tasks", len(doc.Tasks), "file", *out)
	fmt.Fprintf(stdout, "Exported %d tasks to %s\n", len(doc.Tasks), *out)
	return nil
}

// importCommand validates an export document and appends its tasks.
func importCommand(cfg *config.Config, user string, args []string) (err error) {
	fs := flag.NewFlagSet("tasktrack import", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&user, "user", user, "User id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("import requires exactly one file argument")
	}
	path := fs.Arg(0)

	doc, err := todo.LoadExport(path)
	if err != nil {
		return err
	}
	result := doc.Validate()
	for _, w := range result.Warnings {
		fmt.Fprintf(stderr, "Warning: %s\n", w)
	}
	if !result.Valid {
		fmt.Fprintf(stderr, "Invalid export file %s:\n", path)
		for _, e := range result.Errors {
			fmt.Fprintf(stderr, "  - %v\n", e)
		}
		return fmt.Errorf("export file validation failed")
	}
	tasks, err := doc.ToTasks()
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	sess, err := a.login(user)
	if err != nil {
		return err
	}
	defer a.logout(sess, &err)

	st, err := sess.Store()
	if err != nil {
		return err
	}
	if err := st.Append(tasks...); err != nil {
		return fmt.Errorf("importing %s: %w", path, err)
	}
	a.logger.Info("tasks imported", "user", sess.UserID, "tasks", len(tasks), "file", path)
	fmt.Fprintf(stdout, "Imported %d tasks from %s\n", len(tasks), path)
	return nil
}

// historyCommand tails the latest journal for a user, or lists journals.
// Tailing shows task descriptions, so it requires the user's password; the
// listing shows only run names and sizes.
func historyCommand(ctx context.Context, cfg *config.Config, user string, args []string) error {
	fs := flag.NewFlagSet("tasktrack history", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&user, "user", user, "User id")
	follow := fs.Bool("f", false, "Follow the journal (like tail -f)")
	fs.BoolVar(follow, "follow", false, "Follow the journal (like tail -f)")
	n := fs.Int("n", 0, "Number of lines to show (0 = all)")
	fs.IntVar(n, "tail", 0, "Number of lines to show (0 = all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	remaining := fs.Args()
	if len(remaining) > 1 || (len(remaining) == 1 && remaining[0] != "ls") {
		return fmt.Errorf("unexpected arguments: %v", remaining)
	}
	if len(remaining) == 1 {
		return historyList(cfg, user)
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.authorize(user); err != nil {
		return err
	}

	logPath, err := logging.FindLatestLog(logging.UserLogDir(cfg.LogDir, user))
	if err != nil {
		return fmt.Errorf("finding latest journal: %w", err)
	}
	if logPath == "" {
		fmt.Fprintln(stdout, "No journal files found.")
		return nil
	}

	fmt.Fprintf(stdout, "Tailing: %s\n", logPath)
	if *follow {
		fmt.Fprintln(stdout, "(Ctrl+C to stop)")
	}
	fmt.Fprintln(stdout)

	return logging.TailLog(ctx, stdout, logPath, *n, *follow)
}

// historyList prints the journals of one user, or of every user when user is empty.
func historyList(cfg *config.Config, user string) error {
	users := []string{user}
	if user == "" {
		entries, err := os.ReadDir(cfg.LogDir)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("read log dir: %w", err)
		}
		users = users[:0]
		for _, e := range entries {
			if e.IsDir() {
				users = append(users, e.Name())
			}
		}
		sort.Strings(users)
	}

	found := false
	for _, u := range users {
		runs, err := logging.FindLogRuns(logging.UserLogDir(cfg.LogDir, u))
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			continue
		}
		found = true
		fmt.Fprintf(stdout, "%s (%d):\n", u, len(runs))
		for _, r := range runs {
			fmt.Fprintf(stdout, "  %s  %s  %6d bytes\n", r.RunID, r.ModTime.Format(time.DateTime), r.Size)
		}
	}
	if !found {
		fmt.Fprintln(stdout, "No journal files found.")
	}
	return nil
}

// configCommand prints the effective configuration with the source of each value.
func configCommand(globalArgs, args []string) error {
	fs := flag.NewFlagSet("tasktrack config", flag.ContinueOnError)
	fs.SetOutput(stderr)
	example := fs.Bool("example", false, "Print an example config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *example {
		fmt.Fprint(stdout, config.ExampleConfig())
		return nil
	}

	gfs := flag.NewFlagSet("tasktrack", flag.ContinueOnError)
	gfs.SetOutput(stderr)
	gfs.Bool("help", false, "")
	gfs.Bool("h", false, "")
	gfs.Bool("version", false, "")
	gfs.Bool("v", false, "")
	gfs.String("user", "", "")
	cws, err := config.LoadWithSources(gfs, globalArgs)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if file := cws.ConfigFile(); file != "" {
		fmt.Fprintf(stdout, "Config file: %s\n\n", file)
	} else {
		fmt.Fprintln(stdout, "Config file: (none)")
		fmt.Fprintln(stdout)
	}
	for _, kv := range configValues(cws.Config) {
		fmt.Fprintf(stdout, "%-20s = %-40v # %s\n", kv.key, kv.value, cws.Sources[kv.key])
	}
	return nil
}

type configValue struct {
	key   string
	value any
}

func configValues(c *config.Config) []configValue {
	return []configValue{
		{"data_dir", c.DataDir},
		{"registry_file", c.RegistryFile},
		{"tasks_dir", c.TasksDir},
		{"storage", c.Storage},
		{"db_file", c.DBFile},
		{"max_login_attempts", c.MaxLoginAttempts},
		{"log_dir", c.LogDir},
		{"journal", c.Journal},
		{"log_level", c.LogLevel},
		{"log_format", c.LogFormat},
		{"log_timestamps", c.LogTimestamps},
		{"log_caller", c.LogCaller},
	}
}
