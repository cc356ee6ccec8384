package config

import (
	"flag"
)

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"data-dir":           "data_dir",
	"registry":           "registry_file",
	"tasks-dir":          "tasks_dir",
	"storage":            "storage",
	"db-file":            "db_file",
	"max-login-attempts": "max_login_attempts",
	"log-dir":            "log_dir",
	"journal":            "journal",
	"log-level":          "log_level",
	"log-format":         "log_format",
	"log-timestamps":     "log_timestamps",
	"log-caller":         "log_caller",
}

// RegisterFlags defines the config flags on fs, bound to cfg.
func RegisterFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Data directory")
	fs.StringVar(&cfg.RegistryFile, "registry", cfg.RegistryFile, "Account registry file")
	fs.StringVar(&cfg.TasksDir, "tasks-dir", cfg.TasksDir, "Task file directory")
	fs.StringVar(&cfg.Storage, "storage", cfg.Storage, "Storage backend: file or sqlite")
	fs.StringVar(&cfg.DBFile, "db-file", cfg.DBFile, "SQLite database file")
	fs.IntVar(&cfg.MaxLoginAttempts, "max-login-attempts", cfg.MaxLoginAttempts, "Login attempts before lockout")
	fs.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "Activity journal directory")
	fs.BoolVar(&cfg.Journal, "journal", cfg.Journal, "Write an activity journal")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text, json, logfmt")
	fs.BoolVar(&cfg.LogTimestamps, "log-timestamps", cfg.LogTimestamps, "Show timestamps in logs")
	fs.BoolVar(&cfg.LogCaller, "log-caller", cfg.LogCaller, "Show caller in logs")
}

// parseFlags defines and parses CLI flags, recording explicitly set flags.
func parseFlags(cfg *Config, fs *flag.FlagSet, args []string, sources map[string]ConfigSource) error {
	if fs == nil {
		fs = flag.NewFlagSet("tasktrack", flag.ContinueOnError)
	}
	RegisterFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if sources != nil {
		fs.Visit(func(f *flag.Flag) {
			if key, ok := flagKeys[f.Name]; ok {
				sources[key] = SourceFlag
			}
		})
	}
	return nil
}
