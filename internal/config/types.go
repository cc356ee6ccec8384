package config

import (
	"github.com/nibzard/tasktrack/internal/datadir"
)

// ConfigSource represents where a configuration value came from.
type ConfigSource string

const (
	SourceDefault  ConfigSource = "default"
	SourceUserFile ConfigSource = "user file"
	SourceProjFile ConfigSource = "project file"
	SourceEnv      ConfigSource = "environment"
	SourceFlag     ConfigSource = "flag"
)

// ConfigWithSources holds configuration along with source information for each field.
type ConfigWithSources struct {
	Config  *Config
	Sources map[string]ConfigSource
	Files   []string
}

// Default values.
const (
	DefaultDataDir          = "~/" + datadir.Dir
	DefaultStorage          = "file"
	DefaultMaxLoginAttempts = 3
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
)

// Config holds the tracker's settings.
type Config struct {
	DataDir          string `toml:"data_dir"`
	RegistryFile     string `toml:"registry_file"`
	TasksDir         string `toml:"tasks_dir"`
	Storage          string `toml:"storage"`
	DBFile           string `toml:"db_file"`
	MaxLoginAttempts int    `toml:"max_login_attempts"`

	// Journal directory; empty means <data_dir>/logs.
	LogDir  string `toml:"log_dir"`
	Journal bool   `toml:"journal"`

	LogLevel      string `toml:"log_level"`
	LogFormat     string `toml:"log_format"`
	LogTimestamps bool   `toml:"log_timestamps"`
	LogCaller     bool   `toml:"log_caller"`
}

// Layout returns the storage layout described by the config.
func (c *Config) Layout() datadir.Layout {
	return datadir.Layout{
		Root:         c.DataDir,
		RegistryFile: c.RegistryFile,
		TasksDir:     c.TasksDir,
		DBFile:       c.DBFile,
	}
}

// JournalDir returns the journal directory, or "" when journaling is off.
func (c *Config) JournalDir() string {
	if !c.Journal {
		return ""
	}
	return c.LogDir
}

// configFields returns the list of configurable field names for source tracking.
func configFields() []string {
	return []string{
		"data_dir",
		"registry_file",
		"tasks_dir",
		"storage",
		"db_file",
		"max_login_attempts",
		"log_dir",
		"journal",
		"log_level",
		"log_format",
		"log_timestamps",
		"log_caller",
	}
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	cfg.DataDir = DefaultDataDir
	cfg.RegistryFile = datadir.DefaultRegistryFile
	cfg.TasksDir = datadir.DefaultTasksDir
	cfg.Storage = DefaultStorage
	cfg.DBFile = datadir.DefaultDBFile
	cfg.MaxLoginAttempts = DefaultMaxLoginAttempts
	cfg.LogDir = ""
	cfg.Journal = true
	cfg.LogLevel = DefaultLogLevel
	cfg.LogFormat = DefaultLogFormat
}

func setSource[T any](field *T, value T, sources map[string]ConfigSource, name string, source ConfigSource) {
	*field = value
	if sources != nil {
		sources[name] = source
	}
}
