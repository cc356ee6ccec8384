package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "TASKTRACK_"

// PasswordEnv supplies the password for non-interactive commands.
const PasswordEnv = EnvPrefix + "PASSWORD"

// loadFromEnv overrides config from environment variables.
func loadFromEnv(cfg *Config, sources map[string]ConfigSource) error {
	str := func(env, key string, field *string) {
		if v := os.Getenv(EnvPrefix + env); v != "" {
			setSource(field, v, sources, key, SourceEnv)
		}
	}
	boolean := func(env, key string, field *bool) {
		if v := os.Getenv(EnvPrefix + env); v != "" {
			setSource(field, boolFromString(v), sources, key, SourceEnv)
		}
	}

	str("DATA_DIR", "data_dir", &cfg.DataDir)
	str("REGISTRY", "registry_file", &cfg.RegistryFile)
	str("TASKS_DIR", "tasks_dir", &cfg.TasksDir)
	str("STORAGE", "storage", &cfg.Storage)
	str("DB_FILE", "db_file", &cfg.DBFile)
	str("LOG_DIR", "log_dir", &cfg.LogDir)
	boolean("JOURNAL", "journal", &cfg.Journal)
	str("LOG_LEVEL", "log_level", &cfg.LogLevel)
	str("LOG_FORMAT", "log_format", &cfg.LogFormat)
	boolean("LOG_TIMESTAMPS", "log_timestamps", &cfg.LogTimestamps)
	boolean("LOG_CALLER", "log_caller", &cfg.LogCaller)

	if v := os.Getenv(EnvPrefix + "MAX_LOGIN_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sMAX_LOGIN_ATTEMPTS: %w", EnvPrefix, err)
		}
		setSource(&cfg.MaxLoginAttempts, n, sources, "max_login_attempts", SourceEnv)
	}
	return nil
}

// boolFromString parses a boolean from a string.
func boolFromString(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}
