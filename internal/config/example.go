package config

// ExampleConfig returns an example configuration showing all available options.
func ExampleConfig() string {
	return `# tasktrack configuration file
# Values can be overridden by TASKTRACK_* environment variables or CLI flags.

# Data directory (supports ~ expansion and %VAR% on Windows)
data_dir = "~/.tasktrack"

# Account registry, relative to data_dir
registry_file = "user_details.txt"

# Directory holding one task file per account, relative to data_dir
tasks_dir = "tasks"

# Storage backend: "file" (pipe-delimited text) or "sqlite"
storage = "file"

# SQLite database used when storage = "sqlite", relative to data_dir
db_file = "tasks.db"

# Login attempts allowed before lockout
max_login_attempts = 3

# Activity journal
journal = true
# log_dir = "~/.tasktrack/logs"

# Console logging
log_level = "info"      # debug, info, warn, error
log_format = "text"     # text, json, logfmt
log_timestamps = false
log_caller = false
`
}
