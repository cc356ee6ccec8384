package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
)

// isolate points HOME and the working directory at empty temp dirs so no
// real config file is picked up.
func isolate(t *testing.T) (home, work string) {
	t.Helper()
	home = t.TempDir()
	work = t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("APPDATA", filepath.Join(home, "AppData"))
	for _, key := range []string{"DATA_DIR", "REGISTRY", "TASKS_DIR", "STORAGE", "DB_FILE", "MAX_LOGIN_ATTEMPTS",
		"LOG_DIR", "JOURNAL", "LOG_LEVEL", "LOG_FORMAT", "LOG_TIMESTAMPS", "LOG_CALLER"} {
		t.Setenv(EnvPrefix+key, "")
	}
	chdir(t, work)
	return home, work
}

func TestDefaults(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)

	if cfg.DataDir != DefaultDataDir {
		t.Errorf("DataDir: got %q, want %q", cfg.DataDir, DefaultDataDir)
	}
	if cfg.MaxLoginAttempts != 3 {
		t.Errorf("MaxLoginAttempts: got %d, want 3", cfg.MaxLoginAttempts)
	}
	if cfg.Storage != "file" || !cfg.Journal {
		t.Errorf("Storage %q Journal %v", cfg.Storage, cfg.Journal)
	}
}

func TestLoadResolvesPaths(t *testing.T) {
	home, _ := isolate(t)

	cfg, err := Load(flag.NewFlagSet("test", flag.ContinueOnError), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	root := filepath.Join(home, ".tasktrack")
	if cfg.DataDir != root {
		t.Errorf("DataDir: got %q, want %q", cfg.DataDir, root)
	}
	if cfg.RegistryFile != filepath.Join(root, "user_details.txt") {
		t.Errorf("RegistryFile: got %q", cfg.RegistryFile)
	}
	if cfg.TasksDir != filepath.Join(root, "tasks") {
		t.Errorf("TasksDir: got %q", cfg.TasksDir)
	}
	if cfg.LogDir != filepath.Join(root, "logs") {
		t.Errorf("LogDir: got %q", cfg.LogDir)
	}
	if got := cfg.Layout().TaskFile("alice123"); got != filepath.Join(root, "tasks", "alice123.txt") {
		t.Errorf("Layout().TaskFile: got %q", got)
	}
}

func TestLoadPriority(t *testing.T) {
	home, work := isolate(t)

	userDir := filepath.Join(home, ".tasktrack")
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		t.Fatal(err)
	}
	userFile := `storage = "sqlite"
max_login_attempts = 5
log_level = "debug"
`
	if err := os.WriteFile(filepath.Join(userDir, "tasktrack.toml"), []byte(userFile), 0o644); err != nil {
		t.Fatal(err)
	}
	projectFile := `max_login_attempts = 4
journal = false
`
	if err := os.WriteFile(filepath.Join(work, "tasktrack.toml"), []byte(projectFile), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TASKTRACK_LOG_LEVEL", "warn")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cws, err := LoadWithSources(fs, []string{"--data-dir", filepath.Join(work, "data")})
	if err != nil {
		t.Fatalf("LoadWithSources: %v", err)
	}
	cfg := cws.Config

	checks := []struct {
		key    string
		ok     bool
		source ConfigSource
	}{
		{"storage", cfg.Storage == "sqlite", SourceUserFile},
		{"max_login_attempts", cfg.MaxLoginAttempts == 4, SourceProjFile},
		{"journal", !cfg.Journal, SourceProjFile},
		{"log_level", cfg.LogLevel == "warn", SourceEnv},
		{"data_dir", cfg.DataDir == filepath.Join(work, "data"), SourceFlag},
		{"tasks_dir", true, SourceDefault},
	}
	for _, c := range checks {
		if !c.ok {
			t.Errorf("%s: unexpected value in %+v", c.key, cfg)
		}
		if got := cws.Sources[c.key]; got != c.source {
			t.Errorf("%s source: got %q, want %q", c.key, got, c.source)
		}
	}
	if cfg.JournalDir() != "" {
		t.Errorf("JournalDir with journal off: %q", cfg.JournalDir())
	}
	if len(cws.Files) != 2 || cws.ConfigFile() != "tasktrack.toml" {
		t.Errorf("Files: %v", cws.Files)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	isolate(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"storage", []string{"--storage", "postgres"}, "storage"},
		{"attempts", []string{"--max-login-attempts", "0"}, "max_login_attempts"},
		{"level", []string{"--log-level", "loud"}, "log level"},
		{"format", []string{"--log-format", "xml"}, "log format"},
		{"empty registry", []string{"--registry", ""}, "registry_file is empty"},
		{"empty tasks dir", []string{"--tasks-dir", ""}, "tasks_dir is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(flag.NewFlagSet("test", flag.ContinueOnError), tt.args)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load(%v) error = %v, want mention of %q", tt.args, err, tt.want)
			}
		})
	}
}

func TestLoadConfigFileUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasktrack.toml")
	if err := os.WriteFile(path, []byte("todo_file = \"x\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := &Config{}
	setDefaults(cfg)
	err := loadConfigFile(cfg, path, nil, SourceProjFile)
	if err == nil || !strings.Contains(err.Error(), "todo_file") {
		t.Errorf("expected unknown key error, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	isolate(t)
	t.Setenv("TASKTRACK_STORAGE", "sqlite")
	t.Setenv("TASKTRACK_MAX_LOGIN_ATTEMPTS", "7")
	t.Setenv("TASKTRACK_JOURNAL", "off")

	cfg := &Config{}
	setDefaults(cfg)
	if err := loadFromEnv(cfg, nil); err != nil {
		t.Fatal(err)
	}
	if cfg.Storage != "sqlite" || cfg.MaxLoginAttempts != 7 || cfg.Journal {
		t.Errorf("env not applied: %+v", cfg)
	}

	t.Setenv("TASKTRACK_MAX_LOGIN_ATTEMPTS", "many")
	if err := loadFromEnv(cfg, nil); err == nil {
		t.Error("expected error for non-numeric attempts")
	}
}

func TestExampleConfigParses(t *testing.T) {
	cfg := &Config{}
	md, err := toml.Decode(ExampleConfig(), cfg)
	if err != nil {
		t.Fatalf("example config does not parse: %v", err)
	}
	if len(md.Undecoded()) != 0 {
		t.Errorf("example config has unknown keys: %v", md.Undecoded())
	}
	if cfg.MaxLoginAttempts != DefaultMaxLoginAttempts || cfg.Storage != DefaultStorage {
		t.Errorf("example values differ from defaults: %+v", cfg)
	}
}

func TestResolvePath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}
	root := filepath.Join(home, "data")
	t.Setenv("TASKTRACK_TEST_DIR", filepath.Join(home, "elsewhere"))

	tests := []struct {
		input string
		root  string
		want  string
	}{
		{"~/test", "", filepath.Join(home, "test")},
		{"~", "", home},
		{"~/test", root, filepath.Join(home, "test")},
		{"relative", "", "relative"},
		{"relative", root, filepath.Join(root, "relative")},
		{"$TASKTRACK_TEST_DIR/logs", root, filepath.Join(home, "elsewhere", "logs")},
		{"", root, ""},
	}
	abs := filepath.Join(home, "absolute", "path")
	tests = append(tests, struct {
		input string
		root  string
		want  string
	}{abs, root, abs})

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := resolvePath(tt.input, tt.root); got != tt.want {
				t.Errorf("resolvePath(%q, %q): got %q, want %q", tt.input, tt.root, got, tt.want)
			}
		})
	}
}

func TestBoolFromString(t *testing.T) {
	for in, want := range map[string]bool{"1": true, "TRUE": true, "yes": true, "on": true, "0": false, "off": false, "": false} {
		if got := boolFromString(in); got != want {
			t.Errorf("boolFromString(%q): got %v, want %v", in, got, want)
		}
	}
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
