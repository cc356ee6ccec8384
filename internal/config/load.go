package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/nibzard/tasktrack/internal/datadir"
	"github.com/nibzard/tasktrack/internal/logging"
)

// Load loads configuration from multiple sources in priority order:
// 1. Defaults
// 2. User config file
// 3. Project config file
// 4. Environment variables
// 5. CLI flags
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	cws, err := load(fs, args, nil)
	if err != nil {
		return nil, err
	}
	return cws.Config, nil
}

// LoadWithSources loads configuration and tracks the source of each value.
func LoadWithSources(fs *flag.FlagSet, args []string) (*ConfigWithSources, error) {
	sources := make(map[string]ConfigSource)
	for _, field := range configFields() {
		sources[field] = SourceDefault
	}
	return load(fs, args, sources)
}

func load(fs *flag.FlagSet, args []string, sources map[string]ConfigSource) (*ConfigWithSources, error) {
	cfg := &Config{}
	cws := &ConfigWithSources{Config: cfg, Sources: sources}

	// 1. Set defaults
	setDefaults(cfg)

	// 2. Try to load from user config file
	if userConfigFile := findUserConfigFile(); userConfigFile != "" {
		if err := loadConfigFile(cfg, userConfigFile, sources, SourceUserFile); err != nil {
			return nil, fmt.Errorf("loading user config file %s: %w", userConfigFile, err)
		}
		cws.Files = append(cws.Files, userConfigFile)
	}

	// 3. Try to load from project config file (overrides user config)
	if projectConfigFile := findProjectConfigFile(); projectConfigFile != "" {
		if err := loadConfigFile(cfg, projectConfigFile, sources, SourceProjFile); err != nil {
			return nil, fmt.Errorf("loading project config file %s: %w", projectConfigFile, err)
		}
		cws.Files = append(cws.Files, projectConfigFile)
	}

	// 4. Override from environment
	if err := loadFromEnv(cfg, sources); err != nil {
		return nil, err
	}

	// 5. Parse CLI flags (they override everything)
	if err := parseFlags(cfg, fs, args, sources); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	// 6. Compute derived values
	if err := finalizeConfig(cfg); err != nil {
		return nil, fmt.Errorf("finalizing config: %w", err)
	}

	return cws, nil
}

// loadConfigFile decodes the TOML file at path over cfg. Only keys present in
// the file are applied, so a later file overrides an earlier one key by key.
func loadConfigFile(cfg *Config, path string, sources map[string]ConfigSource, source ConfigSource) error {
	fileCfg := *cfg
	md, err := toml.DecodeFile(path, &fileCfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}

	apply := func(key string, fn func()) {
		if md.IsDefined(key) {
			fn()
			if sources != nil {
				sources[key] = source
			}
		}
	}
	apply("data_dir", func() { cfg.DataDir = fileCfg.DataDir })
	apply("registry_file", func() { cfg.RegistryFile = fileCfg.RegistryFile })
	apply("tasks_dir", func() { cfg.TasksDir = fileCfg.TasksDir })
	apply("storage", func() { cfg.Storage = fileCfg.Storage })
	apply("db_file", func() { cfg.DBFile = fileCfg.DBFile })
	apply("max_login_attempts", func() { cfg.MaxLoginAttempts = fileCfg.MaxLoginAttempts })
	apply("log_dir", func() { cfg.LogDir = fileCfg.LogDir })
	apply("journal", func() { cfg.Journal = fileCfg.Journal })
	apply("log_level", func() { cfg.LogLevel = fileCfg.LogLevel })
	apply("log_format", func() { cfg.LogFormat = fileCfg.LogFormat })
	apply("log_timestamps", func() { cfg.LogTimestamps = fileCfg.LogTimestamps })
	apply("log_caller", func() { cfg.LogCaller = fileCfg.LogCaller })
	return nil
}

// finalizeConfig expands paths, resolves them under the data directory and
// validates enumerated values.
func finalizeConfig(cfg *Config) error {
	if cfg.DataDir == "" {
		return fmt.Errorf("data_dir is empty")
	}
	cfg.DataDir = resolvePath(cfg.DataDir, "")
	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}

	for key, p := range map[string]string{"registry_file": cfg.RegistryFile, "tasks_dir": cfg.TasksDir, "db_file": cfg.DBFile} {
		if p == "" {
			return fmt.Errorf("%s is empty", key)
		}
	}
	if cfg.LogDir == "" {
		cfg.LogDir = datadir.DefaultLogDir
	}
	cfg.RegistryFile = resolvePath(cfg.RegistryFile, cfg.DataDir)
	cfg.TasksDir = resolvePath(cfg.TasksDir, cfg.DataDir)
	cfg.DBFile = resolvePath(cfg.DBFile, cfg.DataDir)
	cfg.LogDir = resolvePath(cfg.LogDir, cfg.DataDir)

	cfg.Storage = strings.ToLower(strings.TrimSpace(cfg.Storage))
	switch cfg.Storage {
	case "file", "sqlite":
	default:
		return fmt.Errorf("storage must be file or sqlite, got %q", cfg.Storage)
	}
	if cfg.MaxLoginAttempts < 1 {
		return fmt.Errorf("max_login_attempts must be at least 1, got %d", cfg.MaxLoginAttempts)
	}
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	if _, err := logging.ParseFormatter(cfg.LogFormat); err != nil {
		return err
	}
	return nil
}

// resolvePath expands $VAR references and a leading ~ in p, then joins a
// relative result onto root. An empty root leaves relative paths alone.
func resolvePath(p, root string) string {
	p = os.ExpandEnv(p)
	if p == "~" || strings.HasPrefix(p, "~/") || strings.HasPrefix(p, "~"+string(filepath.Separator)) {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[1:])
		}
	}
	if p == "" || root == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}
