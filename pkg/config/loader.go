package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// ConfigFileName is the project-level config file name.
const ConfigFileName = "bazel-differous.toml"

// ConfigDirName is the project-level config directory name.
const ConfigDirName = ".bazel-differous"

// GlobalConfigDir is the global config directory under the user's
// config home.
const GlobalConfigDir = "bazel-differous"

// Load resolves configuration for the workspace at dir: defaults,
// global config, project config (searched upward from dir to the
// workspace root), then environment variables.
func Load(dir string) *Config {
	cfg := New()

	if global := loadFile(globalConfigPath()); global != nil {
		cfg.Merge(global)
	}
	if project := loadProjectConfig(dir); project != nil {
		cfg.Merge(project)
	}
	applyEnv(cfg)

	return cfg
}

func loadProjectConfig(dir string) *Config {
	current := dir
	for {
		if cfg := loadFile(filepath.Join(current, ConfigDirName, "config.toml")); cfg != nil {
			return cfg
		}
		if cfg := loadFile(filepath.Join(current, ConfigFileName)); cfg != nil {
			return cfg
		}
		if isWorkspaceRoot(current) {
			return nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return nil
		}
		current = parent
	}
}

// isWorkspaceRoot reports whether dir looks like the top of a bazel
// workspace or a version control checkout, the boundary the search for
// a project config file stops at.
func isWorkspaceRoot(dir string) bool {
	markers := []string{".git", "WORKSPACE", "WORKSPACE.bazel", "MODULE.bazel"}
	for _, m := range markers {
		if _, err := os.Stat(filepath.Join(dir, m)); err == nil {
			return true
		}
	}
	return false
}

func globalConfigPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(configDir, GlobalConfigDir, "config.toml")
}

func loadFile(path string) *Config {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil
	}
	return &cfg
}

const envPrefix = "BAZEL_DIFFEROUS_"

func applyEnv(cfg *Config) {
	if v := os.Getenv(envPrefix + "BAZEL_PATH"); v != "" {
		cfg.Bazel.Path = v
	}
	if v := os.Getenv(envPrefix + "USE_CQUERY"); v != "" {
		cfg.Bazel.UseCquery = parseBool(v, cfg.Bazel.UseCquery)
	}
	if v := os.Getenv(envPrefix + "KEEP_GOING"); v != "" {
		cfg.Bazel.KeepGoing = parseBool(v, cfg.Bazel.KeepGoing)
	}
	if v := os.Getenv(envPrefix + "IGNORED_RULE_HASHING_ATTRIBUTES"); v != "" {
		cfg.Hashing.IgnoredRuleHashingAttributes = splitAndTrim(v)
	}
	if v := os.Getenv(envPrefix + "FINE_GRAINED_HASH_EXTERNAL_REPOS"); v != "" {
		cfg.Hashing.FineGrainedHashExternalRepos = splitAndTrim(v)
	}
	if v := os.Getenv(envPrefix + "VERBOSITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Log.Verbosity = n
		}
	}
	if v := os.Getenv(envPrefix + "LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// GlobalConfigPath returns the resolved path to the global config
// file, for diagnostics.
func GlobalConfigPath() string {
	return globalConfigPath()
}
