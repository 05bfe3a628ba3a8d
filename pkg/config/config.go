// Package config provides layered configuration for bazel-differous.
// Values are resolved with the following precedence, lowest first:
//  1. Built-in defaults
//  2. Global user config (~/.config/bazel-differous/config.toml)
//  3. Project config (.bazel-differous/config.toml or bazel-differous.toml)
//  4. Environment variables (BAZEL_DIFFEROUS_*)
//  5. CLI flags (applied by the caller after Load returns)
package config

// Config is the full configuration surface for a bazel-differous run.
type Config struct {
	Bazel   BazelConfig   `toml:"bazel"`
	Hashing HashingConfig `toml:"hashing"`
	Log     LogConfig     `toml:"log"`
}

// BazelConfig configures how the query driver invokes bazel.
type BazelConfig struct {
	// Path overrides binary discovery (PATH / BAZEL_REAL / BAZEL env).
	Path string `toml:"path"`

	StartupOptions []string `toml:"startup_options"`
	CommandOptions []string `toml:"command_options"`
	CqueryOptions  []string `toml:"cquery_options"`

	UseCquery bool `toml:"use_cquery"`
	KeepGoing bool `toml:"keep_going"`
}

// HashingConfig configures the hash engine.
type HashingConfig struct {
	// IgnoredRuleHashingAttributes lists attribute names excluded from
	// every rule hash, e.g. attributes that record source locations.
	IgnoredRuleHashingAttributes []string `toml:"ignored_rule_hashing_attributes"`

	// FineGrainedHashExternalRepos names external repos hashed at
	// rule/source granularity instead of collapsing to one opaque leaf.
	FineGrainedHashExternalRepos []string `toml:"fine_grained_hash_external_repos"`

	IncludeTargetType      bool `toml:"include_target_type"`
	ExcludeExternalTargets bool `toml:"exclude_external_targets"`

	Parallel bool `toml:"parallel"`
	Workers  int  `toml:"workers"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	// Verbosity is 0 (errors only) through 4 (trace).
	Verbosity int    `toml:"verbosity"`
	Format    string `toml:"format"` // "text" or "json"
}

// defaultIgnoredAttrs are attributes that vary without changing a
// rule's build semantics.
var defaultIgnoredAttrs = []string{
	"generator_location",
	"generator_name",
	"generator_function",
}

// New returns a Config populated with built-in defaults.
func New() *Config {
	return &Config{
		Bazel: BazelConfig{},
		Hashing: HashingConfig{
			IgnoredRuleHashingAttributes: append([]string(nil), defaultIgnoredAttrs...),
			Workers:                      4,
		},
		Log: LogConfig{
			Verbosity: 2,
			Format:    "text",
		},
	}
}

// IgnoredAttrSet returns the ignored-attribute list as a lookup set.
func (c *Config) IgnoredAttrSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.Hashing.IgnoredRuleHashingAttributes))
	for _, a := range c.Hashing.IgnoredRuleHashingAttributes {
		set[a] = struct{}{}
	}
	return set
}

// FineGrainedRepoSet returns the fine-grained external repo list as a
// lookup set.
func (c *Config) FineGrainedRepoSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.Hashing.FineGrainedHashExternalRepos))
	for _, r := range c.Hashing.FineGrainedHashExternalRepos {
		set[r] = struct{}{}
	}
	return set
}

// Merge overlays other onto c; non-zero fields in other win.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	if other.Bazel.Path != "" {
		c.Bazel.Path = other.Bazel.Path
	}
	if len(other.Bazel.StartupOptions) > 0 {
		c.Bazel.StartupOptions = other.Bazel.StartupOptions
	}
	if len(other.Bazel.CommandOptions) > 0 {
		c.Bazel.CommandOptions = other.Bazel.CommandOptions
	}
	if len(other.Bazel.CqueryOptions) > 0 {
		c.Bazel.CqueryOptions = other.Bazel.CqueryOptions
	}
	if other.Bazel.UseCquery {
		c.Bazel.UseCquery = true
	}
	if other.Bazel.KeepGoing {
		c.Bazel.KeepGoing = true
	}

	if len(other.Hashing.IgnoredRuleHashingAttributes) > 0 {
		c.Hashing.IgnoredRuleHashingAttributes = other.Hashing.IgnoredRuleHashingAttributes
	}
	if len(other.Hashing.FineGrainedHashExternalRepos) > 0 {
		c.Hashing.FineGrainedHashExternalRepos = other.Hashing.FineGrainedHashExternalRepos
	}
	if other.Hashing.IncludeTargetType {
		c.Hashing.IncludeTargetType = true
	}
	if other.Hashing.ExcludeExternalTargets {
		c.Hashing.ExcludeExternalTargets = true
	}
	if other.Hashing.Parallel {
		c.Hashing.Parallel = true
	}
	if other.Hashing.Workers > 0 {
		c.Hashing.Workers = other.Hashing.Workers
	}

	if other.Log.Verbosity != 0 {
		c.Log.Verbosity = other.Log.Verbosity
	}
	if other.Log.Format != "" {
		c.Log.Format = other.Log.Format
	}
}
