package hashengine

// SeedHashMap supplies per-source-file seed digests, typically derived
// from a version-control content hash. It lets a source file's own
// hash change when its content changes even though the target hash
// algorithm never reads file contents itself.
type SeedHashMap map[string][32]byte

// ContentOverrideMap supplies explicit digests that take precedence
// over both a source file's seed and its default zero tail, used for
// content addressed by something other than the seed hash mechanism
// (e.g. a content-addressed store).
type ContentOverrideMap map[string][32]byte

// ModifiedFilePredicate restricts which labels a SeedHashMap entry is
// allowed to affect. When Enabled is false every seed is honored
// unconditionally; when true, only labels present in Paths receive
// their seed contribution and all others hash as if unseeded.
type ModifiedFilePredicate struct {
	Enabled bool
	Paths   map[string]struct{}
}

// Allows reports whether label's seed contribution should be applied.
func (p ModifiedFilePredicate) Allows(label string) bool {
	if !p.Enabled {
		return true
	}
	_, ok := p.Paths[label]
	return ok
}

// Config parameterizes a single hashing run.
type Config struct {
	// IgnoredAttrs names rule attributes excluded from the rule hash,
	// e.g. "generator_location" that changes without any semantic effect.
	IgnoredAttrs map[string]struct{}

	Seeds            SeedHashMap
	ContentOverrides ContentOverrideMap
	ModifiedFiles    ModifiedFilePredicate

	// FineGrainedExternalRepos names external repos (in normalized
	// "@repo" or "@@repo+version" form) whose targets are expected to
	// be present in the graph and hashed at full granularity. Any
	// other external repo collapses to one opaque digest per repo.
	FineGrainedExternalRepos map[string]struct{}

	// Parallel enables evaluating independent rule subtrees on a bounded
	// worker pool instead of a single goroutine. Output is identical
	// either way; this only affects wall-clock time.
	Parallel bool
	Workers  int
}

func (c Config) isIgnored(attr string) bool {
	_, ok := c.IgnoredAttrs[attr]
	return ok
}
