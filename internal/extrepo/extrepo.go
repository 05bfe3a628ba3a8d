// Package extrepo expands the base query universe with per-repo
// patterns for external repositories that should be hashed at
// rule/source granularity instead of being collapsed into a single
// opaque leaf.
package extrepo

import "sort"

// Patterns returns the query patterns to union together: the base
// pattern plus one "@repo//..." (or "@@repo//...") pattern per entry
// in fineGrained, sorted for determinism.
func Patterns(base string, fineGrained map[string]struct{}) []string {
	repos := make([]string, 0, len(fineGrained))
	for r := range fineGrained {
		repos = append(repos, r)
	}
	sort.Strings(repos)

	patterns := make([]string, 0, len(repos)+1)
	patterns = append(patterns, base)
	for _, r := range repos {
		patterns = append(patterns, r+"//...")
	}
	return patterns
}

// IsFineGrained reports whether label's repo (as returned by
// label.Repo) is present in the fine-grained set, so its targets are
// expected to appear in the graph rather than collapse to an opaque
// leaf.
func IsFineGrained(repo string, fineGrained map[string]struct{}) bool {
	if repo == "" {
		return true // main repo is always fully hashed
	}
	_, ok := fineGrained[repo]
	return ok
}
