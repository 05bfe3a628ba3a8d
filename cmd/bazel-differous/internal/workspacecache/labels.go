package workspacecache

import (
	"path/filepath"
	"strings"

	"github.com/friel-openai/bazel-differous/internal/label"
)

// PathToLabel guesses the normalized source-file label for a
// workspace-relative path, assuming the common convention that a
// source file's package is the directory it lives in and its target
// name is its path relative to that directory.
func PathToLabel(relPath string) (string, error) {
	relPath = filepath.ToSlash(relPath)
	dir, file := filepath.Split(relPath)
	dir = strings.TrimSuffix(dir, "/")
	if dir == "" || dir == "." {
		return label.Normalize("//:" + file)
	}
	return label.Normalize("//" + dir + ":" + file)
}

// ToModifiedLabels converts raw workspace-relative paths, e.g. the
// output of `git diff --name-only`, into the normalized label set
// hashengine.ModifiedFilePredicate expects. Paths that don't
// canonicalize to a valid label are skipped rather than failing the
// whole run, since a git diff can include paths (deleted files,
// non-Bazel files) with no corresponding source label.
func ToModifiedLabels(paths []string) map[string]struct{} {
	out := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if l, err := PathToLabel(p); err == nil {
			out[l] = struct{}{}
		}
	}
	return out
}
