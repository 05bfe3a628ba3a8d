// Package workspacecache scans a workspace tree once per invocation to
// support two ambient, non-persisted conveniences: a diagnostic
// fingerprint logged before an expensive bazel query, and converting
// raw changed-file paths (e.g. from `git diff --name-only`) into the
// normalized source labels --modified-filepaths otherwise requires
// spelling out by hand. Nothing here is written to disk between runs:
// the hash engine's "no persisted state" contract holds regardless of
// how its ModifiedFilePredicate got populated.
package workspacecache

// Entry is one scanned file's relative path and content fingerprint.
type Entry struct {
	Path string
	Hash string // xxHash64 hex
}
