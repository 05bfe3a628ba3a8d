package workspacecache

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
)

// defaultIgnoreDirs are directories never worth walking into: version
// control metadata and bazel's own convenience symlinks/output roots.
var defaultIgnoreDirs = []string{".git", "bazel-out", "bazel-bin", "bazel-testlogs", "bazel-"}

// ScanConfig configures the scanner.
type ScanConfig struct {
	Root       string
	IgnoreDirs []string // Additional dirs to ignore, beyond the defaults
}

// Scanner walks a workspace tree, content-hashing every regular file
// it encounters. Unlike a per-language BUILD generator, bazel-differous
// treats every file as a potential Bazel source input, so there is no
// extension allowlist.
type Scanner struct {
	root       string
	ignoreDirs []string
}

// NewScanner creates a scanner with the given config.
func NewScanner(cfg ScanConfig) *Scanner {
	ignoreDirs := make([]string, len(defaultIgnoreDirs))
	copy(ignoreDirs, defaultIgnoreDirs)
	ignoreDirs = append(ignoreDirs, cfg.IgnoreDirs...)

	return &Scanner{
		root:       cfg.Root,
		ignoreDirs: ignoreDirs,
	}
}

// Scan walks the filesystem rooted at s.root and returns every regular
// file's workspace-relative path and content hash.
func (s *Scanner) Scan(ctx context.Context) (map[string]Entry, error) {
	entries := make(map[string]Entry)

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return err
		}

		if d.IsDir() {
			name := d.Name()
			for _, prefix := range s.ignoreDirs {
				if strings.HasPrefix(name, prefix) {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		relPath, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		hash, err := HashFile(path)
		if err != nil {
			return err
		}

		entries[relPath] = Entry{Path: relPath, Hash: hash}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
