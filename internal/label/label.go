// Package label canonicalizes Bazel target labels into a single
// normal form so that the hash engine and graph builder can use plain
// string equality and ordering everywhere else.
package label

import (
	"errors"
	"strings"
)

// ErrInvalidLabel is returned for labels that cannot be canonicalized:
// empty strings, embedded whitespace, or a repo-relative form with no
// package path at all.
var ErrInvalidLabel = errors.New("label: invalid label")

// Normalize rewrites raw into its canonical form:
//
//   - a single leading '@' is stripped when followed directly by '//'
//     ("@//a:b" -> "//a:b"); '@@' and bzlmod '+' version suffixes are
//     preserved verbatim ("@@foo+1.2.3//a:b" is left untouched).
//   - a bare package with no explicit target ("//a/b") gains a target
//     equal to its last path segment ("//a/b:b").
//   - a bare repo reference with no "//" at all ("@foo") expands to
//     that repo's default target ("@foo//:foo").
func Normalize(raw string) (string, error) {
	if raw == "" {
		return "", ErrInvalidLabel
	}
	if strings.ContainsAny(raw, " \t\r\n") {
		return "", ErrInvalidLabel
	}

	s := raw
	if strings.HasPrefix(s, "@") && !strings.HasPrefix(s, "@@") && strings.HasPrefix(s[1:], "//") {
		s = s[1:]
	}

	idx := strings.Index(s, "//")
	if idx == -1 {
		if !strings.HasPrefix(s, "@") {
			return "", ErrInvalidLabel
		}
		name := strings.TrimLeft(s, "@")
		if name == "" {
			return "", ErrInvalidLabel
		}
		return s + "//:" + name, nil
	}

	repo := s[:idx]
	if repo != "" && !strings.HasPrefix(repo, "@") {
		return "", ErrInvalidLabel
	}

	rest := s[idx+2:]
	pkg, target, hasColon := strings.Cut(rest, ":")
	if hasColon {
		if target == "" {
			return "", ErrInvalidLabel
		}
	} else {
		segs := strings.Split(pkg, "/")
		target = segs[len(segs)-1]
		if target == "" {
			return "", ErrInvalidLabel
		}
	}

	return repo + "//" + pkg + ":" + target, nil
}

// Repo returns the repository component of a normalized label ("" for
// the main repo, otherwise the leading "@..." or "@@..." prefix).
func Repo(normalized string) string {
	idx := strings.Index(normalized, "//")
	if idx == -1 {
		return ""
	}
	return normalized[:idx]
}

// Package returns the package path component of a normalized label.
func Package(normalized string) string {
	idx := strings.Index(normalized, "//")
	if idx == -1 {
		return ""
	}
	rest := normalized[idx+2:]
	pkg, _, _ := strings.Cut(rest, ":")
	return pkg
}
