// Package hashformat renders and parses the label->digest maps that
// cross the boundary between generate-hashes and get-impacted-targets:
// a bare label key by default, or a "Kind:Label" composite key when the
// caller asked hashes to carry their target's kind for later filtering.
// The digest value is always a bare lowercase-hex string either way.
package hashformat

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/friel-openai/bazel-differous/internal/graph"
)

// ErrHashFormatMismatch is returned when a digest map mixes typed and
// untyped entries, which should never happen for a map produced by a
// single generate-hashes invocation.
var ErrHashFormatMismatch = errors.New("hashformat: digest map mixes typed and untyped entries")

// Entry pairs a label with its digest and, optionally, its kind.
type Entry struct {
	Label  string
	Digest [32]byte
	Kind   graph.Kind
}

// Format renders entries as label->hex-digest, prefixing each key with
// "Kind:" when includeType is true. The digest value is always a bare
// hex string; the kind never touches it.
func Format(entries []Entry, includeType bool) map[string]string {
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		hexDigest := hex.EncodeToString(e.Digest[:])
		key := e.Label
		if includeType {
			key = e.Kind.String() + ":" + e.Label
		}
		out[key] = hexDigest
	}
	return out
}

// Parsed is one decoded digest map entry.
type Parsed struct {
	Label  string
	Digest [32]byte
	Kind   graph.Kind
	Typed  bool
}

// Parse decodes a key->hex-digest digest map, accepting both plain
// label keys and "Kind:Label" composite keys, but rejecting a map that
// mixes the two (ErrHashFormatMismatch).
func Parse(raw map[string]string) (map[string]Parsed, error) {
	out := make(map[string]Parsed, len(raw))
	var sawTyped, sawUntyped bool

	for key, hexDigest := range raw {
		kind, label, typed := splitTypedKey(key)
		digest, err := decodeHex(hexDigest)
		if err != nil {
			return nil, fmt.Errorf("hashformat: %s: %w", key, err)
		}
		if typed {
			sawTyped = true
		} else {
			sawUntyped = true
		}
		out[key] = Parsed{Label: label, Digest: digest, Kind: kind, Typed: typed}
	}

	if sawTyped && sawUntyped {
		return nil, ErrHashFormatMismatch
	}
	return out, nil
}

// splitTypedKey splits a "Kind:Label" composite key into its kind and
// bare label. Kind names never appear as the start of a label (every
// label starts with "//" or "@"), so a prefix match is unambiguous.
func splitTypedKey(key string) (graph.Kind, string, bool) {
	for _, kind := range []graph.Kind{graph.KindRule, graph.KindSourceFile, graph.KindGeneratedFile} {
		prefix := kind.String() + ":"
		if strings.HasPrefix(key, prefix) {
			return kind, key[len(prefix):], true
		}
	}
	return graph.KindUnknown, key, false
}

func decodeHex(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("invalid hex digest %q: %w", s, err)
	}
	if len(b) != 32 {
		return out, fmt.Errorf("digest %q is %d bytes, want 32", s, len(b))
	}
	copy(out[:], b)
	return out, nil
}

// SortedLabels returns the keys of a parsed digest map in ascending
// lexicographic order, the deterministic iteration order every
// downstream output uses.
func SortedLabels(m map[string]Parsed) []string {
	out := make([]string, 0, len(m))
	for l := range m {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// ByLabel re-keys a parsed digest map by its bare label instead of the
// raw JSON key, so callers that need to compare or diff across a typed
// and an untyped map (or join against dep-edges, which are always
// keyed by bare label) don't have to parse "Kind:Label" composite keys
// themselves.
func ByLabel(m map[string]Parsed) map[string]Parsed {
	out := make(map[string]Parsed, len(m))
	for _, p := range m {
		out[p.Label] = p
	}
	return out
}

// Typed reports whether m's entries carry a "Kind:" prefix, and
// whether that could be determined at all (an empty map carries no
// information either way).
func Typed(m map[string]Parsed) (typed bool, known bool) {
	for _, p := range m {
		return p.Typed, true
	}
	return false, false
}
