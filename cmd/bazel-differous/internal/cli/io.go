package cli

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// writeJSON marshals v as indented JSON to path, or to stdout when path
// is empty.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("cli: marshaling output: %w", err)
	}
	data = append(data, '\n')
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return writeFileAtomic(path, data)
}

// writeText writes s to path, or to stdout when path is empty.
func writeText(path, s string) error {
	if path == "" {
		_, err := fmt.Print(s)
		return err
	}
	return writeFileAtomic(path, []byte(s))
}

// writeFileAtomic writes data to path via a temp file plus rename so a
// crash mid-write never leaves a truncated hash file behind. A ".gz"
// suffix on path gzip-compresses the payload, useful when the hash or
// dep-edges JSON for a large monorepo graph is shipped as a CI
// artifact.
func writeFileAtomic(path string, data []byte) error {
	if strings.HasSuffix(path, ".gz") {
		compressed, err := gzipCompress(data)
		if err != nil {
			return fmt.Errorf("cli: compressing %s: %w", path, err)
		}
		data = compressed
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("cli: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("cli: renaming %s: %w", tmp, err)
	}
	return nil
}

func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func readJSONStringMap(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cli: reading %s: %w", path, err)
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("cli: parsing %s: %w", path, err)
	}
	return m, nil
}

func readDepEdges(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cli: reading %s: %w", path, err)
	}
	var m map[string][]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("cli: parsing %s: %w", path, err)
	}
	return m, nil
}

// readSeedFiles merges one or more JSON files, each mapping a source
// label to a lowercase-hex content digest, into a single seed map. It
// mirrors the reference tool's --seed-filepaths, which accepts a
// comma-separated list so CI can combine a base seed file with an
// incremental one.
func readSeedFiles(paths []string) (map[string][32]byte, error) {
	out := make(map[string][32]byte)
	for _, path := range paths {
		raw, err := readJSONStringMap(path)
		if err != nil {
			return nil, err
		}
		for label, hexDigest := range raw {
			digest, err := decodeDigestHex(hexDigest)
			if err != nil {
				return nil, fmt.Errorf("cli: seed file %s: label %s: %w", path, label, err)
			}
			out[label] = digest
		}
	}
	return out, nil
}

// readContentHashOverrides reads a JSON object mapping source labels to
// content digests that win over any seed value, per --contentHashPath.
func readContentHashOverrides(path string) (map[string][32]byte, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := readJSONStringMap(path)
	if err != nil {
		return nil, err
	}
	out := make(map[string][32]byte, len(raw))
	for label, hexDigest := range raw {
		digest, err := decodeDigestHex(hexDigest)
		if err != nil {
			return nil, fmt.Errorf("cli: content hash overrides %s: label %s: %w", path, label, err)
		}
		out[label] = digest
	}
	return out, nil
}

// readModifiedFilepaths reads one label per line from each path in
// paths (blank lines ignored), the set --modified-filepaths uses to
// restrict which seeded sources actually contribute their seed.
func readModifiedFilepaths(paths []string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("cli: reading %s: %w", path, err)
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				out[line] = struct{}{}
			}
		}
		err = scanner.Err()
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("cli: reading %s: %w", path, err)
		}
	}
	return out, nil
}

// readRawModifiedPaths reads one workspace-relative path per line from
// each path in paths (blank lines ignored), for --modified-git-paths,
// which takes raw paths (e.g. git diff --name-only output) rather than
// pre-normalized labels.
func readRawModifiedPaths(paths []string) ([]string, error) {
	var out []string
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("cli: reading %s: %w", path, err)
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				out = append(out, line)
			}
		}
		err = scanner.Err()
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("cli: reading %s: %w", path, err)
		}
	}
	return out, nil
}

func decodeDigestHex(s string) ([32]byte, error) {
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

// splitCommaList splits a comma-separated flag value, trimming
// whitespace and dropping empty elements.
func splitCommaList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
