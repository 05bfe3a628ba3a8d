package workspacecache

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// HashFile returns the hex-encoded xxHash64 of a file's contents. The
// scanner feeds it into the diagnostic workspace Fingerprint that is
// logged before the query; it is not a content digest bazel-differous
// ever emits, nothing is persisted, and nothing is skipped or gated on
// it. The SHA-256 digests that identify targets stay in hashengine.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("workspacecache: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("workspacecache: hash %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes is HashFile's in-memory counterpart, used by Fingerprint to
// summarize an already-assembled path/hash listing.
func HashBytes(data []byte) string {
	h := xxhash.Sum64(data)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], h)
	return hex.EncodeToString(buf[:])
}
