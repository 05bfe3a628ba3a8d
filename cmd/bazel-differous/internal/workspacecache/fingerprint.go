package workspacecache

import "sort"

// Fingerprint combines every entry's path and content hash into a
// single xxHash64 summary, sorted by path so the result is independent
// of filesystem walk order. It is a diagnostic only: nothing derives
// from it beyond a log line printed before an expensive bazel query.
func Fingerprint(entries map[string]Entry) string {
	paths := make([]string, 0, len(entries))
	for p := range entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var buf []byte
	for _, p := range paths {
		e := entries[p]
		buf = append(buf, e.Path...)
		buf = append(buf, 0)
		buf = append(buf, e.Hash...)
		buf = append(buf, 0)
	}
	return HashBytes(buf)
}
