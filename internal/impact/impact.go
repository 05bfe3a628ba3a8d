// Package impact turns two digest maps into the set of impacted
// targets, optionally annotated with how far each one sits from the
// nearest direct change.
package impact

import (
	"errors"
	"sort"

	"github.com/friel-openai/bazel-differous/internal/graph"
	"github.com/friel-openai/bazel-differous/internal/hashformat"
	"github.com/friel-openai/bazel-differous/internal/label"
)

// ErrFilterRequiresTypedHashes is returned when a target-type filter is
// requested but the digest map was produced without --includeTargetType.
var ErrFilterRequiresTypedHashes = errors.New("impact: target-type filter requires hashes generated with includeTargetType")

// ErrHashFormatMismatch is returned when one input hash map was
// generated with --includeTargetType and the other without it, so a
// direct comparison would be meaningless.
var ErrHashFormatMismatch = errors.New("impact: one hash map is typed and the other is not")

// DirectChanges returns the symmetric union of labels whose digest
// changed, was added, or was removed between before and after, sorted
// for determinism. before and after must be keyed by bare label (see
// hashformat.ByLabel); it returns ErrHashFormatMismatch if one map
// carries --includeTargetType kinds and the other does not.
func DirectChanges(before, after map[string]hashformat.Parsed) ([]string, error) {
	beforeTyped, beforeKnown := hashformat.Typed(before)
	afterTyped, afterKnown := hashformat.Typed(after)
	if beforeKnown && afterKnown && beforeTyped != afterTyped {
		return nil, ErrHashFormatMismatch
	}

	changed := make(map[string]struct{})
	for l, b := range before {
		a, ok := after[l]
		if !ok || a.Digest != b.Digest {
			changed[l] = struct{}{}
		}
	}
	for l := range after {
		if _, ok := before[l]; !ok {
			changed[l] = struct{}{}
		}
	}
	out := make([]string, 0, len(changed))
	for l := range changed {
		out = append(out, l)
	}
	sort.Strings(out)
	return out, nil
}

// FilterByType keeps only the labels whose recorded kind (derived from
// the "Kind:" prefix of a typed digest map's keys) equals targetType,
// e.g. "Rule". hashes must be keyed by bare label (see
// hashformat.ByLabel). It returns ErrFilterRequiresTypedHashes if any
// candidate label's entry is untyped.
func FilterByType(labels []string, hashes map[string]hashformat.Parsed, targetType string) ([]string, error) {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		entry, ok := hashes[l]
		if !ok || !entry.Typed {
			return nil, ErrFilterRequiresTypedHashes
		}
		if entry.Kind.String() == targetType {
			out = append(out, l)
		}
	}
	return out, nil
}

// Distance records how many dependent-hops (TargetDistance) and
// distinct package boundaries (PackageDistance) separate a target from
// the nearest directly changed target.
type Distance struct {
	TargetDistance  int `json:"targetDistance"`
	PackageDistance int `json:"packageDistance"`
}

// ReverseEdges builds, for every label with at least one dependent, the
// sorted list of rules that declare it as a dependency.
func ReverseEdges(g *graph.Graph) map[string][]string {
	return ReverseEdgesFromMap(g.DepEdges())
}

// ReverseEdgesFromMap inverts a forward dep-edges map (the same shape
// as the dep-edges JSON output) into a reverse adjacency map.
func ReverseEdgesFromMap(edges map[string][]string) map[string][]string {
	rev := make(map[string][]string)
	for label, deps := range edges {
		for _, d := range deps {
			rev[d] = append(rev[d], label)
		}
	}
	for k := range rev {
		sort.Strings(rev[k])
	}
	return rev
}

// Distances runs a multi-source breadth-first search from changed over
// the reverse dependency edges of g, so that every target reachable
// from a direct change is annotated with how far it sits from the
// nearest one. Evaluation order does not affect the result: a target
// reachable from two changed sources at different depths always
// records the shorter one, since BFS visits in non-decreasing distance
// order.
func Distances(g *graph.Graph, changed []string) map[string]Distance {
	return DistancesFromEdges(g.DepEdges(), changed)
}

// DistancesFromEdges is Distances over a forward dep-edges map rather
// than a live *graph.Graph, so a dep-edges file loaded back from disk
// (get-impacted-targets never rebuilds the graph) can drive the same
// BFS.
func DistancesFromEdges(edges map[string][]string, changed []string) map[string]Distance {
	rev := ReverseEdgesFromMap(edges)

	sorted := append([]string(nil), changed...)
	sort.Strings(sorted)

	visited := make(map[string]Distance, len(sorted))
	type item struct {
		label string
		dist  Distance
	}
	queue := make([]item, 0, len(sorted))
	for _, c := range sorted {
		if _, ok := visited[c]; ok {
			continue
		}
		visited[c] = Distance{}
		queue = append(queue, item{c, Distance{}})
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		curDist := visited[cur.label]
		curPkg := label.Package(cur.label)
		for _, dependent := range rev[cur.label] {
			pkgDist := curDist.PackageDistance
			if label.Package(dependent) != curPkg {
				pkgDist++
			}
			d := Distance{TargetDistance: curDist.TargetDistance + 1, PackageDistance: pkgDist}
			if prev, ok := visited[dependent]; ok {
				// Same target distance: the lower package distance wins.
				if prev.TargetDistance == d.TargetDistance && d.PackageDistance < prev.PackageDistance {
					visited[dependent] = d
				}
				continue
			}
			visited[dependent] = d
			queue = append(queue, item{dependent, d})
		}
	}
	return visited
}
