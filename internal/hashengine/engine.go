// Package hashengine computes the deterministic content hash of every
// target in a build graph. Evaluation is a single memoized pass over the
// sorted labels: source files resolve without recursion, a generated
// file takes its generating rule's digest, and rules recurse into their
// dependencies, so that shared dependencies are hashed exactly once
// regardless of how many rules reach them.
//
// Rule evaluation is safe to parallelize because a rule's hash is a
// pure function of its own attributes and its dependencies' hashes:
// Config.Parallel fans dependency evaluation out across a bounded
// worker pool without changing the result, only the wall-clock time.
//
// The bound is applied fresh at every fan-out point (DigestAll's top
// level, and each rule's own dependency list) rather than through one
// semaphore shared across the whole call tree: a rule's evaluation
// recurses into its dependencies before it can finish, so a single
// global limit held across that recursion can self-deadlock once every
// slot is occupied by a goroutine that is itself waiting on a child.
package hashengine

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/friel-openai/bazel-differous/internal/bazelpb"
	"github.com/friel-openai/bazel-differous/internal/extrepo"
	"github.com/friel-openai/bazel-differous/internal/graph"
	"github.com/friel-openai/bazel-differous/internal/label"
)

const defaultWorkers = 4

// path tracks the chain of rule labels currently being evaluated on
// one call stack, so a dependency that loops back to an ancestor can
// be told apart from two independent branches that happen to converge
// on the same shared dependency (a diamond, not a cycle).
type path map[string]struct{}

func (p path) with(l string) path {
	next := make(path, len(p)+1)
	for k := range p {
		next[k] = struct{}{}
	}
	next[l] = struct{}{}
	return next
}

// Engine evaluates target digests over a fixed graph and Config. Its
// exported methods are safe to call concurrently.
type Engine struct {
	graph *graph.Graph
	cfg   Config
	group singleflight.Group

	mu      sync.Mutex
	ruleDig map[string][32]byte
	srcDig  map[string][32]byte
	genDig  map[string][32]byte
}

// New returns an Engine over g configured by cfg.
func New(g *graph.Graph, cfg Config) *Engine {
	return &Engine{
		graph:   g,
		cfg:     cfg,
		ruleDig: make(map[string][32]byte),
		srcDig:  make(map[string][32]byte),
		genDig:  make(map[string][32]byte),
	}
}

// workers reports the fan-out width for one level of dependency
// evaluation. It bounds concurrency per fan-out point, not across the
// whole call tree; see the package doc for why.
func (e *Engine) workers() int {
	if !e.cfg.Parallel {
		return 1
	}
	if e.cfg.Workers < 1 {
		return defaultWorkers
	}
	return e.cfg.Workers
}

// DigestOf returns the content digest of any label present in the
// graph, dispatching by target kind.
func (e *Engine) DigestOf(l string) ([32]byte, error) {
	kind, ok := e.graph.Kind(l)
	if !ok {
		return [32]byte{}, fmt.Errorf("hashengine: %s not present in graph", l)
	}
	switch kind {
	case graph.KindRule:
		return e.ruleDigest(l, nil)
	case graph.KindSourceFile:
		return e.sourceDigest(l)
	case graph.KindGeneratedFile:
		return e.generatedDigest(l, nil)
	default:
		return [32]byte{}, fmt.Errorf("hashengine: %s has unknown kind", l)
	}
}

// DigestAll evaluates every target in the graph and returns a
// label->digest map, fanning independent rule subtrees across the
// configured worker pool when Config.Parallel is set.
func (e *Engine) DigestAll(ctx context.Context) (map[string][32]byte, error) {
	labels := e.graph.Labels()
	out := make(map[string][32]byte, len(labels))

	var g errgroup.Group
	g.SetLimit(e.workers())
	var mu sync.Mutex
	for _, l := range labels {
		l := l
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			d, err := e.DigestOf(l)
			if err != nil {
				return err
			}
			mu.Lock()
			out[l] = d
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) sourceDigest(l string) ([32]byte, error) {
	e.mu.Lock()
	if d, ok := e.srcDig[l]; ok {
		e.mu.Unlock()
		return d, nil
	}
	e.mu.Unlock()

	if _, ok := e.graph.Sources[l]; !ok {
		return [32]byte{}, fmt.Errorf("hashengine: %s is not a source file", l)
	}

	var tail [32]byte
	if ov, ok := e.cfg.ContentOverrides[l]; ok {
		tail = ov
	} else if seed, ok := e.cfg.Seeds[l]; ok && e.cfg.ModifiedFiles.Allows(l) {
		tail = seed
	}

	h := sha256.New()
	mixStr(h, "SOURCE")
	mixStr(h, l)
	mixDigest(h, tail)
	var out [32]byte
	copy(out[:], h.Sum(nil))

	e.mu.Lock()
	e.srcDig[l] = out
	e.mu.Unlock()
	return out, nil
}

func (e *Engine) generatedDigest(l string, p path) ([32]byte, error) {
	e.mu.Lock()
	if d, ok := e.genDig[l]; ok {
		e.mu.Unlock()
		return d, nil
	}
	e.mu.Unlock()

	node, ok := e.graph.Generated[l]
	if !ok {
		return [32]byte{}, fmt.Errorf("hashengine: %s is not a generated file", l)
	}
	d, err := e.ruleDigest(node.Generator, p)
	if err != nil {
		return [32]byte{}, err
	}

	e.mu.Lock()
	e.genDig[l] = d
	e.mu.Unlock()
	return d, nil
}

func (e *Engine) ruleDigest(l string, p path) ([32]byte, error) {
	e.mu.Lock()
	if d, ok := e.ruleDig[l]; ok {
		e.mu.Unlock()
		return d, nil
	}
	e.mu.Unlock()

	if _, onPath := p[l]; onPath {
		return [32]byte{}, &CycleDetectedError{Label: l}
	}
	childPath := p.with(l)

	v, err, _ := e.group.Do(l, func() (interface{}, error) {
		node, ok := e.graph.Rules[l]
		if !ok {
			return [32]byte{}, fmt.Errorf("hashengine: %s is not a rule", l)
		}
		return e.computeRuleDigest(node, childPath)
	})
	if err != nil {
		return [32]byte{}, err
	}
	out := v.([32]byte)

	e.mu.Lock()
	e.ruleDig[l] = out
	e.mu.Unlock()
	return out, nil
}

func (e *Engine) computeRuleDigest(node *graph.RuleNode, p path) ([32]byte, error) {
	h := sha256.New()
	mixStr(h, "RULE")
	mixStr(h, node.Class)

	names := make([]string, 0, len(node.Attributes))
	byName := make(map[string]bazelpb.Attribute, len(node.Attributes))
	for _, a := range node.Attributes {
		if e.cfg.isIgnored(a.Name) {
			continue
		}
		if _, dup := byName[a.Name]; dup {
			continue
		}
		byName[a.Name] = a
		names = append(names, a.Name)
	}
	sort.Strings(names)

	for _, name := range names {
		encodeAttr(h, byName[name])
	}

	digests := make([][32]byte, len(node.Deps))
	if err := e.resolveDependencies(node.Deps, digests, p); err != nil {
		return [32]byte{}, fmt.Errorf("hashengine: rule %s: %w", node.Label, err)
	}
	for i, dep := range node.Deps {
		mixStr(h, dep)
		mixDigest(h, digests[i])
	}

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

// resolveDependencies fills digests[i] with the contribution of
// deps[i], evaluated across the engine's worker pool.
func (e *Engine) resolveDependencies(deps []string, digests [][32]byte, p path) error {
	var g errgroup.Group
	g.SetLimit(e.workers())
	for i, dep := range deps {
		i, dep := i, dep
		g.Go(func() error {
			d, err := e.resolveDependency(dep, p)
			if err != nil {
				return err
			}
			digests[i] = d
			return nil
		})
	}
	return g.Wait()
}

// resolveDependency returns the digest contribution for a dependency
// edge, computing it recursively when the target is present in the
// graph, and synthesizing an opaque digest for external targets Bazel
// was never asked to resolve at fine granularity.
func (e *Engine) resolveDependency(dep string, p path) ([32]byte, error) {
	if kind, ok := e.graph.Kind(dep); ok {
		switch kind {
		case graph.KindRule:
			return e.ruleDigest(dep, p)
		case graph.KindSourceFile:
			return e.sourceDigest(dep)
		case graph.KindGeneratedFile:
			return e.generatedDigest(dep, p)
		}
	}

	repo := label.Repo(dep)
	if repo == "" {
		// Not external and not in the graph: a genuinely missing
		// target. Fall back to a per-label opaque digest so a single
		// unresolved reference doesn't fail the whole run.
		return sha256.Sum256([]byte(dep)), nil
	}
	if extrepo.IsFineGrained(repo, e.cfg.FineGrainedExternalRepos) {
		return [32]byte{}, &MissingFineGrainedTargetError{Label: dep}
	}
	// Every target in an unlisted external repo shares one digest
	// derived only from the repo name.
	return sha256.Sum256([]byte(repo)), nil
}
