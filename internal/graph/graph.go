// Package graph assembles decoded Bazel targets into an in-memory
// build graph keyed by canonical label.
package graph

import (
	"fmt"
	"sort"

	"github.com/friel-openai/bazel-differous/internal/bazelpb"
	"github.com/friel-openai/bazel-differous/internal/label"
)

// Kind discriminates the three target shapes the hash engine treats
// differently.
type Kind int

const (
	KindUnknown Kind = iota
	KindRule
	KindSourceFile
	KindGeneratedFile
)

func (k Kind) String() string {
	switch k {
	case KindRule:
		return "Rule"
	case KindSourceFile:
		return "SourceFile"
	case KindGeneratedFile:
		return "GeneratedFile"
	default:
		return "Unknown"
	}
}

// RuleNode is a Bazel rule target: its class, its attributes as decoded
// (canonicalized only when the rule is hashed), and the normalized,
// deduplicated set of labels it depends on.
type RuleNode struct {
	Label      string
	Class      string
	Attributes []bazelpb.Attribute
	Deps       []string
}

// SourceNode is a plain source file target.
type SourceNode struct {
	Label string
}

// GeneratedNode is a build output produced by another rule.
type GeneratedNode struct {
	Label     string
	Generator string
}

// Graph is the full set of targets returned by a single bazel query,
// keyed by canonical label.
type Graph struct {
	Rules     map[string]*RuleNode
	Sources   map[string]*SourceNode
	Generated map[string]*GeneratedNode
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		Rules:     make(map[string]*RuleNode),
		Sources:   make(map[string]*SourceNode),
		Generated: make(map[string]*GeneratedNode),
	}
}

// Kind reports which bucket label falls in, if any.
func (g *Graph) Kind(l string) (Kind, bool) {
	if _, ok := g.Rules[l]; ok {
		return KindRule, true
	}
	if _, ok := g.Sources[l]; ok {
		return KindSourceFile, true
	}
	if _, ok := g.Generated[l]; ok {
		return KindGeneratedFile, true
	}
	return KindUnknown, false
}

// Len returns the total number of targets across all buckets.
func (g *Graph) Len() int {
	return len(g.Rules) + len(g.Sources) + len(g.Generated)
}

// Add normalizes t's label and folds it into the graph.
func (g *Graph) Add(t *bazelpb.Target) error {
	switch {
	case t.Rule != nil:
		return g.addRule(t.Rule)
	case t.SourceFile != nil:
		return g.addSource(t.SourceFile)
	case t.GeneratedFile != nil:
		return g.addGenerated(t.GeneratedFile)
	default:
		return fmt.Errorf("graph: target has no rule, source_file or generated_file payload")
	}
}

func (g *Graph) addRule(r *bazelpb.Rule) error {
	name, err := label.Normalize(r.Name)
	if err != nil {
		return fmt.Errorf("graph: rule %q: %w", r.Name, err)
	}

	deps := make(map[string]struct{})
	for _, attr := range r.Attributes {
		switch attr.Type {
		case bazelpb.AttrLabel:
			if attr.LabelValue == "" {
				continue
			}
			if n, err := label.Normalize(attr.LabelValue); err == nil {
				deps[n] = struct{}{}
			}
		case bazelpb.AttrLabelList:
			for _, v := range attr.LabelListValue {
				if v == "" {
					continue
				}
				if n, err := label.Normalize(v); err == nil {
					deps[n] = struct{}{}
				}
			}
		}
	}
	for _, in := range r.RuleInputs {
		if n, err := label.Normalize(in); err == nil {
			deps[n] = struct{}{}
		}
	}

	sorted := make([]string, 0, len(deps))
	for d := range deps {
		sorted = append(sorted, d)
	}
	sort.Strings(sorted)

	g.Rules[name] = &RuleNode{
		Label:      name,
		Class:      r.RuleClass,
		Attributes: r.Attributes,
		Deps:       sorted,
	}
	return nil
}

func (g *Graph) addSource(s *bazelpb.SourceFile) error {
	name, err := label.Normalize(s.Name)
	if err != nil {
		return fmt.Errorf("graph: source file %q: %w", s.Name, err)
	}
	g.Sources[name] = &SourceNode{Label: name}
	return nil
}

func (g *Graph) addGenerated(gf *bazelpb.GeneratedFile) error {
	name, err := label.Normalize(gf.Name)
	if err != nil {
		return fmt.Errorf("graph: generated file %q: %w", gf.Name, err)
	}
	generator, err := label.Normalize(gf.GeneratingRule)
	if err != nil {
		return fmt.Errorf("graph: generated file %q: generating rule %q: %w", name, gf.GeneratingRule, err)
	}
	g.Generated[name] = &GeneratedNode{Label: name, Generator: generator}
	return nil
}

// DepEdges returns, for every rule in the graph, its sorted direct
// dependency labels. Source and generated-file leaves are omitted, the
// same contract as the dep-edges JSON output.
func (g *Graph) DepEdges() map[string][]string {
	out := make(map[string][]string, len(g.Rules))
	for l, r := range g.Rules {
		out[l] = append([]string(nil), r.Deps...)
	}
	return out
}

// Labels returns every label in the graph, sorted.
func (g *Graph) Labels() []string {
	out := make([]string, 0, g.Len())
	for l := range g.Rules {
		out = append(out, l)
	}
	for l := range g.Sources {
		out = append(out, l)
	}
	for l := range g.Generated {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
