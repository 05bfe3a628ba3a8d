package hashengine

import (
	"context"
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/friel-openai/bazel-differous/internal/bazelpb"
	"github.com/friel-openai/bazel-differous/internal/graph"
)

func mustAdd(t *testing.T, g *graph.Graph, target *bazelpb.Target) {
	t.Helper()
	if err := g.Add(target); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
}

func TestSourceDigest_Deterministic(t *testing.T) {
	g := graph.New()
	mustAdd(t, g, &bazelpb.Target{SourceFile: &bazelpb.SourceFile{Name: "//pkg:file.txt"}})

	e1 := New(g, Config{})
	e2 := New(g, Config{})

	d1, err := e1.DigestOf("//pkg:file.txt")
	if err != nil {
		t.Fatalf("DigestOf() error = %v", err)
	}
	d2, err := e2.DigestOf("//pkg:file.txt")
	if err != nil {
		t.Fatalf("DigestOf() error = %v", err)
	}
	if d1 != d2 {
		t.Errorf("source digest not deterministic across engines: %x != %x", d1, d2)
	}
}

func TestSourceDigest_SeedChangesHash(t *testing.T) {
	g := graph.New()
	mustAdd(t, g, &bazelpb.Target{SourceFile: &bazelpb.SourceFile{Name: "//pkg:file.txt"}})

	base := New(g, Config{}).mustDigest(t, "//pkg:file.txt")

	seeded := New(g, Config{
		Seeds: SeedHashMap{"//pkg:file.txt": sha256.Sum256([]byte("v2"))},
	}).mustDigest(t, "//pkg:file.txt")

	if base == seeded {
		t.Error("seed did not change the source file digest")
	}
}

func (e *Engine) mustDigest(t *testing.T, l string) [32]byte {
	t.Helper()
	d, err := e.DigestOf(l)
	if err != nil {
		t.Fatalf("DigestOf(%q) error = %v", l, err)
	}
	return d
}

func TestRuleDigest_AttributeOrderInvariant(t *testing.T) {
	base := &bazelpb.Rule{
		Name:      "//pkg:lib",
		RuleClass: "go_library",
		Attributes: []bazelpb.Attribute{
			{Name: "srcs", Type: bazelpb.AttrStringList, StringListValue: []string{"a.go", "b.go"}},
			{Name: "deps", Type: bazelpb.AttrLabelList, LabelListValue: []string{"//pkg:dep"}},
		},
	}
	reordered := &bazelpb.Rule{
		Name:      "//pkg:lib",
		RuleClass: "go_library",
		Attributes: []bazelpb.Attribute{
			{Name: "deps", Type: bazelpb.AttrLabelList, LabelListValue: []string{"//pkg:dep"}},
			{Name: "srcs", Type: bazelpb.AttrStringList, StringListValue: []string{"a.go", "b.go"}},
		},
	}

	g1 := graph.New()
	mustAdd(t, g1, &bazelpb.Target{Rule: base})
	mustAdd(t, g1, &bazelpb.Target{SourceFile: &bazelpb.SourceFile{Name: "//pkg:dep"}})

	g2 := graph.New()
	mustAdd(t, g2, &bazelpb.Target{Rule: reordered})
	mustAdd(t, g2, &bazelpb.Target{SourceFile: &bazelpb.SourceFile{Name: "//pkg:dep"}})

	d1 := New(g1, Config{}).mustDigest(t, "//pkg:lib")
	d2 := New(g2, Config{}).mustDigest(t, "//pkg:lib")

	if d1 != d2 {
		t.Errorf("rule digest depends on attribute declaration order: %x != %x", d1, d2)
	}
}

func TestRuleDigest_IgnoredAttributeHasNoEffect(t *testing.T) {
	withLoc := &bazelpb.Rule{
		Name:      "//pkg:lib",
		RuleClass: "go_library",
		Attributes: []bazelpb.Attribute{
			{Name: "generator_location", Type: bazelpb.AttrString, StringValue: "pkg/BUILD:1:1"},
		},
	}
	withoutLoc := &bazelpb.Rule{
		Name:      "//pkg:lib",
		RuleClass: "go_library",
		Attributes: []bazelpb.Attribute{
			{Name: "generator_location", Type: bazelpb.AttrString, StringValue: "pkg/BUILD:99:1"},
		},
	}

	cfg := Config{IgnoredAttrs: map[string]struct{}{"generator_location": {}}}

	g1 := graph.New()
	mustAdd(t, g1, &bazelpb.Target{Rule: withLoc})
	g2 := graph.New()
	mustAdd(t, g2, &bazelpb.Target{Rule: withoutLoc})

	d1 := New(g1, cfg).mustDigest(t, "//pkg:lib")
	d2 := New(g2, cfg).mustDigest(t, "//pkg:lib")

	if d1 != d2 {
		t.Errorf("ignored attribute changed the digest: %x != %x", d1, d2)
	}
}

func TestGeneratedFileDigest_MatchesGenerator(t *testing.T) {
	g := graph.New()
	mustAdd(t, g, &bazelpb.Target{Rule: &bazelpb.Rule{Name: "//pkg:gen", RuleClass: "genrule"}})
	mustAdd(t, g, &bazelpb.Target{GeneratedFile: &bazelpb.GeneratedFile{Name: "//pkg:out.txt", GeneratingRule: "//pkg:gen"}})

	e := New(g, Config{})
	ruleDigest := e.mustDigest(t, "//pkg:gen")
	genDigest := e.mustDigest(t, "//pkg:out.txt")

	if ruleDigest != genDigest {
		t.Errorf("generated file digest %x does not match generator digest %x", genDigest, ruleDigest)
	}
}

func TestRuleDigest_CycleDetected(t *testing.T) {
	g := graph.New()
	mustAdd(t, g, &bazelpb.Target{Rule: &bazelpb.Rule{
		Name: "//pkg:a", RuleClass: "r",
		Attributes: []bazelpb.Attribute{{Name: "deps", Type: bazelpb.AttrLabelList, LabelListValue: []string{"//pkg:b"}}},
	}})
	mustAdd(t, g, &bazelpb.Target{Rule: &bazelpb.Rule{
		Name: "//pkg:b", RuleClass: "r",
		Attributes: []bazelpb.Attribute{{Name: "deps", Type: bazelpb.AttrLabelList, LabelListValue: []string{"//pkg:a"}}},
	}})

	e := New(g, Config{})
	_, err := e.DigestOf("//pkg:a")
	var cycleErr *CycleDetectedError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("DigestOf() error = %v, want *CycleDetectedError", err)
	}
}

func TestRuleDigest_DiamondDependencyIsNotACycle(t *testing.T) {
	g := graph.New()
	mustAdd(t, g, &bazelpb.Target{SourceFile: &bazelpb.SourceFile{Name: "//pkg:d"}})
	mustAdd(t, g, &bazelpb.Target{Rule: &bazelpb.Rule{
		Name: "//pkg:b", RuleClass: "r",
		Attributes: []bazelpb.Attribute{{Name: "deps", Type: bazelpb.AttrLabelList, LabelListValue: []string{"//pkg:d"}}},
	}})
	mustAdd(t, g, &bazelpb.Target{Rule: &bazelpb.Rule{
		Name: "//pkg:c", RuleClass: "r",
		Attributes: []bazelpb.Attribute{{Name: "deps", Type: bazelpb.AttrLabelList, LabelListValue: []string{"//pkg:d"}}},
	}})
	mustAdd(t, g, &bazelpb.Target{Rule: &bazelpb.Rule{
		Name: "//pkg:a", RuleClass: "r",
		Attributes: []bazelpb.Attribute{{Name: "deps", Type: bazelpb.AttrLabelList, LabelListValue: []string{"//pkg:b", "//pkg:c"}}},
	}})

	e := New(g, Config{Parallel: true, Workers: 4})
	if _, err := e.DigestOf("//pkg:a"); err != nil {
		t.Fatalf("DigestOf() error = %v, want nil for a diamond dependency", err)
	}
}

func TestOpaqueExternalDependency_SharesDigestPerRepo(t *testing.T) {
	ruleA := &bazelpb.Rule{
		Name: "//pkg:a", RuleClass: "r",
		Attributes: []bazelpb.Attribute{{Name: "deps", Type: bazelpb.AttrLabelList, LabelListValue: []string{"@ext//x:x"}}},
	}
	ruleB := &bazelpb.Rule{
		Name: "//pkg:b", RuleClass: "r",
		Attributes: []bazelpb.Attribute{{Name: "deps", Type: bazelpb.AttrLabelList, LabelListValue: []string{"@ext//y:y"}}},
	}

	g := graph.New()
	mustAdd(t, g, &bazelpb.Target{Rule: ruleA})
	mustAdd(t, g, &bazelpb.Target{Rule: ruleB})

	e := New(g, Config{})
	e.mustDigest(t, "//pkg:a")
	e.mustDigest(t, "//pkg:b")
	da, err := e.resolveDependency("@ext//x:x", nil)
	if err != nil {
		t.Fatalf("resolveDependency(@ext//x:x) error = %v", err)
	}
	db, err := e.resolveDependency("@ext//y:y", nil)
	if err != nil {
		t.Fatalf("resolveDependency(@ext//y:y) error = %v", err)
	}
	if da != db {
		t.Error("two different unlisted targets from the same external repo produced different dependency digests")
	}
}

func TestMissingFineGrainedTarget(t *testing.T) {
	g := graph.New()
	mustAdd(t, g, &bazelpb.Target{Rule: &bazelpb.Rule{
		Name: "//pkg:a", RuleClass: "r",
		Attributes: []bazelpb.Attribute{{Name: "deps", Type: bazelpb.AttrLabelList, LabelListValue: []string{"@ext//x:x"}}},
	}})

	e := New(g, Config{FineGrainedExternalRepos: map[string]struct{}{"@ext": {}}})
	_, err := e.DigestOf("//pkg:a")
	var missing *MissingFineGrainedTargetError
	if !errors.As(err, &missing) {
		t.Fatalf("DigestOf() error = %v, want *MissingFineGrainedTargetError", err)
	}
}

func TestDigestAll_Deterministic(t *testing.T) {
	g := graph.New()
	mustAdd(t, g, &bazelpb.Target{SourceFile: &bazelpb.SourceFile{Name: "//pkg:a.go"}})
	mustAdd(t, g, &bazelpb.Target{Rule: &bazelpb.Rule{
		Name: "//pkg:lib", RuleClass: "go_library",
		Attributes: []bazelpb.Attribute{{Name: "srcs", Type: bazelpb.AttrLabelList, LabelListValue: []string{"//pkg:a.go"}}},
	}})

	seq := New(g, Config{}).mustDigestAll(t)
	par := New(g, Config{Parallel: true, Workers: 4}).mustDigestAll(t)

	if len(seq) != len(par) {
		t.Fatalf("digest count mismatch: sequential=%d parallel=%d", len(seq), len(par))
	}
	for l, d := range seq {
		if par[l] != d {
			t.Errorf("digest for %s differs between sequential and parallel evaluation", l)
		}
	}
}

func (e *Engine) mustDigestAll(t *testing.T) map[string][32]byte {
	t.Helper()
	out, err := e.DigestAll(context.Background())
	if err != nil {
		t.Fatalf("DigestAll() error = %v", err)
	}
	return out
}
