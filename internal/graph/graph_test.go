package graph

import (
	"testing"

	"github.com/friel-openai/bazel-differous/internal/bazelpb"
)

func TestAdd_NormalizesLabelsAndDeduplicatesDeps(t *testing.T) {
	g := New()
	rule := &bazelpb.Rule{
		Name:      "//pkg:lib",
		RuleClass: "go_library",
		Attributes: []bazelpb.Attribute{
			{Name: "deps", Type: bazelpb.AttrLabelList, LabelListValue: []string{"//pkg:a", "//pkg:a", "@ext//x"}},
			{Name: "embed", Type: bazelpb.AttrLabel, LabelValue: "//pkg:a"},
		},
	}
	if err := g.Add(&bazelpb.Target{Rule: rule}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	node, ok := g.Rules["//pkg:lib"]
	if !ok {
		t.Fatal("rule not present under normalized label")
	}
	want := []string{"//pkg:a", "@ext//x:x"}
	if len(node.Deps) != len(want) {
		t.Fatalf("Deps = %v, want %v", node.Deps, want)
	}
	for i, w := range want {
		if node.Deps[i] != w {
			t.Errorf("Deps[%d] = %q, want %q", i, node.Deps[i], w)
		}
	}
}

func TestAdd_SourceAndGeneratedFile(t *testing.T) {
	g := New()
	if err := g.Add(&bazelpb.Target{SourceFile: &bazelpb.SourceFile{Name: "//pkg:a.go"}}); err != nil {
		t.Fatalf("Add(source) error = %v", err)
	}
	if err := g.Add(&bazelpb.Target{GeneratedFile: &bazelpb.GeneratedFile{Name: "//pkg:out", GeneratingRule: "//pkg:gen"}}); err != nil {
		t.Fatalf("Add(generated) error = %v", err)
	}

	if kind, ok := g.Kind("//pkg:a.go"); !ok || kind != KindSourceFile {
		t.Errorf("Kind(a.go) = %v, %v", kind, ok)
	}
	if kind, ok := g.Kind("//pkg:out"); !ok || kind != KindGeneratedFile {
		t.Errorf("Kind(out) = %v, %v", kind, ok)
	}
	if g.Generated["//pkg:out"].Generator != "//pkg:gen" {
		t.Errorf("Generator = %q, want //pkg:gen", g.Generated["//pkg:out"].Generator)
	}
}

func TestAdd_RejectsInvalidLabel(t *testing.T) {
	g := New()
	err := g.Add(&bazelpb.Target{SourceFile: &bazelpb.SourceFile{Name: ""}})
	if err == nil {
		t.Error("Add() expected error for empty label")
	}
}
