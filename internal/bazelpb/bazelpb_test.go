package bazelpb

import (
	"errors"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func encodeTestRule(name, class string) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldRuleName, protowire.BytesType)
	b = protowire.AppendString(b, name)
	b = protowire.AppendTag(b, fieldRuleClass, protowire.BytesType)
	b = protowire.AppendString(b, class)
	return b
}

func encodeTestTarget(rule []byte) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldTargetRule, protowire.BytesType)
	b = protowire.AppendBytes(b, rule)
	return b
}

func TestDecodeRule(t *testing.T) {
	raw := encodeTestRule("//pkg:lib", "go_library")
	r, err := DecodeRule(raw)
	if err != nil {
		t.Fatalf("DecodeRule() error = %v", err)
	}
	if r.Name != "//pkg:lib" || r.RuleClass != "go_library" {
		t.Errorf("DecodeRule() = %+v", r)
	}
}

func TestDecodeTarget_Rule(t *testing.T) {
	raw := encodeTestTarget(encodeTestRule("//pkg:lib", "go_library"))
	target, err := DecodeTarget(raw)
	if err != nil {
		t.Fatalf("DecodeTarget() error = %v", err)
	}
	if target.Rule == nil || target.Rule.Name != "//pkg:lib" {
		t.Errorf("DecodeTarget() = %+v", target)
	}
}

func TestDecodeRule_PreservesUnknownFields(t *testing.T) {
	raw := encodeTestRule("//pkg:lib", "go_library")
	raw = protowire.AppendTag(raw, 999, protowire.VarintType)
	raw = protowire.AppendVarint(raw, 42)

	r, err := DecodeRule(raw)
	if err != nil {
		t.Fatalf("DecodeRule() error = %v", err)
	}
	if len(r.Unknown) == 0 {
		t.Error("DecodeRule() dropped an unknown field instead of preserving it")
	}
}

func TestDecodeAttribute_LabelList(t *testing.T) {
	var attr []byte
	attr = protowire.AppendTag(attr, fieldAttrName, protowire.BytesType)
	attr = protowire.AppendString(attr, "deps")
	attr = protowire.AppendTag(attr, fieldAttrType, protowire.VarintType)
	attr = protowire.AppendVarint(attr, attrDiscLabelList)
	attr = protowire.AppendTag(attr, fieldAttrLabelList, protowire.BytesType)
	attr = protowire.AppendString(attr, "//pkg:a")
	attr = protowire.AppendTag(attr, fieldAttrLabelList, protowire.BytesType)
	attr = protowire.AppendString(attr, "//pkg:b")

	var rule []byte
	rule = protowire.AppendTag(rule, fieldRuleAttribute, protowire.BytesType)
	rule = protowire.AppendBytes(rule, attr)

	r, err := DecodeRule(rule)
	if err != nil {
		t.Fatalf("DecodeRule() error = %v", err)
	}
	if len(r.Attributes) != 1 {
		t.Fatalf("got %d attributes, want 1", len(r.Attributes))
	}
	got := r.Attributes[0]
	if got.Type != AttrLabelList || len(got.LabelListValue) != 2 {
		t.Errorf("DecodeRule() attribute = %+v", got)
	}
}

func TestDecodeStreamedQueryFrame_BareTarget(t *testing.T) {
	raw := encodeTestTarget(encodeTestRule("//pkg:lib", "go_library"))

	targets, err := DecodeStreamedQueryFrame(raw)
	if err != nil {
		t.Fatalf("DecodeStreamedQueryFrame() error = %v", err)
	}
	if len(targets) != 1 || targets[0].Rule == nil || targets[0].Rule.Name != "//pkg:lib" {
		t.Errorf("DecodeStreamedQueryFrame() = %+v", targets)
	}
}

func TestDecodeStreamedQueryFrame_QueryResultFallback(t *testing.T) {
	target := encodeTestTarget(encodeTestRule("//pkg:lib", "go_library"))
	var wrapped []byte
	wrapped = protowire.AppendTag(wrapped, fieldQueryResultTarget, protowire.BytesType)
	wrapped = protowire.AppendBytes(wrapped, target)

	targets, err := DecodeStreamedQueryFrame(wrapped)
	if err != nil {
		t.Fatalf("DecodeStreamedQueryFrame() error = %v", err)
	}
	if len(targets) != 1 || targets[0].Rule == nil || targets[0].Rule.Name != "//pkg:lib" {
		t.Errorf("DecodeStreamedQueryFrame() = %+v", targets)
	}
}

func TestDecodeAttribute_IntValueIsPlainVarint(t *testing.T) {
	var attr []byte
	attr = protowire.AppendTag(attr, fieldAttrName, protowire.BytesType)
	attr = protowire.AppendString(attr, "count")
	attr = protowire.AppendTag(attr, fieldAttrType, protowire.VarintType)
	attr = protowire.AppendVarint(attr, attrDiscInteger)
	attr = protowire.AppendTag(attr, fieldAttrIntValue, protowire.VarintType)
	attr = protowire.AppendVarint(attr, 7)

	got, err := decodeAttribute(attr)
	if err != nil {
		t.Fatalf("decodeAttribute() error = %v", err)
	}
	if got.IntValue != 7 {
		t.Errorf("IntValue = %d, want 7 (plain varint, not zigzag)", got.IntValue)
	}
}

func TestDecodeAttribute_RejectsInvalidUTF8StringValue(t *testing.T) {
	var attr []byte
	attr = protowire.AppendTag(attr, fieldAttrName, protowire.BytesType)
	attr = protowire.AppendString(attr, "bad")
	attr = protowire.AppendTag(attr, fieldAttrStringValue, protowire.BytesType)
	attr = protowire.AppendBytes(attr, []byte{0xff, 0xfe})

	_, err := decodeAttribute(attr)
	if !errors.Is(err, ErrInvalidAttributeValue) {
		t.Fatalf("decodeAttribute() error = %v, want ErrInvalidAttributeValue", err)
	}
}

func TestDecodeAttribute_RejectsInvalidUTF8LabelValue(t *testing.T) {
	var attr []byte
	attr = protowire.AppendTag(attr, fieldAttrName, protowire.BytesType)
	attr = protowire.AppendString(attr, "bad")
	attr = protowire.AppendTag(attr, fieldAttrLabelValue, protowire.BytesType)
	attr = protowire.AppendBytes(attr, []byte{0xff, 0xfe})

	_, err := decodeAttribute(attr)
	if !errors.Is(err, ErrInvalidAttributeValue) {
		t.Fatalf("decodeAttribute() error = %v, want ErrInvalidAttributeValue", err)
	}
}
