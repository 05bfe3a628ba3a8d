// Package bazelpb decodes the subset of Bazel's build.proto and
// analysis.proto wire schema needed to reconstruct a build graph from
// streamed query output. Messages are decoded field-by-field with
// protowire. Unknown fields of Target, Rule, SourceFile and
// GeneratedFile are kept as raw bytes in their Unknown field; unknown
// fields inside an Attribute or a QueryResult/CqueryResult envelope are
// skipped and not kept.
package bazelpb

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrInvalidAttributeValue is returned when a decoded string, label, or
// list-of-strings attribute value is not valid UTF-8.
var ErrInvalidAttributeValue = errors.New("bazelpb: attribute value is not valid UTF-8")

// AttrType mirrors the subset of build.proto's Attribute.Discriminator
// that the hash engine assigns byte-layout rules to.
type AttrType int

const (
	AttrUnknown AttrType = iota
	AttrString
	AttrBoolean
	AttrInteger
	AttrLabel
	AttrStringList
	AttrLabelList
)

// wire field numbers, matching Bazel's public build.proto/analysis.proto.
const (
	fieldTargetType          = 1
	fieldTargetRule          = 2
	fieldTargetSourceFile    = 3
	fieldTargetGeneratedFile = 4

	fieldRuleName        = 1
	fieldRuleClass       = 2
	fieldRuleAttribute   = 4
	fieldRuleRuleInput   = 12
	fieldRuleRuleOutput  = 13

	fieldAttrName        = 1
	fieldAttrType        = 2
	fieldAttrStringValue = 3
	fieldAttrIntValue    = 4
	fieldAttrBoolValue   = 5
	fieldAttrStringList  = 6
	fieldAttrLabelValue  = 15
	fieldAttrLabelList   = 16

	attrDiscInteger    = 1
	attrDiscString     = 2
	attrDiscLabel      = 3
	attrDiscStringList = 5
	attrDiscLabelList  = 6
	attrDiscBoolean    = 14

	fieldSourceName       = 1
	fieldSourceSubinclude = 8

	fieldGeneratedName = 1
	fieldGeneratedRule = 2

	fieldQueryResultTarget = 1

	fieldCqueryResultResult = 1
	fieldConfiguredTarget   = 2
)

// Attribute is a single decoded rule attribute.
type Attribute struct {
	Name            string
	Type            AttrType
	StringValue     string
	IntValue        int64
	BooleanValue    bool
	LabelValue      string
	StringListValue []string
	LabelListValue  []string
}

// Rule is a decoded build.proto Rule message.
type Rule struct {
	Name       string
	RuleClass  string
	Attributes []Attribute
	RuleInputs []string
	Unknown    []byte
}

// SourceFile is a decoded build.proto SourceFile message.
type SourceFile struct {
	Name        string
	Subincludes []string
	Unknown     []byte
}

// GeneratedFile is a decoded build.proto GeneratedFile message.
type GeneratedFile struct {
	Name           string
	GeneratingRule string
	Unknown        []byte
}

// Target is a decoded build.proto Target: exactly one of Rule,
// SourceFile or GeneratedFile is set.
type Target struct {
	Rule          *Rule
	SourceFile    *SourceFile
	GeneratedFile *GeneratedFile
	Unknown       []byte
}

func appendUnknown(unknown []byte, num protowire.Number, typ protowire.Type, raw []byte) []byte {
	tag := protowire.AppendTag(nil, num, typ)
	unknown = append(unknown, tag...)
	unknown = append(unknown, raw...)
	return unknown
}

// DecodeTarget decodes a single build.proto Target message.
func DecodeTarget(b []byte) (*Target, error) {
	t := &Target{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("bazelpb: invalid tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldTargetRule && typ == protowire.BytesType:
			msg, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, fmt.Errorf("bazelpb: invalid rule field: %w", protowire.ParseError(m))
			}
			rule, err := DecodeRule(msg)
			if err != nil {
				return nil, err
			}
			t.Rule = rule
			b = b[m:]
		case num == fieldTargetSourceFile && typ == protowire.BytesType:
			msg, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, fmt.Errorf("bazelpb: invalid source_file field: %w", protowire.ParseError(m))
			}
			sf, err := DecodeSourceFile(msg)
			if err != nil {
				return nil, err
			}
			t.SourceFile = sf
			b = b[m:]
		case num == fieldTargetGeneratedFile && typ == protowire.BytesType:
			msg, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, fmt.Errorf("bazelpb: invalid generated_file field: %w", protowire.ParseError(m))
			}
			gf, err := DecodeGeneratedFile(msg)
			if err != nil {
				return nil, err
			}
			t.GeneratedFile = gf
			b = b[m:]
		case num == fieldTargetType && typ == protowire.VarintType:
			_, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return nil, fmt.Errorf("bazelpb: invalid type field: %w", protowire.ParseError(m))
			}
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return nil, fmt.Errorf("bazelpb: invalid field %d: %w", num, protowire.ParseError(m))
			}
			t.Unknown = appendUnknown(t.Unknown, num, typ, b[:m])
			b = b[m:]
		}
	}
	return t, nil
}

// DecodeRule decodes a build.proto Rule message.
func DecodeRule(b []byte) (*Rule, error) {
	r := &Rule{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("bazelpb: invalid rule tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fieldRuleName:
			s, m := protowire.ConsumeString(b)
			if m < 0 {
				return nil, fmt.Errorf("bazelpb: invalid rule name: %w", protowire.ParseError(m))
			}
			r.Name = s
			b = b[m:]
		case fieldRuleClass:
			s, m := protowire.ConsumeString(b)
			if m < 0 {
				return nil, fmt.Errorf("bazelpb: invalid rule_class: %w", protowire.ParseError(m))
			}
			r.RuleClass = s
			b = b[m:]
		case fieldRuleAttribute:
			msg, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, fmt.Errorf("bazelpb: invalid attribute: %w", protowire.ParseError(m))
			}
			attr, err := decodeAttribute(msg)
			if err != nil {
				return nil, err
			}
			r.Attributes = append(r.Attributes, attr)
			b = b[m:]
		case fieldRuleRuleInput:
			s, m := protowire.ConsumeString(b)
			if m < 0 {
				return nil, fmt.Errorf("bazelpb: invalid rule_input: %w", protowire.ParseError(m))
			}
			r.RuleInputs = append(r.RuleInputs, s)
			b = b[m:]
		case fieldRuleRuleOutput:
			_, m := protowire.ConsumeString(b)
			if m < 0 {
				return nil, fmt.Errorf("bazelpb: invalid rule_output: %w", protowire.ParseError(m))
			}
			b = b[m:]
		default:
			m := consumeAny(num, typ, b, &r.Unknown)
			if m < 0 {
				return nil, fmt.Errorf("bazelpb: invalid rule field %d", num)
			}
			b = b[m:]
		}
	}
	return r, nil
}

func decodeAttribute(b []byte) (Attribute, error) {
	a := Attribute{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return a, fmt.Errorf("bazelpb: invalid attribute tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fieldAttrName:
			s, m := protowire.ConsumeString(b)
			if m < 0 {
				return a, fmt.Errorf("bazelpb: invalid attribute name: %w", protowire.ParseError(m))
			}
			a.Name, b = s, b[m:]
		case fieldAttrType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return a, fmt.Errorf("bazelpb: invalid attribute type: %w", protowire.ParseError(m))
			}
			a.Type = attrTypeFromDiscriminator(int(v))
			b = b[m:]
		case fieldAttrStringValue:
			s, m := protowire.ConsumeString(b)
			if m < 0 {
				return a, fmt.Errorf("bazelpb: invalid attribute string_value: %w", protowire.ParseError(m))
			}
			if !utf8.ValidString(s) {
				return a, fmt.Errorf("bazelpb: attribute %q string_value: %w", a.Name, ErrInvalidAttributeValue)
			}
			a.StringValue, b = s, b[m:]
		case fieldAttrIntValue:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return a, fmt.Errorf("bazelpb: invalid attribute int_value: %w", protowire.ParseError(m))
			}
			// int_value is a plain int32 varint, not a zigzag-encoded sint32.
			a.IntValue, b = int64(int32(v)), b[m:]
		case fieldAttrBoolValue:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return a, fmt.Errorf("bazelpb: invalid attribute bool_value: %w", protowire.ParseError(m))
			}
			a.BooleanValue, b = v != 0, b[m:]
		case fieldAttrLabelValue:
			s, m := protowire.ConsumeString(b)
			if m < 0 {
				return a, fmt.Errorf("bazelpb: invalid attribute label_value: %w", protowire.ParseError(m))
			}
			if !utf8.ValidString(s) {
				return a, fmt.Errorf("bazelpb: attribute %q label_value: %w", a.Name, ErrInvalidAttributeValue)
			}
			a.LabelValue, b = s, b[m:]
		case fieldAttrStringList:
			s, m := protowire.ConsumeString(b)
			if m < 0 {
				return a, fmt.Errorf("bazelpb: invalid attribute string_list_value: %w", protowire.ParseError(m))
			}
			if !utf8.ValidString(s) {
				return a, fmt.Errorf("bazelpb: attribute %q string_list_value: %w", a.Name, ErrInvalidAttributeValue)
			}
			a.StringListValue = append(a.StringListValue, s)
			b = b[m:]
		case fieldAttrLabelList:
			s, m := protowire.ConsumeString(b)
			if m < 0 {
				return a, fmt.Errorf("bazelpb: invalid attribute label_list_value: %w", protowire.ParseError(m))
			}
			if !utf8.ValidString(s) {
				return a, fmt.Errorf("bazelpb: attribute %q label_list_value: %w", a.Name, ErrInvalidAttributeValue)
			}
			a.LabelListValue = append(a.LabelListValue, s)
			b = b[m:]
		default:
			var discard []byte
			m := consumeAny(num, typ, b, &discard)
			if m < 0 {
				return a, fmt.Errorf("bazelpb: invalid attribute field %d", num)
			}
			b = b[m:]
		}
	}
	return a, nil
}

func attrTypeFromDiscriminator(d int) AttrType {
	switch d {
	case attrDiscString:
		return AttrString
	case attrDiscBoolean:
		return AttrBoolean
	case attrDiscInteger:
		return AttrInteger
	case attrDiscLabel:
		return AttrLabel
	case attrDiscStringList:
		return AttrStringList
	case attrDiscLabelList:
		return AttrLabelList
	default:
		return AttrUnknown
	}
}

// DecodeSourceFile decodes a build.proto SourceFile message.
func DecodeSourceFile(b []byte) (*SourceFile, error) {
	s := &SourceFile{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("bazelpb: invalid source_file tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fieldSourceName:
			str, m := protowire.ConsumeString(b)
			if m < 0 {
				return nil, fmt.Errorf("bazelpb: invalid source_file name: %w", protowire.ParseError(m))
			}
			s.Name, b = str, b[m:]
		case fieldSourceSubinclude:
			str, m := protowire.ConsumeString(b)
			if m < 0 {
				return nil, fmt.Errorf("bazelpb: invalid source_file subinclude: %w", protowire.ParseError(m))
			}
			s.Subincludes = append(s.Subincludes, str)
			b = b[m:]
		default:
			m := consumeAny(num, typ, b, &s.Unknown)
			if m < 0 {
				return nil, fmt.Errorf("bazelpb: invalid source_file field %d", num)
			}
			b = b[m:]
		}
	}
	return s, nil
}

// DecodeGeneratedFile decodes a build.proto GeneratedFile message.
func DecodeGeneratedFile(b []byte) (*GeneratedFile, error) {
	g := &GeneratedFile{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("bazelpb: invalid generated_file tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fieldGeneratedName:
			str, m := protowire.ConsumeString(b)
			if m < 0 {
				return nil, fmt.Errorf("bazelpb: invalid generated_file name: %w", protowire.ParseError(m))
			}
			g.Name, b = str, b[m:]
		case fieldGeneratedRule:
			str, m := protowire.ConsumeString(b)
			if m < 0 {
				return nil, fmt.Errorf("bazelpb: invalid generated_file rule: %w", protowire.ParseError(m))
			}
			g.GeneratingRule, b = str, b[m:]
		default:
			m := consumeAny(num, typ, b, &g.Unknown)
			if m < 0 {
				return nil, fmt.Errorf("bazelpb: invalid generated_file field %d", num)
			}
			b = b[m:]
		}
	}
	return g, nil
}

// DecodeStreamedQueryFrame decodes one length-delimited frame of
// `bazel query --output=streamed_proto`'s output. Each frame is a bare
// Target message, not a QueryResult wrapping one: a Target decode that
// sets none of Rule/SourceFile/GeneratedFile is retried as a
// QueryResult, so a frame that turns out to be wrapped after all isn't
// silently dropped.
func DecodeStreamedQueryFrame(b []byte) ([]*Target, error) {
	t, err := DecodeTarget(b)
	if err != nil {
		return nil, err
	}
	if t.Rule != nil || t.SourceFile != nil || t.GeneratedFile != nil {
		return []*Target{t}, nil
	}
	if wrapped, werr := DecodeQueryResult(b); werr == nil && len(wrapped) > 0 {
		return wrapped, nil
	}
	return []*Target{t}, nil
}

// DecodeQueryResult decodes build.proto's QueryResult: a flat list of
// targets, the wrapped shape older `bazel query` output used before
// --output=streamed_proto switched to emitting bare Target frames.
func DecodeQueryResult(b []byte) ([]*Target, error) {
	var targets []*Target
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("bazelpb: invalid query_result tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		if num == fieldQueryResultTarget && typ == protowire.BytesType {
			msg, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, fmt.Errorf("bazelpb: invalid query_result target: %w", protowire.ParseError(m))
			}
			t, err := DecodeTarget(msg)
			if err != nil {
				return nil, err
			}
			targets = append(targets, t)
			b = b[m:]
			continue
		}
		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return nil, fmt.Errorf("bazelpb: invalid query_result field %d", num)
		}
		b = b[m:]
	}
	return targets, nil
}

// DecodeCqueryResult decodes analysis.proto's CqueryResult, unwrapping
// the ConfiguredTarget envelope that `bazel cquery` uses.
func DecodeCqueryResult(b []byte) ([]*Target, error) {
	var targets []*Target
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("bazelpb: invalid cquery_result tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		if num == fieldCqueryResultResult && typ == protowire.BytesType {
			msg, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, fmt.Errorf("bazelpb: invalid cquery_result result: %w", protowire.ParseError(m))
			}
			t, err := decodeConfiguredTarget(msg)
			if err != nil {
				return nil, err
			}
			if t != nil {
				targets = append(targets, t)
			}
			b = b[m:]
			continue
		}
		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return nil, fmt.Errorf("bazelpb: invalid cquery_result field %d", num)
		}
		b = b[m:]
	}
	return targets, nil
}

func decodeConfiguredTarget(b []byte) (*Target, error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("bazelpb: invalid configured_target tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		if num == fieldConfiguredTarget && typ == protowire.BytesType {
			msg, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, fmt.Errorf("bazelpb: invalid configured_target.target: %w", protowire.ParseError(m))
			}
			return DecodeTarget(msg)
		}
		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return nil, fmt.Errorf("bazelpb: invalid configured_target field %d", num)
		}
		b = b[m:]
	}
	return nil, nil
}

func consumeAny(num protowire.Number, typ protowire.Type, b []byte, unknown *[]byte) int {
	m := protowire.ConsumeFieldValue(num, typ, b)
	if m < 0 {
		return m
	}
	*unknown = appendUnknown(*unknown, num, typ, b[:m])
	return m
}
