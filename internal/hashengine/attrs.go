package hashengine

import (
	"hash"

	"github.com/friel-openai/bazel-differous/internal/bazelpb"
	"github.com/friel-openai/bazel-differous/internal/label"
)

// encodeAttr appends one attribute's canonical byte encoding: its
// name, then its type-specific value encoding, with no discriminator
// in between. Label and label-list values are normalized before being
// written so that two spellings of the same label never produce
// different rule hashes.
func encodeAttr(h hash.Hash, a bazelpb.Attribute) {
	mixStr(h, a.Name)

	switch a.Type {
	case bazelpb.AttrString:
		mixStr(h, a.StringValue)
	case bazelpb.AttrLabel:
		mixStr(h, normalizeOrRaw(a.LabelValue))
	case bazelpb.AttrBoolean:
		mixBool(h, a.BooleanValue)
	case bazelpb.AttrInteger:
		mixI64(h, a.IntValue)
	case bazelpb.AttrStringList:
		mixStringList(h, a.StringListValue)
	case bazelpb.AttrLabelList:
		norm := make([]string, len(a.LabelListValue))
		for i, l := range a.LabelListValue {
			norm[i] = normalizeOrRaw(l)
		}
		mixStringList(h, norm)
	default:
		// Attribute types the hash engine doesn't assign a byte layout
		// to contribute nothing beyond their name.
	}
}

func normalizeOrRaw(raw string) string {
	if n, err := label.Normalize(raw); err == nil {
		return n
	}
	return raw
}
