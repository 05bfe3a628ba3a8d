package impact

import (
	"encoding/json"
	"sort"
	"strings"
)

// PlainText renders labels as one per line in ascending order, the
// default output shape when dependency edges were not requested.
func PlainText(labels []string) string {
	sorted := append([]string(nil), labels...)
	sort.Strings(sorted)
	if len(sorted) == 0 {
		return ""
	}
	return strings.Join(sorted, "\n") + "\n"
}

// JSON renders a label->Distance map. encoding/json sorts map keys for
// string-keyed maps, so this is already in the required lexicographic
// order without any extra bookkeeping.
func JSON(distances map[string]Distance) ([]byte, error) {
	return json.MarshalIndent(distances, "", "  ")
}
