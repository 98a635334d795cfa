package catalog

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Practices is the prompt-construction guidance tree. Keys are path
// segments (mirroring Tool.BestPracticePath); leaves are guidance strings.
type Practices struct {
	tree map[string]any
}

// NewPractices wraps an already-parsed guidance tree.
func NewPractices(tree map[string]any) *Practices {
	return &Practices{tree: tree}
}

func loadPractices(raw []byte) (*Practices, error) {
	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("catalog: parse best practices: %w", err)
	}
	return &Practices{tree: tree}, nil
}

// Lookup walks the guidance tree along path and returns the flattened
// guidance text found under that node. An unknown path yields "".
func (p *Practices) Lookup(path []string) string {
	if p == nil || len(path) == 0 {
		return ""
	}
	var node any = p.tree
	for _, segment := range path {
		branch, ok := node.(map[string]any)
		if !ok {
			return ""
		}
		node, ok = branch[segment]
		if !ok {
			return ""
		}
	}
	var lines []string
	collectGuidance(node, &lines)
	return strings.Join(lines, "\n")
}

// collectGuidance gathers string leaves depth-first with sorted keys so the
// output is stable across runs.
func collectGuidance(node any, out *[]string) {
	switch v := node.(type) {
	case string:
		*out = append(*out, v)
	case []any:
		for _, item := range v {
			collectGuidance(item, out)
		}
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			collectGuidance(v[k], out)
		}
	}
}
