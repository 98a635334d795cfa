// Package selection implements the deterministic candidate filter and the
// hydration of untrusted generator selections back onto catalog tools.
package selection

import "github.com/cexll/promptarch/pkg/catalog"

// Constraints are caller-supplied hard filters, never inferred.
type Constraints struct {
	FreeOnly bool `json:"freeOnly"`
	NoCode   bool `json:"noCode"`
}

// codeFacingTags mark tools that require an IDE, terminal or API surface
// and are excluded when the caller asks for no-code tooling.
var codeFacingTags = []string{"IDE", "CLI", "API"}

// crossMap is the fixed capability cross-mapping: a request for the key
// capability also accepts tools carrying the mapped tag. The table is an
// explicit compatibility contract and must not be extended ad hoc.
var crossMap = map[Capability]string{
	CapCode: "Reasoning",
	CapText: "Agentic",
	CapData: "Research",
}

// Filter returns the subset of tools eligible for the request. It is a pure
// function: identical inputs always yield the same candidates, in catalog
// order. An empty result is a legitimate terminal outcome.
func Filter(tools []catalog.Tool, constraints Constraints, caps []Capability) []catalog.Tool {
	out := make([]catalog.Tool, 0, len(tools))
	for _, tool := range tools {
		if constraints.FreeOnly && !tool.HasFreeTier {
			continue
		}
		if constraints.NoCode && hasAnyTag(tool, codeFacingTags) {
			continue
		}
		if !capabilityMatch(tool, caps) {
			continue
		}
		out = append(out, tool)
	}
	return out
}

func hasAnyTag(tool catalog.Tool, tags []string) bool {
	for _, tag := range tags {
		if tool.HasTag(tag) {
			return true
		}
	}
	return false
}

func capabilityMatch(tool catalog.Tool, caps []Capability) bool {
	for _, cap := range caps {
		if tool.Category == string(cap) {
			return true
		}
		if mapped, ok := crossMap[cap]; ok && tool.HasTag(mapped) {
			return true
		}
	}
	return false
}
