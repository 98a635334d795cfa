package selection

import (
	"fmt"

	"github.com/cexll/promptarch/pkg/catalog"
	"github.com/cexll/promptarch/pkg/jsonx"
)

// RefusalSentinel is the reserved winner id a generator returns when it
// declines a request on policy grounds.
const RefusalSentinel = "REFUSAL"

// maxAuxiliary caps the hydrated squad size.
const maxAuxiliary = 3

// ScoredCandidate is one entry of the generator's scoring scratchpad.
type ScoredCandidate struct {
	ToolID        string  `json:"tool_id"`
	FitScore      float64 `json:"fit_score"`
	PenaltyReason string  `json:"penalty_reason,omitempty"`
}

// Result is the raw selection produced by a generator. It is untrusted
// until validated and hydrated against the candidate set.
type Result struct {
	WinnerID         string            `json:"winner_id"`
	ReasoningSummary string            `json:"reasoning_summary"`
	Scored           []ScoredCandidate `json:"candidates_scored"`
	AuxiliaryIDs     []string          `json:"auxiliary_tool_ids"`
}

// Refused reports whether the generator returned the safety sentinel.
func (r Result) Refused() bool { return r.WinnerID == RefusalSentinel }

// Validate checks the structural shape of a decoded selection.
func (r Result) Validate() error {
	if r.WinnerID == "" {
		return jsonx.Schemaf("winner_id", "missing or empty")
	}
	for i, scored := range r.Scored {
		if scored.ToolID == "" {
			return jsonx.Schemaf(fmt.Sprintf("candidates_scored[%d].tool_id", i), "missing or empty")
		}
	}
	return nil
}

// Hydrated binds a validated selection back onto real catalog tools.
type Hydrated struct {
	Winner    catalog.Tool
	Auxiliary []catalog.Tool
	Result    Result

	// HallucinatedID holds the original winner id when it failed to
	// resolve and a deterministic fallback was substituted.
	HallucinatedID string
}

// Hydrate resolves the winner and auxiliary ids against the candidate set.
//
// A hallucinated winner is recovered, not failed: the highest-scoring
// resolvable entry from the scratchpad wins, falling back to the first
// candidate when no scored entry resolves. Auxiliary ids that do not
// resolve, duplicate each other, or name the winner are silently dropped.
func Hydrate(res Result, candidates []catalog.Tool) (Hydrated, error) {
	if len(candidates) == 0 {
		return Hydrated{}, fmt.Errorf("selection: hydrate called with no candidates")
	}
	if res.Refused() {
		return Hydrated{}, fmt.Errorf("selection: refusal sentinel must short-circuit before hydration")
	}

	byID := make(map[string]catalog.Tool, len(candidates))
	for _, tool := range candidates {
		byID[tool.ID] = tool
	}

	out := Hydrated{Result: res}
	if winner, ok := byID[res.WinnerID]; ok {
		out.Winner = winner
	} else {
		out.HallucinatedID = res.WinnerID
		out.Winner = fallbackWinner(res, candidates, byID)
		out.Result.WinnerID = out.Winner.ID
	}

	seen := map[string]bool{out.Winner.ID: true}
	for _, id := range res.AuxiliaryIDs {
		if len(out.Auxiliary) == maxAuxiliary {
			break
		}
		tool, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out.Auxiliary = append(out.Auxiliary, tool)
	}
	return out, nil
}

// fallbackWinner picks the replacement for an unresolvable winner id: the
// highest-scoring scratchpad entry that names a real candidate, otherwise
// candidates[0]. Ties keep the earlier entry.
func fallbackWinner(res Result, candidates []catalog.Tool, byID map[string]catalog.Tool) catalog.Tool {
	best := catalog.Tool{}
	bestScore := 0.0
	found := false
	for _, scored := range res.Scored {
		tool, ok := byID[scored.ToolID]
		if !ok {
			continue
		}
		if !found || scored.FitScore > bestScore {
			best = tool
			bestScore = scored.FitScore
			found = true
		}
	}
	if found {
		return best
	}
	return candidates[0]
}
