// Package prompt builds the stage-specific instruction templates sent to
// the model gateway. Templates are deliberately literal: the exact wording
// carries the output contract (sentinels, JSON shapes) the validator relies
// on.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cexll/promptarch/pkg/catalog"
	"github.com/cexll/promptarch/pkg/plan"
	"github.com/cexll/promptarch/pkg/selection"
)

// candidateContext is the minified tool view given to the selection stage.
// Only fields the scorer needs are included, to bound token cost.
type candidateContext struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	Type              string        `json:"type"`
	Specs             catalog.Specs `json:"specs"`
	UseCase           string        `json:"use_case"`
	IsReasoningEngine bool          `json:"is_reasoning_engine"`
}

func minifyCandidates(candidates []catalog.Tool) []candidateContext {
	out := make([]candidateContext, 0, len(candidates))
	for _, tool := range candidates {
		out = append(out, candidateContext{
			ID:                tool.ID,
			Name:              tool.Name,
			Type:              strings.Join(tool.Tags, ", "),
			Specs:             tool.Specs,
			UseCase:           tool.IdealUseCase,
			IsReasoningEngine: pathContains(tool.BestPracticePath, "reasoning_engine"),
		})
	}
	return out
}

func pathContains(path []string, segment string) bool {
	for _, s := range path {
		if s == segment {
			return true
		}
	}
	return false
}

// Selection builds the selection-stage instruction for the given request,
// constraints and candidate set.
func Selection(userRequest string, constraints selection.Constraints, candidates []catalog.Tool) string {
	budget := "Any Budget"
	if constraints.FreeOnly {
		budget = "Free Tier Only"
	}
	code := "Code Allowed"
	if constraints.NoCode {
		code = "No Code Tools"
	}

	context, _ := json.Marshal(minifyCandidates(candidates))

	return fmt.Sprintf(`ROLE: Chief Architect.
TASK: Select ONE best tool for the user.

USER REQUEST: %q
USER CONSTRAINTS: [%s, %s]

SAFETY PROTOCOL (STRICT):
- If the user request involves illegal acts, malware, violence, or self-harm, REFUSE to process. Return a JSON with "winner_id": %q and "reasoning_summary": "Safety violation.".

CANDIDATE TOOLS:
%s

ALGORITHM (Mental Scratchpad):
1. Intent Analysis:
   - "Plan", "Solve", "Math" -> Prioritize 'reasoning_level' (System 2).
   - "Chat", "Write", "Fast" -> Prioritize 'speed_level' (System 1).
   - "Build App" -> Prioritize 'coding_level' & 'ease_of_use'.

2. Scoring (0-100):
   - Base Score = (Fit to Intent * 50%%) + (Specs Match * 30%%) + (Ease * 20%%).
   - Overkill Penalty: Subtract 20 points if using a "PhD Reasoning" model for a simple greeting/summary.
   - Underkill Penalty: Subtract 30 points if using a "Fast Chat" model for complex architecture.

OUTPUT FORMAT (JSON Only):
{
  "reasoning_summary": "User wants X, which requires High Reasoning...",
  "candidates_scored": [
     { "tool_id": "...", "fit_score": 85, "penalty_reason": "Slight overkill" }
  ],
  "winner_id": "THE_ID_WITH_HIGHEST_SCORE",
  "auxiliary_tool_ids": ["ID_1", "ID_2"]
}

CRITICAL FOR AUXILIARY TOOLS:
- Select 1-3 complementary tools from the candidate list to form a "Squad".
- Do NOT include the 'winner_id' in this list.
- If the winner is a text LLM, suggest Image/Video/Audio tools if the user request implies them.
- If no other tools are needed, return an empty array [].`,
		userRequest, budget, code, selection.RefusalSentinel, context)
}

// Planning builds the planning-stage instruction for the confirmed tool.
// practices carries the flattened best-practice guidance for the tool's
// path; it may be empty.
func Planning(userRequest string, tool catalog.Tool, practices string) string {
	if practices == "" {
		practices = "(no specific guidance recorded for this tool)"
	}
	return fmt.Sprintf(`ROLE: You are the "Prompt Architect".
GOAL: Create a "Launch Plan" for the user's project.

USER REQUEST: %q
PRIMARY TOOL SELECTED: %s (Primary Function: %s)

CORE PHILOSOPHY:
- Launch, don't stall: if the project is huge, give them the first 3-5 critical steps to get started (Launch Pad).
- One Step = One Prompt: each step must be a concrete action with a copy-paste prompt.
- Tool Stack: while %s is the captain, you may recommend auxiliary tools for specific steps.

SAFETY PROTOCOL (STRICT):
- If the request involves illegal acts, malware, violence, or hate speech, REFUSE. Return JSON with "plan_title": %q.

BEST PRACTICES FOR %s:
%s

INSTRUCTIONS:
1. Apply the best practices above when writing every prompt.
2. Construct the "Tool Stack". If the user needs an output %s cannot produce, suggest an auxiliary tool for that specific step.
3. Create the steps. Simple project: detailed full walkthrough (is_complete=true). Complex project: "Launch Pad" covering setup, prototype and first output (is_complete=false).

CRITICAL: PROMPT QUALITY
The 'prompt' field must NOT be a short sentence. It must be a MEGA-PROMPT designed for an AI tool, following this structure:

"""
# PROJECT CONTEXT
[Deep dive into the user's goal, inferred needs, and style]

# TECH STACK & ROLE
[Specific tools involved, role definition for the AI]

# OBJECTIVE
[The specific goal of THIS step]

# REQUIREMENTS & CONSTRAINTS
- [Strict constraints and output format requirements]

# STEP INSTRUCTIONS
[Step-by-step guide for the AI to execute]

# META-INSTRUCTION
"After generating the output, ask me about [X] to guide the next step."
"""

OUTPUT JSON SCHEMA:
{
  "plan_title": "Project Name",
  "plan_description": "A mission statement and brief overview.",
  "tool_stack": [
     { "tool_name": "Name", "output_type": "Text/Image/Code", "use_case": "One sentence purpose", "involved_steps": [1, 2] }
  ],
  "is_complete": true,
  "other_information": "Any extra advice, warnings, or format guides.",
  "steps": [
    {
      "step_number": 1,
      "title": "Actionable Title",
      "tool_used": "Tool Name for this step",
      "instruction": "Input this prompt into the tool...",
      "prompt": "THE ACTUAL MEGA-PROMPT CONTENT (Markdown formatted)",
      "troubleshooting_tip": "If output is X, try adding Y..."
    }
  ]
}`,
		userRequest, tool.Name, tool.PrimaryFunction, tool.Name,
		plan.DenialSentinel, tool.Name, practices, tool.Name)
}

// Revision builds the structure-preserving revision instruction. The
// current plan travels inside the prompt so the generator modifies rather
// than regenerates.
func Revision(current plan.Plan, instruction string) string {
	encoded, _ := json.Marshal(current)
	return fmt.Sprintf(`ROLE: You are the "Prompt Architect" fixing a plan.
GOAL: Modify the existing Launch Plan based on the user's feedback.

CURRENT PLAN:
%s

USER FEEDBACK:
%q

INSTRUCTIONS:
1. Review the feedback.
2. Modify the 'steps', 'tool_stack', or 'plan_description' accordingly.
3. Keep the structure IDENTICAL to the original plan.
4. Do NOT regenerate the whole thing from scratch if only one step needs changing; copy unaffected fields byte for byte.

OUTPUT JSON ONLY.`, encoded, instruction)
}
