// Package plan defines the LaunchPlan structure produced by the planning
// stage and its schema validation. Plans are accepted whole or not at all;
// there is no partial acceptance of a structurally invalid plan.
package plan

import (
	"fmt"

	"github.com/cexll/promptarch/pkg/jsonx"
)

// DenialSentinel is the reserved plan title a generator returns when it
// refuses a request on policy grounds.
const DenialSentinel = "REQUEST DENIED"

// StackItem describes one tool in the plan's tool stack and the steps it
// participates in.
type StackItem struct {
	ToolName      string `json:"tool_name"`
	OutputType    string `json:"output_type"`
	UseCase       string `json:"use_case"`
	InvolvedSteps []int  `json:"involved_steps"`
}

// Step is a single executable action with a copy-paste prompt.
type Step struct {
	StepNumber         int    `json:"step_number"`
	Title              string `json:"title"`
	ToolUsed           string `json:"tool_used"`
	Instruction        string `json:"instruction"`
	Prompt             string `json:"prompt"`
	TroubleshootingTip string `json:"troubleshooting_tip,omitempty"`
}

// Plan is a structured, multi-step execution plan. IsComplete=false marks a
// launch pad covering only the first critical steps of a larger project.
type Plan struct {
	Title            string      `json:"plan_title"`
	Description      string      `json:"plan_description"`
	ToolStack        []StackItem `json:"tool_stack"`
	IsComplete       bool        `json:"is_complete"`
	OtherInformation string      `json:"other_information,omitempty"`
	Steps            []Step      `json:"steps"`
}

// Denied reports whether the generator returned the denial sentinel.
func (p Plan) Denied() bool { return p.Title == DenialSentinel }

// Validate enforces the plan invariants: non-empty title, description and
// steps; step numbers dense and ascending from 1; every step actionable;
// tool_stack step references resolving to real steps.
func (p Plan) Validate() error {
	if p.Title == "" {
		return jsonx.Schemaf("plan_title", "missing or empty")
	}
	if p.Description == "" {
		return jsonx.Schemaf("plan_description", "missing or empty")
	}
	if len(p.Steps) == 0 {
		return jsonx.Schemaf("steps", "plan has no steps")
	}

	known := make(map[int]bool, len(p.Steps))
	for i, step := range p.Steps {
		field := fmt.Sprintf("steps[%d]", i)
		if step.StepNumber != i+1 {
			return jsonx.Schemaf(field+".step_number", "expected %d, got %d", i+1, step.StepNumber)
		}
		if step.Title == "" {
			return jsonx.Schemaf(field+".title", "missing or empty")
		}
		if step.ToolUsed == "" {
			return jsonx.Schemaf(field+".tool_used", "missing or empty")
		}
		if step.Instruction == "" {
			return jsonx.Schemaf(field+".instruction", "missing or empty")
		}
		if step.Prompt == "" {
			return jsonx.Schemaf(field+".prompt", "missing or empty")
		}
		known[step.StepNumber] = true
	}

	for i, item := range p.ToolStack {
		field := fmt.Sprintf("tool_stack[%d]", i)
		if item.ToolName == "" {
			return jsonx.Schemaf(field+".tool_name", "missing or empty")
		}
		for _, ref := range item.InvolvedSteps {
			if !known[ref] {
				return jsonx.Schemaf(field+".involved_steps", "references unknown step %d", ref)
			}
		}
	}
	return nil
}
