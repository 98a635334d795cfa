// Package catalog holds the static tool knowledge base. The catalog is
// parsed once at process start and never mutated afterwards, so a Store can
// be shared across requests without locking.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed data/tools.json
var toolsJSON []byte

//go:embed data/best_practices.json
var practicesJSON []byte

// Categories enumerates every valid tool category.
var Categories = []string{"Text", "Code", "Image", "Video", "Audio", "3D", "Data"}

// Specs carries the 1-10 numeric ratings attached to every tool.
type Specs struct {
	Reasoning int `json:"reasoning_level"`
	Coding    int `json:"coding_level"`
	Speed     int `json:"speed_level"`
	EaseOfUse int `json:"ease_of_use"`
}

// Tool is a single catalog entry. Instances are value types handed out by
// the Store; callers may copy them freely.
type Tool struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	Provider             string   `json:"provider"`
	WebsiteURL           string   `json:"website_url"`
	Category             string   `json:"category"`
	Tags                 []string `json:"tags"`
	Description          string   `json:"description"`
	PricingSummary       string   `json:"pricing_summary"`
	PrimaryFunction      string   `json:"primary_function"`
	RequiresSubscription bool     `json:"requires_subscription"`
	HasFreeTier          bool     `json:"has_free_tier"`
	BestPracticePath     []string `json:"best_practice_path"`
	Specs                Specs    `json:"specs"`
	IdealUseCase         string   `json:"ideal_use_case"`
}

// HasTag reports whether the tool carries the given tag.
func (t Tool) HasTag(tag string) bool {
	for _, candidate := range t.Tags {
		if candidate == tag {
			return true
		}
	}
	return false
}

// Store is the immutable, process-wide tool catalog.
type Store struct {
	tools     []Tool
	byID      map[string]Tool
	practices *Practices
}

// Load parses the embedded catalog. It is intended to run exactly once
// during startup; any validation failure aborts the process.
func Load() (*Store, error) {
	return load(toolsJSON, practicesJSON)
}

func load(tools, practices []byte) (*Store, error) {
	var parsed []Tool
	if err := json.Unmarshal(tools, &parsed); err != nil {
		return nil, fmt.Errorf("catalog: parse tools: %w", err)
	}
	pr, err := loadPractices(practices)
	if err != nil {
		return nil, err
	}
	return NewStore(parsed, pr)
}

// NewStore builds a catalog from already-parsed entries. Load is the
// embedded-data path; NewStore serves callers supplying their own catalog.
func NewStore(tools []Tool, practices *Practices) (*Store, error) {
	if len(tools) == 0 {
		return nil, fmt.Errorf("catalog: no tools defined")
	}
	byID := make(map[string]Tool, len(tools))
	for _, tool := range tools {
		if err := validateTool(tool); err != nil {
			return nil, err
		}
		if _, dup := byID[tool.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate tool id %q", tool.ID)
		}
		byID[tool.ID] = tool
	}
	return &Store{tools: tools, byID: byID, practices: practices}, nil
}

func validateTool(tool Tool) error {
	if tool.ID == "" || tool.Name == "" {
		return fmt.Errorf("catalog: tool with empty id or name")
	}
	if !validCategory(tool.Category) {
		return fmt.Errorf("catalog: tool %q has unknown category %q", tool.ID, tool.Category)
	}
	for _, rating := range []int{tool.Specs.Reasoning, tool.Specs.Coding, tool.Specs.Speed, tool.Specs.EaseOfUse} {
		if rating < 1 || rating > 10 {
			return fmt.Errorf("catalog: tool %q has spec rating %d outside 1-10", tool.ID, rating)
		}
	}
	return nil
}

func validCategory(category string) bool {
	for _, known := range Categories {
		if category == known {
			return true
		}
	}
	return false
}

// All returns every tool. The returned slice is a copy so callers cannot
// disturb the shared catalog.
func (s *Store) All() []Tool {
	out := make([]Tool, len(s.tools))
	copy(out, s.tools)
	return out
}

// ByID looks a tool up by its stable identifier.
func (s *Store) ByID(id string) (Tool, bool) {
	tool, ok := s.byID[id]
	return tool, ok
}

// Len reports the number of catalog entries.
func (s *Store) Len() int {
	return len(s.tools)
}

// Practices exposes the best-practices reference loaded alongside the tools.
func (s *Store) Practices() *Practices {
	return s.practices
}
