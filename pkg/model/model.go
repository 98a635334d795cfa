// Package model provides the provider-agnostic gateway to external
// language-model services. Concrete providers adapt one SDK each; the
// Gateway walks an ordered provider list per pipeline stage with hard
// per-attempt timeouts and surfaces a single aggregated failure when the
// list is exhausted.
package model

import (
	"context"
	"errors"
	"fmt"
)

// Message is a single conversational turn sent to a provider.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// Request is a provider-agnostic generation request.
type Request struct {
	System      string
	Messages    []Message
	Temperature *float64 // nil means "use the stage default"
	MaxTokens   int
	JSONMode    bool   // ask for structured JSON output where supported
	Model       string // optional per-request model override
}

// Usage reports token accounting when the provider supplies it.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Response is the provider-agnostic generation result.
type Response struct {
	Content string
	Model   string
	Usage   Usage
}

// Provider is one backing language-model service. Adding a provider to the
// system means implementing this interface and appending it to a stage
// route; callers never change.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (Response, error)
}

// ErrEmptyContent marks a technically successful provider call that
// returned no usable text. It is treated like any other attempt failure.
var ErrEmptyContent = errors.New("model: provider returned empty content")

// ExhaustedError aggregates a full fallback walk that produced no usable
// response. Last carries the final underlying cause for diagnostics.
type ExhaustedError struct {
	Stage    Stage
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("model: all %d providers failed for stage %s: %v", e.Attempts, e.Stage, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }
