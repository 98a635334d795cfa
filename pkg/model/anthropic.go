package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

// AnthropicConfig wires a plain anthropic-sdk-go client into the Provider
// interface.
type AnthropicConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int
	HTTPClient *http.Client
}

// anthropicMessages narrows the SDK surface so tests can substitute a fake.
type anthropicMessages interface {
	New(ctx context.Context, params anthropicsdk.MessageNewParams, opts ...option.RequestOption) (*anthropicsdk.Message, error)
}

type anthropicProvider struct {
	msgs      anthropicMessages
	model     anthropicsdk.Model
	maxTokens int
}

// NewAnthropic constructs an Anthropic-backed provider.
func NewAnthropic(cfg AnthropicConfig) (Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("anthropic: api key required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	client := anthropicsdk.NewClient(opts...)
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &anthropicProvider{
		msgs:      &client.Messages,
		model:     anthropicsdk.Model(cfg.Model),
		maxTokens: maxTokens,
	}, nil
}

func (p *anthropicProvider) Name() string { return "anthropic" }

func (p *anthropicProvider) Generate(ctx context.Context, req Request) (Response, error) {
	params := p.buildParams(req)

	msg, err := p.msgs.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("anthropic: generate: %w", err)
	}

	return Response{
		Content: collectText(msg),
		Model:   string(msg.Model),
		Usage: Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
			TotalTokens:  int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}, nil
}

func (p *anthropicProvider) buildParams(req Request) anthropicsdk.MessageNewParams {
	system := strings.TrimSpace(req.System)
	if req.JSONMode {
		// The messages API has no structured-output switch; the contract
		// rides on the instruction and the validator recovers the rest.
		system = strings.TrimSpace(system + "\n\nRespond with a single valid JSON object and nothing else.")
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}

	messages := make([]anthropicsdk.MessageParam, 0, len(req.Messages))
	for _, msg := range req.Messages {
		content := msg.Content
		if strings.TrimSpace(content) == "" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(msg.Role)) {
		case "assistant":
			messages = append(messages, anthropicsdk.MessageParam{
				Role:    anthropicsdk.MessageParamRoleAssistant,
				Content: []anthropicsdk.ContentBlockParamUnion{anthropicsdk.NewTextBlock(content)},
			})
		default:
			messages = append(messages, anthropicsdk.MessageParam{
				Role:    anthropicsdk.MessageParamRoleUser,
				Content: []anthropicsdk.ContentBlockParamUnion{anthropicsdk.NewTextBlock(content)},
			})
		}
	}
	if len(messages) == 0 {
		messages = append(messages, anthropicsdk.MessageParam{
			Role:    anthropicsdk.MessageParamRoleUser,
			Content: []anthropicsdk.ContentBlockParamUnion{anthropicsdk.NewTextBlock(".")},
		})
	}

	model := p.model
	if override := strings.TrimSpace(req.Model); override != "" {
		model = anthropicsdk.Model(override)
	}

	params := anthropicsdk.MessageNewParams{
		Model:     model,
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: system}}
	}
	if req.Temperature != nil {
		params.Temperature = param.NewOpt(*req.Temperature)
	}
	return params
}

func collectText(msg *anthropicsdk.Message) string {
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}
