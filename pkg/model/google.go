package model

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GoogleConfig configures a Gemini-backed provider.
type GoogleConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
}

type googleProvider struct {
	client    *genai.Client
	model     string
	maxTokens int
}

// NewGoogle constructs a Gemini provider. The context is used only for
// client initialization.
func NewGoogle(ctx context.Context, cfg GoogleConfig) (Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("google: api key required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("google: create client: %w", err)
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &googleProvider{client: client, model: cfg.Model, maxTokens: maxTokens}, nil
}

func (p *googleProvider) Name() string { return "google" }

func (p *googleProvider) Generate(ctx context.Context, req Request) (Response, error) {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, msg := range req.Messages {
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		role := genai.RoleUser
		if strings.ToLower(strings.TrimSpace(msg.Role)) == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{genai.NewPartFromText(msg.Content)},
		})
	}
	if len(contents) == 0 {
		contents = append(contents, genai.NewContentFromText(".", genai.RoleUser))
	}

	config := &genai.GenerateContentConfig{}
	if strings.TrimSpace(req.System) != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(req.System)},
		}
	}
	if req.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.JSONMode {
		config.ResponseMIMEType = "application/json"
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}
	config.MaxOutputTokens = int32(maxTokens)

	modelName := p.model
	if override := strings.TrimSpace(req.Model); override != "" {
		modelName = override
	}

	result, err := p.client.Models.GenerateContent(ctx, modelName, contents, config)
	if err != nil {
		return Response{}, fmt.Errorf("google: generate: %w", err)
	}

	resp := Response{Content: result.Text(), Model: modelName}
	if result.UsageMetadata != nil {
		resp.Usage = Usage{
			InputTokens:  int(result.UsageMetadata.PromptTokenCount),
			OutputTokens: int(result.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int(result.UsageMetadata.TotalTokenCount),
		}
	}
	return resp, nil
}
