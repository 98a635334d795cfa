package model

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// Well-known OpenAI-compatible endpoints. One provider implementation
// serves all of them; only the base URL and model name differ.
const (
	GroqBaseURL       = "https://api.groq.com/openai/v1"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// OpenAICompatConfig configures a chat-completions provider against OpenAI
// or any API-compatible service.
type OpenAICompatConfig struct {
	Name      string // provider name for logs/routes, e.g. "groq"
	APIKey    string
	BaseURL   string // empty means the OpenAI default
	Model     string
	MaxTokens int
}

// chatCompletions narrows the SDK surface so tests can substitute a fake.
type chatCompletions interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

type openAICompatProvider struct {
	completions chatCompletions
	name        string
	model       string
	maxTokens   int
}

// NewOpenAICompat constructs a provider over the chat-completions API.
func NewOpenAICompat(cfg OpenAICompatConfig) (Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%s: api key required", providerName(cfg.Name))
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)
	completions := client.Chat.Completions

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &openAICompatProvider{
		completions: &completions,
		name:        providerName(cfg.Name),
		model:       cfg.Model,
		maxTokens:   maxTokens,
	}, nil
}

// NewGroq constructs a Groq-backed provider.
func NewGroq(apiKey, modelName string) (Provider, error) {
	return NewOpenAICompat(OpenAICompatConfig{Name: "groq", APIKey: apiKey, BaseURL: GroqBaseURL, Model: modelName})
}

// NewOpenRouter constructs an OpenRouter-backed provider.
func NewOpenRouter(apiKey, modelName string) (Provider, error) {
	return NewOpenAICompat(OpenAICompatConfig{Name: "openrouter", APIKey: apiKey, BaseURL: OpenRouterBaseURL, Model: modelName})
}

func providerName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "openai"
	}
	return name
}

func (p *openAICompatProvider) Name() string { return p.name }

func (p *openAICompatProvider) Generate(ctx context.Context, req Request) (Response, error) {
	params := p.buildParams(req)

	completion, err := p.completions.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("%s: generate: %w", p.name, err)
	}
	if len(completion.Choices) == 0 {
		return Response{}, fmt.Errorf("%s: %w", p.name, ErrEmptyContent)
	}

	return Response{
		Content: completion.Choices[0].Message.Content,
		Model:   completion.Model,
		Usage: Usage{
			InputTokens:  int(completion.Usage.PromptTokens),
			OutputTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:  int(completion.Usage.TotalTokens),
		},
	}, nil
}

func (p *openAICompatProvider) buildParams(req Request) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, msg := range req.Messages {
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(msg.Role)) {
		case "assistant":
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}
	if len(messages) == 0 {
		messages = append(messages, openai.UserMessage("."))
	}

	modelName := p.model
	if override := strings.TrimSpace(req.Model); override != "" {
		modelName = override
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}

	params := openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(modelName),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.JSONMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	return params
}
