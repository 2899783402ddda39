package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"NewsBriefing/internal/apperr"
	"NewsBriefing/internal/config"
	"NewsBriefing/internal/ports"
)

// AnthropicProvider implements ports.TextProvider with the Messages API.
type AnthropicProvider struct {
	client      anthropic.Client
	model       string
	temperature float64
	maxTokens   int64
}

var _ ports.TextProvider = (*AnthropicProvider)(nil)

// NewAnthropicProvider builds a Claude client; extra options are appended after the key.
func NewAnthropicProvider(cfg config.ProviderConfig, opts ...option.RequestOption) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, apperr.NewConfigMissing("ANTHROPIC_API_KEY")
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.Endpoint))
	}
	reqOpts = append(reqOpts, opts...)

	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicProvider{
		client:      anthropic.NewClient(reqOpts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
	}, nil
}

// Name identifies the provider in logs and responses.
func (a *AnthropicProvider) Name() string {
	return "anthropic"
}

// Complete sends a single user turn with the system prompt.
func (a *AnthropicProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   a.maxTokens,
		Temperature: anthropic.Float(a.temperature),
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", translateAnthropicError(err)
	}

	if string(msg.StopReason) == "refusal" {
		return "", apperr.NewSafetyBlock("anthropic", nil)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", apperr.NewEmptyResponse("anthropic")
	}
	return sb.String(), nil
}

func translateAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		if tagged := translateStatus("anthropic", apiErr.StatusCode, err); tagged != nil {
			return tagged
		}
	}
	return TranslateError("anthropic", err)
}
