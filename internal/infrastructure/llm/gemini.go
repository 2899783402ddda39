package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"NewsBriefing/internal/apperr"
	"NewsBriefing/internal/config"
	"NewsBriefing/internal/ports"
)

// GeminiProvider implements ports.TextProvider with the Google Gen AI SDK.
type GeminiProvider struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
}

var _ ports.TextProvider = (*GeminiProvider)(nil)

// NewGeminiProvider creates a Gemini API client; baseURL overrides the endpoint when set.
func NewGeminiProvider(ctx context.Context, cfg config.ProviderConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, apperr.NewConfigMissing("GEMINI_API_KEY")
	}
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Endpoint != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeLLMFailed, "create gemini client", err)
	}
	return &GeminiProvider{
		client:      client,
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		maxTokens:   int32(cfg.MaxTokens),
	}, nil
}

// Name identifies the provider in logs and responses.
func (g *GeminiProvider) Name() string {
	return "gemini"
}

// Complete sends the user prompt with the system prompt as system instruction.
func (g *GeminiProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(userPrompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(g.temperature),
		MaxOutputTokens:   g.maxTokens,
	})
	if err != nil {
		return "", translateGeminiError(err)
	}
	return geminiText(resp)
}

func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", apperr.NewEmptyResponse("gemini")
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", apperr.NewSafetyBlock("gemini", errors.New(string(resp.PromptFeedback.BlockReason)))
	}

	text := resp.Text()
	if strings.TrimSpace(text) != "" {
		return text, nil
	}
	if len(resp.Candidates) > 0 {
		switch resp.Candidates[0].FinishReason {
		case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent, genai.FinishReasonBlocklist:
			return "", apperr.NewSafetyBlock("gemini", errors.New(string(resp.Candidates[0].FinishReason)))
		}
	}
	return "", apperr.NewEmptyResponse("gemini")
}

func translateGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED" {
			return apperr.NewQuotaExceeded("gemini quota exhausted", err)
		}
	}
	return TranslateError("gemini", err)
}
