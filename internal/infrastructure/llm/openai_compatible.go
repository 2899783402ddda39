package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"NewsBriefing/internal/apperr"
	"NewsBriefing/internal/config"
	"NewsBriefing/internal/ports"
)

// ChatCompletionsClient implements ports.TextProvider against OpenAI-compatible APIs (Groq).
type ChatCompletionsClient struct {
	name        string
	endpoint    string
	model       string
	apiKey      string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

var _ ports.TextProvider = (*ChatCompletionsClient)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// NewChatCompletionsClient builds a client from configuration.
func NewChatCompletionsClient(name string, cfg config.ProviderConfig) *ChatCompletionsClient {
	return &ChatCompletionsClient{
		name:        name,
		endpoint:    cfg.Endpoint,
		model:       cfg.Model,
		apiKey:      cfg.APIKey,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Name identifies the provider in logs and responses.
func (c *ChatCompletionsClient) Name() string {
	return c.name
}

// Complete posts a system and user message and returns the first choice.
func (c *ChatCompletionsClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.apiKey == "" {
		return "", apperr.NewConfigMissing(strings.ToUpper(c.name) + "_API_KEY")
	}
	if c.endpoint == "" || c.model == "" {
		return "", apperr.NewConfigMissing(c.name + " endpoint or model")
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal %s payload: %w", c.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", TranslateError(c.name, fmt.Errorf("send request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		statusErr := fmt.Errorf("%s error %s: %s", c.name, resp.Status, strings.TrimSpace(string(payload)))
		if tagged := translateStatus(c.name, resp.StatusCode, statusErr); tagged != nil {
			return "", tagged
		}
		return "", TranslateError(c.name, statusErr)
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", apperr.Wrap(apperr.CodeLLMFailed, "decode "+c.name+" response", err)
	}
	if len(decoded.Choices) == 0 {
		return "", apperr.NewEmptyResponse(c.name)
	}

	choice := decoded.Choices[0]
	if choice.FinishReason == "content_filter" {
		return "", apperr.NewSafetyBlock(c.name, nil)
	}
	if strings.TrimSpace(choice.Message.Content) == "" {
		return "", apperr.NewEmptyResponse(c.name)
	}
	return choice.Message.Content, nil
}
