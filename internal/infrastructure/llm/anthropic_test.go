package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsBriefing/internal/apperr"
	"NewsBriefing/internal/config"
)

func newAnthropicTestProvider(t *testing.T, handler http.HandlerFunc) *AnthropicProvider {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := NewAnthropicProvider(config.ProviderConfig{
		Endpoint:  server.URL,
		Model:     "claude-3-5-haiku-latest",
		APIKey:    "test-key",
		MaxTokens: 256,
	}, option.WithMaxRetries(0))
	require.NoError(t, err)
	return p
}

func TestAnthropicComplete(t *testing.T) {
	t.Parallel()

	p := newAnthropicTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 256, body["max_tokens"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-latest",` +
			`"content":[{"type":"text","text":"digest text"}],"stop_reason":"end_turn",` +
			`"usage":{"input_tokens":10,"output_tokens":3}}`))
	})

	text, err := p.Complete(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, "digest text", text)
}

func TestAnthropicRateLimit(t *testing.T) {
	t.Parallel()

	p := newAnthropicTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	})

	_, err := p.Complete(context.Background(), "system", "user")
	require.Error(t, err)
	assert.True(t, apperr.IsQuotaOrRateLimit(err))
}

func TestAnthropicRefusal(t *testing.T) {
	t.Parallel()

	p := newAnthropicTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_2","type":"message","role":"assistant","model":"m",` +
			`"content":[],"stop_reason":"refusal","usage":{"input_tokens":1,"output_tokens":0}}`))
	})

	_, err := p.Complete(context.Background(), "system", "user")
	assert.True(t, apperr.IsSafetyBlock(err))
}

func TestNewAnthropicProviderRequiresKey(t *testing.T) {
	t.Parallel()

	_, err := NewAnthropicProvider(config.ProviderConfig{})
	assert.Equal(t, apperr.CodeConfigMissing, apperr.CodeOf(err))
}
