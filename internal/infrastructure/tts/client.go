package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"NewsBriefing/internal/apperr"
	"NewsBriefing/internal/config"
	"NewsBriefing/internal/domain"
	"NewsBriefing/internal/ports"
)

// ContentTypeMP3 is the MIME type of synthesised audio.
const ContentTypeMP3 = "audio/mpeg"

const apiKeyHeader = "X-Goog-Api-Key"

// Client talks to the Google Cloud Text-to-Speech REST API.
type Client struct {
	endpoint string
	apiKey   string
	voice    voiceSelection
	rate     float64
	http     *http.Client
}

var _ ports.SpeechSynthesizer = (*Client)(nil)

type synthesizeRequest struct {
	Input       synthesisInput `json:"input"`
	Voice       voiceSelection `json:"voice"`
	AudioConfig audioConfig    `json:"audioConfig"`
}

type synthesisInput struct {
	Text string `json:"text"`
}

type voiceSelection struct {
	LanguageCode string `json:"languageCode"`
	Name         string `json:"name"`
	SSMLGender   string `json:"ssmlGender"`
}

type audioConfig struct {
	AudioEncoding string  `json:"audioEncoding"`
	SpeakingRate  float64 `json:"speakingRate"`
	Pitch         float64 `json:"pitch"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

// NewClient creates a reusable HTTP client.
func NewClient(cfg config.TTSConfig) *Client {
	rate := cfg.SpeakingRate
	if rate <= 0 {
		rate = 1.0
	}
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		voice: voiceSelection{
			LanguageCode: cfg.LanguageCode,
			Name:         cfg.Voice,
			SSMLGender:   cfg.Gender,
		},
		rate: rate,
		http: &http.Client{Timeout: 60 * time.Second},
	}
}

// Synthesize converts plain text into MP3 audio.
func (c *Client) Synthesize(ctx context.Context, text string) (domain.Audio, error) {
	if c.apiKey == "" {
		return domain.Audio{}, apperr.NewConfigMissing("GOOGLE_TTS_API_KEY")
	}
	if strings.TrimSpace(text) == "" {
		return domain.Audio{}, apperr.New(apperr.CodeTTSFailed, "no text to synthesize")
	}

	payload := synthesizeRequest{
		Input: synthesisInput{Text: text},
		Voice: c.voice,
		AudioConfig: audioConfig{
			AudioEncoding: "MP3",
			SpeakingRate:  c.rate,
			Pitch:         0,
		},
	}

	var resp synthesizeResponse
	if err := c.post(ctx, payload, &resp); err != nil {
		return domain.Audio{}, apperr.Wrap(apperr.CodeTTSFailed, "synthesize speech", err)
	}
	if resp.AudioContent == "" {
		return domain.Audio{}, apperr.New(apperr.CodeTTSFailed, "TTS returned no audio content")
	}

	data, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return domain.Audio{}, apperr.Wrap(apperr.CodeTTSFailed, "decode audio content", err)
	}
	return domain.Audio{Data: data, ContentType: ContentTypeMP3}, nil
}

func (c *Client) post(ctx context.Context, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
