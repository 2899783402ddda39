package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsBriefing/internal/apperr"
	"NewsBriefing/internal/config"
)

func testConfig(endpoint string) config.TTSConfig {
	return config.TTSConfig{
		Endpoint:     endpoint,
		APIKey:       "tts-key",
		LanguageCode: "en-US",
		Voice:        "en-US-Standard-D",
		Gender:       "MALE",
		SpeakingRate: 1.0,
	}
}

func TestSynthesize(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tts-key", r.Header.Get("X-Goog-Api-Key"))
		assert.Empty(t, r.URL.Query().Get("key"))

		var req synthesizeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Good morning", req.Input.Text)
		assert.Equal(t, "en-US-Standard-D", req.Voice.Name)
		assert.Equal(t, "MALE", req.Voice.SSMLGender)
		assert.Equal(t, "MP3", req.AudioConfig.AudioEncoding)
		assert.Equal(t, 1.0, req.AudioConfig.SpeakingRate)

		_ = json.NewEncoder(w).Encode(synthesizeResponse{AudioContent: base64.StdEncoding.EncodeToString([]byte("ID3mp3"))})
	}))
	defer server.Close()

	audio, err := NewClient(testConfig(server.URL + "/v1/text:synthesize")).Synthesize(context.Background(), "Good morning")
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3mp3"), audio.Data)
	assert.Equal(t, "audio/mpeg", audio.ContentType)
}

func TestSynthesizeEmptyAudio(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	_, err := NewClient(testConfig(server.URL)).Synthesize(context.Background(), "hello")
	assert.Equal(t, apperr.CodeTTSFailed, apperr.CodeOf(err))
}

func TestSynthesizeHTTPError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusForbidden)
	}))
	defer server.Close()

	_, err := NewClient(testConfig(server.URL)).Synthesize(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeTTSFailed, apperr.CodeOf(err))
	assert.Contains(t, err.Error(), "403")
}

func TestSynthesizeMissingKey(t *testing.T) {
	t.Parallel()

	cfg := testConfig("http://unused")
	cfg.APIKey = ""
	_, err := NewClient(cfg).Synthesize(context.Background(), "hello")
	assert.Equal(t, apperr.CodeConfigMissing, apperr.CodeOf(err))
}

func TestSynthesizeTransportErrorHidesKey(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	endpoint := server.URL + "/v1/text:synthesize"
	server.Close()

	_, err := NewClient(testConfig(endpoint)).Synthesize(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeTTSFailed, apperr.CodeOf(err))
	assert.NotContains(t, err.Error(), "tts-key")
}
