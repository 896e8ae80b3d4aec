package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/evolve-cli/api/schemas"
	"github.com/xkilldash9x/evolve-cli/internal/config"
)

func geminiTestConfig(endpoint string) config.GeminiConfig {
	return config.GeminiConfig{
		Model:      "gemini-2.5-flash",
		APIKey:     "test-key",
		Endpoint:   endpoint,
		APITimeout: 5 * time.Second,
		MaxTokens:  256,
	}
}

func geminiSuccessBody(text string) []byte {
	body, _ := json.Marshal(map[string]any{
		"candidates": []map[string]any{
			{
				"content": map[string]any{
					"parts": []map[string]string{{"text": text}},
					"role":  "model",
				},
				"finishReason": "STOP",
			},
		},
		"usageMetadata": map[string]int{
			"promptTokenCount":     12,
			"candidatesTokenCount": 8,
			"totalTokenCount":      20,
		},
	})
	return body
}

func TestNewGeminiProvider_RequiresAPIKey(t *testing.T) {
	_, err := NewGeminiProvider(config.GeminiConfig{}, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestGeminiProvider_Generate(t *testing.T) {
	var gotPayload geminiRequestPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.Write(geminiSuccessBody("generated text"))
	}))
	defer server.Close()

	p, err := NewGeminiProvider(geminiTestConfig(server.URL), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer p.Close()

	out, err := p.Generate(context.Background(), "solve this task")
	require.NoError(t, err)
	assert.Equal(t, "generated text", out)

	require.Len(t, gotPayload.Contents, 1)
	require.Len(t, gotPayload.Contents[0].Parts, 1)
	assert.Equal(t, "solve this task", gotPayload.Contents[0].Parts[0].Text)
	assert.Equal(t, "user", gotPayload.Contents[0].Role)
	assert.Equal(t, 256, gotPayload.GenerationConfig.MaxOutputTokens)
}

func TestGeminiProvider_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(geminiSuccessBody("recovered"))
	}))
	defer server.Close()

	p, err := NewGeminiProvider(geminiTestConfig(server.URL), zaptest.NewLogger(t))
	require.NoError(t, err)

	out, err := p.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestGeminiProvider_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "invalid argument"}}`))
	}))
	defer server.Close()

	p, err := NewGeminiProvider(geminiTestConfig(server.URL), zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.False(t, schemas.IsRetryable(err), "a 400 must not be surfaced as retryable")
	assert.Equal(t, int32(1), calls.Load(), "a permanent error must not be retried")
}

func TestGeminiProvider_NoCandidatesIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates": []}`))
	}))
	defer server.Close()

	p, err := NewGeminiProvider(geminiTestConfig(server.URL), zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no candidates")
	assert.False(t, schemas.IsRetryable(err))
}

func TestGeminiProvider_SafetyBlockIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates": [{"content": {"parts": []}, "finishReason": "SAFETY"}]}`))
	}))
	defer server.Close()

	p, err := NewGeminiProvider(geminiTestConfig(server.URL), zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SAFETY")
	assert.False(t, schemas.IsRetryable(err))
}

func TestGeminiProvider_DefaultEndpointFromModel(t *testing.T) {
	p, err := NewGeminiProvider(config.GeminiConfig{
		Model:  "gemini-2.5-pro",
		APIKey: "k",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Contains(t, p.endpoint, "models/gemini-2.5-pro:generateContent")
}
