package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plasprint_ai/config"
	"plasprint_ai/models"
)

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte("{}"))
	require.NoError(t, err)
	cfg.SiliconFlow.APIKey = "test-key"
	cfg.SiliconFlow.BaseURL = baseURL
	return cfg
}

func TestLLMService_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Qwen/Qwen2.5-7B-Instruct", body.Model)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "system", body.Messages[0].Role)
		assert.Equal(t, "qual o preço?", body.Messages[1].Content)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"m",
			"choices":[{"index":0,"message":{"role":"assistant","content":"  Custa $10.  "},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":5,"completion_tokens":3,"total_tokens":8}}`))
	}))
	defer server.Close()

	svc := NewLLMService(testConfig(t, server.URL+"/v1"))
	answer, err := svc.Complete(context.Background(), "qual o preço?")

	require.NoError(t, err)
	assert.Equal(t, "Custa $10.", answer)
}

func TestLLMService_ErrorIsWrapped(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer server.Close()

	_, err := NewLLMService(testConfig(t, server.URL+"/v1")).Complete(context.Background(), "x")

	assert.ErrorIs(t, err, models.ErrLLMUnavailable)
	assert.Equal(t, 1, calls)
}

func TestLLMService_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"m","choices":[]}`))
	}))
	defer server.Close()

	_, err := NewLLMService(testConfig(t, server.URL+"/v1")).Complete(context.Background(), "x")
	assert.ErrorIs(t, err, models.ErrLLMUnavailable)
}

func TestEmbeddingService_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)

		var body struct {
			Model string `json:"model"`
			Input string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "BAAI/bge-m3", body.Model)
		assert.Equal(t, "cabeçote", body.Input)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.5,-0.25,1]}],
			"model":"BAAI/bge-m3","usage":{"prompt_tokens":1,"total_tokens":1}}`))
	}))
	defer server.Close()

	svc := NewEmbeddingService(testConfig(t, server.URL+"/v1"))
	vec, err := svc.Embed(context.Background(), "cabeçote")

	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.25, 1}, vec)
	assert.Equal(t, "BAAI/bge-m3", svc.ModelName())
}

func TestEmbeddingService_EmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[],"model":"m","usage":{"prompt_tokens":0,"total_tokens":0}}`))
	}))
	defer server.Close()

	_, err := NewEmbeddingService(testConfig(t, server.URL+"/v1")).Embed(context.Background(), "x")
	assert.ErrorIs(t, err, models.ErrEmptyEmbedding)
}
