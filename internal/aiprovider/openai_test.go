package aiprovider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chatwire/chatwire/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewOpenAIClient(config.AIConfig{
		BaseURL:             server.URL,
		APIKey:              "test-key",
		TimeoutSeconds:      5,
		PromptCostPer1K:     0.001,
		CompletionCostPer1K: 0.002,
	}, zap.NewNop())
}

func chatRequest() Request {
	return Request{
		Model: "gpt-4o-mini",
		Turns: []Turn{
			{Role: RoleSystem, Content: "You sell shoes."},
			{Role: RoleUser, Content: "hi"},
		},
	}
}

func TestInvoke(t *testing.T) {
	var gotAuth string
	var gotBody chatCompletionRequest

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-4o-mini-2026",
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "hello there"}, "finish_reason": "stop"},
			},
			"usage": map[string]int{"prompt_tokens": 1000, "completion_tokens": 500},
		})
	})

	completion, err := client.Invoke(context.Background(), chatRequest())
	assert.NoError(t, err)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "gpt-4o-mini", gotBody.Model)
	assert.Len(t, gotBody.Messages, 2)
	assert.Equal(t, "hello there", completion.Text)
	assert.Equal(t, "gpt-4o-mini-2026", completion.Model)
	assert.Equal(t, "stop", completion.FinishReason)
	assert.Equal(t, 1000, completion.PromptTokens)
	assert.Equal(t, 500, completion.CompletionTokens)
	assert.InDelta(t, 0.002, completion.CostUSD, 1e-9)
}

func TestInvokeRequiresModel(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request should not reach the provider")
	})

	_, err := client.Invoke(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNoModel)
}

func TestInvokeAuthFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.Invoke(context.Background(), chatRequest())
	assert.ErrorIs(t, err, ErrAuth)
}

func TestInvokeProviderError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "rate limit exceeded", "type": "rate_limit"},
		})
	})

	_, err := client.Invoke(context.Background(), chatRequest())
	assert.ErrorIs(t, err, ErrProvider)
	assert.Contains(t, err.Error(), "rate limit exceeded")
}

func TestInvokeEmptyResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "   "}},
			},
		})
	})

	_, err := client.Invoke(context.Background(), chatRequest())
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestInvokeNoChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	_, err := client.Invoke(context.Background(), chatRequest())
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestInvokeCanceledContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Invoke(ctx, chatRequest())
	assert.ErrorIs(t, err, ErrTimeout)
}
