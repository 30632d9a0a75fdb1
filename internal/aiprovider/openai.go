package aiprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/chatwire/chatwire/internal/config"
	"go.uber.org/zap"
)

const chatCompletionEndpoint = "/chat/completions"

// OpenAIClient speaks the OpenAI chat-completions wire format, which the
// compatible providers (OpenRouter, vLLM, local gateways) also accept.
type OpenAIClient struct {
	client              *http.Client
	log                 *zap.Logger
	baseURL             string
	apiKey              string
	promptCostPer1K     float64
	completionCostPer1K float64
}

func NewOpenAIClient(cfg config.AIConfig, log *zap.Logger) *OpenAIClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &OpenAIClient{
		client:              &http.Client{Timeout: timeout},
		log:                 log.Named("aiprovider.openai"),
		baseURL:             baseURL,
		apiKey:              cfg.APIKey,
		promptCostPer1K:     cfg.PromptCostPer1K,
		completionCostPer1K: cfg.CompletionCostPer1K,
	}
}

type chatCompletionRequest struct {
	Model       string  `json:"model"`
	Messages    []Turn  `json:"messages"`
	Temperature float64 `json:"temperature"`
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      Turn   `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *OpenAIClient) Invoke(ctx context.Context, req Request) (Completion, error) {
	if req.Model == "" {
		return Completion{}, ErrNoModel
	}

	body, err := json.Marshal(chatCompletionRequest{
		Model:       req.Model,
		Messages:    req.Turns,
		Temperature: 0.7,
	})
	if err != nil {
		return Completion{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatCompletionEndpoint, bytes.NewReader(body))
	if err != nil {
		return Completion{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil || isTimeout(err) {
			return Completion{}, ErrTimeout
		}
		return Completion{}, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Completion{}, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil && resp.StatusCode == http.StatusOK {
		return Completion{}, fmt.Errorf("%w: undecodable response", ErrProvider)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Completion{}, ErrAuth
	case resp.StatusCode != http.StatusOK:
		if parsed.Error.Message != "" {
			return Completion{}, fmt.Errorf("%w: %s", ErrProvider, parsed.Error.Message)
		}
		return Completion{}, fmt.Errorf("%w: http %d", ErrProvider, resp.StatusCode)
	}

	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return Completion{}, ErrEmptyResponse
	}

	choice := parsed.Choices[0]
	model := parsed.Model
	if model == "" {
		model = req.Model
	}
	return Completion{
		Text:             choice.Message.Content,
		Model:            model,
		FinishReason:     choice.FinishReason,
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
		CostUSD:          c.cost(parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens),
	}, nil
}

func (c *OpenAIClient) cost(promptTokens, completionTokens int) float64 {
	return float64(promptTokens)/1000*c.promptCostPer1K +
		float64(completionTokens)/1000*c.completionCostPer1K
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
