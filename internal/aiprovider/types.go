// Package aiprovider is the boundary to OpenAI-compatible chat models.
package aiprovider

import (
	"context"
	"errors"
)

// Turn is one message in the model's conversation window.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Request is a fully assembled prompt: system instructions plus the
// ordered conversation window ending with the inbound message.
type Request struct {
	Model string
	Turns []Turn
}

// Completion is the provider's reply with token accounting attached.
type Completion struct {
	Text             string
	Model            string
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
	CostUSD          float64
}

// Invoker invokes a chat model. Implementations honor the context
// deadline and return the sentinel errors below for classifiable
// failures.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (Completion, error)
}

var (
	ErrTimeout       = errors.New("provider_timeout")
	ErrAuth          = errors.New("provider_auth_failed")
	ErrProvider      = errors.New("provider_error")
	ErrEmptyResponse = errors.New("provider_empty_response")
	ErrNoModel       = errors.New("no_model_configured")
)
