package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	productdomain "github.com/chatwire/chatwire/internal/product/domain"
)

// ExchangeInput is one fully-processed message pair plus the metadata the
// billing event needs. Stored atomically together with the outbox event.
type ExchangeInput struct {
	OrgID             snowflake.ID
	AccountID         snowflake.ID
	SubscriptionID    snowflake.ID
	ConversationID    snowflake.ID
	InboundExternalID string
	InboundContent    string
	AIResponse        string
	Model             string
	Products          []productdomain.ProductCard
	PromptTokens      int
	CompletionTokens  int
	ProviderCostUSD   float64
	Simulated         bool
	// FallbackUsed marks a canned reply sent in place of a model answer.
	// Fallbacks are stored for history but never produce a billing event.
	FallbackUsed bool
}

// ExchangeResult reports the stored outbound message.
type ExchangeResult struct {
	OutboundMessageID snowflake.ID
	MediaCount        int
}

type Store interface {
	FindOrCreateConversation(ctx context.Context, orgID, accountID snowflake.ID, counterpart string) (Conversation, error)
	InboundSeen(ctx context.Context, externalID string) (bool, error)
	AppendMessage(ctx context.Context, msg *Message) error
	RecentHistory(ctx context.Context, conversationID snowflake.ID, limit int) ([]Message, error)
	StampProcessed(ctx context.Context, messageID snowflake.ID) error
	AppendExchange(ctx context.Context, input ExchangeInput) (ExchangeResult, error)
}

var (
	ErrInvalidConversation = errors.New("invalid_conversation")
	ErrInvalidCounterpart  = errors.New("invalid_counterpart")
	ErrInvalidMessage      = errors.New("invalid_message")
	ErrMessageNotFound     = errors.New("message_not_found")
)
