package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	conversationdomain "github.com/chatwire/chatwire/internal/conversation/domain"
	"github.com/chatwire/chatwire/internal/events"
	"github.com/chatwire/chatwire/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Outbox *events.Outbox
}

type Store struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	outbox *events.Outbox
}

func NewStore(p Params) conversationdomain.Store {
	return &Store{
		db:     p.DB,
		log:    p.Log.Named("conversation.store"),
		genID:  p.GenID,
		outbox: p.Outbox,
	}
}

func (s *Store) FindOrCreateConversation(ctx context.Context, orgID, accountID snowflake.ID, counterpart string) (conversationdomain.Conversation, error) {
	counterpart = strings.TrimSpace(counterpart)
	if counterpart == "" {
		return conversationdomain.Conversation{}, conversationdomain.ErrInvalidCounterpart
	}
	if accountID == 0 {
		return conversationdomain.Conversation{}, conversationdomain.ErrInvalidConversation
	}

	var conv conversationdomain.Conversation
	err := s.db.WithContext(ctx).
		Where("account_id = ? AND counterpart_address = ?", accountID, counterpart).
		First(&conv).Error
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return conversationdomain.Conversation{}, err
	}

	now := time.Now().UTC()
	conv = conversationdomain.Conversation{
		ID:                 s.genID.Generate(),
		OrgID:              orgID,
		AccountID:          accountID,
		CounterpartAddress: counterpart,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.db.WithContext(ctx).Create(&conv).Error; err != nil {
		// Lost the creation race: another message on the same thread
		// created it first.
		if db.IsDuplicateKeyErr(err) {
			retryErr := s.db.WithContext(ctx).
				Where("account_id = ? AND counterpart_address = ?", accountID, counterpart).
				First(&conv).Error
			return conv, retryErr
		}
		return conversationdomain.Conversation{}, err
	}
	return conv, nil
}

// InboundSeen reports whether an inbound message with this provider id
// was already stored, so webhook retries do not reprocess it.
func (s *Store) InboundSeen(ctx context.Context, externalID string) (bool, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return false, nil
	}
	var count int64
	err := s.db.WithContext(ctx).
		Model(&conversationdomain.Message{}).
		Where("external_id = ? AND direction = ?", externalID, conversationdomain.DirectionInbound).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) AppendMessage(ctx context.Context, msg *conversationdomain.Message) error {
	if msg == nil || msg.ConversationID == 0 {
		return conversationdomain.ErrInvalidMessage
	}
	if msg.ID == 0 {
		msg.ID = s.genID.Generate()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return touchConversation(tx, msg.ConversationID, msg.Direction, msg.CreatedAt)
	})
}

// RecentHistory returns the newest messages in arrival order, oldest first,
// so the context window reads top-down.
func (s *Store) RecentHistory(ctx context.Context, conversationID snowflake.ID, limit int) ([]conversationdomain.Message, error) {
	if conversationID == 0 {
		return nil, conversationdomain.ErrInvalidConversation
	}
	if limit <= 0 {
		limit = 20
	}
	var recent []conversationdomain.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&recent).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}
	return recent, nil
}

func (s *Store) StampProcessed(ctx context.Context, messageID snowflake.ID) error {
	if messageID == 0 {
		return conversationdomain.ErrInvalidMessage
	}
	now := time.Now().UTC()
	result := s.db.WithContext(ctx).
		Model(&conversationdomain.Message{}).
		Where("id = ? AND processed_at IS NULL", messageID).
		Update("processed_at", now)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return conversationdomain.ErrMessageNotFound
	}
	return nil
}

// AppendExchange stores the inbound message, the AI reply, any product-card
// messages, and the processed-message outbox event in one transaction.
// Billing only ever triggers off durably stored responses.
func (s *Store) AppendExchange(ctx context.Context, input conversationdomain.ExchangeInput) (conversationdomain.ExchangeResult, error) {
	if input.ConversationID == 0 {
		return conversationdomain.ExchangeResult{}, conversationdomain.ErrInvalidConversation
	}

	now := time.Now().UTC()
	var result conversationdomain.ExchangeResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inbound := conversationdomain.Message{
			ID:             s.genID.Generate(),
			ConversationID: input.ConversationID,
			Direction:      conversationdomain.DirectionInbound,
			Kind:           conversationdomain.KindPlain,
			Content:        input.InboundContent,
			ProcessedAt:    &now,
			CreatedAt:      now,
		}
		if key := strings.TrimSpace(input.InboundExternalID); key != "" {
			inbound.ExternalID = &key
		}
		if err := tx.Create(&inbound).Error; err != nil {
			return err
		}

		var model *string
		if m := strings.TrimSpace(input.Model); m != "" {
			model = &m
		}
		outbound := conversationdomain.Message{
			ID:             s.genID.Generate(),
			ConversationID: input.ConversationID,
			Direction:      conversationdomain.DirectionOutbound,
			Kind:           conversationdomain.KindPlain,
			Content:        input.AIResponse,
			IsAIGenerated:  true,
			Model:          model,
			CreatedAt:      now.Add(time.Microsecond),
		}
		if err := tx.Create(&outbound).Error; err != nil {
			return err
		}

		mediaCount := 0
		for i, card := range input.Products {
			productMsg := conversationdomain.Message{
				ID:             s.genID.Generate(),
				ConversationID: input.ConversationID,
				Direction:      conversationdomain.DirectionOutbound,
				Kind:           conversationdomain.KindProductCard,
				Content:        card.Text,
				IsAIGenerated:  true,
				MediaRefs:      datatypes.NewJSONSlice(card.MediaRefs),
				CreatedAt:      now.Add(time.Duration(i+2) * time.Microsecond),
			}
			if err := tx.Create(&productMsg).Error; err != nil {
				return err
			}
			mediaCount += len(card.MediaRefs)
		}

		if err := touchConversation(tx, input.ConversationID, conversationdomain.DirectionOutbound, now); err != nil {
			return err
		}

		if input.FallbackUsed {
			result = conversationdomain.ExchangeResult{
				OutboundMessageID: outbound.ID,
				MediaCount:        mediaCount,
			}
			return nil
		}

		payload := events.MessageProcessedPayload{
			AccountID:        input.AccountID,
			OrgID:            input.OrgID,
			SubscriptionID:   input.SubscriptionID,
			ConversationID:   input.ConversationID,
			MessageID:        outbound.ID,
			ProductCount:     len(input.Products),
			MediaCount:       mediaCount,
			PromptTokens:     input.PromptTokens,
			CompletionTokens: input.CompletionTokens,
			ProviderCostUSD:  input.ProviderCostUSD,
			Simulated:        input.Simulated,
		}
		payloadMap, err := payload.ToMap()
		if err != nil {
			return err
		}
		if err := s.outbox.Publish(ctx, tx, events.Event{
			OrgID:     input.OrgID,
			Type:      events.EventMessageProcessed,
			Payload:   payloadMap,
			DedupeKey: input.InboundExternalID,
		}); err != nil {
			return err
		}

		result = conversationdomain.ExchangeResult{
			OutboundMessageID: outbound.ID,
			MediaCount:        mediaCount,
		}
		return nil
	})
	if err != nil {
		return conversationdomain.ExchangeResult{}, err
	}
	return result, nil
}

func touchConversation(tx *gorm.DB, conversationID snowflake.ID, direction conversationdomain.MessageDirection, at time.Time) error {
	updates := map[string]any{
		"last_message_at": at,
		"updated_at":      at,
	}
	if direction == conversationdomain.DirectionInbound {
		updates["unread_count"] = gorm.Expr("unread_count + 1")
	}
	return tx.Model(&conversationdomain.Conversation{}).
		Where("id = ?", conversationID).
		Updates(updates).Error
}
