package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	convdomain "github.com/chatwire/chatwire/internal/conversation/domain"
	"github.com/chatwire/chatwire/internal/orchestrator"
	productdomain "github.com/chatwire/chatwire/internal/product/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type inboundMessageRequest struct {
	MessageID   string `json:"messageId" binding:"required"`
	FromAddress string `json:"fromAddress" binding:"required"`
	ToAddress   string `json:"toAddress" binding:"required"`
	Body        string `json:"body"`
	Timestamp   int64  `json:"timestamp"`
	IsGroup     bool   `json:"isGroup"`
}

type processedResponse struct {
	Processed     bool                        `json:"processed"`
	HasAIResponse bool                        `json:"hasAiResponse"`
	AIResponse    string                      `json:"aiResponse,omitempty"`
	Products      []productdomain.ProductCard `json:"products,omitempty"`
	SkipReason    string                      `json:"skipReason,omitempty"`
	Duplicate     bool                        `json:"duplicate,omitempty"`
	Error         string                      `json:"error,omitempty"`
}

func (s *Server) HandleInboundMessage(c *gin.Context) {
	s.handleMessage(c, false)
}

// SimulateMessage runs the identical pipeline but tags the stored
// exchange so no quota, wallet or ledger state moves.
func (s *Server) SimulateMessage(c *gin.Context) {
	s.handleMessage(c, true)
}

func (s *Server) handleMessage(c *gin.Context, simulated bool) {
	var req inboundMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	// Group chats are acknowledged and never answered.
	if req.IsGroup {
		c.JSON(http.StatusOK, processedResponse{SkipReason: "group_chat"})
		return
	}

	ctx := c.Request.Context()

	if allowed, err := s.limiter.Allow(ctx, req.ToAddress); err != nil {
		s.log.Warn("rate limiter unavailable, allowing request", zap.Error(err))
	} else if !allowed {
		AbortWithError(c, ErrRateLimited)
		return
	}

	if !simulated {
		seen, err := s.store.InboundSeen(ctx, req.MessageID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if seen {
			c.JSON(http.StatusOK, processedResponse{Processed: true, Duplicate: true})
			return
		}
	}

	account, err := s.accountSvc.GetByAddress(ctx, req.ToAddress)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	conv, err := s.store.FindOrCreateConversation(ctx, account.OrgID, account.ID, req.FromAddress)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	in := orchestrator.Inbound{
		Account:      account,
		Conversation: conv,
		Content:      req.Body,
		ExternalID:   req.MessageID,
	}

	var outcome orchestrator.Outcome
	if simulated {
		outcome, err = s.pipeline.Simulate(ctx, in)
	} else {
		outcome, err = s.pipeline.Process(ctx, in)
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if outcome.HasAIResponse {
		_, err = s.store.AppendExchange(ctx, convdomain.ExchangeInput{
			OrgID:             account.OrgID,
			AccountID:         account.ID,
			SubscriptionID:    account.SubscriptionID,
			ConversationID:    conv.ID,
			InboundExternalID: req.MessageID,
			InboundContent:    req.Body,
			AIResponse:        outcome.AIResponse,
			Model:             outcome.Model,
			Products:          outcome.Products,
			PromptTokens:      outcome.PromptTokens,
			CompletionTokens:  outcome.CompletionTokens,
			ProviderCostUSD:   outcome.ProviderCostUSD,
			Simulated:         simulated,
			FallbackUsed:      outcome.FallbackUsed,
		})
		if err != nil {
			AbortWithError(c, err)
			return
		}
	} else if !simulated {
		if err := s.appendInboundOnly(c, conv.ID, req); err != nil {
			AbortWithError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, processedResponse{
		Processed:     outcome.Processed,
		HasAIResponse: outcome.HasAIResponse,
		AIResponse:    outcome.AIResponse,
		Products:      outcome.Products,
		SkipReason:    outcome.SkipReason,
		Error:         outcome.Error,
	})
}

// appendInboundOnly stores the inbound message when the pipeline produced
// no reply, so the thread history stays complete.
func (s *Server) appendInboundOnly(c *gin.Context, conversationID snowflake.ID, req inboundMessageRequest) error {
	now := time.Now().UTC()
	msg := convdomain.Message{
		ConversationID: conversationID,
		Direction:      convdomain.DirectionInbound,
		Kind:           convdomain.KindPlain,
		Content:        req.Body,
		ProcessedAt:    &now,
	}
	if key := strings.TrimSpace(req.MessageID); key != "" {
		msg.ExternalID = &key
	}
	return s.store.AppendMessage(c.Request.Context(), &msg)
}
