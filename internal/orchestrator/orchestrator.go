// Package orchestrator runs the inbound message pipeline: gating,
// capacity, model invocation and product resolution.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/chatwire/chatwire/internal/aiprovider"
	chatdomain "github.com/chatwire/chatwire/internal/chataccount/domain"
	"github.com/chatwire/chatwire/internal/config"
	convdomain "github.com/chatwire/chatwire/internal/conversation/domain"
	"github.com/chatwire/chatwire/internal/observability"
	productdomain "github.com/chatwire/chatwire/internal/product/domain"
	usagedomain "github.com/chatwire/chatwire/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Skip reasons reported when the pipeline decides not to answer.
const (
	SkipAIDisabled      = "ai_disabled"
	SkipNoModel         = "no_model"
	SkipIgnoreWord      = "ignore_word"
	SkipNoTrigger       = "no_trigger_word"
	SkipHumanActive     = "human_active"
	SkipCapacityRefused = "capacity_refused"
)

// Inbound is one message entering the pipeline, already attached to its
// account and conversation.
type Inbound struct {
	Account      chatdomain.ChatAccount
	Conversation convdomain.Conversation
	Content      string
	ExternalID   string
}

// Outcome reports what the pipeline did with an inbound message.
// Processed is true whenever the pipeline ran to completion, including
// provider failures; only a capacity refusal leaves it false.
type Outcome struct {
	Processed        bool
	HasAIResponse    bool
	AIResponse       string
	Products         []productdomain.ProductCard
	Model            string
	PromptTokens     int
	CompletionTokens int
	ProviderCostUSD  float64
	FallbackUsed     bool
	SkipReason       string
	Error            string
}

type Params struct {
	fx.In

	Log        *zap.Logger
	Config     config.Config
	AccountSvc chatdomain.Service
	ProductSvc productdomain.Service
	UsageSvc   usagedomain.Service
	Store      convdomain.Store
	Invoker    aiprovider.Invoker
	Builder    *aiprovider.ContextBuilder
	Metrics    *observability.Metrics `optional:"true"`
}

type Orchestrator struct {
	log        *zap.Logger
	cfg        config.Config
	accountSvc chatdomain.Service
	productSvc productdomain.Service
	usageSvc   usagedomain.Service
	store      convdomain.Store
	invoker    aiprovider.Invoker
	builder    *aiprovider.ContextBuilder
	metrics    *observability.Metrics
}

func New(p Params) *Orchestrator {
	return &Orchestrator{
		log:        p.Log.Named("orchestrator"),
		cfg:        p.Config,
		accountSvc: p.AccountSvc,
		productSvc: p.ProductSvc,
		usageSvc:   p.UsageSvc,
		store:      p.Store,
		invoker:    p.Invoker,
		builder:    p.Builder,
		metrics:    p.Metrics,
	}
}

// Process runs the full pipeline for a live inbound message.
func (o *Orchestrator) Process(ctx context.Context, in Inbound) (Outcome, error) {
	return o.run(ctx, in, false)
}

// Simulate runs the identical pipeline without the response delay. The
// caller tags the stored exchange so billing listeners drop it.
func (o *Orchestrator) Simulate(ctx context.Context, in Inbound) (Outcome, error) {
	return o.run(ctx, in, true)
}

func (o *Orchestrator) run(ctx context.Context, in Inbound, simulated bool) (Outcome, error) {
	aiCfg, err := o.accountSvc.GetConfig(ctx, in.Account.ID)
	if err != nil {
		if errors.Is(err, chatdomain.ErrConfigNotFound) {
			return o.skip(SkipAIDisabled), nil
		}
		return Outcome{}, err
	}
	if !aiCfg.Enabled {
		return o.skip(SkipAIDisabled), nil
	}
	model := aiCfg.Model
	if model == "" {
		model = o.cfg.AI.DefaultModel
	}
	if model == "" {
		return o.skip(SkipNoModel), nil
	}

	if reason := gateByWords(in.Content, aiCfg.TriggerWords, aiCfg.IgnoreWords); reason != "" {
		return o.skip(reason), nil
	}

	history, err := o.store.RecentHistory(ctx, in.Conversation.ID, o.cfg.AI.ContextWindowLength)
	if err != nil {
		return Outcome{}, err
	}

	if aiCfg.StopOnHumanReply && humanRepliedLast(history) {
		return o.skip(SkipHumanActive), nil
	}

	// Capacity is decided before the provider is invoked, estimating one
	// unit; the settlement path re-checks with the real unit count.
	decision, err := o.usageSvc.CanProcessMessage(ctx, in.Account.OrgID, in.Account.SubscriptionID, 1)
	if err != nil && !errors.Is(err, usagedomain.ErrCycleNotFound) {
		return Outcome{}, err
	}
	if err != nil || !decision.Allowed {
		o.log.Info("message refused for capacity",
			zap.String("account_id", in.Account.ID.String()),
			zap.String("org_id", in.Account.OrgID.String()),
		)
		if o.metrics != nil {
			o.metrics.IncMessageProcessed(SkipCapacityRefused)
		}
		return withFallback(Outcome{SkipReason: SkipCapacityRefused}, aiCfg), nil
	}

	if !simulated && aiCfg.ResponseDelaySeconds > 0 {
		if err := o.delay(ctx, time.Duration(aiCfg.ResponseDelaySeconds)*time.Second); err != nil {
			return Outcome{}, err
		}
	}

	catalog, err := o.productSvc.LinkedActive(ctx, in.Account.ID)
	if err != nil {
		return Outcome{}, err
	}

	turns := o.builder.Build(aiCfg, catalog, history, in.Content)
	completion, err := o.invoker.Invoke(ctx, aiprovider.Request{Model: model, Turns: turns})
	if err != nil {
		return o.providerFailed(aiCfg, err), nil
	}

	reply := aiprovider.Parse(completion.Text)
	cards, err := o.resolveProducts(ctx, in.Account.ID, reply.ProductIDs)
	if err != nil {
		return Outcome{}, err
	}

	if o.metrics != nil {
		o.metrics.IncMessageProcessed("answered")
	}
	return Outcome{
		Processed:        true,
		HasAIResponse:    true,
		AIResponse:       reply.Text,
		Products:         cards,
		Model:            completion.Model,
		PromptTokens:     completion.PromptTokens,
		CompletionTokens: completion.CompletionTokens,
		ProviderCostUSD:  completion.CostUSD,
	}, nil
}

func (o *Orchestrator) skip(reason string) Outcome {
	if o.metrics != nil {
		o.metrics.IncMessageProcessed(reason)
	}
	return Outcome{Processed: true, SkipReason: reason}
}

// providerFailed marks the message processed without a response so it is
// never retried against the provider. The configured fallback text, when
// present, is sent in place of the model's reply.
func (o *Orchestrator) providerFailed(aiCfg chatdomain.AIConfig, err error) Outcome {
	kind := "provider"
	switch {
	case errors.Is(err, aiprovider.ErrTimeout):
		kind = "timeout"
	case errors.Is(err, aiprovider.ErrAuth):
		kind = "auth"
	case errors.Is(err, aiprovider.ErrEmptyResponse):
		kind = "empty"
	}
	o.log.Warn("provider invocation failed", zap.String("kind", kind), zap.Error(err))
	if o.metrics != nil {
		o.metrics.IncAIFailure(kind)
		o.metrics.IncMessageProcessed("provider_failed")
	}

	return withFallback(Outcome{Processed: true, Error: err.Error()}, aiCfg)
}

// withFallback attaches the account's configured fallback text to a
// skipped or failed outcome. A fallback reply carries no provider cost
// and is never billed; with no fallback configured the counterpart sees
// silence.
func withFallback(out Outcome, aiCfg chatdomain.AIConfig) Outcome {
	if fallback := strings.TrimSpace(aiCfg.FallbackText); fallback != "" {
		out.HasAIResponse = true
		out.AIResponse = fallback
		out.FallbackUsed = true
	}
	return out
}

func (o *Orchestrator) resolveProducts(ctx context.Context, accountID snowflake.ID, rawIDs []string) ([]productdomain.ProductCard, error) {
	if len(rawIDs) == 0 {
		return nil, nil
	}
	ids := make([]snowflake.ID, 0, len(rawIDs))
	for _, raw := range rawIDs {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			// Hallucinated ids are dropped, not fatal.
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return o.productSvc.Resolve(ctx, accountID, ids)
}

func (o *Orchestrator) delay(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// gateByWords applies the ignore list first, then requires a trigger word
// when the list is non-empty. Matching is case-insensitive on the raw
// inbound text.
func gateByWords(content string, triggers, ignores []string) string {
	lowered := strings.ToLower(content)
	for _, word := range ignores {
		if word != "" && strings.Contains(lowered, strings.ToLower(word)) {
			return SkipIgnoreWord
		}
	}
	if len(triggers) == 0 {
		return ""
	}
	for _, word := range triggers {
		if word != "" && strings.Contains(lowered, strings.ToLower(word)) {
			return ""
		}
	}
	return SkipNoTrigger
}

// humanRepliedLast reports whether the newest outbound message in the
// window was written by a human operator.
func humanRepliedLast(history []convdomain.Message) bool {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Direction != convdomain.DirectionOutbound {
			continue
		}
		return !history[i].IsAIGenerated
	}
	return false
}
