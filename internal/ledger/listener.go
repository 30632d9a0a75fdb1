package ledger

import (
	"context"
	"errors"

	"github.com/chatwire/chatwire/internal/config"
	"github.com/chatwire/chatwire/internal/events"
	ledgerdomain "github.com/chatwire/chatwire/internal/ledger/domain"
	usagedomain "github.com/chatwire/chatwire/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ListenerParams struct {
	fx.In

	Log       *zap.Logger
	Config    config.Config
	UsageSvc  usagedomain.Service
	LedgerSvc ledgerdomain.Service
}

// Listener appends the AI-cost entry for every delivered message,
// independent of the settlement listener. Settlement writes the
// authoritative billing type first and the message unique index keeps the
// first entry, so this append only fills the gap when settlement failed.
type Listener struct {
	log       *zap.Logger
	billing   config.BillingConfig
	usageSvc  usagedomain.Service
	ledgerSvc ledgerdomain.Service
}

func NewListener(p ListenerParams) *Listener {
	return &Listener{
		log:       p.Log.Named("ledger.listener"),
		billing:   p.Config.Billing,
		usageSvc:  p.UsageSvc,
		ledgerSvc: p.LedgerSvc,
	}
}

func (l *Listener) HandleMessageProcessed(ctx context.Context, payload events.MessageProcessedPayload) error {
	units := int64(1 + payload.ProductCount + payload.MediaCount)
	cost := l.billing.AIMessageCost +
		int64(payload.ProductCount)*l.billing.ProductMessageCost +
		int64(payload.MediaCount)*l.billing.MediaCost

	billingType := ledgerdomain.BillingTypeWalletDirect
	cycle, err := l.usageSvc.CurrentCycle(ctx, payload.SubscriptionID)
	if err != nil && !errors.Is(err, usagedomain.ErrCycleNotFound) {
		return err
	}
	if err == nil && cycle.MessagesRemaining >= units {
		billingType = ledgerdomain.BillingTypeSubscriptionQuota
	}

	return l.ledgerSvc.Append(ctx, ledgerdomain.AppendRequest{
		OrgID:            payload.OrgID,
		AccountID:        payload.AccountID,
		MessageID:        payload.MessageID,
		BillingType:      billingType,
		PromptTokens:     payload.PromptTokens,
		CompletionTokens: payload.CompletionTokens,
		ProviderCostUSD:  payload.ProviderCostUSD,
		LocalCost:        cost,
	})
}
