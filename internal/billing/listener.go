package billing

import (
	"context"
	"errors"

	"github.com/chatwire/chatwire/internal/config"
	"github.com/chatwire/chatwire/internal/events"
	ledgerdomain "github.com/chatwire/chatwire/internal/ledger/domain"
	"github.com/chatwire/chatwire/internal/observability"
	usagedomain "github.com/chatwire/chatwire/internal/usage/domain"
	walletdomain "github.com/chatwire/chatwire/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Config    config.Config
	UsageSvc  usagedomain.Service
	WalletSvc walletdomain.Service
	LedgerSvc ledgerdomain.Service
	Metrics   *observability.Metrics `optional:"true"`
}

// Listener settles each processed message: quota first, wallet overage for
// the remainder. Messages are settled after delivery, so a failed debit is
// logged and absorbed rather than retracting a response the counterpart
// already received.
type Listener struct {
	log       *zap.Logger
	billing   config.BillingConfig
	usageSvc  usagedomain.Service
	walletSvc walletdomain.Service
	ledgerSvc ledgerdomain.Service
	metrics   *observability.Metrics
}

func NewListener(p Params) *Listener {
	return &Listener{
		log:       p.Log.Named("billing.listener"),
		billing:   p.Config.Billing,
		usageSvc:  p.UsageSvc,
		walletSvc: p.WalletSvc,
		ledgerSvc: p.LedgerSvc,
		metrics:   p.Metrics,
	}
}

func (l *Listener) HandleMessageProcessed(ctx context.Context, payload events.MessageProcessedPayload) error {
	units := MessageUnits(payload.ProductCount, payload.MediaCount)

	cycle, err := l.usageSvc.CurrentCycle(ctx, payload.SubscriptionID)
	if err != nil {
		return err
	}

	full := SplitUnits(units, payload.ProductCount, payload.MediaCount, l.billing)

	// Fast path: the whole message fits in quota. The conditional update
	// inside IncrementUsage is the authoritative capacity check.
	err = l.usageSvc.IncrementUsage(ctx, cycle.ID, payload.AccountID, units, int64(payload.MediaCount), full.FullCost)
	if err == nil {
		return l.appendLedger(ctx, payload, ledgerdomain.BillingTypeSubscriptionQuota, full.FullCost)
	}
	if !errors.Is(err, usagedomain.ErrQuotaExhausted) {
		return err
	}

	return l.settleOverage(ctx, payload, cycle, units)
}

// settleOverage consumes whatever quota is left, then debits the wallet
// for the units that did not fit.
func (l *Listener) settleOverage(ctx context.Context, payload events.MessageProcessedPayload, cycle usagedomain.SubscriptionCycle, units int64) error {
	if !l.billing.OverageEnabled {
		l.log.Warn("quota exhausted and overage disabled, message not billed",
			zap.String("org_id", payload.OrgID.String()),
			zap.String("message_id", payload.MessageID.String()),
		)
		if l.metrics != nil {
			l.metrics.IncBillingFailure()
		}
		return nil
	}

	// Re-read for a fresh remaining count; the fast path may have raced
	// with other settlements on the same cycle.
	fresh, err := l.usageSvc.CurrentCycle(ctx, payload.SubscriptionID)
	if err != nil {
		if errors.Is(err, usagedomain.ErrCycleNotFound) {
			fresh = cycle
			fresh.MessagesRemaining = 0
		} else {
			return err
		}
	}

	s := SplitUnits(fresh.MessagesRemaining, payload.ProductCount, payload.MediaCount, l.billing)

	if s.OverageUnits == 0 {
		// A cycle reset between the fast path and here restored quota.
		if err := l.usageSvc.IncrementUsage(ctx, fresh.ID, payload.AccountID, units, int64(payload.MediaCount), s.FullCost); err != nil {
			return err
		}
		return l.appendLedger(ctx, payload, ledgerdomain.BillingTypeSubscriptionQuota, s.FullCost)
	}

	if s.QuotaUnits > 0 {
		// Media is a delivery counter, not a quota one, so the full count
		// lands on the cycle regardless of how the units were split.
		err := l.usageSvc.IncrementUsage(ctx, fresh.ID, payload.AccountID, s.QuotaUnits, int64(payload.MediaCount), s.FullCost-s.OverageCost)
		if errors.Is(err, usagedomain.ErrQuotaExhausted) {
			// Lost the race for the tail of the quota. Everything goes
			// through the wallet.
			s = SplitUnits(0, payload.ProductCount, payload.MediaCount, l.billing)
		} else if err != nil {
			return err
		}
	}

	if err := l.walletSvc.Debit(ctx, payload.OrgID, s.OverageCost); err != nil {
		if errors.Is(err, walletdomain.ErrInsufficientFunds) || errors.Is(err, walletdomain.ErrWalletNotFound) {
			l.log.Warn("overage debit refused, message not billed",
				zap.String("org_id", payload.OrgID.String()),
				zap.String("message_id", payload.MessageID.String()),
				zap.Int64("overage_cost", s.OverageCost),
				zap.Error(err),
			)
			if l.metrics != nil {
				l.metrics.IncBillingFailure()
			}
			return nil
		}
		return err
	}

	if err := l.usageSvc.RecordOverage(ctx, fresh.ID, payload.AccountID, s.OverageUnits, s.OverageCost); err != nil {
		l.log.Error("overage recorded in wallet but not in usage counters",
			zap.String("message_id", payload.MessageID.String()),
			zap.Error(err),
		)
	}

	return l.appendLedger(ctx, payload, ledgerdomain.BillingTypeWalletDirect, s.FullCost)
}

func (l *Listener) appendLedger(ctx context.Context, payload events.MessageProcessedPayload, billingType ledgerdomain.BillingType, cost int64) error {
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
