package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/chatwire/chatwire/internal/config"
	ledgerdomain "github.com/chatwire/chatwire/internal/ledger/domain"
	"github.com/chatwire/chatwire/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Config config.Config
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	currency string
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("ledger.service"),
		genID:    p.GenID,
		currency: p.Config.Billing.Currency,
	}
}

func (s *Service) Append(ctx context.Context, req ledgerdomain.AppendRequest) error {
	if req.OrgID == 0 {
		return ledgerdomain.ErrInvalidOrg
	}
	if req.MessageID == 0 {
		return ledgerdomain.ErrInvalidMessage
	}
	switch req.BillingType {
	case ledgerdomain.BillingTypeSubscriptionQuota, ledgerdomain.BillingTypeWalletDirect:
	default:
		return ledgerdomain.ErrInvalidBillingType
	}

	entry := ledgerdomain.UsageLedgerEntry{
		ID:               s.genID.Generate(),
		OrgID:            req.OrgID,
		AccountID:        req.AccountID,
		MessageID:        req.MessageID,
		BillingType:      req.BillingType,
		PromptTokens:     req.PromptTokens,
		CompletionTokens: req.CompletionTokens,
		TotalTokens:      req.PromptTokens + req.CompletionTokens,
		ProviderCostUSD:  req.ProviderCostUSD,
		LocalCost:        req.LocalCost,
		Currency:         s.currency,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		// The message unique index makes replays harmless.
		if db.IsDuplicateKeyErr(err) {
			return nil
		}
		return err
	}
	return nil
}

func (s *Service) ListByAccount(ctx context.Context, accountID snowflake.ID, limit int) ([]ledgerdomain.UsageLedgerEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var entries []ledgerdomain.UsageLedgerEntry
	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
