package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/chatwire/chatwire/internal/observability"
	walletdomain "github.com/chatwire/chatwire/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Metrics *observability.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	metrics *observability.Metrics
}

func NewService(p Params) walletdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("wallet.service"),
		genID:   p.GenID,
		metrics: p.Metrics,
	}
}

func (s *Service) Get(ctx context.Context, orgID snowflake.ID) (walletdomain.Wallet, error) {
	if orgID == 0 {
		return walletdomain.Wallet{}, walletdomain.ErrInvalidOwner
	}
	var wallet walletdomain.Wallet
	err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return walletdomain.Wallet{}, walletdomain.ErrWalletNotFound
		}
		return walletdomain.Wallet{}, err
	}
	return wallet, nil
}

func (s *Service) Balance(ctx context.Context, orgID snowflake.ID) (int64, error) {
	wallet, err := s.Get(ctx, orgID)
	if err != nil {
		return 0, err
	}
	return wallet.Balance, nil
}

func (s *Service) Credit(ctx context.Context, orgID snowflake.ID, amount int64) error {
	if orgID == 0 {
		return walletdomain.ErrInvalidOwner
	}
	if amount <= 0 {
		return walletdomain.ErrInvalidAmount
	}
	result := s.db.WithContext(ctx).
		Model(&walletdomain.Wallet{}).
		Where("org_id = ?", orgID).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance + ?", amount),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return walletdomain.ErrWalletNotFound
	}
	return nil
}

// Debit decrements the balance in one conditional update. The affordability
// check runs against the balance at debit time, not a value cached earlier;
// concurrent debits for the same owner serialize on the row.
func (s *Service) Debit(ctx context.Context, orgID snowflake.ID, amount int64) error {
	if orgID == 0 {
		return walletdomain.ErrInvalidOwner
	}
	if amount <= 0 {
		return walletdomain.ErrInvalidAmount
	}

	result := s.db.WithContext(ctx).
		Model(&walletdomain.Wallet{}).
		Where("org_id = ? AND balance >= ?", orgID, amount).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance - ?", amount),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Distinguish a missing wallet from a refused debit.
		if _, err := s.Get(ctx, orgID); err != nil {
			return err
		}
		return walletdomain.ErrInsufficientFunds
	}

	// Informational only; the debit already committed.
	s.log.Info("wallet debited",
		zap.String("org_id", orgID.String()),
		zap.Int64("amount", amount),
	)
	if s.metrics != nil {
		s.metrics.IncWalletDebit()
	}
	return nil
}
