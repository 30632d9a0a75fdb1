package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/chatwire/chatwire/internal/config"
	"github.com/chatwire/chatwire/internal/observability"
	usagedomain "github.com/chatwire/chatwire/internal/usage/domain"
	walletdomain "github.com/chatwire/chatwire/internal/wallet/domain"
	"github.com/chatwire/chatwire/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Config    config.Config
	WalletSvc walletdomain.Service
	Metrics   *observability.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	billing   config.BillingConfig
	walletSvc walletdomain.Service
	metrics   *observability.Metrics
}

func NewService(p Params) usagedomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("usage.service"),
		genID:     p.GenID,
		billing:   p.Config.Billing,
		walletSvc: p.WalletSvc,
		metrics:   p.Metrics,
	}
}

func (s *Service) CurrentCycle(ctx context.Context, subscriptionID snowflake.ID) (usagedomain.SubscriptionCycle, error) {
	if subscriptionID == 0 {
		return usagedomain.SubscriptionCycle{}, usagedomain.ErrInvalidSub
	}
	var cycle usagedomain.SubscriptionCycle
	err := s.db.WithContext(ctx).
		Where("subscription_id = ? AND status = ?", subscriptionID, usagedomain.CycleStatusOpen).
		Order("period_start DESC").
		First(&cycle).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return usagedomain.SubscriptionCycle{}, usagedomain.ErrCycleNotFound
		}
		return usagedomain.SubscriptionCycle{}, err
	}
	return cycle, nil
}

func (s *Service) OpenCycle(ctx context.Context, orgID, subscriptionID snowflake.ID, start, end time.Time, packageLimit int64) (usagedomain.SubscriptionCycle, error) {
	if subscriptionID == 0 || orgID == 0 {
		return usagedomain.SubscriptionCycle{}, usagedomain.ErrInvalidSub
	}
	if !end.After(start) {
		return usagedomain.SubscriptionCycle{}, usagedomain.ErrInvalidPeriod
	}
	if packageLimit < 0 {
		return usagedomain.SubscriptionCycle{}, usagedomain.ErrInvalidCapacity
	}

	now := time.Now().UTC()
	cycle := usagedomain.SubscriptionCycle{
		ID:                s.genID.Generate(),
		OrgID:             orgID,
		SubscriptionID:    subscriptionID,
		PeriodStart:       start.UTC(),
		PeriodEnd:         end.UTC(),
		Status:            usagedomain.CycleStatusOpen,
		PackageLimit:      packageLimit,
		MessagesRemaining: packageLimit,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.db.WithContext(ctx).Create(&cycle).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return usagedomain.SubscriptionCycle{}, usagedomain.ErrCycleOverlap
		}
		return usagedomain.SubscriptionCycle{}, err
	}
	return cycle, nil
}

// CanProcessMessage decides capacity before the provider is ever invoked:
// either quota covers the units, or the wallet can afford the overage
// equivalent at the configured per-message rate without dropping below the
// minimum-balance floor. Read-only; the authoritative re-check happens at
// debit time.
func (s *Service) CanProcessMessage(ctx context.Context, orgID, subscriptionID snowflake.ID, units int64) (usagedomain.CapacityDecision, error) {
	if units <= 0 {
		return usagedomain.CapacityDecision{}, usagedomain.ErrInvalidUnits
	}
	cycle, err := s.CurrentCycle(ctx, subscriptionID)
	if err != nil {
		return usagedomain.CapacityDecision{}, err
	}

	if cycle.MessagesRemaining >= units {
		return usagedomain.CapacityDecision{Allowed: true, QuotaUnits: units}, nil
	}

	quotaUnits := cycle.MessagesRemaining
	if quotaUnits < 0 {
		quotaUnits = 0
	}
	overageUnits := units - quotaUnits

	if !s.billing.OverageEnabled {
		return usagedomain.CapacityDecision{QuotaUnits: quotaUnits, OverageUnits: overageUnits}, nil
	}

	balance, err := s.walletSvc.Balance(ctx, orgID)
	if err != nil {
		if errors.Is(err, walletdomain.ErrWalletNotFound) {
			return usagedomain.CapacityDecision{QuotaUnits: quotaUnits, OverageUnits: overageUnits}, nil
		}
		return usagedomain.CapacityDecision{}, err
	}

	overageCost := overageUnits * s.billing.AIMessageCost
	affordable := balance-overageCost >= s.billing.OverageMinimumWalletBalance
	return usagedomain.CapacityDecision{
		Allowed:      affordable,
		QuotaUnits:   quotaUnits,
		OverageUnits: overageUnits,
	}, nil
}

// IncrementUsage consumes quota with a single conditional update; the guard
// on messages_remaining makes concurrent spends on the same cycle safe
// without read-modify-write.
func (s *Service) IncrementUsage(ctx context.Context, cycleID, accountID snowflake.ID, units, media, estimatedCost int64) error {
	if cycleID == 0 {
		return usagedomain.ErrInvalidCycle
	}
	if units < 0 || media < 0 || estimatedCost < 0 || (units == 0 && media == 0) {
		return usagedomain.ErrInvalidUnits
	}

	now := time.Now().UTC()
	result := s.db.WithContext(ctx).
		Model(&usagedomain.SubscriptionCycle{}).
		Where("id = ? AND status = ? AND messages_remaining >= ?", cycleID, usagedomain.CycleStatusOpen, units).
		Updates(map[string]any{
			"messages_used":      gorm.Expr("messages_used + ?", units),
			"messages_remaining": gorm.Expr("messages_remaining - ?", units),
			"media_used":         gorm.Expr("media_used + ?", media),
			"estimated_cost":     gorm.Expr("estimated_cost + ?", estimatedCost),
			"last_activity_at":   now,
			"updated_at":         now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return usagedomain.ErrQuotaExhausted
	}

	if accountID != 0 {
		if err := s.upsertAccountUsage(ctx, cycleID, accountID, units, media, 0, 0); err != nil {
			return err
		}
	}

	s.maybeAlert(ctx, cycleID, units)
	return nil
}

// RecordOverage books pay-as-you-go spend on the account counters only;
// quota and overage are never conflated.
func (s *Service) RecordOverage(ctx context.Context, cycleID, accountID snowflake.ID, units, costPaid int64) error {
	if cycleID == 0 || accountID == 0 {
		return usagedomain.ErrInvalidCycle
	}
	if units <= 0 || costPaid < 0 {
		return usagedomain.ErrInvalidUnits
	}
	return s.upsertAccountUsage(ctx, cycleID, accountID, 0, 0, units, costPaid)
}

// ResetExpired closes OPEN cycles whose end date has passed and opens the
// successor with fresh quota. Overage spent in the expired cycle is not
// retroactively trued up.
func (s *Service) ResetExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 50
	}

	var expired []usagedomain.SubscriptionCycle
	err := s.db.WithContext(ctx).
		Where("status = ? AND period_end <= ?", usagedomain.CycleStatusOpen, now.UTC()).
		Order("period_end ASC").
		Limit(limit).
		Find(&expired).Error
	if err != nil {
		return 0, err
	}

	reset := 0
	for _, cycle := range expired {
		closed := s.db.WithContext(ctx).
			Model(&usagedomain.SubscriptionCycle{}).
			Where("id = ? AND status = ?", cycle.ID, usagedomain.CycleStatusOpen).
			Updates(map[string]any{
				"status":     usagedomain.CycleStatusClosed,
				"updated_at": time.Now().UTC(),
			})
		if closed.Error != nil {
			return reset, closed.Error
		}
		if closed.RowsAffected == 0 {
			continue
		}

		_, err := s.OpenCycle(ctx, cycle.OrgID, cycle.SubscriptionID, cycle.PeriodEnd, successorEnd(cycle.PeriodStart, cycle.PeriodEnd), cycle.PackageLimit)
		if err != nil && !errors.Is(err, usagedomain.ErrCycleOverlap) {
			return reset, err
		}

		s.log.Info("cycle reset",
			zap.String("subscription_id", cycle.SubscriptionID.String()),
			zap.Time("period_end", cycle.PeriodEnd),
		)
		reset++
	}
	return reset, nil
}

// successorEnd computes the end of the cycle following [start, end). A
// period spanning whole calendar months rolls forward on month boundaries
// so monthly cycles never drift; anything else keeps its fixed duration.
func successorEnd(start, end time.Time) time.Time {
	start, end = start.UTC(), end.UTC()
	months := (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month())
	if months >= 1 && start.AddDate(0, months, 0).Equal(end) {
		return end.AddDate(0, months, 0)
	}
	return end.Add(end.Sub(start))
}

func (s *Service) upsertAccountUsage(ctx context.Context, cycleID, accountID snowflake.ID, units, media, overageUnits, overageCost int64) error {
	now := time.Now().UTC()
	record := usagedomain.AccountUsage{
		ID:                  s.genID.Generate(),
		CycleID:             cycleID,
		AccountID:           accountID,
		MessagesUsed:        units,
		MediaUsed:           media,
		OverageMessagesUsed: overageUnits,
		OverageCostPaid:     overageCost,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "cycle_id"}, {Name: "account_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"messages_used":         gorm.Expr("account_usages.messages_used + ?", units),
				"media_used":            gorm.Expr("account_usages.media_used + ?", media),
				"overage_messages_used": gorm.Expr("account_usages.overage_messages_used + ?", overageUnits),
				"overage_cost_paid":     gorm.Expr("account_usages.overage_cost_paid + ?", overageCost),
				"updated_at":            now,
			}),
		}).
		Create(&record).Error
}

// maybeAlert warns once when an increment carries usage across the
// configured threshold percentage.
func (s *Service) maybeAlert(ctx context.Context, cycleID snowflake.ID, units int64) {
	threshold := int64(s.billing.UsageAlertThresholdPercentage)
	if threshold <= 0 {
		return
	}
	var cycle usagedomain.SubscriptionCycle
	if err := s.db.WithContext(ctx).First(&cycle, "id = ?", cycleID).Error; err != nil {
		return
	}
	if cycle.PackageLimit == 0 {
		return
	}
	pct := cycle.MessagesUsed * 100 / cycle.PackageLimit
	before := (cycle.MessagesUsed - units) * 100 / cycle.PackageLimit
	if pct >= threshold && before < threshold {
		s.log.Warn("quota usage threshold crossed",
			zap.String("subscription_id", cycle.SubscriptionID.String()),
			zap.Int64("used_pct", pct),
		)
		if s.metrics != nil {
			s.metrics.IncUsageAlert()
		}
	}
}
