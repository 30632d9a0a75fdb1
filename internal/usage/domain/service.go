package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// CapacityDecision reports whether a message can be answered and how it
// would be paid for.
type CapacityDecision struct {
	Allowed      bool
	QuotaUnits   int64
	OverageUnits int64
}

type Service interface {
	CurrentCycle(ctx context.Context, subscriptionID snowflake.ID) (SubscriptionCycle, error)
	OpenCycle(ctx context.Context, orgID, subscriptionID snowflake.ID, start, end time.Time, packageLimit int64) (SubscriptionCycle, error)
	CanProcessMessage(ctx context.Context, orgID, subscriptionID snowflake.ID, units int64) (CapacityDecision, error)
	IncrementUsage(ctx context.Context, cycleID, accountID snowflake.ID, units, media, estimatedCost int64) error
	RecordOverage(ctx context.Context, cycleID, accountID snowflake.ID, units, costPaid int64) error
	ResetExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

var (
	ErrCycleNotFound   = errors.New("cycle_not_found")
	ErrInvalidCycle    = errors.New("invalid_cycle")
	ErrInvalidUnits    = errors.New("invalid_units")
	ErrQuotaExhausted  = errors.New("quota_exhausted")
	ErrInvalidSub      = errors.New("invalid_subscription")
	ErrCycleOverlap    = errors.New("cycle_already_open")
	ErrInvalidPeriod   = errors.New("invalid_period")
	ErrInvalidCapacity = errors.New("invalid_capacity")
)
