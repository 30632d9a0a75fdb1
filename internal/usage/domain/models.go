// Package domain contains persistence models for quota tracking.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// CycleStatus represents a subscription cycle's lifecycle.
type CycleStatus string

const (
	CycleStatusOpen   CycleStatus = "OPEN"
	CycleStatusClosed CycleStatus = "CLOSED"
)

// SubscriptionCycle is the time-boxed quota window bound to one subscription.
// Exactly one OPEN cycle per subscription at a time. Immediately after
// creation messages_used + messages_remaining == package_limit; the pair
// drifts only via atomic increments.
type SubscriptionCycle struct {
	ID                snowflake.ID `gorm:"primaryKey"`
	OrgID             snowflake.ID `gorm:"not null;index"`
	SubscriptionID    snowflake.ID `gorm:"not null;index;uniqueIndex:ux_cycle_period,priority:1"`
	PeriodStart       time.Time    `gorm:"not null;uniqueIndex:ux_cycle_period,priority:2"`
	PeriodEnd         time.Time    `gorm:"not null"`
	Status            CycleStatus  `gorm:"type:text;not null;default:'OPEN'"`
	PackageLimit      int64        `gorm:"not null"`
	MessagesUsed      int64        `gorm:"not null;default:0"`
	MessagesRemaining int64        `gorm:"not null"`
	MediaUsed         int64        `gorm:"not null;default:0"`
	EstimatedCost     int64        `gorm:"not null;default:0"`
	LastActivityAt    *time.Time   `gorm:""`
	CreatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (SubscriptionCycle) TableName() string { return "subscription_cycles" }

// AccountUsage mirrors the cycle counters scoped to one chat account, with
// quota and pay-as-you-go spend tracked separately.
type AccountUsage struct {
	ID                  snowflake.ID `gorm:"primaryKey"`
	CycleID             snowflake.ID `gorm:"not null;index;uniqueIndex:ux_account_usage,priority:1"`
	AccountID           snowflake.ID `gorm:"not null;index;uniqueIndex:ux_account_usage,priority:2"`
	MessagesUsed        int64        `gorm:"not null;default:0"`
	MediaUsed           int64        `gorm:"not null;default:0"`
	OverageMessagesUsed int64        `gorm:"not null;default:0"`
	OverageCostPaid     int64        `gorm:"not null;default:0"`
	CreatedAt           time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt           time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (AccountUsage) TableName() string { return "account_usages" }
