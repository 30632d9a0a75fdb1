// Package domain contains the append-only usage ledger.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// BillingType tags how a message was paid for. Modeled as an explicit
// variant rather than nullable foreign keys with implicit meaning.
type BillingType string

const (
	BillingTypeSubscriptionQuota BillingType = "subscription_quota"
	BillingTypeWalletDirect      BillingType = "wallet_direct"
)

// UsageLedgerEntry links one outbound message to its token counts and cost.
// Entries are appended for audit and analytics and never updated.
type UsageLedgerEntry struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	OrgID            snowflake.ID `gorm:"not null;index"`
	AccountID        snowflake.ID `gorm:"not null;index"`
	MessageID        snowflake.ID `gorm:"not null;uniqueIndex"`
	BillingType      BillingType  `gorm:"type:text;not null"`
	PromptTokens     int          `gorm:"not null;default:0"`
	CompletionTokens int          `gorm:"not null;default:0"`
	TotalTokens      int          `gorm:"not null;default:0"`
	ProviderCostUSD  float64      `gorm:"not null;default:0"`
	LocalCost        int64        `gorm:"not null;default:0"`
	Currency         string       `gorm:"type:text;not null;default:'XAF'"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (UsageLedgerEntry) TableName() string { return "usage_ledger_entries" }
