// Package domain contains the prepaid wallet model.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Wallet holds one non-negative prepaid balance per tenant owner. The balance
// is mutated only through the debit/credit service, never directly.
type Wallet struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	OrgID     snowflake.ID `gorm:"not null;uniqueIndex"`
	Balance   int64        `gorm:"not null;default:0"`
	Currency  string       `gorm:"type:text;not null;default:'XAF'"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Wallet) TableName() string { return "wallets" }
