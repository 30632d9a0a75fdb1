// Package domain contains persistence models for sellable products.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Product is a tenant-owned catalog record.
type Product struct {
	ID          snowflake.ID                `gorm:"primaryKey"`
	OrgID       snowflake.ID                `gorm:"not null;index"`
	Name        string                      `gorm:"type:text;not null"`
	Description string                      `gorm:"type:text"`
	Price       int64                       `gorm:"not null;default:0"`
	Currency    string                      `gorm:"type:text;not null;default:'XAF'"`
	// No column default: gorm would omit a false value on insert and the
	// default would silently reactivate the product.
	Active      bool                        `gorm:"not null"`
	MediaRefs   datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	CreatedAt   time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Product) TableName() string { return "products" }

// AccountProduct links a product to a chat account.
type AccountProduct struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	AccountID snowflake.ID `gorm:"not null;index;uniqueIndex:ux_account_product,priority:1"`
	ProductID snowflake.ID `gorm:"not null;index;uniqueIndex:ux_account_product,priority:2"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (AccountProduct) TableName() string { return "account_products" }
