// Package domain contains persistence models for connected chat accounts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// ChatAccount is a tenant's connected chat identity.
type ChatAccount struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	OrgID          snowflake.ID `gorm:"not null;index"`
	SubscriptionID snowflake.ID `gorm:"not null;index"`
	Address        string       `gorm:"type:text;not null;uniqueIndex"`
	DisplayName    string       `gorm:"type:text;not null"`
	// No column default: gorm would omit a false value on insert and the
	// default would mark a disconnected account as connected.
	Connected      bool         `gorm:"not null"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ChatAccount) TableName() string { return "chat_accounts" }

// AIConfig is the zero-or-one AI configuration owned by a chat account.
// Enum and list fields are validated and normalized on write.
type AIConfig struct {
	ID                   snowflake.ID                 `gorm:"primaryKey"`
	AccountID            snowflake.ID                 `gorm:"not null;uniqueIndex"`
	Enabled              bool                         `gorm:"not null;default:false"`
	Model                string                       `gorm:"type:text;not null"`
	SystemPrompt         string                       `gorm:"type:text;not null"`
	BusinessContext      string                       `gorm:"type:text"`
	TriggerWords         datatypes.JSONSlice[string]  `gorm:"type:jsonb"`
	IgnoreWords          datatypes.JSONSlice[string]  `gorm:"type:jsonb"`
	ResponseDelaySeconds int                          `gorm:"not null;default:0"`
	StopOnHumanReply     bool                         `gorm:"not null;default:false"`
	FallbackText         string                       `gorm:"type:text"`
	CreatedAt            time.Time                    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt            time.Time                    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (AIConfig) TableName() string { return "ai_configs" }
