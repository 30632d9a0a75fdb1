// Package domain contains persistence models for chat threads and messages.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Conversation is one chat thread per (account, counterpart address).
// Created lazily on the first message in either direction.
type Conversation struct {
	ID                 snowflake.ID `gorm:"primaryKey"`
	OrgID              snowflake.ID `gorm:"not null;index"`
	AccountID          snowflake.ID `gorm:"not null;index;uniqueIndex:ux_conversation_thread,priority:1"`
	CounterpartAddress string       `gorm:"type:text;not null;uniqueIndex:ux_conversation_thread,priority:2"`
	LastMessageAt      *time.Time   `gorm:""`
	UnreadCount        int          `gorm:"not null;default:0"`
	CreatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Conversation) TableName() string { return "conversations" }

// MessageDirection indicates whether a message was received or sent.
type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

// MessageKind distinguishes plain replies from product cards.
type MessageKind string

const (
	KindPlain       MessageKind = "plain"
	KindProductCard MessageKind = "product_card"
)

// Message is an immutable record of one inbound or outbound unit. Only
// ProcessedAt is ever stamped after creation.
type Message struct {
	ID             snowflake.ID                `gorm:"primaryKey"`
	ConversationID snowflake.ID                `gorm:"not null;index"`
	ExternalID     *string                     `gorm:"type:text;index"`
	Direction      MessageDirection            `gorm:"type:text;not null"`
	Kind           MessageKind                 `gorm:"type:text;not null;default:'plain'"`
	Content        string                      `gorm:"type:text;not null"`
	IsAIGenerated  bool                        `gorm:"not null;default:false"`
	Model          *string                     `gorm:"type:text"`
	MediaRefs      datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	ProcessedAt    *time.Time                  `gorm:""`
	CreatedAt      time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Message) TableName() string { return "messages" }
