package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type UpdateConfigRequest struct {
	AccountID            snowflake.ID `json:"account_id"`
	Enabled              *bool        `json:"enabled"`
	Model                *string      `json:"model"`
	SystemPrompt         *string      `json:"system_prompt"`
	BusinessContext      *string      `json:"business_context"`
	TriggerWords         []string     `json:"trigger_words"`
	IgnoreWords          []string     `json:"ignore_words"`
	ResponseDelaySeconds *int         `json:"response_delay_seconds"`
	StopOnHumanReply     *bool        `json:"stop_on_human_reply"`
	FallbackText         *string      `json:"fallback_text"`
}

type Service interface {
	GetByAddress(ctx context.Context, address string) (ChatAccount, error)
	GetByID(ctx context.Context, id snowflake.ID) (ChatAccount, error)
	GetConfig(ctx context.Context, accountID snowflake.ID) (AIConfig, error)
	UpdateConfig(ctx context.Context, req UpdateConfigRequest) (AIConfig, error)
	SetAIEnabled(ctx context.Context, accountID snowflake.ID, enabled bool) error
}

var (
	ErrAccountNotFound = errors.New("account_not_found")
	ErrConfigNotFound  = errors.New("config_not_found")
	ErrInvalidAddress  = errors.New("invalid_address")
	ErrInvalidAccount  = errors.New("invalid_account")
	ErrInvalidModel    = errors.New("invalid_model")
)
