package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type AppendRequest struct {
	OrgID            snowflake.ID
	AccountID        snowflake.ID
	MessageID        snowflake.ID
	BillingType      BillingType
	PromptTokens     int
	CompletionTokens int
	ProviderCostUSD  float64
	LocalCost        int64
}

type Service interface {
	Append(ctx context.Context, req AppendRequest) error
	ListByAccount(ctx context.Context, accountID snowflake.ID, limit int) ([]UsageLedgerEntry, error)
}

var (
	ErrInvalidMessage     = errors.New("invalid_message")
	ErrInvalidBillingType = errors.New("invalid_billing_type")
	ErrInvalidOrg         = errors.New("invalid_organization")
)
