package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Get(ctx context.Context, orgID snowflake.ID) (Wallet, error)
	Balance(ctx context.Context, orgID snowflake.ID) (int64, error)
	Credit(ctx context.Context, orgID snowflake.ID, amount int64) error
	Debit(ctx context.Context, orgID snowflake.ID, amount int64) error
}

var (
	ErrWalletNotFound    = errors.New("wallet_not_found")
	ErrInvalidOwner      = errors.New("invalid_owner")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrInsufficientFunds = errors.New("insufficient_funds")
)
