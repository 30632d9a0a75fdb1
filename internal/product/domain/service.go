package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// ProductCard is the message-ready rendering of a product.
type ProductCard struct {
	ProductID snowflake.ID `json:"product_id"`
	Text      string       `json:"text"`
	MediaRefs []string     `json:"media_refs"`
}

type Service interface {
	LinkedActive(ctx context.Context, accountID snowflake.ID) ([]Product, error)
	Resolve(ctx context.Context, accountID snowflake.ID, ids []snowflake.ID) ([]ProductCard, error)
	Link(ctx context.Context, accountID, productID snowflake.ID) error
	Unlink(ctx context.Context, accountID, productID snowflake.ID) error
}

var (
	ErrInvalidAccount  = errors.New("invalid_account")
	ErrInvalidProduct  = errors.New("invalid_product")
	ErrProductNotFound = errors.New("product_not_found")
	ErrLinkLimit       = errors.New("account_product_limit_reached")
)
