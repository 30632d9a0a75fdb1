package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/chatwire/chatwire/internal/config"
	productdomain "github.com/chatwire/chatwire/internal/product/domain"
	"github.com/chatwire/chatwire/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Config config.Config
}

type Service struct {
	db                *gorm.DB
	log               *zap.Logger
	genID             *snowflake.Node
	maxLinked         int
	maxSentPerMessage int
}

func NewService(p Params) productdomain.Service {
	return &Service{
		db:                p.DB,
		log:               p.Log.Named("product.service"),
		genID:             p.GenID,
		maxLinked:         p.Config.Billing.MaxLinkedPerAgent,
		maxSentPerMessage: p.Config.Billing.MaxSentPerMessage,
	}
}

func (s *Service) LinkedActive(ctx context.Context, accountID snowflake.ID) ([]productdomain.Product, error) {
	if accountID == 0 {
		return nil, productdomain.ErrInvalidAccount
	}
	var products []productdomain.Product
	err := s.db.WithContext(ctx).
		Joins("JOIN account_products ON account_products.product_id = products.id").
		Where("account_products.account_id = ? AND products.active = ?", accountID, true).
		Order("account_products.created_at ASC").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Service) Resolve(ctx context.Context, accountID snowflake.ID, ids []snowflake.ID) ([]productdomain.ProductCard, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	linked, err := s.LinkedActive(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return productdomain.ResolveCards(ids, linked, s.maxSentPerMessage), nil
}

func (s *Service) Link(ctx context.Context, accountID, productID snowflake.ID) error {
	if accountID == 0 {
		return productdomain.ErrInvalidAccount
	}
	if productID == 0 {
		return productdomain.ErrInvalidProduct
	}

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&productdomain.AccountProduct{}).
		Where("account_id = ?", accountID).
		Count(&count).Error; err != nil {
		return err
	}
	if count >= int64(s.maxLinked) {
		return productdomain.ErrLinkLimit
	}

	link := productdomain.AccountProduct{
		ID:        s.genID.Generate(),
		AccountID: accountID,
		ProductID: productID,
	}
	if err := s.db.WithContext(ctx).Create(&link).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil
		}
		return err
	}
	return nil
}

func (s *Service) Unlink(ctx context.Context, accountID, productID snowflake.ID) error {
	if accountID == 0 {
		return productdomain.ErrInvalidAccount
	}
	result := s.db.WithContext(ctx).
		Where("account_id = ? AND product_id = ?", accountID, productID).
		Delete(&productdomain.AccountProduct{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return productdomain.ErrProductNotFound
	}
	return nil
}
