package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/chatwire/chatwire/internal/config"
	productdomain "github.com/chatwire/chatwire/internal/product/domain"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupProducts(t *testing.T, maxLinked, maxSent int) (productdomain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&productdomain.Product{}, &productdomain.AccountProduct{}))

	node, _ := snowflake.NewNode(1)
	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Config: config.Config{Billing: config.BillingConfig{
			MaxLinkedPerAgent: maxLinked,
			MaxSentPerMessage: maxSent,
		}},
	})
	return svc, db, node
}

func seedProduct(t *testing.T, db *gorm.DB, node *snowflake.Node, name string, active bool) productdomain.Product {
	t.Helper()
	p := productdomain.Product{
		ID:       node.Generate(),
		OrgID:    node.Generate(),
		Name:     name,
		Price:    1000,
		Currency: "XAF",
		Active:   active,
	}
	assert.NoError(t, db.Create(&p).Error)
	return p
}

func TestLinkAndListActive(t *testing.T) {
	svc, db, node := setupProducts(t, 50, 10)
	accountID := node.Generate()
	active := seedProduct(t, db, node, "Air Max", true)
	inactive := seedProduct(t, db, node, "Retired", false)

	assert.NoError(t, svc.Link(context.Background(), accountID, active.ID))
	assert.NoError(t, svc.Link(context.Background(), accountID, inactive.ID))

	linked, err := svc.LinkedActive(context.Background(), accountID)
	assert.NoError(t, err)
	assert.Len(t, linked, 1)
	assert.Equal(t, active.ID, linked[0].ID)
}

func TestInactiveProductPersistsAsInactive(t *testing.T) {
	_, db, node := setupProducts(t, 50, 10)
	p := seedProduct(t, db, node, "Retired", false)

	var got productdomain.Product
	assert.NoError(t, db.First(&got, "id = ?", p.ID).Error)
	assert.False(t, got.Active)
}

func TestLinkIsIdempotent(t *testing.T) {
	svc, db, node := setupProducts(t, 50, 10)
	accountID := node.Generate()
	p := seedProduct(t, db, node, "Air Max", true)

	assert.NoError(t, svc.Link(context.Background(), accountID, p.ID))
	assert.NoError(t, svc.Link(context.Background(), accountID, p.ID))

	var count int64
	assert.NoError(t, db.Model(&productdomain.AccountProduct{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestLinkLimit(t *testing.T) {
	svc, db, node := setupProducts(t, 2, 10)
	accountID := node.Generate()

	for i := 0; i < 2; i++ {
		p := seedProduct(t, db, node, fmt.Sprintf("p%d", i), true)
		assert.NoError(t, svc.Link(context.Background(), accountID, p.ID))
	}

	extra := seedProduct(t, db, node, "extra", true)
	err := svc.Link(context.Background(), accountID, extra.ID)
	assert.ErrorIs(t, err, productdomain.ErrLinkLimit)
}

func TestUnlink(t *testing.T) {
	svc, db, node := setupProducts(t, 50, 10)
	accountID := node.Generate()
	p := seedProduct(t, db, node, "Air Max", true)

	assert.NoError(t, svc.Link(context.Background(), accountID, p.ID))
	assert.NoError(t, svc.Unlink(context.Background(), accountID, p.ID))

	err := svc.Unlink(context.Background(), accountID, p.ID)
	assert.ErrorIs(t, err, productdomain.ErrProductNotFound)
}

func TestResolveCapsAtMaxSent(t *testing.T) {
	svc, db, node := setupProducts(t, 50, 2)
	accountID := node.Generate()

	var ids []snowflake.ID
	for i := 0; i < 3; i++ {
		p := seedProduct(t, db, node, fmt.Sprintf("p%d", i), true)
		assert.NoError(t, svc.Link(context.Background(), accountID, p.ID))
		ids = append(ids, p.ID)
	}

	cards, err := svc.Resolve(context.Background(), accountID, ids)
	assert.NoError(t, err)
	assert.Len(t, cards, 2)
}

func TestResolveDropsUnlinked(t *testing.T) {
	svc, db, node := setupProducts(t, 50, 10)
	accountID := node.Generate()
	linked := seedProduct(t, db, node, "linked", true)
	unlinked := seedProduct(t, db, node, "unlinked", true)
	assert.NoError(t, svc.Link(context.Background(), accountID, linked.ID))

	cards, err := svc.Resolve(context.Background(), accountID, []snowflake.ID{unlinked.ID, linked.ID})
	assert.NoError(t, err)
	assert.Len(t, cards, 1)
	assert.Equal(t, linked.ID, cards[0].ProductID)
}
