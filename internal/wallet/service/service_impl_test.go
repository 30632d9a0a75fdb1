package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	walletdomain "github.com/chatwire/chatwire/internal/wallet/domain"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupWallet(t *testing.T) (walletdomain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&walletdomain.Wallet{}))

	node, _ := snowflake.NewNode(1)
	svc := NewService(Params{DB: db, Log: zap.NewNop(), GenID: node})
	return svc, db, node
}

func seedWallet(t *testing.T, db *gorm.DB, node *snowflake.Node, orgID snowflake.ID, balance int64) {
	t.Helper()
	assert.NoError(t, db.Create(&walletdomain.Wallet{
		ID:      node.Generate(),
		OrgID:   orgID,
		Balance: balance,
	}).Error)
}

func TestWalletCreditAndBalance(t *testing.T) {
	svc, db, node := setupWallet(t)
	orgID := node.Generate()
	seedWallet(t, db, node, orgID, 100)

	assert.NoError(t, svc.Credit(context.Background(), orgID, 400))

	balance, err := svc.Balance(context.Background(), orgID)
	assert.NoError(t, err)
	assert.Equal(t, int64(500), balance)
}

func TestWalletDebit(t *testing.T) {
	svc, db, node := setupWallet(t)
	orgID := node.Generate()
	seedWallet(t, db, node, orgID, 500)

	assert.NoError(t, svc.Debit(context.Background(), orgID, 95))

	balance, err := svc.Balance(context.Background(), orgID)
	assert.NoError(t, err)
	assert.Equal(t, int64(405), balance)
}

func TestWalletDebitInsufficientFunds(t *testing.T) {
	svc, db, node := setupWallet(t)
	orgID := node.Generate()
	seedWallet(t, db, node, orgID, 50)

	err := svc.Debit(context.Background(), orgID, 95)
	assert.ErrorIs(t, err, walletdomain.ErrInsufficientFunds)

	// The refused debit left the balance untouched.
	balance, _ := svc.Balance(context.Background(), orgID)
	assert.Equal(t, int64(50), balance)
}

func TestWalletDebitExactBalance(t *testing.T) {
	svc, db, node := setupWallet(t)
	orgID := node.Generate()
	seedWallet(t, db, node, orgID, 95)

	assert.NoError(t, svc.Debit(context.Background(), orgID, 95))

	balance, _ := svc.Balance(context.Background(), orgID)
	assert.Equal(t, int64(0), balance)
}

func TestWalletNotFound(t *testing.T) {
	svc, _, node := setupWallet(t)
	missing := node.Generate()

	_, err := svc.Get(context.Background(), missing)
	assert.ErrorIs(t, err, walletdomain.ErrWalletNotFound)

	err = svc.Debit(context.Background(), missing, 10)
	assert.ErrorIs(t, err, walletdomain.ErrWalletNotFound)

	err = svc.Credit(context.Background(), missing, 10)
	assert.ErrorIs(t, err, walletdomain.ErrWalletNotFound)
}

func TestWalletConcurrentDebitsNeverOverdraw(t *testing.T) {
	// A file-backed database lets two workers hit the same row from
	// separate connections.
	dsn := filepath.Join(t.TempDir(), "wallet.db") + "?_pragma=busy_timeout(10000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&walletdomain.Wallet{}))

	node, _ := snowflake.NewNode(1)
	svc := NewService(Params{DB: db, Log: zap.NewNop(), GenID: node})
	orgID := node.Generate()
	seedWallet(t, db, node, orgID, 100)

	// Both workers believe 100 is available; the conditional update lets
	// exactly one 60 debit through.
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- svc.Debit(context.Background(), orgID, 60)
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, walletdomain.ErrInsufficientFunds)
		}
	}
	assert.Equal(t, 1, succeeded)

	balance, err := svc.Balance(context.Background(), orgID)
	assert.NoError(t, err)
	assert.Equal(t, int64(40), balance)
}

func TestWalletInvalidAmounts(t *testing.T) {
	svc, db, node := setupWallet(t)
	orgID := node.Generate()
	seedWallet(t, db, node, orgID, 100)

	assert.ErrorIs(t, svc.Debit(context.Background(), orgID, 0), walletdomain.ErrInvalidAmount)
	assert.ErrorIs(t, svc.Debit(context.Background(), orgID, -5), walletdomain.ErrInvalidAmount)
	assert.ErrorIs(t, svc.Credit(context.Background(), orgID, 0), walletdomain.ErrInvalidAmount)
	assert.ErrorIs(t, svc.Debit(context.Background(), 0, 10), walletdomain.ErrInvalidOwner)
}
