package migration

import (
	"strings"

	chatdomain "github.com/chatwire/chatwire/internal/chataccount/domain"
	"github.com/chatwire/chatwire/internal/config"
	convdomain "github.com/chatwire/chatwire/internal/conversation/domain"
	"github.com/chatwire/chatwire/internal/events"
	ledgerdomain "github.com/chatwire/chatwire/internal/ledger/domain"
	productdomain "github.com/chatwire/chatwire/internal/product/domain"
	usagedomain "github.com/chatwire/chatwire/internal/usage/domain"
	walletdomain "github.com/chatwire/chatwire/internal/wallet/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// The versioned SQL path is postgres-only; sqlite and mysql lean
		// on gorm's schema sync instead.
		if strings.EqualFold(cfg.DBType, "postgres") {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}

		return conn.AutoMigrate(
			&chatdomain.ChatAccount{},
			&chatdomain.AIConfig{},
			&productdomain.Product{},
			&productdomain.AccountProduct{},
			&convdomain.Conversation{},
			&convdomain.Message{},
			&walletdomain.Wallet{},
			&usagedomain.SubscriptionCycle{},
			&usagedomain.AccountUsage{},
			&ledgerdomain.UsageLedgerEntry{},
			&events.MessageEvent{},
		)
	}),
)
