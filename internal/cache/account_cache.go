package cache

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	chatdomain "github.com/chatwire/chatwire/internal/chataccount/domain"
)

const (
	defaultAccountTTL = 45 * time.Second
	defaultConfigTTL  = 45 * time.Second
)

// AccountResolverCache stores address and config lookups for the inbound
// webhook path. TTLs are short so config edits take effect quickly
// without explicit cross-instance invalidation.
type AccountResolverCache struct {
	accounts   *TTLCache[string, chatdomain.ChatAccount]
	configs    *TTLCache[snowflake.ID, chatdomain.AIConfig]
	accountTTL time.Duration
	configTTL  time.Duration
}

func NewAccountResolverCache() *AccountResolverCache {
	return &AccountResolverCache{
		accounts:   NewTTLCache[string, chatdomain.ChatAccount](),
		configs:    NewTTLCache[snowflake.ID, chatdomain.AIConfig](),
		accountTTL: defaultAccountTTL,
		configTTL:  defaultConfigTTL,
	}
}

func (c *AccountResolverCache) GetAccount(address string) (chatdomain.ChatAccount, bool) {
	return c.accounts.Get(addressKey(address))
}

func (c *AccountResolverCache) SetAccount(account chatdomain.ChatAccount) {
	if account.ID == 0 {
		return
	}
	c.accounts.Set(addressKey(account.Address), account, c.accountTTL)
}

func (c *AccountResolverCache) GetConfig(accountID snowflake.ID) (chatdomain.AIConfig, bool) {
	return c.configs.Get(accountID)
}

func (c *AccountResolverCache) SetConfig(cfg chatdomain.AIConfig) {
	if cfg.AccountID == 0 {
		return
	}
	c.configs.Set(cfg.AccountID, cfg, c.configTTL)
}

func (c *AccountResolverCache) InvalidateConfig(accountID snowflake.ID) {
	c.configs.Delete(accountID)
}

func addressKey(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
