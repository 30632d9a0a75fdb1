package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/chatwire/chatwire/internal/cache"
	chataccountdomain "github.com/chatwire/chatwire/internal/chataccount/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Cache *cache.AccountResolverCache `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	cache *cache.AccountResolverCache
}

func NewService(p Params) chataccountdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("chataccount.service"),
		genID: p.GenID,
		cache: p.Cache,
	}
}

func (s *Service) GetByAddress(ctx context.Context, address string) (chataccountdomain.ChatAccount, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return chataccountdomain.ChatAccount{}, chataccountdomain.ErrInvalidAddress
	}
	if s.cache != nil {
		if account, ok := s.cache.GetAccount(address); ok {
			return account, nil
		}
	}
	var account chataccountdomain.ChatAccount
	err := s.db.WithContext(ctx).
		Where("address = ?", address).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chataccountdomain.ChatAccount{}, chataccountdomain.ErrAccountNotFound
		}
		return chataccountdomain.ChatAccount{}, err
	}
	if s.cache != nil {
		s.cache.SetAccount(account)
	}
	return account, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (chataccountdomain.ChatAccount, error) {
	if id == 0 {
		return chataccountdomain.ChatAccount{}, chataccountdomain.ErrInvalidAccount
	}
	var account chataccountdomain.ChatAccount
	err := s.db.WithContext(ctx).First(&account, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chataccountdomain.ChatAccount{}, chataccountdomain.ErrAccountNotFound
		}
		return chataccountdomain.ChatAccount{}, err
	}
	return account, nil
}

func (s *Service) GetConfig(ctx context.Context, accountID snowflake.ID) (chataccountdomain.AIConfig, error) {
	if accountID == 0 {
		return chataccountdomain.AIConfig{}, chataccountdomain.ErrInvalidAccount
	}
	if s.cache != nil {
		if cfg, ok := s.cache.GetConfig(accountID); ok {
			return cfg, nil
		}
	}
	var cfg chataccountdomain.AIConfig
	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chataccountdomain.AIConfig{}, chataccountdomain.ErrConfigNotFound
		}
		return chataccountdomain.AIConfig{}, err
	}
	if s.cache != nil {
		s.cache.SetConfig(cfg)
	}
	return cfg, nil
}

func (s *Service) UpdateConfig(ctx context.Context, req chataccountdomain.UpdateConfigRequest) (chataccountdomain.AIConfig, error) {
	if req.AccountID == 0 {
		return chataccountdomain.AIConfig{}, chataccountdomain.ErrInvalidAccount
	}

	now := time.Now().UTC()
	cfg, err := s.GetConfig(ctx, req.AccountID)
	if errors.Is(err, chataccountdomain.ErrConfigNotFound) {
		cfg = chataccountdomain.AIConfig{
			ID:        s.genID.Generate(),
			AccountID: req.AccountID,
			CreatedAt: now,
		}
		err = nil
	}
	if err != nil {
		return chataccountdomain.AIConfig{}, err
	}

	if req.Enabled != nil {
		cfg.Enabled = *req.Enabled
	}
	if req.Model != nil {
		model := strings.TrimSpace(*req.Model)
		if model == "" {
			return chataccountdomain.AIConfig{}, chataccountdomain.ErrInvalidModel
		}
		cfg.Model = model
	}
	if req.SystemPrompt != nil {
		cfg.SystemPrompt = strings.TrimSpace(*req.SystemPrompt)
	}
	if req.BusinessContext != nil {
		cfg.BusinessContext = strings.TrimSpace(*req.BusinessContext)
	}
	if req.TriggerWords != nil {
		cfg.TriggerWords = datatypes.NewJSONSlice(normalizeWordList(req.TriggerWords))
	}
	if req.IgnoreWords != nil {
		cfg.IgnoreWords = datatypes.NewJSONSlice(normalizeWordList(req.IgnoreWords))
	}
	if req.ResponseDelaySeconds != nil && *req.ResponseDelaySeconds >= 0 {
		cfg.ResponseDelaySeconds = *req.ResponseDelaySeconds
	}
	if req.StopOnHumanReply != nil {
		cfg.StopOnHumanReply = *req.StopOnHumanReply
	}
	if req.FallbackText != nil {
		cfg.FallbackText = strings.TrimSpace(*req.FallbackText)
	}
	cfg.UpdatedAt = now

	if err := s.db.WithContext(ctx).Save(&cfg).Error; err != nil {
		return chataccountdomain.AIConfig{}, err
	}
	if s.cache != nil {
		s.cache.InvalidateConfig(req.AccountID)
	}
	return cfg, nil
}

func (s *Service) SetAIEnabled(ctx context.Context, accountID snowflake.ID, enabled bool) error {
	if accountID == 0 {
		return chataccountdomain.ErrInvalidAccount
	}
	result := s.db.WithContext(ctx).
		Model(&chataccountdomain.AIConfig{}).
		Where("account_id = ?", accountID).
		Updates(map[string]any{
			"enabled":    enabled,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return chataccountdomain.ErrConfigNotFound
	}
	if s.cache != nil {
		s.cache.InvalidateConfig(accountID)
	}
	return nil
}

// normalizeWordList lowercases, trims and deduplicates, preserving first
// occurrence order. Normalization happens once on write, not on every read.
func normalizeWordList(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, word := range words {
		word = strings.ToLower(strings.TrimSpace(word))
		if word == "" {
			continue
		}
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		out = append(out, word)
	}
	return out
}
