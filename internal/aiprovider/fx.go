package aiprovider

import (
	"github.com/chatwire/chatwire/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("aiprovider",
	fx.Provide(func(cfg config.Config, log *zap.Logger) Invoker {
		return NewOpenAIClient(cfg.AI, log)
	}),
	fx.Provide(func(cfg config.Config) *ContextBuilder {
		return NewContextBuilder(cfg.AI.ContextWindowLength)
	}),
)
