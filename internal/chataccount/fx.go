package chataccount

import (
	"github.com/chatwire/chatwire/internal/chataccount/service"
	"go.uber.org/fx"
)

var Module = fx.Module("chataccount.service",
	fx.Provide(service.NewService),
)
