package conversation

import (
	"github.com/chatwire/chatwire/internal/conversation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("conversation.store",
	fx.Provide(service.NewStore),
)
