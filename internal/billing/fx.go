package billing

import (
	"github.com/chatwire/chatwire/internal/events"
	"go.uber.org/fx"
)

var Module = fx.Module("billing",
	fx.Provide(NewListener),
	fx.Invoke(func(dispatcher *events.Dispatcher, listener *Listener) {
		dispatcher.Subscribe("billing", listener.HandleMessageProcessed)
	}),
)
