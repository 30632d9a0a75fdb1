package ledger

import (
	"github.com/chatwire/chatwire/internal/events"
	"github.com/chatwire/chatwire/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(service.NewService),
	fx.Provide(NewListener),
	// Registered after the settlement subscriber so settled messages keep
	// their authoritative billing type.
	fx.Invoke(func(dispatcher *events.Dispatcher, listener *Listener) {
		dispatcher.Subscribe("ledger", listener.HandleMessageProcessed)
	}),
)
