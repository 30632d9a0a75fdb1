package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/chatwire/chatwire/internal/clock"
	"github.com/chatwire/chatwire/internal/config"
	"github.com/chatwire/chatwire/internal/logger"
	"github.com/chatwire/chatwire/internal/migration"
	"github.com/chatwire/chatwire/internal/server"
	"github.com/chatwire/chatwire/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
