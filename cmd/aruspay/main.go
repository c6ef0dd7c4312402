package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/aruspay/aruspay/internal/clock"
	"github.com/aruspay/aruspay/internal/config"
	"github.com/aruspay/aruspay/internal/idempotency"
	"github.com/aruspay/aruspay/internal/ledger"
	"github.com/aruspay/aruspay/internal/logger"
	"github.com/aruspay/aruspay/internal/migration"
	"github.com/aruspay/aruspay/internal/observability"
	"github.com/aruspay/aruspay/internal/payment"
	"github.com/aruspay/aruspay/internal/reconcile"
	"github.com/aruspay/aruspay/internal/server"
	"github.com/aruspay/aruspay/pkg/db"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional Domains
		ledger.Module,
		payment.Module,
		idempotency.Module,
		reconcile.Module,

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
