package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/billflow/internal/bill"
	"github.com/smallbiznis/billflow/internal/billquery"
	"github.com/smallbiznis/billflow/internal/clock"
	"github.com/smallbiznis/billflow/internal/config"
	"github.com/smallbiznis/billflow/internal/eventlog"
	"github.com/smallbiznis/billflow/internal/lock"
	"github.com/smallbiznis/billflow/internal/migration"
	"github.com/smallbiznis/billflow/internal/notification"
	"github.com/smallbiznis/billflow/internal/objectstore"
	"github.com/smallbiznis/billflow/internal/observability"
	"github.com/smallbiznis/billflow/internal/ocr"
	"github.com/smallbiznis/billflow/internal/projection"
	"github.com/smallbiznis/billflow/internal/server"
	"github.com/smallbiznis/billflow/pkg/db"
	"go.uber.org/fx"
)

// billflow runs the API and every background worker in one process.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		lock.Module,
		objectstore.Module,

		eventlog.Module,
		bill.Module,
		billquery.Module,
		projection.Module,
		projection.WorkerModule,
		ocr.Module,
		notification.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) *snowflake.Node {
	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		panic(err)
	}
	return node
}
