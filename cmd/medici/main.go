package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/amitpo23/medici-web03012026-sub001/internal/channel"
	"github.com/amitpo23/medici-web03012026-sub001/internal/clock"
	"github.com/amitpo23/medici-web03012026-sub001/internal/config"
	"github.com/amitpo23/medici-web03012026-sub001/internal/inventory"
	"github.com/amitpo23/medici-web03012026-sub001/internal/logger"
	"github.com/amitpo23/medici-web03012026-sub001/internal/migration"
	"github.com/amitpo23/medici-web03012026-sub001/internal/notify"
	"github.com/amitpo23/medici-web03012026-sub001/internal/observability/metrics"
	"github.com/amitpo23/medici-web03012026-sub001/internal/seed"
	"github.com/amitpo23/medici-web03012026-sub001/internal/server"
	"github.com/amitpo23/medici-web03012026-sub001/internal/supplier/adapters"
	"github.com/amitpo23/medici-web03012026-sub001/internal/supplier/aggregator"
	"github.com/amitpo23/medici-web03012026-sub001/internal/worker"
	"github.com/amitpo23/medici-web03012026-sub001/pkg/db"
)

var version = "dev"

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		clock.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		db.Module,
		fx.Invoke(func(conn *gorm.DB, cfg config.Config, node *snowflake.Node) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := migration.Run(sqlDB); err != nil {
				return err
			}
			if !cfg.IsProduction() {
				return seed.EnsureDemoHotel(conn, node)
			}
			return nil
		}),
		metrics.Module,
		notify.Module,
		inventory.Module,
		adapters.Module,
		aggregator.Module,
		channel.Module,
		worker.Module,
		server.Module,
	)
	app.Run()
}
