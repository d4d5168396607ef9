package aggregator

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/amitpo23/medici-web03012026-sub001/internal/config"
	"github.com/amitpo23/medici-web03012026-sub001/internal/supplier"
)

var Module = fx.Module("supplier.aggregator",
	fx.Provide(func(cfg config.Config, registry *supplier.Registry, log *zap.Logger) *Aggregator {
		return New(registry, cfg.Suppliers.SearchTimeout, log)
	}),
)
