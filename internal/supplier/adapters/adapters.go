// Package adapters wires the configured supplier clients into a registry.
package adapters

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/amitpo23/medici-web03012026-sub001/internal/config"
	"github.com/amitpo23/medici-web03012026-sub001/internal/supplier"
	"github.com/amitpo23/medici-web03012026-sub001/internal/supplier/adapters/innstant"
)

// NewRegistry builds the registry from whatever suppliers have credentials.
// A supplier without credentials is absent and the aggregator degrades to the
// remaining ones.
func NewRegistry(cfg config.Config, log *zap.Logger) *supplier.Registry {
	var clients []supplier.Client

	if cfg.Suppliers.InnstantBaseURL != "" && cfg.Suppliers.InnstantAPIKey != "" {
		clients = append(clients, innstant.NewClient(innstant.Config{
			BaseURL: cfg.Suppliers.InnstantBaseURL,
			APIKey:  cfg.Suppliers.InnstantAPIKey,
			Agent:   cfg.Suppliers.InnstantAgent,
		}, log))
	}

	if len(clients) == 0 {
		log.Warn("no supplier credentials configured, registry is empty")
	}
	return supplier.NewRegistry(clients...)
}

var Module = fx.Module("supplier.adapters",
	fx.Provide(NewRegistry),
)
