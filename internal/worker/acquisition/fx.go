package acquisition

import "go.uber.org/fx"

var Module = fx.Module("worker.acquisition",
	fx.Provide(New),
)
