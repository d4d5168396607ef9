package lifecycle

import "go.uber.org/fx"

var Module = fx.Module("worker.lifecycle",
	fx.Provide(New),
)
