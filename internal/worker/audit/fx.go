package audit

import "go.uber.org/fx"

var Module = fx.Module("worker.audit",
	fx.Provide(New),
)
