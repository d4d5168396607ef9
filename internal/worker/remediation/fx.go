package remediation

import (
	"go.uber.org/fx"

	"github.com/amitpo23/medici-web03012026-sub001/internal/worker/audit"
)

var Module = fx.Module("worker.remediation",
	fx.Provide(
		func(src *audit.Worker) ProblemSource { return src },
		New,
	),
)
