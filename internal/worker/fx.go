package worker

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/amitpo23/medici-web03012026-sub001/internal/clock"
	"github.com/amitpo23/medici-web03012026-sub001/internal/config"
	"github.com/amitpo23/medici-web03012026-sub001/internal/notify"
	"github.com/amitpo23/medici-web03012026-sub001/internal/observability/metrics"
	"github.com/amitpo23/medici-web03012026-sub001/internal/worker/acquisition"
	"github.com/amitpo23/medici-web03012026-sub001/internal/worker/audit"
	"github.com/amitpo23/medici-web03012026-sub001/internal/worker/lifecycle"
	"github.com/amitpo23/medici-web03012026-sub001/internal/worker/remediation"
)

type Params struct {
	fx.In

	Cfg      config.Config
	Clk      clock.Clock
	Notifier notify.Notifier
	Metrics  *metrics.Metrics
	Log      *zap.Logger

	Acquisition *acquisition.Worker
	Lifecycle   *lifecycle.Worker
	Audit       *audit.Worker
	Remediation *remediation.Worker
}

func newSupervisor(p Params) *Supervisor {
	return NewSupervisor(
		p.Cfg.Workers.AutoStart,
		p.Clk,
		p.Notifier,
		p.Metrics,
		p.Log,
		p.Acquisition,
		p.Lifecycle,
		p.Audit,
		p.Remediation,
	)
}

func run(lc fx.Lifecycle, s *Supervisor) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			s.StartAll()
			s.RunHealthMonitor()
			return nil
		},
		OnStop: func(context.Context) error {
			s.Shutdown()
			return nil
		},
	})
}

var Module = fx.Module("worker",
	acquisition.Module,
	lifecycle.Module,
	audit.Module,
	remediation.Module,
	fx.Provide(newSupervisor),
	fx.Invoke(run),
)
