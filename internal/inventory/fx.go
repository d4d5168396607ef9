package inventory

import (
	"go.uber.org/fx"

	"github.com/amitpo23/medici-web03012026-sub001/internal/inventory/domain"
	"github.com/amitpo23/medici-web03012026-sub001/internal/inventory/repository"
)

var Module = fx.Module("inventory",
	fx.Provide(
		fx.Annotate(repository.NewOpportunityRepo, fx.As(new(domain.OpportunityRepository))),
		fx.Annotate(repository.NewHoldRepo, fx.As(new(domain.HoldRepository))),
		fx.Annotate(repository.NewBookingRepo, fx.As(new(domain.BookingRepository))),
		fx.Annotate(repository.NewCancellationRepo, fx.As(new(domain.CancellationRepository))),
		fx.Annotate(repository.NewPushLogRepo, fx.As(new(domain.PushLogRepository))),
		fx.Annotate(repository.NewMappingRepo, fx.As(new(domain.MappingRepository))),
	),
)
