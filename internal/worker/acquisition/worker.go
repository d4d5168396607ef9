// Package acquisition polls for pending buy opportunities and runs the
// hold→purchase state machine against the cheapest valid room found.
package acquisition

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/amitpo23/medici-web03012026-sub001/internal/channel"
	"github.com/amitpo23/medici-web03012026-sub001/internal/clock"
	"github.com/amitpo23/medici-web03012026-sub001/internal/config"
	"github.com/amitpo23/medici-web03012026-sub001/internal/inventory/domain"
	"github.com/amitpo23/medici-web03012026-sub001/internal/notify"
	"github.com/amitpo23/medici-web03012026-sub001/internal/observability/metrics"
	"github.com/amitpo23/medici-web03012026-sub001/internal/ratelimit"
	"github.com/amitpo23/medici-web03012026-sub001/internal/supplier"
	"github.com/amitpo23/medici-web03012026-sub001/internal/supplier/aggregator"
)

const Name = "acquisition"

// minFreeCancellation is how much free-cancellation runway a room must still
// have to be worth buying; anything shorter cannot be resold safely.
const minFreeCancellation = 24 * time.Hour

type Worker struct {
	cfg config.AcquisitionConfig

	opportunities domain.OpportunityRepository
	holds         domain.HoldRepository
	bookings      domain.BookingRepository
	mappings      domain.MappingRepository

	agg      *aggregator.Aggregator
	registry *supplier.Registry
	pusher   *channel.Client
	limiter  *ratelimit.TokenBucket

	clk      clock.Clock
	genID    *snowflake.Node
	metrics  *metrics.Metrics
	notifier notify.Notifier
	log      *zap.Logger
}

func New(
	cfg config.Config,
	opportunities domain.OpportunityRepository,
	holds domain.HoldRepository,
	bookings domain.BookingRepository,
	mappings domain.MappingRepository,
	agg *aggregator.Aggregator,
	registry *supplier.Registry,
	pusher *channel.Client,
	clk clock.Clock,
	genID *snowflake.Node,
	m *metrics.Metrics,
	notifier notify.Notifier,
	log *zap.Logger,
) *Worker {
	return &Worker{
		cfg:           cfg.Workers.Acquisition,
		opportunities: opportunities,
		holds:         holds,
		bookings:      bookings,
		mappings:      mappings,
		agg:           agg,
		registry:      registry,
		pusher:        pusher,
		limiter:       ratelimit.NewPerMinute(cfg.Workers.Acquisition.PurchasesPerMinute, clk),
		clk:           clk,
		genID:         genID,
		metrics:       m,
		notifier:      notifier,
		log:           log.Named("worker.acquisition"),
	}
}

func (w *Worker) Name() string            { return Name }
func (w *Worker) Interval() time.Duration { return w.cfg.Interval }
func (w *Worker) Enabled() bool           { return w.cfg.Enabled }
func (w *Worker) HealthThreshold() int    { return w.cfg.HealthThreshold }

func (w *Worker) Tick(ctx context.Context) error {
	opp, err := w.opportunities.NextPending(ctx)
	if err != nil {
		return fmt.Errorf("fetch pending opportunity: %w", err)
	}
	if opp == nil {
		return nil
	}

	log := w.log.With(
		zap.String("opportunity_id", opp.ID.String()),
		zap.String("hotel", opp.HotelName),
	)

	codes, err := w.mappings.SupplierCodes(ctx, opp.HotelID)
	if err != nil {
		return fmt.Errorf("load supplier codes: %w", err)
	}
	if len(codes) == 0 {
		log.Info("no supplier mapping for hotel, skipping opportunity")
		return w.opportunities.Touch(ctx, opp.ID)
	}

	result := w.agg.Search(ctx, aggregator.Query{Criteria: w.criteriaFor(opp, codes)})

	candidates := w.filterOffers(result, *opp)
	if len(candidates) == 0 {
		log.Info("no valid room under target price",
			zap.Float64("target_buy_price", opp.TargetBuyPrice),
			zap.Int("suppliers_queried", len(result.PerSupplier)),
		)
		return w.opportunities.Touch(ctx, opp.ID)
	}
	best := candidates[0]

	if w.cfg.DryRun {
		// The safety gate: full decision logic, zero supplier mutations.
		log.Info("dry-run: would purchase",
			zap.String("supplier", best.Supplier),
			zap.String("category", best.Category),
			zap.Float64("price", best.Price),
			zap.Float64("resale_price", opp.TargetSellPrice),
		)
		w.metrics.PurchaseExecuted(true)
		return w.opportunities.Touch(ctx, opp.ID)
	}

	if !w.limiter.Allow() {
		log.Info("purchase rate limit reached, deferring to next tick")
		return nil
	}

	if err := w.executePurchase(ctx, opp, best); err != nil {
		log.Error("purchase failed", zap.Error(err))
		// Advance the timestamp so the next poll does not hammer the same
		// opportunity immediately.
		if touchErr := w.opportunities.Touch(ctx, opp.ID); touchErr != nil {
			log.Warn("touch after failed purchase failed", zap.Error(touchErr))
		}
		return err
	}
	return nil
}

func (w *Worker) criteriaFor(opp *domain.Opportunity, codes []domain.SupplierHotelCode) map[string]supplier.SearchCriteria {
	criteria := make(map[string]supplier.SearchCriteria, len(codes))
	for _, code := range codes {
		criteria[code.Supplier] = supplier.SearchCriteria{
			HotelCode: code.Code,
			HotelName: opp.HotelName,
			CheckIn:   opp.CheckIn,
			CheckOut:  opp.CheckOut,
			Adults:    2,
			Currency:  "EUR",
		}
	}
	return criteria
}

// filterOffers applies the purchase gate: category/board substring match, a
// safe cancellation policy, and a price at or under the target buy price.
// Survivors come back cheapest first.
func (w *Worker) filterOffers(result aggregator.Result, opp domain.Opportunity) []supplier.RoomOffer {
	now := w.clk.Now()

	var valid []supplier.RoomOffer
	for _, group := range result.Groups {
		for _, offer := range group.Rooms {
			if !matchesText(offer.Category, opp.RoomCategory) {
				continue
			}
			if !matchesText(offer.Board, opp.Board) {
				continue
			}
			if !policySafe(offer.Policy, now) {
				continue
			}
			if offer.Price > opp.TargetBuyPrice {
				continue
			}
			valid = append(valid, offer)
		}
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Price < valid[j].Price
	})
	return valid
}

// policySafe rejects rooms that penalize cancellation in their first policy
// window or whose free-cancellation deadline is already too close.
func policySafe(policy supplier.CancellationPolicy, now time.Time) bool {
	if len(policy.Frames) > 0 {
		first := policy.Frames[0].Penalty
		if first.Amount > 0 || first.Percent > 0 {
			return false
		}
	}
	freeUntil := policy.FreeUntil()
	if freeUntil == nil {
		return false
	}
	return freeUntil.Sub(now) >= minFreeCancellation
}

func matchesText(roomValue, wanted string) bool {
	wanted = strings.TrimSpace(wanted)
	if wanted == "" {
		return true
	}
	return strings.Contains(strings.ToLower(roomValue), strings.ToLower(wanted))
}

// executePurchase runs hold→confirm→persist→mark→push. External calls come
// first; persistence follows, so a crash mid-way leaves at most a missing
// record, never a torn transaction.
func (w *Worker) executePurchase(ctx context.Context, opp *domain.Opportunity, offer supplier.RoomOffer) error {
	client, err := w.registry.Get(offer.Supplier)
	if err != nil {
		return err
	}

	holdResult, err := client.Hold(ctx, offer)
	if err != nil {
		return fmt.Errorf("hold: %w", err)
	}
	if !holdResult.Success {
		return fmt.Errorf("%w: %s", supplier.ErrHoldRejected, holdResult.Error)
	}

	confirmResult, err := client.Confirm(ctx, holdResult.Token)
	if err != nil {
		return fmt.Errorf("confirm: %w", err)
	}
	if !confirmResult.Success {
		return fmt.Errorf("%w: %s", supplier.ErrConfirmRejected, confirmResult.Error)
	}

	price := holdResult.Price
	if price == 0 {
		price = offer.Price
	}
	deadline := holdResult.Deadline
	if deadline == nil {
		deadline = offer.Policy.FreeUntil()
	}

	hold := &domain.Hold{
		ID:                   w.genID.Generate(),
		OpportunityID:        &opp.ID,
		HotelID:              opp.HotelID,
		HotelName:            opp.HotelName,
		CheckIn:              opp.CheckIn,
		CheckOut:             opp.CheckOut,
		RoomCategory:         offer.Category,
		Board:                offer.Board,
		Price:                price,
		Currency:             offer.Currency,
		SupplierToken:        holdResult.Token,
		Provider:             offer.Supplier,
		CancellationType:     offer.Policy.Type,
		CancellationDeadline: deadline,
	}
	if err := w.holds.Insert(ctx, hold); err != nil {
		return fmt.Errorf("persist hold: %w", err)
	}

	booking := &domain.Booking{
		ID:                   w.genID.Generate(),
		HoldID:               hold.ID,
		OpportunityID:        &opp.ID,
		HotelID:              opp.HotelID,
		HotelName:            opp.HotelName,
		CheckIn:              opp.CheckIn,
		CheckOut:             opp.CheckOut,
		RoomCategory:         offer.Category,
		Board:                offer.Board,
		ConfirmationRef:      confirmResult.ConfirmationRef,
		Provider:             offer.Supplier,
		Price:                price,
		PushPrice:            opp.TargetSellPrice,
		Currency:             offer.Currency,
		Active:               true,
		Status:               domain.BookingStatusConfirmed,
		CancellationDeadline: deadline,
	}
	if err := w.bookings.Insert(ctx, booking); err != nil {
		return fmt.Errorf("persist booking: %w", err)
	}

	if err := w.opportunities.MarkPurchased(ctx, opp.ID, booking.ID); err != nil {
		return fmt.Errorf("mark opportunity purchased: %w", err)
	}

	w.metrics.PurchaseExecuted(false)
	w.log.Info("purchase confirmed",
		zap.String("booking_id", booking.ID.String()),
		zap.String("confirmation_ref", booking.ConfirmationRef),
		zap.Float64("price", price),
		zap.Float64("resale_price", booking.PushPrice),
	)
	w.notifier.Send(fmt.Sprintf(
		"purchased %s %s→%s at %.2f %s (resale %.2f), booking %s",
		opp.HotelName,
		opp.CheckIn.Format("2006-01-02"),
		opp.CheckOut.Format("2006-01-02"),
		price,
		booking.Currency,
		booking.PushPrice,
		booking.ID,
	))

	// Push immediately; failures are non-fatal and surface later through the
	// audit worker.
	w.pushAfterPurchase(ctx, opp, booking)
	return nil
}

func (w *Worker) pushAfterPurchase(ctx context.Context, opp *domain.Opportunity, booking *domain.Booking) {
	mapping, err := w.mappings.ChannelByHotel(ctx, booking.HotelID)
	if err != nil {
		w.log.Warn("channel mapping lookup failed", zap.Error(err))
		return
	}
	if mapping == nil {
		w.log.Warn("no channel mapping, booking not pushed",
			zap.String("booking_id", booking.ID.String()),
		)
		return
	}

	target := channel.Target{
		BookingID:     &booking.ID,
		OpportunityID: &opp.ID,
		HotelID:       booking.HotelID,
		Mapping:       *mapping,
		From:          booking.CheckIn,
		To:            booking.CheckOut,
	}
	availability, rate := w.pusher.PushBooking(ctx, target, 1, booking.PushPrice, booking.Currency)
	w.metrics.PushAttempt(domain.PushTypeAvailability, availability.Success)
	if availability.Success {
		w.metrics.PushAttempt(domain.PushTypeRate, rate.Success)
	}
	if !availability.Success || !rate.Success {
		w.log.Warn("post-purchase push incomplete, audit will pick it up",
			zap.String("booking_id", booking.ID.String()),
			zap.Bool("availability_ok", availability.Success),
			zap.Bool("rate_ok", rate.Success),
		)
	}
}
