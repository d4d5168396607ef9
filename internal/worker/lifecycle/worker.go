// Package lifecycle cancels unsold bookings whose free-cancellation deadline
// is approaching, upstream at the supplier and downstream on the channel.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/amitpo23/medici-web03012026-sub001/internal/channel"
	"github.com/amitpo23/medici-web03012026-sub001/internal/clock"
	"github.com/amitpo23/medici-web03012026-sub001/internal/config"
	"github.com/amitpo23/medici-web03012026-sub001/internal/inventory/domain"
	"github.com/amitpo23/medici-web03012026-sub001/internal/notify"
	"github.com/amitpo23/medici-web03012026-sub001/internal/observability/metrics"
	"github.com/amitpo23/medici-web03012026-sub001/internal/supplier"
)

const Name = "lifecycle"

const reasonDeadline = "cancellation deadline approaching"

type Worker struct {
	cfg config.LifecycleConfig

	bookings      domain.BookingRepository
	holds         domain.HoldRepository
	cancellations domain.CancellationRepository
	mappings      domain.MappingRepository

	registry *supplier.Registry
	pusher   *channel.Client

	clk      clock.Clock
	genID    *snowflake.Node
	metrics  *metrics.Metrics
	notifier notify.Notifier
	log      *zap.Logger
}

func New(
	cfg config.Config,
	bookings domain.BookingRepository,
	holds domain.HoldRepository,
	cancellations domain.CancellationRepository,
	mappings domain.MappingRepository,
	registry *supplier.Registry,
	pusher *channel.Client,
	clk clock.Clock,
	genID *snowflake.Node,
	m *metrics.Metrics,
	notifier notify.Notifier,
	log *zap.Logger,
) *Worker {
	return &Worker{
		cfg:           cfg.Workers.Lifecycle,
		bookings:      bookings,
		holds:         holds,
		cancellations: cancellations,
		mappings:      mappings,
		registry:      registry,
		pusher:        pusher,
		clk:           clk,
		genID:         genID,
		metrics:       m,
		notifier:      notifier,
		log:           log.Named("worker.lifecycle"),
	}
}

func (w *Worker) Name() string            { return Name }
func (w *Worker) Interval() time.Duration { return w.cfg.Interval }
func (w *Worker) Enabled() bool           { return w.cfg.Enabled }
func (w *Worker) HealthThreshold() int    { return w.cfg.HealthThreshold }

func (w *Worker) Tick(ctx context.Context) error {
	now := w.clk.Now()
	cutoff := now.Add(w.cfg.Horizon)

	candidates, err := w.bookings.ListExpiring(ctx, cutoff, w.cfg.HourlyCap)
	if err != nil {
		return fmt.Errorf("list expiring bookings: %w", err)
	}
	if len(candidates) == 0 {
		return nil
	}
	w.log.Info("expiring bookings found",
		zap.Int("count", len(candidates)),
		zap.Time("cutoff", cutoff),
	)

	var errs []error
	for _, booking := range candidates {
		// The cap is rolling: counted against the last hour's records, not
		// this run's, so a burst across two runs still respects it. Once hit,
		// the rest of the candidates wait for the next scheduled run.
		recent, err := w.cancellations.CountSince(ctx, w.clk.Now().Add(-time.Hour))
		if err != nil {
			return fmt.Errorf("count recent cancellations: %w", err)
		}
		if recent >= int64(w.cfg.HourlyCap) {
			w.log.Warn("hourly cancellation cap reached, deferring remaining candidates",
				zap.Int64("recent", recent),
				zap.Int("cap", w.cfg.HourlyCap),
			)
			break
		}

		if err := w.cancel(ctx, booking); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *Worker) cancel(ctx context.Context, booking domain.Booking) error {
	log := w.log.With(
		zap.String("booking_id", booking.ID.String()),
		zap.String("hotel", booking.HotelName),
		zap.String("provider", booking.Provider),
	)

	if booking.IsManual() {
		// Manual bookings have no upstream endpoint; local deactivation is
		// the whole cancellation.
		if err := w.bookings.Deactivate(ctx, booking.ID, domain.BookingStatusCancelled); err != nil {
			return fmt.Errorf("deactivate manual booking %s: %w", booking.ID, err)
		}
		w.recordCancellation(ctx, booking, "manual booking, deactivated locally", nil)
		w.metrics.CancellationExecuted()
		log.Info("manual booking deactivated")
		w.closeDownstream(ctx, booking)
		return nil
	}

	client, err := w.registry.Get(booking.Provider)
	if err != nil {
		w.escalate(booking, fmt.Sprintf("unknown provider %q", booking.Provider))
		log.Error("provider has no configured client", zap.Error(err))
		return nil
	}

	// Refresh upstream state first; a booking the supplier already cancelled
	// needs no cancel call, just local catch-up.
	if status, err := client.GetStatus(ctx, booking.ConfirmationRef); err == nil && status.State == supplier.StateCancelled {
		if err := w.bookings.Deactivate(ctx, booking.ID, domain.BookingStatusCancelled); err != nil {
			return fmt.Errorf("deactivate already-cancelled booking %s: %w", booking.ID, err)
		}
		log.Info("booking already cancelled upstream, state synced")
		w.closeDownstream(ctx, booking)
		return nil
	}

	result, err := client.Cancel(ctx, booking.ConfirmationRef)
	if err != nil || !result.Success {
		detail := "cancel rejected"
		if err != nil {
			detail = err.Error()
		} else if result.Error != "" {
			detail = result.Error
		}
		// The booking stays untouched. A human must cancel by hand before the
		// free-cancellation window closes.
		w.escalate(booking, detail)
		log.Error("supplier cancellation failed, escalated", zap.String("detail", detail))
		return nil
	}

	w.recordCancellation(ctx, booking, reasonDeadline, result)
	if err := w.bookings.Deactivate(ctx, booking.ID, domain.BookingStatusCancelled); err != nil {
		return fmt.Errorf("deactivate booking %s: %w", booking.ID, err)
	}
	w.metrics.CancellationExecuted()
	log.Info("booking cancelled upstream",
		zap.String("cancellation_id", result.CancellationID),
		zap.Float64("refund", result.RefundAmount),
		zap.Float64("fee", result.Fee),
	)

	w.closeDownstream(ctx, booking)
	return nil
}

func (w *Worker) recordCancellation(ctx context.Context, booking domain.Booking, reason string, result *supplier.CancelResult) {
	record := &domain.Cancellation{
		ID:        w.genID.Generate(),
		BookingID: booking.ID,
		HoldID:    booking.HoldID,
		Reason:    reason,
	}
	if result != nil {
		record.RefundAmount = result.RefundAmount
		record.Fee = result.Fee
		record.SupplierCancellationID = result.CancellationID
	}
	if err := w.cancellations.Insert(ctx, record); err != nil {
		w.log.Error("cancellation record write failed",
			zap.String("booking_id", booking.ID.String()),
			zap.Error(err),
		)
	}
}

// closeDownstream takes the cancelled room off sale on the channel. Push
// failures are logged only; the audit worker catches lingering drift.
func (w *Worker) closeDownstream(ctx context.Context, booking domain.Booking) {
	mapping, err := w.mappings.ChannelByHotel(ctx, booking.HotelID)
	if err != nil || mapping == nil {
		w.log.Warn("no channel mapping, cancelled booking not closed downstream",
			zap.String("booking_id", booking.ID.String()),
		)
		return
	}

	target := channel.Target{
		BookingID:     &booking.ID,
		OpportunityID: booking.OpportunityID,
		HotelID:       booking.HotelID,
		Mapping:       *mapping,
		From:          booking.CheckIn,
		To:            booking.CheckOut,
	}
	availability, _ := w.pusher.CloseBooking(ctx, target, booking.PushPrice, booking.Currency)
	w.metrics.PushAttempt(domain.PushTypeAvailability, availability.Success)
	if !availability.Success {
		w.log.Warn("zero-availability push failed after cancellation",
			zap.String("booking_id", booking.ID.String()),
		)
	}
}

func (w *Worker) escalate(booking domain.Booking, detail string) {
	w.notifier.Send(fmt.Sprintf(
		"MANUAL CANCELLATION NEEDED: booking %s (%s, %s→%s, ref %s, %s %.2f) could not be cancelled: %s",
		booking.ID,
		booking.HotelName,
		booking.CheckIn.Format("2006-01-02"),
		booking.CheckOut.Format("2006-01-02"),
		booking.ConfirmationRef,
		booking.Currency,
		booking.Price,
		detail,
	))
}
