// Package remediation consumes the audit problem list and applies the fixes
// that are safe to automate, deferring everything that needs human judgment.
package remediation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/amitpo23/medici-web03012026-sub001/internal/channel"
	"github.com/amitpo23/medici-web03012026-sub001/internal/clock"
	"github.com/amitpo23/medici-web03012026-sub001/internal/config"
	"github.com/amitpo23/medici-web03012026-sub001/internal/inventory/domain"
	"github.com/amitpo23/medici-web03012026-sub001/internal/observability/metrics"
	"github.com/amitpo23/medici-web03012026-sub001/internal/worker/audit"
)

const Name = "remediation"

// Outcome states for one handled problem.
const (
	OutcomeFixed   = "fixed"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// ProblemSource is the audit worker's read surface. Injecting it here keeps
// the dependency one-directional: audit never knows remediation exists.
type ProblemSource interface {
	Problems() []audit.Problem
}

// Action records how one problem was handled in the last run.
type Action struct {
	Problem audit.Problem `json:"problem"`
	Outcome string        `json:"outcome"`
	Reason  string        `json:"reason"`
	At      time.Time     `json:"at"`
}

type Worker struct {
	cfg config.RemediationConfig

	source  ProblemSource
	pusher  *channel.Client
	clk     clock.Clock
	metrics *metrics.Metrics
	log     *zap.Logger
}

func New(
	cfg config.Config,
	source ProblemSource,
	pusher *channel.Client,
	clk clock.Clock,
	m *metrics.Metrics,
	log *zap.Logger,
) *Worker {
	return &Worker{
		cfg:     cfg.Workers.Remediation,
		source:  source,
		pusher:  pusher,
		clk:     clk,
		metrics: m,
		log:     log.Named("worker.remediation"),
	}
}

func (w *Worker) Name() string            { return Name }
func (w *Worker) Interval() time.Duration { return w.cfg.Interval }
func (w *Worker) Enabled() bool           { return w.cfg.Enabled }
func (w *Worker) HealthThreshold() int    { return w.cfg.HealthThreshold }

func (w *Worker) Tick(ctx context.Context) error {
	problems := w.source.Problems()
	if len(problems) == 0 {
		return nil
	}

	var fixed, skipped, failed int
	for _, problem := range problems {
		action := w.handle(ctx, problem)
		switch action.Outcome {
		case OutcomeFixed:
			fixed++
		case OutcomeFailed:
			failed++
		default:
			skipped++
		}
		w.log.Info("problem handled",
			zap.String("problem_type", problem.Type),
			zap.String("booking_id", problem.Booking.ID.String()),
			zap.String("outcome", action.Outcome),
			zap.String("reason", action.Reason),
		)
	}

	w.log.Info("remediation run complete",
		zap.Int("fixed", fixed),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
	return nil
}

func (w *Worker) handle(ctx context.Context, problem audit.Problem) Action {
	action := Action{Problem: problem, At: w.clk.Now()}

	switch problem.Type {
	case audit.ProblemMissingPush:
		if problem.Mapping == nil {
			action.Outcome = OutcomeSkipped
			action.Reason = "no channel mapping, nothing to push against"
			return action
		}
		if err := w.closeRoom(ctx, problem); err != nil {
			// Tried and failed is not the same as chose not to act.
			action.Outcome = OutcomeFailed
			action.Reason = err.Error()
			return action
		}
		action.Outcome = OutcomeFixed
		action.Reason = "pushed zero availability to close the unsynced room"
		return action

	case audit.ProblemMissingMapping:
		action.Outcome = OutcomeSkipped
		action.Reason = "mapping must be created by an operator"
		return action

	case audit.ProblemPriceMismatch:
		action.Outcome = OutcomeSkipped
		action.Reason = "price drift needs review, not blind re-push"
		return action

	case audit.ProblemOverlappingBookings:
		action.Outcome = OutcomeSkipped
		action.Reason = "overlap resolution requires choosing which booking to keep"
		return action

	default:
		action.Outcome = OutcomeSkipped
		action.Reason = fmt.Sprintf("no handler for problem type %q", problem.Type)
		return action
	}
}

// closeRoom pushes zero availability for an unsynced booking. Selling a room
// the channel never learned about is the dangerous state; closing it is the
// safe automated move.
func (w *Worker) closeRoom(ctx context.Context, problem audit.Problem) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("fix panicked: %v", recovered)
		}
	}()

	booking := problem.Booking
	target := channel.Target{
		BookingID:     &booking.ID,
		OpportunityID: booking.OpportunityID,
		HotelID:       booking.HotelID,
		Mapping:       *problem.Mapping,
		From:          booking.CheckIn,
		To:            booking.CheckOut,
	}
	availability, _ := w.pusher.CloseBooking(ctx, target, booking.PushPrice, booking.Currency)
	w.metrics.PushAttempt(domain.PushTypeAvailability, availability.Success)
	if !availability.Success {
		if availability.Err != nil {
			return fmt.Errorf("zero-availability push failed: %w", availability.Err)
		}
		return fmt.Errorf("zero-availability push failed")
	}
	return nil
}
