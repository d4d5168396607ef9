// Package audit reconciles active bookings against the push log and channel
// mappings, producing the typed problem list the remediation worker consumes.
package audit

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/amitpo23/medici-web03012026-sub001/internal/cache"
	"github.com/amitpo23/medici-web03012026-sub001/internal/clock"
	"github.com/amitpo23/medici-web03012026-sub001/internal/config"
	"github.com/amitpo23/medici-web03012026-sub001/internal/inventory/domain"
	"github.com/amitpo23/medici-web03012026-sub001/internal/observability/metrics"
)

const Name = "audit"

// Problem types.
const (
	ProblemMissingMapping      = "missing_channel_mapping"
	ProblemMissingPush         = "missing_push"
	ProblemPriceMismatch       = "price_mismatch"
	ProblemOverlappingBookings = "overlapping_bookings"
)

const mappingCacheTTL = 5 * time.Minute

// Problem is one detected inconsistency. It carries the booking and, when
// known, the channel mapping, so remediation can act without re-querying.
type Problem struct {
	Type           string                 `json:"type"`
	Booking        domain.Booking         `json:"booking"`
	Mapping        *domain.ChannelMapping `json:"mapping,omitempty"`
	OtherBookingID *snowflake.ID          `json:"other_booking_id,omitempty"`
	Detail         string                 `json:"detail"`
	DetectedAt     time.Time              `json:"detected_at"`
}

type Worker struct {
	cfg config.AuditConfig

	bookings domain.BookingRepository
	pushLogs domain.PushLogRepository
	mappings domain.MappingRepository

	mappingCache *cache.TTL[snowflake.ID, domain.ChannelMapping]

	clk     clock.Clock
	metrics *metrics.Metrics
	log     *zap.Logger

	mu       sync.RWMutex
	problems []Problem
}

func New(
	cfg config.Config,
	bookings domain.BookingRepository,
	pushLogs domain.PushLogRepository,
	mappings domain.MappingRepository,
	clk clock.Clock,
	m *metrics.Metrics,
	log *zap.Logger,
) *Worker {
	return &Worker{
		cfg:          cfg.Workers.Audit,
		bookings:     bookings,
		pushLogs:     pushLogs,
		mappings:     mappings,
		mappingCache: cache.NewTTL[snowflake.ID, domain.ChannelMapping](clk),
		clk:          clk,
		metrics:      m,
		log:          log.Named("worker.audit"),
	}
}

func (w *Worker) Name() string            { return Name }
func (w *Worker) Interval() time.Duration { return w.cfg.Interval }
func (w *Worker) Enabled() bool           { return w.cfg.Enabled }
func (w *Worker) HealthThreshold() int    { return w.cfg.HealthThreshold }

// Problems returns the problem list from the latest completed run.
func (w *Worker) Problems() []Problem {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Problem, len(w.problems))
	copy(out, w.problems)
	return out
}

func (w *Worker) Tick(ctx context.Context) error {
	active, err := w.bookings.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active bookings: %w", err)
	}

	bookingIDs := lo.Map(active, func(b domain.Booking, _ int) snowflake.ID { return b.ID })
	// Existence is judged across every push type; the price comparison still
	// needs the latest rate push specifically.
	anyPushes, err := w.pushLogs.LatestSuccessful(ctx, "", bookingIDs)
	if err != nil {
		return fmt.Errorf("load latest pushes: %w", err)
	}
	ratePushes, err := w.pushLogs.LatestSuccessful(ctx, domain.PushTypeRate, bookingIDs)
	if err != nil {
		return fmt.Errorf("load latest rate pushes: %w", err)
	}

	now := w.clk.Now()
	var problems []Problem
	for _, booking := range active {
		problems = append(problems, w.checkBooking(ctx, booking, anyPushes, ratePushes, now)...)
	}
	problems = append(problems, w.checkOverlaps(active, now)...)

	// Latest-only semantics: this run's list replaces the previous one
	// entirely, even when empty.
	w.mu.Lock()
	w.problems = problems
	w.mu.Unlock()

	counts := lo.CountValuesBy(problems, func(p Problem) string { return p.Type })
	w.metrics.SetAuditProblems(counts)
	if len(problems) > 0 {
		w.log.Warn("audit found problems",
			zap.Int("total", len(problems)),
			zap.Any("by_type", counts),
		)
	} else {
		w.log.Debug("audit clean", zap.Int("active_bookings", len(active)))
	}
	return nil
}

// checkBooking runs the three per-booking checks. The checks are independent:
// a booking with neither mapping nor push yields both problems.
func (w *Worker) checkBooking(ctx context.Context, booking domain.Booking, anyPushes, ratePushes map[snowflake.ID]domain.PushLog, now time.Time) []Problem {
	var problems []Problem

	mapping := w.lookupMapping(ctx, booking.HotelID)
	if mapping == nil {
		problems = append(problems, Problem{
			Type:       ProblemMissingMapping,
			Booking:    booking,
			Detail:     fmt.Sprintf("hotel %s has no channel mapping", booking.HotelID),
			DetectedAt: now,
		})
	}

	if _, pushed := anyPushes[booking.ID]; !pushed {
		problems = append(problems, Problem{
			Type:       ProblemMissingPush,
			Booking:    booking,
			Mapping:    mapping,
			Detail:     "no successful push on record",
			DetectedAt: now,
		})
		return problems
	}

	push, hasRate := ratePushes[booking.ID]
	if hasRate && push.PushedPrice != nil && truncate1(*push.PushedPrice) != truncate1(booking.PushPrice) {
		problems = append(problems, Problem{
			Type:    ProblemPriceMismatch,
			Booking: booking,
			Mapping: mapping,
			Detail: fmt.Sprintf("booking price %.2f vs last pushed %.2f",
				booking.PushPrice, *push.PushedPrice),
			DetectedAt: now,
		})
	}
	return problems
}

// checkOverlaps flags pairs of active bookings for the same hotel, category
// and board whose date ranges intersect.
func (w *Worker) checkOverlaps(active []domain.Booking, now time.Time) []Problem {
	groups := lo.GroupBy(active, func(b domain.Booking) string {
		return fmt.Sprintf("%s|%s|%s", b.HotelID, b.RoomCategory, b.Board)
	})

	var problems []Problem
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			return group[i].CheckIn.Before(group[j].CheckIn)
		})
		// Every pair must be checked, not just neighbors: a long stay can
		// span several later short ones.
		for i := 1; i < len(group); i++ {
			curr := group[i]
			for j := 0; j < i; j++ {
				prev := group[j]
				if !curr.CheckIn.Before(prev.CheckOut) {
					continue
				}
				otherID := prev.ID
				problems = append(problems, Problem{
					Type:           ProblemOverlappingBookings,
					Booking:        curr,
					OtherBookingID: &otherID,
					Detail: fmt.Sprintf("overlaps booking %s (%s to %s)",
						prev.ID,
						prev.CheckIn.Format("2006-01-02"),
						prev.CheckOut.Format("2006-01-02")),
					DetectedAt: now,
				})
			}
		}
	}

	sort.Slice(problems, func(i, j int) bool {
		return problems[i].Booking.CheckIn.Before(problems[j].Booking.CheckIn)
	})
	return problems
}

func (w *Worker) lookupMapping(ctx context.Context, hotelID snowflake.ID) *domain.ChannelMapping {
	if cached, ok := w.mappingCache.Get(hotelID); ok {
		return &cached
	}
	mapping, err := w.mappings.ChannelByHotel(ctx, hotelID)
	if err != nil {
		w.log.Warn("channel mapping lookup failed",
			zap.String("hotel_id", hotelID.String()),
			zap.Error(err),
		)
		return nil
	}
	if mapping == nil {
		return nil
	}
	w.mappingCache.Set(hotelID, *mapping, mappingCacheTTL)
	return mapping
}

// truncate1 cuts a price to one decimal without rounding. Drift detection
// deliberately uses this blunt band so 120.07 and 120.04 compare equal.
func truncate1(price float64) float64 {
	return math.Trunc(price*10) / 10
}
