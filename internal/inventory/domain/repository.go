package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// OpportunityRepository feeds the acquisition worker. NextPending returns the
// oldest-updated active, unpurchased opportunity, or nil when the queue is
// drained.
type OpportunityRepository interface {
	NextPending(ctx context.Context) (*Opportunity, error)
	Touch(ctx context.Context, id snowflake.ID) error
	MarkPurchased(ctx context.Context, id, bookingID snowflake.ID) error
	Insert(ctx context.Context, opp *Opportunity) error
}

type HoldRepository interface {
	Insert(ctx context.Context, hold *Hold) error
	ByID(ctx context.Context, id snowflake.ID) (*Hold, error)
}

type BookingRepository interface {
	Insert(ctx context.Context, booking *Booking) error
	ByID(ctx context.Context, id snowflake.ID) (*Booking, error)
	ListActive(ctx context.Context) ([]Booking, error)
	// ListExpiring returns active, unsold bookings whose cancellation
	// deadline falls before the cutoff, nearest deadline first.
	ListExpiring(ctx context.Context, cutoff time.Time, limit int) ([]Booking, error)
	// Deactivate clears the active flag and sets the final status. The
	// update is idempotent: re-applying it is harmless.
	Deactivate(ctx context.Context, id snowflake.ID, status string) error
	UpdatePushPrice(ctx context.Context, id snowflake.ID, price float64) error
}

type CancellationRepository interface {
	Insert(ctx context.Context, record *Cancellation) error
	// CountSince supports the lifecycle worker's rolling hourly cap.
	CountSince(ctx context.Context, since time.Time) (int64, error)
}

// PushLogRepository is append-only. Insert failures are the caller's problem
// to swallow; the push result must never depend on the log write.
type PushLogRepository interface {
	Insert(ctx context.Context, entry *PushLog) error
	// LatestSuccessful returns, per booking, the most recent successful
	// push log entry of the given type; an empty type matches any type.
	// Bookings without one are absent.
	LatestSuccessful(ctx context.Context, pushType string, bookingIDs []snowflake.ID) (map[snowflake.ID]PushLog, error)
	ListByBooking(ctx context.Context, bookingID snowflake.ID) ([]PushLog, error)
}

type MappingRepository interface {
	ChannelByHotel(ctx context.Context, hotelID snowflake.ID) (*ChannelMapping, error)
	SupplierCodes(ctx context.Context, hotelID snowflake.ID) ([]SupplierHotelCode, error)
	InsertChannelMapping(ctx context.Context, mapping *ChannelMapping) error
	InsertSupplierCode(ctx context.Context, code *SupplierHotelCode) error
}
