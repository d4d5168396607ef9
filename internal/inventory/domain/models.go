// Package domain contains the persisted entities of the inventory pipeline:
// buying intents, supplier holds, confirmed bookings and their audit trail.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Booking lifecycle statuses.
const (
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
	BookingStatusExpired   = "expired"
)

// Push types recorded in the push log.
const (
	PushTypeAvailability = "availability"
	PushTypeRate         = "rate"
)

// Opportunity is a standing buy configuration: which hotel/date/room to chase
// and at what target prices. Never deleted, only deactivated.
type Opportunity struct {
	ID              snowflake.ID  `gorm:"primaryKey"`
	HotelID         snowflake.ID  `gorm:"not null;index"`
	HotelName       string        `gorm:"type:text;not null"`
	CheckIn         time.Time     `gorm:"not null"`
	CheckOut        time.Time     `gorm:"not null"`
	RoomCategory    string        `gorm:"type:text;not null"`
	Board           string        `gorm:"type:text;not null"`
	TargetBuyPrice  float64       `gorm:"not null"`
	TargetSellPrice float64       `gorm:"not null"`
	MaxRooms        int           `gorm:"not null;default:1"`
	Active          bool          `gorm:"not null;default:true"`
	Purchased       bool          `gorm:"not null;default:false"`
	BookingID       *snowflake.ID `gorm:""`
	CreatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Opportunity) TableName() string { return "opportunities" }

// Hold is a supplier-side price lock. Immutable once written; its outcome is
// carried by the linked Booking.
type Hold struct {
	ID                   snowflake.ID  `gorm:"primaryKey"`
	OpportunityID        *snowflake.ID `gorm:"index"`
	HotelID              snowflake.ID  `gorm:"not null"`
	HotelName            string        `gorm:"type:text;not null"`
	CheckIn              time.Time     `gorm:"not null"`
	CheckOut             time.Time     `gorm:"not null"`
	RoomCategory         string        `gorm:"type:text;not null"`
	Board                string        `gorm:"type:text;not null"`
	Price                float64       `gorm:"not null"`
	Currency             string        `gorm:"type:text;not null;default:EUR"`
	SupplierToken        string        `gorm:"type:text;not null"`
	Provider             string        `gorm:"type:text;not null"`
	CancellationType     string        `gorm:"type:text;not null"`
	CancellationDeadline *time.Time    `gorm:""`
	CreatedAt            time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Hold) TableName() string { return "holds" }

// Booking is a confirmed purchase available for resale. Provider is empty for
// manually entered bookings, which have no upstream cancellation endpoint.
type Booking struct {
	ID                   snowflake.ID  `gorm:"primaryKey"`
	HoldID               snowflake.ID  `gorm:"not null"`
	OpportunityID        *snowflake.ID `gorm:"index"`
	HotelID              snowflake.ID  `gorm:"not null;index"`
	HotelName            string        `gorm:"type:text;not null"`
	CheckIn              time.Time     `gorm:"not null"`
	CheckOut             time.Time     `gorm:"not null"`
	RoomCategory         string        `gorm:"type:text;not null"`
	Board                string        `gorm:"type:text;not null"`
	ConfirmationRef      string        `gorm:"type:text;not null"`
	Provider             string        `gorm:"type:text;not null"`
	Price                float64       `gorm:"not null"`
	PushPrice            float64       `gorm:"not null"`
	Currency             string        `gorm:"type:text;not null;default:EUR"`
	Active               bool          `gorm:"not null;default:true"`
	Sold                 bool          `gorm:"not null;default:false"`
	Status               string        `gorm:"type:text;not null;default:confirmed"`
	CancellationDeadline *time.Time    `gorm:""`
	CreatedAt            time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt            time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Booking) TableName() string { return "bookings" }

// IsManual reports whether the booking was entered by hand rather than bought
// through a supplier client.
func (b Booking) IsManual() bool { return b.Provider == "" }

// Cancellation is one attempt to cancel a booking upstream. Append-only.
type Cancellation struct {
	ID                     snowflake.ID `gorm:"primaryKey"`
	BookingID              snowflake.ID `gorm:"not null;index"`
	HoldID                 snowflake.ID `gorm:"not null"`
	Reason                 string       `gorm:"type:text;not null"`
	RefundAmount           float64      `gorm:"not null;default:0"`
	Fee                    float64      `gorm:"not null;default:0"`
	SupplierCancellationID string       `gorm:"type:text;not null"`
	CreatedAt              time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Cancellation) TableName() string { return "cancellations" }

// PushLog records one downstream delivery attempt, success or not. It is the
// audit system's ground truth for what was ever synced to the channel.
type PushLog struct {
	ID            snowflake.ID      `gorm:"primaryKey"`
	BookingID     *snowflake.ID     `gorm:"index"`
	OpportunityID *snowflake.ID     `gorm:""`
	HotelID       snowflake.ID      `gorm:"not null;default:0"`
	PushType      string            `gorm:"type:text;not null"`
	CorrelationID string            `gorm:"type:text;not null"`
	RequestBody   string            `gorm:"type:text;not null"`
	ResponseBody  *string           `gorm:"type:text"`
	PushedPrice   *float64          `gorm:""`
	Success       bool              `gorm:"not null;default:false"`
	Error         *string           `gorm:"type:text"`
	RetryCount    int               `gorm:"not null;default:0"`
	ProcessingMs  int64             `gorm:"not null;default:0"`
	Metadata      datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (PushLog) TableName() string { return "push_logs" }

// ChannelMapping links a hotel to its codes on the distribution channel.
type ChannelMapping struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	HotelID          snowflake.ID `gorm:"not null;uniqueIndex"`
	ChannelHotelCode string       `gorm:"type:text;not null"`
	RoomTypeCode     string       `gorm:"type:text;not null"`
	RatePlanCode     string       `gorm:"type:text;not null"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ChannelMapping) TableName() string { return "channel_mappings" }

// SupplierHotelCode links a hotel to its identifier on one upstream supplier.
// An opportunity without any supplier code cannot be searched and is skipped.
type SupplierHotelCode struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	HotelID   snowflake.ID `gorm:"not null;index"`
	Supplier  string       `gorm:"type:text;not null"`
	Code      string       `gorm:"type:text;not null"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (SupplierHotelCode) TableName() string { return "supplier_hotel_codes" }
