// Package supplier defines the uniform interface to upstream room suppliers
// and the normalized result shapes all adapters map into.
package supplier

import (
	"context"
	"errors"
	"time"
)

var (
	ErrSupplierNotFound = errors.New("supplier_not_found")
	ErrHoldRejected     = errors.New("hold_rejected")
	ErrConfirmRejected  = errors.New("confirm_rejected")
	ErrCancelRejected   = errors.New("cancel_rejected")
)

// Booking states reported by GetStatus.
const (
	StateConfirmed = "confirmed"
	StateCancelled = "cancelled"
	StateUnknown   = "unknown"
)

type SearchCriteria struct {
	HotelCode string
	HotelName string
	CheckIn   time.Time
	CheckOut  time.Time
	Adults    int
	Currency  string
}

// Penalty is the cost of cancelling inside one policy frame.
type Penalty struct {
	Amount  float64
	Percent float64
}

// PolicyFrame is one window of a cancellation policy, ordered from the
// earliest window onward. A zero penalty in the first frame means free
// cancellation until that frame ends.
type PolicyFrame struct {
	From    *time.Time
	To      *time.Time
	Penalty Penalty
}

type CancellationPolicy struct {
	Type     string
	Deadline *time.Time
	Frames   []PolicyFrame
}

// FreeUntil returns the free-cancellation deadline, or nil when the policy is
// non-refundable or unknown.
func (p CancellationPolicy) FreeUntil() *time.Time {
	if p.Deadline != nil {
		return p.Deadline
	}
	if len(p.Frames) > 0 && p.Frames[0].Penalty.Amount == 0 && p.Frames[0].Penalty.Percent == 0 {
		return p.Frames[0].To
	}
	return nil
}

// RoomOffer is one bookable room normalized across suppliers.
type RoomOffer struct {
	Supplier  string
	HotelCode string
	HotelName string
	Category  string
	Board     string
	Price     float64
	Currency  string
	// Token addresses this exact offer in subsequent hold calls.
	Token  string
	Policy CancellationPolicy
}

type HoldResult struct {
	Success  bool
	Token    string
	Price    float64
	Deadline *time.Time
	Error    string
}

type ConfirmResult struct {
	Success         bool
	ConfirmationRef string
	Error           string
}

type CancelResult struct {
	Success        bool
	CancellationID string
	RefundAmount   float64
	Fee            float64
	Error          string
}

type BookingStatus struct {
	State           string
	ConfirmationRef string
}

// Client is the uniform interface to one upstream supplier. Implementations
// must be safe for concurrent use; every call honors ctx cancellation.
type Client interface {
	Name() string
	Search(ctx context.Context, criteria SearchCriteria) ([]RoomOffer, error)
	Hold(ctx context.Context, offer RoomOffer) (*HoldResult, error)
	Confirm(ctx context.Context, holdToken string) (*ConfirmResult, error)
	Cancel(ctx context.Context, confirmationRef string) (*CancelResult, error)
	GetStatus(ctx context.Context, confirmationRef string) (*BookingStatus, error)
}
