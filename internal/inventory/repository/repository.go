// Package repository implements the inventory persistence interfaces on gorm.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/amitpo23/medici-web03012026-sub001/internal/clock"
	"github.com/amitpo23/medici-web03012026-sub001/internal/inventory/domain"
)

type OpportunityRepo struct {
	db  *gorm.DB
	clk clock.Clock
}

func NewOpportunityRepo(db *gorm.DB, clk clock.Clock) *OpportunityRepo {
	return &OpportunityRepo{db: db, clk: clk}
}

func (r *OpportunityRepo) NextPending(ctx context.Context) (*domain.Opportunity, error) {
	var opp domain.Opportunity
	err := r.db.WithContext(ctx).
		Where("active = ? AND purchased = ?", true, false).
		Order("updated_at ASC").
		Limit(1).
		Find(&opp).Error
	if err != nil {
		return nil, err
	}
	if opp.ID == 0 {
		return nil, nil
	}
	return &opp, nil
}

// Touch advances updated_at so the next poll picks a different opportunity.
func (r *OpportunityRepo) Touch(ctx context.Context, id snowflake.ID) error {
	return r.db.WithContext(ctx).
		Model(&domain.Opportunity{}).
		Where("id = ?", id).
		Update("updated_at", r.clk.Now()).Error
}

func (r *OpportunityRepo) MarkPurchased(ctx context.Context, id, bookingID snowflake.ID) error {
	now := r.clk.Now()
	return r.db.WithContext(ctx).
		Model(&domain.Opportunity{}).
		Where("id = ? AND purchased = ?", id, false).
		Updates(map[string]any{
			"purchased":  true,
			"booking_id": bookingID,
			"updated_at": now,
		}).Error
}

func (r *OpportunityRepo) Insert(ctx context.Context, opp *domain.Opportunity) error {
	if opp == nil || opp.ID == 0 {
		return errors.New("invalid_opportunity")
	}
	return r.db.WithContext(ctx).Create(opp).Error
}

type HoldRepo struct {
	db *gorm.DB
}

func NewHoldRepo(db *gorm.DB) *HoldRepo {
	return &HoldRepo{db: db}
}

func (r *HoldRepo) Insert(ctx context.Context, hold *domain.Hold) error {
	if hold == nil || hold.ID == 0 {
		return errors.New("invalid_hold")
	}
	return r.db.WithContext(ctx).Create(hold).Error
}

func (r *HoldRepo) ByID(ctx context.Context, id snowflake.ID) (*domain.Hold, error) {
	var hold domain.Hold
	err := r.db.WithContext(ctx).Where("id = ?", id).Find(&hold).Error
	if err != nil {
		return nil, err
	}
	if hold.ID == 0 {
		return nil, nil
	}
	return &hold, nil
}

type BookingRepo struct {
	db  *gorm.DB
	clk clock.Clock
}

func NewBookingRepo(db *gorm.DB, clk clock.Clock) *BookingRepo {
	return &BookingRepo{db: db, clk: clk}
}

func (r *BookingRepo) Insert(ctx context.Context, booking *domain.Booking) error {
	if booking == nil || booking.ID == 0 {
		return errors.New("invalid_booking")
	}
	return r.db.WithContext(ctx).Create(booking).Error
}

func (r *BookingRepo) ByID(ctx context.Context, id snowflake.ID) (*domain.Booking, error) {
	var booking domain.Booking
	err := r.db.WithContext(ctx).Where("id = ?", id).Find(&booking).Error
	if err != nil {
		return nil, err
	}
	if booking.ID == 0 {
		return nil, nil
	}
	return &booking, nil
}

func (r *BookingRepo) ListActive(ctx context.Context) ([]domain.Booking, error) {
	var bookings []domain.Booking
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("check_in ASC, id ASC").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *BookingRepo) ListExpiring(ctx context.Context, cutoff time.Time, limit int) ([]domain.Booking, error) {
	var bookings []domain.Booking
	err := r.db.WithContext(ctx).
		Where("active = ? AND sold = ? AND cancellation_deadline IS NOT NULL AND cancellation_deadline <= ?",
			true, false, cutoff).
		Order("cancellation_deadline ASC").
		Limit(limit).
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *BookingRepo) Deactivate(ctx context.Context, id snowflake.ID, status string) error {
	return r.db.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"active":     false,
			"status":     status,
			"updated_at": r.clk.Now(),
		}).Error
}

func (r *BookingRepo) UpdatePushPrice(ctx context.Context, id snowflake.ID, price float64) error {
	return r.db.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"push_price": price,
			"updated_at": r.clk.Now(),
		}).Error
}

type CancellationRepo struct {
	db *gorm.DB
}

func NewCancellationRepo(db *gorm.DB) *CancellationRepo {
	return &CancellationRepo{db: db}
}

func (r *CancellationRepo) Insert(ctx context.Context, record *domain.Cancellation) error {
	if record == nil || record.ID == 0 {
		return errors.New("invalid_cancellation")
	}
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *CancellationRepo) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Cancellation{}).
		Where("created_at >= ?", since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

type PushLogRepo struct {
	db *gorm.DB
}

func NewPushLogRepo(db *gorm.DB) *PushLogRepo {
	return &PushLogRepo{db: db}
}

func (r *PushLogRepo) Insert(ctx context.Context, entry *domain.PushLog) error {
	if entry == nil || entry.ID == 0 {
		return errors.New("invalid_push_log")
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *PushLogRepo) LatestSuccessful(ctx context.Context, pushType string, bookingIDs []snowflake.ID) (map[snowflake.ID]domain.PushLog, error) {
	if len(bookingIDs) == 0 {
		return map[snowflake.ID]domain.PushLog{}, nil
	}
	query := r.db.WithContext(ctx).
		Where("success = ? AND booking_id IN ?", true, bookingIDs)
	if pushType != "" {
		query = query.Where("push_type = ?", pushType)
	}
	var entries []domain.PushLog
	err := query.
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	// Ascending scan leaves the most recent entry per booking in the map.
	latest := make(map[snowflake.ID]domain.PushLog, len(bookingIDs))
	for _, entry := range entries {
		if entry.BookingID == nil {
			continue
		}
		latest[*entry.BookingID] = entry
	}
	return latest, nil
}

func (r *PushLogRepo) ListByBooking(ctx context.Context, bookingID snowflake.ID) ([]domain.PushLog, error) {
	var entries []domain.PushLog
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

type MappingRepo struct {
	db *gorm.DB
}

func NewMappingRepo(db *gorm.DB) *MappingRepo {
	return &MappingRepo{db: db}
}

func (r *MappingRepo) ChannelByHotel(ctx context.Context, hotelID snowflake.ID) (*domain.ChannelMapping, error) {
	var mapping domain.ChannelMapping
	err := r.db.WithContext(ctx).Where("hotel_id = ?", hotelID).Find(&mapping).Error
	if err != nil {
		return nil, err
	}
	if mapping.ID == 0 {
		return nil, nil
	}
	return &mapping, nil
}

func (r *MappingRepo) SupplierCodes(ctx context.Context, hotelID snowflake.ID) ([]domain.SupplierHotelCode, error) {
	var codes []domain.SupplierHotelCode
	err := r.db.WithContext(ctx).Where("hotel_id = ?", hotelID).Find(&codes).Error
	if err != nil {
		return nil, err
	}
	return codes, nil
}

func (r *MappingRepo) InsertChannelMapping(ctx context.Context, mapping *domain.ChannelMapping) error {
	if mapping == nil || mapping.ID == 0 {
		return errors.New("invalid_channel_mapping")
	}
	return r.db.WithContext(ctx).Create(mapping).Error
}

func (r *MappingRepo) InsertSupplierCode(ctx context.Context, code *domain.SupplierHotelCode) error {
	if code == nil || code.ID == 0 {
		return errors.New("invalid_supplier_code")
	}
	return r.db.WithContext(ctx).Create(code).Error
}
