package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/amitpo23/medici-web03012026-sub001/internal/clock"
	"github.com/amitpo23/medici-web03012026-sub001/internal/inventory/domain"
)

func testClock() *clock.Fake {
	return clock.NewFake(time.Date(2026, 9, 2, 12, 0, 0, 0, time.UTC))
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&domain.Opportunity{},
		&domain.Hold{},
		&domain.Booking{},
		&domain.Cancellation{},
		&domain.PushLog{},
		&domain.ChannelMapping{},
		&domain.SupplierHotelCode{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func insertOpportunity(t *testing.T, db *gorm.DB, id int64, updatedAt time.Time, active, purchased bool) {
	t.Helper()
	opp := domain.Opportunity{
		ID:              snowflake.ID(id),
		HotelID:         snowflake.ID(7),
		HotelName:       "Grand Hotel",
		CheckIn:         time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		CheckOut:        time.Date(2026, 10, 3, 0, 0, 0, 0, time.UTC),
		RoomCategory:    "double",
		Board:           "breakfast",
		TargetBuyPrice:  100,
		TargetSellPrice: 120,
		MaxRooms:        1,
		Active:          active,
		Purchased:       purchased,
		CreatedAt:       updatedAt,
		UpdatedAt:       updatedAt,
	}
	if err := db.Create(&opp).Error; err != nil {
		t.Fatalf("insert opportunity %d: %v", id, err)
	}
}

func TestNextPendingPicksOldestUpdated(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOpportunityRepo(db, testClock())
	ctx := context.Background()

	base := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	insertOpportunity(t, db, 1, base.Add(2*time.Hour), true, false)
	insertOpportunity(t, db, 2, base, true, false)
	insertOpportunity(t, db, 3, base.Add(-time.Hour), false, false)
	insertOpportunity(t, db, 4, base.Add(-2*time.Hour), true, true)

	opp, err := repo.NextPending(ctx)
	if err != nil {
		t.Fatalf("next pending: %v", err)
	}
	if opp == nil || opp.ID != snowflake.ID(2) {
		t.Fatalf("expected opportunity 2 (oldest active unpurchased), got %+v", opp)
	}
}

func TestNextPendingEmptyQueue(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOpportunityRepo(db, testClock())

	opp, err := repo.NextPending(context.Background())
	if err != nil {
		t.Fatalf("next pending: %v", err)
	}
	if opp != nil {
		t.Fatalf("expected nil on empty queue, got %+v", opp)
	}
}

func TestTouchRotatesTheQueue(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOpportunityRepo(db, testClock())
	ctx := context.Background()

	base := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	insertOpportunity(t, db, 1, base, true, false)
	insertOpportunity(t, db, 2, base.Add(time.Hour), true, false)

	if err := repo.Touch(ctx, snowflake.ID(1)); err != nil {
		t.Fatalf("touch: %v", err)
	}
	opp, err := repo.NextPending(ctx)
	if err != nil {
		t.Fatalf("next pending: %v", err)
	}
	if opp == nil || opp.ID != snowflake.ID(2) {
		t.Fatalf("expected opportunity 2 after touching 1, got %+v", opp)
	}
}

func TestTouchStampsTheInjectedClock(t *testing.T) {
	db := setupTestDB(t)
	clk := testClock()
	repo := NewOpportunityRepo(db, clk)
	ctx := context.Background()

	insertOpportunity(t, db, 1, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), true, false)
	clk.Advance(45 * time.Minute)

	if err := repo.Touch(ctx, snowflake.ID(1)); err != nil {
		t.Fatalf("touch: %v", err)
	}

	var opp domain.Opportunity
	if err := db.First(&opp, "id = ?", snowflake.ID(1)).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !opp.UpdatedAt.Equal(clk.Now()) {
		t.Fatalf("expected updated_at %v from the clock, got %v", clk.Now(), opp.UpdatedAt)
	}
}

func TestMarkPurchasedLinksBooking(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOpportunityRepo(db, testClock())
	ctx := context.Background()

	insertOpportunity(t, db, 1, time.Now().UTC(), true, false)
	if err := repo.MarkPurchased(ctx, snowflake.ID(1), snowflake.ID(99)); err != nil {
		t.Fatalf("mark purchased: %v", err)
	}

	var opp domain.Opportunity
	if err := db.First(&opp, "id = ?", snowflake.ID(1)).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !opp.Purchased || opp.BookingID == nil || *opp.BookingID != snowflake.ID(99) {
		t.Fatalf("purchase link not applied: %+v", opp)
	}

	if next, _ := repo.NextPending(ctx); next != nil {
		t.Fatalf("purchased opportunity still pending")
	}
}

func insertBooking(t *testing.T, db *gorm.DB, id int64, deadline *time.Time, active, sold bool) {
	t.Helper()
	booking := domain.Booking{
		ID:                   snowflake.ID(id),
		HoldID:               snowflake.ID(id + 1000),
		HotelID:              snowflake.ID(7),
		HotelName:            "Grand Hotel",
		CheckIn:              time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		CheckOut:             time.Date(2026, 10, 3, 0, 0, 0, 0, time.UTC),
		RoomCategory:         "double",
		Board:                "breakfast",
		ConfirmationRef:      "CONF",
		Provider:             "innstant",
		Price:                95,
		PushPrice:            120,
		Currency:             "EUR",
		Active:               active,
		Sold:                 sold,
		Status:               domain.BookingStatusConfirmed,
		CancellationDeadline: deadline,
	}
	if err := db.Create(&booking).Error; err != nil {
		t.Fatalf("insert booking %d: %v", id, err)
	}
}

func TestListExpiringFiltersAndOrders(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBookingRepo(db, testClock())
	ctx := context.Background()

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	near := now.Add(6 * time.Hour)
	later := now.Add(20 * time.Hour)
	far := now.Add(72 * time.Hour)

	insertBooking(t, db, 1, &later, true, false)
	insertBooking(t, db, 2, &near, true, false)
	insertBooking(t, db, 3, &far, true, false)
	insertBooking(t, db, 4, &near, false, false)
	insertBooking(t, db, 5, &near, true, true)
	insertBooking(t, db, 6, nil, true, false)

	expiring, err := repo.ListExpiring(ctx, now.Add(24*time.Hour), 10)
	if err != nil {
		t.Fatalf("list expiring: %v", err)
	}
	if len(expiring) != 2 {
		t.Fatalf("expected 2 expiring bookings, got %d", len(expiring))
	}
	if expiring[0].ID != snowflake.ID(2) || expiring[1].ID != snowflake.ID(1) {
		t.Fatalf("expected nearest deadline first, got %v then %v", expiring[0].ID, expiring[1].ID)
	}
}

func TestDeactivateIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBookingRepo(db, testClock())
	ctx := context.Background()

	insertBooking(t, db, 1, nil, true, false)
	if err := repo.Deactivate(ctx, snowflake.ID(1), domain.BookingStatusCancelled); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := repo.Deactivate(ctx, snowflake.ID(1), domain.BookingStatusCancelled); err != nil {
		t.Fatalf("second deactivate: %v", err)
	}

	var booking domain.Booking
	if err := db.First(&booking, "id = ?", snowflake.ID(1)).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if booking.Active || booking.Status != domain.BookingStatusCancelled {
		t.Fatalf("booking not deactivated: %+v", booking)
	}
}

func TestCountSinceWindowsTheCap(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCancellationRepo(db)
	ctx := context.Background()

	now := time.Now().UTC()
	old := domain.Cancellation{
		ID: snowflake.ID(1), BookingID: snowflake.ID(1), HoldID: snowflake.ID(1),
		Reason: "old", CreatedAt: now.Add(-2 * time.Hour),
	}
	recent := domain.Cancellation{
		ID: snowflake.ID(2), BookingID: snowflake.ID(2), HoldID: snowflake.ID(2),
		Reason: "recent", CreatedAt: now.Add(-10 * time.Minute),
	}
	if err := db.Create(&old).Error; err != nil {
		t.Fatalf("insert old: %v", err)
	}
	if err := db.Create(&recent).Error; err != nil {
		t.Fatalf("insert recent: %v", err)
	}

	count, err := repo.CountSince(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("count since: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 cancellation in window, got %d", count)
	}
}

func TestLatestSuccessfulKeepsMostRecentPerBooking(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPushLogRepo(db)
	ctx := context.Background()

	bookingID := snowflake.ID(1)
	now := time.Now().UTC()
	prices := []float64{100, 110}
	for i, price := range prices {
		p := price
		entry := domain.PushLog{
			ID:            snowflake.ID(10 + i),
			BookingID:     &bookingID,
			PushType:      domain.PushTypeRate,
			CorrelationID: "c",
			RequestBody:   "<request/>",
			PushedPrice:   &p,
			Success:       true,
			CreatedAt:     now.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Insert(ctx, &entry); err != nil {
			t.Fatalf("insert entry %d: %v", i, err)
		}
	}
	failed := domain.PushLog{
		ID:            snowflake.ID(20),
		BookingID:     &bookingID,
		PushType:      domain.PushTypeRate,
		CorrelationID: "c",
		RequestBody:   "<request/>",
		Success:       false,
		CreatedAt:     now.Add(time.Hour),
	}
	if err := repo.Insert(ctx, &failed); err != nil {
		t.Fatalf("insert failed entry: %v", err)
	}

	latest, err := repo.LatestSuccessful(ctx, domain.PushTypeRate, []snowflake.ID{bookingID})
	if err != nil {
		t.Fatalf("latest successful: %v", err)
	}
	entry, ok := latest[bookingID]
	if !ok {
		t.Fatalf("expected an entry for the booking")
	}
	if entry.PushedPrice == nil || *entry.PushedPrice != 110 {
		t.Fatalf("expected the most recent successful push (110), got %v", entry.PushedPrice)
	}
}

func TestLatestSuccessfulEmptyTypeMatchesAnyType(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPushLogRepo(db)
	ctx := context.Background()

	bookingID := snowflake.ID(1)
	entry := domain.PushLog{
		ID:            snowflake.ID(10),
		BookingID:     &bookingID,
		PushType:      domain.PushTypeAvailability,
		CorrelationID: "c",
		RequestBody:   "<request/>",
		Success:       true,
		CreatedAt:     time.Now().UTC(),
	}
	if err := repo.Insert(ctx, &entry); err != nil {
		t.Fatalf("insert entry: %v", err)
	}

	rateOnly, err := repo.LatestSuccessful(ctx, domain.PushTypeRate, []snowflake.ID{bookingID})
	if err != nil {
		t.Fatalf("latest successful: %v", err)
	}
	if len(rateOnly) != 0 {
		t.Fatalf("rate-typed query must not match an availability push, got %v", rateOnly)
	}

	anyType, err := repo.LatestSuccessful(ctx, "", []snowflake.ID{bookingID})
	if err != nil {
		t.Fatalf("latest successful: %v", err)
	}
	if got, ok := anyType[bookingID]; !ok || got.PushType != domain.PushTypeAvailability {
		t.Fatalf("untyped query must match any push type, got %v", anyType)
	}
}

func TestLatestSuccessfulEmptyInput(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPushLogRepo(db)

	latest, err := repo.LatestSuccessful(context.Background(), domain.PushTypeRate, nil)
	if err != nil {
		t.Fatalf("latest successful: %v", err)
	}
	if len(latest) != 0 {
		t.Fatalf("expected empty map, got %v", latest)
	}
}

func TestChannelByHotelMissingIsNil(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMappingRepo(db)
	ctx := context.Background()

	mapping, err := repo.ChannelByHotel(ctx, snowflake.ID(7))
	if err != nil {
		t.Fatalf("channel by hotel: %v", err)
	}
	if mapping != nil {
		t.Fatalf("expected nil for unmapped hotel, got %+v", mapping)
	}

	if err := repo.InsertChannelMapping(ctx, &domain.ChannelMapping{
		ID:               snowflake.ID(1),
		HotelID:          snowflake.ID(7),
		ChannelHotelCode: "CH1",
		RoomTypeCode:     "DBL",
		RatePlanCode:     "BAR",
	}); err != nil {
		t.Fatalf("insert mapping: %v", err)
	}

	mapping, err = repo.ChannelByHotel(ctx, snowflake.ID(7))
	if err != nil {
		t.Fatalf("channel by hotel: %v", err)
	}
	if mapping == nil || mapping.ChannelHotelCode != "CH1" {
		t.Fatalf("expected mapping returned, got %+v", mapping)
	}
}
