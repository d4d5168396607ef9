// Package seed populates a development database with a demo hotel so the
// worker pipeline has something to chew on. Never runs in production.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/amitpo23/medici-web03012026-sub001/internal/inventory/domain"
)

const (
	demoHotelName       = "Demo Grand Hotel"
	demoChannelCode     = "DEMO1"
	demoRoomTypeCode    = "DBL"
	demoRatePlanCode    = "BAR"
	demoSupplier        = "innstant"
	demoSupplierCode    = "hotel-demo-1"
	demoTargetBuyPrice  = 100.0
	demoTargetSellPrice = 130.0
)

// EnsureDemoHotel creates one hotel with a channel mapping, a supplier code
// and an open opportunity, unless one already exists. Idempotent.
func EnsureDemoHotel(db *gorm.DB, node *snowflake.Node) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing domain.ChannelMapping
		err := tx.Where("channel_hotel_code = ?", demoChannelCode).First(&existing).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		hotelID := node.Generate()
		mapping := domain.ChannelMapping{
			ID:               node.Generate(),
			HotelID:          hotelID,
			ChannelHotelCode: demoChannelCode,
			RoomTypeCode:     demoRoomTypeCode,
			RatePlanCode:     demoRatePlanCode,
		}
		if err := tx.Create(&mapping).Error; err != nil {
			return err
		}

		supplierCode := domain.SupplierHotelCode{
			ID:       node.Generate(),
			HotelID:  hotelID,
			Supplier: demoSupplier,
			Code:     demoSupplierCode,
		}
		if err := tx.Create(&supplierCode).Error; err != nil {
			return err
		}

		checkIn := time.Now().UTC().AddDate(0, 0, 30).Truncate(24 * time.Hour)
		opportunity := domain.Opportunity{
			ID:              node.Generate(),
			HotelID:         hotelID,
			HotelName:       demoHotelName,
			CheckIn:         checkIn,
			CheckOut:        checkIn.AddDate(0, 0, 2),
			RoomCategory:    "double",
			Board:           "breakfast",
			TargetBuyPrice:  demoTargetBuyPrice,
			TargetSellPrice: demoTargetSellPrice,
			MaxRooms:        1,
			Active:          true,
		}
		return tx.Create(&opportunity).Error
	})
}
