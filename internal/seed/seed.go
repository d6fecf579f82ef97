package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	slotdomain "github.com/smallbiznis/parkway/internal/slot/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EnsureDemoLot seeds a small parking lot for local development. It is a
// no-op when any slot already exists, so restarts never duplicate rows.
func EnsureDemoLot(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&slotdomain.Slot{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		slots := demoSlots(node)
		if err := tx.Create(&slots).Error; err != nil {
			return fmt.Errorf("seed demo lot: %w", err)
		}
		return nil
	})
}

func demoSlots(node *snowflake.Node) []slotdomain.Slot {
	layout := []struct {
		location    string
		vehicleType string
		count       int
	}{
		{"Basement B1 Bike Bay", slotdomain.VehicleTypeTwoWheeler, 4},
		{"Basement B1 Car Bay", slotdomain.VehicleTypeFourWheeler, 4},
		{"Ground Floor Visitor", slotdomain.VehicleTypeFourWheeler, 2},
	}

	var slots []slotdomain.Slot
	for _, row := range layout {
		for i := 1; i <= row.count; i++ {
			location := fmt.Sprintf("%s %d", row.location, i)
			slots = append(slots, slotdomain.Slot{
				ID:           node.Generate(),
				Location:     location,
				LocationCode: slug.Make(location),
				VehicleType:  row.vehicleType,
				Metadata:     datatypes.JSONMap{"seeded": true},
			})
		}
	}
	return slots
}
