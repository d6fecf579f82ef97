package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	VehicleTypeTwoWheeler  = "2W"
	VehicleTypeFourWheeler = "4W"
)

// ValidVehicleType reports whether the value is a supported slot class.
func ValidVehicleType(value string) bool {
	switch value {
	case VehicleTypeTwoWheeler, VehicleTypeFourWheeler:
		return true
	default:
		return false
	}
}

// Slot is a physical parking space. Occupied and Version change together:
// every successful occupancy transition bumps Version so stale writers lose.
type Slot struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id"`
	Location     string            `gorm:"not null" json:"location"`
	LocationCode string            `gorm:"not null;index" json:"location_code"`
	VehicleType  string            `gorm:"not null" json:"vehicle_type"`
	Occupied     bool              `gorm:"not null;default:false" json:"occupied"`
	Version      int64             `gorm:"not null;default:0" json:"version"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Slot) TableName() string {
	return "parking_slots"
}
