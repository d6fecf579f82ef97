package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type ReservationStatus string

const (
	ReservationStatusActive    ReservationStatus = "ACTIVE"
	ReservationStatusCancelled ReservationStatus = "CANCELLED"
	ReservationStatusCompleted ReservationStatus = "COMPLETED"
)

// Terminal reports whether the status admits no further transitions.
func (s ReservationStatus) Terminal() bool {
	return s == ReservationStatusCancelled || s == ReservationStatusCompleted
}

type Reservation struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"id"`
	UserID        string            `gorm:"not null;index" json:"user_id"`
	SlotID        snowflake.ID      `gorm:"not null;index" json:"slot_id"`
	VehicleNumber string            `gorm:"not null" json:"vehicle_number"`
	VehicleType   string            `gorm:"not null" json:"vehicle_type"`
	StartTime     time.Time         `gorm:"not null" json:"start_time"`
	EndTime       time.Time         `gorm:"not null" json:"end_time"`
	Status        ReservationStatus `gorm:"not null;index" json:"status"`
	CreatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Reservation) TableName() string {
	return "reservations"
}
