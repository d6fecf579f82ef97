package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

// VehicleLog records one physical visit: entry at a slot and, once the
// vehicle leaves, the exit and whole-minute duration.
type VehicleLog struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	VehicleNumber   string       `gorm:"not null;index" json:"vehicle_number"`
	UserID          string       `gorm:"not null;index" json:"user_id"`
	SlotID          snowflake.ID `gorm:"not null;index" json:"slot_id"`
	VehicleType     string       `gorm:"not null" json:"vehicle_type"`
	EntryTime       time.Time    `gorm:"not null" json:"entry_time"`
	ExitTime        *time.Time   `json:"exit_time,omitempty"`
	DurationMinutes int64        `gorm:"not null;default:0" json:"duration_minutes"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (VehicleLog) TableName() string {
	return "vehicle_logs"
}

// Open reports whether the vehicle is still parked.
func (v VehicleLog) Open() bool {
	return v.ExitTime == nil
}

// FormatDuration renders a minute count as HH:MM:SS. Stays are billed in
// whole minutes so the seconds component is always zero.
func FormatDuration(minutes int64) string {
	if minutes < 0 {
		minutes = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", minutes/60, minutes%60, 0)
}
