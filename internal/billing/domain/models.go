package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type InvoiceStatus string

const (
	InvoiceStatusUnpaid    InvoiceStatus = "UNPAID"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// Invoice bills exactly one parking source: a reservation or a vehicle
// log, never both. The migration enforces the same with a CHECK.
type Invoice struct {
	ID              snowflake.ID  `gorm:"primaryKey" json:"id"`
	UserID          string        `gorm:"not null;index" json:"user_id"`
	ReservationID   *snowflake.ID `gorm:"uniqueIndex" json:"reservation_id,omitempty"`
	VehicleLogID    *snowflake.ID `gorm:"uniqueIndex" json:"vehicle_log_id,omitempty"`
	VehicleType     string        `gorm:"not null" json:"vehicle_type"`
	DurationMinutes int64         `gorm:"not null" json:"duration_minutes"`
	RatePerMinute   float64       `gorm:"not null" json:"rate_per_minute"`
	Amount          float64       `gorm:"not null" json:"amount"`
	PaymentMethod   string        `json:"payment_method,omitempty"`
	Status          InvoiceStatus `gorm:"not null;index" json:"status"`
	PaidAt          *time.Time    `json:"paid_at,omitempty"`
	CreatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Invoice) TableName() string {
	return "invoices"
}
