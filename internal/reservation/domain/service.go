package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/parkway/pkg/db/pagination"
)

type CreateReservationRequest struct {
	UserID        string     `json:"user_id"`
	SlotID        string     `json:"slot_id"`
	VehicleNumber string     `json:"vehicle_number"`
	VehicleType   string     `json:"vehicle_type"`
	StartTime     *time.Time `json:"start_time"`
	EndTime       *time.Time `json:"end_time"`
}

type UpdateReservationRequest struct {
	ID            string     `json:"-"`
	StartTime     *time.Time `json:"start_time"`
	EndTime       *time.Time `json:"end_time"`
	VehicleNumber *string    `json:"vehicle_number"`
	VehicleType   *string    `json:"vehicle_type"`
}

type UpdateStatusRequest struct {
	ID     string
	Status string `json:"status"`
}

type GetReservationRequest struct {
	ID string
}

type ListReservationRequest struct {
	UserID    string
	PageToken string
	PageSize  int32
}

type ListReservationResponse struct {
	pagination.PageInfo
	Reservations []Reservation `json:"reservations"`
}

type Service interface {
	Create(context.Context, CreateReservationRequest) (Reservation, error)
	Update(context.Context, UpdateReservationRequest) (Reservation, error)
	UpdateStatus(context.Context, UpdateStatusRequest) (Reservation, error)
	Cancel(ctx context.Context, id string) (Reservation, error)
	GetByID(context.Context, GetReservationRequest) (Reservation, error)
	ListByUser(context.Context, ListReservationRequest) (ListReservationResponse, error)
}

var (
	ErrInvalidUser          = errors.New("invalid_user")
	ErrInvalidSlot          = errors.New("invalid_slot")
	ErrInvalidVehicleNumber = errors.New("invalid_vehicle_number")
	ErrInvalidVehicleType   = errors.New("invalid_vehicle_type")
	ErrInvalidInterval      = errors.New("invalid_interval")
	ErrStartInPast          = errors.New("start_in_past")
	ErrInvalidStatus        = errors.New("invalid_status")
	ErrInvalidTransition    = errors.New("invalid_transition")
	ErrInvalidID            = errors.New("invalid_id")
	ErrNotFound             = errors.New("not_found")
	ErrSlotNotFound         = errors.New("slot_not_found")
)

// ConflictError reports an overlapping reservation on the same slot.
type ConflictError struct {
	ReservationID snowflake.ID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("reservation_conflict: overlaps %s", e.ReservationID)
}
