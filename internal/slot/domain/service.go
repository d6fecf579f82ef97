package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/parkway/pkg/db/pagination"
)

type CreateSlotRequest struct {
	Location    string         `json:"location"`
	VehicleType string         `json:"vehicle_type"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type UpdateSlotRequest struct {
	ID          string         `json:"-"`
	Location    *string        `json:"location"`
	VehicleType *string        `json:"vehicle_type"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type GetSlotRequest struct {
	ID string
}

type ListSlotRequest struct {
	PageToken    string
	PageSize     int32
	VehicleType  string
	LocationCode string
	Occupied     *bool
}

type ListSlotFilter struct {
	VehicleType  string
	LocationCode string
	Occupied     *bool
}

type ListSlotResponse struct {
	pagination.PageInfo
	Slots []Slot `json:"slots"`
}

type Service interface {
	Create(context.Context, CreateSlotRequest) (Slot, error)
	Update(context.Context, UpdateSlotRequest) (Slot, error)
	Delete(ctx context.Context, id string) error
	GetByID(context.Context, GetSlotRequest) (Slot, error)
	List(context.Context, ListSlotRequest) (ListSlotResponse, error)
}

var (
	ErrInvalidVehicleType = errors.New("invalid_vehicle_type")
	ErrInvalidLocation    = errors.New("invalid_location")
	ErrInvalidID          = errors.New("invalid_id")
	ErrNotFound           = errors.New("not_found")
	ErrSlotOccupied       = errors.New("slot_occupied")
)
