package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/parkway/pkg/db/pagination"
)

type RecordEntryRequest struct {
	VehicleNumber string `json:"vehicle_number"`
	UserID        string `json:"user_id"`
	SlotID        string `json:"slot_id"`
}

type RecordExitRequest struct {
	ID string
}

type ExitResponse struct {
	VehicleLog
	Duration string `json:"duration"`
}

type GetVehicleLogRequest struct {
	ID string
}

type ListVehicleLogRequest struct {
	UserID    string
	PageToken string
	PageSize  int32
}

type ListVehicleLogResponse struct {
	pagination.PageInfo
	VehicleLogs []VehicleLog `json:"vehicle_logs"`
}

type Service interface {
	RecordEntry(context.Context, RecordEntryRequest) (VehicleLog, error)
	RecordExit(context.Context, RecordExitRequest) (ExitResponse, error)
	GetByID(context.Context, GetVehicleLogRequest) (VehicleLog, error)
	ListByUser(context.Context, ListVehicleLogRequest) (ListVehicleLogResponse, error)
	ListOpen(context.Context, ListVehicleLogRequest) (ListVehicleLogResponse, error)
}

var (
	ErrInvalidUser          = errors.New("invalid_user")
	ErrInvalidSlot          = errors.New("invalid_slot")
	ErrInvalidVehicleNumber = errors.New("invalid_vehicle_number")
	ErrInvalidID            = errors.New("invalid_id")
	ErrNotFound             = errors.New("not_found")
	ErrSlotNotFound         = errors.New("slot_not_found")
	ErrExitRecorded         = errors.New("exit_already_recorded")
)
