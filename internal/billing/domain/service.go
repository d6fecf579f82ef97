package domain

import (
	"context"
	"errors"
	"io"

	"github.com/smallbiznis/parkway/pkg/db/pagination"
)

type CreateInvoiceRequest struct {
	UserID        string  `json:"user_id"`
	ReservationID *string `json:"reservation_id"`
	VehicleLogID  *string `json:"vehicle_log_id"`
	PaymentMethod string  `json:"payment_method"`
}

type PayInvoiceRequest struct {
	ID            string
	PaymentMethod string `json:"payment_method"`
}

type GetInvoiceRequest struct {
	ID string
}

type ListInvoiceRequest struct {
	UserID    string
	PageToken string
	PageSize  int32
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

type Service interface {
	Create(context.Context, CreateInvoiceRequest) (Invoice, error)
	Pay(context.Context, PayInvoiceRequest) (Invoice, error)
	Cancel(ctx context.Context, id string) (Invoice, error)
	GetByID(context.Context, GetInvoiceRequest) (Invoice, error)
	ListByUser(context.Context, ListInvoiceRequest) (ListInvoiceResponse, error)
	Receipt(ctx context.Context, id string) (io.Reader, error)
}

var (
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidSource       = errors.New("invalid_invoice_source")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("not_found")
	ErrSourceNotFound      = errors.New("invoice_source_not_found")
	ErrNotExited           = errors.New("vehicle_not_exited")
	ErrUnknownVehicleType  = errors.New("unknown_vehicle_type")
	ErrAlreadyPaid         = errors.New("invoice_already_paid")
	ErrCannotPayCancelled  = errors.New("cannot_pay_cancelled_invoice")
	ErrCannotCancelPaid    = errors.New("cannot_cancel_paid_invoice")
	ErrAlreadyCancelled    = errors.New("invoice_already_cancelled")
	ErrReceiptRequiresPaid = errors.New("receipt_requires_paid_invoice")
)
