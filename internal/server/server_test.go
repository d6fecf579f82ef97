package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	billingdomain "github.com/smallbiznis/parkway/internal/billing/domain"
	"github.com/smallbiznis/parkway/internal/occupancy"
	presencedomain "github.com/smallbiznis/parkway/internal/presence/domain"
	reservationdomain "github.com/smallbiznis/parkway/internal/reservation/domain"
	slotdomain "github.com/smallbiznis/parkway/internal/slot/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeSlotService struct {
	createFn func(context.Context, slotdomain.CreateSlotRequest) (slotdomain.Slot, error)
	updateFn func(context.Context, slotdomain.UpdateSlotRequest) (slotdomain.Slot, error)
	deleteFn func(context.Context, string) error
	getFn    func(context.Context, slotdomain.GetSlotRequest) (slotdomain.Slot, error)
	listFn   func(context.Context, slotdomain.ListSlotRequest) (slotdomain.ListSlotResponse, error)
}

func (f *fakeSlotService) Create(ctx context.Context, req slotdomain.CreateSlotRequest) (slotdomain.Slot, error) {
	if f.createFn == nil {
		return slotdomain.Slot{}, nil
	}
	return f.createFn(ctx, req)
}

func (f *fakeSlotService) Update(ctx context.Context, req slotdomain.UpdateSlotRequest) (slotdomain.Slot, error) {
	if f.updateFn == nil {
		return slotdomain.Slot{}, nil
	}
	return f.updateFn(ctx, req)
}

func (f *fakeSlotService) Delete(ctx context.Context, id string) error {
	if f.deleteFn == nil {
		return nil
	}
	return f.deleteFn(ctx, id)
}

func (f *fakeSlotService) GetByID(ctx context.Context, req slotdomain.GetSlotRequest) (slotdomain.Slot, error) {
	if f.getFn == nil {
		return slotdomain.Slot{}, nil
	}
	return f.getFn(ctx, req)
}

func (f *fakeSlotService) List(ctx context.Context, req slotdomain.ListSlotRequest) (slotdomain.ListSlotResponse, error) {
	if f.listFn == nil {
		return slotdomain.ListSlotResponse{}, nil
	}
	return f.listFn(ctx, req)
}

type fakeReservationService struct {
	createFn       func(context.Context, reservationdomain.CreateReservationRequest) (reservationdomain.Reservation, error)
	updateFn       func(context.Context, reservationdomain.UpdateReservationRequest) (reservationdomain.Reservation, error)
	updateStatusFn func(context.Context, reservationdomain.UpdateStatusRequest) (reservationdomain.Reservation, error)
	cancelFn       func(context.Context, string) (reservationdomain.Reservation, error)
	getFn          func(context.Context, reservationdomain.GetReservationRequest) (reservationdomain.Reservation, error)
	listFn         func(context.Context, reservationdomain.ListReservationRequest) (reservationdomain.ListReservationResponse, error)
}

func (f *fakeReservationService) Create(ctx context.Context, req reservationdomain.CreateReservationRequest) (reservationdomain.Reservation, error) {
	if f.createFn == nil {
		return reservationdomain.Reservation{}, nil
	}
	return f.createFn(ctx, req)
}

func (f *fakeReservationService) Update(ctx context.Context, req reservationdomain.UpdateReservationRequest) (reservationdomain.Reservation, error) {
	if f.updateFn == nil {
		return reservationdomain.Reservation{}, nil
	}
	return f.updateFn(ctx, req)
}

func (f *fakeReservationService) UpdateStatus(ctx context.Context, req reservationdomain.UpdateStatusRequest) (reservationdomain.Reservation, error) {
	if f.updateStatusFn == nil {
		return reservationdomain.Reservation{}, nil
	}
	return f.updateStatusFn(ctx, req)
}

func (f *fakeReservationService) Cancel(ctx context.Context, id string) (reservationdomain.Reservation, error) {
	if f.cancelFn == nil {
		return reservationdomain.Reservation{}, nil
	}
	return f.cancelFn(ctx, id)
}

func (f *fakeReservationService) GetByID(ctx context.Context, req reservationdomain.GetReservationRequest) (reservationdomain.Reservation, error) {
	if f.getFn == nil {
		return reservationdomain.Reservation{}, nil
	}
	return f.getFn(ctx, req)
}

func (f *fakeReservationService) ListByUser(ctx context.Context, req reservationdomain.ListReservationRequest) (reservationdomain.ListReservationResponse, error) {
	if f.listFn == nil {
		return reservationdomain.ListReservationResponse{}, nil
	}
	return f.listFn(ctx, req)
}

type fakePresenceService struct {
	entryFn    func(context.Context, presencedomain.RecordEntryRequest) (presencedomain.VehicleLog, error)
	exitFn     func(context.Context, presencedomain.RecordExitRequest) (presencedomain.ExitResponse, error)
	getFn      func(context.Context, presencedomain.GetVehicleLogRequest) (presencedomain.VehicleLog, error)
	listFn     func(context.Context, presencedomain.ListVehicleLogRequest) (presencedomain.ListVehicleLogResponse, error)
	listOpenFn func(context.Context, presencedomain.ListVehicleLogRequest) (presencedomain.ListVehicleLogResponse, error)
}

func (f *fakePresenceService) RecordEntry(ctx context.Context, req presencedomain.RecordEntryRequest) (presencedomain.VehicleLog, error) {
	if f.entryFn == nil {
		return presencedomain.VehicleLog{}, nil
	}
	return f.entryFn(ctx, req)
}

func (f *fakePresenceService) RecordExit(ctx context.Context, req presencedomain.RecordExitRequest) (presencedomain.ExitResponse, error) {
	if f.exitFn == nil {
		return presencedomain.ExitResponse{}, nil
	}
	return f.exitFn(ctx, req)
}

func (f *fakePresenceService) GetByID(ctx context.Context, req presencedomain.GetVehicleLogRequest) (presencedomain.VehicleLog, error) {
	if f.getFn == nil {
		return presencedomain.VehicleLog{}, nil
	}
	return f.getFn(ctx, req)
}

func (f *fakePresenceService) ListByUser(ctx context.Context, req presencedomain.ListVehicleLogRequest) (presencedomain.ListVehicleLogResponse, error) {
	if f.listFn == nil {
		return presencedomain.ListVehicleLogResponse{}, nil
	}
	return f.listFn(ctx, req)
}

func (f *fakePresenceService) ListOpen(ctx context.Context, req presencedomain.ListVehicleLogRequest) (presencedomain.ListVehicleLogResponse, error) {
	if f.listOpenFn == nil {
		return presencedomain.ListVehicleLogResponse{}, nil
	}
	return f.listOpenFn(ctx, req)
}

type fakeBillingService struct {
	createFn  func(context.Context, billingdomain.CreateInvoiceRequest) (billingdomain.Invoice, error)
	payFn     func(context.Context, billingdomain.PayInvoiceRequest) (billingdomain.Invoice, error)
	cancelFn  func(context.Context, string) (billingdomain.Invoice, error)
	getFn     func(context.Context, billingdomain.GetInvoiceRequest) (billingdomain.Invoice, error)
	listFn    func(context.Context, billingdomain.ListInvoiceRequest) (billingdomain.ListInvoiceResponse, error)
	receiptFn func(context.Context, string) (io.Reader, error)
}

func (f *fakeBillingService) Create(ctx context.Context, req billingdomain.CreateInvoiceRequest) (billingdomain.Invoice, error) {
	if f.createFn == nil {
		return billingdomain.Invoice{}, nil
	}
	return f.createFn(ctx, req)
}

func (f *fakeBillingService) Pay(ctx context.Context, req billingdomain.PayInvoiceRequest) (billingdomain.Invoice, error) {
	if f.payFn == nil {
		return billingdomain.Invoice{}, nil
	}
	return f.payFn(ctx, req)
}

func (f *fakeBillingService) Cancel(ctx context.Context, id string) (billingdomain.Invoice, error) {
	if f.cancelFn == nil {
		return billingdomain.Invoice{}, nil
	}
	return f.cancelFn(ctx, id)
}

func (f *fakeBillingService) GetByID(ctx context.Context, req billingdomain.GetInvoiceRequest) (billingdomain.Invoice, error) {
	if f.getFn == nil {
		return billingdomain.Invoice{}, nil
	}
	return f.getFn(ctx, req)
}

func (f *fakeBillingService) ListByUser(ctx context.Context, req billingdomain.ListInvoiceRequest) (billingdomain.ListInvoiceResponse, error) {
	if f.listFn == nil {
		return billingdomain.ListInvoiceResponse{}, nil
	}
	return f.listFn(ctx, req)
}

func (f *fakeBillingService) Receipt(ctx context.Context, id string) (io.Reader, error) {
	if f.receiptFn == nil {
		return strings.NewReader("%PDF-1.4"), nil
	}
	return f.receiptFn(ctx, id)
}

type fakeCoordinator struct {
	acquireFn func(context.Context, *gorm.DB, snowflake.ID) (occupancy.AcquireResult, error)
	releaseFn func(context.Context, *gorm.DB, snowflake.ID) error
}

func (f *fakeCoordinator) Acquire(ctx context.Context, db *gorm.DB, slotID snowflake.ID) (occupancy.AcquireResult, error) {
	if f.acquireFn == nil {
		return occupancy.AcquireResult{SlotID: slotID, Version: 1}, nil
	}
	return f.acquireFn(ctx, db, slotID)
}

func (f *fakeCoordinator) Release(ctx context.Context, db *gorm.DB, slotID snowflake.ID) error {
	if f.releaseFn == nil {
		return nil
	}
	return f.releaseFn(ctx, db, slotID)
}

type testDeps struct {
	slots        *fakeSlotService
	reservations *fakeReservationService
	presence     *fakePresenceService
	billing      *fakeBillingService
	coordinator  *fakeCoordinator
}

func newTestServer(t *testing.T) (*Server, *testDeps) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	deps := &testDeps{
		slots:        &fakeSlotService{},
		reservations: &fakeReservationService{},
		presence:     &fakePresenceService{},
		billing:      &fakeBillingService{},
		coordinator:  &fakeCoordinator{},
	}

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	srv := &Server{
		engine:         engine,
		slotSvc:        deps.slots,
		reservationSvc: deps.reservations,
		presenceSvc:    deps.presence,
		billingSvc:     deps.billing,
		coordinator:    deps.coordinator,
	}
	srv.registerSlotRoutes()
	srv.registerReservationRoutes()
	srv.registerPresenceRoutes()
	srv.registerInvoiceRoutes()

	return srv, deps
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}
