package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/parkway/internal/billing/domain"
	"github.com/smallbiznis/parkway/internal/clock"
	"github.com/smallbiznis/parkway/internal/config"
	obsmetrics "github.com/smallbiznis/parkway/internal/observability/metrics"
	presencedomain "github.com/smallbiznis/parkway/internal/presence/domain"
	"github.com/smallbiznis/parkway/internal/providers/pdf"
	reservationdomain "github.com/smallbiznis/parkway/internal/reservation/domain"
	"github.com/smallbiznis/parkway/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB              *gorm.DB
	Log             *zap.Logger
	GenID           *snowflake.Node
	Clock           clock.Clock
	Rates           *config.RateConfigHolder
	Repo            domain.Repository
	ReservationRepo reservationdomain.Repository
	PresenceRepo    presencedomain.Repository
	PDF             pdf.Provider
	Metrics         *obsmetrics.Metrics
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	clock           clock.Clock
	rates           *config.RateConfigHolder
	repo            domain.Repository
	reservationRepo reservationdomain.Repository
	presenceRepo    presencedomain.Repository
	pdf             pdf.Provider
	metrics         *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("billing.service"),
		genID:           p.GenID,
		clock:           p.Clock,
		rates:           p.Rates,
		repo:            p.Repo,
		reservationRepo: p.ReservationRepo,
		presenceRepo:    p.PresenceRepo,
		pdf:             p.PDF,
		metrics:         p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateInvoiceRequest) (domain.Invoice, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return domain.Invoice{}, domain.ErrInvalidUser
	}

	hasReservation := req.ReservationID != nil && strings.TrimSpace(*req.ReservationID) != ""
	hasLog := req.VehicleLogID != nil && strings.TrimSpace(*req.VehicleLogID) != ""
	if hasReservation == hasLog {
		return domain.Invoice{}, domain.ErrInvalidSource
	}

	now := s.clock.Now()
	invoice := domain.Invoice{
		ID:            s.genID.Generate(),
		UserID:        userID,
		PaymentMethod: strings.TrimSpace(req.PaymentMethod),
		Status:        domain.InvoiceStatusUnpaid,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var sourceType string
	if hasReservation {
		sourceType = "reservation"
		if err := s.resolveReservation(ctx, *req.ReservationID, &invoice); err != nil {
			return domain.Invoice{}, err
		}
	} else {
		sourceType = "vehicle_log"
		if err := s.resolveVehicleLog(ctx, *req.VehicleLogID, &invoice); err != nil {
			return domain.Invoice{}, err
		}
	}

	rate, ok := s.rates.Get().RatePerMinute(invoice.VehicleType)
	if !ok {
		return domain.Invoice{}, domain.ErrUnknownVehicleType
	}
	invoice.RatePerMinute = rate
	invoice.Amount = rate * float64(invoice.DurationMinutes)

	if err := s.repo.Insert(ctx, s.db, &invoice); err != nil {
		return domain.Invoice{}, err
	}

	s.metrics.RecordInvoiceEvent(ctx, "created", sourceType)
	return invoice, nil
}

func (s *Service) resolveReservation(ctx context.Context, rawID string, invoice *domain.Invoice) error {
	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id == 0 {
		return domain.ErrInvalidID
	}

	reservation, err := s.reservationRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if reservation == nil {
		return domain.ErrSourceNotFound
	}

	minutes := int64(reservation.EndTime.Sub(reservation.StartTime).Minutes())
	if minutes < 0 {
		minutes = 0
	}

	reservationID := reservation.ID
	invoice.ReservationID = &reservationID
	invoice.VehicleType = reservation.VehicleType
	invoice.DurationMinutes = minutes
	return nil
}

func (s *Service) resolveVehicleLog(ctx context.Context, rawID string, invoice *domain.Invoice) error {
	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id == 0 {
		return domain.ErrInvalidID
	}

	log, err := s.presenceRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if log == nil {
		return domain.ErrSourceNotFound
	}
	if log.Open() {
		return domain.ErrNotExited
	}

	logID := log.ID
	invoice.VehicleLogID = &logID
	invoice.VehicleType = log.VehicleType
	invoice.DurationMinutes = log.DurationMinutes
	return nil
}

func (s *Service) Pay(ctx context.Context, req domain.PayInvoiceRequest) (domain.Invoice, error) {
	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Invoice{}, err
	}

	current, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	if current == nil {
		return domain.Invoice{}, domain.ErrNotFound
	}
	switch current.Status {
	case domain.InvoiceStatusCancelled:
		return domain.Invoice{}, domain.ErrCannotPayCancelled
	case domain.InvoiceStatusPaid:
		return domain.Invoice{}, domain.ErrAlreadyPaid
	}

	method := strings.TrimSpace(req.PaymentMethod)
	if method == "" {
		method = current.PaymentMethod
	}

	now := s.clock.Now()
	ok, err := s.repo.MarkPaid(ctx, s.db, id, method, now)
	if err != nil {
		return domain.Invoice{}, err
	}
	if !ok {
		// A concurrent writer settled the invoice between the read and
		// the update. Re-read to report the right state error.
		settled, err := s.repo.FindByID(ctx, s.db, id)
		if err != nil {
			return domain.Invoice{}, err
		}
		if settled != nil && settled.Status == domain.InvoiceStatusCancelled {
			return domain.Invoice{}, domain.ErrCannotPayCancelled
		}
		return domain.Invoice{}, domain.ErrAlreadyPaid
	}

	s.metrics.RecordInvoiceEvent(ctx, "paid", "")

	updated := *current
	updated.Status = domain.InvoiceStatusPaid
	updated.PaymentMethod = method
	updated.PaidAt = &now
	updated.UpdatedAt = now
	return updated, nil
}

func (s *Service) Cancel(ctx context.Context, rawID string) (domain.Invoice, error) {
	id, err := s.parseID(rawID)
	if err != nil {
		return domain.Invoice{}, err
	}

	current, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	if current == nil {
		return domain.Invoice{}, domain.ErrNotFound
	}
	switch current.Status {
	case domain.InvoiceStatusPaid:
		return domain.Invoice{}, domain.ErrCannotCancelPaid
	case domain.InvoiceStatusCancelled:
		return domain.Invoice{}, domain.ErrAlreadyCancelled
	}

	now := s.clock.Now()
	ok, err := s.repo.MarkCancelled(ctx, s.db, id, now)
	if err != nil {
		return domain.Invoice{}, err
	}
	if !ok {
		settled, err := s.repo.FindByID(ctx, s.db, id)
		if err != nil {
			return domain.Invoice{}, err
		}
		if settled != nil && settled.Status == domain.InvoiceStatusPaid {
			return domain.Invoice{}, domain.ErrCannotCancelPaid
		}
		return domain.Invoice{}, domain.ErrAlreadyCancelled
	}

	s.metrics.RecordInvoiceEvent(ctx, "cancelled", "")

	updated := *current
	updated.Status = domain.InvoiceStatusCancelled
	updated.UpdatedAt = now
	return updated, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetInvoiceRequest) (domain.Invoice, error) {
	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Invoice{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	if item == nil {
		return domain.Invoice{}, domain.ErrNotFound
	}

	return *item, nil
}

func (s *Service) ListByUser(ctx context.Context, req domain.ListInvoiceRequest) (domain.ListInvoiceResponse, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return domain.ListInvoiceResponse{}, domain.ErrInvalidUser
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.ListByUser(ctx, s.db, userID, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListInvoiceResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(invoice *domain.Invoice) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        invoice.ID.String(),
			CreatedAt: invoice.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	invoices := make([]domain.Invoice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		invoices = append(invoices, *item)
	}

	resp := domain.ListInvoiceResponse{Invoices: invoices}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}

	return resp, nil
}

func (s *Service) Receipt(ctx context.Context, rawID string) (io.Reader, error) {
	id, err := s.parseID(rawID)
	if err != nil {
		return nil, err
	}

	invoice, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, domain.ErrNotFound
	}
	if invoice.Status != domain.InvoiceStatusPaid {
		return nil, domain.ErrReceiptRequiresPaid
	}

	datePaid := ""
	if invoice.PaidAt != nil {
		datePaid = invoice.PaidAt.Format("2006-01-02 15:04:05 MST")
	}

	return s.pdf.GenerateReceipt(ctx, pdf.ReceiptData{
		ReceiptNumber: invoice.ID.String(),
		UserID:        invoice.UserID,
		VehicleType:   invoice.VehicleType,
		Duration:      presencedomain.FormatDuration(invoice.DurationMinutes),
		Rate:          fmt.Sprintf("%.2f", invoice.RatePerMinute),
		Total:         fmt.Sprintf("%.2f", invoice.Amount),
		PaymentMethod: invoice.PaymentMethod,
		DatePaid:      datePaid,
	})
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
