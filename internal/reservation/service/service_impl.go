package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/parkway/internal/clock"
	"github.com/smallbiznis/parkway/internal/config"
	obsmetrics "github.com/smallbiznis/parkway/internal/observability/metrics"
	"github.com/smallbiznis/parkway/internal/occupancy"
	"github.com/smallbiznis/parkway/internal/reservation/domain"
	slotdomain "github.com/smallbiznis/parkway/internal/slot/domain"
	"github.com/smallbiznis/parkway/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Config      config.Config
	Rates       *config.RateConfigHolder
	Repo        domain.Repository
	SlotRepo    slotdomain.Repository
	Coordinator occupancy.Coordinator
	ReconRepo   occupancy.ReconciliationRepository
	Metrics     *obsmetrics.Metrics
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	skew        time.Duration
	rates       *config.RateConfigHolder
	repo        domain.Repository
	slotRepo    slotdomain.Repository
	coordinator occupancy.Coordinator
	reconRepo   occupancy.ReconciliationRepository
	metrics     *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("reservation.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		skew:        p.Config.SkewTolerance,
		rates:       p.Rates,
		repo:        p.Repo,
		slotRepo:    p.SlotRepo,
		coordinator: p.Coordinator,
		reconRepo:   p.ReconRepo,
		metrics:     p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateReservationRequest) (domain.Reservation, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return domain.Reservation{}, domain.ErrInvalidUser
	}

	slotID, err := snowflake.ParseString(strings.TrimSpace(req.SlotID))
	if err != nil || slotID == 0 {
		return domain.Reservation{}, domain.ErrInvalidSlot
	}

	vehicleNumber := strings.TrimSpace(req.VehicleNumber)
	if vehicleNumber == "" {
		return domain.Reservation{}, domain.ErrInvalidVehicleNumber
	}

	vehicleType := strings.ToUpper(strings.TrimSpace(req.VehicleType))
	if err := s.validateVehicleType(vehicleType); err != nil {
		return domain.Reservation{}, err
	}

	if req.StartTime == nil || req.EndTime == nil {
		return domain.Reservation{}, domain.ErrInvalidInterval
	}
	start := req.StartTime.UTC()
	end := req.EndTime.UTC()
	if !start.Before(end) {
		return domain.Reservation{}, domain.ErrInvalidInterval
	}
	if start.Before(s.clock.Now().Add(-s.skew)) {
		return domain.Reservation{}, domain.ErrStartInPast
	}

	now := s.clock.Now()
	reservation := domain.Reservation{
		ID:            s.genID.Generate(),
		UserID:        userID,
		SlotID:        slotID,
		VehicleNumber: vehicleNumber,
		VehicleType:   vehicleType,
		StartTime:     start,
		EndTime:       end,
		Status:        domain.ReservationStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The slot row lock serializes same-slot creations so two
		// overlapping requests cannot both pass the conflict check.
		locked, err := s.slotRepo.FindByIDForUpdate(ctx, tx, slotID)
		if err != nil {
			return err
		}
		if locked == nil {
			return domain.ErrSlotNotFound
		}

		existing, err := s.repo.FindActiveBySlot(ctx, tx, slotID)
		if err != nil {
			return err
		}
		if hit := domain.FindConflict(reservation, existing); hit != nil {
			return &domain.ConflictError{ReservationID: hit.ID}
		}

		return s.repo.Insert(ctx, tx, &reservation)
	})
	if err != nil {
		return domain.Reservation{}, err
	}

	s.metrics.RecordReservationEvent(ctx, "created")
	return reservation, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateReservationRequest) (domain.Reservation, error) {
	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Reservation{}, err
	}

	current, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Reservation{}, err
	}
	if current == nil {
		return domain.Reservation{}, domain.ErrNotFound
	}
	if current.Status != domain.ReservationStatusActive {
		return domain.Reservation{}, domain.ErrInvalidTransition
	}

	updated := *current
	intervalChanged := false
	if req.StartTime != nil {
		updated.StartTime = req.StartTime.UTC()
		intervalChanged = true
	}
	if req.EndTime != nil {
		updated.EndTime = req.EndTime.UTC()
		intervalChanged = true
	}
	if req.VehicleNumber != nil {
		number := strings.TrimSpace(*req.VehicleNumber)
		if number == "" {
			return domain.Reservation{}, domain.ErrInvalidVehicleNumber
		}
		updated.VehicleNumber = number
	}
	if req.VehicleType != nil {
		vehicleType := strings.ToUpper(strings.TrimSpace(*req.VehicleType))
		if err := s.validateVehicleType(vehicleType); err != nil {
			return domain.Reservation{}, err
		}
		updated.VehicleType = vehicleType
	}

	if !updated.StartTime.Before(updated.EndTime) {
		return domain.Reservation{}, domain.ErrInvalidInterval
	}
	updated.UpdatedAt = s.clock.Now()

	if !intervalChanged {
		if err := s.repo.Save(ctx, s.db, &updated); err != nil {
			return domain.Reservation{}, err
		}
		return updated, nil
	}

	// A moved interval must clear conflict detection again under the
	// same slot row lock used at creation.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.slotRepo.FindByIDForUpdate(ctx, tx, updated.SlotID)
		if err != nil {
			return err
		}
		if locked == nil {
			return domain.ErrSlotNotFound
		}

		existing, err := s.repo.FindActiveBySlot(ctx, tx, updated.SlotID)
		if err != nil {
			return err
		}
		if hit := domain.FindConflict(updated, existing); hit != nil {
			return &domain.ConflictError{ReservationID: hit.ID}
		}

		return s.repo.Save(ctx, tx, &updated)
	})
	if err != nil {
		return domain.Reservation{}, err
	}

	return updated, nil
}

func (s *Service) UpdateStatus(ctx context.Context, req domain.UpdateStatusRequest) (domain.Reservation, error) {
	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Reservation{}, err
	}

	target := domain.ReservationStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if target != domain.ReservationStatusCancelled && target != domain.ReservationStatusCompleted {
		return domain.Reservation{}, domain.ErrInvalidStatus
	}

	current, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Reservation{}, err
	}
	if current == nil {
		return domain.Reservation{}, domain.ErrNotFound
	}

	ok, err := s.repo.UpdateStatusGuarded(ctx, s.db, id, domain.ReservationStatusActive, target, s.clock.Now())
	if err != nil {
		return domain.Reservation{}, err
	}
	if !ok {
		// Another writer finished the transition first, or the
		// reservation was already terminal.
		return domain.Reservation{}, domain.ErrInvalidTransition
	}

	s.releaseSlot(ctx, current.SlotID, current.ID)

	switch target {
	case domain.ReservationStatusCancelled:
		s.metrics.RecordReservationEvent(ctx, "cancelled")
	case domain.ReservationStatusCompleted:
		s.metrics.RecordReservationEvent(ctx, "completed")
	}

	updated := *current
	updated.Status = target
	updated.UpdatedAt = s.clock.Now()
	return updated, nil
}

func (s *Service) Cancel(ctx context.Context, id string) (domain.Reservation, error) {
	return s.UpdateStatus(ctx, domain.UpdateStatusRequest{
		ID:     id,
		Status: string(domain.ReservationStatusCancelled),
	})
}

func (s *Service) GetByID(ctx context.Context, req domain.GetReservationRequest) (domain.Reservation, error) {
	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Reservation{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Reservation{}, err
	}
	if item == nil {
		return domain.Reservation{}, domain.ErrNotFound
	}

	return *item, nil
}

func (s *Service) ListByUser(ctx context.Context, req domain.ListReservationRequest) (domain.ListReservationResponse, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return domain.ListReservationResponse{}, domain.ErrInvalidUser
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
		return domain.ListReservationResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(reservation *domain.Reservation) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        reservation.ID.String(),
			CreatedAt: reservation.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	reservations := make([]domain.Reservation, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		reservations = append(reservations, *item)
	}

	resp := domain.ListReservationResponse{Reservations: reservations}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}

	return resp, nil
}

// releaseSlot frees the slot after a terminal transition. A failed release
// is queued for reconciliation instead of reverting the transition.
func (s *Service) releaseSlot(ctx context.Context, slotID, reservationID snowflake.ID) {
	err := s.coordinator.Release(ctx, s.db, slotID)
	if err == nil {
		return
	}

	s.log.Warn("slot release failed, queueing reconciliation",
		zap.String("slot_id", slotID.String()),
		zap.String("reservation_id", reservationID.String()),
		zap.Error(err),
	)

	now := s.clock.Now()
	resID := reservationID
	entry := occupancy.Reconciliation{
		ID:            s.genID.Generate(),
		SlotID:        slotID,
		ReservationID: &resID,
		LastError:     err.Error(),
		Status:        occupancy.ReconciliationStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if enqueueErr := s.reconRepo.Enqueue(ctx, s.db, &entry); enqueueErr != nil {
		s.log.Error("failed to enqueue occupancy reconciliation",
			zap.String("slot_id", slotID.String()),
			zap.Error(enqueueErr),
		)
	}
}

func (s *Service) validateVehicleType(vehicleType string) error {
	if !slotdomain.ValidVehicleType(vehicleType) {
		return domain.ErrInvalidVehicleType
	}
	if _, ok := s.rates.Get().RatePerMinute(vehicleType); !ok {
		return domain.ErrInvalidVehicleType
	}
	return nil
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
