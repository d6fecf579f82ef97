package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/parkway/internal/clock"
	obsmetrics "github.com/smallbiznis/parkway/internal/observability/metrics"
	"github.com/smallbiznis/parkway/internal/occupancy"
	"github.com/smallbiznis/parkway/internal/presence/domain"
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
	repo        domain.Repository
	slotRepo    slotdomain.Repository
	coordinator occupancy.Coordinator
	reconRepo   occupancy.ReconciliationRepository
	metrics     *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("presence.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		slotRepo:    p.SlotRepo,
		coordinator: p.Coordinator,
		reconRepo:   p.ReconRepo,
		metrics:     p.Metrics,
	}
}

func (s *Service) RecordEntry(ctx context.Context, req domain.RecordEntryRequest) (domain.VehicleLog, error) {
	vehicleNumber := strings.TrimSpace(req.VehicleNumber)
	if vehicleNumber == "" {
		return domain.VehicleLog{}, domain.ErrInvalidVehicleNumber
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return domain.VehicleLog{}, domain.ErrInvalidUser
	}

	slotID, err := snowflake.ParseString(strings.TrimSpace(req.SlotID))
	if err != nil || slotID == 0 {
		return domain.VehicleLog{}, domain.ErrInvalidSlot
	}

	now := s.clock.Now()
	log := domain.VehicleLog{
		ID:            s.genID.Generate(),
		VehicleNumber: vehicleNumber,
		UserID:        userID,
		SlotID:        slotID,
		EntryTime:     now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	// Log insert and slot acquisition commit together. Losing the
	// occupancy race rolls the log back so no phantom entry survives.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		slot, err := s.slotRepo.FindByID(ctx, tx, slotID)
		if err != nil {
			return err
		}
		if slot == nil {
			return domain.ErrSlotNotFound
		}
		if slot.Occupied {
			return occupancy.ErrSlotBusy
		}
		log.VehicleType = slot.VehicleType

		if err := s.repo.Insert(ctx, tx, &log); err != nil {
			return err
		}

		_, err = s.coordinator.Acquire(ctx, tx, slotID)
		return err
	})
	if err != nil {
		return domain.VehicleLog{}, err
	}

	s.metrics.RecordPresenceEvent(ctx, "entry", log.VehicleType)
	return log, nil
}

func (s *Service) RecordExit(ctx context.Context, req domain.RecordExitRequest) (domain.ExitResponse, error) {
	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.ExitResponse{}, err
	}

	log, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.ExitResponse{}, err
	}
	if log == nil {
		return domain.ExitResponse{}, domain.ErrNotFound
	}
	if !log.Open() {
		return domain.ExitResponse{}, domain.ErrExitRecorded
	}

	exitTime := s.clock.Now()
	minutes := int64(exitTime.Sub(log.EntryTime).Minutes())
	if minutes < 0 {
		minutes = 0
	}

	ok, err := s.repo.CloseExit(ctx, s.db, id, exitTime, minutes)
	if err != nil {
		return domain.ExitResponse{}, err
	}
	if !ok {
		return domain.ExitResponse{}, domain.ErrExitRecorded
	}

	// The exit stays committed even when the release fails; the
	// reconciliation job frees the slot later.
	s.releaseSlot(ctx, log.SlotID, log.ID)

	log.ExitTime = &exitTime
	log.DurationMinutes = minutes
	log.UpdatedAt = exitTime

	s.metrics.RecordPresenceEvent(ctx, "exit", log.VehicleType)
	return domain.ExitResponse{
		VehicleLog: *log,
		Duration:   domain.FormatDuration(minutes),
	}, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetVehicleLogRequest) (domain.VehicleLog, error) {
	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.VehicleLog{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.VehicleLog{}, err
	}
	if item == nil {
		return domain.VehicleLog{}, domain.ErrNotFound
	}

	return *item, nil
}

func (s *Service) ListByUser(ctx context.Context, req domain.ListVehicleLogRequest) (domain.ListVehicleLogResponse, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return domain.ListVehicleLogResponse{}, domain.ErrInvalidUser
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
		return domain.ListVehicleLogResponse{}, err
	}

	return s.buildListResponse(items, pageSize), nil
}

func (s *Service) ListOpen(ctx context.Context, req domain.ListVehicleLogRequest) (domain.ListVehicleLogResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.ListOpen(ctx, s.db, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListVehicleLogResponse{}, err
	}

	return s.buildListResponse(items, pageSize), nil
}

func (s *Service) buildListResponse(items []*domain.VehicleLog, pageSize int32) domain.ListVehicleLogResponse {
	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(log *domain.VehicleLog) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        log.ID.String(),
			CreatedAt: log.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	logs := make([]domain.VehicleLog, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		logs = append(logs, *item)
	}

	resp := domain.ListVehicleLogResponse{VehicleLogs: logs}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp
}

func (s *Service) releaseSlot(ctx context.Context, slotID, logID snowflake.ID) {
	err := s.coordinator.Release(ctx, s.db, slotID)
	if err == nil {
		return
	}

	s.log.Warn("slot release failed, queueing reconciliation",
		zap.String("slot_id", slotID.String()),
		zap.String("vehicle_log_id", logID.String()),
		zap.Error(err),
	)

	now := s.clock.Now()
	vehicleLogID := logID
	entry := occupancy.Reconciliation{
		ID:           s.genID.Generate(),
		SlotID:       slotID,
		VehicleLogID: &vehicleLogID,
		LastError:    err.Error(),
		Status:       occupancy.ReconciliationStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if enqueueErr := s.reconRepo.Enqueue(ctx, s.db, &entry); enqueueErr != nil {
		s.log.Error("failed to enqueue occupancy reconciliation",
			zap.String("slot_id", slotID.String()),
			zap.Error(enqueueErr),
		)
	}
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
