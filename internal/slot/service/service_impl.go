package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/parkway/internal/clock"
	"github.com/smallbiznis/parkway/internal/slot/domain"
	"github.com/smallbiznis/parkway/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("slot.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateSlotRequest) (domain.Slot, error) {
	location := strings.TrimSpace(req.Location)
	if location == "" {
		return domain.Slot{}, domain.ErrInvalidLocation
	}

	vehicleType := strings.ToUpper(strings.TrimSpace(req.VehicleType))
	if !domain.ValidVehicleType(vehicleType) {
		return domain.Slot{}, domain.ErrInvalidVehicleType
	}

	metadata := datatypes.JSONMap{}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	now := s.clock.Now()
	slot := domain.Slot{
		ID:           s.genID.Generate(),
		Location:     location,
		LocationCode: slug.Make(location),
		VehicleType:  vehicleType,
		Occupied:     false,
		Version:      0,
		Metadata:     metadata,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Insert(ctx, s.db, &slot); err != nil {
		return domain.Slot{}, err
	}

	return slot, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateSlotRequest) (domain.Slot, error) {
	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Slot{}, err
	}

	var updated domain.Slot
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}

		updated = *current
		if req.Location != nil {
			location := strings.TrimSpace(*req.Location)
			if location == "" {
				return domain.ErrInvalidLocation
			}
			updated.Location = location
			updated.LocationCode = slug.Make(location)
		}
		if req.VehicleType != nil {
			vehicleType := strings.ToUpper(strings.TrimSpace(*req.VehicleType))
			if !domain.ValidVehicleType(vehicleType) {
				return domain.ErrInvalidVehicleType
			}
			updated.VehicleType = vehicleType
		}
		if req.Metadata != nil {
			metadata := datatypes.JSONMap{}
			for k, v := range req.Metadata {
				metadata[k] = v
			}
			updated.Metadata = metadata
		}
		updated.UpdatedAt = s.clock.Now()

		return s.repo.Save(ctx, tx, &updated)
	})
	if err != nil {
		return domain.Slot{}, err
	}

	return updated, nil
}

func (s *Service) Delete(ctx context.Context, rawID string) error {
	id, err := s.parseID(rawID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		if current.Occupied {
			return domain.ErrSlotOccupied
		}
		return s.repo.Delete(ctx, tx, id)
	})
}

func (s *Service) GetByID(ctx context.Context, req domain.GetSlotRequest) (domain.Slot, error) {
	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Slot{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Slot{}, err
	}
	if item == nil {
		return domain.Slot{}, domain.ErrNotFound
	}

	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListSlotRequest) (domain.ListSlotResponse, error) {
	vehicleType := strings.ToUpper(strings.TrimSpace(req.VehicleType))
	if vehicleType != "" && !domain.ValidVehicleType(vehicleType) {
		return domain.ListSlotResponse{}, domain.ErrInvalidVehicleType
	}

	filter := domain.ListSlotFilter{
		VehicleType:  vehicleType,
		LocationCode: strings.TrimSpace(req.LocationCode),
		Occupied:     req.Occupied,
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListSlotResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(slot *domain.Slot) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        slot.ID.String(),
			CreatedAt: slot.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	slots := make([]domain.Slot, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		slots = append(slots, *item)
	}

	resp := domain.ListSlotResponse{Slots: slots}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}

	return resp, nil
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
