package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/parkway/internal/slot/domain"
	"github.com/smallbiznis/parkway/pkg/db/option"
	"github.com/smallbiznis/parkway/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, slot *domain.Slot) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO parking_slots (id, location, location_code, vehicle_type, occupied, version, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		slot.ID,
		slot.Location,
		slot.LocationCode,
		slot.VehicleType,
		slot.Occupied,
		slot.Version,
		slot.Metadata,
		slot.CreatedAt,
		slot.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Slot, error) {
	var slot domain.Slot
	err := db.WithContext(ctx).Raw(
		`SELECT id, location, location_code, vehicle_type, occupied, version, metadata, created_at, updated_at
		 FROM parking_slots WHERE id = ?`,
		id,
	).Scan(&slot).Error
	if err != nil {
		return nil, err
	}
	if slot.ID == 0 {
		return nil, nil
	}
	return &slot, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Slot, error) {
	var slot domain.Slot
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Model(&domain.Slot{}).
		Where("id = ?", id).
		Take(&slot).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &slot, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListSlotFilter, page pagination.Pagination) ([]*domain.Slot, error) {
	var slots []*domain.Slot
	stmt := db.WithContext(ctx).Model(&domain.Slot{})
	if filter.VehicleType != "" {
		stmt = stmt.Where("vehicle_type = ?", filter.VehicleType)
	}
	if filter.LocationCode != "" {
		stmt = stmt.Where("location_code = ?", filter.LocationCode)
	}
	if filter.Occupied != nil {
		stmt = stmt.Where("occupied = ?", *filter.Occupied)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&slots).Error
	if err != nil {
		return nil, err
	}
	return slots, nil
}

func (r *repo) Save(ctx context.Context, db *gorm.DB, slot *domain.Slot) error {
	return db.WithContext(ctx).Exec(
		`UPDATE parking_slots
		 SET location = ?, location_code = ?, vehicle_type = ?, metadata = ?, updated_at = ?
		 WHERE id = ?`,
		slot.Location,
		slot.LocationCode,
		slot.VehicleType,
		slot.Metadata,
		slot.UpdatedAt,
		slot.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM parking_slots WHERE id = ?`,
		id,
	).Error
}

// TryOccupy flips the slot to occupied only when the caller observed the
// current version and the slot is still free. Zero rows means the caller lost.
func (r *repo) TryOccupy(ctx context.Context, db *gorm.DB, id snowflake.ID, version int64, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE parking_slots
		 SET occupied = TRUE, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ? AND occupied = FALSE`,
		now, id, version,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Release frees the slot unconditionally. Zero rows means it was already
// free, which callers treat as success.
func (r *repo) Release(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE parking_slots
		 SET occupied = FALSE, version = version + 1, updated_at = ?
		 WHERE id = ? AND occupied = TRUE`,
		now, id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
