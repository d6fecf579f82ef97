package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/parkway/internal/presence/domain"
	"github.com/smallbiznis/parkway/pkg/db/option"
	"github.com/smallbiznis/parkway/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, log *domain.VehicleLog) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO vehicle_logs (id, vehicle_number, user_id, slot_id, vehicle_type, entry_time, exit_time, duration_minutes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID,
		log.VehicleNumber,
		log.UserID,
		log.SlotID,
		log.VehicleType,
		log.EntryTime,
		log.ExitTime,
		log.DurationMinutes,
		log.CreatedAt,
		log.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.VehicleLog, error) {
	var log domain.VehicleLog
	err := db.WithContext(ctx).Raw(
		`SELECT id, vehicle_number, user_id, slot_id, vehicle_type, entry_time, exit_time, duration_minutes, created_at, updated_at
		 FROM vehicle_logs WHERE id = ?`,
		id,
	).Scan(&log).Error
	if err != nil {
		return nil, err
	}
	if log.ID == 0 {
		return nil, nil
	}
	return &log, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID string, page pagination.Pagination) ([]*domain.VehicleLog, error) {
	var logs []*domain.VehicleLog
	stmt := db.WithContext(ctx).
		Model(&domain.VehicleLog{}).
		Where("user_id = ?", userID)
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *repo) ListOpen(ctx context.Context, db *gorm.DB, page pagination.Pagination) ([]*domain.VehicleLog, error) {
	var logs []*domain.VehicleLog
	stmt := db.WithContext(ctx).
		Model(&domain.VehicleLog{}).
		Where("exit_time IS NULL")
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *repo) CloseExit(ctx context.Context, db *gorm.DB, id snowflake.ID, exitTime time.Time, durationMinutes int64) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE vehicle_logs
		 SET exit_time = ?, duration_minutes = ?, updated_at = ?
		 WHERE id = ? AND exit_time IS NULL`,
		exitTime, durationMinutes, exitTime, id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
