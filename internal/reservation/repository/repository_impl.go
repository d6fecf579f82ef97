package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/parkway/internal/reservation/domain"
	"github.com/smallbiznis/parkway/pkg/db/option"
	"github.com/smallbiznis/parkway/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, reservation *domain.Reservation) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO reservations (id, user_id, slot_id, vehicle_number, vehicle_type, start_time, end_time, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		reservation.ID,
		reservation.UserID,
		reservation.SlotID,
		reservation.VehicleNumber,
		reservation.VehicleType,
		reservation.StartTime,
		reservation.EndTime,
		reservation.Status,
		reservation.CreatedAt,
		reservation.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Reservation, error) {
	var reservation domain.Reservation
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, slot_id, vehicle_number, vehicle_type, start_time, end_time, status, created_at, updated_at
		 FROM reservations WHERE id = ?`,
		id,
	).Scan(&reservation).Error
	if err != nil {
		return nil, err
	}
	if reservation.ID == 0 {
		return nil, nil
	}
	return &reservation, nil
}

func (r *repo) FindActiveBySlot(ctx context.Context, db *gorm.DB, slotID snowflake.ID) ([]domain.Reservation, error) {
	var reservations []domain.Reservation
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, slot_id, vehicle_number, vehicle_type, start_time, end_time, status, created_at, updated_at
		 FROM reservations WHERE slot_id = ? AND status = ?`,
		slotID,
		domain.ReservationStatusActive,
	).Scan(&reservations).Error
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID string, page pagination.Pagination) ([]*domain.Reservation, error) {
	var reservations []*domain.Reservation
	stmt := db.WithContext(ctx).
		Model(&domain.Reservation{}).
		Where("user_id = ?", userID)
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&reservations).Error
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

func (r *repo) UpdateStatusGuarded(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.ReservationStatus, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE reservations SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, now, id, from,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) Save(ctx context.Context, db *gorm.DB, reservation *domain.Reservation) error {
	return db.WithContext(ctx).Exec(
		`UPDATE reservations
		 SET vehicle_number = ?, vehicle_type = ?, start_time = ?, end_time = ?, status = ?, updated_at = ?
		 WHERE id = ?`,
		reservation.VehicleNumber,
		reservation.VehicleType,
		reservation.StartTime,
		reservation.EndTime,
		reservation.Status,
		reservation.UpdatedAt,
		reservation.ID,
	).Error
}
