package testing

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	reservationdomain "github.com/smallbiznis/parkway/internal/reservation/domain"
	"gorm.io/gorm"
)

// TimeAccelerator fast-forwards reservations so expiry sweeps can be
// exercised without waiting out real end times.
type TimeAccelerator struct {
	db *gorm.DB
}

func NewTimeAccelerator(db *gorm.DB) *TimeAccelerator {
	return &TimeAccelerator{db: db}
}

// FastForwardReservation moves the reservation's end time into the past so
// the next sweep completes it.
func (ta *TimeAccelerator) FastForwardReservation(ctx context.Context, reservationID snowflake.ID) error {
	now := time.Now().UTC()
	return ta.db.WithContext(ctx).Exec(
		`UPDATE reservations
		 SET end_time = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		now.Add(-1*time.Minute),
		now,
		reservationID,
		reservationdomain.ReservationStatusActive,
	).Error
}

// FastForwardAllActiveReservations ends every active reservation.
func (ta *TimeAccelerator) FastForwardAllActiveReservations(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	result := ta.db.WithContext(ctx).Exec(
		`UPDATE reservations
		 SET end_time = ?, updated_at = ?
		 WHERE status = ? AND end_time > ?`,
		now.Add(-1*time.Minute),
		now,
		reservationdomain.ReservationStatusActive,
		now,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// SetReservationWindow assigns a custom interval for testing.
func (ta *TimeAccelerator) SetReservationWindow(ctx context.Context, reservationID snowflake.ID, startTime, endTime time.Time) error {
	return ta.db.WithContext(ctx).Exec(
		`UPDATE reservations
		 SET start_time = ?, end_time = ?, updated_at = ?
		 WHERE id = ?`,
		startTime,
		endTime,
		time.Now().UTC(),
		reservationID,
	).Error
}

// ReservationInfo shows current reservation state for debugging.
type ReservationInfo struct {
	ID           snowflake.ID
	SlotID       snowflake.ID
	Status       reservationdomain.ReservationStatus
	StartTime    time.Time
	EndTime      time.Time
	TimeUntilEnd time.Duration
	CanComplete  bool
}

func (ta *TimeAccelerator) GetReservationInfo(ctx context.Context, reservationID snowflake.ID) (*ReservationInfo, error) {
	var reservation struct {
		ID        snowflake.ID
		SlotID    snowflake.ID
		Status    reservationdomain.ReservationStatus
		StartTime time.Time
		EndTime   time.Time
	}

	err := ta.db.WithContext(ctx).Raw(
		`SELECT id, slot_id, status, start_time, end_time
		 FROM reservations
		 WHERE id = ?`,
		reservationID,
	).Scan(&reservation).Error
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	info := &ReservationInfo{
		ID:           reservation.ID,
		SlotID:       reservation.SlotID,
		Status:       reservation.Status,
		StartTime:    reservation.StartTime,
		EndTime:      reservation.EndTime,
		TimeUntilEnd: reservation.EndTime.Sub(now),
		CanComplete:  now.After(reservation.EndTime) && reservation.Status == reservationdomain.ReservationStatusActive,
	}

	return info, nil
}

// GetAllActiveReservations lists active reservations for debugging.
func (ta *TimeAccelerator) GetAllActiveReservations(ctx context.Context) ([]ReservationInfo, error) {
	var reservations []struct {
		ID        snowflake.ID
		SlotID    snowflake.ID
		Status    reservationdomain.ReservationStatus
		StartTime time.Time
		EndTime   time.Time
	}

	err := ta.db.WithContext(ctx).Raw(
		`SELECT id, slot_id, status, start_time, end_time
		 FROM reservations
		 WHERE status = ?
		 ORDER BY end_time ASC`,
		reservationdomain.ReservationStatusActive,
	).Scan(&reservations).Error
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	infos := make([]ReservationInfo, 0, len(reservations))
	for _, reservation := range reservations {
		infos = append(infos, ReservationInfo{
			ID:           reservation.ID,
			SlotID:       reservation.SlotID,
			Status:       reservation.Status,
			StartTime:    reservation.StartTime,
			EndTime:      reservation.EndTime,
			TimeUntilEnd: reservation.EndTime.Sub(now),
			CanComplete:  now.After(reservation.EndTime),
		})
	}

	return infos, nil
}
