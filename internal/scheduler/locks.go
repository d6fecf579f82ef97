package scheduler

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/parkway/internal/occupancy"
	obsmetrics "github.com/smallbiznis/parkway/internal/observability/metrics"
	reservationdomain "github.com/smallbiznis/parkway/internal/reservation/domain"
	"gorm.io/gorm"
)

// WorkReservation is the slice of a reservation row the sweep needs to
// complete it and free its slot.
type WorkReservation struct {
	ID      snowflake.ID
	SlotID  snowflake.ID
	UserID  string
	EndTime time.Time
	Status  reservationdomain.ReservationStatus
}

// OrphanSlot is an occupied slot with no active reservation and no open
// vehicle log holding it.
type OrphanSlot struct {
	ID        snowflake.ID
	UpdatedAt time.Time
}

// fetchReservationsForWork claims active reservations whose end time has
// passed. SKIP LOCKED lets concurrent sweeps partition the backlog instead
// of queueing on each other's rows.
func (s *Scheduler) fetchReservationsForWork(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]WorkReservation, error) {
	if limit <= 0 {
		limit = s.cfg.BatchSize
	}
	var reservations []WorkReservation
	schedMetrics := obsmetrics.Scheduler()
	lockStart := time.Now()
	err := tx.WithContext(ctx).Raw(
		`SELECT id, slot_id, user_id, end_time, status
		 FROM reservations
		 WHERE status = ?
		   AND end_time <= ?
		 ORDER BY end_time ASC, id ASC
		 LIMIT ?
		 FOR UPDATE SKIP LOCKED`,
		reservationdomain.ReservationStatusActive,
		now,
		limit,
	).Scan(&reservations).Error
	schedMetrics.ObserveDBLockWait(obsmetrics.LockResourceReservationsForWork, time.Since(lockStart))
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

// fetchOrphanSlots finds slots stuck occupied past the threshold while
// nothing references them: no active reservation, no open vehicle log and
// no pending reconciliation.
func (s *Scheduler) fetchOrphanSlots(ctx context.Context, cutoff time.Time, limit int) ([]OrphanSlot, error) {
	if limit <= 0 {
		limit = s.cfg.BatchSize
	}
	var slots []OrphanSlot
	err := s.db.WithContext(ctx).Raw(
		`SELECT ps.id, ps.updated_at
		 FROM parking_slots ps
		 WHERE ps.occupied = ?
		   AND ps.updated_at <= ?
		   AND NOT EXISTS (
			   SELECT 1 FROM reservations r
			   WHERE r.slot_id = ps.id AND r.status = ?
		   )
		   AND NOT EXISTS (
			   SELECT 1 FROM vehicle_logs vl
			   WHERE vl.slot_id = ps.id AND vl.exit_time IS NULL
		   )
		   AND NOT EXISTS (
			   SELECT 1 FROM occupancy_reconciliations oc
			   WHERE oc.slot_id = ps.id AND oc.status = ?
		   )
		 ORDER BY ps.updated_at ASC
		 LIMIT ?`,
		true,
		cutoff,
		reservationdomain.ReservationStatusActive,
		occupancy.ReconciliationStatusPending,
		limit,
	).Scan(&slots).Error
	if err != nil {
		return nil, err
	}
	return slots, nil
}
