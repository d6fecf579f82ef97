package occupancy

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ReconciliationStatus string

const (
	ReconciliationStatusPending   ReconciliationStatus = "PENDING"
	ReconciliationStatusExhausted ReconciliationStatus = "EXHAUSTED"
)

// Reconciliation records a slot whose release failed and must be retried.
// At most one pending row exists per reservation or vehicle log, so a
// release can be replayed without double-booking the queue.
type Reconciliation struct {
	ID            snowflake.ID         `gorm:"primaryKey" json:"id"`
	SlotID        snowflake.ID         `gorm:"not null;index" json:"slot_id"`
	ReservationID *snowflake.ID        `gorm:"uniqueIndex" json:"reservation_id,omitempty"`
	VehicleLogID  *snowflake.ID        `gorm:"uniqueIndex" json:"vehicle_log_id,omitempty"`
	Attempts      int                  `gorm:"not null;default:0" json:"attempts"`
	LastError     string               `json:"last_error,omitempty"`
	Status        ReconciliationStatus `gorm:"not null;index" json:"status"`
	CreatedAt     time.Time            `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time            `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Reconciliation) TableName() string {
	return "occupancy_reconciliations"
}

type ReconciliationRepository interface {
	Enqueue(ctx context.Context, db *gorm.DB, entry *Reconciliation) error
	ClaimPending(ctx context.Context, db *gorm.DB, limit int) ([]Reconciliation, error)
	MarkAttempt(ctx context.Context, db *gorm.DB, id snowflake.ID, lastError string, now time.Time) error
	MarkExhausted(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	CountPending(ctx context.Context, db *gorm.DB) (int64, error)
}

type reconciliationRepo struct{}

func ProvideReconciliationRepository() ReconciliationRepository {
	return &reconciliationRepo{}
}

// Enqueue inserts a pending row, ignoring duplicates for the same
// reservation or vehicle log.
func (r *reconciliationRepo) Enqueue(ctx context.Context, db *gorm.DB, entry *Reconciliation) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO occupancy_reconciliations (id, slot_id, reservation_id, vehicle_log_id, attempts, last_error, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		entry.ID,
		entry.SlotID,
		entry.ReservationID,
		entry.VehicleLogID,
		entry.Attempts,
		entry.LastError,
		entry.Status,
		entry.CreatedAt,
		entry.UpdatedAt,
	).Error
}

func (r *reconciliationRepo) ClaimPending(ctx context.Context, db *gorm.DB, limit int) ([]Reconciliation, error) {
	var entries []Reconciliation
	err := db.WithContext(ctx).Raw(
		`SELECT id, slot_id, reservation_id, vehicle_log_id, attempts, last_error, status, created_at, updated_at
		 FROM occupancy_reconciliations
		 WHERE status = ?
		 ORDER BY created_at
		 FOR UPDATE SKIP LOCKED
		 LIMIT ?`,
		ReconciliationStatusPending,
		limit,
	).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *reconciliationRepo) MarkAttempt(ctx context.Context, db *gorm.DB, id snowflake.ID, lastError string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE occupancy_reconciliations
		 SET attempts = attempts + 1, last_error = ?, updated_at = ?
		 WHERE id = ?`,
		lastError, now, id,
	).Error
}

func (r *reconciliationRepo) MarkExhausted(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE occupancy_reconciliations SET status = ?, updated_at = ? WHERE id = ?`,
		ReconciliationStatusExhausted, now, id,
	).Error
}

func (r *reconciliationRepo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM occupancy_reconciliations WHERE id = ?`,
		id,
	).Error
}

func (r *reconciliationRepo) CountPending(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM occupancy_reconciliations WHERE status = ?`,
		ReconciliationStatusPending,
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
