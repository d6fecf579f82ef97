package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/parkway/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, reservation *Reservation) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Reservation, error)
	FindActiveBySlot(ctx context.Context, db *gorm.DB, slotID snowflake.ID) ([]Reservation, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID string, page pagination.Pagination) ([]*Reservation, error)
	// UpdateStatusGuarded transitions the row only when it still carries the
	// expected status. False means another writer got there first.
	UpdateStatusGuarded(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to ReservationStatus, now time.Time) (bool, error)
	Save(ctx context.Context, db *gorm.DB, reservation *Reservation) error
}
