package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/parkway/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, log *VehicleLog) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*VehicleLog, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID string, page pagination.Pagination) ([]*VehicleLog, error)
	ListOpen(ctx context.Context, db *gorm.DB, page pagination.Pagination) ([]*VehicleLog, error)
	// CloseExit stamps the exit only when none is recorded yet. False means
	// the exit was already written.
	CloseExit(ctx context.Context, db *gorm.DB, id snowflake.ID, exitTime time.Time, durationMinutes int64) (bool, error)
}
