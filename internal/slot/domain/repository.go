package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/parkway/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, slot *Slot) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Slot, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Slot, error)
	List(ctx context.Context, db *gorm.DB, filter ListSlotFilter, page pagination.Pagination) ([]*Slot, error)
	Save(ctx context.Context, db *gorm.DB, slot *Slot) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	TryOccupy(ctx context.Context, db *gorm.DB, id snowflake.ID, version int64, now time.Time) (bool, error)
	Release(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error)
}
