package occupancy

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/parkway/internal/clock"
	obsmetrics "github.com/smallbiznis/parkway/internal/observability/metrics"
	slotdomain "github.com/smallbiznis/parkway/internal/slot/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrSlotNotFound    = errors.New("slot_not_found")
	ErrSlotBusy        = errors.New("slot_busy")
	ErrVersionConflict = errors.New("slot_version_conflict")
	ErrDownstream      = errors.New("occupancy_downstream")
)

// AcquireResult reports the version the slot moved to when acquisition won.
type AcquireResult struct {
	SlotID  snowflake.ID
	Version int64
}

// Coordinator serializes slot occupancy transitions through versioned
// compare-and-set updates. It never holds a row lock across calls.
type Coordinator interface {
	Acquire(ctx context.Context, db *gorm.DB, slotID snowflake.ID) (AcquireResult, error)
	Release(ctx context.Context, db *gorm.DB, slotID snowflake.ID) error
}

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Repo    slotdomain.Repository
	Metrics *obsmetrics.Metrics
}

type Config struct {
	Retries int
	Backoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.Retries <= 0 {
		c.Retries = 3
	}
	if c.Backoff <= 0 {
		c.Backoff = 50 * time.Millisecond
	}
	return c
}

type coordinator struct {
	log     *zap.Logger
	clock   clock.Clock
	repo    slotdomain.Repository
	metrics *obsmetrics.Metrics
	cfg     Config
}

func New(p Params, cfg Config) Coordinator {
	return &coordinator{
		log:     p.Log.Named("occupancy.coordinator"),
		clock:   p.Clock,
		repo:    p.Repo,
		metrics: p.Metrics,
		cfg:     cfg.withDefaults(),
	}
}

func (c *coordinator) Acquire(ctx context.Context, db *gorm.DB, slotID snowflake.ID) (AcquireResult, error) {
	var result AcquireResult
	err := c.withRetry(ctx, "acquire", slotID, func() error {
		slot, err := c.repo.FindByID(ctx, db, slotID)
		if err != nil {
			return err
		}
		if slot == nil {
			return ErrSlotNotFound
		}
		if slot.Occupied {
			return ErrSlotBusy
		}

		won, err := c.repo.TryOccupy(ctx, db, slotID, slot.Version, c.clock.Now())
		if err != nil {
			return err
		}
		if won {
			result = AcquireResult{SlotID: slotID, Version: slot.Version + 1}
			return nil
		}

		// The CAS lost. Re-read to tell a racing occupier apart from a
		// concurrent release that only moved the version.
		current, err := c.repo.FindByID(ctx, db, slotID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrSlotNotFound
		}
		if current.Occupied {
			return ErrSlotBusy
		}
		return ErrVersionConflict
	})
	if err != nil {
		c.recordConflict(ctx, err)
		return AcquireResult{}, err
	}
	return result, nil
}

func (c *coordinator) Release(ctx context.Context, db *gorm.DB, slotID snowflake.ID) error {
	return c.withRetry(ctx, "release", slotID, func() error {
		// Zero rows means the slot was already free. Release stays
		// idempotent so replays and crash recovery are safe.
		_, err := c.repo.Release(ctx, db, slotID, c.clock.Now())
		return err
	})
}

// withRetry retries transient failures with jittered exponential backoff
// and wraps exhaustion in ErrDownstream. Domain outcomes pass through.
func (c *coordinator) withRetry(ctx context.Context, op string, slotID snowflake.ID, fn func() error) error {
	var lastErr error
	backoff := c.cfg.Backoff
	for attempt := 1; attempt <= c.cfg.Retries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		lastErr = err
		c.log.Warn("transient occupancy failure",
			zap.String("op", op),
			zap.String("slot_id", slotID.String()),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt == c.cfg.Retries {
			break
		}

		sleep := backoff + time.Duration(rand.Int63n(int64(backoff)))
		select {
		case <-ctx.Done():
			return errors.Join(ErrDownstream, ctx.Err(), lastErr)
		case <-time.After(sleep):
		}
		backoff *= 2
	}
	return errors.Join(ErrDownstream, lastErr)
}

func isTransient(err error) bool {
	switch {
	case errors.Is(err, ErrSlotNotFound),
		errors.Is(err, ErrSlotBusy),
		errors.Is(err, ErrVersionConflict):
		return false
	}
	return obsmetrics.IsSchedulerErrorRetryable(err) || errors.Is(err, gorm.ErrInvalidTransaction)
}

func (c *coordinator) recordConflict(ctx context.Context, err error) {
	switch {
	case errors.Is(err, ErrSlotBusy):
		c.metrics.RecordOccupancyConflict(ctx, "busy")
	case errors.Is(err, ErrVersionConflict):
		c.metrics.RecordOccupancyConflict(ctx, "version_conflict")
	case errors.Is(err, ErrDownstream):
		c.metrics.RecordOccupancyConflict(ctx, "downstream")
	}
}
