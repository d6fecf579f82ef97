package occupancy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/parkway/internal/clock"
	slotdomain "github.com/smallbiznis/parkway/internal/slot/domain"
	"github.com/smallbiznis/parkway/pkg/db/pagination"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubRepo struct {
	findByID  func(id snowflake.ID) (*slotdomain.Slot, error)
	tryOccupy func(id snowflake.ID, version int64) (bool, error)
	release   func(id snowflake.ID) (bool, error)
}

func (s *stubRepo) Insert(context.Context, *gorm.DB, *slotdomain.Slot) error {
	return errors.New("not implemented")
}

func (s *stubRepo) FindByID(_ context.Context, _ *gorm.DB, id snowflake.ID) (*slotdomain.Slot, error) {
	return s.findByID(id)
}

func (s *stubRepo) FindByIDForUpdate(_ context.Context, _ *gorm.DB, id snowflake.ID) (*slotdomain.Slot, error) {
	return s.findByID(id)
}

func (s *stubRepo) List(context.Context, *gorm.DB, slotdomain.ListSlotFilter, pagination.Pagination) ([]*slotdomain.Slot, error) {
	return nil, errors.New("not implemented")
}

func (s *stubRepo) Save(context.Context, *gorm.DB, *slotdomain.Slot) error {
	return errors.New("not implemented")
}

func (s *stubRepo) Delete(context.Context, *gorm.DB, snowflake.ID) error {
	return errors.New("not implemented")
}

func (s *stubRepo) TryOccupy(_ context.Context, _ *gorm.DB, id snowflake.ID, version int64, _ time.Time) (bool, error) {
	return s.tryOccupy(id, version)
}

func (s *stubRepo) Release(_ context.Context, _ *gorm.DB, id snowflake.ID, _ time.Time) (bool, error) {
	return s.release(id)
}

func newTestCoordinator(repo *stubRepo, cfg Config) Coordinator {
	return New(Params{
		Log:   zap.NewNop(),
		Clock: clock.NewFakeClock(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)),
		Repo:  repo,
	}, cfg)
}

func TestAcquireWinsFreeSlot(t *testing.T) {
	slotID := snowflake.ID(42)
	repo := &stubRepo{
		findByID: func(id snowflake.ID) (*slotdomain.Slot, error) {
			return &slotdomain.Slot{ID: id, Occupied: false, Version: 7}, nil
		},
		tryOccupy: func(_ snowflake.ID, version int64) (bool, error) {
			require.EqualValues(t, 7, version)
			return true, nil
		},
	}

	result, err := newTestCoordinator(repo, Config{}).Acquire(context.Background(), nil, slotID)
	require.NoError(t, err)
	require.Equal(t, slotID, result.SlotID)
	require.EqualValues(t, 8, result.Version)
}

func TestAcquireOccupiedSlotIsBusy(t *testing.T) {
	repo := &stubRepo{
		findByID: func(id snowflake.ID) (*slotdomain.Slot, error) {
			return &slotdomain.Slot{ID: id, Occupied: true, Version: 3}, nil
		},
	}

	_, err := newTestCoordinator(repo, Config{}).Acquire(context.Background(), nil, snowflake.ID(42))
	require.ErrorIs(t, err, ErrSlotBusy)
}

func TestAcquireMissingSlot(t *testing.T) {
	repo := &stubRepo{
		findByID: func(snowflake.ID) (*slotdomain.Slot, error) {
			return nil, nil
		},
	}

	_, err := newTestCoordinator(repo, Config{}).Acquire(context.Background(), nil, snowflake.ID(42))
	require.ErrorIs(t, err, ErrSlotNotFound)
}

func TestAcquireLostRaceToOccupier(t *testing.T) {
	reads := 0
	repo := &stubRepo{
		findByID: func(id snowflake.ID) (*slotdomain.Slot, error) {
			reads++
			if reads == 1 {
				return &slotdomain.Slot{ID: id, Occupied: false, Version: 1}, nil
			}
			return &slotdomain.Slot{ID: id, Occupied: true, Version: 2}, nil
		},
		tryOccupy: func(snowflake.ID, int64) (bool, error) {
			return false, nil
		},
	}

	_, err := newTestCoordinator(repo, Config{}).Acquire(context.Background(), nil, snowflake.ID(42))
	require.ErrorIs(t, err, ErrSlotBusy)
}

func TestAcquireVersionMovedButFree(t *testing.T) {
	reads := 0
	repo := &stubRepo{
		findByID: func(id snowflake.ID) (*slotdomain.Slot, error) {
			reads++
			if reads == 1 {
				return &slotdomain.Slot{ID: id, Occupied: false, Version: 1}, nil
			}
			return &slotdomain.Slot{ID: id, Occupied: false, Version: 3}, nil
		},
		tryOccupy: func(snowflake.ID, int64) (bool, error) {
			return false, nil
		},
	}

	_, err := newTestCoordinator(repo, Config{}).Acquire(context.Background(), nil, snowflake.ID(42))
	require.ErrorIs(t, err, ErrVersionConflict)
}

func TestAcquireDownstreamAfterRetries(t *testing.T) {
	attempts := 0
	repo := &stubRepo{
		findByID: func(snowflake.ID) (*slotdomain.Slot, error) {
			attempts++
			return nil, gorm.ErrInvalidTransaction
		},
	}

	coord := newTestCoordinator(repo, Config{Retries: 3, Backoff: time.Millisecond})
	_, err := coord.Acquire(context.Background(), nil, snowflake.ID(42))
	require.ErrorIs(t, err, ErrDownstream)
	require.ErrorIs(t, err, gorm.ErrInvalidTransaction)
	require.Equal(t, 3, attempts)
}

func TestReleaseAlreadyFreeIsIdempotent(t *testing.T) {
	repo := &stubRepo{
		release: func(snowflake.ID) (bool, error) {
			return false, nil
		},
	}

	err := newTestCoordinator(repo, Config{}).Release(context.Background(), nil, snowflake.ID(42))
	require.NoError(t, err)
}

func TestReleaseRetriesTransientFailure(t *testing.T) {
	attempts := 0
	repo := &stubRepo{
		release: func(snowflake.ID) (bool, error) {
			attempts++
			if attempts < 2 {
				return false, gorm.ErrInvalidTransaction
			}
			return true, nil
		},
	}

	coord := newTestCoordinator(repo, Config{Retries: 3, Backoff: time.Millisecond})
	err := coord.Release(context.Background(), nil, snowflake.ID(42))
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
}
