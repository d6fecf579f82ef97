package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/parkway/internal/clock"
	"github.com/smallbiznis/parkway/internal/config"
	"github.com/smallbiznis/parkway/internal/occupancy"
	"github.com/smallbiznis/parkway/internal/reservation/domain"
	slotdomain "github.com/smallbiznis/parkway/internal/slot/domain"
	"github.com/smallbiznis/parkway/pkg/db/pagination"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type memoryReservationRepo struct {
	reservations map[snowflake.ID]*domain.Reservation
}

func newMemoryReservationRepo() *memoryReservationRepo {
	return &memoryReservationRepo{reservations: map[snowflake.ID]*domain.Reservation{}}
}

func (r *memoryReservationRepo) Insert(_ context.Context, _ *gorm.DB, reservation *domain.Reservation) error {
	copied := *reservation
	r.reservations[reservation.ID] = &copied
	return nil
}

func (r *memoryReservationRepo) FindByID(_ context.Context, _ *gorm.DB, id snowflake.ID) (*domain.Reservation, error) {
	reservation, ok := r.reservations[id]
	if !ok {
		return nil, nil
	}
	copied := *reservation
	return &copied, nil
}

func (r *memoryReservationRepo) FindActiveBySlot(_ context.Context, _ *gorm.DB, slotID snowflake.ID) ([]domain.Reservation, error) {
	var out []domain.Reservation
	for _, reservation := range r.reservations {
		if reservation.SlotID == slotID && reservation.Status == domain.ReservationStatusActive {
			out = append(out, *reservation)
		}
	}
	return out, nil
}

func (r *memoryReservationRepo) ListByUser(_ context.Context, _ *gorm.DB, userID string, _ pagination.Pagination) ([]*domain.Reservation, error) {
	var out []*domain.Reservation
	for _, reservation := range r.reservations {
		if reservation.UserID == userID {
			copied := *reservation
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memoryReservationRepo) UpdateStatusGuarded(_ context.Context, _ *gorm.DB, id snowflake.ID, from, to domain.ReservationStatus, now time.Time) (bool, error) {
	reservation, ok := r.reservations[id]
	if !ok || reservation.Status != from {
		return false, nil
	}
	reservation.Status = to
	reservation.UpdatedAt = now
	return true, nil
}

func (r *memoryReservationRepo) Save(_ context.Context, _ *gorm.DB, reservation *domain.Reservation) error {
	copied := *reservation
	r.reservations[reservation.ID] = &copied
	return nil
}

type stubSlotRepo struct {
	slotdomain.Repository
	slot *slotdomain.Slot
}

func (s *stubSlotRepo) FindByIDForUpdate(context.Context, *gorm.DB, snowflake.ID) (*slotdomain.Slot, error) {
	return s.slot, nil
}

type recordingCoordinator struct {
	released   []snowflake.ID
	releaseErr error
}

func (c *recordingCoordinator) Acquire(_ context.Context, _ *gorm.DB, slotID snowflake.ID) (occupancy.AcquireResult, error) {
	return occupancy.AcquireResult{SlotID: slotID, Version: 1}, nil
}

func (c *recordingCoordinator) Release(_ context.Context, _ *gorm.DB, slotID snowflake.ID) error {
	if c.releaseErr != nil {
		return c.releaseErr
	}
	c.released = append(c.released, slotID)
	return nil
}

type recordingReconRepo struct {
	occupancy.ReconciliationRepository
	enqueued []occupancy.Reconciliation
}

func (r *recordingReconRepo) Enqueue(_ context.Context, _ *gorm.DB, entry *occupancy.Reconciliation) error {
	r.enqueued = append(r.enqueued, *entry)
	return nil
}

type reservationFixture struct {
	svc         domain.Service
	repo        *memoryReservationRepo
	coordinator *recordingCoordinator
	recon       *recordingReconRepo
	clock       *clock.FakeClock
}

func newReservationFixture(t *testing.T) *reservationFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	repo := newMemoryReservationRepo()
	coordinator := &recordingCoordinator{}
	recon := &recordingReconRepo{}
	fakeClock := clock.NewFakeClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))

	svc := New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       fakeClock,
		Config:      config.Config{SkewTolerance: 2 * time.Minute},
		Rates:       config.NewStaticRateHolder(config.DefaultRateConfig()),
		Repo:        repo,
		SlotRepo:    &stubSlotRepo{slot: &slotdomain.Slot{ID: snowflake.ID(10), VehicleType: "4W"}},
		Coordinator: coordinator,
		ReconRepo:   recon,
	})

	return &reservationFixture{
		svc:         svc,
		repo:        repo,
		coordinator: coordinator,
		recon:       recon,
		clock:       fakeClock,
	}
}

func timePtr(v time.Time) *time.Time { return &v }

func createRequest(start, end time.Time) domain.CreateReservationRequest {
	return domain.CreateReservationRequest{
		UserID:        "user-1",
		SlotID:        "10",
		VehicleNumber: "KA-01-HH-1234",
		VehicleType:   "4W",
		StartTime:     timePtr(start),
		EndTime:       timePtr(end),
	}
}

func TestCreateReservationStoresActiveRecord(t *testing.T) {
	f := newReservationFixture(t)

	reservation, err := f.svc.Create(context.Background(), createRequest(
		time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC),
	))
	require.NoError(t, err)
	require.Equal(t, domain.ReservationStatusActive, reservation.Status)
	require.Equal(t, snowflake.ID(10), reservation.SlotID)

	stored, ok := f.repo.reservations[reservation.ID]
	require.True(t, ok)
	require.Equal(t, domain.ReservationStatusActive, stored.Status)
}

func TestCreateReservationRejectsOverlap(t *testing.T) {
	f := newReservationFixture(t)

	first, err := f.svc.Create(context.Background(), createRequest(
		time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC),
	))
	require.NoError(t, err)

	_, err = f.svc.Create(context.Background(), createRequest(
		time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 1, 16, 0, 0, 0, time.UTC),
	))
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, first.ID, conflict.ReservationID)
}

func TestCreateReservationAllowsTouchingIntervals(t *testing.T) {
	f := newReservationFixture(t)

	_, err := f.svc.Create(context.Background(), createRequest(
		time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC),
	))
	require.NoError(t, err)

	_, err = f.svc.Create(context.Background(), createRequest(
		time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 1, 17, 0, 0, 0, time.UTC),
	))
	require.NoError(t, err)
}

func TestCreateReservationRejectsPastStart(t *testing.T) {
	f := newReservationFixture(t)

	_, err := f.svc.Create(context.Background(), createRequest(
		time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC),
	))
	require.ErrorIs(t, err, domain.ErrStartInPast)
}

func TestCreateReservationToleratesSmallClockSkew(t *testing.T) {
	f := newReservationFixture(t)

	_, err := f.svc.Create(context.Background(), createRequest(
		time.Date(2024, 6, 1, 11, 59, 0, 0, time.UTC),
		time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC),
	))
	require.NoError(t, err)
}

func TestCreateReservationRejectsUnknownVehicleType(t *testing.T) {
	f := newReservationFixture(t)

	req := createRequest(
		time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC),
	)
	req.VehicleType = "3W"
	_, err := f.svc.Create(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrInvalidVehicleType)
}

func TestUpdateMovedIntervalRevalidatesConflicts(t *testing.T) {
	f := newReservationFixture(t)

	first, err := f.svc.Create(context.Background(), createRequest(
		time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC),
	))
	require.NoError(t, err)

	second, err := f.svc.Create(context.Background(), createRequest(
		time.Date(2024, 6, 1, 16, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC),
	))
	require.NoError(t, err)

	_, err = f.svc.Update(context.Background(), domain.UpdateReservationRequest{
		ID:        second.ID.String(),
		StartTime: timePtr(time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)),
		EndTime:   timePtr(time.Date(2024, 6, 1, 16, 0, 0, 0, time.UTC)),
	})
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, first.ID, conflict.ReservationID)
}

func TestUpdateVehicleNumberSkipsConflictCheck(t *testing.T) {
	f := newReservationFixture(t)

	reservation, err := f.svc.Create(context.Background(), createRequest(
		time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC),
	))
	require.NoError(t, err)

	number := "KA-05-ZZ-9999"
	updated, err := f.svc.Update(context.Background(), domain.UpdateReservationRequest{
		ID:            reservation.ID.String(),
		VehicleNumber: &number,
	})
	require.NoError(t, err)
	require.Equal(t, number, updated.VehicleNumber)
}

func TestUpdateTerminalReservationFails(t *testing.T) {
	f := newReservationFixture(t)

	reservation, err := f.svc.Create(context.Background(), createRequest(
		time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC),
	))
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), reservation.ID.String())
	require.NoError(t, err)

	number := "KA-05-ZZ-9999"
	_, err = f.svc.Update(context.Background(), domain.UpdateReservationRequest{
		ID:            reservation.ID.String(),
		VehicleNumber: &number,
	})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestUpdateStatusCompletesAndReleasesSlot(t *testing.T) {
	f := newReservationFixture(t)

	reservation, err := f.svc.Create(context.Background(), createRequest(
		time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC),
	))
	require.NoError(t, err)

	updated, err := f.svc.UpdateStatus(context.Background(), domain.UpdateStatusRequest{
		ID:     reservation.ID.String(),
		Status: "completed",
	})
	require.NoError(t, err)
	require.Equal(t, domain.ReservationStatusCompleted, updated.Status)
	require.Equal(t, []snowflake.ID{reservation.SlotID}, f.coordinator.released)
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	f := newReservationFixture(t)

	reservation, err := f.svc.Create(context.Background(), createRequest(
		time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC),
	))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(context.Background(), domain.UpdateStatusRequest{
		ID:     reservation.ID.String(),
		Status: "PARKED",
	})
	require.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestUpdateStatusOnTerminalReservationFails(t *testing.T) {
	f := newReservationFixture(t)

	reservation, err := f.svc.Create(context.Background(), createRequest(
		time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC),
	))
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), reservation.ID.String())
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(context.Background(), domain.UpdateStatusRequest{
		ID:     reservation.ID.String(),
		Status: "COMPLETED",
	})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCancelQueuesReconciliationWhenReleaseFails(t *testing.T) {
	f := newReservationFixture(t)
	f.coordinator.releaseErr = errors.New("slot row gone")

	reservation, err := f.svc.Create(context.Background(), createRequest(
		time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC),
	))
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(context.Background(), reservation.ID.String())
	require.NoError(t, err)
	require.Equal(t, domain.ReservationStatusCancelled, cancelled.Status)

	require.Len(t, f.recon.enqueued, 1)
	entry := f.recon.enqueued[0]
	require.Equal(t, reservation.SlotID, entry.SlotID)
	require.NotNil(t, entry.ReservationID)
	require.Equal(t, reservation.ID, *entry.ReservationID)
	require.Equal(t, occupancy.ReconciliationStatusPending, entry.Status)
}

func TestListByUserReturnsOwnReservations(t *testing.T) {
	f := newReservationFixture(t)

	_, err := f.svc.Create(context.Background(), createRequest(
		time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC),
	))
	require.NoError(t, err)

	resp, err := f.svc.ListByUser(context.Background(), domain.ListReservationRequest{UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, resp.Reservations, 1)

	_, err = f.svc.ListByUser(context.Background(), domain.ListReservationRequest{UserID: "  "})
	require.ErrorIs(t, err, domain.ErrInvalidUser)
}
