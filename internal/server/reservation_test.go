package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwmarrin/snowflake"
	reservationdomain "github.com/smallbiznis/parkway/internal/reservation/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateReservation(t *testing.T) {
	srv, deps := newTestServer(t)

	deps.reservations.createFn = func(_ context.Context, req reservationdomain.CreateReservationRequest) (reservationdomain.Reservation, error) {
		return reservationdomain.Reservation{
			ID:     snowflake.ID(7),
			UserID: req.UserID,
			Status: reservationdomain.ReservationStatusActive,
		}, nil
	}

	body := bytes.NewBufferString(`{
		"user_id": "u-1",
		"slot_id": "42",
		"vehicle_number": "KA-01-AB-1234",
		"vehicle_type": "4W",
		"start_time": "2026-09-01T10:00:00Z",
		"end_time": "2026-09-01T12:00:00Z"
	}`)
	req := httptest.NewRequest(http.MethodPost, "/reservations", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, "Reservation created successfully", env.Message)
}

func TestCreateReservationOverlapConflicts(t *testing.T) {
	srv, deps := newTestServer(t)

	deps.reservations.createFn = func(context.Context, reservationdomain.CreateReservationRequest) (reservationdomain.Reservation, error) {
		return reservationdomain.Reservation{}, &reservationdomain.ConflictError{ReservationID: snowflake.ID(9)}
	}

	body := bytes.NewBufferString(`{"user_id":"u-1","slot_id":"42"}`)
	req := httptest.NewRequest(http.MethodPost, "/reservations", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "Slot is already reserved for the requested time window", env.Message)
}

func TestCreateReservationRejectsInvertedInterval(t *testing.T) {
	srv, deps := newTestServer(t)

	deps.reservations.createFn = func(context.Context, reservationdomain.CreateReservationRequest) (reservationdomain.Reservation, error) {
		return reservationdomain.Reservation{}, reservationdomain.ErrInvalidInterval
	}

	body := bytes.NewBufferString(`{"user_id":"u-1","slot_id":"42"}`)
	req := httptest.NewRequest(http.MethodPost, "/reservations", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "Start time must be before end time", env.Message)
}

func TestUpdateReservationStatus(t *testing.T) {
	srv, deps := newTestServer(t)

	var got reservationdomain.UpdateStatusRequest
	deps.reservations.updateStatusFn = func(_ context.Context, req reservationdomain.UpdateStatusRequest) (reservationdomain.Reservation, error) {
		got = req
		return reservationdomain.Reservation{ID: snowflake.ID(7), Status: reservationdomain.ReservationStatusCompleted}, nil
	}

	body := bytes.NewBufferString(`{"status":"COMPLETED"}`)
	req := httptest.NewRequest(http.MethodPut, "/reservations/7/status", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "7", got.ID)
	assert.Equal(t, "COMPLETED", got.Status)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "Reservation status updated successfully", env.Message)
}

func TestUpdateReservationStatusTerminalConflicts(t *testing.T) {
	srv, deps := newTestServer(t)

	deps.reservations.updateStatusFn = func(context.Context, reservationdomain.UpdateStatusRequest) (reservationdomain.Reservation, error) {
		return reservationdomain.Reservation{}, reservationdomain.ErrInvalidTransition
	}

	body := bytes.NewBufferString(`{"status":"CANCELLED"}`)
	req := httptest.NewRequest(http.MethodPut, "/reservations/7/status", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "Reservation is already in a terminal state", env.Message)
}

func TestListReservationsRequiresUser(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/reservations", nil)
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelReservation(t *testing.T) {
	srv, deps := newTestServer(t)

	var cancelled string
	deps.reservations.cancelFn = func(_ context.Context, id string) (reservationdomain.Reservation, error) {
		cancelled = id
		return reservationdomain.Reservation{ID: snowflake.ID(7), Status: reservationdomain.ReservationStatusCancelled}, nil
	}

	req := httptest.NewRequest(http.MethodDelete, "/reservations/7", nil)
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "7", cancelled)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "Reservation cancelled successfully", env.Message)
}

func TestGetReservationNotFound(t *testing.T) {
	srv, deps := newTestServer(t)

	deps.reservations.getFn = func(context.Context, reservationdomain.GetReservationRequest) (reservationdomain.Reservation, error) {
		return reservationdomain.Reservation{}, reservationdomain.ErrNotFound
	}

	req := httptest.NewRequest(http.MethodGet, "/reservations/999", nil)
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "Reservation not found", env.Message)
}
