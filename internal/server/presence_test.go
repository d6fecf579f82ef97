package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/parkway/internal/occupancy"
	presencedomain "github.com/smallbiznis/parkway/internal/presence/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordVehicleEntry(t *testing.T) {
	srv, deps := newTestServer(t)

	var got presencedomain.RecordEntryRequest
	deps.presence.entryFn = func(_ context.Context, req presencedomain.RecordEntryRequest) (presencedomain.VehicleLog, error) {
		got = req
		return presencedomain.VehicleLog{ID: snowflake.ID(11), SlotID: snowflake.ID(42)}, nil
	}

	body := bytes.NewBufferString(`{"vehicle_number":"KA-05-XY-9999","user_id":"u-2","slot_id":"42"}`)
	req := httptest.NewRequest(http.MethodPost, "/vehicle-presence/entry", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "KA-05-XY-9999", got.VehicleNumber)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "Vehicle entry recorded", env.Message)
}

func TestRecordVehicleEntryBusySlot(t *testing.T) {
	srv, deps := newTestServer(t)

	deps.presence.entryFn = func(context.Context, presencedomain.RecordEntryRequest) (presencedomain.VehicleLog, error) {
		return presencedomain.VehicleLog{}, occupancy.ErrSlotBusy
	}

	body := bytes.NewBufferString(`{"vehicle_number":"KA-05-XY-9999","user_id":"u-2","slot_id":"42"}`)
	req := httptest.NewRequest(http.MethodPost, "/vehicle-presence/entry", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "Slot is already occupied", env.Message)
}

func TestRecordVehicleExit(t *testing.T) {
	srv, deps := newTestServer(t)

	deps.presence.exitFn = func(_ context.Context, req presencedomain.RecordExitRequest) (presencedomain.ExitResponse, error) {
		require.Equal(t, "11", req.ID)
		return presencedomain.ExitResponse{
			VehicleLog: presencedomain.VehicleLog{ID: snowflake.ID(11), DurationMinutes: 95},
			Duration:   "1h 35m",
		}, nil
	}

	req := httptest.NewRequest(http.MethodPost, "/vehicle-presence/11/exit", nil)
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "Vehicle exit recorded", env.Message)
	assert.Contains(t, string(env.Data), "1h 35m")
}

func TestRecordVehicleExitTwiceConflicts(t *testing.T) {
	srv, deps := newTestServer(t)

	deps.presence.exitFn = func(context.Context, presencedomain.RecordExitRequest) (presencedomain.ExitResponse, error) {
		return presencedomain.ExitResponse{}, presencedomain.ErrExitRecorded
	}

	req := httptest.NewRequest(http.MethodPost, "/vehicle-presence/11/exit", nil)
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "Exit already recorded for this vehicle log", env.Message)
}

func TestListVehicleLogsOpenFilter(t *testing.T) {
	srv, deps := newTestServer(t)

	openCalled := false
	deps.presence.listOpenFn = func(context.Context, presencedomain.ListVehicleLogRequest) (presencedomain.ListVehicleLogResponse, error) {
		openCalled = true
		return presencedomain.ListVehicleLogResponse{}, nil
	}

	req := httptest.NewRequest(http.MethodGet, "/vehicle-presence?userId=u-2&open=true", nil)
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, openCalled)
}
