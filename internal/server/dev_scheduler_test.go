package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/parkway/internal/config"
	reservationdomain "github.com/smallbiznis/parkway/internal/reservation/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openDevTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.Exec(`CREATE TABLE reservations (
		id INTEGER PRIMARY KEY,
		user_id TEXT,
		slot_id INTEGER,
		vehicle_number TEXT,
		vehicle_type TEXT,
		start_time DATETIME,
		end_time DATETIME,
		status TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`).Error)

	return db
}

func newDevTestServer(t *testing.T, environment string) (*Server, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := openDevTestDB(t)

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	srv := &Server{
		engine: engine,
		cfg:    config.Config{Environment: environment},
		db:     db,
	}
	srv.RegisterDevSchedulerRoutes()

	return srv, db
}

func insertActiveReservation(t *testing.T, db *gorm.DB, id int64, endTime time.Time) {
	t.Helper()
	require.NoError(t, db.Exec(
		`INSERT INTO reservations (id, user_id, slot_id, vehicle_number, vehicle_type, start_time, end_time, status, created_at, updated_at)
		 VALUES (?, 'user-1', 10, 'KA-01-HH-1234', '4W', ?, ?, ?, ?, ?)`,
		id,
		endTime.Add(-2*time.Hour),
		endTime,
		reservationdomain.ReservationStatusActive,
		endTime.Add(-3*time.Hour),
		endTime.Add(-3*time.Hour),
	).Error)
}

func TestDevFastForwardReservationEndsActiveWindow(t *testing.T) {
	srv, db := newDevTestServer(t, "development")

	future := time.Now().UTC().Add(2 * time.Hour)
	insertActiveReservation(t, db, 7, future)

	req := httptest.NewRequest(http.MethodPost, "/dev/reservations/7/fast-forward", nil)
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var endTime time.Time
	require.NoError(t, db.Raw(`SELECT end_time FROM reservations WHERE id = 7`).Scan(&endTime).Error)
	assert.True(t, endTime.Before(time.Now().UTC()))
}

func TestDevFastForwardAllEndsEveryActiveReservation(t *testing.T) {
	srv, db := newDevTestServer(t, "development")

	future := time.Now().UTC().Add(2 * time.Hour)
	insertActiveReservation(t, db, 7, future)
	insertActiveReservation(t, db, 8, future.Add(time.Hour))

	req := httptest.NewRequest(http.MethodPost, "/dev/reservations/fast-forward-all", nil)
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var remaining int64
	require.NoError(t, db.Raw(
		`SELECT COUNT(*) FROM reservations WHERE status = ? AND end_time > ?`,
		reservationdomain.ReservationStatusActive,
		time.Now().UTC(),
	).Scan(&remaining).Error)
	assert.Zero(t, remaining)
}

func TestDevReservationInfoReportsCompletable(t *testing.T) {
	srv, db := newDevTestServer(t, "development")

	insertActiveReservation(t, db, 7, time.Now().UTC().Add(-10*time.Minute))

	req := httptest.NewRequest(http.MethodGet, "/dev/reservations/7/info", nil)
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"can_complete":true`)
}

func TestDevRoutesSkippedInProduction(t *testing.T) {
	srv, _ := newDevTestServer(t, "production")

	req := httptest.NewRequest(http.MethodPost, "/dev/reservations/7/fast-forward", nil)
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
