package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	reservationdomain "github.com/smallbiznis/parkway/internal/reservation/domain"
	schedulertesting "github.com/smallbiznis/parkway/internal/scheduler/testing"
)

// RegisterDevSchedulerRoutes adds development-only endpoints for driving
// the expiry sweep by hand: fast-forward reservation end times instead of
// waiting them out.
func (s *Server) RegisterDevSchedulerRoutes() {
	if s.cfg.Environment == "production" {
		return
	}

	dev := s.engine.Group("/dev/reservations")

	dev.POST("/:id/fast-forward", s.DevFastForwardReservation)
	dev.POST("/fast-forward-all", s.DevFastForwardAllReservations)
	dev.POST("/:id/window", s.DevSetReservationWindow)

	dev.GET("/:id/info", s.DevGetReservationInfo)
	dev.GET("/active", s.DevGetActiveReservations)
}

func (s *Server) DevFastForwardReservation(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	reservationID, err := snowflake.ParseString(id)
	if err != nil {
		AbortWithError(c, reservationdomain.ErrInvalidID)
		return
	}

	helper := schedulertesting.NewTimeAccelerator(s.db)
	if err := helper.FastForwardReservation(c.Request.Context(), reservationID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":        "reservation fast-forwarded",
		"reservation_id": id,
	})
}

func (s *Server) DevFastForwardAllReservations(c *gin.Context) {
	helper := schedulertesting.NewTimeAccelerator(s.db)
	affected, err := helper.FastForwardAllActiveReservations(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":               "all active reservations fast-forwarded",
		"affected_reservations": affected,
	})
}

type devReservationWindowRequest struct {
	StartTime time.Time `json:"start_time" binding:"required"`
	EndTime   time.Time `json:"end_time" binding:"required"`
}

func (s *Server) DevSetReservationWindow(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	reservationID, err := snowflake.ParseString(id)
	if err != nil {
		AbortWithError(c, reservationdomain.ErrInvalidID)
		return
	}

	var req devReservationWindowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	helper := schedulertesting.NewTimeAccelerator(s.db)
	if err := helper.SetReservationWindow(c.Request.Context(), reservationID, req.StartTime, req.EndTime); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":        "reservation window updated",
		"reservation_id": id,
	})
}

func (s *Server) DevGetReservationInfo(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	reservationID, err := snowflake.ParseString(id)
	if err != nil {
		AbortWithError(c, reservationdomain.ErrInvalidID)
		return
	}

	helper := schedulertesting.NewTimeAccelerator(s.db)
	info, err := helper.GetReservationInfo(c.Request.Context(), reservationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"id":                     info.ID.String(),
			"slot_id":                info.SlotID.String(),
			"status":                 info.Status,
			"start_time":             info.StartTime,
			"end_time":               info.EndTime,
			"time_until_end_seconds": info.TimeUntilEnd.Seconds(),
			"can_complete":           info.CanComplete,
		},
	})
}

func (s *Server) DevGetActiveReservations(c *gin.Context) {
	helper := schedulertesting.NewTimeAccelerator(s.db)
	infos, err := helper.GetAllActiveReservations(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items := make([]gin.H, 0, len(infos))
	for _, info := range infos {
		items = append(items, gin.H{
			"id":                     info.ID.String(),
			"slot_id":                info.SlotID.String(),
			"status":                 info.Status,
			"start_time":             info.StartTime,
			"end_time":               info.EndTime,
			"time_until_end_seconds": info.TimeUntilEnd.Seconds(),
			"can_complete":           info.CanComplete,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  items,
		"count": len(items),
	})
}
