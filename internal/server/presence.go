package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	presencedomain "github.com/smallbiznis/parkway/internal/presence/domain"
	"github.com/smallbiznis/parkway/pkg/db/pagination"
)

type recordEntryRequest struct {
	VehicleNumber string `json:"vehicle_number"`
	UserID        string `json:"user_id"`
	SlotID        string `json:"slot_id"`
}

func (s *Server) RecordVehicleEntry(c *gin.Context) {
	var req recordEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.presenceSvc.RecordEntry(c.Request.Context(), presencedomain.RecordEntryRequest{
		VehicleNumber: strings.TrimSpace(req.VehicleNumber),
		UserID:        strings.TrimSpace(req.UserID),
		SlotID:        strings.TrimSpace(req.SlotID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusCreated, "Vehicle entry recorded", resp)
}

func (s *Server) RecordVehicleExit(c *gin.Context) {
	resp, err := s.presenceSvc.RecordExit(c.Request.Context(), presencedomain.RecordExitRequest{
		ID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, "Vehicle exit recorded", resp)
}

func (s *Server) GetVehicleLogByID(c *gin.Context) {
	resp, err := s.presenceSvc.GetByID(c.Request.Context(), presencedomain.GetVehicleLogRequest{
		ID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, "Vehicle log fetched successfully", resp)
}

func (s *Server) ListVehicleLogs(c *gin.Context) {
	var query struct {
		pagination.Pagination
		UserID string `form:"userId"`
		Open   bool   `form:"open"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	userID := strings.TrimSpace(query.UserID)
	if userID == "" {
		AbortWithError(c, presencedomain.ErrInvalidUser)
		return
	}

	req := presencedomain.ListVehicleLogRequest{
		UserID:    userID,
		PageToken: query.PageToken,
		PageSize:  int32(query.PageSize),
	}

	ctx := c.Request.Context()
	var resp presencedomain.ListVehicleLogResponse
	var err error
	if query.Open {
		resp, err = s.presenceSvc.ListOpen(ctx, req)
	} else {
		resp, err = s.presenceSvc.ListByUser(ctx, req)
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, "Vehicle logs retrieved successfully", resp)
}
