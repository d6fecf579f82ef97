package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	slotdomain "github.com/smallbiznis/parkway/internal/slot/domain"
	"github.com/smallbiznis/parkway/pkg/db/pagination"
)

type createSlotRequest struct {
	Location    string         `json:"location"`
	VehicleType string         `json:"vehicle_type"`
	Metadata    map[string]any `json:"metadata"`
}

func (s *Server) CreateSlot(c *gin.Context) {
	var req createSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.slotSvc.Create(c.Request.Context(), slotdomain.CreateSlotRequest{
		Location:    strings.TrimSpace(req.Location),
		VehicleType: strings.TrimSpace(req.VehicleType),
		Metadata:    req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusCreated, "Slot added successfully", resp)
}

func (s *Server) ListSlots(c *gin.Context) {
	var query struct {
		pagination.Pagination
		VehicleType  string `form:"vehicle_type"`
		LocationCode string `form:"location_code"`
		Occupied     *bool  `form:"occupied"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.slotSvc.List(c.Request.Context(), slotdomain.ListSlotRequest{
		PageToken:    query.PageToken,
		PageSize:     int32(query.PageSize),
		VehicleType:  strings.TrimSpace(query.VehicleType),
		LocationCode: strings.TrimSpace(query.LocationCode),
		Occupied:     query.Occupied,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, "All slots retrieved successfully", resp)
}

func (s *Server) ListAvailableSlots(c *gin.Context) {
	var query struct {
		pagination.Pagination
		VehicleType string `form:"vehicle_type"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	free := false
	resp, err := s.slotSvc.List(c.Request.Context(), slotdomain.ListSlotRequest{
		PageToken:   query.PageToken,
		PageSize:    int32(query.PageSize),
		VehicleType: strings.TrimSpace(query.VehicleType),
		Occupied:    &free,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, "Available slots fetched", resp)
}

func (s *Server) GetSlotByID(c *gin.Context) {
	resp, err := s.slotSvc.GetByID(c.Request.Context(), slotdomain.GetSlotRequest{
		ID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, "Slot fetched successfully", resp)
}

type updateSlotRequest struct {
	Location    *string        `json:"location"`
	VehicleType *string        `json:"vehicle_type"`
	Occupied    *bool          `json:"occupied"`
	Metadata    map[string]any `json:"metadata"`
}

// UpdateSlot patches slot attributes. An occupied flag in the body goes
// through the coordinator, never a plain column write, so body patches
// obey the same compare-and-set discipline as the allocation paths.
func (s *Server) UpdateSlot(c *gin.Context) {
	var req updateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	ctx := c.Request.Context()
	rawID := strings.TrimSpace(c.Param("id"))
	resp, err := s.slotSvc.Update(ctx, slotdomain.UpdateSlotRequest{
		ID:          rawID,
		Location:    req.Location,
		VehicleType: req.VehicleType,
		Metadata:    req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if req.Occupied != nil && *req.Occupied != resp.Occupied {
		slotID := resp.ID
		if *req.Occupied {
			_, err = s.coordinator.Acquire(ctx, s.db, slotID)
		} else {
			err = s.coordinator.Release(ctx, s.db, slotID)
		}
		if err != nil {
			AbortWithError(c, err)
			return
		}

		resp, err = s.slotSvc.GetByID(ctx, slotdomain.GetSlotRequest{ID: rawID})
		if err != nil {
			AbortWithError(c, err)
			return
		}
	}

	respond(c, http.StatusOK, "Slot updated successfully", resp)
}

func (s *Server) DeleteSlot(c *gin.Context) {
	if err := s.slotSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, "Slot deleted successfully", nil)
}

// UpdateSlotOccupancy flips a slot through the coordinator so manual
// overrides obey the same compare-and-set discipline as the allocation
// paths.
func (s *Server) UpdateSlotOccupancy(c *gin.Context) {
	rawID := strings.TrimSpace(c.Query("slotId"))
	if rawID == "" {
		AbortWithError(c, slotdomain.ErrInvalidID)
		return
	}
	slotID, err := snowflake.ParseString(rawID)
	if err != nil {
		AbortWithError(c, slotdomain.ErrInvalidID)
		return
	}

	occupied, err := strconv.ParseBool(strings.TrimSpace(c.Query("isOccupied")))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	ctx := c.Request.Context()
	if occupied {
		_, err = s.coordinator.Acquire(ctx, s.db, slotID)
	} else {
		err = s.coordinator.Release(ctx, s.db, slotID)
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.slotSvc.GetByID(ctx, slotdomain.GetSlotRequest{ID: rawID})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, "Slot status updated", resp)
}
