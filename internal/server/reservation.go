package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	reservationdomain "github.com/smallbiznis/parkway/internal/reservation/domain"
	"github.com/smallbiznis/parkway/pkg/db/pagination"
)

type createReservationRequest struct {
	UserID        string     `json:"user_id"`
	SlotID        string     `json:"slot_id"`
	VehicleNumber string     `json:"vehicle_number"`
	VehicleType   string     `json:"vehicle_type"`
	StartTime     *time.Time `json:"start_time"`
	EndTime       *time.Time `json:"end_time"`
}

func (s *Server) CreateReservation(c *gin.Context) {
	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.reservationSvc.Create(c.Request.Context(), reservationdomain.CreateReservationRequest{
		UserID:        strings.TrimSpace(req.UserID),
		SlotID:        strings.TrimSpace(req.SlotID),
		VehicleNumber: strings.TrimSpace(req.VehicleNumber),
		VehicleType:   strings.TrimSpace(req.VehicleType),
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusCreated, "Reservation created successfully", resp)
}

func (s *Server) ListReservations(c *gin.Context) {
	var query struct {
		pagination.Pagination
		UserID string `form:"userId"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	userID := strings.TrimSpace(query.UserID)
	if userID == "" {
		AbortWithError(c, reservationdomain.ErrInvalidUser)
		return
	}

	resp, err := s.reservationSvc.ListByUser(c.Request.Context(), reservationdomain.ListReservationRequest{
		UserID:    userID,
		PageToken: query.PageToken,
		PageSize:  int32(query.PageSize),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, "Reservations retrieved successfully", resp)
}

func (s *Server) GetReservationByID(c *gin.Context) {
	resp, err := s.reservationSvc.GetByID(c.Request.Context(), reservationdomain.GetReservationRequest{
		ID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, "Reservation fetched successfully", resp)
}

type updateReservationRequest struct {
	StartTime     *time.Time `json:"start_time"`
	EndTime       *time.Time `json:"end_time"`
	VehicleNumber *string    `json:"vehicle_number"`
	VehicleType   *string    `json:"vehicle_type"`
}

func (s *Server) UpdateReservation(c *gin.Context) {
	var req updateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.reservationSvc.Update(c.Request.Context(), reservationdomain.UpdateReservationRequest{
		ID:            strings.TrimSpace(c.Param("id")),
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		VehicleNumber: req.VehicleNumber,
		VehicleType:   req.VehicleType,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, "Reservation updated successfully", resp)
}

type updateReservationStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) UpdateReservationStatus(c *gin.Context) {
	var req updateReservationStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.reservationSvc.UpdateStatus(c.Request.Context(), reservationdomain.UpdateStatusRequest{
		ID:     strings.TrimSpace(c.Param("id")),
		Status: strings.TrimSpace(req.Status),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, "Reservation status updated successfully", resp)
}

func (s *Server) CancelReservation(c *gin.Context) {
	resp, err := s.reservationSvc.Cancel(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, "Reservation cancelled successfully", resp)
}
