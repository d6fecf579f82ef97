package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/smallbiznis/parkway/internal/billing/domain"
	"github.com/smallbiznis/parkway/pkg/db/pagination"
)

type createInvoiceRequest struct {
	UserID        string  `json:"user_id"`
	ReservationID *string `json:"reservation_id"`
	VehicleLogID  *string `json:"vehicle_log_id"`
	PaymentMethod string  `json:"payment_method"`
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.billingSvc.Create(c.Request.Context(), billingdomain.CreateInvoiceRequest{
		UserID:        strings.TrimSpace(req.UserID),
		ReservationID: req.ReservationID,
		VehicleLogID:  req.VehicleLogID,
		PaymentMethod: strings.TrimSpace(req.PaymentMethod),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusCreated, "Invoice created successfully", resp)
}

type payInvoiceRequest struct {
	PaymentMethod string `json:"payment_method"`
}

func (s *Server) PayInvoice(c *gin.Context) {
	var req payInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.billingSvc.Pay(c.Request.Context(), billingdomain.PayInvoiceRequest{
		ID:            strings.TrimSpace(c.Param("id")),
		PaymentMethod: strings.TrimSpace(req.PaymentMethod),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, "Invoice paid successfully", resp)
}

func (s *Server) CancelInvoice(c *gin.Context) {
	resp, err := s.billingSvc.Cancel(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, "Invoice cancelled successfully", resp)
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	resp, err := s.billingSvc.GetByID(c.Request.Context(), billingdomain.GetInvoiceRequest{
		ID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, "Invoice fetched successfully", resp)
}

func (s *Server) ListInvoices(c *gin.Context) {
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
		AbortWithError(c, billingdomain.ErrInvalidUser)
		return
	}

	resp, err := s.billingSvc.ListByUser(c.Request.Context(), billingdomain.ListInvoiceRequest{
		UserID:    userID,
		PageToken: query.PageToken,
		PageSize:  int32(query.PageSize),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, "User invoices retrieved", resp)
}

func (s *Server) GetInvoiceReceipt(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	reader, err := s.billingSvc.Receipt(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=receipt-%s.pdf", id))
	c.DataFromReader(http.StatusOK, -1, "application/pdf", reader, nil)
}
