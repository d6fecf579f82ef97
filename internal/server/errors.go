package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/smallbiznis/parkway/internal/billing/domain"
	"github.com/smallbiznis/parkway/internal/occupancy"
	presencedomain "github.com/smallbiznis/parkway/internal/presence/domain"
	reservationdomain "github.com/smallbiznis/parkway/internal/reservation/domain"
	slotdomain "github.com/smallbiznis/parkway/internal/slot/domain"
	"gorm.io/gorm"
)

var ErrInvalidRequest = errors.New("invalid_request")

// ErrorHandlingMiddleware turns the last error recorded on the context
// into the response envelope. Handlers that already wrote a body win.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, message := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, apiResponse{Success: false, Message: message})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, string) {
	if err == nil {
		return http.StatusInternalServerError, "Internal server error"
	}

	var conflict *reservationdomain.ConflictError
	if errors.As(err, &conflict) {
		return http.StatusConflict, "Slot is already reserved for the requested time window"
	}

	switch {
	case isValidationError(err):
		return http.StatusBadRequest, validationMessage(err)
	case isNotFoundError(err):
		return http.StatusNotFound, notFoundMessage(err)
	case isStateError(err):
		return http.StatusConflict, stateMessage(err)
	case errors.Is(err, occupancy.ErrSlotBusy):
		return http.StatusConflict, "Slot is already occupied"
	case errors.Is(err, occupancy.ErrVersionConflict):
		return http.StatusConflict, "Slot was modified concurrently, please retry"
	case errors.Is(err, occupancy.ErrDownstream):
		return http.StatusBadGateway, "Slot coordination failed, please retry later"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// classifyErrorForLog feeds the request logger. The code is the sentinel
// text so log queries line up with the domain error names.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}

	var conflict *reservationdomain.ConflictError
	if errors.As(err, &conflict) {
		return "conflict", "reservation_conflict"
	}

	var errorType string
	switch {
	case isValidationError(err):
		errorType = "validation"
	case isNotFoundError(err):
		errorType = "not_found"
	case isStateError(err):
		errorType = "state"
	case errors.Is(err, occupancy.ErrSlotBusy):
		errorType = "busy"
	case errors.Is(err, occupancy.ErrVersionConflict):
		errorType = "version_conflict"
	case errors.Is(err, occupancy.ErrDownstream):
		errorType = "downstream"
	default:
		errorType = "internal"
	}
	return errorType, err.Error()
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, slotdomain.ErrInvalidVehicleType),
		errors.Is(err, slotdomain.ErrInvalidLocation),
		errors.Is(err, slotdomain.ErrInvalidID),
		errors.Is(err, reservationdomain.ErrInvalidUser),
		errors.Is(err, reservationdomain.ErrInvalidSlot),
		errors.Is(err, reservationdomain.ErrInvalidVehicleNumber),
		errors.Is(err, reservationdomain.ErrInvalidVehicleType),
		errors.Is(err, reservationdomain.ErrInvalidInterval),
		errors.Is(err, reservationdomain.ErrStartInPast),
		errors.Is(err, reservationdomain.ErrInvalidID),
		errors.Is(err, presencedomain.ErrInvalidUser),
		errors.Is(err, presencedomain.ErrInvalidSlot),
		errors.Is(err, presencedomain.ErrInvalidVehicleNumber),
		errors.Is(err, presencedomain.ErrInvalidID),
		errors.Is(err, billingdomain.ErrInvalidUser),
		errors.Is(err, billingdomain.ErrInvalidSource),
		errors.Is(err, billingdomain.ErrInvalidID),
		errors.Is(err, billingdomain.ErrNotExited),
		errors.Is(err, billingdomain.ErrUnknownVehicleType):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, slotdomain.ErrNotFound),
		errors.Is(err, reservationdomain.ErrNotFound),
		errors.Is(err, reservationdomain.ErrSlotNotFound),
		errors.Is(err, presencedomain.ErrNotFound),
		errors.Is(err, presencedomain.ErrSlotNotFound),
		errors.Is(err, billingdomain.ErrNotFound),
		errors.Is(err, billingdomain.ErrSourceNotFound),
		errors.Is(err, occupancy.ErrSlotNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isStateError(err error) bool {
	switch {
	case errors.Is(err, reservationdomain.ErrInvalidStatus),
		errors.Is(err, reservationdomain.ErrInvalidTransition),
		errors.Is(err, slotdomain.ErrSlotOccupied),
		errors.Is(err, presencedomain.ErrExitRecorded),
		errors.Is(err, billingdomain.ErrAlreadyPaid),
		errors.Is(err, billingdomain.ErrCannotPayCancelled),
		errors.Is(err, billingdomain.ErrCannotCancelPaid),
		errors.Is(err, billingdomain.ErrAlreadyCancelled),
		errors.Is(err, billingdomain.ErrReceiptRequiresPaid):
		return true
	default:
		return false
	}
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, slotdomain.ErrInvalidVehicleType),
		errors.Is(err, reservationdomain.ErrInvalidVehicleType):
		return "Invalid slot type. Only '2W' or '4W' allowed."
	case errors.Is(err, slotdomain.ErrInvalidLocation):
		return "Location is required"
	case errors.Is(err, reservationdomain.ErrInvalidInterval):
		return "Start time must be before end time"
	case errors.Is(err, reservationdomain.ErrStartInPast):
		return "Start time cannot be in the past"
	case errors.Is(err, reservationdomain.ErrInvalidVehicleNumber),
		errors.Is(err, presencedomain.ErrInvalidVehicleNumber):
		return "Vehicle number is required"
	case errors.Is(err, reservationdomain.ErrInvalidUser),
		errors.Is(err, presencedomain.ErrInvalidUser),
		errors.Is(err, billingdomain.ErrInvalidUser):
		return "User id is required"
	case errors.Is(err, reservationdomain.ErrInvalidSlot),
		errors.Is(err, presencedomain.ErrInvalidSlot):
		return "Slot id is required"
	case errors.Is(err, billingdomain.ErrInvalidSource):
		return "Provide exactly one of reservation_id or vehicle_log_id"
	case errors.Is(err, billingdomain.ErrNotExited):
		return "Vehicle has not exited yet"
	case errors.Is(err, billingdomain.ErrUnknownVehicleType):
		return "No rate configured for this vehicle type"
	case errors.Is(err, slotdomain.ErrInvalidID),
		errors.Is(err, reservationdomain.ErrInvalidID),
		errors.Is(err, presencedomain.ErrInvalidID),
		errors.Is(err, billingdomain.ErrInvalidID):
		return "Invalid id"
	default:
		return "Invalid request"
	}
}

func notFoundMessage(err error) string {
	switch {
	case errors.Is(err, slotdomain.ErrNotFound),
		errors.Is(err, reservationdomain.ErrSlotNotFound),
		errors.Is(err, presencedomain.ErrSlotNotFound),
		errors.Is(err, occupancy.ErrSlotNotFound):
		return "Slot not found"
	case errors.Is(err, reservationdomain.ErrNotFound):
		return "Reservation not found"
	case errors.Is(err, presencedomain.ErrNotFound):
		return "Vehicle log not found"
	case errors.Is(err, billingdomain.ErrNotFound):
		return "Invoice not found"
	case errors.Is(err, billingdomain.ErrSourceNotFound):
		return "Referenced reservation or vehicle log not found"
	default:
		return "Not found"
	}
}

func stateMessage(err error) string {
	switch {
	case errors.Is(err, billingdomain.ErrAlreadyPaid):
		return "Invoice already paid"
	case errors.Is(err, billingdomain.ErrCannotPayCancelled):
		return "Cannot pay a cancelled invoice"
	case errors.Is(err, billingdomain.ErrCannotCancelPaid):
		return "Cannot cancel a paid invoice"
	case errors.Is(err, billingdomain.ErrAlreadyCancelled):
		return "Invoice already cancelled"
	case errors.Is(err, billingdomain.ErrReceiptRequiresPaid):
		return "Receipt is available only for paid invoices"
	case errors.Is(err, presencedomain.ErrExitRecorded):
		return "Exit already recorded for this vehicle log"
	case errors.Is(err, slotdomain.ErrSlotOccupied):
		return "Cannot delete an occupied slot"
	case errors.Is(err, reservationdomain.ErrInvalidStatus):
		return "Unrecognized reservation status"
	case errors.Is(err, reservationdomain.ErrInvalidTransition):
		return "Reservation is already in a terminal state"
	default:
		return "Conflict"
	}
}
