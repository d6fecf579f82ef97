package guard

import (
	"errors"
	"time"

	reservationdomain "github.com/smallbiznis/parkway/internal/reservation/domain"
)

var (
	ErrReservationNotActive = errors.New("reservation_not_active")
	ErrReservationNotEnded  = errors.New("reservation_not_ended")
	ErrTerminalStatus       = errors.New("reservation_status_terminal")
)

// EnsureReservationCanComplete checks the sweep preconditions before the
// guarded status update runs.
func EnsureReservationCanComplete(status reservationdomain.ReservationStatus, endTime time.Time, now time.Time) error {
	if status != reservationdomain.ReservationStatusActive {
		return ErrReservationNotActive
	}
	if now.Before(endTime) {
		return ErrReservationNotEnded
	}
	return nil
}

// EnsureReservationCanTransition rejects transitions out of a terminal
// status or into ACTIVE.
func EnsureReservationCanTransition(from, to reservationdomain.ReservationStatus) error {
	if from.Terminal() {
		return ErrTerminalStatus
	}
	if to == reservationdomain.ReservationStatusActive {
		return ErrReservationNotActive
	}
	return nil
}
