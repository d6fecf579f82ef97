package domain

import "time"

// Overlaps reports whether two half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Touching endpoints do not conflict, so a
// booking may begin exactly when another ends.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// FindConflict returns the first existing reservation whose interval
// overlaps the proposed one, skipping the proposed reservation itself.
func FindConflict(proposed Reservation, existing []Reservation) *Reservation {
	for i := range existing {
		other := &existing[i]
		if other.ID == proposed.ID {
			continue
		}
		if Overlaps(proposed.StartTime, proposed.EndTime, other.StartTime, other.EndTime) {
			return other
		}
	}
	return nil
}
