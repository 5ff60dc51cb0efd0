package agenda

import "github.com/google/uuid"

// IsSlotOccupied reports whether another slot-occupying appointment in the
// partition sits at exactly the given time. Pass uuid.Nil to exclude nothing.
func IsSlotOccupied(partition []Appointment, at Clock, excludeID uuid.UUID) bool {
	_, ok := FindOccupant(partition, at, excludeID)
	return ok
}

// FindOccupant returns the appointment holding the slot, if any. Only exact
// time equality counts; durations are not modelled.
func FindOccupant(partition []Appointment, at Clock, excludeID uuid.UUID) (*Appointment, bool) {
	for i := range partition {
		a := &partition[i]
		if a.Time != at || !a.Status.OccupiesSlot() {
			continue
		}
		if excludeID != uuid.Nil && a.ID == excludeID {
			continue
		}
		return a, true
	}
	return nil, false
}
