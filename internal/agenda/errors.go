package agenda

import (
	"errors"

	"github.com/hackgods/dental-agenda/internal/patient"
)

var (
	ErrNotFound             = errors.New("appointment not found")
	ErrSlotOccupied         = errors.New("slot already taken by another appointment")
	ErrCalendarBusy         = errors.New("calendar is being modified, please retry")
	ErrInvalidDay           = errors.New("invalid calendar day")
	ErrInvalidTime          = errors.New("invalid time of day")
	ErrInvalidStatus        = errors.New("invalid appointment status")
	ErrPractitionerRequired = errors.New("practitioner id is required")

	// Resolution failures keep the patient package's identity so callers can
	// match on either.
	ErrPatientNotFound      = patient.ErrNotFound
	ErrDirectoryUnavailable = patient.ErrDirectoryUnavailable
)
