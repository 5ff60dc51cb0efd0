package agenda

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusNew       Status = "NEW"
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusFinished  Status = "FINISHED"
	StatusCancelled Status = "CANCELLED"
	// StatusAvailable marks a bookable placeholder, not a real appointment.
	StatusAvailable Status = "AVAILABLE"
)

// Statuses lists every status in display order.
var Statuses = []Status{
	StatusNew,
	StatusPending,
	StatusConfirmed,
	StatusFinished,
	StatusCancelled,
	StatusAvailable,
}

// legacy names used by the clinic's front desk
var statusAliases = map[string]Status{
	"NUEVA":      StatusNew,
	"PENDIENTE":  StatusPending,
	"CONFIRMADA": StatusConfirmed,
	"FINALIZADA": StatusFinished,
	"COMPLETADA": StatusFinished,
	"COMPLETED":  StatusFinished,
	"CANCELADA":  StatusCancelled,
	"CANCELED":   StatusCancelled,
	"DISPONIBLE": StatusAvailable,
}

func ParseStatus(raw string) (Status, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if st := Status(s); st.Valid() {
		return st, nil
	}
	if st, ok := statusAliases[s]; ok {
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
}

func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusPending, StatusConfirmed, StatusFinished, StatusCancelled, StatusAvailable:
		return true
	}
	return false
}

// OccupiesSlot reports whether an appointment in this status takes part in
// conflict detection.
func (s Status) OccupiesSlot() bool {
	return s.Valid() && s != StatusCancelled && s != StatusAvailable
}

type Appointment struct {
	ID             uuid.UUID
	PractitionerID int64
	PatientID      int64
	Day            Day
	Time           Clock
	Reason         string
	Notes          string
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// PatientName is filled at read time by stores that can join the patient
	// directory. It is never persisted.
	PatientName string
}

const (
	EventAppointmentCreated       = "APPOINTMENT_CREATED"
	EventAppointmentUpdated       = "APPOINTMENT_UPDATED"
	EventAppointmentMoved         = "APPOINTMENT_MOVED"
	EventAppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentDeleted       = "APPOINTMENT_DELETED"
)

type Event struct {
	Type           string
	AppointmentID  uuid.UUID
	PractitionerID int64
	Payload        map[string]any
	CreatedAt      time.Time
}
