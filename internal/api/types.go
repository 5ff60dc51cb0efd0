package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/dental-agenda/internal/agenda"
	"github.com/hackgods/dental-agenda/internal/patient"
)

type CreateAppointmentRequest struct {
	Day     string      `json:"day" validate:"required,day"`
	Time    string      `json:"time" validate:"required,hhmm"`
	Patient patient.Ref `json:"patient"`
	Reason  string      `json:"reason" validate:"max=500"`
	Notes   string      `json:"notes" validate:"max=2000"`
}

type UpdateAppointmentRequest struct {
	Time    *string      `json:"time" validate:"omitempty,hhmm"`
	Reason  *string      `json:"reason" validate:"omitempty,max=500"`
	Notes   *string      `json:"notes" validate:"omitempty,max=2000"`
	Patient *patient.Ref `json:"patient"`
}

type MoveAppointmentRequest struct {
	FromDay *string      `json:"from_day" validate:"omitempty,day"`
	ToDay   string       `json:"to_day" validate:"required,day"`
	Time    string       `json:"time" validate:"omitempty,hhmm"`
	Reason  *string      `json:"reason" validate:"omitempty,max=500"`
	Notes   *string      `json:"notes" validate:"omitempty,max=2000"`
	Patient *patient.Ref `json:"patient"`
}

type StatusRequest struct {
	Status string `json:"status" validate:"required,status"`
}

type AppointmentResponse struct {
	ID             uuid.UUID `json:"id"`
	PractitionerID int64     `json:"practitioner_id"`
	PatientID      int64     `json:"patient_id"`
	PatientName    string    `json:"patient_name,omitempty"`
	Day            string    `json:"day"`
	Time           string    `json:"time"`
	Reason         string    `json:"reason"`
	Notes          string    `json:"notes,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type DayViewResponse struct {
	Day            string                `json:"day"`
	PractitionerID int64                 `json:"practitioner_id"`
	Total          int                   `json:"total"`
	Counts         map[string]int        `json:"counts"`
	Items          []AppointmentResponse `json:"items"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *agenda.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:             a.ID,
		PractitionerID: a.PractitionerID,
		PatientID:      a.PatientID,
		PatientName:    a.PatientName,
		Day:            a.Day.String(),
		Time:           a.Time.String(),
		Reason:         a.Reason,
		Notes:          a.Notes,
		Status:         string(a.Status),
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func toDayViewResponse(v *agenda.DayView) DayViewResponse {
	resp := DayViewResponse{
		Day:            v.Day.String(),
		PractitionerID: v.PractitionerID,
		Total:          v.Total,
		Counts:         make(map[string]int, len(v.Counts)),
		Items:          make([]AppointmentResponse, 0, len(v.Items)),
	}
	for st, n := range v.Counts {
		resp.Counts[string(st)] = n
	}
	for i := range v.Items {
		resp.Items = append(resp.Items, toAppointmentResponse(&v.Items[i]))
	}
	return resp
}
