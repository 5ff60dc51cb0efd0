package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/dental-agenda/internal/agenda"
	"github.com/hackgods/dental-agenda/internal/auth"
)

type handlers struct {
	svc       *agenda.Service
	projector *agenda.Projector
	logger    zerolog.Logger
}

func (h *handlers) dayView(w http.ResponseWriter, r *http.Request) {
	pid, ok := practitionerID(w, r)
	if !ok {
		return
	}

	day, err := agenda.ParseDay(chi.URLParam(r, "day"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_day", err.Error())
		return
	}

	view, err := h.projector.DayView(r.Context(), pid, day)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toDayViewResponse(view))
}

func (h *handlers) createAppointment(w http.ResponseWriter, r *http.Request) {
	pid, ok := practitionerID(w, r)
	if !ok {
		return
	}

	var req CreateAppointmentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if req.Patient.IsZero() {
		writeError(w, http.StatusBadRequest, "patient_required", "patient must be an id or a full name")
		return
	}

	day, _ := agenda.ParseDay(req.Day)
	appt, err := h.svc.Create(r.Context(), agenda.CreateRequest{
		PractitionerID: pid,
		Day:            day,
		Time:           req.Time,
		Patient:        req.Patient,
		Reason:         req.Reason,
		Notes:          req.Notes,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	pid, ok := practitionerID(w, r)
	if !ok {
		return
	}
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}

	appt, err := h.svc.Get(r.Context(), pid, id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) updateAppointment(w http.ResponseWriter, r *http.Request) {
	pid, ok := practitionerID(w, r)
	if !ok {
		return
	}
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}
	day, err := agenda.ParseDay(r.URL.Query().Get("day"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_day", "day query parameter is required")
		return
	}

	var req UpdateAppointmentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if req.Patient != nil && req.Patient.IsZero() {
		writeError(w, http.StatusBadRequest, "patient_required", "patient must be an id or a full name")
		return
	}

	appt, err := h.svc.UpdateInPlace(r.Context(), pid, id, day, agenda.Changes{
		Time:    req.Time,
		Reason:  req.Reason,
		Notes:   req.Notes,
		Patient: req.Patient,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) moveAppointment(w http.ResponseWriter, r *http.Request) {
	pid, ok := practitionerID(w, r)
	if !ok {
		return
	}
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}

	var req MoveAppointmentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if req.Patient != nil && req.Patient.IsZero() {
		writeError(w, http.StatusBadRequest, "patient_required", "patient must be an id or a full name")
		return
	}

	move := agenda.MoveRequest{
		PractitionerID: pid,
		ID:             id,
		Time:           req.Time,
		Reason:         req.Reason,
		Notes:          req.Notes,
		Patient:        req.Patient,
	}
	move.ToDay, _ = agenda.ParseDay(req.ToDay)
	if req.FromDay != nil {
		from, _ := agenda.ParseDay(*req.FromDay)
		move.FromDay = &from
	}

	appt, err := h.svc.Move(r.Context(), move)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	pid, ok := practitionerID(w, r)
	if !ok {
		return
	}
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}

	var req StatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	status, _ := agenda.ParseStatus(req.Status)

	appt, err := h.svc.UpdateStatus(r.Context(), pid, id, status)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	pid, ok := practitionerID(w, r)
	if !ok {
		return
	}
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}

	appt, err := h.svc.Cancel(r.Context(), pid, id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) deleteAppointment(w http.ResponseWriter, r *http.Request) {
	pid, ok := practitionerID(w, r)
	if !ok {
		return
	}
	id, ok := appointmentID(w, r)
	if !ok {
		return
	}

	var day *agenda.Day
	if raw := r.URL.Query().Get("day"); raw != "" {
		d, err := agenda.ParseDay(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_day", err.Error())
			return
		}
		day = &d
	}

	if err := h.svc.Delete(r.Context(), pid, id, day); err != nil {
		h.handleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func practitionerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	p := auth.FromContext(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "practitioner token required")
		return 0, false
	}
	return p.ID, true
}

func appointmentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *handlers) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, agenda.ErrSlotOccupied):
		writeError(w, http.StatusConflict, "slot_occupied", "another appointment already holds this time")
	case errors.Is(err, agenda.ErrCalendarBusy):
		writeError(w, http.StatusConflict, "calendar_busy", "calendar is being modified, please retry")
	case errors.Is(err, agenda.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", "no patient matches the given reference")
	case errors.Is(err, agenda.ErrNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", "appointment does not exist")
	case errors.Is(err, agenda.ErrDirectoryUnavailable):
		writeError(w, http.StatusServiceUnavailable, "directory_unavailable", "patient directory did not answer")
	case errors.Is(err, agenda.ErrInvalidDay):
		writeError(w, http.StatusBadRequest, "invalid_day", err.Error())
	case errors.Is(err, agenda.ErrInvalidTime):
		writeError(w, http.StatusBadRequest, "invalid_time", err.Error())
	case errors.Is(err, agenda.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
	case errors.Is(err, agenda.ErrPractitionerRequired):
		writeError(w, http.StatusBadRequest, "practitioner_required", err.Error())
	default:
		h.logger.Error().Err(err).
			Str("request_id", GetRequestID(r.Context())).
			Str("path", r.URL.Path).
			Msg("unhandled agenda error")
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
	}
}
