package agenda

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/dental-agenda/internal/metrics"
	"github.com/hackgods/dental-agenda/internal/patient"
)

// PatientResolver maps a caller's patient reference to a canonical id.
type PatientResolver interface {
	Resolve(ctx context.Context, ref patient.Ref) (int64, error)
}

// Service is the only writer of appointments. Every slot-affecting write runs
// its conflict check and the mutation under the practitioner's calendar lock.
type Service struct {
	store    Store
	events   EventRecorder
	locker   Locker
	patients PatientResolver
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(store Store, locker Locker, patients PatientResolver, logger zerolog.Logger) *Service {
	if locker == nil {
		locker = NewLocalLocker(DefaultLockWait, DefaultLockTTL)
	}
	events, _ := store.(EventRecorder)
	return &Service{
		store:    store,
		events:   events,
		locker:   locker,
		patients: patients,
		logger:   logger.With().Str("component", "agenda").Logger(),
		now:      time.Now,
	}
}

type CreateRequest struct {
	PractitionerID int64
	Day            Day
	Time           string
	Patient        patient.Ref
	Reason         string
	Notes          string
}

// Changes holds the editable fields of an update. Nil means unchanged.
type Changes struct {
	Time    *string
	Reason  *string
	Notes   *string
	Patient *patient.Ref
}

type MoveRequest struct {
	PractitionerID int64
	ID             uuid.UUID
	// FromDay is optional; when nil the appointment is looked up by id.
	FromDay *Day
	ToDay   Day
	// Time is optional; when empty the current time of day is kept.
	Time    string
	Reason  *string
	Notes   *string
	Patient *patient.Ref
}

// Create books a new appointment in status NEW.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Appointment, error) {
	if req.PractitionerID <= 0 {
		return nil, ErrPractitionerRequired
	}

	patientID, err := s.resolvePatient(ctx, req.Patient)
	if err != nil {
		return nil, err
	}

	at, err := ParseClock(req.Time)
	if err != nil {
		return nil, err
	}

	var created *Appointment

	err = s.locker.WithCalendarLock(ctx, req.PractitionerID, func(lockCtx context.Context) error {
		partition, err := s.store.GetDay(lockCtx, req.PractitionerID, req.Day)
		if err != nil {
			return fmt.Errorf("load day: %w", err)
		}
		if occupant, taken := FindOccupant(partition, at, uuid.Nil); taken {
			return s.conflict("create", req.Day, at, occupant)
		}

		now := s.now()
		appt := Appointment{
			ID:             uuid.New(),
			PractitionerID: req.PractitionerID,
			PatientID:      patientID,
			Day:            req.Day,
			Time:           at,
			Reason:         strings.TrimSpace(req.Reason),
			Notes:          strings.TrimSpace(req.Notes),
			Status:         StatusNew,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.store.Upsert(lockCtx, appt); err != nil {
			return s.writeError("create", err)
		}

		created = &appt
		s.logEvent(lockCtx, appt, EventAppointmentCreated, map[string]any{
			"day":        appt.Day.String(),
			"time":       appt.Time.String(),
			"patient_id": appt.PatientID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordWrite("create")
	return created, nil
}

// UpdateInPlace edits time, reason, notes or patient without changing the day.
func (s *Service) UpdateInPlace(ctx context.Context, practitionerID int64, id uuid.UUID, day Day, ch Changes) (*Appointment, error) {
	if practitionerID <= 0 {
		return nil, ErrPractitionerRequired
	}

	var newTime *Clock
	if ch.Time != nil {
		at, err := ParseClock(*ch.Time)
		if err != nil {
			return nil, err
		}
		newTime = &at
	}

	var newPatient *int64
	if ch.Patient != nil {
		pid, err := s.resolvePatient(ctx, *ch.Patient)
		if err != nil {
			return nil, err
		}
		newPatient = &pid
	}

	var updated *Appointment

	err := s.locker.WithCalendarLock(ctx, practitionerID, func(lockCtx context.Context) error {
		partition, err := s.store.GetDay(lockCtx, practitionerID, day)
		if err != nil {
			return fmt.Errorf("load day: %w", err)
		}
		current, ok := findInPartition(partition, id)
		if !ok {
			return ErrNotFound
		}

		next := current
		if newTime != nil && *newTime != current.Time {
			if next.Status.OccupiesSlot() {
				if occupant, taken := FindOccupant(partition, *newTime, id); taken {
					return s.conflict("update", day, *newTime, occupant)
				}
			}
			next.Time = *newTime
		}
		if newPatient != nil && *newPatient != next.PatientID {
			next.PatientID = *newPatient
			next.PatientName = ""
		}
		if ch.Reason != nil {
			next.Reason = strings.TrimSpace(*ch.Reason)
		}
		if ch.Notes != nil {
			next.Notes = strings.TrimSpace(*ch.Notes)
		}
		next.UpdatedAt = s.now()

		if err := s.store.Upsert(lockCtx, next); err != nil {
			return s.writeError("update", err)
		}

		updated = &next
		s.logEvent(lockCtx, next, EventAppointmentUpdated, map[string]any{
			"day":        next.Day.String(),
			"time":       next.Time.String(),
			"patient_id": next.PatientID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordWrite("update")
	return updated, nil
}

// Move reschedules an appointment to another day, validating the slot
// against the destination partition.
func (s *Service) Move(ctx context.Context, req MoveRequest) (*Appointment, error) {
	if req.PractitionerID <= 0 {
		return nil, ErrPractitionerRequired
	}

	var newTime *Clock
	if strings.TrimSpace(req.Time) != "" {
		at, err := ParseClock(req.Time)
		if err != nil {
			return nil, err
		}
		newTime = &at
	}

	var newPatient *int64
	if req.Patient != nil {
		pid, err := s.resolvePatient(ctx, *req.Patient)
		if err != nil {
			return nil, err
		}
		newPatient = &pid
	}

	var moved *Appointment

	err := s.locker.WithCalendarLock(ctx, req.PractitionerID, func(lockCtx context.Context) error {
		current, err := s.locate(lockCtx, req.PractitionerID, req.ID, req.FromDay)
		if err != nil {
			return err
		}
		fromDay := current.Day

		next := *current
		next.Day = req.ToDay
		if newTime != nil {
			next.Time = *newTime
		}
		if newPatient != nil && *newPatient != next.PatientID {
			next.PatientID = *newPatient
			next.PatientName = ""
		}
		if req.Reason != nil {
			next.Reason = strings.TrimSpace(*req.Reason)
		}
		if req.Notes != nil {
			next.Notes = strings.TrimSpace(*req.Notes)
		}
		next.UpdatedAt = s.now()

		if next.Status.OccupiesSlot() {
			dest, err := s.store.GetDay(lockCtx, req.PractitionerID, req.ToDay)
			if err != nil {
				return fmt.Errorf("load destination day: %w", err)
			}
			if occupant, taken := FindOccupant(dest, next.Time, next.ID); taken {
				return s.conflict("move", req.ToDay, next.Time, occupant)
			}
		}

		if fromDay == req.ToDay {
			err = s.store.Upsert(lockCtx, next)
		} else {
			err = s.store.MoveAcrossDays(lockCtx, fromDay, next)
		}
		if err != nil {
			return s.writeError("move", err)
		}

		moved = &next
		s.logEvent(lockCtx, next, EventAppointmentMoved, map[string]any{
			"from_day":   fromDay.String(),
			"from_time":  current.Time.String(),
			"to_day":     next.Day.String(),
			"to_time":    next.Time.String(),
			"patient_id": next.PatientID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordWrite("move")
	return moved, nil
}

// UpdateStatus sets any status on the appointment. Moving out of CANCELLED or
// AVAILABLE back into an active status re-checks the slot, since that is the
// one status change that can collide with another booking.
func (s *Service) UpdateStatus(ctx context.Context, practitionerID int64, id uuid.UUID, status Status) (*Appointment, error) {
	if practitionerID <= 0 {
		return nil, ErrPractitionerRequired
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	var updated *Appointment
	var previous Status

	err := s.locker.WithCalendarLock(ctx, practitionerID, func(lockCtx context.Context) error {
		current, err := s.store.FindByID(lockCtx, practitionerID, id)
		if err != nil {
			return err
		}
		previous = current.Status

		if !current.Status.OccupiesSlot() && status.OccupiesSlot() {
			partition, err := s.store.GetDay(lockCtx, practitionerID, current.Day)
			if err != nil {
				return fmt.Errorf("load day: %w", err)
			}
			if occupant, taken := FindOccupant(partition, current.Time, id); taken {
				return s.conflict("status", current.Day, current.Time, occupant)
			}
		}

		next := *current
		next.Status = status
		next.UpdatedAt = s.now()
		if err := s.store.Upsert(lockCtx, next); err != nil {
			return s.writeError("status", err)
		}

		updated = &next
		s.logEvent(lockCtx, next, EventAppointmentStatusChanged, map[string]any{
			"from": string(previous),
			"to":   string(status),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordWrite("status")
	metrics.RecordStatusChange(string(previous), string(status))
	return updated, nil
}

// Cancel keeps the record as CANCELLED, which frees its slot.
func (s *Service) Cancel(ctx context.Context, practitionerID int64, id uuid.UUID) (*Appointment, error) {
	return s.UpdateStatus(ctx, practitionerID, id, StatusCancelled)
}

// Delete removes the record for good. Intended for entries made in error;
// the event log keeps a trace.
func (s *Service) Delete(ctx context.Context, practitionerID int64, id uuid.UUID, day *Day) error {
	if practitionerID <= 0 {
		return ErrPractitionerRequired
	}

	err := s.locker.WithCalendarLock(ctx, practitionerID, func(lockCtx context.Context) error {
		current, err := s.locate(lockCtx, practitionerID, id, day)
		if err != nil {
			return err
		}
		if err := s.store.Remove(lockCtx, practitionerID, current.Day, id); err != nil {
			return fmt.Errorf("remove appointment: %w", err)
		}

		s.logEvent(lockCtx, *current, EventAppointmentDeleted, map[string]any{
			"day":    current.Day.String(),
			"time":   current.Time.String(),
			"status": string(current.Status),
		})
		return nil
	})
	if err != nil {
		return err
	}

	metrics.RecordWrite("delete")
	return nil
}

// Get reads one appointment by id.
func (s *Service) Get(ctx context.Context, practitionerID int64, id uuid.UUID) (*Appointment, error) {
	if practitionerID <= 0 {
		return nil, ErrPractitionerRequired
	}
	return s.store.FindByID(ctx, practitionerID, id)
}

func (s *Service) resolvePatient(ctx context.Context, ref patient.Ref) (int64, error) {
	if ref.IsZero() {
		return 0, ErrPatientNotFound
	}
	id, err := s.patients.Resolve(ctx, ref)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) || errors.Is(err, ErrDirectoryUnavailable) {
			return 0, err
		}
		return 0, fmt.Errorf("resolve patient: %w", err)
	}
	return id, nil
}

// locate finds the appointment in day when given, otherwise anywhere in the calendar.
func (s *Service) locate(ctx context.Context, practitionerID int64, id uuid.UUID, day *Day) (*Appointment, error) {
	if day == nil {
		return s.store.FindByID(ctx, practitionerID, id)
	}
	partition, err := s.store.GetDay(ctx, practitionerID, *day)
	if err != nil {
		return nil, fmt.Errorf("load day: %w", err)
	}
	current, ok := findInPartition(partition, id)
	if !ok {
		return nil, ErrNotFound
	}
	return &current, nil
}

func (s *Service) conflict(op string, day Day, at Clock, occupant *Appointment) error {
	metrics.RecordConflict(op)
	s.logger.Debug().
		Str("op", op).
		Str("day", day.String()).
		Str("time", at.String()).
		Str("occupant_id", occupant.ID.String()).
		Msg("slot occupied")
	return fmt.Errorf("%w: %s %s", ErrSlotOccupied, day, at)
}

// writeError keeps store-reported conflicts (e.g. a unique index) recognisable.
func (s *Service) writeError(op string, err error) error {
	if errors.Is(err, ErrSlotOccupied) {
		metrics.RecordConflict(op)
		return err
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return fmt.Errorf("%s appointment: %w", op, err)
}

func (s *Service) logEvent(ctx context.Context, appt Appointment, eventType string, payload map[string]any) {
	if s.events == nil {
		return
	}

	ev := Event{
		Type:           eventType,
		AppointmentID:  appt.ID,
		PractitionerID: appt.PractitionerID,
		Payload:        payload,
		CreatedAt:      s.now(),
	}

	if err := s.events.RecordEvent(ctx, ev); err != nil {
		s.logger.Error().Err(err).
			Str("event_type", eventType).
			Str("appointment_id", appt.ID.String()).
			Msg("failed to record event")
	}
}

func findInPartition(partition []Appointment, id uuid.UUID) (Appointment, bool) {
	for _, a := range partition {
		if a.ID == id {
			return a, true
		}
	}
	return Appointment{}, false
}
