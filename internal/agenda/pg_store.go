package agenda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/dental-agenda/internal/db"
)

const activeSlotIndex = "appointments_active_slot_uq"

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var day time.Time
	var at int16
	var status string

	err := row.Scan(
		&a.ID,
		&a.PractitionerID,
		&a.PatientID,
		&day,
		&at,
		&a.Reason,
		&a.Notes,
		&status,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.PatientName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	a.Day = DayOf(day)
	a.Time = Clock(at)
	a.Status = Status(status)
	return &a, nil
}

func mapWriteError(err error) error {
	if db.IsUniqueViolation(err, activeSlotIndex) {
		return ErrSlotOccupied
	}
	return err
}

const selectAppointment = `
	SELECT a.id, a.practitioner_id, a.patient_id, a.calendar_day, a.time_of_day,
	       a.reason, a.notes, a.status, a.created_at, a.updated_at,
	       COALESCE(TRIM(p.first_name || ' ' || p.last_name), '')
	FROM appointments a
	LEFT JOIN patients p ON p.id = a.patient_id
`

// Interface methods

func (s *PgStore) GetDay(ctx context.Context, practitionerID int64, day Day) ([]Appointment, error) {
	rows, err := s.pool.Query(ctx, selectAppointment+`
		WHERE a.practitioner_id = $1 AND a.calendar_day = $2
		ORDER BY a.time_of_day, a.created_at, a.id
	`, practitionerID, day.Time())
	if err != nil {
		return nil, fmt.Errorf("query day: %w", err)
	}
	defer rows.Close()

	result := []Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *PgStore) FindByID(ctx context.Context, practitionerID int64, id uuid.UUID) (*Appointment, error) {
	row := s.pool.QueryRow(ctx, selectAppointment+`
		WHERE a.id = $1 AND a.practitioner_id = $2
	`, id, practitionerID)
	return scanAppointment(row)
}

// Upsert never reassigns an existing id to another practitioner; such a write
// matches no row and reports ErrNotFound.
func (s *PgStore) Upsert(ctx context.Context, appt Appointment) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO appointments (id, practitioner_id, patient_id, calendar_day, time_of_day,
		                          reason, notes, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE
		SET patient_id   = EXCLUDED.patient_id,
		    calendar_day = EXCLUDED.calendar_day,
		    time_of_day  = EXCLUDED.time_of_day,
		    reason       = EXCLUDED.reason,
		    notes        = EXCLUDED.notes,
		    status       = EXCLUDED.status,
		    updated_at   = EXCLUDED.updated_at
		WHERE appointments.practitioner_id = EXCLUDED.practitioner_id
	`, appt.ID, appt.PractitionerID, appt.PatientID, appt.Day.Time(), int16(appt.Time),
		appt.Reason, appt.Notes, string(appt.Status), appt.CreatedAt, appt.UpdatedAt)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgStore) Remove(ctx context.Context, practitionerID int64, day Day, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM appointments
		WHERE id = $1 AND practitioner_id = $2 AND calendar_day = $3
	`, id, practitionerID, day.Time())
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	return nil
}

// MoveAcrossDays is a single conditional UPDATE, so the row is never visible
// in both days or in neither.
func (s *PgStore) MoveAcrossDays(ctx context.Context, fromDay Day, moved Appointment) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE appointments
		SET calendar_day = $4,
		    time_of_day  = $5,
		    patient_id   = $6,
		    reason       = $7,
		    notes        = $8,
		    status       = $9,
		    updated_at   = $10
		WHERE id = $1
		  AND practitioner_id = $2
		  AND calendar_day = $3
	`, moved.ID, moved.PractitionerID, fromDay.Time(), moved.Day.Time(), int16(moved.Time),
		moved.PatientID, moved.Reason, moved.Notes, string(moved.Status), moved.UpdatedAt)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgStore) RecordEvent(ctx context.Context, ev Event) error {
	payload := make(map[string]any, len(ev.Payload)+1)
	for k, v := range ev.Payload {
		payload[k] = v
	}
	payload["practitioner_id"] = ev.PractitionerID

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	var appID *uuid.UUID
	if ev.AppointmentID != uuid.Nil {
		id := ev.AppointmentID
		appID = &id
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.Type, appID, data, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
