package agenda

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/dental-agenda/internal/db"
	"github.com/hackgods/dental-agenda/internal/patient"
)

// testPool connects to POSTGRES_TEST_DSN and applies migrations, skipping the
// test when no database is configured.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		t.Skipf("postgres not reachable: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := db.Migrate(ctx, pool, zerolog.Nop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

// pgFixture gives each test its own practitioner id and patient row.
func pgFixture(t *testing.T, pool *pgxpool.Pool) (int64, int64) {
	t.Helper()
	ctx := context.Background()

	p, err := patient.NewPgDirectory(pool).Insert(ctx, patient.Patient{FirstName: "Ana", LastName: "Gómez"})
	if err != nil {
		t.Fatalf("insert patient: %v", err)
	}

	practitionerID := time.Now().UnixNano()
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, `DELETE FROM appointments WHERE practitioner_id = $1`, practitionerID)
		_, _ = pool.Exec(ctx, `DELETE FROM patients WHERE id = $1`, p.ID)
	})
	return practitionerID, p.ID
}

func pgAppointment(practitionerID, patientID int64, day Day, at Clock) Appointment {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return Appointment{
		ID:             uuid.New(),
		PractitionerID: practitionerID,
		PatientID:      patientID,
		Day:            day,
		Time:           at,
		Reason:         "Checkup",
		Status:         StatusNew,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestPgStore_UpsertAndRead(t *testing.T) {
	pool := testPool(t)
	pid, patientID := pgFixture(t, pool)
	store := NewPgStore(pool)
	ctx := context.Background()
	day := MustParseDay("2031-03-04")

	late := pgAppointment(pid, patientID, day, Clock(11*60))
	early := pgAppointment(pid, patientID, day, Clock(9*60))
	for _, a := range []Appointment{late, early} {
		if err := store.Upsert(ctx, a); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	items, err := store.GetDay(ctx, pid, day)
	if err != nil {
		t.Fatalf("get day: %v", err)
	}
	if len(items) != 2 || items[0].ID != early.ID || items[1].ID != late.ID {
		t.Fatalf("unexpected partition %+v", items)
	}
	if items[0].PatientName != "Ana Gómez" || items[0].Day != day {
		t.Errorf("unexpected row %+v", items[0])
	}

	got, err := store.FindByID(ctx, pid, late.ID)
	if err != nil || got.Time != late.Time {
		t.Fatalf("find by id: %+v, %v", got, err)
	}
	if _, err := store.FindByID(ctx, pid+1, late.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for another practitioner, got %v", err)
	}
}

func TestPgStore_ActiveSlotIndex(t *testing.T) {
	pool := testPool(t)
	pid, patientID := pgFixture(t, pool)
	store := NewPgStore(pool)
	ctx := context.Background()
	day := MustParseDay("2031-03-05")

	first := pgAppointment(pid, patientID, day, Clock(10*60))
	if err := store.Upsert(ctx, first); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	second := pgAppointment(pid, patientID, day, Clock(10*60))
	if err := store.Upsert(ctx, second); !errors.Is(err, ErrSlotOccupied) {
		t.Fatalf("expected ErrSlotOccupied, got %v", err)
	}

	first.Status = StatusCancelled
	if err := store.Upsert(ctx, first); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := store.Upsert(ctx, second); err != nil {
		t.Fatalf("expected cancelled slot to be free, got %v", err)
	}
}

func TestPgStore_MoveAndRemove(t *testing.T) {
	pool := testPool(t)
	pid, patientID := pgFixture(t, pool)
	store := NewPgStore(pool)
	ctx := context.Background()
	from, to := MustParseDay("2031-03-06"), MustParseDay("2031-03-07")

	appt := pgAppointment(pid, patientID, from, Clock(9*60))
	if err := store.Upsert(ctx, appt); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	moved := appt
	moved.Day = to
	moved.Time = Clock(15 * 60)
	if err := store.MoveAcrossDays(ctx, from, moved); err != nil {
		t.Fatalf("move: %v", err)
	}
	if err := store.MoveAcrossDays(ctx, from, moved); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound moving from a day it left, got %v", err)
	}

	if items, _ := store.GetDay(ctx, pid, from); len(items) != 0 {
		t.Errorf("expected source day empty, got %d", len(items))
	}
	items, _ := store.GetDay(ctx, pid, to)
	if len(items) != 1 || items[0].Time != moved.Time {
		t.Fatalf("unexpected target day %+v", items)
	}

	if err := store.Remove(ctx, pid, to, appt.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := store.FindByID(ctx, pid, appt.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after remove, got %v", err)
	}
}

func TestPgStore_RecordEvent(t *testing.T) {
	pool := testPool(t)
	pid, _ := pgFixture(t, pool)
	store := NewPgStore(pool)
	ctx := context.Background()
	id := uuid.New()

	err := store.RecordEvent(ctx, Event{
		Type:           EventAppointmentCreated,
		AppointmentID:  id,
		PractitionerID: pid,
		Payload:        map[string]any{"day": "2031-03-08"},
	})
	if err != nil {
		t.Fatalf("record event: %v", err)
	}
	t.Cleanup(func() { _, _ = pool.Exec(ctx, `DELETE FROM event_logs WHERE appointment_id = $1`, id) })

	var eventType string
	var practitioner int64
	err = pool.QueryRow(ctx, `
		SELECT event_type, (payload->>'practitioner_id')::bigint
		FROM event_logs WHERE appointment_id = $1
	`, id).Scan(&eventType, &practitioner)
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	if eventType != EventAppointmentCreated || practitioner != pid {
		t.Errorf("unexpected event %s/%d", eventType, practitioner)
	}
}

func TestPgStore_UpsertKeepsPractitioner(t *testing.T) {
	pool := testPool(t)
	pid, patientID := pgFixture(t, pool)
	store := NewPgStore(pool)
	ctx := context.Background()
	day := MustParseDay("2031-03-09")

	appt := pgAppointment(pid, patientID, day, Clock(9*60))
	if err := store.Upsert(ctx, appt); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	stolen := appt
	stolen.PractitionerID = pid + 1
	stolen.Reason = "Overwritten"
	if err := store.Upsert(ctx, stolen); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound writing another practitioner's id, got %v", err)
	}

	got, err := store.FindByID(ctx, pid, appt.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Reason != appt.Reason {
		t.Errorf("row was modified through another practitioner: reason %q", got.Reason)
	}
}
