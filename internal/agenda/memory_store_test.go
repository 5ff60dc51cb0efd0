package agenda

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newAppt(practitionerID int64, day Day, at string) Appointment {
	c, err := ParseClock(at)
	if err != nil {
		panic(err)
	}
	return Appointment{
		ID:             uuid.New(),
		PractitionerID: practitionerID,
		PatientID:      1,
		Day:            day,
		Time:           c,
		Status:         StatusNew,
		CreatedAt:      time.Now(),
	}
}

func times(items []Appointment) []string {
	out := make([]string, len(items))
	for i, a := range items {
		out[i] = a.Time.String()
	}
	return out
}

func TestMemoryStore_GetDayEmpty(t *testing.T) {
	s := NewMemoryStore()
	items, err := s.GetDay(context.Background(), 1, MustParseDay("2025-03-10"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty day, got %d items", len(items))
	}
}

func TestMemoryStore_SortedByTime(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	day := MustParseDay("2025-03-10")

	for _, at := range []string{"11:00", "08:15", "09:30"} {
		if err := s.Upsert(ctx, newAppt(1, day, at)); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	items, _ := s.GetDay(ctx, 1, day)
	got := times(items)
	want := []string{"08:15", "09:30", "11:00"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestMemoryStore_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	day := MustParseDay("2025-03-10")

	a := newAppt(1, day, "09:00")
	_ = s.Upsert(ctx, a)
	a.Time = Clock(14 * 60)
	a.Notes = "moved to afternoon"
	_ = s.Upsert(ctx, a)

	items, _ := s.GetDay(ctx, 1, day)
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Time.String() != "14:00" || items[0].Notes != "moved to afternoon" {
		t.Fatalf("record not replaced: %+v", items[0])
	}
}

func TestMemoryStore_UpsertOnOtherDayLeavesOneCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	d1 := MustParseDay("2025-03-10")
	d2 := d1.AddDays(1)

	a := newAppt(1, d1, "09:00")
	_ = s.Upsert(ctx, a)
	a.Day = d2
	_ = s.Upsert(ctx, a)

	first, _ := s.GetDay(ctx, 1, d1)
	second, _ := s.GetDay(ctx, 1, d2)
	if len(first) != 0 || len(second) != 1 {
		t.Fatalf("expected record only on %s, got %d/%d", d2, len(first), len(second))
	}
}

func TestMemoryStore_RemoveIsNoopWhenAbsent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	day := MustParseDay("2025-03-10")

	if err := s.Remove(ctx, 1, day, uuid.New()); err != nil {
		t.Fatalf("expected no error removing absent record, got %v", err)
	}

	a := newAppt(1, day, "09:00")
	_ = s.Upsert(ctx, a)
	_ = s.Remove(ctx, 1, day, a.ID)

	if _, err := s.FindByID(ctx, 1, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}
}

func TestMemoryStore_MoveAcrossDays(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	d1 := MustParseDay("2025-03-10")
	d2 := d1.AddDays(1)

	a := newAppt(1, d1, "10:30")
	_ = s.Upsert(ctx, a)

	moved := a
	moved.Day = d2
	moved.Time = Clock(8 * 60)
	if err := s.MoveAcrossDays(ctx, d1, moved); err != nil {
		t.Fatalf("move: %v", err)
	}

	from, _ := s.GetDay(ctx, 1, d1)
	to, _ := s.GetDay(ctx, 1, d2)
	if len(from) != 0 {
		t.Fatalf("expected source day empty, got %d", len(from))
	}
	if len(to) != 1 || to[0].Time.String() != "08:00" {
		t.Fatalf("expected moved record at 08:00, got %+v", to)
	}

	found, err := s.FindByID(ctx, 1, a.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.Day != d2 {
		t.Fatalf("index not updated, found on %s", found.Day)
	}

	if err := s.MoveAcrossDays(ctx, d1, moved); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound moving from wrong day, got %v", err)
	}
}

func TestMemoryStore_PractitionersAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	day := MustParseDay("2025-03-10")

	a := newAppt(1, day, "09:00")
	_ = s.Upsert(ctx, a)

	other, _ := s.GetDay(ctx, 2, day)
	if len(other) != 0 {
		t.Fatalf("practitioner 2 should not see practitioner 1's day")
	}
	if _, err := s.FindByID(ctx, 2, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound across practitioners, got %v", err)
	}
}

func TestMemoryStore_ReadsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	day := MustParseDay("2025-03-10")

	_ = s.Upsert(ctx, newAppt(1, day, "09:00"))

	items, _ := s.GetDay(ctx, 1, day)
	items[0].Reason = "mutated by caller"

	again, _ := s.GetDay(ctx, 1, day)
	if again[0].Reason != "" {
		t.Fatal("mutating a read result changed the store")
	}
}
