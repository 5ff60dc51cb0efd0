package agenda

import (
	"errors"
	"testing"
	"time"
)

func TestParseDay(t *testing.T) {
	iso, err := ParseDay("2025-03-10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	legacy, err := ParseDay("10-03-2025")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if iso != legacy {
		t.Fatalf("expected both layouts to yield the same day, got %d and %d", iso, legacy)
	}
	if iso.String() != "2025-03-10" {
		t.Fatalf("expected 2025-03-10, got %s", iso)
	}
	if iso.AddDays(1).String() != "2025-03-11" {
		t.Fatalf("expected next day 2025-03-11, got %s", iso.AddDays(1))
	}

	for _, bad := range []string{"", "2025-13-01", "2025/03/10", "10-03-25"} {
		if _, err := ParseDay(bad); !errors.Is(err, ErrInvalidDay) {
			t.Errorf("ParseDay(%q): expected ErrInvalidDay, got %v", bad, err)
		}
	}
}

func TestDayOf_UsesLocalCalendar(t *testing.T) {
	loc := time.FixedZone("GMT-6", -6*60*60)
	// 23:30 local on the 10th is already the 11th in UTC.
	ts := time.Date(2025, 3, 10, 23, 30, 0, 0, loc)
	if got := DayOf(ts).String(); got != "2025-03-10" {
		t.Fatalf("expected 2025-03-10, got %s", got)
	}
}

func TestDay_TextRoundTrip(t *testing.T) {
	d := MustParseDay("2024-02-29")
	b, err := d.MarshalText()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var back Day
	if err := back.UnmarshalText(b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if back != d {
		t.Fatalf("expected %s, got %s", d, back)
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"09:00", "09:00", false},
		{"9:00", "09:00", false},
		{" 10:30 ", "10:30", false},
		{"10:30:45", "10:30", false},
		{"23:59", "23:59", false},
		{"00:00", "00:00", false},
		{"24:00", "", true},
		{"12:60", "", true},
		{"12:5", "", true},
		{"1230", "", true},
		{"+9:00", "", true},
		{"10:30:99", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidTime) {
				t.Errorf("ParseClock(%q): expected ErrInvalidTime, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseClock(%q): unexpected error: %v", tt.in, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("ParseClock(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	tests := map[string]Status{
		"NEW":        StatusNew,
		"confirmed":  StatusConfirmed,
		"CONFIRMADA": StatusConfirmed,
		"Pendiente":  StatusPending,
		"COMPLETADA": StatusFinished,
		"FINALIZADA": StatusFinished,
		"cancelada":  StatusCancelled,
		"DISPONIBLE": StatusAvailable,
	}
	for in, want := range tests {
		got, err := ParseStatus(in)
		if err != nil {
			t.Errorf("ParseStatus(%q): unexpected error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseStatus(%q) = %s, want %s", in, got, want)
		}
	}

	if _, err := ParseStatus("ARCHIVED"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}
