package agenda

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// calendar is one practitioner's appointments. days maps epoch-day to the
// time-ordered partition; index maps id to the day currently holding it.
type calendar struct {
	mu    sync.RWMutex
	days  map[Day][]Appointment
	index map[uuid.UUID]Day
}

func newCalendar() *calendar {
	return &calendar{
		days:  make(map[Day][]Appointment),
		index: make(map[uuid.UUID]Day),
	}
}

// MemoryStore keeps every calendar in process memory.
type MemoryStore struct {
	mu        sync.Mutex
	calendars map[int64]*calendar

	eventsMu sync.Mutex
	events   []Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{calendars: make(map[int64]*calendar)}
}

func (s *MemoryStore) calendar(practitionerID int64) *calendar {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.calendars[practitionerID]
	if !ok {
		c = newCalendar()
		s.calendars[practitionerID] = c
	}
	return c
}

func (s *MemoryStore) GetDay(_ context.Context, practitionerID int64, day Day) ([]Appointment, error) {
	c := s.calendar(practitionerID)
	c.mu.RLock()
	defer c.mu.RUnlock()

	partition := c.days[day]
	out := make([]Appointment, len(partition))
	copy(out, partition)
	return out, nil
}

func (s *MemoryStore) FindByID(_ context.Context, practitionerID int64, id uuid.UUID) (*Appointment, error) {
	c := s.calendar(practitionerID)
	c.mu.RLock()
	defer c.mu.RUnlock()

	day, ok := c.index[id]
	if !ok {
		return nil, ErrNotFound
	}
	for _, a := range c.days[day] {
		if a.ID == id {
			a := a
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Upsert(_ context.Context, appt Appointment) error {
	c := s.calendar(appt.PractitionerID)
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.index[appt.ID]; ok && prev != appt.Day {
		c.removeLocked(prev, appt.ID)
	}
	c.putLocked(appt)
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, practitionerID int64, day Day, id uuid.UUID) error {
	c := s.calendar(practitionerID)
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeLocked(day, id)
	return nil
}

func (s *MemoryStore) MoveAcrossDays(_ context.Context, fromDay Day, moved Appointment) error {
	c := s.calendar(moved.PractitionerID)
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.removeLocked(fromDay, moved.ID) {
		return ErrNotFound
	}
	c.putLocked(moved)
	return nil
}

func (s *MemoryStore) RecordEvent(_ context.Context, ev Event) error {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()

	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	s.events = append(s.events, ev)
	return nil
}

// Events returns a copy of the recorded audit trail.
func (s *MemoryStore) Events() []Event {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()

	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func (c *calendar) putLocked(appt Appointment) {
	appt.PatientName = ""
	partition := c.days[appt.Day]

	replaced := false
	for i := range partition {
		if partition[i].ID == appt.ID {
			partition[i] = appt
			replaced = true
			break
		}
	}
	if !replaced {
		partition = append(partition, appt)
	}

	sortPartition(partition)
	c.days[appt.Day] = partition
	c.index[appt.ID] = appt.Day
}

func (c *calendar) removeLocked(day Day, id uuid.UUID) bool {
	partition := c.days[day]
	for i := range partition {
		if partition[i].ID != id {
			continue
		}
		c.days[day] = append(partition[:i:i], partition[i+1:]...)
		if c.index[id] == day {
			delete(c.index, id)
		}
		return true
	}
	return false
}

// sortPartition orders by time, then creation, then id, so that reads are
// stable even when cancelled and active appointments share a time.
func sortPartition(p []Appointment) {
	sort.Slice(p, func(i, j int) bool {
		if p[i].Time != p[j].Time {
			return p[i].Time < p[j].Time
		}
		if !p[i].CreatedAt.Equal(p[j].CreatedAt) {
			return p[i].CreatedAt.Before(p[j].CreatedAt)
		}
		return p[i].ID.String() < p[j].ID.String()
	})
}
