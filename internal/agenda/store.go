package agenda

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store owns appointments partitioned by (practitioner, day). Reads return
// copies sorted by time of day; an absent day reads as empty.
type Store interface {
	GetDay(ctx context.Context, practitionerID int64, day Day) ([]Appointment, error)
	// FindByID locates an appointment when the caller does not know its day.
	FindByID(ctx context.Context, practitionerID int64, id uuid.UUID) (*Appointment, error)
	// Upsert inserts a new id or replaces the existing record.
	Upsert(ctx context.Context, appt Appointment) error
	// Remove is a no-op when the appointment is absent.
	Remove(ctx context.Context, practitionerID int64, day Day, id uuid.UUID) error
	// MoveAcrossDays takes the record out of fromDay and stores moved in
	// moved.Day in one step. ErrNotFound if fromDay does not hold it.
	MoveAcrossDays(ctx context.Context, fromDay Day, moved Appointment) error
}

// EventRecorder is implemented by stores that keep an audit trail.
type EventRecorder interface {
	RecordEvent(ctx context.Context, ev Event) error
}

// Locker serializes writers on one practitioner's calendar so that the
// conflict check and the write it guards cannot interleave with another writer.
type Locker interface {
	WithCalendarLock(ctx context.Context, practitionerID int64, fn func(ctx context.Context) error) error
}

const (
	DefaultLockWait = 2 * time.Second
	DefaultLockTTL  = 5 * time.Second
)

// LocalLocker is an in-process Locker with one semaphore per practitioner.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[int64]chan struct{}
	wait  time.Duration
	ttl   time.Duration
}

// NewLocalLocker creates a locker where a writer waits at most wait for the
// calendar and the guarded work runs under a ttl deadline. Zero values use
// DefaultLockWait and DefaultLockTTL.
func NewLocalLocker(wait, ttl time.Duration) *LocalLocker {
	if wait <= 0 {
		wait = DefaultLockWait
	}
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &LocalLocker{
		slots: make(map[int64]chan struct{}),
		wait:  wait,
		ttl:   ttl,
	}
}

func (l *LocalLocker) sem(practitionerID int64) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.slots[practitionerID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[practitionerID] = ch
	}
	return ch
}

// WithCalendarLock waits for the calendar up to the lock wait or until ctx is
// done, then gives up with ErrCalendarBusy.
func (l *LocalLocker) WithCalendarLock(ctx context.Context, practitionerID int64, fn func(ctx context.Context) error) error {
	ch := l.sem(practitionerID)

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
	case <-timer.C:
		return ErrCalendarBusy
	case <-ctx.Done():
		return ErrCalendarBusy
	}
	defer func() { <-ch }()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}
