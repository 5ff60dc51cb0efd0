package agenda

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLocalLocker_BusyAfterWait(t *testing.T) {
	locker := NewLocalLocker(50*time.Millisecond, time.Second)

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = locker.WithCalendarLock(context.Background(), 1, func(ctx context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	start := time.Now()
	result := make(chan error, 1)
	go func() {
		result <- locker.WithCalendarLock(context.Background(), 1, func(ctx context.Context) error {
			t.Error("callback must not run while the calendar is held")
			return nil
		})
	}()

	select {
	case err := <-result:
		if !errors.Is(err, ErrCalendarBusy) {
			t.Fatalf("expected ErrCalendarBusy, got %v", err)
		}
		if waited := time.Since(start); waited < 50*time.Millisecond {
			t.Errorf("gave up after %s, before the lock wait", waited)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second writer still blocked long after the lock wait")
	}
}

func TestLocalLocker_OtherPractitionerNotBlocked(t *testing.T) {
	locker := NewLocalLocker(50*time.Millisecond, time.Second)

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = locker.WithCalendarLock(context.Background(), 1, func(ctx context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	ran := false
	err := locker.WithCalendarLock(context.Background(), 2, func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err != nil || !ran {
		t.Fatalf("expected practitioner 2 to lock freely, ran=%v err=%v", ran, err)
	}
}

func TestLocalLocker_WorkRunsUnderTTL(t *testing.T) {
	locker := NewLocalLocker(time.Second, 30*time.Millisecond)

	err := locker.WithCalendarLock(context.Background(), 1, func(ctx context.Context) error {
		deadline, ok := ctx.Deadline()
		if !ok {
			t.Fatal("expected a deadline on the guarded context")
		}
		if time.Until(deadline) > 30*time.Millisecond {
			t.Errorf("deadline %s is past the lock ttl", time.Until(deadline))
		}
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}

	if err := locker.WithCalendarLock(context.Background(), 1, func(context.Context) error { return nil }); err != nil {
		t.Errorf("expected lock to be released after ttl work, got %v", err)
	}
}
