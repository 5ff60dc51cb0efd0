package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/dental-agenda/internal/agenda"
)

var (
	ErrLockNotAcquired = errors.New("calendar lock not acquired")
)

const retryInterval = 25 * time.Millisecond

// CalendarLocker guards one practitioner's calendar with a Redis key so that
// writers in different processes are serialized.
type CalendarLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewCalendarLocker creates a locker using a per-practitioner Redis key. A
// writer retries for up to wait before giving up.
func NewCalendarLocker(client *redis.Client, ttl, wait time.Duration) *CalendarLocker {
	return &CalendarLocker{
		client: client,
		ttl:    ttl,
		wait:   wait,
	}
}

func lockKey(practitionerID int64) string {
	return fmt.Sprintf("lock:calendar:%d", practitionerID)
}

func (l *CalendarLocker) WithCalendarLock(ctx context.Context, practitionerID int64, fn func(ctx context.Context) error) error {
	key := lockKey(practitionerID)
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}

	defer func() {
		// Release even if the caller's context is already done.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = l.release(releaseCtx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

func (l *CalendarLocker) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire calendar lock: %w", err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %w", ErrLockNotAcquired, agenda.ErrCalendarBusy)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrLockNotAcquired, agenda.ErrCalendarBusy)
		case <-time.After(retryInterval):
		}
	}
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *CalendarLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release calendar lock: %w", err)
	}
	return nil
}
