package sqlitedb

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"
)

// transient reports whether err is a lock or busy condition worth retrying.
func transient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "database table is locked")
}

// retry calls fn up to tries times, doubling the delay with up to one second
// of jitter between attempts. Only transient errors are retried.
func retry[T any](ctx context.Context, log *zap.Logger, op string, tries int, delay time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 1; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if attempt >= tries || !transient(err) {
			if attempt > 1 {
				log.Error("database operation failed", zap.String("op", op), zap.Int("attempts", attempt), zap.Error(err))
			}
			return zero, err
		}

		log.Warn("database operation failed, retrying", zap.String("op", op), zap.Duration("delay", delay), zap.Error(err))
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
		delay = delay*2 + time.Duration(rand.Int64N(int64(time.Second)))
	}
}
