package driver

import (
	"context"
	"fmt"
	"time"

	"memwatch/internal/logging"
)

// DefaultTryLoadDelay is the pause between load attempts.
const DefaultTryLoadDelay = 100 * time.Millisecond

// TryLoad calls fn until it succeeds or ctx is done, waiting delay between
// attempts. A non-positive delay means DefaultTryLoadDelay.
func TryLoad[T any](ctx context.Context, log logging.Logger, delay time.Duration, fn func(context.Context) (T, error)) (T, error) {
	return TryLoadN(ctx, log, delay, 0, fn)
}

// TryLoadN is TryLoad giving up after attempts tries; 0 retries forever.
func TryLoadN[T any](ctx context.Context, log logging.Logger, delay time.Duration, attempts int, fn func(context.Context) (T, error)) (T, error) {
	log = logging.OrNoOp(log)
	if delay <= 0 {
		delay = DefaultTryLoadDelay
	}

	log.Debug("attempting try_load")
	var zero T
	for i := 1; ; i++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		v, err := fn(ctx)
		if err == nil {
			log.Debug("try_load successful", "attempts", i)
			return v, nil
		}
		if attempts > 0 && i >= attempts {
			return zero, fmt.Errorf("gave up after %d attempts: %w", i, err)
		}
		log.Debug("try_load unsuccessful, trying again", "delay", delay, "error", err)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, ctx.Err()
		case <-t.C:
		}
	}
}
