package binance

import (
	"context"
	"time"

	"spotrelay/internal/errs"
	"spotrelay/internal/logger"

	"github.com/jpillora/backoff"
)

// withRetry runs an idempotent read, retrying transient failures with
// exponential backoff up to cfg.MaxRetries extra attempts.
func withRetry[T any](ctx context.Context, cfg Config, op string, fn func(context.Context) (T, error)) (T, error) {
	b := &backoff.Backoff{
		Min:    cfg.RetryMin,
		Max:    cfg.RetryMax,
		Factor: 2,
		Jitter: true,
	}
	for attempt := 0; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if attempt >= cfg.MaxRetries || !errs.IsTransient(err) || ctx.Err() != nil {
			return v, err
		}
		delay := b.Duration()
		logger.Warnf("[binance] %s failed (attempt %d/%d), retry in %s: %v", op, attempt+1, cfg.MaxRetries+1, delay, err)
		if !sleepWithContext(ctx, delay) {
			return v, err
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = time.Second
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
