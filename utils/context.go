package utils

import (
	"context"
	"time"
)

func ContextSleep(ctx context.Context, d time.Duration) *time.Time {
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return nil
	case t := <-timer.C:
		return &t
	}
}

// Retry calls fn up to attempts times, sleeping delay between failed calls.
// It returns the last error, or ctx.Err() if ctx is done while sleeping.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func(ctx context.Context) error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if i+1 < attempts && ContextSleep(ctx, delay) == nil {
			return ctx.Err()
		}
	}
	return err
}
