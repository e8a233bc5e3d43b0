// Package retry runs external calls with exponential backoff.
package retry

import (
	"context"
	"time"

	retrygo "github.com/avast/retry-go/v4"
)

// Defaults used by the pipeline when configuration leaves them unset.
const (
	DefaultAttempts  = 3
	DefaultBaseDelay = 500 * time.Millisecond
	maxDelay         = 10 * time.Second
)

// Do calls fn up to maxAttempts times, doubling the wait after each failure
// starting at baseDelay. It stops early when ctx is done or fn returns an
// error wrapped with Permanent. The last error is returned.
func Do(ctx context.Context, fn func(ctx context.Context) error, maxAttempts int, baseDelay time.Duration) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	return retrygo.Do(
		func() error { return fn(ctx) },
		retrygo.Context(ctx),
		retrygo.Attempts(uint(maxAttempts)),
		retrygo.Delay(baseDelay),
		retrygo.MaxDelay(maxDelay),
		retrygo.DelayType(retrygo.BackOffDelay),
		retrygo.LastErrorOnly(true),
	)
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return retrygo.Unrecoverable(err)
}
