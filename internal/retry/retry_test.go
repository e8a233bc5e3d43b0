package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errBoom = errors.New("boom")

func TestDoSucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errBoom
		}
		return nil
	}, 3, time.Millisecond)
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return errBoom
	}, 2, time.Millisecond)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 2, calls)
}

func TestDoStopsOnPermanent(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(errBoom)
	}, 5, time.Millisecond)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, calls)
}

func TestDoZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = Do(context.Background(), func(context.Context) error {
		calls++
		return errBoom
	}, 0, time.Millisecond)
	assert.Equal(t, 1, calls)
}

func TestDoHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return errBoom
	}, 5, 50*time.Millisecond)
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestPermanentNil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}
