package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() *Config {
	return &Config{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_ReturnsLastErrorWhenExhausted(t *testing.T) {
	sentinel := errors.New("dial tcp: connection refused")
	attempts := 0
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 4, attempts) // initial try plus three retries
}

func TestDo_PermanentErrorNotRetried(t *testing.T) {
	sentinel := errors.New("password authentication failed")
	attempts := 0
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, attempts, "permanent failures burn no retries")
}

func TestDo_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, fastConfig(), func() error {
		return errors.New("i/o timeout")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	got, err := DoWithResult(context.Background(), fastConfig(), func() (int, error) {
		attempts++
		if attempts < 2 {
			return 0, errors.New("timeout")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestDoWithResult_PermanentErrorNotRetried(t *testing.T) {
	sentinel := errors.New("syntax error at or near SELECT")
	attempts := 0
	_, err := DoWithResult(context.Background(), fastConfig(), func() (int, error) {
		attempts++
		return 0, sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, attempts)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(errors.New("dial tcp: connection refused")))
	assert.True(t, IsRetryable(errors.New("i/o timeout")))
	assert.True(t, IsRetryable(errors.New("deadlock detected")))
	assert.False(t, IsRetryable(errors.New("syntax error at or near SELECT")))
	assert.False(t, IsRetryable(nil))
}
