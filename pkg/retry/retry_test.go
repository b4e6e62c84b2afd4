package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fast(opts ...Option) *Retrier {
	return New(append([]Option{WithInitialDelay(time.Millisecond), WithMaxDelay(time.Millisecond)}, opts...)...)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	var retried []int

	err := fast(WithMaxAttempts(4), WithOnRetry(func(attempt int, _ error, _ time.Duration) {
		retried = append(retried, attempt)
	})).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_StopsOnPermanent(t *testing.T) {
	denied := errors.New("access denied")
	calls := 0

	err := fast().Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(denied)
	})

	assert.ErrorIs(t, err, denied)
	assert.False(t, IsPermanent(err))
	assert.Equal(t, 1, calls)
}

func TestDo_RetryIf(t *testing.T) {
	calls := 0
	err := fast(WithRetryIf(func(error) bool { return false })).Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("bad request")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := fast(WithMaxAttempts(2)).Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("timeout")
	})
	assert.EqualError(t, err, "timeout")
	assert.Equal(t, 2, calls)
}

func TestDo_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := fast().Do(ctx, func(context.Context) error {
		t.Fatal("operation must not run")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoWithData(t *testing.T) {
	calls := 0
	v, err := DoWithData(context.Background(), func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("busy")
		}
		return "ok", nil
	}, WithInitialDelay(time.Millisecond))

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestDelay_IsCapped(t *testing.T) {
	r := New(WithInitialDelay(time.Second), WithMaxDelay(2*time.Second), WithJitter(0))
	assert.Equal(t, time.Second, r.delay(1))
	assert.Equal(t, 2*time.Second, r.delay(2))
	assert.Equal(t, 2*time.Second, r.delay(5))
}
