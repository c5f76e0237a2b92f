package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := Do(context.Background(), Config{Attempts: 3, BaseDelay: time.Millisecond}, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestDoReturnsLastErrorAfterExhaustion(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	attempts := 0
	var retried []int
	err := Do(context.Background(), Config{
		Attempts:  2,
		BaseDelay: time.Millisecond,
		OnRetry:   func(attempt int, _ error) { retried = append(retried, attempt) },
	}, func(context.Context) error {
		attempts++
		return boom
	})

	require.ErrorIs(t, err, boom)
	require.Equal(t, 2, attempts)
	require.Equal(t, []int{1}, retried)
}

func TestDoStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := Do(ctx, Config{Attempts: 5, BaseDelay: time.Hour}, func(context.Context) error {
		attempts++
		cancel()
		return errors.New("transient")
	})

	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, attempts)
}

func TestBackoffGrowsWithJitterBounds(t *testing.T) {
	t.Parallel()

	cfg := Config{BaseDelay: 100 * time.Millisecond}
	for attempt := 0; attempt < 4; attempt++ {
		expected := float64(cfg.BaseDelay) * float64(int(1)<<attempt)
		d := backoff(cfg, attempt)
		require.GreaterOrEqual(t, float64(d), expected*0.8)
		require.LessOrEqual(t, float64(d), expected*1.2)
	}
}

func TestBackoffRespectsMaxDelay(t *testing.T) {
	t.Parallel()

	cfg := Config{BaseDelay: time.Second, MaxDelay: 2 * time.Second}
	d := backoff(cfg, 10)
	require.LessOrEqual(t, d, 2*time.Second)
}
