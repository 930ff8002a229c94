package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDurations(t *testing.T) {
	req := require.New(t)

	exp := NewExponential(time.Millisecond, 5*time.Millisecond)
	req.Equal(time.Millisecond, exp.NextDuration)
	want := []time.Duration{2 * time.Millisecond, 4 * time.Millisecond, 5 * time.Millisecond, 5 * time.Millisecond}
	for _, w := range want {
		req.NoError(exp.Backoff(context.Background()))
		req.Equal(w, exp.NextDuration)
	}
	exp.Reset()
	req.Equal(time.Millisecond, exp.NextDuration)

	lin := NewLinear(time.Millisecond, 0)
	req.Equal(time.Duration(0), lin.NextDuration)
	req.NoError(lin.Backoff(context.Background()))
	req.Equal(time.Millisecond, lin.NextDuration)
}

func TestBackoffCancelled(t *testing.T) {
	c, cancel := context.WithCancel(context.Background())
	cancel()
	b := NewExponential(time.Hour, 0)
	require.ErrorIs(t, b.Backoff(c), context.Canceled)
}

func TestRetry(t *testing.T) {
	req := require.New(t)
	boom := errors.New("boom")
	b := NewExponential(time.Millisecond, time.Millisecond)

	calls := 0
	err := Retry(context.Background(), b, 3, func(int) error {
		calls++
		if calls < 3 {
			return boom
		}
		return nil
	})
	req.NoError(err)
	req.Equal(3, calls)

	calls = 0
	err = Retry(context.Background(), b, 2, func(int) error {
		calls++
		return boom
	})
	req.ErrorIs(err, boom)
	req.Equal(2, calls)

	c, cancel := context.WithCancel(context.Background())
	cancel()
	err = Retry(c, NewExponential(time.Hour, 0), 5, func(int) error { return boom })
	req.ErrorIs(err, boom)
}
