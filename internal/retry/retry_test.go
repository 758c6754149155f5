package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairabf/submitter/internal/config"
)

func testConfig() config.RetryConfig {
	return config.RetryConfig{
		MaxRetries:      3,
		InitialDelay:    time.Millisecond,
		ExponentialBase: 2.0,
		MaxDelay:        10 * time.Millisecond,
	}
}

func TestDelayGrowsExponentiallyAndCaps(t *testing.T) {
	e := New(testConfig())

	d0 := e.Delay(0)
	d5 := e.Delay(5)

	assert.GreaterOrEqual(t, d0, time.Millisecond)
	assert.LessOrEqual(t, d0, time.Millisecond+time.Millisecond/2)

	// At n=5, the exponential term exceeds MaxDelay, so the base is capped
	// and the jitter is bounded by MaxDelay*0.5.
	assert.LessOrEqual(t, d5, 10*time.Millisecond+5*time.Millisecond)
}

func TestDoReturnsNilOnFirstSuccess(t *testing.T) {
	e := New(testConfig())
	calls := 0
	err := e.Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesTransientAndSucceeds(t *testing.T) {
	e := New(testConfig())
	calls := 0
	err := e.Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return Transient("op", "temporary", errors.New("boom"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsImmediatelyOnPermanentError(t *testing.T) {
	e := New(testConfig())
	calls := 0
	permErr := Permanent("op", "bad auth", errors.New("401"))
	err := e.Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return permErr
	})
	assert.ErrorIs(t, err, permErr)
	assert.Equal(t, 1, calls)
}

func TestDoReturnsLastErrorUnchangedOnExhaustion(t *testing.T) {
	e := New(testConfig())
	calls := 0
	err := e.Do(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return Transient("op", "still failing", errors.New("boom"))
	})
	require.Error(t, err)
	assert.Equal(t, testConfig().MaxRetries+1, calls)
}

func TestIsTransientClassifiesUnknownErrorsAsPermanent(t *testing.T) {
	assert.False(t, IsTransient(errors.New("unclassified")))
	assert.True(t, IsTransient(ErrTranslationCountMismatch))
	assert.False(t, IsTransient(Permanent("op", "x", errors.New("y"))))
	assert.True(t, IsTransient(Transient("op", "x", errors.New("y"))))
	assert.False(t, IsTransient(nil))
}

func TestDoRespectsContextCancellation(t *testing.T) {
	e := New(testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := e.Do(ctx, "op", func(ctx context.Context) error {
		calls++
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, 0, calls)
}
