package broker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReconnectLoggerReturnsConnectResult(t *testing.T) {
	l := NewReconnectLogger("test")
	ok, err := l.CheckAndLog(context.Background(), false, func(ctx context.Context) (bool, error) {
		return true, nil
	})
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestReconnectLoggerPropagatesConnectError(t *testing.T) {
	l := NewReconnectLogger("test")
	boom := errors.New("boom")
	ok, err := l.CheckAndLog(context.Background(), true, func(ctx context.Context) (bool, error) {
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, ok)
}

func TestReconnectLoggerTracksStateAcrossCalls(t *testing.T) {
	l := NewReconnectLogger("test")

	ok, err := l.CheckAndLog(context.Background(), true, func(ctx context.Context) (bool, error) {
		return false, nil
	})
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, l.wasConnected)

	ok, err = l.CheckAndLog(context.Background(), false, func(ctx context.Context) (bool, error) {
		return true, nil
	})
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, l.wasConnected)
}
