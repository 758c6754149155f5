package broker

import (
	"context"
	"log/slog"
	"sync"
)

// ReconnectLogger wraps a connect attempt so a successful reconnect is
// logged once, on the disconnected → connected transition, rather than on
// every health-check tick. Failed attempts are logged on every call.
//
// Grounded on original_source/src/common/connection_utils.py's
// check_and_log_reconnection: the same "track state before, compare
// after" shape, re-expressed as a small stateful Go type instead of a
// function taking three callables.
type ReconnectLogger struct {
	name string

	mu            sync.Mutex
	wasConnected  bool
}

// NewReconnectLogger builds a logger for a connection identified by name
// (e.g. "RabbitMQ", "Redis") in log output.
func NewReconnectLogger(name string) *ReconnectLogger {
	return &ReconnectLogger{name: name}
}

// CheckAndLog calls connect(ctx). It logs a reconnect only when
// wasConnectedBefore is false and connect succeeds; a connect error or an
// unsuccessful check is logged on every call, whatever the prior state.
// wasConnectedBefore is the caller's own best-effort read of its prior
// connection state, since only the caller holds that handle.
func (r *ReconnectLogger) CheckAndLog(ctx context.Context, wasConnectedBefore bool, connect func(ctx context.Context) (bool, error)) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	isConnected, err := connect(ctx)
	if err != nil {
		slog.Error("error ensuring connection", "connection", r.name, "error", err)
		r.wasConnected = false
		return false, err
	}

	if isConnected && !wasConnectedBefore {
		slog.Info("reconnected successfully", "connection", r.name)
	} else if !isConnected {
		slog.Warn("connection check failed", "connection", r.name)
	}

	r.wasConnected = isConnected
	return isConnected, nil
}
