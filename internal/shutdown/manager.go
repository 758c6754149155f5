// Package shutdown implements graceful shutdown for the worker processes:
// OS signal interception, a poll-friendly shutdown flag, LIFO cleanup
// callback execution, and escalating signal handling (spec.md §4.11).
//
// Grounded on original_source/src/common/shutdown_manager.py for the
// state machine and LIFO cleanup semantics, re-expressed with goroutines
// and channels instead of asyncio, and on the teacher's pkg/queue/pool.go
// Stop() for the "signal then wg.Wait()" idiom. Signal interception itself
// is necessarily stdlib (os/signal) — no example repo substitutes a
// library for raw OS signal delivery; see DESIGN.md.
package shutdown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// State tracks shutdown progress.
type State string

const (
	StateNotStarted State = "not_started"
	StateInitiated  State = "initiated"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
)

// Manager coordinates graceful shutdown for a single service process.
type Manager struct {
	serviceName         string
	timeout             time.Duration
	secondSignalTimeout time.Duration

	mu        sync.Mutex
	state     State
	callbacks []func()

	shutdownCh   chan struct{}
	closeOnce    sync.Once
	signalCount  int
}

// New builds a Manager. secondSignalTimeout bounds the forced fast-cleanup
// on a second signal. timeout is stored but not applied by the Manager: a
// first signal only sets the shutdown flag, and ExecuteCleanup is bounded
// by the context its caller passes.
func New(serviceName string, timeout, secondSignalTimeout time.Duration) *Manager {
	return &Manager{
		serviceName:         serviceName,
		timeout:             timeout,
		secondSignalTimeout: secondSignalTimeout,
		state:               StateNotStarted,
		shutdownCh:          make(chan struct{}),
	}
}

// SetupSignalHandlers starts a goroutine that intercepts SIGINT/SIGTERM.
// The first signal sets the shutdown flag; the second runs cleanup under
// a short forced timeout and then exits the process; the third and later
// are logged and ignored. It never blocks the signal-delivery path.
func (m *Manager) SetupSignalHandlers() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	log := slog.With("component", "shutdown", "service", m.serviceName)

	go func() {
		for sig := range sigCh {
			m.mu.Lock()
			m.signalCount++
			count := m.signalCount
			m.mu.Unlock()

			switch count {
			case 1:
				log.Info("received signal, initiating graceful shutdown", "signal", sig, "phase", "shutdown")
				m.RequestShutdown()
			case 2:
				log.Warn("received second signal, attempting fast cleanup then exiting", "signal", sig, "phase", "shutdown")
				ctx, cancel := context.WithTimeout(context.Background(), m.secondSignalTimeout)
				m.ExecuteCleanup(ctx)
				cancel()
				os.Exit(1)
			default:
				log.Warn("received additional signal, already shutting down", "signal", sig, "count", count, "phase", "shutdown")
			}
		}
	}()

	log.Info("signal handlers registered", "phase", "startup")
}

// IsShutdownRequested reports whether shutdown has been requested. Main
// loops poll this between message processing iterations.
func (m *Manager) IsShutdownRequested() bool {
	select {
	case <-m.shutdownCh:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when shutdown is requested, for use in
// select statements alongside other blocking operations.
func (m *Manager) Done() <-chan struct{} {
	return m.shutdownCh
}

// RequestShutdown sets the shutdown flag programmatically, without
// requiring an OS signal. Idempotent.
func (m *Manager) RequestShutdown() {
	m.mu.Lock()
	if m.state == StateNotStarted {
		m.state = StateInitiated
	}
	m.mu.Unlock()
	m.closeOnce.Do(func() { close(m.shutdownCh) })
}

// RegisterCleanup appends a cleanup callback. Callbacks run in reverse
// registration order (LIFO) during ExecuteCleanup, so dependents clean up
// before what they depend on (e.g. a channel before its connection).
func (m *Manager) RegisterCleanup(callback func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// ExecuteCleanup runs all registered callbacks in LIFO order, bounded by
// ctx. A callback that panics is recovered and logged; execution
// continues with the remaining callbacks. Idempotent: a second call is a
// no-op once cleanup has completed.
func (m *Manager) ExecuteCleanup(ctx context.Context) {
	m.mu.Lock()
	if m.state == StateCompleted {
		m.mu.Unlock()
		return
	}
	m.state = StateInProgress
	callbacks := make([]func(), len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.Unlock()

	log := slog.With("component", "shutdown", "service", m.serviceName)
	log.Info("executing cleanup", "callback_count", len(callbacks), "phase", "shutdown")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := len(callbacks) - 1; i >= 0; i-- {
			runCallback(log, callbacks[i])
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		log.Error("cleanup timed out before all callbacks ran", "phase", "shutdown")
	}

	m.mu.Lock()
	m.state = StateCompleted
	m.mu.Unlock()
	log.Info("cleanup completed", "phase", "shutdown")
}

func runCallback(log *slog.Logger, callback func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("cleanup callback panicked", "recovered", r, "phase", "shutdown")
		}
	}()
	callback()
}

// State returns the current shutdown state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}
