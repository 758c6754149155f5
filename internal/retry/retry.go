package retry

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/yairabf/submitter/internal/config"
)

// Engine runs an operation with exponential backoff and jitter, retrying
// only errors classified as transient (spec.md §4.2).
type Engine struct {
	cfg config.RetryConfig
	rng *rand.Rand
}

// New builds a retry Engine from the given configuration.
func New(cfg config.RetryConfig) *Engine {
	return &Engine{
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Delay computes the backoff delay before attempt n (0-indexed: the delay
// before the first retry, i.e. after the initial attempt fails, is
// Delay(0)). It implements:
//
//	min(initial_delay * base^n, max_delay) + uniform(0, that*0.5)
func (e *Engine) Delay(n int) time.Duration {
	capped := float64(e.cfg.InitialDelay) * math.Pow(e.cfg.ExponentialBase, float64(n))
	if capped > float64(e.cfg.MaxDelay) {
		capped = float64(e.cfg.MaxDelay)
	}
	jitter := e.rng.Float64() * capped * 0.5
	return time.Duration(capped + jitter)
}

// Do runs fn, retrying on transient errors up to cfg.MaxRetries additional
// times. A permanent error or context cancellation returns immediately.
// On exhaustion, the last error is returned unchanged.
func (e *Engine) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	log := slog.With("op", op)
	var lastErr error
	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) {
			log.Warn("permanent error, not retrying", "error", lastErr)
			return lastErr
		}
		if attempt == e.cfg.MaxRetries {
			break
		}
		delay := e.Delay(attempt)
		log.Warn("transient error, retrying",
			"attempt", attempt+1,
			"max_retries", e.cfg.MaxRetries,
			"delay", delay,
			"error", lastErr)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	log.Error("retries exhausted", "attempts", e.cfg.MaxRetries+1, "error", lastErr)
	return lastErr
}
