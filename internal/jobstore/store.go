// Package jobstore is the Redis-backed key/value persistence layer for
// jobs, duplicate-prevention fingerprints, and translation checkpoints
// (spec.md §3, §4.1).
//
// Grounded on go-redis/v9 as carried by jordigilh-kubernaut's gateway
// deduplication layer and other_examples/manifests/
// fairyhunter13-ai-cv-evaluator's go.mod (see SPEC_FULL.md's domain
// stack table), wired here instead of the teacher's ent/pgx since job
// storage is key/value, not relational (see DESIGN.md).
package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yairabf/submitter/internal/broker"
	"github.com/yairabf/submitter/internal/config"
	"github.com/yairabf/submitter/internal/job"
)

// ErrJobAlreadyExists is returned by SaveJob when job_id already has a
// record (spec.md:76: "create a new record; fails if job_id already
// exists").
var ErrJobAlreadyExists = errors.New("jobstore: job already exists")

// Store wraps a Redis client with the pipeline's job record, dedup, and
// checkpoint operations.
type Store struct {
	client       *redis.Client
	cfg          config.StoreConfig
	ttl          config.JobTTLConfig
	reconnectLog *broker.ReconnectLogger
}

// New builds a Store from the given Redis URL. It does not connect;
// EnsureConnected dials lazily on first use.
func New(cfg config.StoreConfig, ttl config.JobTTLConfig) (*Store, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("jobstore: parse redis url: %w", err)
	}
	return &Store{
		client:       redis.NewClient(opts),
		cfg:          cfg,
		ttl:          ttl,
		reconnectLog: broker.NewReconnectLogger("Redis"),
	}, nil
}

// EnsureConnected pings Redis through the shared ReconnectLogger. It
// always reports the store as previously connected, so a successful ping
// logs nothing and a failed ping is logged on every call.
func (s *Store) EnsureConnected(ctx context.Context) error {
	wasConnected := true
	_, err := s.reconnectLog.CheckAndLog(ctx, wasConnected, func(ctx context.Context) (bool, error) {
		if pingErr := s.client.Ping(ctx).Err(); pingErr != nil {
			return false, pingErr
		}
		return true, nil
	})
	return err
}

func jobKey(id string) string {
	return "job:" + id
}

// SaveJob creates a new job record, failing with ErrJobAlreadyExists if
// job_id is already present (spec.md:76).
func (s *Store) SaveJob(ctx context.Context, j *job.Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("jobstore: marshal job: %w", err)
	}
	created, err := s.client.SetNX(ctx, jobKey(j.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("jobstore: save job %s: %w", j.ID, err)
	}
	if !created {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, j.ID)
	}
	return nil
}

// replaceJob unconditionally overwrites a job record. Used internally by
// UpdatePhase, a distinct operation from job creation (spec.md:78).
func (s *Store) replaceJob(ctx context.Context, j *job.Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("jobstore: marshal job: %w", err)
	}
	if err := s.client.Set(ctx, jobKey(j.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("jobstore: save job %s: %w", j.ID, err)
	}
	return nil
}

// GetJob reads a job record. It returns redis.Nil wrapped if not found.
func (s *Store) GetJob(ctx context.Context, id string) (*job.Job, error) {
	data, err := s.client.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		return nil, fmt.Errorf("jobstore: get job %s: %w", id, err)
	}
	var j job.Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("jobstore: unmarshal job %s: %w", id, err)
	}
	return &j, nil
}

// UpdatePhase loads, mutates, and re-saves a job's phase, enforcing the
// phase state machine's monotonicity invariant (internal/job.Phase).
func (s *Store) UpdatePhase(ctx context.Context, id string, next job.Phase, failureMessage string) error {
	j, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if !j.Phase.CanTransitionTo(next) {
		return fmt.Errorf("jobstore: illegal phase transition for job %s: %s -> %s", id, j.Phase, next)
	}
	j.Phase = next
	if failureMessage != "" {
		j.FailureMessage = failureMessage
	}
	// The record is rewritten first: a plain SET clears any expiry, so the
	// terminal-phase TTL has to be applied afterwards.
	if err := s.replaceJob(ctx, j); err != nil {
		return err
	}
	if err := s.applyTTL(ctx, id, next); err != nil {
		slog.Warn("jobstore: failed to apply job TTL", "job_id", id, "error", err)
	}
	return nil
}

// applyTTL sets the terminal-phase expiry on a job record. A zero TTL
// leaves the record without expiry.
func (s *Store) applyTTL(ctx context.Context, id string, phase job.Phase) error {
	var ttl time.Duration
	switch phase {
	case job.PhaseCompleted:
		ttl = s.ttl.SuccessTTL
	case job.PhaseFailed:
		ttl = s.ttl.FailureTTL
	}
	if ttl <= 0 {
		return nil
	}
	return s.client.Expire(ctx, jobKey(id), ttl).Err()
}

// Close releases the underlying Redis connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
