package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yairabf/submitter/internal/job"
)

func checkpointKey(jobID, targetLanguage string) string {
	return fmt.Sprintf("checkpoint:%s:%s", jobID, targetLanguage)
}

// SaveCheckpoint persists partial translation progress. No TTL is
// applied: checkpoints live until explicit cleanup on terminal success
// (spec.md §3 — "no expiry active").
func (s *Store) SaveCheckpoint(ctx context.Context, cp *job.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("jobstore: marshal checkpoint: %w", err)
	}
	key := checkpointKey(cp.JobID, cp.TargetLanguage)
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("jobstore: save checkpoint %s: %w", key, err)
	}
	return nil
}

// LoadCheckpoint reads a checkpoint, returning (nil, nil) if none exists
// so callers can treat a missing checkpoint as "start fresh" without
// special-casing an error.
func (s *Store) LoadCheckpoint(ctx context.Context, jobID, targetLanguage string) (*job.Checkpoint, error) {
	key := checkpointKey(jobID, targetLanguage)
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("jobstore: load checkpoint %s: %w", key, err)
	}
	var cp job.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("jobstore: unmarshal checkpoint %s: %w", key, err)
	}
	return &cp, nil
}

// DeleteCheckpoint removes a checkpoint after terminal success, when
// cleanup-on-success is enabled (spec.md §4.10).
func (s *Store) DeleteCheckpoint(ctx context.Context, jobID, targetLanguage string) error {
	key := checkpointKey(jobID, targetLanguage)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("jobstore: delete checkpoint %s: %w", key, err)
	}
	return nil
}

// SaveCheckpointBestEffort saves a checkpoint and logs-and-ignores any
// failure, matching the "checkpoint-save failures are logged and
// ignored" rule of spec.md §4.10.
func (s *Store) SaveCheckpointBestEffort(ctx context.Context, cp *job.Checkpoint, timeout time.Duration) {
	saveCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.SaveCheckpoint(saveCtx, cp); err != nil {
		slog.Warn("jobstore: checkpoint save failed, continuing without it", "job_id", cp.JobID, "target_language", cp.TargetLanguage, "error", err)
	}
}
