package jobstore

import (
	"context"
	"log/slog"
	"time"
)

func dedupKey(fingerprint string) string {
	return "dedup:" + fingerprint
}

// CheckAndRegister atomically checks whether fingerprint has been seen
// within the configured duplicate-prevention window and, if not,
// registers jobID against it. It returns (isDuplicate, existingJobID):
// isDuplicate is false and existingJobID is empty when this call
// registered a new fingerprint; isDuplicate is true and existingJobID
// holds the job_id that first claimed it otherwise (spec.md:81:
// "check_and_register(fingerprint, job_id) returns {is_duplicate,
// existing_job_id?}").
//
// On a store failure, it degrades to "not a duplicate" rather than
// blocking the caller — a missed duplicate is preferable to refusing to
// process a legitimate new request (spec.md §4.1).
func (s *Store) CheckAndRegister(ctx context.Context, fingerprint, jobID string, window time.Duration) (bool, string) {
	ok, err := s.client.SetNX(ctx, dedupKey(fingerprint), jobID, window).Result()
	if err != nil {
		slog.Warn("jobstore: dedup check failed, degrading to not-duplicate", "fingerprint", fingerprint, "error", err)
		return false, ""
	}
	if ok {
		return false, ""
	}
	existing, err := s.client.Get(ctx, dedupKey(fingerprint)).Result()
	if err != nil {
		slog.Warn("jobstore: dedup duplicate hit but existing job_id unreadable", "fingerprint", fingerprint, "error", err)
		return true, ""
	}
	return true, existing
}

// IsDuplicate reports whether fingerprint is currently registered,
// without registering it. Used for inspection/testing; the hot path
// uses CheckAndRegister's atomic check-and-set.
func (s *Store) IsDuplicate(ctx context.Context, fingerprint string) bool {
	exists, err := s.client.Exists(ctx, dedupKey(fingerprint)).Result()
	if err != nil {
		return false
	}
	return exists > 0
}
