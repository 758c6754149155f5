// Command translation-worker consumes the subtitle.translation queue:
// for each task it parses the source subtitle, runs the checkpointed
// parallel-chunk translation pipeline, writes the merged result, and
// publishes completion (spec.md §4.10).
//
// Main loop structure mirrors cmd/download-worker deliberately (same
// bootstrap, same Consume/shutdown shape); only the per-message workflow
// differs, per spec.md §4.10's "identical in structure to the download
// worker".
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/yairabf/submitter/internal/broker"
	"github.com/yairabf/submitter/internal/config"
	"github.com/yairabf/submitter/internal/events"
	"github.com/yairabf/submitter/internal/job"
	"github.com/yairabf/submitter/internal/jobstore"
	"github.com/yairabf/submitter/internal/llmclient"
	"github.com/yairabf/submitter/internal/retry"
	"github.com/yairabf/submitter/internal/shutdown"
	"github.com/yairabf/submitter/internal/subtitle"
	"github.com/yairabf/submitter/internal/tokencounter"
	"github.com/yairabf/submitter/internal/translator"
	"github.com/yairabf/submitter/pkg/version"
)

type worker struct {
	cfg        *config.Config
	store      *jobstore.Store
	broker     *broker.Broker
	translator *translator.Translator
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	store, err := jobstore.New(cfg.Store, cfg.JobTTL)
	if err != nil {
		slog.Error("failed to initialize job store", "error", err)
		os.Exit(1)
	}

	b := broker.New(cfg.Broker)
	retryEngine := retry.New(cfg.Retry)
	counter := tokencounter.New(cfg.LLM.Model)
	llm := llmclient.New(cfg.LLM, retryEngine)
	tr := translator.New(counter, llm, store)

	w := &worker{cfg: cfg, store: store, broker: b, translator: tr}

	mgr := shutdown.New("translation-worker", cfg.Shutdown.Timeout, cfg.Shutdown.SecondSignalTimeout)
	mgr.SetupSignalHandlers()
	mgr.RegisterCleanup(func() { b.Close() })
	mgr.RegisterCleanup(func() { store.Close() })

	slog.Info("translation worker starting", "version", version.Full())

	ctx := context.Background()
	err = b.Consume(ctx, cfg.Broker.TranslationQueue, cfg.Broker.Prefetch, mgr.Done(), cfg.Shutdown.Timeout, w.handleMessage)
	if err != nil {
		slog.Error("translation worker consume loop exited", "error", err)
	}

	cleanupCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
	defer cancel()
	mgr.ExecuteCleanup(cleanupCtx)
}

func (w *worker) handleMessage(ctx context.Context, body []byte) error {
	var task job.TranslationTask
	if err := json.Unmarshal(body, &task); err != nil {
		slog.Error("translation worker: malformed task, dropping", "error", err)
		return nil
	}
	if task.JobID == "" || task.SubtitlePath == "" || task.TargetLanguage == "" {
		slog.Error("translation worker: task missing required fields, dropping", "job_id", task.JobID)
		return nil
	}

	log := slog.With("component", "translation-worker", "job_id", task.JobID)

	start := time.Now()
	outputPath, err := w.translate(ctx, task)
	if err != nil {
		w.fail(ctx, log, task.JobID, err)
		return nil
	}
	duration := time.Since(start)

	if err := events.Publish(ctx, w.broker, events.TypeSubtitleTranslateCompleted, task.JobID, "translation-worker",
		events.SubtitleTranslateCompletedPayload{TargetLanguage: task.TargetLanguage, FilePath: outputPath, Duration: duration}); err != nil {
		log.Warn("failed to publish subtitle.translate.completed", "error", err)
	}
	if err := events.Publish(ctx, w.broker, events.TypeJobCompleted, task.JobID, "translation-worker", events.JobTerminalPayload{}); err != nil {
		log.Warn("failed to publish job.completed", "error", err)
	}
	return nil
}

// translate reads and parses the source file, runs the translator, and
// writes the merged result to the deterministic output path (spec.md
// §4.10 steps 3-9).
func (w *worker) translate(ctx context.Context, task job.TranslationTask) (string, error) {
	content, err := os.ReadFile(task.SubtitlePath)
	if err != nil {
		return "", fmt.Errorf("translation worker: read source file: %w", err)
	}
	segments := subtitle.Parse(string(content))
	if len(segments) == 0 {
		return "", fmt.Errorf("translation worker: no segments parsed from %s", task.SubtitlePath)
	}

	fingerprint := job.CheckpointFingerprint(task.SubtitlePath, task.SourceLanguage, task.TargetLanguage)
	opts := translator.Options{
		JobID:               task.JobID,
		Fingerprint:         fingerprint,
		SourceLanguage:      task.SourceLanguage,
		TargetLanguage:      task.TargetLanguage,
		MaxTokensPerChunk:   w.cfg.Translation.MaxTokensPerChunk,
		TokenSafetyMargin:   w.cfg.Translation.TokenSafetyMargin,
		MaxSegmentsPerChunk: w.cfg.Translation.MaxSegmentsPerChunk,
		ParallelRequests:    w.cfg.Translation.ParallelRequests,
		CheckpointEnabled:   w.cfg.Translation.CheckpointEnabled,
		CheckpointTimeout:   w.cfg.Shutdown.Timeout,
	}

	translated, err := w.translator.Translate(ctx, segments, opts)
	if err != nil {
		return "", fmt.Errorf("translation worker: translate: %w", err)
	}

	outputPath := filepath.Join(w.cfg.Storage.SubtitlePath, fmt.Sprintf("%s.%s.srt", task.JobID, task.TargetLanguage))
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", fmt.Errorf("translation worker: create output directory: %w", err)
	}
	if err := os.WriteFile(outputPath, []byte(subtitle.Format(translated)), 0o644); err != nil {
		return "", fmt.Errorf("translation worker: write output file: %w", err)
	}

	if w.cfg.Translation.CheckpointCleanupOnSuccess {
		if err := w.translator.Cleanup(ctx, task.JobID, task.TargetLanguage); err != nil {
			slog.Warn("translation worker: checkpoint cleanup failed", "job_id", task.JobID, "error", err)
		}
	}

	return outputPath, nil
}

func (w *worker) fail(ctx context.Context, log *slog.Logger, jobID string, cause error) {
	log.Error("translation task failed", "error", cause)
	if err := events.Publish(ctx, w.broker, events.TypeSubtitleTranslateFailed, jobID, "translation-worker",
		events.SubtitleTranslateFailedPayload{Reason: cause.Error()}); err != nil {
		log.Warn("failed to publish subtitle.translate.failed", "error", err)
	}
	if err := events.Publish(ctx, w.broker, events.TypeJobFailed, jobID, "translation-worker",
		events.JobTerminalPayload{Reason: cause.Error()}); err != nil {
		log.Warn("failed to publish job.failed", "error", err)
	}
}
