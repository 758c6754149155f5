// Command download-worker consumes the subtitle.download queue: for each
// task it resolves a catalog match, downloads the subtitle to shared
// storage, and chains a translation task when the job asked for a
// different target language (spec.md §4.9). It never mutates job phase
// directly — it only publishes lifecycle events, and the orchestrator's
// event consumer turns those into phase transitions (spec.md §4.7).
//
// Grounded on the teacher's cmd/tarsy worker bootstrap (config load,
// signal-aware main loop, structured logging) and on
// original_source/src/downloader/worker.py for the per-message step
// order this file reproduces.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/yairabf/submitter/internal/broker"
	"github.com/yairabf/submitter/internal/catalog"
	"github.com/yairabf/submitter/internal/config"
	"github.com/yairabf/submitter/internal/events"
	"github.com/yairabf/submitter/internal/job"
	"github.com/yairabf/submitter/internal/retry"
	"github.com/yairabf/submitter/internal/shutdown"
	"github.com/yairabf/submitter/internal/tasks"
	"github.com/yairabf/submitter/pkg/version"
)

type worker struct {
	cfg     *config.Config
	broker  *broker.Broker
	catalog *catalog.Client
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	b := broker.New(cfg.Broker)
	retryEngine := retry.New(cfg.Retry)
	catalogClient := catalog.New(cfg.Catalog, retryEngine)

	w := &worker{cfg: cfg, broker: b, catalog: catalogClient}

	mgr := shutdown.New("download-worker", cfg.Shutdown.Timeout, cfg.Shutdown.SecondSignalTimeout)
	mgr.SetupSignalHandlers()
	mgr.RegisterCleanup(func() { catalogClient.Disconnect() })
	mgr.RegisterCleanup(func() { b.Close() })

	slog.Info("download worker starting", "version", version.Full())

	ctx := context.Background()
	if err := catalogClient.Connect(ctx); err != nil {
		slog.Error("catalog client failed to authenticate at startup, will retry lazily", "error", err)
	}

	err = b.Consume(ctx, cfg.Broker.DownloadQueue, cfg.Broker.Prefetch, mgr.Done(), cfg.Shutdown.Timeout, w.handleMessage)
	if err != nil {
		slog.Error("download worker consume loop exited", "error", err)
	}

	cleanupCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
	defer cancel()
	mgr.ExecuteCleanup(cleanupCtx)
}

func (w *worker) handleMessage(ctx context.Context, body []byte) error {
	var task job.DownloadTask
	if err := json.Unmarshal(body, &task); err != nil {
		slog.Error("download worker: malformed task, dropping", "error", err)
		return nil
	}

	log := slog.With("component", "download-worker", "job_id", task.JobID)

	language := task.SourceLanguage
	if language == "" {
		language = task.TargetLanguage
	}

	result, filePath, err := w.download(ctx, task, language)
	if err != nil {
		w.fail(ctx, log, task.JobID, err)
		return nil
	}

	if err := events.Publish(ctx, w.broker, events.TypeSubtitleDownloadCompleted, task.JobID, "download-worker",
		events.SubtitleDownloadCompletedPayload{Language: result.Language, FilePath: filePath}); err != nil {
		log.Warn("failed to publish subtitle.download.completed", "error", err)
	}

	if task.TargetLanguage != "" && task.TargetLanguage != result.Language {
		if err := tasks.EnqueueTranslationTask(ctx, w.broker, w.cfg.Broker, task.JobID, filePath, result.Language, task.TargetLanguage); err != nil {
			log.Error("failed to enqueue translation task", "error", err)
			w.fail(ctx, log, task.JobID, err)
		}
		return nil
	}

	if err := events.Publish(ctx, w.broker, events.TypeJobCompleted, task.JobID, "download-worker", events.JobTerminalPayload{}); err != nil {
		log.Warn("failed to publish job.completed", "error", err)
	}
	return nil
}

// download resolves the best catalog candidate for task and downloads it
// to the deterministic shared-storage path, preferring a hash+size match
// when the task carries one (spec.md §4.9 steps 2-3).
func (w *worker) download(ctx context.Context, task job.DownloadTask, language string) (catalog.SubtitleResult, string, error) {
	if err := w.catalog.Connect(ctx); err != nil {
		return catalog.SubtitleResult{}, "", fmt.Errorf("download worker: catalog connect: %w", err)
	}

	var candidates []catalog.SubtitleResult
	var err error
	if task.FileHash != "" {
		candidates, err = w.catalog.SearchByHash(ctx, task.FileHash, task.FileSize, []string{language})
	}
	if task.FileHash == "" || (err == nil && len(candidates) == 0) {
		candidates, err = w.catalog.Search(ctx, "", task.VideoRef, []string{language})
	}
	if err != nil {
		return catalog.SubtitleResult{}, "", fmt.Errorf("download worker: search: %w", err)
	}
	if len(candidates) == 0 {
		return catalog.SubtitleResult{}, "", fmt.Errorf("download worker: no subtitle candidates found for job %s", task.JobID)
	}

	best := candidates[0]
	outputPath := filepath.Join(w.cfg.Storage.SubtitlePath, fmt.Sprintf("%s.%s.srt", task.JobID, language))
	if _, err := w.catalog.Download(ctx, best.SubtitleID, outputPath); err != nil {
		return catalog.SubtitleResult{}, "", fmt.Errorf("download worker: download: %w", err)
	}

	resultLanguage := best.Language
	if resultLanguage == "" {
		resultLanguage = language
	}
	return catalog.SubtitleResult{SubtitleID: best.SubtitleID, Language: resultLanguage, FileName: best.FileName}, outputPath, nil
}

func (w *worker) fail(ctx context.Context, log *slog.Logger, jobID string, cause error) {
	log.Error("download task failed", "error", cause)
	if err := events.Publish(ctx, w.broker, events.TypeSubtitleDownloadFailed, jobID, "download-worker",
		events.SubtitleDownloadFailedPayload{Reason: cause.Error()}); err != nil {
		log.Warn("failed to publish subtitle.download.failed", "error", err)
	}
	if err := events.Publish(ctx, w.broker, events.TypeJobFailed, jobID, "download-worker",
		events.JobTerminalPayload{Reason: cause.Error()}); err != nil {
		log.Warn("failed to publish job.failed", "error", err)
	}
}
