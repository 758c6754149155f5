// Package tasks implements the orchestrator's two work-queue publish
// operations (spec.md §4.7): enqueue_download_task and
// enqueue_translation_task. Both the orchestrator (download tasks) and
// the download worker (translation tasks, chained after a successful
// download) call into this package so the mock-mode and event-publish
// behavior stays in one place.
package tasks

import (
	"context"
	"log/slog"

	"github.com/yairabf/submitter/internal/broker"
	"github.com/yairabf/submitter/internal/config"
	"github.com/yairabf/submitter/internal/events"
	"github.com/yairabf/submitter/internal/job"
)

// EnqueueDownloadTask publishes a download task and its
// subtitle.download.requested lifecycle event. If the broker is
// unreachable it logs the task instead of failing, a documented mock
// mode that keeps callers uncoupled from broker availability during
// startup (spec.md §4.7).
func EnqueueDownloadTask(ctx context.Context, b *broker.Broker, cfg config.BrokerConfig, j *job.Job, bypassDedup bool) error {
	task := job.DownloadTask{
		JobID:          j.ID,
		VideoRef:       j.VideoRef,
		Title:          j.Title,
		SourceLanguage: j.SourceLanguage,
		TargetLanguage: j.TargetLanguage,
		BypassDedup:    bypassDedup,
	}

	if err := b.EnsureConnected(ctx); err != nil {
		slog.Warn("broker unreachable, logging download task in mock mode instead of publishing",
			"job_id", j.ID, "error", err)
		return nil
	}
	if err := b.PublishTask(ctx, cfg.DownloadQueue, task); err != nil {
		return err
	}

	return events.Publish(ctx, b, events.TypeSubtitleDownloadRequested, j.ID, "orchestrator",
		events.SubtitleDownloadRequestedPayload{VideoRef: j.VideoRef, SourceLanguage: j.SourceLanguage, TargetLanguage: j.TargetLanguage})
}

// EnqueueTranslationTask publishes a translation task and its
// subtitle.translate.requested event, called by the download worker once
// a source subtitle is on disk and a different target language was
// requested (spec.md §4.9 step 5).
func EnqueueTranslationTask(ctx context.Context, b *broker.Broker, cfg config.BrokerConfig, jobID, filePath, sourceLang, targetLang string) error {
	task := job.TranslationTask{
		JobID:          jobID,
		SubtitlePath:   filePath,
		SourceLanguage: sourceLang,
		TargetLanguage: targetLang,
	}
	if err := b.EnsureConnected(ctx); err != nil {
		slog.Warn("broker unreachable, logging translation task in mock mode instead of publishing",
			"job_id", jobID, "error", err)
		return nil
	}
	if err := b.PublishTask(ctx, cfg.TranslationQueue, task); err != nil {
		return err
	}
	return events.Publish(ctx, b, events.TypeSubtitleTranslateRequested, jobID, "download-worker",
		events.SubtitleTranslateRequestedPayload{SourceLanguage: sourceLang, TargetLanguage: targetLang, FilePath: filePath})
}

// QueueStatus is the broker-reported message count of both work queues
// (spec.md §4.7, get_queue_status).
type QueueStatus struct {
	DownloadQueueDepth    int `json:"download_queue_depth"`
	TranslationQueueDepth int `json:"translation_queue_depth"`
}

// GetQueueStatus reads both work queues' depths.
func GetQueueStatus(b *broker.Broker, cfg config.BrokerConfig) (QueueStatus, error) {
	downloadDepth, err := b.QueueStatus(cfg.DownloadQueue)
	if err != nil {
		return QueueStatus{}, err
	}
	translationDepth, err := b.QueueStatus(cfg.TranslationQueue)
	if err != nil {
		return QueueStatus{}, err
	}
	return QueueStatus{DownloadQueueDepth: downloadDepth, TranslationQueueDepth: translationDepth}, nil
}
