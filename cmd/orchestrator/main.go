// Command orchestrator accepts external job requests over HTTP, persists
// a job record, enqueues a download task, and publishes the
// corresponding lifecycle event (spec.md §2, §4.7). The HTTP management
// API's full surface is out of scope (spec.md §1); this exposes only the
// minimal trigger and health endpoints spec.md §6 requires a caller.
//
// Grounded on the teacher's cmd/tarsy/main.go: flag + env bootstrap, gin
// router, a /health endpoint reporting downstream connectivity.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yairabf/submitter/internal/broker"
	"github.com/yairabf/submitter/internal/config"
	"github.com/yairabf/submitter/internal/events"
	"github.com/yairabf/submitter/internal/job"
	"github.com/yairabf/submitter/internal/jobstore"
	"github.com/yairabf/submitter/internal/shutdown"
	"github.com/yairabf/submitter/internal/tasks"
	"github.com/yairabf/submitter/pkg/version"
)

// phaseEventsQueue is the durable queue the orchestrator binds to the
// events exchange under a catch-all pattern, so every lifecycle event
// drives a phase transition in one place (spec.md §4.7: "phase changes
// are produced by the event consumer of the orchestrator, keeping
// persistence event-driven"). Workers only publish events; they never
// mutate job phase themselves.
const phaseEventsQueue = "orchestrator.phase-tracker"

type jobRequest struct {
	VideoRef       string `json:"video_ref" binding:"required"`
	Title          string `json:"title"`
	SourceLanguage string `json:"source_language" binding:"required"`
	TargetLanguage string `json:"target_language"`
	BypassDedup    bool   `json:"bypass_dedup"`
}

type jobResponse struct {
	JobID       string `json:"job_id"`
	Duplicate   bool   `json:"duplicate"`
	ExistingJob string `json:"existing_job_id,omitempty"`
}

type orchestrator struct {
	cfg    *config.Config
	store  *jobstore.Store
	broker *broker.Broker
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
	defer store.Close()

	b := broker.New(cfg.Broker)
	defer b.Close()

	mgr := shutdown.New("orchestrator", cfg.Shutdown.Timeout, cfg.Shutdown.SecondSignalTimeout)
	mgr.SetupSignalHandlers()
	mgr.RegisterCleanup(func() { b.Close() })
	mgr.RegisterCleanup(func() { store.Close() })

	o := &orchestrator{cfg: cfg, store: store, broker: b}

	router := gin.Default()
	router.GET("/health", o.handleHealth)
	router.POST("/jobs", o.handleCreateJob)
	router.GET("/queues", o.handleQueueStatus)

	httpPort := getEnv("HTTP_PORT", "8080")
	slog.Info("orchestrator starting", "version", version.Full(), "port", httpPort)

	srv := &http.Server{Addr: ":" + httpPort, Handler: router}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server failed", "error", err)
		}
	}()

	go o.consumeEvents(context.Background(), mgr)

	<-mgr.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	mgr.ExecuteCleanup(shutdownCtx)
}

// consumeEvents binds the phase-tracker queue to every lifecycle event
// and translates each into the one legal phase transition it represents.
// It runs for the life of the process; mgr's Done channel stops it cleanly.
func (o *orchestrator) consumeEvents(ctx context.Context, mgr *shutdown.Manager) {
	if err := o.broker.BindEventQueue(ctx, phaseEventsQueue, "#"); err != nil {
		slog.Error("failed to bind phase-tracker queue, phase transitions will not be event-driven", "error", err)
		return
	}

	dispatcher := events.NewDispatcher()
	dispatcher.On(events.TypeSubtitleDownloadRequested, o.onPhaseEvent(job.PhaseDownloadInProgress, ""))
	dispatcher.On(events.TypeSubtitleDownloadCompleted, o.onPhaseEvent(job.PhaseDownloadCompleted, ""))
	dispatcher.On(events.TypeSubtitleTranslateRequested, o.onPhaseEvent(job.PhaseTranslateInProgress, ""))
	dispatcher.On(events.TypeJobCompleted, o.onPhaseEvent(job.PhaseCompleted, ""))
	dispatcher.On(events.TypeJobFailed, o.onFailureEvent())

	if err := o.broker.Consume(ctx, phaseEventsQueue, 0, mgr.Done(), o.cfg.Shutdown.Timeout, dispatcher.Handle); err != nil {
		slog.Error("orchestrator event consumer exited", "error", err)
	}
}

// onPhaseEvent builds a handler that advances the job named by the
// envelope to phase, ignoring an event for a job whose current phase
// cannot legally reach it (e.g. a redelivered, already-applied event).
func (o *orchestrator) onPhaseEvent(phase job.Phase, reason string) events.EventHandler {
	return func(ctx context.Context, envelope events.Envelope) error {
		if err := o.store.UpdatePhase(ctx, envelope.JobID, phase, reason); err != nil {
			slog.Warn("phase transition from event skipped", "job_id", envelope.JobID, "phase", phase, "error", err)
		}
		return nil
	}
}

func (o *orchestrator) onFailureEvent() events.EventHandler {
	return func(ctx context.Context, envelope events.Envelope) error {
		reason, _ := envelope.Payload["reason"].(string)
		if err := o.store.UpdatePhase(ctx, envelope.JobID, job.PhaseFailed, reason); err != nil {
			slog.Warn("failure phase transition skipped", "job_id", envelope.JobID, "error", err)
		}
		return nil
	}
}

func (o *orchestrator) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	storeErr := o.store.EnsureConnected(ctx)
	brokerErr := o.broker.EnsureConnected(ctx)

	status := http.StatusOK
	if storeErr != nil || brokerErr != nil {
		status = http.StatusServiceUnavailable
	}

	health := gin.H{"status": "healthy", "version": version.Full()}
	if storeErr != nil {
		health["store_error"] = storeErr.Error()
		health["status"] = "unhealthy"
	}
	if brokerErr != nil {
		health["broker_error"] = brokerErr.Error()
		health["status"] = "unhealthy"
	}
	c.JSON(status, health)
}

func (o *orchestrator) handleCreateJob(c *gin.Context) {
	var req jobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	fingerprint := job.Fingerprint(req.VideoRef, req.SourceLanguage, req.TargetLanguage)
	jobID := job.NewID()

	if !req.BypassDedup {
		isDuplicate, existingJobID := o.store.CheckAndRegister(ctx, fingerprint, jobID, time.Duration(o.cfg.Dedup.WindowSeconds)*time.Second)
		if isDuplicate {
			c.JSON(http.StatusOK, jobResponse{Duplicate: true, ExistingJob: existingJobID})
			return
		}
	}

	j := &job.Job{
		ID:             jobID,
		VideoRef:       req.VideoRef,
		Title:          req.Title,
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.TargetLanguage,
		Phase:          job.PhasePending,
		Fingerprint:    fingerprint,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	if err := o.store.SaveJob(ctx, j); err != nil {
		slog.Error("failed to save job", "job_id", j.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist job"})
		return
	}

	if err := tasks.EnqueueDownloadTask(ctx, o.broker, o.cfg.Broker, j, req.BypassDedup); err != nil {
		slog.Error("failed to enqueue download task", "job_id", j.ID, "error", err)
	}

	c.JSON(http.StatusAccepted, jobResponse{JobID: j.ID})
}

func (o *orchestrator) handleQueueStatus(c *gin.Context) {
	status, err := tasks.GetQueueStatus(o.broker, o.cfg.Broker)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
