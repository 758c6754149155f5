// Package translator orchestrates chunked, parallel, checkpointed
// subtitle translation (spec.md §4.10). It is the component the
// translation worker calls once it has a parsed subtitle file and a
// target language.
//
// Grounded on the teacher's pkg/queue/pool.go for the bounded-concurrency
// shape (here golang.org/x/sync/semaphore in place of a worker-pool
// struct, since the unit of work is a single job's chunk set rather than
// a long-lived pool of sessions) and on spec.md §4.10's checkpoint/resume
// algorithm.
package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/yairabf/submitter/internal/job"
	"github.com/yairabf/submitter/internal/llmclient"
	"github.com/yairabf/submitter/internal/subtitle"
)

// CheckpointStore is the subset of jobstore.Store the translator needs.
type CheckpointStore interface {
	LoadCheckpoint(ctx context.Context, jobID, targetLanguage string) (*job.Checkpoint, error)
	SaveCheckpointBestEffort(ctx context.Context, cp *job.Checkpoint, timeout time.Duration)
	DeleteCheckpoint(ctx context.Context, jobID, targetLanguage string) error
}

// TranslateBatcher is the subset of llmclient.Client the translator needs.
type TranslateBatcher interface {
	TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string) (*llmclient.Result, error)
}

// Options configures one Translate call.
type Options struct {
	JobID               string
	Fingerprint         string
	SourceLanguage      string
	TargetLanguage      string
	MaxTokensPerChunk   int
	TokenSafetyMargin   float64
	MaxSegmentsPerChunk int
	ParallelRequests    int
	CheckpointEnabled   bool
	CheckpointTimeout   time.Duration
}

// Translator runs the chunk/translate/merge/checkpoint pipeline for one
// subtitle file.
type Translator struct {
	counter subtitle.TokenCounter
	llm     TranslateBatcher
	store   CheckpointStore
}

// New builds a Translator.
func New(counter subtitle.TokenCounter, llm TranslateBatcher, store CheckpointStore) *Translator {
	return &Translator{counter: counter, llm: llm, store: store}
}

type chunkResult struct {
	index    int
	segments []subtitle.Segment
}

type chunkErr struct {
	index int
	err   error
}

// Translate parses segments into chunks, translates every chunk not
// already completed by a resumable checkpoint, and returns the merged,
// densely-renumbered result (spec.md §4.10 steps 2-7).
func (t *Translator) Translate(ctx context.Context, segments []subtitle.Segment, opts Options) ([]subtitle.Segment, error) {
	chunks := subtitle.Split(segments, t.counter, opts.MaxTokensPerChunk, opts.TokenSafetyMargin, opts.MaxSegmentsPerChunk)

	completed := make(map[int][]subtitle.Segment)
	if opts.CheckpointEnabled {
		if cp, err := t.store.LoadCheckpoint(ctx, opts.JobID, opts.TargetLanguage); err == nil && cp != nil {
			completed = decodeCheckpoint(cp, opts.Fingerprint, len(chunks))
		}
	}

	results, err := t.translateRemaining(ctx, chunks, completed, opts)
	if err != nil {
		return nil, err
	}

	merged := make([]subtitle.Chunk, len(chunks))
	for i, r := range results {
		merged[i] = subtitle.Chunk{Index: i, Segments: r}
	}
	return subtitle.MergeChunks(merged), nil
}

// translateRemaining runs every chunk not already in completed through
// the semaphore-bounded translation pool, persists a checkpoint each time
// a chunk completes, and returns the full ordered segment set per chunk.
func (t *Translator) translateRemaining(ctx context.Context, chunks []subtitle.Chunk, completed map[int][]subtitle.Segment, opts Options) ([][]subtitle.Segment, error) {
	results := make([][]subtitle.Segment, len(chunks))
	for i, segs := range completed {
		if i < len(results) {
			results[i] = segs
		}
	}

	sem := semaphore.NewWeighted(int64(opts.ParallelRequests))
	resultCh := make(chan chunkResult, len(chunks))
	errCh := make(chan chunkErr, len(chunks))

	pending := 0
	for _, chunk := range chunks {
		if _, ok := completed[chunk.Index]; ok {
			continue
		}
		pending++
		chunk := chunk
		go func() {
			if err := sem.Acquire(ctx, 1); err != nil {
				errCh <- chunkErr{index: chunk.Index, err: err}
				return
			}
			defer sem.Release(1)

			translated, err := t.translateChunk(ctx, chunk, opts.SourceLanguage, opts.TargetLanguage)
			if err != nil {
				errCh <- chunkErr{index: chunk.Index, err: err}
				return
			}
			resultCh <- chunkResult{index: chunk.Index, segments: translated}
		}()
	}

	var firstErr error
	var failedIndices []int
	checkpointed := make(map[int][]subtitle.Segment, len(chunks))
	for idx, segs := range completed {
		checkpointed[idx] = segs
	}
	for i := 0; i < pending; i++ {
		select {
		case r := <-resultCh:
			results[r.index] = r.segments
			if opts.CheckpointEnabled {
				checkpointed[r.index] = r.segments
				t.persistCheckpoint(ctx, opts, checkpointed, len(chunks))
			}
		case e := <-errCh:
			failedIndices = append(failedIndices, e.index)
			if firstErr == nil {
				firstErr = fmt.Errorf("translator: chunk %d: %w", e.index, e.err)
			}
		}
	}

	if firstErr != nil {
		sort.Ints(failedIndices)
		slog.Error("chunk translation failed, whole task fails for redelivery",
			"component", "translator", "job_id", opts.JobID, "failed_chunks", failedIndices)
		return nil, firstErr
	}

	return results, nil
}

func (t *Translator) translateChunk(ctx context.Context, chunk subtitle.Chunk, sourceLang, targetLang string) ([]subtitle.Segment, error) {
	texts := make([]string, len(chunk.Segments))
	for i, s := range chunk.Segments {
		texts[i] = s.Text
	}

	result, err := t.llm.TranslateBatch(ctx, texts, sourceLang, targetLang)
	if err != nil {
		return nil, err
	}
	return subtitle.MergeTranslations(chunk.Segments, result.Translations, result.ParsedNumbers)
}

func (t *Translator) persistCheckpoint(ctx context.Context, opts Options, completed map[int][]subtitle.Segment, totalChunks int) {
	encoded := make(map[int]string, len(completed))
	for idx, segs := range completed {
		data, err := json.Marshal(segs)
		if err != nil {
			continue
		}
		encoded[idx] = string(data)
	}
	cp := &job.Checkpoint{
		JobID:           opts.JobID,
		TargetLanguage:  opts.TargetLanguage,
		Fingerprint:     opts.Fingerprint,
		TotalChunks:     totalChunks,
		CompletedChunks: encoded,
	}
	t.store.SaveCheckpointBestEffort(ctx, cp, opts.CheckpointTimeout)
}

// Cleanup removes the checkpoint after a successful terminal write, when
// cleanup-on-success is enabled (spec.md §4.10 step 9).
func (t *Translator) Cleanup(ctx context.Context, jobID, targetLanguage string) error {
	return t.store.DeleteCheckpoint(ctx, jobID, targetLanguage)
}

// decodeCheckpoint validates the checkpoint against the current task's
// fingerprint and chunk count, discarding it (returning an empty map) on
// any mismatch per spec.md §4.10 step 2 and step 4.
func decodeCheckpoint(cp *job.Checkpoint, fingerprint string, totalChunks int) map[int][]subtitle.Segment {
	if cp.Fingerprint != fingerprint || cp.TotalChunks != totalChunks {
		return map[int][]subtitle.Segment{}
	}
	completed := make(map[int][]subtitle.Segment, len(cp.CompletedChunks))
	for idx, raw := range cp.CompletedChunks {
		var segs []subtitle.Segment
		if err := json.Unmarshal([]byte(raw), &segs); err != nil {
			continue
		}
		completed[idx] = segs
	}
	if len(completed) != len(cp.CompletedChunks) {
		return map[int][]subtitle.Segment{}
	}
	return completed
}
