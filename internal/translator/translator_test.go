package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yairabf/submitter/internal/job"
	"github.com/yairabf/submitter/internal/llmclient"
	"github.com/yairabf/submitter/internal/subtitle"
)

type fakeCounter struct{}

func (fakeCounter) Count(text string) int { return len(text) }

type fakeLLM struct {
	mu    sync.Mutex
	calls int
	fail  map[int]bool // batch index (by call order) that should fail
}

func (f *fakeLLM) TranslateBatch(ctx context.Context, texts []string, sourceLang, targetLang string) (*llmclient.Result, error) {
	f.mu.Lock()
	call := f.calls
	f.calls++
	f.mu.Unlock()

	if f.fail != nil && f.fail[call] {
		return nil, fmt.Errorf("simulated failure for call %d", call)
	}

	translations := make([]string, len(texts))
	for i, text := range texts {
		translations[i] = "[" + targetLang + "] " + text
	}
	return &llmclient.Result{Translations: translations}, nil
}

type fakeStore struct {
	mu          sync.Mutex
	checkpoints map[string]*job.Checkpoint
	deleted     []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{checkpoints: map[string]*job.Checkpoint{}}
}

func key(jobID, targetLanguage string) string { return jobID + ":" + targetLanguage }

func (s *fakeStore) LoadCheckpoint(ctx context.Context, jobID, targetLanguage string) (*job.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkpoints[key(jobID, targetLanguage)], nil
}

func (s *fakeStore) SaveCheckpointBestEffort(ctx context.Context, cp *job.Checkpoint, timeout time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[key(cp.JobID, cp.TargetLanguage)] = cp
}

func (s *fakeStore) DeleteCheckpoint(ctx context.Context, jobID, targetLanguage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, key(jobID, targetLanguage))
	delete(s.checkpoints, key(jobID, targetLanguage))
	return nil
}

func segments(n int) []subtitle.Segment {
	segs := make([]subtitle.Segment, n)
	for i := range segs {
		segs[i] = subtitle.Segment{Number: i + 1, Text: fmt.Sprintf("line %d", i+1)}
	}
	return segs
}

func baseOptions() Options {
	return Options{
		JobID:               "job-1",
		Fingerprint:         "fp-1",
		SourceLanguage:      "en",
		TargetLanguage:      "es",
		MaxTokensPerChunk:   8000,
		TokenSafetyMargin:   0.8,
		MaxSegmentsPerChunk: 2,
		ParallelRequests:    4,
	}
}

func TestTranslateMergesAllChunksInOrder(t *testing.T) {
	counter := fakeCounter{}
	llm := &fakeLLM{}
	store := newFakeStore()
	tr := New(counter, llm, store)

	segs := segments(5)
	result, err := tr.Translate(context.Background(), segs, baseOptions())
	require.NoError(t, err)
	require.Len(t, result, 5)
	for i, s := range result {
		require.Equal(t, i+1, s.Number)
		require.Contains(t, s.Text, "[es]")
	}
}

func TestTranslateAnyChunkFailureFailsWholeTask(t *testing.T) {
	counter := fakeCounter{}
	llm := &fakeLLM{fail: map[int]bool{1: true}}
	store := newFakeStore()
	tr := New(counter, llm, store)

	segs := segments(6)
	_, err := tr.Translate(context.Background(), segs, baseOptions())
	require.Error(t, err)
}

func TestTranslateResumesFromMatchingCheckpoint(t *testing.T) {
	counter := fakeCounter{}
	store := newFakeStore()
	opts := baseOptions()
	opts.CheckpointEnabled = true
	opts.CheckpointTimeout = time.Second

	segs := segments(4)
	chunks := subtitle.Split(segs, counter, opts.MaxTokensPerChunk, opts.TokenSafetyMargin, opts.MaxSegmentsPerChunk)
	require.Len(t, chunks, 2)

	completedFirstChunk, err := marshalTranslatedSegments(chunks[0].Segments, "es")
	require.NoError(t, err)
	store.checkpoints[key(opts.JobID, opts.TargetLanguage)] = &job.Checkpoint{
		JobID:           opts.JobID,
		TargetLanguage:  opts.TargetLanguage,
		Fingerprint:     opts.Fingerprint,
		TotalChunks:     2,
		CompletedChunks: map[int]string{0: completedFirstChunk},
	}

	llm := &fakeLLM{}
	tr := New(counter, llm, store)
	result, err := tr.Translate(context.Background(), segs, opts)
	require.NoError(t, err)
	require.Len(t, result, 4)
	require.Equal(t, 1, llm.calls, "only the un-checkpointed chunk should be translated")
}

func TestTranslateDiscardsCheckpointOnFingerprintMismatch(t *testing.T) {
	counter := fakeCounter{}
	store := newFakeStore()
	opts := baseOptions()
	opts.CheckpointEnabled = true
	opts.CheckpointTimeout = time.Second

	segs := segments(4)
	store.checkpoints[key(opts.JobID, opts.TargetLanguage)] = &job.Checkpoint{
		JobID:          opts.JobID,
		TargetLanguage: opts.TargetLanguage,
		Fingerprint:    "stale-fingerprint",
		TotalChunks:    2,
	}

	llm := &fakeLLM{}
	tr := New(counter, llm, store)
	_, err := tr.Translate(context.Background(), segs, opts)
	require.NoError(t, err)
	require.Equal(t, 2, llm.calls, "mismatched fingerprint must force a fresh translation of every chunk")
}

func TestCleanupDeletesCheckpoint(t *testing.T) {
	store := newFakeStore()
	tr := New(fakeCounter{}, &fakeLLM{}, store)
	require.NoError(t, tr.Cleanup(context.Background(), "job-9", "fr"))
	require.Contains(t, store.deleted, key("job-9", "fr"))
}

func marshalTranslatedSegments(segs []subtitle.Segment, targetLang string) (string, error) {
	translated := make([]subtitle.Segment, len(segs))
	for i, s := range segs {
		translated[i] = subtitle.Segment{Number: s.Number, Start: s.Start, End: s.End, Text: "[" + targetLang + "] " + s.Text}
	}
	data, err := json.Marshal(translated)
	return string(data), err
}
