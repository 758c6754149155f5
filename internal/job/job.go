// Package job defines the domain model shared by every component of the
// subtitle pipeline: the Job record, its Phase state machine, and the
// message shapes exchanged over the broker's work queues.
//
// Grounded on the teacher's pkg/models/session.go for the "plain struct
// with json tags, no ORM coupling" shape, adapted away from ent since job
// storage here is Redis, not Postgres (see DESIGN.md).
package job

import "time"

// Phase is the job lifecycle state (spec.md §3).
type Phase string

const (
	PhasePending               Phase = "PENDING"
	PhaseDownloadInProgress    Phase = "DOWNLOAD_IN_PROGRESS"
	PhaseDownloadCompleted     Phase = "DOWNLOAD_COMPLETED"
	PhaseTranslateInProgress   Phase = "TRANSLATE_IN_PROGRESS"
	PhaseCompleted             Phase = "COMPLETED"
	PhaseFailed                Phase = "FAILED"
)

// terminal reports whether a phase has no valid outgoing transition.
func (p Phase) terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// transitions enumerates the only phases each phase may advance to.
// FAILED is reachable from every non-terminal phase and is checked
// separately in CanTransitionTo.
var transitions = map[Phase][]Phase{
	PhasePending:             {PhaseDownloadInProgress},
	PhaseDownloadInProgress:  {PhaseDownloadCompleted, PhaseCompleted, PhaseTranslateInProgress},
	PhaseDownloadCompleted:   {PhaseTranslateInProgress, PhaseCompleted},
	PhaseTranslateInProgress: {PhaseCompleted},
}

// CanTransitionTo reports whether moving from p to next is a legal,
// monotonic transition per the job phase state machine. FAILED is always
// reachable from a non-terminal phase; terminal phases accept nothing.
func (p Phase) CanTransitionTo(next Phase) bool {
	if p.terminal() {
		return false
	}
	if next == PhaseFailed {
		return true
	}
	for _, allowed := range transitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Job is the durable record tracked for a single subtitle acquisition or
// translation request (spec.md §3, "Job").
type Job struct {
	ID             string    `json:"job_id"`
	VideoRef       string    `json:"video_ref"`
	Title          string    `json:"title,omitempty"`
	SourceLanguage string    `json:"source_language,omitempty"`
	TargetLanguage string    `json:"target_language,omitempty"`
	Phase          Phase     `json:"phase"`
	Fingerprint    string    `json:"fingerprint"`
	FailureMessage string    `json:"failure_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// DownloadTask is the message body published to the download work queue
// (spec.md §4.9).
type DownloadTask struct {
	JobID          string `json:"job_id"`
	VideoRef       string `json:"video_ref"`
	Title          string `json:"title,omitempty"`
	SourceLanguage string `json:"source_language,omitempty"`
	TargetLanguage string `json:"target_language,omitempty"`
	BypassDedup    bool   `json:"bypass_dedup,omitempty"`

	// FileHash and FileSize, when known, let the download worker prefer
	// a hash+size catalog match over a free-text/IMDB query (spec.md
	// §4.9 step 2). Both are empty/zero for callers that only have a
	// video reference.
	FileHash string `json:"file_hash,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
}

// TranslationTask is the message body published to the translation work
// queue (spec.md §4.10).
type TranslationTask struct {
	JobID          string `json:"job_id"`
	SubtitlePath   string `json:"subtitle_path"`
	SourceLanguage string `json:"source_language,omitempty"`
	TargetLanguage string `json:"target_language"`
}

// SubtitleSegment is a single timed caption block (spec.md §3).
type SubtitleSegment struct {
	Number int
	Start  time.Duration
	End    time.Duration
	Text   string
}

// Checkpoint captures partial translation progress for resumption
// (spec.md §3, §4.10).
type Checkpoint struct {
	JobID           string          `json:"job_id"`
	TargetLanguage  string          `json:"target_language"`
	Fingerprint     string          `json:"fingerprint"`
	TotalChunks     int             `json:"total_chunks"`
	CompletedChunks map[int]string  `json:"completed_chunks"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
