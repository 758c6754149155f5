// Package events defines the subtitle pipeline's lifecycle event types and
// typed publish helpers over the broker's topic exchange (spec.md §4.8,
// §5). Grounded on the teacher's pkg/events: a closed set of string
// constants plus one typed payload struct per event, carried inside an
// Envelope that holds the event type and a UTC timestamp.
package events

import "time"

// Type is one of the closed set of lifecycle event types (spec.md §5).
type Type string

const (
	TypeMediaFileDetected        Type = "media.file.detected"
	TypeSubtitleRequested        Type = "subtitle.requested"
	TypeSubtitleDownloadRequested Type = "subtitle.download.requested"
	TypeSubtitleDownloadCompleted Type = "subtitle.download.completed"
	TypeSubtitleDownloadFailed    Type = "subtitle.download.failed"
	TypeSubtitleTranslateRequested Type = "subtitle.translate.requested"
	TypeSubtitleTranslateCompleted Type = "subtitle.translate.completed"
	TypeSubtitleTranslateFailed    Type = "subtitle.translate.failed"
	TypeJobCompleted Type = "job.completed"
	TypeJobFailed    Type = "job.failed"
)

// Envelope is the wire shape of every lifecycle event, published with
// routing key equal to EventType (spec.md §5).
type Envelope struct {
	EventType      Type           `json:"event_type"`
	JobID          string         `json:"job_id"`
	Timestamp      time.Time      `json:"timestamp"`
	SourceComponent string        `json:"source_component"`
	Payload        map[string]any `json:"payload"`
}

// New builds an Envelope stamped with the current time.
func New(eventType Type, jobID, sourceComponent string, payload map[string]any) Envelope {
	if payload == nil {
		payload = map[string]any{}
	}
	return Envelope{
		EventType:       eventType,
		JobID:           jobID,
		Timestamp:       time.Now().UTC(),
		SourceComponent: sourceComponent,
		Payload:         payload,
	}
}

// MediaFileDetectedPayload describes a newly discovered media file before
// any job exists for it.
type MediaFileDetectedPayload struct {
	VideoRef string `json:"video_ref"`
	Title    string `json:"title,omitempty"`
}

// SubtitleDownloadRequestedPayload describes a queued download task
// (spec.md §4.7).
type SubtitleDownloadRequestedPayload struct {
	VideoRef       string `json:"video_ref"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
}

// SubtitleDownloadCompletedPayload carries the outcome of a successful
// download (spec.md §4.9 step 4).
type SubtitleDownloadCompletedPayload struct {
	Language string `json:"language"`
	FilePath string `json:"file_path"`
}

// SubtitleDownloadFailedPayload carries a brief failure reason
// (spec.md §4.9: "Failures publish subtitle.download.failed... carrying a
// brief reason").
type SubtitleDownloadFailedPayload struct {
	Reason string `json:"reason"`
}

// SubtitleTranslateRequestedPayload describes a queued translation task.
type SubtitleTranslateRequestedPayload struct {
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
	FilePath       string `json:"file_path"`
}

// SubtitleTranslateCompletedPayload carries translation duration metadata
// (spec.md §4.10 step 8: "Publish subtitle.translate.completed with
// duration metadata").
type SubtitleTranslateCompletedPayload struct {
	TargetLanguage string        `json:"target_language"`
	FilePath       string        `json:"file_path"`
	Duration       time.Duration `json:"duration_ns"`
}

// SubtitleTranslateFailedPayload carries a brief translation failure
// reason.
type SubtitleTranslateFailedPayload struct {
	Reason string `json:"reason"`
}

// JobTerminalPayload is shared by job.completed and job.failed, which
// carry no additional fields beyond the job's final state.
type JobTerminalPayload struct {
	Reason string `json:"reason,omitempty"`
}

// ToMap converts a typed payload into the map[string]any Envelope.Payload
// expects, via a JSON round-trip so field tags are respected.
func ToMap(payload any) map[string]any {
	m, err := toMap(payload)
	if err != nil {
		return map[string]any{}
	}
	return m
}
