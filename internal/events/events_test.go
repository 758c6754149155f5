package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	eventType string
	payload   interface{}
}

func (r *recordingPublisher) PublishEvent(ctx context.Context, eventType string, payload interface{}) error {
	r.eventType = eventType
	r.payload = payload
	return nil
}

func TestPublishUsesEventTypeAsRoutingKey(t *testing.T) {
	p := &recordingPublisher{}
	err := Publish(context.Background(), p, TypeSubtitleDownloadCompleted, "job-1", "download-worker",
		SubtitleDownloadCompletedPayload{Language: "en", FilePath: "/data/job-1.en.srt"})
	require.NoError(t, err)
	require.Equal(t, string(TypeSubtitleDownloadCompleted), p.eventType)

	envelope, ok := p.payload.(Envelope)
	require.True(t, ok)
	require.Equal(t, "job-1", envelope.JobID)
	require.Equal(t, "en", envelope.Payload["language"])
}

func TestToMapOmitsEmptyOptionalFields(t *testing.T) {
	m := ToMap(MediaFileDetectedPayload{VideoRef: "/media/x.mkv"})
	require.Equal(t, "/media/x.mkv", m["video_ref"])
	_, hasTitle := m["title"]
	require.False(t, hasTitle)
}

func TestDispatcherRoutesToRegisteredHandler(t *testing.T) {
	d := NewDispatcher()
	var received Envelope
	d.On(TypeJobCompleted, func(ctx context.Context, e Envelope) error {
		received = e
		return nil
	})

	envelope := New(TypeJobCompleted, "job-2", "orchestrator", nil)
	body, err := json.Marshal(envelope)
	require.NoError(t, err)

	require.NoError(t, d.Handle(context.Background(), body))
	require.Equal(t, "job-2", received.JobID)
}

func TestDispatcherIgnoresUnregisteredEventType(t *testing.T) {
	d := NewDispatcher()
	envelope := New(TypeJobFailed, "job-3", "orchestrator", nil)
	body, err := json.Marshal(envelope)
	require.NoError(t, err)

	require.NoError(t, d.Handle(context.Background(), body))
}
