//go:build integration

package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"

	"github.com/yairabf/submitter/internal/config"
)

// Grounded on the teacher's test/util/database.go shared-testcontainer
// idiom, adapted to RabbitMQ since job storage here is Redis/broker, not
// Postgres.
func startRabbitMQ(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	container, err := rabbitmq.Run(ctx, "rabbitmq:3.13-management-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	url, err := container.AmqpURL(ctx)
	require.NoError(t, err)
	return url
}

func TestBrokerConnectDeclaresTopologyAndPublishes(t *testing.T) {
	url := startRabbitMQ(t)

	cfg := config.BrokerConfig{
		URL:                   url,
		DownloadQueue:         "subtitle.download",
		TranslationQueue:      "subtitle.translation",
		EventsExchange:        "subtitle.events",
		Prefetch:              1,
		ReconnectInitialDelay: 100 * time.Millisecond,
		ReconnectMaxDelay:     time.Second,
	}
	b := New(cfg)
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, b.EnsureConnected(ctx))
	require.True(t, b.Connected())

	require.NoError(t, b.PublishTask(ctx, cfg.DownloadQueue, map[string]string{"job_id": "abc"}))

	depth, err := b.QueueStatus(cfg.DownloadQueue)
	require.NoError(t, err)
	require.Equal(t, 1, depth)
}

func TestBrokerConsumeDeliversPublishedMessageToHandler(t *testing.T) {
	url := startRabbitMQ(t)

	cfg := config.BrokerConfig{
		URL:                   url,
		DownloadQueue:         "subtitle.download",
		TranslationQueue:      "subtitle.translation",
		EventsExchange:        "subtitle.events",
		Prefetch:              1,
		ReconnectInitialDelay: 100 * time.Millisecond,
		ReconnectMaxDelay:     time.Second,
	}
	b := New(cfg)
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, b.EnsureConnected(ctx))
	require.NoError(t, b.PublishTask(ctx, cfg.DownloadQueue, map[string]string{"job_id": "xyz"}))

	shutdownCh := make(chan struct{})
	processed := make(chan struct{}, 1)
	go func() {
		_ = b.Consume(ctx, cfg.DownloadQueue, 1, shutdownCh, 5*time.Second, func(ctx context.Context, body []byte) error {
			processed <- struct{}{}
			close(shutdownCh)
			return nil
		})
	}()

	select {
	case <-processed:
	case <-time.After(8 * time.Second):
		t.Fatal("message was not processed in time")
	}
}
