//go:build integration

package kafka_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"claimdesk/internal/platform/kafka"
	"claimdesk/pkg/testutil/containers"
)

func TestProducer_PublishAndConsume(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := containers.GetManager().GetRedpanda(t)
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	producer, err := kafka.NewProducer([]string{broker.Broker}, logger)
	require.NoError(t, err)
	defer producer.Close()

	const topic = "claimdesk.test-events"
	require.NoError(t, producer.EnsureTopics(ctx, 1, 1, topic))
	require.NoError(t, producer.EnsureTopics(ctx, 1, 1, topic))
	require.NoError(t, producer.Publish(ctx, topic, []byte("acme"), []byte(`{"status":"assigned"}`)))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	var values []string
	fetches.EachRecord(func(r *kgo.Record) { values = append(values, string(r.Value)) })
	require.Contains(t, values, `{"status":"assigned"}`)
}
