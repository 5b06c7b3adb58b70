//go:build integration

package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"docverify/internal/verification/models"
	"docverify/pkg/testutil/containers"
)

func TestKafkaPublisherRoundTrip(t *testing.T) {
	broker := containers.GetManager().GetRedpanda(t).Broker
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const topic = "docverify.runs.completed.test"
	pub, err := NewKafkaPublisher(ctx, []string{broker}, topic, WithTopicLayout(1, 1))
	require.NoError(t, err)
	defer func() { _ = pub.Close(ctx) }()

	ev := models.RunCompleted{
		RunID:       "run-42",
		Verdict:     true,
		DocType:     "sick_leave_certificate",
		CompletedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, pub.PublishRunCompleted(ctx, ev))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.Empty(t, fetches.Errors())
	records := fetches.Records()
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "run-42", string(rec.Key))
	var got models.RunCompleted
	require.NoError(t, json.Unmarshal(rec.Value, &got))
	assert.Equal(t, ev.RunID, got.RunID)
	assert.True(t, got.Verdict)
	assert.Equal(t, ev.DocType, got.DocType)
}
