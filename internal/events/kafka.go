// Package events announces stored run artifacts to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"docverify/internal/verification/models"
)

// KafkaPublisher writes one record per completed run, keyed by run ID so
// all records of a run land on the same partition.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

type KafkaOption func(*kafkaOptions)

type kafkaOptions struct {
	logger     *slog.Logger
	partitions int32
	replicas   int16
	extra      []kgo.Opt
}

func WithKafkaLogger(logger *slog.Logger) KafkaOption {
	return func(o *kafkaOptions) { o.logger = logger }
}

// WithTopicLayout sets the partition count and replication factor used when
// the topic has to be created.
func WithTopicLayout(partitions int32, replicas int16) KafkaOption {
	return func(o *kafkaOptions) {
		o.partitions = partitions
		o.replicas = replicas
	}
}

// WithClientOptions passes extra options to kgo.NewClient.
func WithClientOptions(opts ...kgo.Opt) KafkaOption {
	return func(o *kafkaOptions) { o.extra = append(o.extra, opts...) }
}

// NewKafkaPublisher connects to brokers and makes sure topic exists.
func NewKafkaPublisher(ctx context.Context, brokers []string, topic string, opts ...KafkaOption) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	o := kafkaOptions{logger: slog.Default(), partitions: 3, replicas: 1}
	for _, opt := range opts {
		opt(&o)
	}

	kopts := append([]kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(5 * time.Millisecond),
	}, o.extra...)
	client, err := kgo.NewClient(kopts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	if err := ensureTopic(ctx, client, topic, o.partitions, o.replicas); err != nil {
		client.Close()
		return nil, err
	}

	return &KafkaPublisher{client: client, topic: topic, logger: o.logger}, nil
}

func ensureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32, replicas int16) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopics(ctx, partitions, replicas, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

func (p *KafkaPublisher) PublishRunCompleted(ctx context.Context, ev models.RunCompleted) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal run completed: %w", err)
	}
	rec := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(ev.RunID),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "event-type", Value: []byte("run.completed")},
		},
	}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce run completed: %w", err)
	}
	p.logger.DebugContext(ctx, "run completed event published", "run_id", ev.RunID, "topic", p.topic)
	return nil
}

// Close flushes buffered records and closes the client.
func (p *KafkaPublisher) Close(ctx context.Context) error {
	err := p.client.Flush(ctx)
	p.client.Close()
	return err
}
