// Package kafka ships audit events to a Kafka topic, one JSON record per event
// keyed by event id.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "siaga/pkg/platform/audit"
)

const (
	defaultPartitions  = 3
	defaultReplication = 1
	retention          = 30 * 24 * time.Hour
)

type Sink struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

type Option func(*Sink)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New connects a producer. The topic is created when missing.
func New(ctx context.Context, brokers []string, topic string, opts ...Option) (*Sink, error) {
	if len(brokers) == 0 {
		return nil, errors.New("no brokers provided")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RecordRetries(5),
	)
	if err != nil {
		return nil, fmt.Errorf("new kafka client: %w", err)
	}
	s := &Sink{
		client: client,
		topic:  topic,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.ensureTopic(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sink) ensureTopic(ctx context.Context) error {
	admin := kadm.NewClient(s.client)
	existing, err := admin.ListTopics(ctx, s.topic)
	if err != nil {
		return fmt.Errorf("list topics: %w", err)
	}
	if d, ok := existing[s.topic]; ok && d.Err == nil {
		s.logger.DebugContext(ctx, "audit topic exists", "topic", s.topic)
		return nil
	}

	retentionMs := fmt.Sprintf("%d", retention.Milliseconds())
	resp, err := admin.CreateTopic(ctx, defaultPartitions, defaultReplication, map[string]*string{
		"cleanup.policy": kadm.StringPtr("delete"),
		"retention.ms":   &retentionMs,
	}, s.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", s.topic, err)
	}
	if resp.Err != nil {
		if errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			return nil
		}
		return fmt.Errorf("create topic %s: %w", s.topic, resp.Err)
	}
	s.logger.InfoContext(ctx, "audit topic created", "topic", s.topic, "partitions", defaultPartitions)
	return nil
}

// Write produces the batch and waits for acknowledgement.
func (s *Sink) Write(ctx context.Context, events []audit.Event) error {
	records := make([]*kgo.Record, 0, len(events))
	for _, e := range events {
		value, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal audit event: %w", err)
		}
		records = append(records, &kgo.Record{
			Key:   []byte(e.ID),
			Value: value,
			Headers: []kgo.RecordHeader{
				{Key: "action", Value: []byte(e.Action)},
				{Key: "severity", Value: []byte(e.Severity)},
			},
		})
	}
	if err := s.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce audit events: %w", err)
	}
	return nil
}

func (s *Sink) Close() {
	s.client.Close()
}
