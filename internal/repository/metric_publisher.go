package repository

import (
	"context"

	"IndexSDK/internal/domain/models"
	"IndexSDK/internal/domain/repository"
	pkgkafka "IndexSDK/pkg/kafka"
)

// Publisher is the producer surface the Kafka sink needs.
type Publisher interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// KafkaMetricPublisher implements MetricSink for Kafka. Points are keyed by security
// id so one security's history stays on one partition.
type KafkaMetricPublisher struct {
	producer Publisher
	topic    string
}

// NewKafkaMetricPublisher creates Kafka publisher.
func NewKafkaMetricPublisher(producer Publisher, topic string) repository.MetricSink {
	return &KafkaMetricPublisher{producer: producer, topic: topic}
}

func (p *KafkaMetricPublisher) Name() string { return "kafka" }

func (p *KafkaMetricPublisher) Write(ctx context.Context, points []models.MetricPoint) error {
	if len(points) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(points))
	for i, pt := range points {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(pt.ID),
			Value: pt,
			Headers: map[string]string{
				"sec_type": pt.SecType,
				"metric":   pt.Metric,
			},
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaMetricPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
