package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/nimeshabuddhika/churnshield/pkg"
	kafkautils "github.com/nimeshabuddhika/churnshield/pkg/kafka"
	"github.com/nimeshabuddhika/churnshield/pkg/views"
	"github.com/nimeshabuddhika/churnshield/services/churn-api/configs"
	"github.com/nimeshabuddhika/churnshield/services/churn-api/internal/observability"
	"go.uber.org/zap"
)

// EventPublisher announces scored customers to downstream retention workflows.
type EventPublisher interface {
	PublishPrediction(ctx context.Context, event views.PredictionEvent) error
	Close()
}

// NoopPublisher is used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishPrediction(context.Context, views.PredictionEvent) error { return nil }
func (NoopPublisher) Close()                                                         {}

type KafkaPredictionPublisher struct {
	logger     *zap.Logger
	producer   *kafka.Producer
	topic      string
	partitions int32
}

// NewKafkaPredictionPublisher ensures the topic exists and opens an idempotent producer.
func NewKafkaPredictionPublisher(ctx context.Context, logger *zap.Logger, cnf *configs.Config) (*KafkaPredictionPublisher, error) {
	err := kafkautils.InitKafkaTopics(ctx, logger, kafkautils.KafkaConfig{
		BootstrapServers: cnf.KafkaBrokers,
		Topics: []kafkautils.TopicConfig{{
			Topic:             cnf.KafkaTopic,
			NumPartitions:     int(cnf.KafkaPartition),
			ReplicationFactor: 1,
			Config: map[string]string{
				"cleanup.policy": "delete",
				"retention.ms":   fmt.Sprintf("%d", (7 * 24 * time.Hour).Milliseconds()),
			},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("init kafka topics: %w", err)
	}

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  cnf.KafkaBrokers,
		"acks":               "all",
		"enable.idempotence": "true",
		"linger.ms":          "5",
	})
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	logger.Info("kafka_producer_created", zap.String("brokers", cnf.KafkaBrokers), zap.String("topic", cnf.KafkaTopic))
	go handleDeliveryReports(logger, p)
	return &KafkaPredictionPublisher{logger: logger, producer: p, topic: cnf.KafkaTopic, partitions: cnf.KafkaPartition}, nil
}

// PublishPrediction produces asynchronously, keyed by customer id so one customer's events stay ordered.
func (k *KafkaPredictionPublisher) PublishPrediction(_ context.Context, event views.PredictionEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return err
	}
	err = k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &k.topic,
			Partition: kafkautils.PartitionFor(event.CustomerID, k.partitions),
		},
		Key:   []byte(event.CustomerID),
		Value: b,
		Headers: []kafka.Header{
			{Key: pkg.HeaderTraceId, Value: []byte(event.TraceID)},
		},
	}, nil)
	if err != nil {
		observability.EventsPublished.WithLabelValues("failed").Inc()
		return err
	}
	return nil
}

func (k *KafkaPredictionPublisher) Close() {
	if remaining := k.producer.Flush(5000); remaining > 0 {
		k.logger.Warn("kafka_unflushed_messages", zap.Int("remaining", remaining))
	}
	k.producer.Close()
}

func handleDeliveryReports(logger *zap.Logger, p *kafka.Producer) {
	for e := range p.Events() {
		if ev, ok := e.(*kafka.Message); ok {
			if ev.TopicPartition.Error != nil {
				observability.EventsPublished.WithLabelValues("failed").Inc()
				logger.Error("kafka_delivery_failed", zap.Error(ev.TopicPartition.Error))
				continue
			}
			observability.EventsPublished.WithLabelValues("delivered").Inc()
		}
	}
}
