package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/go-playground/validator/v10"
	"github.com/nimeshabuddhika/churnshield/pkg"
	kafkautils "github.com/nimeshabuddhika/churnshield/pkg/kafka"
	"github.com/nimeshabuddhika/churnshield/pkg/views"
	"github.com/nimeshabuddhika/churnshield/services/retention-worker/configs"
	"github.com/nimeshabuddhika/churnshield/services/retention-worker/internal/observability"
	"go.uber.org/zap"
)

const (
	pollTimeout = 500 * time.Millisecond
	shardBuffer = 16
)

type messageReader interface {
	ReadMessage(timeout time.Duration) (*kafka.Message, error)
}

type messageProducer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
}

// KafkaPredictionConsumer reads prediction events and hands them to the intervention service.
// Events are sharded over MaxConcurrentJobs workers by key, so one customer's events are applied
// in partition order. Undecodable or failed events go to the DLQ.
type KafkaPredictionConsumer struct {
	logger   *zap.Logger
	cfg      *configs.Config
	service  InterventionService
	consumer *kafka.Consumer
	dlq      *kafka.Producer

	// seams over consumer and dlq
	commits  *kafkautils.CommitManager
	producer messageProducer
	validate *validator.Validate
}

type KafkaPredictionConsumerConfig struct {
	Logger  *zap.Logger
	Config  *configs.Config
	Service InterventionService
}

// NewKafkaPredictionConsumer creates the consumer group member and the DLQ producer.
func NewKafkaPredictionConsumer(c KafkaPredictionConsumerConfig) (*KafkaPredictionConsumer, error) {
	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  c.Config.KafkaBrokers,
		"group.id":           c.Config.KafkaConsumerGroup,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": false, // committed by the CommitManager
	})
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	dlq, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  c.Config.KafkaBrokers,
		"acks":               "all",
		"enable.idempotence": true,
	})
	if err != nil {
		_ = consumer.Close()
		return nil, fmt.Errorf("create dlq producer: %w", err)
	}
	go handleDLQDeliveries(c.Logger, dlq)

	k := newConsumer(c.Logger, c.Config, c.Service, consumer, dlq)
	k.consumer, k.dlq = consumer, dlq
	return k, nil
}

func newConsumer(logger *zap.Logger, cfg *configs.Config, svc InterventionService, committer kafkautils.OffsetCommitter, producer messageProducer) *KafkaPredictionConsumer {
	return &KafkaPredictionConsumer{
		logger:   logger,
		cfg:      cfg,
		service:  svc,
		commits:  kafkautils.NewCommitManager(committer, logger),
		producer: producer,
		validate: validator.New(),
	}
}

// Start subscribes and runs the poll loop until ctx is cancelled. The returned func waits
// for in-flight events, flushes the DLQ and leaves the group.
func (k *KafkaPredictionConsumer) Start(ctx context.Context) (func(), error) {
	if err := k.consumer.SubscribeTopics([]string{k.cfg.KafkaTopic}, nil); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", k.cfg.KafkaTopic, err)
	}
	k.logger.Info("listening_to_kafka_topic",
		zap.String("topic", k.cfg.KafkaTopic),
		zap.String("group", k.cfg.KafkaConsumerGroup),
		zap.Int("max_concurrent_jobs", k.cfg.MaxConcurrentJobs))

	wait := k.run(ctx, k.consumer)
	return func() {
		wait()
		k.dlq.Flush(5000)
		k.dlq.Close()
		if err := k.consumer.Close(); err != nil {
			k.logger.Error("kafka_consumer_close_failed", zap.Error(err))
			return
		}
		k.logger.Info("kafka_consumer_closed")
	}, nil
}

// run polls reader and dispatches each message to the worker owning its key. The returned
// func blocks until polling stopped and every worker drained its shard.
func (k *KafkaPredictionConsumer) run(ctx context.Context, reader messageReader) func() {
	shards := make([]chan *kafka.Message, k.cfg.MaxConcurrentJobs)
	var workers sync.WaitGroup
	for i := range shards {
		shards[i] = make(chan *kafka.Message, shardBuffer)
		workers.Add(1)
		go func(ch <-chan *kafka.Message) {
			defer workers.Done()
			k.work(ctx, ch)
		}(shards[i])
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			for _, ch := range shards {
				close(ch)
			}
		}()
		for ctx.Err() == nil {
			msg, err := reader.ReadMessage(pollTimeout)
			if err != nil {
				var kerr kafka.Error
				if errors.As(err, &kerr) && kerr.IsTimeout() {
					continue
				}
				k.logger.Error("kafka_read_failed", zap.Error(err))
				continue
			}
			observability.EventsReceived.WithLabelValues(k.cfg.KafkaTopic).Inc()
			k.commits.Track(msg)

			// blocks while the owning worker is backed up
			select {
			case shards[shardFor(msg.Key, len(shards))] <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() {
		<-done
		workers.Wait()
	}
}

// work handles one shard in order. Once ctx is cancelled the rest of the shard is left
// unacked, so its offsets are redelivered.
func (k *KafkaPredictionConsumer) work(ctx context.Context, ch <-chan *kafka.Message) {
	for msg := range ch {
		if ctx.Err() != nil {
			continue
		}
		observability.InflightJobs.Inc()
		if k.processMessage(ctx, msg) {
			k.commits.Ack(msg)
		}
		observability.InflightJobs.Dec()
	}
}

func shardFor(key []byte, shards int) int {
	return int(kafkautils.PartitionFor(string(key), int32(shards)))
}

// processMessage decodes, validates and handles one event and reports whether its offset may be
// committed. Poison and failed events are parked in the DLQ; events interrupted by shutdown are not.
func (k *KafkaPredictionConsumer) processMessage(ctx context.Context, msg *kafka.Message) bool {
	start := time.Now()
	defer func() { observability.ProcessLatency.Observe(time.Since(start).Seconds()) }()

	var event views.PredictionEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		k.fail(msg, "json_unmarshal_error", err)
		return true
	}
	if err := k.validate.Struct(&event); err != nil {
		k.fail(msg, "validation_error", err)
		return true
	}

	action, err := k.service.Handle(ctx, event)
	if err != nil {
		if ctx.Err() != nil {
			k.logger.Warn("event_interrupted_by_shutdown", zap.String("customer_id", event.CustomerID), zap.Error(err))
			return false
		}
		k.fail(msg, "handle_error", err)
		return true
	}
	observability.InterventionsChanged.WithLabelValues(string(action)).Inc()
	k.logger.Debug("prediction_event_handled",
		zap.String("customer_id", event.CustomerID),
		zap.String("action", string(action)),
		zap.String(pkg.TraceId, event.TraceID))
	return true
}

func (k *KafkaPredictionConsumer) fail(msg *kafka.Message, reason string, err error) {
	observability.EventsFailed.WithLabelValues(reason).Inc()
	k.logger.Error("prediction_event_failed", zap.String("reason", reason), zap.ByteString("key", msg.Key), zap.Error(err))
	k.sendToDLQ(msg, reason, err.Error())
}

// sendToDLQ wraps the original message with failure metadata.
func (k *KafkaPredictionConsumer) sendToDLQ(original *kafka.Message, reason, errMsg string) {
	payload := map[string]any{
		"original_topic":     topicOf(original),
		"original_partition": original.TopicPartition.Partition,
		"original_offset":    int64(original.TopicPartition.Offset),
		"key":                string(original.Key),
		"value":              string(original.Value),
		"failure_reason":     reason,
		"error":              errMsg,
		"failed_at":          time.Now().UTC().Format(time.RFC3339Nano),
	}
	b, err := json.Marshal(payload)
	if err != nil {
		k.logger.Error("dlq_payload_marshal_failed", zap.Error(err))
		return
	}
	headers := append([]kafka.Header{}, original.Headers...)
	headers = append(headers, kafka.Header{Key: "x-dlq-reason", Value: []byte(reason)})
	err = k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &k.cfg.KafkaDLQTopic, Partition: kafka.PartitionAny},
		Key:            original.Key,
		Value:          b,
		Headers:        headers,
	}, nil)
	if err != nil {
		k.logger.Error("dlq_produce_failed", zap.String("reason", reason), zap.Error(err))
		return
	}
	observability.DLQPublished.WithLabelValues(reason).Inc()
	k.logger.Info("sent_to_dlq", zap.ByteString("key", original.Key), zap.String("reason", reason))
}

func handleDLQDeliveries(logger *zap.Logger, p *kafka.Producer) {
	for e := range p.Events() {
		if m, ok := e.(*kafka.Message); ok && m.TopicPartition.Error != nil {
			logger.Error("dlq_delivery_failed", zap.Error(m.TopicPartition.Error))
		}
	}
}

func topicOf(msg *kafka.Message) string {
	if msg.TopicPartition.Topic == nil {
		return ""
	}
	return *msg.TopicPartition.Topic
}
