package kafkautils

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

type KafkaConfig struct {
	BootstrapServers string
	Topics           []TopicConfig
	// MaxElapsedTime bounds topic creation retries; defaults to 2 minutes.
	MaxElapsedTime time.Duration
}

type TopicConfig struct {
	Topic             string
	NumPartitions     int
	ReplicationFactor int
	Config            map[string]string
}

// InitKafkaTopics creates the configured topics, retrying with exponential backoff
// until MaxElapsedTime. Topics that already exist are not an error.
func InitKafkaTopics(ctx context.Context, logger *zap.Logger, cnf KafkaConfig) error {
	admin, err := kafka.NewAdminClient(&kafka.ConfigMap{"bootstrap.servers": cnf.BootstrapServers})
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	specs := make([]kafka.TopicSpecification, 0, len(cnf.Topics))
	for _, topic := range cnf.Topics {
		specs = append(specs, kafka.TopicSpecification{
			Topic:             topic.Topic,
			NumPartitions:     topic.NumPartitions,
			ReplicationFactor: topic.ReplicationFactor,
			Config:            topic.Config,
		})
	}

	attempt := 0
	operation := func() error {
		attempt++
		results, err := admin.CreateTopics(ctx, specs, kafka.SetAdminOperationTimeout(30*time.Second))
		if err != nil {
			logger.Warn("kafka_topic_create_retry", zap.Int("attempt", attempt), zap.Error(err))
			return fmt.Errorf("failed to create topics: %w", err)
		}
		for _, result := range results {
			code := result.Error.Code()
			if code != kafka.ErrNoError && code != kafka.ErrTopicAlreadyExists {
				return fmt.Errorf("kafka topic %s creation failed: %v", result.Topic, result.Error)
			}
			logger.Info("kafka_topic_ready", zap.String("topic", result.Topic))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = cnf.MaxElapsedTime
	if b.MaxElapsedTime <= 0 {
		b.MaxElapsedTime = 2 * time.Minute
	}
	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}

// PartitionFor maps a message key to a partition deterministically.
func PartitionFor(key string, partitions int32) int32 {
	if partitions <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int32(h.Sum32() % uint32(partitions))
}
