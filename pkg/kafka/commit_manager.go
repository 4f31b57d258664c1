package kafkautils

import (
	"sync"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

// OffsetCommitter is satisfied by *kafka.Consumer.
type OffsetCommitter interface {
	CommitOffsets(offsets []kafka.TopicPartition) ([]kafka.TopicPartition, error)
}

type tp struct {
	topic     string
	partition int32
}

type partitionOffsets struct {
	pending []int64            // tracked offsets in delivery order, oldest first
	done    map[int64]struct{} // acked offsets still behind an unacked one
}

// CommitManager commits a partition only up to its oldest unacked offset, so messages
// finished out of order never move the group past one that is still in flight or was abandoned.
type CommitManager struct {
	mu        sync.Mutex
	parts     map[tp]*partitionOffsets
	committer OffsetCommitter
	log       *zap.Logger
}

func NewCommitManager(c OffsetCommitter, l *zap.Logger) *CommitManager {
	return &CommitManager{
		parts:     make(map[tp]*partitionOffsets),
		committer: c,
		log:       l,
	}
}

func keyOf(msg *kafka.Message) tp {
	k := tp{partition: msg.TopicPartition.Partition}
	if msg.TopicPartition.Topic != nil {
		k.topic = *msg.TopicPartition.Topic
	}
	return k
}

// Track registers a polled message. It must be called in poll order, before the message is handed off.
func (m *CommitManager) Track(msg *kafka.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := keyOf(msg)
	off := int64(msg.TopicPartition.Offset)
	p := m.parts[key]
	// an offset at or behind the newest tracked one means the partition was reassigned and rewound
	if p == nil || (len(p.pending) > 0 && off <= p.pending[len(p.pending)-1]) {
		p = &partitionOffsets{done: map[int64]struct{}{}}
		m.parts[key] = p
	}
	p.pending = append(p.pending, off)
}

// Ack marks msg processed and commits the contiguous processed prefix of its partition.
func (m *CommitManager) Ack(msg *kafka.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := keyOf(msg)
	off := int64(msg.TopicPartition.Offset)
	p := m.parts[key]
	if p == nil {
		m.log.Warn("ack_for_untracked_offset", zap.String("topic", key.topic), zap.Int32("partition", key.partition), zap.Int64("offset", off))
		return
	}
	p.done[off] = struct{}{}

	last := int64(-1)
	for len(p.pending) > 0 {
		head := p.pending[0]
		if _, ok := p.done[head]; !ok {
			break
		}
		delete(p.done, head)
		p.pending = p.pending[1:]
		last = head
	}
	if last < 0 {
		return
	}

	topic := key.topic
	next := kafka.TopicPartition{Topic: &topic, Partition: key.partition, Offset: kafka.Offset(last + 1)}
	if _, err := m.committer.CommitOffsets([]kafka.TopicPartition{next}); err != nil {
		// a later Ack commits past this point
		m.log.Error("offset_commit_failed",
			zap.String("topic", key.topic),
			zap.Int32("partition", key.partition),
			zap.Int64("attempted_offset", last), zap.Error(err))
		return
	}
	m.log.Debug("offset_committed",
		zap.String("topic", key.topic),
		zap.Int32("partition", key.partition),
		zap.Int64("offset", last))
}
