package sink

import (
	"context"
	"sync"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const defaultKafkaBatch = 500

// MessageWriter is the part of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaSink publishes each line to <prefix><format>, keyed by username so
// a user's events stay on one partition.
type KafkaSink struct {
	writer    MessageWriter
	prefix    string
	batchSize int
	logger    *zap.Logger

	mu      sync.Mutex
	pending []kafka.Message
	closed  bool
}

func NewKafkaSink(w MessageWriter, topicPrefix string, batchSize int, logger *zap.Logger) *KafkaSink {
	if batchSize <= 0 {
		batchSize = defaultKafkaBatch
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaSink{
		writer:    w,
		prefix:    topicPrefix,
		batchSize: batchSize,
		logger:    logger,
		pending:   make([]kafka.Message, 0, batchSize),
	}
}

func (s *KafkaSink) Write(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.pending = append(s.pending, kafka.Message{
		Topic: s.prefix + e.Format,
		Key:   []byte(recordOf(e).Username),
		Value: append([]byte(nil), e.Line...),
		Time:  e.Timestamp,
	})
	if len(s.pending) >= s.batchSize {
		return s.flush(ctx)
	}
	return nil
}

func (s *KafkaSink) flush(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	if err := s.writer.WriteMessages(ctx, s.pending...); err != nil {
		return wrap("kafka", err)
	}
	s.logger.Debug("Flushed kafka batch", zap.Int("message_count", len(s.pending)))
	s.pending = s.pending[:0]
	return nil
}

// Close flushes pending messages. The writer belongs to the caller.
func (s *KafkaSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.flush(context.Background())
}
