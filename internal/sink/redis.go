package sink

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisPipelineSize = 256

// RedisStreamSink appends lines to a capped stream per format.
type RedisStreamSink struct {
	client redis.Cmdable
	prefix string
	maxLen int64
	logger *zap.Logger

	mu      sync.Mutex
	pending []*redis.XAddArgs
	closed  bool
}

func NewRedisStreamSink(client redis.Cmdable, streamPrefix string, maxLen int64, logger *zap.Logger) *RedisStreamSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStreamSink{
		client: client,
		prefix: streamPrefix,
		maxLen: maxLen,
		logger: logger,
	}
}

// StreamName is the stream key for a format.
func (s *RedisStreamSink) StreamName(format string) string {
	return s.prefix + ":" + format
}

func (s *RedisStreamSink) Write(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.pending = append(s.pending, &redis.XAddArgs{
		Stream: s.StreamName(e.Format),
		MaxLen: s.maxLen,
		Approx: s.maxLen > 0,
		Values: []interface{}{
			"line", trimNewline(e.Line),
			"ts", e.Timestamp.UnixMilli(),
		},
	})
	if len(s.pending) >= redisPipelineSize {
		return s.flush(ctx)
	}
	return nil
}

func (s *RedisStreamSink) flush(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for _, args := range s.pending {
		pipe.XAdd(ctx, args)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return wrap("redis", err)
	}
	s.logger.Debug("Flushed redis stream batch", zap.Int("entries", len(s.pending)))
	s.pending = s.pending[:0]
	return nil
}

func (s *RedisStreamSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.flush(context.Background())
}
