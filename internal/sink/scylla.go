package sink

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"shadow-it-generator/internal/bucketing"
	"shadow-it-generator/internal/repository/scylla"
)

const scyllaFlushSize = 500

// EventInserter stores proxy event rows.
type EventInserter interface {
	InsertBatch(ctx context.Context, events []scylla.ProxyEvent) error
}

// ScyllaSink stores structured rows partitioned by (day, user bucket).
type ScyllaSink struct {
	repo    EventInserter
	buckets *bucketing.Manager
	logger  *zap.Logger

	mu      sync.Mutex
	seq     int
	pending []scylla.ProxyEvent
	closed  bool
}

func NewScyllaSink(repo EventInserter, buckets *bucketing.Manager, logger *zap.Logger) *ScyllaSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScyllaSink{repo: repo, buckets: buckets, logger: logger}
}

func (s *ScyllaSink) Write(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	d := NewDocument(e)
	a := s.buckets.Assign(d.Username, d.Timestamp)
	s.seq++
	s.pending = append(s.pending, scylla.ProxyEvent{
		Day:           a.DateBucket,
		UserBucket:    a.UserBucket,
		Timestamp:     d.Timestamp,
		Username:      d.Username,
		Seq:           s.seq,
		Format:        d.Format,
		Kind:          d.Kind,
		SessionID:     int64(d.SessionID),
		SourceIP:      d.SourceIP,
		DestinationIP: d.DestinationIP,
		Host:          d.Host,
		URL:           d.URL,
		Method:        d.Method,
		Status:        d.Status,
		BytesIn:       d.BytesIn,
		BytesOut:      d.BytesOut,
		Action:        d.Action,
		Category:      d.Category,
		RiskLevel:     d.RiskLevel,
		ServiceName:   d.ServiceName,
		Raw:           d.Raw,
	})
	if len(s.pending) >= scyllaFlushSize {
		return s.flush(ctx)
	}
	return nil
}

func (s *ScyllaSink) flush(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	if err := s.repo.InsertBatch(ctx, s.pending); err != nil {
		return wrap("scylla", err)
	}
	s.logger.Debug("Inserted scylla rows", zap.Int("rows", len(s.pending)))
	s.pending = s.pending[:0]
	return nil
}

func (s *ScyllaSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.flush(context.Background())
}
