package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/elastic/go-elasticsearch/v8/esutil"
	"go.uber.org/zap"
)

// ElasticsearchSink bulk-indexes structured documents into one index per
// format and day.
type ElasticsearchSink struct {
	indexer esutil.BulkIndexer
	prefix  string
	logger  *zap.Logger

	mu     sync.Mutex
	closed bool
}

func NewElasticsearchSink(indexer esutil.BulkIndexer, indexPrefix string, logger *zap.Logger) *ElasticsearchSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ElasticsearchSink{indexer: indexer, prefix: indexPrefix, logger: logger}
}

// IndexName is <prefix>-<format>-YYYY.MM.DD, dated by the event's own timestamp.
func (s *ElasticsearchSink) IndexName(e Entry) string {
	return fmt.Sprintf("%s-%s-%s", s.prefix, e.Format, e.Timestamp.Format("2006.01.02"))
}

func (s *ElasticsearchSink) Write(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	body, err := json.Marshal(NewDocument(e))
	if err != nil {
		return wrap("elasticsearch", err)
	}

	err = s.indexer.Add(ctx, esutil.BulkIndexerItem{
		Index:  s.IndexName(e),
		Action: "index",
		Body:   bytes.NewReader(body),
		OnFailure: func(_ context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
			if err != nil {
				s.logger.Error("Bulk index failed", zap.String("index", item.Index), zap.Error(err))
				return
			}
			s.logger.Error("Bulk index rejected document",
				zap.String("index", item.Index),
				zap.String("type", res.Error.Type),
				zap.String("reason", res.Error.Reason))
		},
	})
	return wrap("elasticsearch", err)
}

// Close flushes the indexer and fails if any document was rejected.
func (s *ElasticsearchSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.indexer.Close(context.Background()); err != nil {
		return wrap("elasticsearch", err)
	}
	stats := s.indexer.Stats()
	s.logger.Info("Elasticsearch indexing finished",
		zap.Uint64("indexed", stats.NumIndexed),
		zap.Uint64("failed", stats.NumFailed))
	if stats.NumFailed > 0 {
		return fmt.Errorf("elasticsearch sink: %d documents failed", stats.NumFailed)
	}
	return nil
}
