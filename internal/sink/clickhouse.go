package sink

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const defaultClickhouseBatch = 5000

// BatchInserter sends one prepared batch of rows.
type BatchInserter interface {
	BatchInsert(ctx context.Context, query string, rows [][]interface{}) error
}

// ClickHouseColumns is the column order used for inserts.
var ClickHouseColumns = []string{
	"ts", "format", "kind", "session_id", "username", "domain",
	"source_ip", "egress_ip", "destination_ip", "source_port", "destination_port",
	"host", "url", "method", "status", "bytes_in", "bytes_out", "response_ms",
	"user_agent", "referrer", "category", "risk_level", "action", "block_reason",
	"service_name", "service_status", "raw",
}

type ClickHouseSink struct {
	inserter  BatchInserter
	query     string
	batchSize int
	logger    *zap.Logger

	mu      sync.Mutex
	pending [][]interface{}
	closed  bool
}

func NewClickHouseSink(inserter BatchInserter, table string, batchSize int, logger *zap.Logger) *ClickHouseSink {
	if batchSize <= 0 {
		batchSize = defaultClickhouseBatch
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClickHouseSink{
		inserter:  inserter,
		query:     fmt.Sprintf("INSERT INTO %s (%s)", table, strings.Join(ClickHouseColumns, ", ")),
		batchSize: batchSize,
		logger:    logger,
	}
}

func (s *ClickHouseSink) Write(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.pending = append(s.pending, clickhouseRow(NewDocument(e)))
	if len(s.pending) >= s.batchSize {
		return s.flush(ctx)
	}
	return nil
}

func clickhouseRow(d Document) []interface{} {
	return []interface{}{
		d.Timestamp, d.Format, d.Kind, d.SessionID, d.Username, d.Domain,
		d.SourceIP, d.EgressIP, d.DestinationIP, uint16(d.SourcePort), uint16(d.DestinationPort),
		d.Host, d.URL, d.Method, uint16(d.Status), d.BytesIn, d.BytesOut, d.ResponseMillis,
		d.UserAgent, d.Referrer, d.Category, d.RiskLevel, d.Action, d.BlockReason,
		d.ServiceName, d.ServiceStatus, d.Raw,
	}
}

func (s *ClickHouseSink) flush(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	if err := s.inserter.BatchInsert(ctx, s.query, s.pending); err != nil {
		return wrap("clickhouse", err)
	}
	s.logger.Debug("Inserted clickhouse batch", zap.Int("rows", len(s.pending)))
	s.pending = nil
	return nil
}

func (s *ClickHouseSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.flush(context.Background())
}
