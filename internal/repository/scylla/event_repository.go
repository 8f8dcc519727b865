package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"shadow-it-generator/internal/util"
)

const maxBatchStatements = 100

// ProxyEvent is one row of proxy_events_by_day.
type ProxyEvent struct {
	Day           string
	UserBucket    int
	Timestamp     time.Time
	Username      string
	Seq           int
	Format        string
	Kind          string
	SessionID     int64
	SourceIP      string
	DestinationIP string
	Host          string
	URL           string
	Method        string
	Status        int
	BytesIn       int64
	BytesOut      int64
	Action        string
	Category      string
	RiskLevel     string
	ServiceName   string
	Raw           string
}

// PartitionKey groups rows that may share an unlogged batch.
func (e *ProxyEvent) PartitionKey() string {
	return fmt.Sprintf("%s/%d", e.Day, e.UserBucket)
}

type EventRepository struct {
	client *ScyllaClient
}

func NewEventRepository(client *ScyllaClient) *EventRepository {
	return &EventRepository{client: client}
}

// InsertBatch writes events in unlogged batches, one partition per batch.
func (r *EventRepository) InsertBatch(ctx context.Context, events []ProxyEvent) error {
	var (
		batch *gocql.Batch
		key   string
	)
	send := func() error {
		if batch == nil || batch.Size() == 0 {
			return nil
		}
		if err := r.client.ExecuteBatchWithRetry(ctx, batch, 2); err != nil {
			util.Error("Failed to insert proxy events",
				zap.String("partition", key),
				zap.Int("rows", batch.Size()),
				zap.Error(err))
			return fmt.Errorf("failed to insert proxy events: %w", err)
		}
		return nil
	}

	stmt := r.client.Prepared.InsertEvent.Statement()
	for i := range events {
		e := &events[i]
		if batch == nil || e.PartitionKey() != key || batch.Size() >= maxBatchStatements {
			if err := send(); err != nil {
				return err
			}
			batch = r.client.Batch(gocql.UnloggedBatch)
			key = e.PartitionKey()
		}
		batch.Query(stmt,
			e.Day, e.UserBucket, e.Timestamp, e.Username, e.Seq, e.Format, e.Kind, e.SessionID,
			e.SourceIP, e.DestinationIP, e.Host, e.URL, e.Method, e.Status, e.BytesIn, e.BytesOut,
			e.Action, e.Category, e.RiskLevel, e.ServiceName, e.Raw)
	}
	return send()
}

// EventsByBucket returns the raw lines of one partition in timestamp order.
func (r *EventRepository) EventsByBucket(ctx context.Context, day string, bucket int) ([]string, error) {
	iter := r.client.Session.Query(r.client.Prepared.EventsByBucket.Statement(), day, bucket).WithContext(ctx).Iter()

	var (
		lines    []string
		ts       time.Time
		username string
		raw      string
	)
	for iter.Scan(&ts, &username, &raw) {
		lines = append(lines, raw)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to read proxy events: %w", err)
	}
	return lines, nil
}
