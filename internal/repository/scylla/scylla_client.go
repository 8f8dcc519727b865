package scylla

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"shadow-it-generator/internal/config"
	"shadow-it-generator/internal/util"
)

const createEventsTable = `
    CREATE TABLE IF NOT EXISTS proxy_events_by_day (
        day text, user_bucket int, ts timestamp, username text, seq int,
        format text, kind text, session_id bigint, source_ip text, destination_ip text,
        host text, url text, method text, status int, bytes_in bigint, bytes_out bigint,
        action text, category text, risk_level text, service_name text, raw text,
        PRIMARY KEY ((day, user_bucket), ts, username, seq)
    ) WITH CLUSTERING ORDER BY (ts ASC, username ASC, seq ASC)`

// PreparedStatements holds the statements the event repository uses.
type PreparedStatements struct {
	InsertEvent    *gocql.Query
	EventsByBucket *gocql.Query
}

type ScyllaClient struct {
	Session      *gocql.Session
	config       *config.ScyllaConfig
	Prepared     *PreparedStatements
	prepareMutex sync.RWMutex
	isPrepared   bool
}

func NewScyllaClient(cfg *config.Config, logger *zap.Logger) (*ScyllaClient, error) {
	scyllaConfig := cfg.Scylla

	cluster := gocql.NewCluster(scyllaConfig.Nodes...)
	cluster.Keyspace = scyllaConfig.Keyspace
	cluster.Consistency = gocql.LocalQuorum
	cluster.Timeout = 10 * time.Second
	cluster.ConnectTimeout = 10 * time.Second
	cluster.NumConns = 4
	cluster.SocketKeepalive = 30 * time.Second
	cluster.MaxPreparedStmts = 1000
	cluster.PageSize = 1000
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		Min:        time.Second,
		Max:        10 * time.Second,
		NumRetries: 3,
	}

	if cfg.IsProduction() {
		cluster.SslOpts = &gocql.SslOptions{
			CaPath:                 util.GetEnv("SCYLLA_CA_FILE", "/app/certs/ca.pem"),
			CertPath:               util.GetEnv("SCYLLA_CERT_FILE", "/app/certs/client.pem"),
			KeyPath:                util.GetEnv("SCYLLA_KEY_FILE", "/app/certs/client.key"),
			EnableHostVerification: true,
		}
	}

	if scyllaConfig.Username != "" && scyllaConfig.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: scyllaConfig.Username,
			Password: scyllaConfig.Password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create scylla session: %w", err)
	}

	client := &ScyllaClient{
		Session: session,
		config:  &scyllaConfig,
	}

	if err := client.EnsureSchema(context.Background()); err != nil {
		session.Close()
		return nil, err
	}
	if err := client.prepareStatements(); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	util.Info("ScyllaDB client initialized with prepared statements",
		zap.Strings("nodes", scyllaConfig.Nodes),
		zap.String("keyspace", scyllaConfig.Keyspace))

	return client, nil
}

// EnsureSchema creates the events table when it does not exist.
func (s *ScyllaClient) EnsureSchema(ctx context.Context) error {
	if err := s.Session.Query(createEventsTable).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("failed to create proxy_events_by_day: %w", err)
	}
	return nil
}

func (s *ScyllaClient) prepareStatements() error {
	s.prepareMutex.Lock()
	defer s.prepareMutex.Unlock()

	if s.isPrepared {
		return nil
	}

	prepared := &PreparedStatements{}

	prepared.InsertEvent = s.Session.Query(`
        INSERT INTO proxy_events_by_day (
            day, user_bucket, ts, username, seq, format, kind, session_id,
            source_ip, destination_ip, host, url, method, status, bytes_in, bytes_out,
            action, category, risk_level, service_name, raw
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	prepared.EventsByBucket = s.Session.Query(`
        SELECT ts, username, raw FROM proxy_events_by_day
        WHERE day = ? AND user_bucket = ?`)

	s.Prepared = prepared
	s.isPrepared = true

	util.Info("ScyllaDB prepared statements created successfully")
	return nil
}

func (s *ScyllaClient) Close() {
	if s.Session != nil {
		s.Session.Close()
		util.Info("ScyllaDB client closed")
	}
}

func (s *ScyllaClient) Batch(typ gocql.BatchType) *gocql.Batch {
	return s.Session.NewBatch(typ)
}

func (s *ScyllaClient) ExecuteBatch(batch *gocql.Batch) error {
	return s.Session.ExecuteBatch(batch)
}

func (s *ScyllaClient) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var clusterName string
	err := s.Session.Query(`SELECT cluster_name FROM system.local`).WithContext(ctx).Scan(&clusterName)
	if err != nil {
		return fmt.Errorf("scylla health check failed: %w", err)
	}

	util.Debug("ScyllaDB health check passed", zap.String("cluster_name", clusterName))
	return nil
}

// ExecuteBatchWithRetry retries a batch with linear backoff.
func (s *ScyllaClient) ExecuteBatchWithRetry(ctx context.Context, batch *gocql.Batch, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		err := s.Session.ExecuteBatch(batch.WithContext(ctx))
		if err == nil {
			return nil
		}
		lastErr = err
		if i < maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(i+1) * 100 * time.Millisecond):
			}
		}
	}
	return lastErr
}
