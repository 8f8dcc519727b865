package factory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"shadow-it-generator/internal/bucketing"
	"shadow-it-generator/internal/catalog"
	"shadow-it-generator/internal/client"
	"shadow-it-generator/internal/config"
	"shadow-it-generator/internal/encoder"
	"shadow-it-generator/internal/engine"
	"shadow-it-generator/internal/metrics"
	"shadow-it-generator/internal/model"
	"shadow-it-generator/internal/repository/scylla"
	"shadow-it-generator/internal/sink"
	"shadow-it-generator/internal/util"
)

// Inputs is everything a run reads from disk.
type Inputs struct {
	Enterprise *config.Enterprise
	Services   *catalog.Services
	Junk       *model.JunkCatalog
}

// LoadInputs loads and cross-checks the enterprise file and both catalogs.
func LoadInputs(gen config.GeneratorConfig) (*Inputs, error) {
	ent, err := config.LoadEnterprise(gen.EnterpriseFile)
	if err != nil {
		return nil, err
	}
	services, err := catalog.LoadServices(gen.ServicesPath)
	if err != nil {
		return nil, err
	}
	junk, err := catalog.LoadJunkCatalog(gen.JunkCatalogFile)
	if err != nil {
		return nil, err
	}
	if err := catalog.CheckJunkCategories(ent.Junk, junk); err != nil {
		return nil, err
	}
	return &Inputs{Enterprise: ent, Services: services, Junk: junk}, nil
}

// ResolveWindow picks the simulated [start, end). Explicit dates win over the
// enterprise file; with neither, the last gen.Days days before today are used.
func ResolveWindow(gen config.GeneratorConfig, ent *config.Enterprise, now time.Time) (time.Time, time.Time, error) {
	loc := ent.Location()
	days := gen.Days
	if days < 1 {
		days = 1
	}

	entStart, entEnd, fromFile := ent.SimulationWindow()

	var start, end time.Time
	switch {
	case gen.StartDate != "":
		s, err := config.ParseDate(gen.StartDate, loc)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = s
		end = start.AddDate(0, 0, days)
	case fromFile:
		start, end = entStart, entEnd
	default:
		today := now.In(loc)
		end = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)
		start = end.AddDate(0, 0, -days)
	}

	if gen.EndDate != "" {
		e, err := config.ParseDate(gen.EndDate, loc)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = e.AddDate(0, 0, 1)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end date is before start date", config.ErrInvalidConfig)
	}
	return start, end, nil
}

// Factory owns the engine, its sinks and every external client for one run.
type Factory struct {
	config   *config.Config
	inputs   *Inputs
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	encoders []encoder.Encoder

	fileSink *sink.FileSink
	fanout   *sink.Fanout
	engine   *engine.Engine

	kafkaProducer    *client.KafkaProducer
	esClient         *client.ESClient
	clickhouseClient *client.ClickHouseClient
	redisClient      *client.RedisClient
	scyllaClient     *scylla.ScyllaClient
	s3Client         *client.S3Client

	closeOnce sync.Once
	closeErr  error
}

// New builds a ready-to-run generator from the runtime configuration.
func New(cfg *config.Config) (*Factory, error) {
	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	inputs, err := LoadInputs(cfg.Generator)
	if err != nil {
		return nil, err
	}

	encoders, err := encoder.NewAll(cfg.Output.Formats)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	f := &Factory{
		config:   cfg,
		inputs:   inputs,
		registry: registry,
		metrics:  metrics.New(registry),
		encoders: encoders,
		fanout:   sink.NewFanout(),
	}

	if err := f.initializeClients(); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}
	if err := f.initializeSinks(); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to initialize sinks: %w", err)
	}

	start, end, err := ResolveWindow(cfg.Generator, inputs.Enterprise, time.Now())
	if err != nil {
		f.Close()
		return nil, err
	}

	f.engine, err = engine.New(engine.Config{
		Enterprise: inputs.Enterprise,
		Services:   inputs.Services.All(),
		Junk:       inputs.Junk,
		Encoders:   encoders,
		Sink:       f.fanout,
		Metrics:    f.metrics,
		Logger:     util.Get(),
		Options: engine.Options{
			Seed:    cfg.Generator.Seed,
			Start:   start,
			End:     end,
			Workers: cfg.Generator.Workers,
		},
	})
	if err != nil {
		f.Close()
		return nil, err
	}

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.String("enterprise", inputs.Enterprise.Enterprise.Name),
		util.Strings("formats", cfg.Output.Formats),
		util.Int("sinks", f.fanout.Len()),
		util.Time("start", start),
		util.Time("end", end))
	return f, nil
}

// initializeClients connects every enabled external system. Failures are
// fatal in production and warnings otherwise.
func (f *Factory) initializeClients() error {
	cfg := f.config
	logger := util.Get()
	var initErrors []error

	if cfg.Kafka.Enabled {
		if producer, err := client.NewKafkaProducer(cfg, logger); err != nil {
			initErrors = append(initErrors, fmt.Errorf("kafka: %w", err))
		} else {
			f.kafkaProducer = producer
		}
	}

	if cfg.Elasticsearch.Enabled {
		if c, err := client.NewElasticsearchClient(cfg, logger); err != nil {
			initErrors = append(initErrors, fmt.Errorf("elasticsearch: %w", err))
		} else {
			f.esClient = c
		}
	}

	if cfg.Clickhouse.Enabled {
		if c, err := client.NewClickHouseClient(cfg, logger); err != nil {
			initErrors = append(initErrors, fmt.Errorf("clickhouse: %w", err))
		} else {
			f.clickhouseClient = c
		}
	}

	if cfg.Redis.Enabled {
		if c, err := client.NewRedisClient(cfg, logger); err != nil {
			initErrors = append(initErrors, fmt.Errorf("redis: %w", err))
		} else {
			f.redisClient = c
		}
	}

	if cfg.Scylla.Enabled {
		if c, err := scylla.NewScyllaClient(cfg, logger); err != nil {
			initErrors = append(initErrors, fmt.Errorf("scylla: %w", err))
		} else {
			f.scyllaClient = c
		}
	}

	if cfg.S3.Enabled {
		if c, err := client.NewS3Client(cfg, logger); err != nil {
			initErrors = append(initErrors, fmt.Errorf("s3: %w", err))
		} else {
			f.s3Client = c
		}
	}

	if len(initErrors) > 0 {
		if cfg.IsProduction() {
			return fmt.Errorf("critical service initialization failed: %w", errors.Join(initErrors...))
		}
		for _, err := range initErrors {
			util.Warn("Service initialization warning - continuing without it", util.ErrorField(err))
		}
	}
	return nil
}

func (f *Factory) initializeSinks() error {
	cfg := f.config
	logger := util.Get()

	var archiver sink.Archiver
	if f.s3Client != nil {
		archiver = sink.NewS3Archiver(f.s3Client, cfg.S3.Bucket, cfg.S3.Prefix, logger)
	}

	fs, err := sink.NewFileSink(sink.FileOptions{
		Directory: cfg.Output.Directory,
		Hourly:    cfg.Output.Rotation == "hourly",
		Compress:  cfg.Output.Compress,
		Archiver:  archiver,
	}, logger)
	if err != nil {
		return err
	}
	f.fileSink = fs
	f.fanout.Add(fs)

	if f.kafkaProducer != nil {
		f.fanout.Add(sink.NewKafkaSink(f.kafkaProducer, cfg.Kafka.TopicPrefix, cfg.Kafka.BatchSize, logger))
	}
	if f.redisClient != nil {
		f.fanout.Add(sink.NewRedisStreamSink(f.redisClient.Client, cfg.Redis.StreamPrefix, cfg.Redis.MaxLen, logger))
	}
	if f.esClient != nil {
		indexer, err := f.esClient.NewBulkIndexer()
		if err != nil {
			return fmt.Errorf("elasticsearch bulk indexer: %w", err)
		}
		f.fanout.Add(sink.Filter{
			Format: cfg.Elasticsearch.Format,
			Next:   sink.NewElasticsearchSink(indexer, cfg.Elasticsearch.IndexPrefix, logger),
		})
	}
	if f.clickhouseClient != nil {
		f.fanout.Add(sink.Filter{
			Format: cfg.Clickhouse.Format,
			Next:   sink.NewClickHouseSink(f.clickhouseClient, cfg.Clickhouse.Table, cfg.Clickhouse.BatchSize, logger),
		})
	}
	if f.scyllaClient != nil {
		f.fanout.Add(sink.Filter{
			Format: cfg.Scylla.Format,
			Next:   sink.NewScyllaSink(scylla.NewEventRepository(f.scyllaClient), bucketing.NewManager(cfg.Scylla.UserBuckets), logger),
		})
	}

	return nil
}

// HealthCheck reports every enabled client that is not responding.
func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	healthErrors := make(map[string]error)

	if f.kafkaProducer != nil {
		if err := f.kafkaProducer.HealthCheck(ctx); err != nil {
			healthErrors["kafka"] = err
		}
	}
	if f.esClient != nil {
		if err := f.esClient.HealthCheck(ctx); err != nil {
			healthErrors["elasticsearch"] = err
		}
	}
	if f.clickhouseClient != nil {
		if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
			healthErrors["clickhouse"] = err
		}
	}
	if f.redisClient != nil {
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			healthErrors["redis"] = err
		}
	}
	if f.scyllaClient != nil {
		if err := f.scyllaClient.HealthCheck(ctx); err != nil {
			healthErrors["scylla"] = err
		}
	}
	if f.s3Client != nil {
		if err := f.s3Client.HealthCheck(ctx); err != nil {
			healthErrors["s3"] = err
		}
	}
	return healthErrors
}

// Close flushes the sinks first and closes the clients behind them. It is safe to call more than once.
func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		util.Info("Shutting down factory...")

		if f.fanout != nil {
			if err := f.fanout.Close(); err != nil {
				util.Error("Failed to close sinks", util.ErrorField(err))
				f.closeErr = err
			}
		}

		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			}
		}
		if f.esClient != nil {
			f.esClient.Close()
		}
		if f.clickhouseClient != nil {
			if err := f.clickhouseClient.Close(); err != nil {
				util.Error("Failed to close ClickHouse client", util.ErrorField(err))
			}
		}
		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			}
		}
		if f.scyllaClient != nil {
			f.scyllaClient.Close()
		}

		util.Sync()
	})
	return f.closeErr
}

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) Inputs() *Inputs {
	return f.inputs
}

func (f *Factory) Engine() *engine.Engine {
	return f.engine
}

// Registry is the Prometheus registry the status server exposes.
func (f *Factory) Registry() *prometheus.Registry {
	return f.registry
}

// FinishedFiles lists the log files closed so far.
func (f *Factory) FinishedFiles() []string {
	if f.fileSink == nil {
		return nil
	}
	return f.fileSink.Finished()
}
