package config

import (
	"time"

	"github.com/joho/godotenv"

	"shadow-it-generator/internal/util"
)

// Config is the runtime configuration: where inputs live, where output goes,
// and which sinks are switched on. The simulated enterprise is described separately.
type Config struct {
	Environment   string
	Logging       LoggingConfig
	Generator     GeneratorConfig
	Output        OutputConfig
	Status        StatusConfig
	Kafka         KafkaConfig
	Elasticsearch ElasticsearchConfig
	Clickhouse    ClickhouseConfig
	Redis         RedisConfig
	Scylla        ScyllaConfig
	S3            S3Config
}

type LoggingConfig struct {
	Level  string
	Format string
}

type GeneratorConfig struct {
	EnterpriseFile  string
	ServicesPath    string
	JunkCatalogFile string
	Seed            uint64
	StartDate       string
	EndDate         string
	Days            int
	Workers         int
}

type OutputConfig struct {
	Directory string
	Formats   []string
	Rotation  string
	Compress  bool
}

type StatusConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Enabled     bool
	Brokers     []string
	TopicPrefix string
	BatchSize   int
}

type ElasticsearchConfig struct {
	Enabled     bool
	URL         string
	Username    string
	Password    string
	IndexPrefix string
	Format      string
}

type ClickhouseConfig struct {
	Enabled   bool
	URL       string
	Username  string
	Password  string
	Database  string
	Table     string
	BatchSize int
	Format    string
}

type RedisConfig struct {
	Enabled      bool
	URL          string
	Password     string
	DB           int
	PoolSize     int
	StreamPrefix string
	MaxLen       int64
}

type ScyllaConfig struct {
	Enabled     bool
	Nodes       []string
	Keyspace    string
	Username    string
	Password    string
	UserBuckets int
	Format      string
}

type S3Config struct {
	Enabled bool
	Bucket  string
	Prefix  string
	Region  string
}

var (
	validFormats   = map[string]bool{"leef": true, "cef": true}
	validRotations = map[string]bool{"daily": true, "hourly": true}
)

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Environment: util.GetEnv("ENVIRONMENT", "development"),
		Logging: LoggingConfig{
			Level:  util.GetEnv("LOG_LEVEL", "info"),
			Format: util.GetEnv("LOG_FORMAT", "console"),
		},
		Generator: GeneratorConfig{
			EnterpriseFile:  util.GetEnv("ENTERPRISE_CONFIG", "configs/enterprise.yaml"),
			ServicesPath:    util.GetEnv("SERVICES_PATH", ""),
			JunkCatalogFile: util.GetEnv("JUNK_CATALOG", ""),
			Seed:            util.GetEnvUint64("SEED", 42),
			StartDate:       util.GetEnv("START_DATE", ""),
			EndDate:         util.GetEnv("END_DATE", ""),
			Days:            util.GetEnvInt("DAYS", 1),
			Workers:         util.GetEnvInt("WORKERS", 4),
		},
		Output: OutputConfig{
			Directory: util.GetEnv("OUTPUT_DIR", "output"),
			Formats:   util.GetEnvSlice("OUTPUT_FORMATS", []string{"leef", "cef"}),
			Rotation:  util.GetEnv("OUTPUT_ROTATION", "daily"),
			Compress:  util.GetEnvBool("OUTPUT_COMPRESS", false),
		},
		Status: StatusConfig{
			Addr:         util.GetEnv("STATUS_ADDR", ""),
			ReadTimeout:  util.GetEnvDuration("STATUS_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: util.GetEnvDuration("STATUS_WRITE_TIMEOUT", 10*time.Second),
		},
		Kafka: KafkaConfig{
			Enabled:     util.GetEnvBool("KAFKA_ENABLED", false),
			Brokers:     util.GetEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			TopicPrefix: util.GetEnv("KAFKA_TOPIC_PREFIX", "proxy-logs."),
			BatchSize:   util.GetEnvInt("KAFKA_BATCH_SIZE", 500),
		},
		Elasticsearch: ElasticsearchConfig{
			Enabled:     util.GetEnvBool("ELASTICSEARCH_ENABLED", false),
			URL:         util.GetEnv("ELASTICSEARCH_URL", "http://localhost:9200"),
			Username:    util.GetEnv("ELASTICSEARCH_USERNAME", ""),
			Password:    util.GetEnv("ELASTICSEARCH_PASSWORD", ""),
			IndexPrefix: util.GetEnv("ELASTICSEARCH_INDEX_PREFIX", "proxy"),
			Format:      util.GetEnv("ELASTICSEARCH_FORMAT", "leef"),
		},
		Clickhouse: ClickhouseConfig{
			Enabled:   util.GetEnvBool("CLICKHOUSE_ENABLED", false),
			URL:       util.GetEnv("CLICKHOUSE_URL", "localhost:9000"),
			Username:  util.GetEnv("CLICKHOUSE_USERNAME", "default"),
			Password:  util.GetEnv("CLICKHOUSE_PASSWORD", ""),
			Database:  util.GetEnv("CLICKHOUSE_DATABASE", "default"),
			Table:     util.GetEnv("CLICKHOUSE_TABLE", "proxy_events"),
			BatchSize: util.GetEnvInt("CLICKHOUSE_BATCH_SIZE", 5000),
			Format:    util.GetEnv("CLICKHOUSE_FORMAT", "leef"),
		},
		Redis: RedisConfig{
			Enabled:      util.GetEnvBool("REDIS_ENABLED", false),
			URL:          util.GetEnv("REDIS_URL", "redis://localhost:6379/0"),
			Password:     util.GetEnv("REDIS_PASSWORD", ""),
			DB:           util.GetEnvInt("REDIS_DB", 0),
			PoolSize:     util.GetEnvInt("REDIS_POOL_SIZE", 10),
			StreamPrefix: util.GetEnv("REDIS_STREAM_PREFIX", "proxy-logs"),
			MaxLen:       int64(util.GetEnvInt("REDIS_STREAM_MAXLEN", 100000)),
		},
		Scylla: ScyllaConfig{
			Enabled:     util.GetEnvBool("SCYLLA_ENABLED", false),
			Nodes:       util.GetEnvSlice("SCYLLA_NODES", []string{"localhost:9042"}),
			Keyspace:    util.GetEnv("SCYLLA_KEYSPACE", "proxy_logs"),
			Username:    util.GetEnv("SCYLLA_USERNAME", ""),
			Password:    util.GetEnv("SCYLLA_PASSWORD", ""),
			UserBuckets: util.GetEnvInt("SCYLLA_USER_BUCKETS", 16),
			Format:      util.GetEnv("SCYLLA_FORMAT", "leef"),
		},
		S3: S3Config{
			Enabled: util.GetEnvBool("S3_ARCHIVE_ENABLED", false),
			Bucket:  util.GetEnv("S3_ARCHIVE_BUCKET", ""),
			Prefix:  util.GetEnv("S3_ARCHIVE_PREFIX", "proxy-logs"),
			Region:  util.GetEnv("AWS_REGION", "us-east-1"),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Validate checks the runtime settings that would otherwise fail mid-run.
func (c *Config) Validate() error {
	verr := &ValidationError{Source: "runtime"}

	if len(c.Output.Formats) == 0 {
		verr.Add("output.formats", "must name at least one format")
	}
	for _, f := range c.Output.Formats {
		if !validFormats[f] {
			verr.Add("output.formats", "unknown format %q", f)
		}
	}
	if !validRotations[c.Output.Rotation] {
		verr.Add("output.rotation", "must be daily or hourly")
	}
	if c.Output.Directory == "" {
		verr.Add("output.directory", "is required")
	}
	if c.Generator.Workers < 1 {
		verr.Add("generator.workers", "must be >= 1")
	}
	if c.Generator.Days < 0 {
		verr.Add("generator.days", "must be >= 0")
	}

	for _, sink := range []struct{ field, format string }{
		{"elasticsearch.format", c.Elasticsearch.Format},
		{"clickhouse.format", c.Clickhouse.Format},
		{"scylla.format", c.Scylla.Format},
	} {
		if !validFormats[sink.format] {
			verr.Add(sink.field, "unknown format %q", sink.format)
		}
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		verr.Add("kafka.brokers", "is required when kafka is enabled")
	}
	if c.S3.Enabled && c.S3.Bucket == "" {
		verr.Add("s3.bucket", "is required when archiving is enabled")
	}
	if c.Scylla.Enabled && c.Scylla.UserBuckets < 1 {
		verr.Add("scylla.user_buckets", "must be >= 1")
	}

	return verr.ErrOrNil()
}
