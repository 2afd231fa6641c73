// Package config loads application configuration from YAML files with
// environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Storage, Pipeline, Hashing, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Storage   StorageConfig   `yaml:"storage"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Hashing   HashingConfig   `yaml:"hashing"`
	Generator GeneratorConfig `yaml:"generator"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP and RPC server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	RPCAddr         string        `yaml:"rpcAddr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// AllowOrigins lists browser origins allowed by CORS. Empty allows any.
	AllowOrigins    []string      `yaml:"allowOrigins"`
	// RateLimit is requests per second per client; zero disables limiting.
	RateLimit       float64       `yaml:"rateLimit"`
	RateLimitBurst  int           `yaml:"rateLimitBurst"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	DescriptorComputed string `yaml:"descriptorComputed"`
}

// RedisConfig holds Redis connection parameters and the key namespace used
// for the persisted hash index.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	PoolSize  int    `yaml:"poolSize"`
	KeyPrefix string `yaml:"keyPrefix"`
}

// StorageConfig selects where descriptor vectors and hash index snapshots live.
type StorageConfig struct {
	VectorDir     string `yaml:"vectorDir"`
	InMemory      bool   `yaml:"inMemory"`
	HashIndexPath string `yaml:"hashIndexPath"`
}

// PipelineConfig controls the batch orchestrator. BatchSize 0 means a single
// unbounded batch.
type PipelineConfig struct {
	BatchSize          int           `yaml:"batchSize"`
	Overwrite          bool          `yaml:"overwrite"`
	Concurrency        int           `yaml:"concurrency"`
	GeneratorBatchSize int           `yaml:"generatorBatchSize"`
	GeneratorTimeout   time.Duration `yaml:"generatorTimeout"`
}

// HashingConfig controls the hash indexer and its random projection functor.
type HashingConfig struct {
	ReportInterval  time.Duration `yaml:"reportInterval"`
	UseMultiprocess bool          `yaml:"useMultiprocess"`
	Workers         int           `yaml:"workers"`
	Bits            int           `yaml:"bits"`
	Seed            int64         `yaml:"seed"`
	Dimension       int           `yaml:"dimension"`
	ProbeRadius     int           `yaml:"probeRadius"`
}

// GeneratorConfig selects the descriptor backend.
type GeneratorConfig struct {
	Kind              string  `yaml:"kind"`
	Model             string  `yaml:"model"`
	APIKey            string  `yaml:"apiKey"`
	BaseURL           string  `yaml:"baseUrl"`
	RemoteAddr        string  `yaml:"remoteAddr"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Pipeline.BatchSize < 0 {
		return fmt.Errorf("pipeline.batchSize must be >= 0, got %d", c.Pipeline.BatchSize)
	}
	if c.Hashing.Bits <= 0 {
		return fmt.Errorf("hashing.bits must be positive, got %d", c.Hashing.Bits)
	}
	if c.Hashing.ProbeRadius < 0 {
		return fmt.Errorf("hashing.probeRadius must be >= 0, got %d", c.Hashing.ProbeRadius)
	}
	switch c.Generator.Kind {
	case "openai", "remote":
	default:
		return fmt.Errorf("generator.kind %q is not one of openai, remote", c.Generator.Kind)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			RPCAddr:         ":9100",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       20,
			RateLimitBurst:  40,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "mmretrieval",
			User:            "mmretrieval",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "hashindexer-group",
			Topics: KafkaTopics{
				DescriptorComputed: "descriptor.computed",
			},
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			PoolSize:  10,
			KeyPrefix: "mmr:hash",
		},
		Storage: StorageConfig{
			VectorDir:     "./data/vectors",
			HashIndexPath: "./data/hash2ids.json.zst",
		},
		Pipeline: PipelineConfig{
			BatchSize:          0,
			Concurrency:        0,
			GeneratorBatchSize: 64,
			GeneratorTimeout:   2 * time.Minute,
		},
		Hashing: HashingConfig{
			ReportInterval: time.Second,
			Bits:           64,
			Seed:           1,
			Dimension:      1536,
		},
		Generator: GeneratorConfig{
			Kind:              "openai",
			Model:             "text-embedding-3-small",
			RemoteAddr:        "localhost:9100",
			RequestsPerSecond: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads MR_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MR_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("MR_SERVER_RPC_ADDR"); v != "" {
		cfg.Server.RPCAddr = v
	}
	if v := os.Getenv("MR_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("MR_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("MR_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("MR_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("MR_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("MR_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("MR_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("MR_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("MR_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("MR_STORAGE_VECTOR_DIR"); v != "" {
		cfg.Storage.VectorDir = v
	}
	if v := os.Getenv("MR_PIPELINE_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.BatchSize = n
		}
	}
	if v := os.Getenv("MR_PIPELINE_OVERWRITE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Pipeline.Overwrite = b
		}
	}
	if v := os.Getenv("MR_HASHING_USE_MULTIPROCESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Hashing.UseMultiprocess = b
		}
	}
	if v := os.Getenv("MR_HASHING_REPORT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Hashing.ReportInterval = d
		}
	}
	if v := os.Getenv("MR_HASHING_PROBE_RADIUS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Hashing.ProbeRadius = n
		}
	}
	if v := os.Getenv("MR_GENERATOR_KIND"); v != "" {
		cfg.Generator.Kind = v
	}
	if v := os.Getenv("MR_GENERATOR_MODEL"); v != "" {
		cfg.Generator.Model = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.Generator.APIKey == "" {
		cfg.Generator.APIKey = v
	}
	if v := os.Getenv("MR_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MR_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
