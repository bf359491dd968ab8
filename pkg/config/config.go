package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	xhttp "IndexSDK/pkg/http"
	"IndexSDK/pkg/logger"
)

// EnvPrefix prefixes every environment override, e.g. MERQ_API_KEY.
const EnvPrefix = "MERQ"

const (
	EnvProd    = "prod"
	EnvStaging = "staging"
	EnvCustom  = "custom"
)

const (
	SinkStdout     = "stdout"
	SinkKafka      = "kafka"
	SinkClickHouse = "clickhouse"
)

type Config struct {
	// Environment picks the API base URL unless api.base_url is set.
	Environment string `yaml:"environment" default:"prod" validate:"oneof=prod staging custom"`
	APIKey      string `yaml:"api_key" validate:"required"`

	API     xhttp.SessionConfig `yaml:"api"`
	Cache   CacheConfig         `yaml:"cache"`
	Logging logger.Config       `yaml:"logging"`
	Metrics MetricsConfig       `yaml:"metrics"`
	Export  ExportConfig        `yaml:"export"`
}

// CacheConfig selects the store behind the supported-type cache.
type CacheConfig struct {
	Type  string        `yaml:"type" default:"memory" validate:"oneof=memory redis layered"`
	TTL   time.Duration `yaml:"ttl" default:"10m" validate:"gt=0"`
	Redis struct {
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db" validate:"gte=0"`
		Prefix   string `yaml:"prefix" default:"indexsdk"`
	} `yaml:"redis"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	// Addr serves /metrics while a command runs; empty disables the listener.
	Addr string `yaml:"addr"`
}

// ExportConfig selects where fetched metric tables are written.
type ExportConfig struct {
	Sink       string           `yaml:"sink" default:"stdout" validate:"oneof=stdout kafka clickhouse"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic" default:"indexsdk.metrics"`
	RequiredAcks int           `yaml:"required_acks" default:"-1" validate:"oneof=-1 0 1"`
	Compression  string        `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
	MaxAttempts  int           `yaml:"max_attempts" default:"3" validate:"gte=1"`
	BatchSize    int           `yaml:"batch_size" default:"100" validate:"gte=1"`
	BatchBytes   int           `yaml:"batch_bytes" default:"1048576" validate:"gte=1"`
	Linger       time.Duration `yaml:"linger" default:"1s"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
}

type ClickHouseConfig struct {
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000" validate:"gte=1,lte=65535"`
	Database         string        `yaml:"database" default:"indexsdk"`
	Table            string        `yaml:"table" default:"security_metrics"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time"`
}

// envOverrides lists the variables read on top of the file. It carries no default
// tags so unset variables never clobber file values.
type envOverrides struct {
	APIKey       string   `envconfig:"API_KEY"`
	Environment  string   `envconfig:"ENVIRONMENT"`
	BaseURL      string   `envconfig:"BASE_URL"`
	LogLevel     string   `envconfig:"LOG_LEVEL"`
	CacheType    string   `envconfig:"CACHE_TYPE"`
	RedisAddr    string   `envconfig:"REDIS_ADDR"`
	Sink         string   `envconfig:"EXPORT_SINK"`
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC"`
	CHHost       string   `envconfig:"CLICKHOUSE_HOST"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.finish(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides it with MERQ_* variables. An empty
// path skips the file.
func LoadWithEnv(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	c.apply(env)

	if err := c.finish(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) apply(env envOverrides) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.APIKey, env.APIKey)
	set(&c.Environment, env.Environment)
	set(&c.API.BaseURL, env.BaseURL)
	set(&c.Logging.Level, env.LogLevel)
	set(&c.Cache.Type, env.CacheType)
	set(&c.Cache.Redis.Addr, env.RedisAddr)
	set(&c.Export.Sink, env.Sink)
	set(&c.Export.Kafka.Topic, env.KafkaTopic)
	set(&c.Export.ClickHouse.Host, env.CHHost)
	if len(env.KafkaBrokers) > 0 {
		c.Export.Kafka.Brokers = env.KafkaBrokers
	}
}

// finish resolves the base URL, fills defaults and validates.
func (c *Config) finish() error {
	if c.API.BaseURL == "" {
		switch c.Environment {
		case EnvStaging:
			c.API.BaseURL = xhttp.StagingBaseURL
		case EnvCustom:
			return errors.New("validate config: environment custom requires api.base_url")
		}
	}
	if err := xhttp.ValidateStruct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

// Validate checks rules that span sections.
func (c *Config) Validate() error {
	if c.Export.Sink == SinkKafka && len(c.Export.Kafka.Brokers) == 0 {
		return fmt.Errorf("export.kafka.brokers is required for sink %q", SinkKafka)
	}
	if c.Metrics.Addr != "" && !c.Metrics.Enabled {
		return fmt.Errorf("metrics.addr set but metrics.enabled is false")
	}
	return nil
}
