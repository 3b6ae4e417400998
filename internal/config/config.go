package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Kafka    KafkaConfig
	Redis    RedisConfig
	Source   SourceConfig
	Storage  StorageConfig
	Pipeline PipelineConfig

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port string `envconfig:"SERVER_PORT" default:"8080"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD" default:"postgres"`
	DBName   string `envconfig:"DB_NAME" default:"b3quotes"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	MaxRetries    int           `envconfig:"DB_MAX_RETRIES" default:"5"`
	RetryInterval time.Duration `envconfig:"DB_RETRY_INTERVAL" default:"2s"`
}

// KafkaConfig holds Kafka configuration. An empty broker list disables
// event publishing.
type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS"`
	Topic   string   `envconfig:"KAFKA_TOPIC" default:"quote-days"`
}

// RedisConfig holds quote cache configuration. An empty address disables
// caching.
type RedisConfig struct {
	Addr     string        `envconfig:"REDIS_ADDR"`
	Password string        `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	TTL      time.Duration `envconfig:"REDIS_TTL" default:"5m"`
}

// SourceConfig holds the exchange download endpoint configuration
type SourceConfig struct {
	BaseURL string        `envconfig:"B3_BASE_URL" default:"https://www.b3.com.br/pesquisapregao/download"`
	Timeout time.Duration `envconfig:"B3_TIMEOUT" default:"30s"`
}

// StorageConfig holds the bulletin object store configuration
type StorageConfig struct {
	DataDir string `envconfig:"DATA_DIR" default:"./dados_b3"`
}

// PipelineConfig holds ETL orchestration configuration
type PipelineConfig struct {
	MaxLookbackDays int `envconfig:"PIPELINE_LOOKBACK_DAYS" default:"10"`
	Workers         int `envconfig:"PIPELINE_WORKERS" default:"4"`
	BackfillDays    int `envconfig:"PIPELINE_BACKFILL_DAYS" default:"30"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return &cfg, nil
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}
