package app

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// StorageDriver выбирает реализацию хранилища.
type StorageDriver string

const (
	// StorageDriverMemory — in-memory хранилище для разработки и тестов.
	StorageDriverMemory StorageDriver = "memory"
	// StorageDriverPostgres — PostgreSQL.
	StorageDriverPostgres StorageDriver = "postgres"
)

// envPrefix — префикс переменных окружения приложения.
const envPrefix = "storefront"

// Config описывает настройки запуска приложения.
type Config struct {
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	StorageDriver       StorageDriver `envconfig:"STORAGE_DRIVER" default:"memory"`
	PostgresDSN         string        `envconfig:"POSTGRES_DSN"`
	PostgresAutoMigrate bool          `envconfig:"POSTGRES_AUTO_MIGRATE" default:"true"`

	// KafkaBrokers — список брокеров через запятую. Пустое значение
	// отключает Kafka: приложение работает без consumer и outbox publisher.
	KafkaBrokers       string `envconfig:"KAFKA_BROKERS"`
	KafkaConsumerGroup string `envconfig:"KAFKA_CONSUMER_GROUP" default:"storefront-order-service"`
	KafkaCommandTopic  string `envconfig:"KAFKA_COMMAND_TOPIC" default:"storefront.order.commands"`
	KafkaEventTopic    string `envconfig:"KAFKA_EVENT_TOPIC" default:"storefront.order.events"`
	KafkaDLQTopic      string `envconfig:"KAFKA_DLQ_TOPIC" default:"storefront.dlq"`
	KafkaMaxRetries    int    `envconfig:"KAFKA_MAX_RETRIES" default:"3"`

	OutboxPollInterval time.Duration `envconfig:"OUTBOX_POLL_INTERVAL" default:"1s"`
	OutboxBatchSize    int           `envconfig:"OUTBOX_BATCH_SIZE" default:"100"`
	OutboxMaxAttempts  int           `envconfig:"OUTBOX_MAX_ATTEMPTS" default:"3"`
	OutboxRetryDelay   time.Duration `envconfig:"OUTBOX_RETRY_DELAY" default:"50ms"`
	// OutboxMaxPending — порог backlog, выше которого readiness-проверка
	// считает outbox нездоровым.
	OutboxMaxPending int `envconfig:"OUTBOX_MAX_PENDING" default:"1000"`

	IdempotencyCleanupInterval  time.Duration `envconfig:"IDEMPOTENCY_CLEANUP_INTERVAL" default:"10m"`
	IdempotencyCleanupBatchSize int           `envconfig:"IDEMPOTENCY_CLEANUP_BATCH_SIZE" default:"500"`
}

// DefaultConfig возвращает конфигурацию по умолчанию.
func DefaultConfig() Config {
	return Config{
		MetricsAddr:                 ":9090",
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		KafkaConsumerGroup:          "storefront-order-service",
		KafkaCommandTopic:           "storefront.order.commands",
		KafkaEventTopic:             "storefront.order.events",
		KafkaDLQTopic:               "storefront.dlq",
		KafkaMaxRetries:             3,
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           3,
		OutboxRetryDelay:            50 * time.Millisecond,
		OutboxMaxPending:            1000,
		IdempotencyCleanupInterval:  10 * time.Minute,
		IdempotencyCleanupBatchSize: 500,
	}
}

// LoadConfig читает конфигурацию из переменных окружения с префиксом STOREFRONT.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность конфигурации.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres dsn is required for storage driver %q", c.StorageDriver)
		}
	default:
		return fmt.Errorf("unsupported storage driver: %q", c.StorageDriver)
	}

	if c.OutboxBatchSize <= 0 {
		return fmt.Errorf("outbox batch size must be positive, got %d", c.OutboxBatchSize)
	}
	if c.IdempotencyCleanupBatchSize <= 0 {
		return fmt.Errorf("idempotency cleanup batch size must be positive, got %d", c.IdempotencyCleanupBatchSize)
	}

	return nil
}
