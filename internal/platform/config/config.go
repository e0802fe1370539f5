package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string
	HTTPPort     string
	PostgresDSN  string
	RedisAddr    string
	KafkaBrokers []string

	TigerBeetleClusterID uint32
	TigerBeetleAddresses []string

	IdempotencyTTL     time.Duration
	OutboxBatchSize    int
	WorkerPollInterval time.Duration

	EnableOutboxRelay         bool
	EnableRefundWindowWatcher bool
}

// fileConfig mirrors the optional YAML overlay. Environment variables win
// over file values; file values win over defaults.
type fileConfig struct {
	ServiceName  string   `yaml:"service_name"`
	HTTPPort     string   `yaml:"http_port"`
	PostgresDSN  string   `yaml:"postgres_dsn"`
	RedisAddr    string   `yaml:"redis_addr"`
	KafkaBrokers []string `yaml:"kafka_brokers"`

	TigerBeetle struct {
		ClusterID uint32   `yaml:"cluster_id"`
		Addresses []string `yaml:"addresses"`
	} `yaml:"tigerbeetle"`

	IdempotencyTTL     string `yaml:"idempotency_ttl"`
	OutboxBatchSize    int    `yaml:"outbox_batch_size"`
	WorkerPollInterval string `yaml:"worker_poll_interval"`
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		ServiceName:               "delphi",
		HTTPPort:                  "8080",
		KafkaBrokers:              []string{"localhost:9092"},
		TigerBeetleClusterID:      0,
		TigerBeetleAddresses:      nil,
		IdempotencyTTL:            24 * time.Hour,
		OutboxBatchSize:           100,
		WorkerPollInterval:        2 * time.Second,
		EnableOutboxRelay:         true,
		EnableRefundWindowWatcher: true,
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if value := strings.TrimSpace(os.Getenv("SERVICE_NAME")); value != "" {
		cfg.ServiceName = value
	}
	if value := strings.TrimSpace(os.Getenv("HTTP_PORT")); value != "" {
		cfg.HTTPPort = value
	}
	if value := strings.TrimSpace(os.Getenv("POSTGRES_DSN")); value != "" {
		cfg.PostgresDSN = value
	}
	if value := strings.TrimSpace(os.Getenv("REDIS_ADDR")); value != "" {
		cfg.RedisAddr = value
	}
	if brokers := splitList(os.Getenv("KAFKA_BROKERS")); len(brokers) > 0 {
		cfg.KafkaBrokers = brokers
	}
	if value := strings.TrimSpace(os.Getenv("TIGERBEETLE_CLUSTER_ID")); value != "" {
		cluster, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return Config{}, fmt.Errorf("parse TIGERBEETLE_CLUSTER_ID: %w", err)
		}
		cfg.TigerBeetleClusterID = uint32(cluster)
	}
	if addrs := splitList(os.Getenv("TIGERBEETLE_ADDRESSES")); len(addrs) > 0 {
		cfg.TigerBeetleAddresses = addrs
	}
	if value := strings.TrimSpace(os.Getenv("IDEMPOTENCY_TTL")); value != "" {
		ttl, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse IDEMPOTENCY_TTL: %w", err)
		}
		cfg.IdempotencyTTL = ttl
	}
	if value := strings.TrimSpace(os.Getenv("OUTBOX_BATCH_SIZE")); value != "" {
		size, err := strconv.Atoi(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse OUTBOX_BATCH_SIZE: %w", err)
		}
		cfg.OutboxBatchSize = size
	}
	if value := strings.TrimSpace(os.Getenv("WORKER_POLL_INTERVAL")); value != "" {
		interval, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse WORKER_POLL_INTERVAL: %w", err)
		}
		cfg.WorkerPollInterval = interval
	}
	cfg.EnableOutboxRelay = envBool("ENABLE_OUTBOX_RELAY", cfg.EnableOutboxRelay)
	cfg.EnableRefundWindowWatcher = envBool("ENABLE_REFUND_WINDOW_WATCHER", cfg.EnableRefundWindowWatcher)

	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var file fileConfig
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if file.ServiceName != "" {
		cfg.ServiceName = file.ServiceName
	}
	if file.HTTPPort != "" {
		cfg.HTTPPort = file.HTTPPort
	}
	if file.PostgresDSN != "" {
		cfg.PostgresDSN = file.PostgresDSN
	}
	if file.RedisAddr != "" {
		cfg.RedisAddr = file.RedisAddr
	}
	if len(file.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = file.KafkaBrokers
	}
	if file.TigerBeetle.ClusterID != 0 {
		cfg.TigerBeetleClusterID = file.TigerBeetle.ClusterID
	}
	if len(file.TigerBeetle.Addresses) > 0 {
		cfg.TigerBeetleAddresses = file.TigerBeetle.Addresses
	}
	if file.IdempotencyTTL != "" {
		ttl, err := time.ParseDuration(file.IdempotencyTTL)
		if err != nil {
			return fmt.Errorf("parse idempotency_ttl: %w", err)
		}
		cfg.IdempotencyTTL = ttl
	}
	if file.OutboxBatchSize > 0 {
		cfg.OutboxBatchSize = file.OutboxBatchSize
	}
	if file.WorkerPollInterval != "" {
		interval, err := time.ParseDuration(file.WorkerPollInterval)
		if err != nil {
			return fmt.Errorf("parse worker_poll_interval: %w", err)
		}
		cfg.WorkerPollInterval = interval
	}
	return nil
}

func splitList(raw string) []string {
	var values []string
	for _, value := range strings.Split(raw, ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			values = append(values, value)
		}
	}
	return values
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
