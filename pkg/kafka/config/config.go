package kafka_config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

type ProducerConfig struct {
	MaxAttempts  int
	BatchTimeout time.Duration
	RequireAcks  int // -1 all replicas, 0 none, 1 leader
	Compression  string
	WriteTimeout time.Duration

	AllowAutoTopicCreation bool
}

type ConsumerConfig struct {
	StartOffset       int64 // -1 newest, -2 oldest
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	CommitInterval    time.Duration // 0 commits synchronously after each message
	HeartbeatInterval time.Duration
	SessionTimeout    time.Duration
	RebalanceTimeout  time.Duration
}

// Config is shared by the booking.created producer, the settlement consumer
// and the dead-letter writer. Topic names live in the service config.
type Config struct {
	Brokers  []string
	ClientID string

	Producer ProducerConfig
	Consumer ConsumerConfig
}

var compressions = []string{"none", "gzip", "snappy", "lz4", "zstd"}

// Load reads the Kafka settings from the environment and validates them.
func Load() (*Config, error) {
	cfg := &Config{
		Brokers:  splitBrokers(getEnvStr(EnvKafkaBrokers, DefaultKafkaBrokers)),
		ClientID: getEnvStr(EnvKafkaClientID, DefaultKafkaClientID),
		Producer: ProducerConfig{
			MaxAttempts:            getEnvInt(EnvKafkaProducerMaxAttempts, DefaultProducerMaxAttempts),
			BatchTimeout:           getEnvDuration(EnvKafkaProducerBatchTimeout, DefaultProducerBatchTimeout),
			RequireAcks:            getEnvInt(EnvKafkaProducerRequireAcks, DefaultProducerRequireAcks),
			Compression:            strings.ToLower(getEnvStr(EnvKafkaProducerCompression, DefaultProducerCompression)),
			WriteTimeout:           getEnvDuration(EnvKafkaProducerWriteTimeout, DefaultProducerWriteTimeout),
			AllowAutoTopicCreation: getEnvBool(EnvKafkaAllowAutoTopicCreation, DefaultAllowAutoTopicCreation),
		},
		Consumer: ConsumerConfig{
			StartOffset:       int64(getEnvInt(EnvKafkaConsumerStartOffset, DefaultConsumerStartOffset)),
			MinBytes:          getEnvInt(EnvKafkaConsumerMinBytes, DefaultConsumerMinBytes),
			MaxBytes:          getEnvInt(EnvKafkaConsumerMaxBytes, DefaultConsumerMaxBytes),
			MaxWait:           getEnvDuration(EnvKafkaConsumerMaxWait, DefaultConsumerMaxWait),
			CommitInterval:    getEnvDuration(EnvKafkaConsumerCommitInterval, DefaultConsumerCommitInterval),
			HeartbeatInterval: getEnvDuration(EnvKafkaConsumerHeartbeatInterval, DefaultConsumerHeartbeatInterval),
			SessionTimeout:    getEnvDuration(EnvKafkaConsumerSessionTimeout, DefaultConsumerSessionTimeout),
			RebalanceTimeout:  getEnvDuration(EnvKafkaConsumerRebalanceTimeout, DefaultConsumerRebalanceTimeout),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("kafka configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (cfg *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(cfg.Brokers) == 0 {
		add("At least one Kafka broker is required")
	}
	for i, broker := range cfg.Brokers {
		if strings.TrimSpace(broker) == "" {
			add("Broker %d cannot be empty", i)
		}
	}

	p := cfg.Producer
	if p.MaxAttempts <= 0 {
		add("Producer.MaxAttempts must be positive, got: %d", p.MaxAttempts)
	}
	if p.BatchTimeout <= 0 {
		add("Producer.BatchTimeout must be positive, got: %s", p.BatchTimeout)
	}
	if p.WriteTimeout <= 0 {
		add("Producer.WriteTimeout must be positive, got: %s", p.WriteTimeout)
	}
	if p.RequireAcks < -1 || p.RequireAcks > 1 {
		add("Producer.RequireAcks must be -1, 0, or 1, got: %d", p.RequireAcks)
	}
	if !slices.Contains(compressions, p.Compression) {
		add("Producer.Compression must be one of %v, got: %s", compressions, p.Compression)
	}

	c := cfg.Consumer
	if c.StartOffset < -2 {
		add("Consumer.StartOffset must be -1 (newest), -2 (oldest), or >= 0, got: %d", c.StartOffset)
	}
	if c.MinBytes <= 0 || c.MaxBytes < c.MinBytes {
		add("Consumer.MinBytes must be positive and not above MaxBytes, got: %d..%d", c.MinBytes, c.MaxBytes)
	}
	if c.MaxWait <= 0 {
		add("Consumer.MaxWait must be positive, got: %s", c.MaxWait)
	}
	if c.CommitInterval < 0 {
		add("Consumer.CommitInterval cannot be negative, got: %s", c.CommitInterval)
	}
	if c.HeartbeatInterval <= 0 || c.SessionTimeout <= c.HeartbeatInterval {
		add("Consumer.SessionTimeout (%s) must exceed HeartbeatInterval (%s)", c.SessionTimeout, c.HeartbeatInterval)
	}
	if c.RebalanceTimeout <= 0 {
		add("Consumer.RebalanceTimeout must be positive, got: %s", c.RebalanceTimeout)
	}

	if len(problems) > 0 {
		var b strings.Builder
		b.WriteString("Configuration validation failed:\n")
		for i, problem := range problems {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, problem)
		}
		return fmt.Errorf("%s", b.String())
	}
	return nil
}

func (cfg *Config) LogConfiguration(logFunc func(msg string, keysAndValues ...any)) {
	if logFunc == nil {
		return
	}
	logFunc("Kafka configuration loaded successfully",
		"brokers", cfg.Brokers,
		"client_id", cfg.ClientID,
		"producer_max_attempts", cfg.Producer.MaxAttempts,
		"producer_require_acks", cfg.Producer.RequireAcks,
		"producer_compression", cfg.Producer.Compression,
		"producer_write_timeout", cfg.Producer.WriteTimeout,
		"consumer_start_offset", cfg.Consumer.StartOffset,
		"consumer_commit_interval", cfg.Consumer.CommitInterval,
		"consumer_session_timeout", cfg.Consumer.SessionTimeout,
	)
}

func splitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func getEnvStr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}
