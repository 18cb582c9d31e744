package kafka_config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Brokers:  []string{"localhost:9092"},
		ClientID: DefaultKafkaClientID,
		Producer: ProducerConfig{
			MaxAttempts:  DefaultProducerMaxAttempts,
			BatchTimeout: DefaultProducerBatchTimeout,
			RequireAcks:  DefaultProducerRequireAcks,
			Compression:  DefaultProducerCompression,
			WriteTimeout: DefaultProducerWriteTimeout,
		},
		Consumer: ConsumerConfig{
			StartOffset:       DefaultConsumerStartOffset,
			MinBytes:          DefaultConsumerMinBytes,
			MaxBytes:          DefaultConsumerMaxBytes,
			MaxWait:           DefaultConsumerMaxWait,
			CommitInterval:    DefaultConsumerCommitInterval,
			HeartbeatInterval: DefaultConsumerHeartbeatInterval,
			SessionTimeout:    DefaultConsumerSessionTimeout,
			RebalanceTimeout:  DefaultConsumerRebalanceTimeout,
		},
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvKafkaBrokers, "broker-1:9092, ,broker-2:9092")
	t.Setenv(EnvKafkaProducerCompression, "LZ4")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Brokers) != 2 || cfg.Brokers[1] != "broker-2:9092" {
		t.Errorf("unexpected brokers %v", cfg.Brokers)
	}
	if cfg.Producer.Compression != "lz4" {
		t.Errorf("Compression = %s, want lz4", cfg.Producer.Compression)
	}
	if cfg.Consumer.StartOffset != -2 {
		t.Errorf("StartOffset = %d, want oldest", cfg.Consumer.StartOffset)
	}
	if cfg.Consumer.CommitInterval != 0 {
		t.Errorf("CommitInterval = %s, want synchronous commits", cfg.Consumer.CommitInterval)
	}
}

func TestLoad_NoBrokers(t *testing.T) {
	t.Setenv(EnvKafkaBrokers, " , ")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "broker is required") {
		t.Fatalf("expected broker error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"empty broker", func(c *Config) { c.Brokers = []string{" "} }, "Broker 0 cannot be empty"},
		{"bad compression", func(c *Config) { c.Producer.Compression = "brotli" }, "Producer.Compression"},
		{"bad acks", func(c *Config) { c.Producer.RequireAcks = 2 }, "Producer.RequireAcks"},
		{"no write timeout", func(c *Config) { c.Producer.WriteTimeout = 0 }, "Producer.WriteTimeout"},
		{"bad start offset", func(c *Config) { c.Consumer.StartOffset = -3 }, "Consumer.StartOffset"},
		{"max bytes below min", func(c *Config) { c.Consumer.MaxBytes = 0 }, "Consumer.MinBytes"},
		{"session below heartbeat", func(c *Config) { c.Consumer.SessionTimeout = time.Second }, "Consumer.SessionTimeout"},
		{"negative commit interval", func(c *Config) { c.Consumer.CommitInterval = -time.Second }, "Consumer.CommitInterval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
