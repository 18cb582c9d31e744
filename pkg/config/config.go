package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"stazy/pkg/client"
	"stazy/pkg/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port     string
	LogLevel string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	CatalogBaseURL string
	CatalogTimeout time.Duration

	LockBackend       string
	LockTTL           time.Duration
	LockWaitTimeout   time.Duration
	LockRetryInterval time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CreateTimeout      time.Duration
	PublishTimeout     time.Duration
	MaxStayNights      int
	DefaultPhoneRegion string

	BookingCreatedTopic string
	SettlementTopic     string
	SettlementGroupID   string
	SettlementDLQTopic  string

	ReconcileMaxAttempts    int
	ReconcileInitialBackoff time.Duration
	ReconcileMaxBackoff     time.Duration

	OutboxInterval    time.Duration
	OutboxBatchSize   int
	OutboxMaxAttempts int
	OutboxMinAge      time.Duration

	OtelEndpoint    string
	OtelServiceName string
	OtelInsecure    bool

	Log    *logger.Logger
	Client *client.Client
}

// Load reads an optional .env file, then the environment, and exits on invalid values.
func Load(serviceName string) *Config {
	envErr := godotenv.Load()

	cfg := FromEnv()
	cfg.Log = logger.New(logger.Config{
		Level:     cfg.LogLevel,
		Format:    logger.JSON,
		AddSource: true,
		Service:   serviceName,
	})
	cfg.Client = client.NewClient()

	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		cfg.Log.Warn("Failed to read .env file", "error", envErr)
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// FromEnv builds a Config from environment variables without clients or logger.
func FromEnv() *Config {
	return &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port:     getEnvStr(EnvPort, DefaultPort),
		LogLevel: getEnvStr(EnvLogLevel, DefaultLogLevel),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		CatalogBaseURL: getEnvStr(EnvCatalogBaseURL, DefaultCatalogBaseURL),
		CatalogTimeout: getEnvDuration(EnvCatalogTimeout, DefaultCatalogTimeout),

		LockBackend:       getEnvStr(EnvLockBackend, DefaultLockBackend),
		LockTTL:           getEnvDuration(EnvLockTTL, DefaultLockTTL),
		LockWaitTimeout:   getEnvDuration(EnvLockWaitTimeout, DefaultLockWaitTimeout),
		LockRetryInterval: getEnvDuration(EnvLockRetryInterval, DefaultLockRetryInterval),

		RedisAddr:     getEnvStr(EnvRedisAddr, DefaultRedisAddr),
		RedisPassword: getEnvStr(EnvRedisPassword, ""),
		RedisDB:       getEnvNum(EnvRedisDB, DefaultRedisDB),

		CreateTimeout:      getEnvDuration(EnvCreateTimeout, DefaultCreateTimeout),
		PublishTimeout:     getEnvDuration(EnvPublishTimeout, DefaultPublishTimeout),
		MaxStayNights:      getEnvNum(EnvMaxStayNights, DefaultMaxStayNights),
		DefaultPhoneRegion: getEnvStr(EnvDefaultPhoneRegion, DefaultDefaultPhoneRegion),

		BookingCreatedTopic: getEnvStr(EnvBookingCreatedTopic, DefaultBookingCreatedTopic),
		SettlementTopic:     getEnvStr(EnvSettlementTopic, DefaultSettlementTopic),
		SettlementGroupID:   getEnvStr(EnvSettlementGroupID, DefaultSettlementGroupID),
		SettlementDLQTopic:  getEnvStr(EnvSettlementDLQTopic, DefaultSettlementDLQTopic),

		ReconcileMaxAttempts:    getEnvNum(EnvReconcileMaxAttempts, DefaultReconcileMaxAttempts),
		ReconcileInitialBackoff: getEnvDuration(EnvReconcileInitialBackoff, DefaultReconcileInitialBackoff),
		ReconcileMaxBackoff:     getEnvDuration(EnvReconcileMaxBackoff, DefaultReconcileMaxBackoff),

		OutboxInterval:    getEnvDuration(EnvOutboxInterval, DefaultOutboxInterval),
		OutboxBatchSize:   getEnvNum(EnvOutboxBatchSize, DefaultOutboxBatchSize),
		OutboxMaxAttempts: getEnvNum(EnvOutboxMaxAttempts, DefaultOutboxMaxAttempts),
		OutboxMinAge:      getEnvDuration(EnvOutboxMinAge, DefaultOutboxMinAge),

		OtelEndpoint:    getEnvStr(EnvOtelEndpoint, ""),
		OtelServiceName: getEnvStr(EnvOtelServiceName, DefaultOtelServiceName),
		OtelInsecure:    getEnvBool(EnvOtelInsecure, true),
	}
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.MongoConnTimeout)
}

func (cfg *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errs = append(errs, "MongoURI cannot be empty")
	} else if len(cfg.MongoURI) < 10 || !mongoURIRegex.MatchString(cfg.MongoURI) {
		errs = append(errs, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
	}
	if cfg.MongoDatabaseName == "" {
		errs = append(errs, "MongoDatabaseName cannot be empty")
	}
	if cfg.CatalogBaseURL == "" {
		errs = append(errs, "CatalogBaseURL cannot be empty")
	}

	switch cfg.LockBackend {
	case LockBackendMongo, LockBackendMemory:
	case LockBackendRedis:
		if cfg.RedisAddr == "" {
			errs = append(errs, "RedisAddr cannot be empty when LockBackend is redis")
		}
	default:
		errs = append(errs, fmt.Sprintf("LockBackend must be one of [mongo, redis, memory], got: %s", cfg.LockBackend))
	}

	positiveDurations := []struct {
		name  string
		value time.Duration
	}{
		{"MongoConnTimeout", cfg.MongoConnTimeout},
		{"RateLimitWindow", cfg.RateLimitWindow},
		{"RequestTimeout", cfg.RequestTimeout},
		{"IdempotencyTTL", cfg.IdempotencyTTL},
		{"ReadTimeout", cfg.ReadTimeout},
		{"WriteTimeout", cfg.WriteTimeout},
		{"IdleTimeout", cfg.IdleTimeout},
		{"ShutdownTimeout", cfg.ShutdownTimeout},
		{"CatalogTimeout", cfg.CatalogTimeout},
		{"LockTTL", cfg.LockTTL},
		{"LockWaitTimeout", cfg.LockWaitTimeout},
		{"LockRetryInterval", cfg.LockRetryInterval},
		{"CreateTimeout", cfg.CreateTimeout},
		{"PublishTimeout", cfg.PublishTimeout},
		{"ReconcileInitialBackoff", cfg.ReconcileInitialBackoff},
		{"ReconcileMaxBackoff", cfg.ReconcileMaxBackoff},
		{"OutboxInterval", cfg.OutboxInterval},
	}
	for _, d := range positiveDurations {
		if d.value <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be positive, got: %s", d.name, d.value))
		}
	}

	positiveInts := []struct {
		name  string
		value int
	}{
		{"RateLimitRequests", cfg.RateLimitRequests},
		{"MaxRequestSize", cfg.MaxRequestSize},
		{"MaxStayNights", cfg.MaxStayNights},
		{"ReconcileMaxAttempts", cfg.ReconcileMaxAttempts},
		{"OutboxBatchSize", cfg.OutboxBatchSize},
		{"OutboxMaxAttempts", cfg.OutboxMaxAttempts},
	}
	for _, n := range positiveInts {
		if n.value <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be positive, got: %d", n.name, n.value))
		}
	}

	if cfg.LockWaitTimeout >= cfg.LockTTL {
		errs = append(errs, fmt.Sprintf("LockWaitTimeout (%s) must be shorter than LockTTL (%s)", cfg.LockWaitTimeout, cfg.LockTTL))
	}
	if cfg.RequestTimeout-cfg.CreateTimeout < MinResponseHeadroom {
		errs = append(errs, fmt.Sprintf("CreateTimeout (%s) must be at least %s shorter than RequestTimeout (%s)", cfg.CreateTimeout, MinResponseHeadroom, cfg.RequestTimeout))
	}
	if cfg.OutboxMinAge < 0 {
		errs = append(errs, fmt.Sprintf("OutboxMinAge cannot be negative, got: %s", cfg.OutboxMinAge))
	}
	if len(cfg.DefaultPhoneRegion) != 2 {
		errs = append(errs, fmt.Sprintf("DefaultPhoneRegion must be a two-letter region code, got: %s", cfg.DefaultPhoneRegion))
	}
	if cfg.BookingCreatedTopic == "" || cfg.SettlementTopic == "" || cfg.SettlementGroupID == "" {
		errs = append(errs, "BookingCreatedTopic, SettlementTopic and SettlementGroupID are required")
	}
	if strings.TrimSpace(cfg.SettlementDLQTopic) == "" {
		errs = append(errs, "SettlementDLQTopic is required, settlements that exhaust their retries are parked there")
	}

	if len(errs) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errs {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"catalog_base_url", cfg.CatalogBaseURL,
		"catalog_timeout", cfg.CatalogTimeout,
		"lock_backend", cfg.LockBackend,
		"lock_ttl", cfg.LockTTL,
		"lock_wait_timeout", cfg.LockWaitTimeout,
		"redis_addr", cfg.RedisAddr,
		"redis_password_set", cfg.RedisPassword != "",
		"create_timeout", cfg.CreateTimeout,
		"publish_timeout", cfg.PublishTimeout,
		"max_stay_nights", cfg.MaxStayNights,
		"booking_created_topic", cfg.BookingCreatedTopic,
		"settlement_topic", cfg.SettlementTopic,
		"settlement_group_id", cfg.SettlementGroupID,
		"settlement_dlq_topic", cfg.SettlementDLQTopic,
		"reconcile_max_attempts", cfg.ReconcileMaxAttempts,
		"outbox_interval", cfg.OutboxInterval,
		"outbox_max_attempts", cfg.OutboxMaxAttempts,
		"otel_endpoint", cfg.OtelEndpoint,
	)
}

var (
	mongoURIRegex   = regexp.MustCompile(`^mongodb(\+srv)?://`)
	credentialRegex = regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
)

func redactMongoURI(uri string) string {
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown()
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
