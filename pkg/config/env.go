package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvCatalogBaseURL = "CATALOG_BASE_URL"
	EnvCatalogTimeout = "CATALOG_TIMEOUT"

	EnvLockBackend       = "LOCK_BACKEND"
	EnvLockTTL           = "LOCK_TTL"
	EnvLockWaitTimeout   = "LOCK_WAIT_TIMEOUT"
	EnvLockRetryInterval = "LOCK_RETRY_INTERVAL"

	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"

	EnvCreateTimeout      = "CREATE_TIMEOUT"
	EnvPublishTimeout     = "PUBLISH_TIMEOUT"
	EnvMaxStayNights      = "MAX_STAY_NIGHTS"
	EnvDefaultPhoneRegion = "DEFAULT_PHONE_REGION"

	EnvBookingCreatedTopic = "BOOKING_CREATED_TOPIC"
	EnvSettlementTopic     = "SETTLEMENT_TOPIC"
	EnvSettlementGroupID   = "SETTLEMENT_GROUP_ID"
	EnvSettlementDLQTopic  = "SETTLEMENT_DLQ_TOPIC"

	EnvReconcileMaxAttempts    = "RECONCILE_MAX_ATTEMPTS"
	EnvReconcileInitialBackoff = "RECONCILE_INITIAL_BACKOFF"
	EnvReconcileMaxBackoff     = "RECONCILE_MAX_BACKOFF"

	EnvOutboxInterval    = "OUTBOX_INTERVAL"
	EnvOutboxBatchSize   = "OUTBOX_BATCH_SIZE"
	EnvOutboxMaxAttempts = "OUTBOX_MAX_ATTEMPTS"
	EnvOutboxMinAge      = "OUTBOX_MIN_AGE"

	EnvOtelEndpoint    = "OTEL_EXPORTER_ENDPOINT"
	EnvOtelServiceName = "OTEL_SERVICE_NAME"
	EnvOtelInsecure    = "OTEL_EXPORTER_INSECURE"
)
