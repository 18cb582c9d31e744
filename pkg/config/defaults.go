package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "stazy"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 20
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultPaginationLimit = 100

	DefaultCatalogBaseURL = "http://localhost:3001"
	DefaultCatalogTimeout = 3 * time.Second

	LockBackendMongo  = "mongo"
	LockBackendRedis  = "redis"
	LockBackendMemory = "memory"

	DefaultLockBackend       = LockBackendMongo
	DefaultLockTTL           = 10 * time.Second
	DefaultLockWaitTimeout   = 600 * time.Millisecond
	DefaultLockRetryInterval = 200 * time.Millisecond

	DefaultRedisAddr = "localhost:6379"
	DefaultRedisDB   = 0

	DefaultCreateTimeout      = 8 * time.Second
	DefaultPublishTimeout     = 2 * time.Second
	DefaultMaxStayNights      = 90
	DefaultDefaultPhoneRegion = "US"

	// MinResponseHeadroom is the part of RequestTimeout left after
	// CreateTimeout for writing the outcome of a create.
	MinResponseHeadroom = 1 * time.Second

	DefaultBookingCreatedTopic = "booking.created"
	DefaultSettlementTopic     = "payment.successful"
	DefaultSettlementGroupID   = "booking-reconciler"
	DefaultSettlementDLQTopic  = "payment.successful.dlq"

	DefaultReconcileMaxAttempts    = 5
	DefaultReconcileInitialBackoff = 200 * time.Millisecond
	DefaultReconcileMaxBackoff     = 5 * time.Second

	DefaultOutboxInterval    = 15 * time.Second
	DefaultOutboxBatchSize   = 50
	DefaultOutboxMaxAttempts = 10
	DefaultOutboxMinAge      = 10 * time.Second

	DefaultOtelServiceName = "bookings"
)
