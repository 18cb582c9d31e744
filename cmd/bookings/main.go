package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"stazy/internal/bookings/handler"
	"stazy/internal/bookings/repository"
	"stazy/internal/bookings/service"
	"stazy/internal/bookings/validator"
	"stazy/internal/catalog"
	"stazy/internal/events"
	"stazy/internal/lock"
	"stazy/internal/outbox"
	"stazy/internal/reconciler"
	"stazy/pkg/app"
	"stazy/pkg/client"
	"stazy/pkg/config"
	"stazy/pkg/contracts"
	"stazy/pkg/kafka"
	kafka_config "stazy/pkg/kafka/config"
	kafka_middleware "stazy/pkg/kafka/middleware"
	"stazy/pkg/observability"

	"golang.org/x/sync/errgroup"
)

const (
	ServiceName    = "bookings"
	ServiceVersion = "1.0.0"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	if cfg.LockBackend == config.LockBackendRedis {
		cfg.SetRedis()
	}
	defer cfg.GracefulShutdown()

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{
		ServiceName:    cfg.OtelServiceName,
		ServiceVersion: ServiceVersion,
		Endpoint:       cfg.OtelEndpoint,
		Insecure:       cfg.OtelInsecure,
	})
	if err != nil {
		cfg.Log.Fatal("Failed to set up tracing", "error", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			cfg.Log.Error("Failed to flush traces", "error", err)
		}
	}()

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)
	metrics := kafka_middleware.NewMetrics()

	producer := initProducer(cfg, kafkaCfg, metrics)
	defer func() {
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close producer", "error", err)
		}
	}()
	publisher := events.NewKafkaPublisher(producer, ServiceName)

	bookingRepo := repository.NewMongoBookingRepository(cfg)
	bookingService := service.NewBookingService(
		bookingRepo,
		lock.NewManager(initLocker(cfg), lock.Options{
			TTL:           cfg.LockTTL,
			WaitTimeout:   cfg.LockWaitTimeout,
			RetryInterval: cfg.LockRetryInterval,
		}, cfg.Log),
		catalog.NewHTTPClient(client.NewHttpClient(cfg.CatalogBaseURL, cfg.CatalogTimeout), cfg.Log),
		publisher,
		validator.NewBookingValidator(cfg.Log),
		cfg,
	)
	cfg.Log.Info("Booking service initialized", "database", cfg.MongoDatabaseName, "lock_backend", cfg.LockBackend)

	consumer := initConsumer(cfg, kafkaCfg, metrics, reconciler.New(bookingRepo, cfg.Log))
	defer func() {
		if err := consumer.Close(); err != nil {
			cfg.Log.Error("Failed to close consumer", "error", err)
		}
	}()

	dispatcher := outbox.NewDispatcher(bookingRepo, publisher, outbox.Options{
		Interval:    cfg.OutboxInterval,
		BatchSize:   cfg.OutboxBatchSize,
		MaxAttempts: cfg.OutboxMaxAttempts,
		MinAge:      cfg.OutboxMinAge,
	}, cfg.Log)

	checks := map[string]handler.Check{"mongo": bookingRepo.Ping}
	if cfg.Client.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return cfg.Client.Redis.Ping(ctx).Err() }
	}
	healthHandler := handler.NewHealthHandler(checks, cfg.Log)
	healthHandler.SetStats(func() any {
		return map[string]any{
			"kafka":           metrics.Snapshot(),
			"consumer_lag":    consumer.Stats().Lag,
			"producer_errors": producer.Stats().Errors,
		}
	})

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(healthHandler, handler.NewBookingHandler(bookingService, cfg.Log))

	cfg.Log.Info("Starting Bookings service")
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range []contracts.Worker{serverApp, dispatcher} {
		g.Go(func() error { return w.Run(gctx) })
	}
	g.Go(func() error { return consumer.Start(gctx) })

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		cfg.Log.Error("Bookings service stopped with error", "error", err)
		return
	}
	cfg.Log.Info("Bookings service stopped")
}

func initLocker(cfg *config.Config) lock.Locker {
	switch cfg.LockBackend {
	case config.LockBackendRedis:
		return lock.NewRedisLocker(cfg.Client.Redis)
	case config.LockBackendMemory:
		cfg.Log.Warn("In-memory lock backend only serializes bookings within this process")
		return lock.NewMemoryLocker()
	default:
		return lock.NewMongoLocker(cfg.Client.Mongo.Database(cfg.MongoDatabaseName))
	}
}

func initProducer(cfg *config.Config, kafkaCfg *kafka_config.Config, metrics *kafka_middleware.Metrics) *kafka.Producer {
	producer, err := kafka.NewProducer(kafkaCfg, cfg.BookingCreatedTopic, "", cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create producer", "topic", cfg.BookingCreatedTopic, "error", err)
	}
	producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	producer.Use(kafka_middleware.MetricsProducerMiddleware(metrics))
	producer.Use(kafka_middleware.TracingProducerMiddleware())
	return producer
}

func initConsumer(cfg *config.Config, kafkaCfg *kafka_config.Config, metrics *kafka_middleware.Metrics, r *reconciler.Reconciler) *kafka.Consumer {
	consumer, err := kafka.NewConsumer(
		kafkaCfg,
		cfg.SettlementTopic,
		cfg.SettlementGroupID,
		cfg.SettlementDLQTopic,
		r.Handle,
		cfg.Log,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create consumer", "topic", cfg.SettlementTopic, "error", err)
	}
	consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
	consumer.Use(kafka_middleware.MetricsConsumerMiddleware(metrics))
	consumer.Use(kafka_middleware.TracingConsumerMiddleware())
	consumer.SetRetryPolicy(kafka.RetryPolicy{
		MaxRetries:     cfg.ReconcileMaxAttempts - 1,
		InitialBackoff: cfg.ReconcileInitialBackoff,
		MaxBackoff:     cfg.ReconcileMaxBackoff,
	})
	return consumer
}
