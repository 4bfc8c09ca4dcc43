package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	inventoryapp "github.com/erp/stockledger/internal/application/inventory"
	tradeapp "github.com/erp/stockledger/internal/application/trade"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/erp/stockledger/internal/infrastructure/cache"
	"github.com/erp/stockledger/internal/infrastructure/config"
	"github.com/erp/stockledger/internal/infrastructure/event"
	"github.com/erp/stockledger/internal/infrastructure/logger"
	"github.com/erp/stockledger/internal/infrastructure/persistence"
	"github.com/erp/stockledger/internal/infrastructure/scheduler"
	"github.com/erp/stockledger/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const shutdownTimeout = 30 * time.Second

// stopper is anything started by the worker that must be stopped on shutdown
type stopper struct {
	name string
	stop func(context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cfg.Log.Output,
		TimeFormat:  "2006-01-02T15:04:05.000Z07:00",
		ServiceName: cfg.App.Name,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Worker exited with error", zap.Error(err))
		_ = logger.Sync(log)
		os.Exit(1)
	}
	log.Info("Worker exited gracefully")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	log.Info("Starting stock ledger worker",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("database_driver", cfg.Database.Driver),
	)

	var stoppers []stopper
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// reverse start order
		for i := len(stoppers) - 1; i >= 0; i-- {
			if err := stoppers[i].stop(shutdownCtx); err != nil {
				log.Error("Error during shutdown", zap.String("component", stoppers[i].name), zap.Error(err))
			}
		}
	}()

	// Telemetry
	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return fmt.Errorf("tracer provider: %w", err)
	}
	stoppers = append(stoppers, stopper{"tracer", tp.Shutdown})

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:              cfg.Profiling.Enabled,
		ServerAddress:        cfg.Profiling.ServerAddress,
		ApplicationName:      cfg.Telemetry.ServiceName,
		BasicAuthUser:        cfg.Profiling.BasicAuthUser,
		BasicAuthPassword:    cfg.Profiling.BasicAuthPassword,
		ProfileMutex:         cfg.Profiling.ProfileMutex,
		ProfileBlock:         cfg.Profiling.ProfileBlock,
		MutexProfileFraction: cfg.Profiling.MutexProfileFraction,
		BlockProfileRate:     cfg.Profiling.BlockProfileRate,
	}, log)
	if err != nil {
		return fmt.Errorf("profiler: %w", err)
	}
	stoppers = append(stoppers, stopper{"profiler", func(context.Context) error { return profiler.Stop() }})
	if profiler.IsEnabled() && cfg.Profiling.SpanProfiles {
		tp.EnableSpanProfiles()
	}

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return fmt.Errorf("meter provider: %w", err)
	}
	stoppers = append(stoppers, stopper{"meter", mp.Shutdown})

	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return fmt.Errorf("logger provider: %w", err)
	}
	stoppers = append(stoppers, stopper{"logs", lp.Shutdown})
	if lp.IsEnabled() {
		log = lp.Bridge(log, zapcore.InfoLevel)
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		return err
	}
	stoppers = append(stoppers, stopper{"database", func(context.Context) error { return db.Close() }})
	if cfg.Database.Driver == "sqlite" {
		if err := db.AutoMigrate(); err != nil {
			return fmt.Errorf("sqlite schema: %w", err)
		}
	}
	log.Info("Database connected")

	meter := mp.Meter("stockledger")
	dbInst, err := telemetry.InstrumentDB(ctx, db.DB, meter, telemetry.DBConfig{
		TraceEnabled:       cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		MetricsEnabled:     mp.IsEnabled(),
		LogFullSQL:         cfg.Telemetry.DBLogFullSQL,
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
	}, log)
	if err != nil {
		return fmt.Errorf("database instrumentation: %w", err)
	}
	if dbInst != nil {
		stoppers = append(stoppers, stopper{"db_instrumentation", func(context.Context) error {
			dbInst.Stop()
			return nil
		}})
	}

	stockMetrics, err := telemetry.NewStockMetrics(telemetry.StockMetricsConfig{
		Meter:    meter,
		Logger:   log,
		Provider: telemetry.NewGormStockMetricsProvider(db.DB),
	})
	if err != nil {
		return fmt.Errorf("stock metrics: %w", err)
	}
	if mp.IsEnabled() {
		stockMetrics.StartPeriodicCollection(ctx, cfg.Telemetry.MetricsInterval)
		stoppers = append(stoppers, stopper{"stock_metrics", func(context.Context) error {
			stockMetrics.Stop()
			return nil
		}})
	}

	// Cache and idempotency
	cacheFactory := cache.NewFactory(cfg.Redis, cfg.Cache, cache.WithLogger(log))
	stoppers = append(stoppers, stopper{"redis", func(context.Context) error { return cacheFactory.Close() }})
	idempotencyStore, err := cacheFactory.CreateIdempotencyStore()
	if err != nil {
		return err
	}
	availabilityCache, err := cacheFactory.CreateAvailabilityCache()
	if err != nil {
		return err
	}

	// Application services
	serializer := event.NewRegisteredSerializer()
	txScope := persistence.NewGormTransactionScope(db.DB,
		event.NewOutboxPublisher(serializer).WithMaxRetries(cfg.Event.MaxRetries))

	expiration := inventoryapp.NewReservationExpirationService(txScope, log)
	expiration.SetBatchSize(cfg.Reservation.SweepBatchSize)
	expiration.SetCache(availabilityCache)
	expiration.SetStockMetrics(stockMetrics)

	purchaseOrders := tradeapp.NewPurchaseOrderService(txScope, log)
	purchaseOrders.SetCache(availabilityCache)
	purchaseOrders.SetStockMetrics(stockMetrics)

	alertHandler := inventoryapp.NewStockAlertHandler(txScope, log).
		WithNotifier(inventoryapp.NewLoggingStockAlertNotifier(log)).
		WithCache(availabilityCache).
		WithStockMetrics(stockMetrics)

	// Event delivery
	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(event.NewIdempotentHandler(alertHandler, idempotencyStore, log,
		event.WithIdempotencyConfig(idempotencyConfig(cfg.Event)),
		event.WithHandlerName("stock_alerts")))
	if cfg.Event.Kafka.Enabled {
		writer, err := event.NewKafkaWriter(event.KafkaRelayConfig{
			Brokers:  cfg.Event.Kafka.Brokers,
			Topic:    cfg.Event.Kafka.Topic,
			ClientID: cfg.App.Name,
		})
		if err != nil {
			return err
		}
		relay := event.NewKafkaRelay(writer, serializer, log)
		eventBus.Subscribe(event.NewIdempotentHandler(relay, idempotencyStore, log,
			event.WithIdempotencyConfig(idempotencyConfig(cfg.Event)),
			event.WithHandlerName("kafka_relay")))
		stoppers = append(stoppers, stopper{"kafka_relay", func(context.Context) error { return relay.Close() }})
	}
	if err := eventBus.Start(ctx); err != nil {
		return fmt.Errorf("event bus: %w", err)
	}
	stoppers = append(stoppers, stopper{"event_bus", eventBus.Stop})

	if cfg.Event.ProcessorEnabled {
		processor := event.NewOutboxProcessor(
			event.NewGormOutboxRepository(db.DB),
			eventBus,
			serializer,
			event.OutboxProcessorConfigFrom(cfg.Event),
			log,
		).WithObserver(stockMetrics)
		if err := processor.Start(ctx); err != nil {
			return fmt.Errorf("outbox processor: %w", err)
		}
		stoppers = append(stoppers, stopper{"outbox_processor", processor.Stop})
	}

	// Background jobs
	dispatcher := scheduler.NewDispatcher()
	dispatcher.Register(scheduler.JobKindReservationExpiry,
		scheduler.NewReservationExpiryExecutor(expiration, log))
	dispatcher.Register(scheduler.JobKindOverduePurchaseOrders,
		scheduler.NewOverduePurchaseOrderExecutor(purchaseOrders, cfg.Monitor.OverdueBatchSize, log).
			WithRecorder(stockMetrics))

	labeled := scheduler.ExecutorFunc(func(ctx context.Context, job *scheduler.Job) error {
		var err error
		telemetry.WithProfilingLabels(ctx, map[string]string{telemetry.ProfilingLabelJob: string(job.Kind)},
			func(ctx context.Context) { err = dispatcher.Execute(ctx, job) })
		return err
	})
	jobs := scheduler.NewScheduler(scheduler.DefaultSchedulerConfig(), labeled, log)
	if err := jobs.Start(ctx); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	stoppers = append(stoppers, stopper{"scheduler", jobs.Stop})

	triggers := []struct {
		enabled bool
		config  scheduler.IntervalTriggerConfig
	}{
		{cfg.Reservation.AutoExpireEnabled, scheduler.IntervalTriggerConfig{
			Kind:       scheduler.JobKindReservationExpiry,
			Interval:   cfg.Reservation.SweepInterval,
			RunOnStart: true,
		}},
		{cfg.Monitor.OverdueEnabled, scheduler.IntervalTriggerConfig{
			Kind:     scheduler.JobKindOverduePurchaseOrders,
			Interval: cfg.Monitor.OverdueInterval,
		}},
	}
	for _, t := range triggers {
		if !t.enabled {
			log.Info("Background job disabled", zap.String("kind", string(t.config.Kind)))
			continue
		}
		trigger, err := scheduler.NewIntervalTrigger(t.config, jobs, log)
		if err != nil {
			return err
		}
		if err := trigger.Start(ctx); err != nil {
			return err
		}
		stoppers = append(stoppers, stopper{"trigger_" + string(t.config.Kind), trigger.Stop})
	}

	log.Info("Stock ledger worker running")
	<-ctx.Done()
	log.Info("Shutdown signal received")
	return nil
}

func idempotencyConfig(cfg config.EventConfig) shared.IdempotencyConfig {
	c := shared.DefaultIdempotencyConfig()
	if cfg.IdempotencyTTL > 0 {
		c.TTL = cfg.IdempotencyTTL
	}
	return c
}
