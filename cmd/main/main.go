package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/config"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/healthcheck"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/jetstream"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/observer"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/republisher"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/storage"
	"gitlab.com/havenrow/api/lead-lifecycle-service/internal/usecase"
	"gitlab.com/havenrow/api/lead-lifecycle-service/pkg/logger"
	"gitlab.com/havenrow/api/lead-lifecycle-service/pkg/utils"
	"go.uber.org/zap"
)

func main() {
	// Set timezone to UTC
	time.Local = time.UTC

	// Load configuration
	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Initialize Metrics conditionally
	metricsEnabled := cfg.Metrics.Enabled
	observer.InitMetrics(metricsEnabled)

	// Log startup information
	logger.Log.Info("Starting Havenrow Lead Lifecycle Service",
		zap.String("environment", cfg.Environment),
		zap.String("company_id", cfg.Company.ID),
		zap.String("nats_url", cfg.NATS.URL),
	)

	// Initialize repositories
	postgresRepo, err := initPostgresRepo(cfg.Database.PostgresDSN, cfg.Database.PostgresAutoMigrate, cfg.Company.ID)
	if err != nil {
		logger.Log.Fatal("Failed to initialize Postgres repository", zap.Error(err))
	}

	// Initialize JetStream client
	jsClient, err := initJetStreamClient(cfg.NATS.URL)
	if err != nil {
		logger.Log.Fatal("Failed to initialize JetStream client", zap.Error(err))
	}

	// Create repository adapters for the engine
	leadRepo := storage.NewLeadRepoAdapter(postgresRepo)
	visitRepo := storage.NewVisitRepoAdapter(postgresRepo)
	outboxRepo := storage.NewOutboxRepoAdapter(postgresRepo)

	// Create the lifecycle engine
	engine := usecase.NewEngine(cfg, leadRepo, visitRepo, outboxRepo, jsClient)

	// Create sweep worker pool and attach it to the engine
	sweepWorker, err := usecase.NewSweepWorker(cfg.WorkerPools.Sweep, engine, logger.Log)
	if err != nil {
		logger.Log.Fatal("Failed to initialize sweep worker pool", zap.Error(err))
	}
	engine.SetSweepWorker(sweepWorker)

	// Create and set up processor
	processor := usecase.NewProcessor(engine, jsClient, cfg, cfg.Company.ID)
	if err := processor.Setup(); err != nil {
		logger.Log.Fatal("Failed to set up processor", zap.Error(err))
	}

	// Create the outbox republisher
	outboxWorker := republisher.NewWorker(cfg, logger.Log, jsClient, outboxRepo)

	// Create health check server
	healthServer := healthcheck.NewServer(strconv.Itoa(cfg.Server.Port), logger.Log)
	healthServer.RegisterReadinessProbe("postgres", postgresRepo.Ping)
	healthServer.RegisterReadinessProbe("nats", func(ctx context.Context) error {
		if conn := jsClient.NatsConn(); conn == nil || !conn.IsConnected() {
			return errors.New("nats connection is down")
		}
		return nil
	})

	// Register metrics handler if enabled BEFORE starting the server
	if metricsEnabled {
		healthServer.RegisterMetricsHandler(promhttp.Handler())
		logger.Log.Info("Metrics endpoint enabled", zap.String("path", "/metrics"), zap.Int("port", cfg.Server.Port))
	} else {
		logger.Log.Info("Metrics endpoint disabled for environment", zap.String("environment", cfg.Environment))
	}

	// Start health check server (which now might include /metrics)
	healthServer.Start()

	logger.Log.Info("Health check endpoints available",
		zap.String("health", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port)),
		zap.String("readiness", fmt.Sprintf("http://localhost:%d/ready", cfg.Server.Port)),
	)

	// Start processor
	if err := processor.Start(); err != nil {
		logger.Log.Fatal("Failed to start processor", zap.Error(err))
	}

	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	// Start the outbox republisher
	if err := outboxWorker.Start(mainCtx); err != nil {
		logger.Log.Fatal("Failed to start outbox republisher", zap.Error(err))
	}

	// Wait for termination signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Log.Info("Received termination signal", zap.String("signal", sig.String()))

	mainCancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Log.Info("Starting graceful shutdown", zap.Duration("timeout", 30*time.Second))

	// Use WaitGroup to track shutdown of all components
	var wg sync.WaitGroup

	numComponents := 5
	wg.Add(numComponents)

	// Shutdown processor (JetStream consumer)
	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping event processor")
		start := time.Now()
		processor.Stop()
		logger.Log.Info("[shutdown] Event processor stopped",
			zap.Duration("duration", time.Since(start)))
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping event processor",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	// Shutdown outbox republisher
	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping outbox republisher")
		start := time.Now()
		outboxWorker.Stop()
		logger.Log.Info("[shutdown] Outbox republisher stopped",
			zap.Duration("duration", time.Since(start)))
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping outbox republisher",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	// Shutdown sweep worker pool
	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping sweep worker pool")
		start := time.Now()
		sweepWorker.Stop()
		logger.Log.Info("[shutdown] Sweep worker pool stopped",
			zap.Duration("duration", time.Since(start)))
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping sweep worker pool",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	// Shutdown health check server (includes metrics if enabled)
	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping health check server")
		start := time.Now()
		if err := healthServer.Stop(shutdownCtx); err != nil {
			logger.Log.Error("[shutdown] Error stopping health check server", zap.Error(err))
		} else {
			logger.Log.Info("[shutdown] Health check server stopped",
				zap.Duration("duration", time.Since(start)))
		}
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping health check server",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	// Close database and broker connections
	utils.SafeGo(func() {
		defer wg.Done()

		logger.Log.Info("[shutdown] Closing PostgreSQL connection")
		pgStart := time.Now()
		if err := postgresRepo.Close(shutdownCtx); err != nil {
			logger.Log.Error("[shutdown] Failed to close PostgreSQL connection", zap.Error(err))
		} else {
			logger.Log.Info("[shutdown] PostgreSQL connection closed",
				zap.Duration("duration", time.Since(pgStart)))
		}

		logger.Log.Info("[shutdown] Closing JetStream connection")
		jsStart := time.Now()
		jsClient.Close()
		logger.Log.Info("[shutdown] JetStream connection closed",
			zap.Duration("duration", time.Since(jsStart)))
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while closing connections",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	// Wait with a timeout for all components to shut down
	waitCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Log.Info("[shutdown] All components stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Log.Warn("[shutdown] Graceful shutdown timed out, forcing exit")
	}

	logger.Log.Info("Havenrow Lead Lifecycle Service shutdown complete")
}

// Initialize PostgreSQL repository
func initPostgresRepo(dsn string, autoMigrate bool, companyID string) (*storage.PostgresRepo, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	repo, err := storage.NewPostgresRepo(dsn, autoMigrate, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres repository: %w", err)
	}

	logger.Log.Info("Initialized PostgreSQL repository")
	return repo, nil
}

// initJetStreamClient initializes the JetStream client
func initJetStreamClient(url string) (*jetstream.Client, error) {
	client, err := jetstream.NewClient(url)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream client: %w", err)
	}
	// Stream and consumer setup is handled within the processor Setup method
	return client, nil
}
