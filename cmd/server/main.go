package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"stock-ledger-service/internal/api"
	"stock-ledger-service/internal/config"
	"stock-ledger-service/internal/interfaces"
	"stock-ledger-service/internal/kafka"
	redisCache "stock-ledger-service/internal/redis"
	"stock-ledger-service/internal/repository"
	"stock-ledger-service/internal/service"
)

// setupLogging configures structured logging
func setupLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// initializeDatabase sets up and tests the database connection
func initializeDatabase(cfg *config.Config) *sqlx.DB {
	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.DatabaseMaxConns)
	db.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)

	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}

	log.Info().Msg("Database connection established")
	return db
}

// initializeCache sets up the Redis item cache when enabled
func initializeCache(cfg *config.Config) interfaces.CacheRepository {
	if !cfg.RedisEnabled {
		log.Info().Msg("Redis cache disabled")
		return nil
	}

	cache := redisCache.NewCacheClient(
		cfg.RedisAddrs,
		cfg.RedisPassword,
		cfg.RedisClusterMode,
		cfg.RedisTTL,
		cfg.RedisKeyPrefix,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := cache.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}

	log.Info().Msg("Redis connection established")
	return cache
}

// initializeKafka sets up the movements publisher when enabled
func initializeKafka(cfg *config.Config) *kafka.Publisher {
	if !cfg.KafkaEnabled {
		log.Info().Msg("Kafka publishing disabled")
		return nil
	}

	log.Info().Strs("kafka_brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaMovementsTopic).Msg("Initializing Kafka publisher")
	return kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaMovementsTopic)
}

// createServices creates and configures the ledger, catalog, and
// availability services
func createServices(
	items *repository.ItemRepository,
	movements *repository.MovementRepository,
	outbox *repository.OutboxRepository,
	cache interfaces.CacheRepository,
	cfg *config.Config,
) (*service.LedgerService, *service.CatalogService, *service.AvailabilityService) {
	ledger, err := service.NewLedgerService(items, movements, outbox, cache, service.LedgerConfig{
		MaxRetries: cfg.AdjustMaxRetries,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create ledger service")
	}

	catalog, err := service.NewCatalogService(items, service.CatalogConfig{
		DefaultPageSize: cfg.DefaultPageSize,
		MaxPageSize:     cfg.MaxPageSize,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create catalog service")
	}

	availability := service.NewAvailabilityService(items, cache)

	return ledger, catalog, availability
}

// startHTTPServer starts the HTTP server
func startHTTPServer(cfg *config.Config, handler *api.Handler) *http.Server {
	router := handler.SetupRoutes()
	serverAddr := fmt.Sprintf("%s:%s", cfg.ServerAddr, cfg.ServerPort)

	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("address", serverAddr).Msg("Stock ledger HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	}()

	return server
}

// startOutboxWorker starts the movement event delivery loop
func startOutboxWorker(ctx context.Context, publisher *kafka.Publisher, outbox *repository.OutboxRepository, cfg *config.Config) {
	if publisher == nil {
		return
	}

	worker := kafka.NewOutboxWorker(publisher, outbox, kafka.OutboxWorkerConfig{
		LockKey:      cfg.OutboxLockKey,
		BatchSize:    cfg.OutboxBatchSize,
		PollInterval: cfg.OutboxPollInterval,
	})
	go worker.Run(ctx)
}

// gracefulShutdown waits for a signal and drains the HTTP server
func gracefulShutdown(cancel context.CancelFunc, server *http.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down stock ledger service...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Stock ledger service stopped")
}

func main() {
	setupLogging()
	log.Info().Msg("Starting stock ledger service...")

	cfg := config.LoadConfig()

	db := initializeDatabase(cfg)
	defer db.Close()

	cache := initializeCache(cfg)
	if cache != nil {
		defer cache.Close()
	}

	publisher := initializeKafka(cfg)
	if publisher != nil {
		defer publisher.Close()
	}

	items := repository.NewItemRepository(db)
	movements := repository.NewMovementRepository(db)
	outbox := repository.NewOutboxRepository(db)

	ledger, catalog, availability := createServices(items, movements, outbox, cache, cfg)

	handler := api.NewHandler(ledger, catalog, availability, movements, items, api.HandlerConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		MaxPageSize: cfg.MaxPageSize,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := startHTTPServer(cfg, handler)
	startOutboxWorker(ctx, publisher, outbox, cfg)

	log.Info().Str("environment", cfg.Environment).Msg("Stock ledger service started")

	gracefulShutdown(cancel, server)
}
