package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/techSaswata/sebi-bondTokenizer/internal/config"
	"github.com/techSaswata/sebi-bondTokenizer/internal/data/mongo"
	"github.com/techSaswata/sebi-bondTokenizer/internal/data/postgres"
	"github.com/techSaswata/sebi-bondTokenizer/internal/logger"
	"github.com/techSaswata/sebi-bondTokenizer/internal/platform/ledger"
	"github.com/techSaswata/sebi-bondTokenizer/internal/platform/messaging/consumers"
	"github.com/techSaswata/sebi-bondTokenizer/internal/platform/messaging/producers"
	"github.com/techSaswata/sebi-bondTokenizer/internal/platform/persistence"
	"github.com/techSaswata/sebi-bondTokenizer/internal/reconciler"
	"github.com/techSaswata/sebi-bondTokenizer/internal/service"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("reconciler")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Reconciler",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	marketRepo := postgres.NewMarketRepository(log, postgresDB)
	transactionRepo := mongo.NewTransactionRepository(log, mongoDB.Database())
	if err := transactionRepo.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to ensure transaction indexes", "error", err)
		os.Exit(1)
	}

	// Initialize ledger RPC client
	ledgerClient := ledger.NewClient(log, &cfg.Ledger)

	// Initialize services
	registry := service.NewMarketRegistry(log, marketRepo, ledgerClient)
	txnLedger := service.NewTransactionLedger(log, transactionRepo, registry)

	// Initialize Kafka alert producer
	alertProducer, err := producers.NewAlertProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize alert Kafka producer", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka settlement event consumer
	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)
	settlementHandler := reconciler.NewSettlementEventHandler(log, transactionRepo, txnLedger)

	// Initialize reconciliation engine
	engine, err := reconciler.NewEngine(
		log,
		cfg,
		marketRepo,
		transactionRepo,
		txnLedger,
		ledgerClient,
		alertProducer,
	)
	if err != nil {
		log.Error("Failed to initialize reconciliation engine", "error", err)
		os.Exit(1)
	}

	// Create error channel for service errors
	errChan := make(chan error, 2)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	// Start Kafka consumer in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting settlement event consumer",
			"topic", cfg.Kafka.SettlementTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kafkaConsumer.Subscribe(appCtx, cfg.Kafka.SettlementTopic, cfg.Kafka.ConsumerGroup, settlementHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
		}
	}()

	// Start reconciliation engine in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		engine.Start(appCtx)
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	engine.Shutdown()

	// Wait for all goroutines to finish
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	if err = alertProducer.Close(); err != nil {
		log.Error("Error closing alert Kafka producer", "error", err)
	}

	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serviceErr != nil {
		log.Error("Reconciler shutdown with errors", "error", serviceErr)
	}
	if err != nil {
		log.Error("Reconciler shutdown completed with errors")
	} else {
		log.Info("Reconciler shutdown completed successfully")
	}
}
