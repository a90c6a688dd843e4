package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up

	"tradejournal/config"
	"tradejournal/internal/adapters/binanceclient"
	"tradejournal/internal/adapters/logger"
	"tradejournal/internal/adapters/sqlite"
	"tradejournal/internal/app"
	"tradejournal/internal/ports"
	"tradejournal/internal/tradebuilder"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()

	// 4. Initialize Broker Client (optional: CSV-only journals run without one)
	var broker ports.BrokerClient
	if cfg.BrokerConfigured() {
		brokerClient, err := binanceclient.New(binanceclient.Config{
			APIKey:     cfg.BrokerAPIKey,
			SecretKey:  cfg.BrokerSecretKey,
			UseTestnet: cfg.BrokerTestnet,
			Logger:     appLogger,
			UserID:     cfg.UserID,
		})
		if err != nil {
			appLogger.Error(context.Background(), err, "FATAL: Failed to initialize broker client")
			log.Fatalf("FATAL: Failed to initialize broker client: %v", err)
		}
		broker = brokerClient
		appLogger.Info(context.Background(), "Broker client initialized")
	} else {
		appLogger.Info(context.Background(), "No broker credentials configured, running on CSV imports only")
	}

	// 5. Initialize Trade Builder
	builder, err := tradebuilder.New(tradebuilder.Config{
		Logger:         appLogger,
		OrderRepo:      repo,
		TradeRepo:      repo,
		MarketTimezone: cfg.MarketTimezone,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize trade builder")
		log.Fatalf("FATAL: Failed to initialize trade builder: %v", err)
	}

	// 6. Initialize Application Service
	journal, err := app.NewJournalService(cfg, appLogger, repo, repo, broker, builder)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize journal service")
		log.Fatalf("FATAL: Failed to initialize journal service: %v", err)
	}
	appLogger.Info(context.Background(), "Journal service initialized")

	// 7. Start the Service
	if err := journal.Start(context.Background()); err != nil {
		appLogger.Error(context.Background(), err, "Journal service exited with error")
		log.Fatalf("FATAL: Journal service exited with error: %v", err)
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
