package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"tradejournal/config"
	"tradejournal/internal/adapters/binanceclient"
	"tradejournal/internal/adapters/logger"
	"tradejournal/internal/adapters/sqlite"
)

func main() {
	userID := flag.Int64("user", 0, "Journal user ID (defaults to USER_ID from config)")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	if !cfg.BrokerConfigured() {
		log.Fatal("FATAL: BROKER_API_KEY and BROKER_API_SECRET must be set for broker sync")
	}
	if *userID == 0 {
		*userID = cfg.UserID
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)

	// 3. Initialize Repository
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer repo.Close()

	// 4. Initialize Broker Client
	broker, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.BrokerAPIKey,
		SecretKey:  cfg.BrokerSecretKey,
		UseTestnet: cfg.BrokerTestnet,
		Logger:     appLogger,
		UserID:     *userID,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize broker client: %v", err)
	}

	// 5. Pull order history for every configured symbol
	ctx := context.Background()
	since := time.Now().UTC().Add(-cfg.SyncLookback)
	total := 0
	for _, symbol := range cfg.SyncSymbols {
		orders, err := broker.FetchFilledOrders(ctx, symbol, since)
		if err != nil {
			appLogger.Error(ctx, err, "Sync failed", map[string]interface{}{"symbol": symbol})
			log.Fatalf("Sync failed for %s: %v", symbol, err)
		}
		for _, o := range orders {
			o.UserID = *userID
		}
		inserted, err := repo.CreateBatch(ctx, orders)
		if err != nil {
			appLogger.Error(ctx, err, "Failed to store synced orders", map[string]interface{}{"symbol": symbol})
			log.Fatalf("Failed to store synced orders for %s: %v", symbol, err)
		}
		fmt.Printf("%s: fetched %d, stored %d new\n", symbol, len(orders), inserted)
		total += inserted
	}
	fmt.Printf("Sync complete: %d new orders for user %d\n", total, *userID)
}
