package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"tradejournal/config"
	"tradejournal/internal/adapters/csvimport"
	"tradejournal/internal/adapters/logger"
	"tradejournal/internal/adapters/sqlite"
)

func main() {
	filePath := flag.String("file", "", "Path to the CSV file of order fills")
	userID := flag.Int64("user", 0, "Journal user ID (defaults to USER_ID from config)")
	flag.Parse()

	if *filePath == "" {
		log.Fatal("FATAL: -file is required")
	}

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
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

	// 4. Run the import
	importer, err := csvimport.New(repo, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize importer: %v", err)
	}

	res, err := importer.ImportFile(context.Background(), *userID, *filePath)
	if err != nil {
		appLogger.Error(context.Background(), err, "Import failed")
		log.Fatalf("Import failed: %v", err)
	}
	fmt.Printf("Imported %d orders (skipped %d) for user %d, batch %s\n", res.Imported, res.Skipped, *userID, res.BatchID)
}
