package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradejournal/config"
	"tradejournal/internal/adapters/csvimport"
	"tradejournal/internal/ports"
	"tradejournal/internal/stats"
	"tradejournal/internal/tradebuilder"
)

// JournalService orchestrates the trading journal: order ingestion
// (CSV uploads and broker syncs), trade reconstruction, and reporting.
type JournalService struct {
	cfg       *config.Config
	logger    ports.Logger
	orderRepo ports.OrderRepository
	tradeRepo ports.TradeRepository
	broker    ports.BrokerClient // nil when no broker account is connected
	builder   *tradebuilder.Builder
	importer  *csvimport.Importer
}

// NewJournalService creates a new application service instance. The
// broker client is optional; every other dependency is required.
func NewJournalService(
	cfg *config.Config,
	logger ports.Logger,
	orderRepo ports.OrderRepository,
	tradeRepo ports.TradeRepository,
	broker ports.BrokerClient,
	builder *tradebuilder.Builder,
) (*JournalService, error) {
	if cfg == nil || logger == nil || orderRepo == nil || tradeRepo == nil || builder == nil {
		return nil, fmt.Errorf("missing required dependencies for JournalService")
	}
	if cfg.BuildInterval <= 0 {
		return nil, fmt.Errorf("configuration BuildInterval must be positive")
	}

	importer, err := csvimport.New(orderRepo, logger)
	if err != nil {
		return nil, err
	}

	return &JournalService{
		cfg:       cfg,
		logger:    logger,
		orderRepo: orderRepo,
		tradeRepo: tradeRepo,
		broker:    broker,
		builder:   builder,
		importer:  importer,
	}, nil
}

// ImportCSV ingests a CSV upload of order fills for a user.
func (s *JournalService) ImportCSV(ctx context.Context, userID int64, r io.Reader) (*csvimport.Result, error) {
	return s.importer.Import(ctx, userID, r)
}

// ImportCSVFile ingests a CSV file of order fills for a user.
func (s *JournalService) ImportCSVFile(ctx context.Context, userID int64, path string) (*csvimport.Result, error) {
	return s.importer.ImportFile(ctx, userID, path)
}

// SyncBrokerOrders pulls filled orders from the connected brokerage for
// every configured symbol and stores them as unprocessed orders.
// Duplicate broker orders are skipped by the repository.
func (s *JournalService) SyncBrokerOrders(ctx context.Context, userID int64) (int, error) {
	op := "SyncBrokerOrders"
	if s.broker == nil {
		return 0, fmt.Errorf("no broker account connected: %w", ports.ErrConfigurationError)
	}

	since := time.Now().UTC().Add(-s.cfg.SyncLookback)
	total := 0
	for _, symbol := range s.cfg.SyncSymbols {
		orders, err := s.broker.FetchFilledOrders(ctx, symbol, since)
		if err != nil {
			return total, fmt.Errorf("broker sync failed for symbol %s: %w", symbol, err)
		}
		for _, o := range orders {
			o.UserID = userID
		}
		inserted, err := s.orderRepo.CreateBatch(ctx, orders)
		if err != nil {
			return total, fmt.Errorf("failed to store synced orders for symbol %s: %w", symbol, err)
		}
		total += inserted
		s.logger.Info(ctx, op+": symbol synced", map[string]interface{}{
			"userID": userID, "symbol": symbol, "fetched": len(orders), "stored": inserted,
		})
	}
	return total, nil
}

// BuildTrades runs one trade reconstruction pass for a user and logs a
// refreshed journal summary afterwards.
func (s *JournalService) BuildTrades(ctx context.Context, userID int64) (*tradebuilder.Result, error) {
	op := "BuildTrades"
	res, err := s.builder.Run(ctx, userID)
	if err != nil {
		s.logger.Error(ctx, err, op+": build pass failed", map[string]interface{}{"userID": userID})
		return res, err
	}

	trades, err := s.tradeRepo.FindByUser(ctx, userID)
	if err != nil {
		// Reporting is best-effort; the build itself already succeeded.
		s.logger.Warn(ctx, op+": failed to load trades for summary", map[string]interface{}{"userID": userID, "error": err.Error()})
		return res, nil
	}
	summary := stats.Summarize(trades)
	s.logger.Info(ctx, op+": journal summary", map[string]interface{}{
		"userID":       userID,
		"totalTrades":  summary.TotalTrades,
		"openTrades":   summary.OpenTrades,
		"winRate":      summary.WinRate,
		"totalPNL":     summary.TotalPNL,
		"profitFactor": summary.ProfitFactor,
	})
	return res, nil
}

// Summary computes journal statistics over all of a user's trades.
func (s *JournalService) Summary(ctx context.Context, userID int64) (*stats.Summary, error) {
	trades, err := s.tradeRepo.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trades for user %d: %w", userID, err)
	}
	return stats.Summarize(trades), nil
}

// Start runs the journal in long-running mode: an immediate sync+build
// for the configured user, then one per BuildInterval until the context
// is cancelled or a termination signal arrives.
func (s *JournalService) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting Journal Service...", map[string]interface{}{
		"userID": s.cfg.UserID, "interval": s.cfg.BuildInterval.String(), "brokerSync": s.broker != nil,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
		cancel()
	}()

	ticker := time.NewTicker(s.cfg.BuildInterval)
	defer ticker.Stop()

	for {
		s.runCycle(ctx)
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Journal Service stopped.")
			return nil
		case <-ticker.C:
		}
	}
}

// runCycle performs one sync+build pass, logging failures without
// stopping the service; the next tick retries the whole run.
func (s *JournalService) runCycle(ctx context.Context) {
	if s.broker != nil {
		if _, err := s.SyncBrokerOrders(ctx, s.cfg.UserID); err != nil {
			s.logger.Error(ctx, err, "Broker sync failed, building from stored orders only")
		}
	}
	if _, err := s.BuildTrades(ctx, s.cfg.UserID); err != nil {
		s.logger.Error(ctx, err, "Trade build failed; run will be retried next cycle")
	}
}
