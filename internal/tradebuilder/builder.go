package tradebuilder

import (
	"context"
	"fmt"
	"sort"
	"time"

	"tradejournal/internal/domain"
	"tradejournal/internal/ports"
)

// Builder reconstructs discrete trades from a user's chronological
// stream of unprocessed order fills. One Run performs a single batch
// pass: all repository reads happen up front, the matching itself is
// pure in-memory computation, and all writes happen at the end.
type Builder struct {
	logger    ports.Logger
	orderRepo ports.OrderRepository
	tradeRepo ports.TradeRepository
	metrics   *metricsCalculator
}

// Config holds configuration for the trade builder.
type Config struct {
	Logger         ports.Logger
	OrderRepo      ports.OrderRepository
	TradeRepo      ports.TradeRepository
	MarketTimezone *time.Location // timezone used for market-session classification
}

// Result summarizes one build run.
type Result struct {
	Trades        []*domain.Trade // Every trade persisted this run
	TradesCreated int             // New trade rows inserted
	TradesUpdated int             // Resumed open trades rewritten on close
	OrdersMatched int             // Orders consumed by the matcher
	OrdersSkipped int             // Malformed orders excluded from matching
}

// New creates a trade builder.
func New(cfg Config) (*Builder, error) {
	if cfg.Logger == nil || cfg.OrderRepo == nil || cfg.TradeRepo == nil {
		return nil, fmt.Errorf("missing required dependencies for trade builder")
	}
	return &Builder{
		logger:    cfg.Logger,
		orderRepo: cfg.OrderRepo,
		tradeRepo: cfg.TradeRepo,
		metrics:   newMetricsCalculator(cfg.MarketTimezone),
	}, nil
}

// Run executes one build pass for a user: seed open positions from
// stored OPEN trades, match every unprocessed order in execution-time
// order, finalize positions still open, then persist the emitted trades
// and link their orders.
//
// Processing is strictly sequential within a user; callers may run
// different users concurrently but must never run the same user twice
// at once. A persistence failure aborts the run mid-loop without
// rollback, so a failed run must be retried whole (the reload step
// makes the retry safe).
func (b *Builder) Run(ctx context.Context, userID int64) (*Result, error) {
	op := "tradebuilder.Run"
	res := &Result{}
	now := time.Now().UTC()

	// --- Load phase ---
	openTrades, err := b.tradeRepo.FindOpenByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load open trades for user %d: %w", userID, err)
	}

	tracker := newPositionTracker()
	for _, t := range openTrades {
		if err := tracker.seedFromOpenTrade(t); err != nil {
			b.logger.Warn(ctx, op+": skipping unusable open trade", map[string]interface{}{
				"userID": userID, "tradeID": t.ID, "symbol": t.Symbol, "reason": err.Error(),
			})
		}
	}

	orders, err := b.orderRepo.FindUnprocessedByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load unprocessed orders for user %d: %w", userID, err)
	}
	b.logger.Info(ctx, op+": starting build pass", map[string]interface{}{
		"userID": userID, "unprocessedOrders": len(orders), "openPositions": len(tracker.positions),
	})

	// --- Match phase (pure in-memory) ---
	var completed []*domain.Trade
	for _, order := range orders {
		if !order.Matchable() {
			// Recovered locally: the order stays stored but unmatched,
			// which understates the user's exposure.
			b.logger.Warn(ctx, op+": skipping malformed order", map[string]interface{}{
				"orderID": order.ID, "symbol": order.Symbol,
				"hasPrice": order.Price > 0, "hasExecutedAt": !order.ExecutedAt.IsZero(),
			})
			res.OrdersSkipped++
			continue
		}
		res.OrdersMatched++
		if trade := matchOrder(tracker, order); trade != nil {
			completed = append(completed, trade)
		}
	}

	// --- Finalization: emit OPEN trades for fresh positions ---
	symbols := tracker.symbols()
	sort.Strings(symbols)
	for _, sym := range symbols {
		pos := tracker.get(sym)
		if pos.IsResumed() {
			// Already exists downstream; emitting again would duplicate it.
			continue
		}
		completed = append(completed, openTrade(pos))
	}

	// --- Persist phase ---
	for _, trade := range completed {
		trade.UserID = userID
		b.metrics.finalize(trade, now)

		if trade.ID != 0 {
			if err := b.tradeRepo.Update(ctx, trade); err != nil {
				return res, fmt.Errorf("failed to update trade %d for user %d: %w", trade.ID, userID, err)
			}
			res.TradesUpdated++
		} else {
			id, err := b.tradeRepo.CreateTrade(ctx, trade)
			if err != nil {
				return res, fmt.Errorf("failed to save trade for user %d symbol %s: %w", userID, trade.Symbol, err)
			}
			trade.ID = id
			res.TradesCreated++
		}

		if err := b.orderRepo.LinkToTrade(ctx, trade.OrderIDs, trade.ID); err != nil {
			return res, fmt.Errorf("failed to link orders to trade %d: %w", trade.ID, err)
		}
		res.Trades = append(res.Trades, trade)

		b.logger.Debug(ctx, op+": trade persisted", map[string]interface{}{
			"tradeID": trade.ID, "symbol": trade.Symbol, "status": trade.Status,
			"side": trade.Side, "pnl": trade.PNL, "orders": trade.OrdersCount,
		})
	}

	b.logger.Info(ctx, op+": build pass finished", map[string]interface{}{
		"userID": userID, "created": res.TradesCreated, "updated": res.TradesUpdated,
		"matched": res.OrdersMatched, "skipped": res.OrdersSkipped,
	})
	return res, nil
}
