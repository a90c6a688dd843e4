package ports

import (
	"context"

	"tradejournal/internal/domain"
)

// OrderRepository defines the interface for storing and retrieving raw order fills.
type OrderRepository interface {
	// Create saves a new order and returns its assigned ID.
	Create(ctx context.Context, order *domain.Order) (int64, error)
	// CreateBatch saves a batch of orders in one transaction. Orders that
	// duplicate an already stored broker order ID are silently skipped;
	// the number of rows actually inserted is returned.
	CreateBatch(ctx context.Context, orders []*domain.Order) (int, error)
	// FindUnprocessedByUser retrieves all of a user's orders not yet linked
	// to any trade, ordered by execution time ascending.
	FindUnprocessedByUser(ctx context.Context, userID int64) ([]*domain.Order, error)
	// FindByIDs retrieves orders by their unique IDs.
	FindByIDs(ctx context.Context, ids []int64) ([]*domain.Order, error)
	// LinkToTrade links every given order to the trade that consumed it.
	// Linking is idempotent: re-linking an already linked pair is a no-op,
	// and an order split across two trades keeps both links.
	LinkToTrade(ctx context.Context, orderIDs []int64, tradeID int64) error
}

// TradeRepository defines the interface for storing and retrieving reconstructed trades.
type TradeRepository interface {
	// Create saves a new trade record (including its allocations) and
	// returns its assigned ID.
	CreateTrade(ctx context.Context, trade *domain.Trade) (int64, error)
	// Update rewrites an existing trade record in place, used when a
	// position resumed from a stored OPEN trade closes or grows.
	Update(ctx context.Context, trade *domain.Trade) error
	// FindOpenByUser retrieves all OPEN trades for a user, used to seed the
	// position tracker at the start of a build run.
	FindOpenByUser(ctx context.Context, userID int64) ([]*domain.Trade, error)
	// FindByUser retrieves all trades for a user, most recently opened first.
	FindByUser(ctx context.Context, userID int64) ([]*domain.Trade, error)
}
