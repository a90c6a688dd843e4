package ports

import (
	"context"
	"time"

	"tradejournal/internal/domain"
)

// BrokerClient defines the read-only slice of a brokerage API the
// journal needs: listing historical filled orders for ingestion. The
// journal never places or cancels orders.
type BrokerClient interface {
	// FetchFilledOrders returns the account's filled orders for a symbol
	// executed at or after the given time, mapped to domain orders.
	FetchFilledOrders(ctx context.Context, symbol string, since time.Time) ([]*domain.Order, error)
	// Ping verifies connectivity to the broker API.
	Ping(ctx context.Context) error
}
