package domain

import "time"

// OrderSide represents the side of an order fill (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// Order is a single raw order fill ingested from a CSV upload or a
// broker sync. Orders are read-only inputs to the trade builder.
type Order struct {
	ID            int64     // Unique identifier (assigned by the DB)
	UserID        int64     // Owner of the order
	Symbol        string    // Ticker symbol (e.g., "AAPL")
	Side          OrderSide // BUY or SELL
	Quantity      int64     // Filled quantity, always positive
	Price         float64   // Fill price (0 if the source did not report one)
	ExecutedAt    time.Time // Execution timestamp (zero value if unknown)
	BrokerOrderID string    // Order ID at the brokerage, empty for CSV imports
	ImportBatchID string    // CSV upload batch this order arrived in, empty for broker syncs
	CreatedAt     time.Time // Ingestion timestamp
}

// Matchable reports whether the order carries enough data to take part
// in trade matching. Orders missing an execution time or price are
// stored but never matched.
func (o *Order) Matchable() bool {
	return o.Quantity > 0 && o.Price > 0 && !o.ExecutedAt.IsZero()
}

// PositionSide maps the order side to the side of the position it
// opens or grows (BUY opens LONG, SELL opens SHORT).
func (o *Order) PositionSide() TradeSide {
	if o.Side == Buy {
		return Long
	}
	return Short
}
