package domain

import "time"

// TradeSide represents the direction of a reconstructed trade.
type TradeSide string

const (
	Long  TradeSide = "LONG"
	Short TradeSide = "SHORT"
)

// TradeStatus represents the lifecycle status of a trade.
type TradeStatus string

const (
	StatusOpen   TradeStatus = "OPEN"
	StatusClosed TradeStatus = "CLOSED"
)

// HoldingPeriod classifies a trade by its duration.
type HoldingPeriod string

const (
	HoldingIntraday HoldingPeriod = "INTRADAY" // closed within 24h, or still open
	HoldingSwing    HoldingPeriod = "SWING"    // held longer than 24h
)

// MarketSession classifies the clock time at which a trade was opened.
type MarketSession string

const (
	SessionPreMarket  MarketSession = "PRE_MARKET"  // before 09:30
	SessionRegular    MarketSession = "REGULAR"     // 09:30 - 16:00
	SessionAfterHours MarketSession = "AFTER_HOURS" // after 16:00
)

// OrderAllocation records the portion of a single order's quantity
// attributed to one trade. Allocations exist only for orders whose full
// quantity is not wholly owned by the trade, i.e. orders that were
// split between a closing trade and the reversal position they opened.
// For any split order, the allocated quantities across all trades sum
// to the order's original quantity.
type OrderAllocation struct {
	OrderID            int64   // The split order
	QuantityAllocated  int64   // Portion consumed by this trade
	TotalOrderQuantity int64   // The order's original full quantity
	Price              float64 // The order's fill price
}

// Trade is a reconstructed round-trip (or still-open) position derived
// from one or more order fills.
type Trade struct {
	ID            int64       // Unique identifier (assigned by the DB)
	UserID        int64       // Owner of the trade
	Symbol        string      // Ticker symbol
	Side          TradeSide   // LONG or SHORT
	Status        TradeStatus // OPEN or CLOSED
	OpenTime      time.Time   // Time of the order that opened the position
	CloseTime     time.Time   // Time of the order that fully closed it (zero while open)
	AvgEntryPrice float64     // Quantity-weighted average entry price
	AvgExitPrice  float64     // Quantity-weighted average exit price (0 until any exit fill)
	OpenQuantity  int64       // Total quantity entered over the trade's life
	CloseQuantity int64       // Total quantity exited
	PNL           float64     // Realized profit/loss rounded to cents, 0 while open

	// Derived reporting fields.
	OrdersCount       int           // Number of distinct orders in the trade
	Executions        int           // Number of fills consumed
	Quantity          int64         // Total order quantity consumed, allocation-aware
	TimeInTrade       int64         // Seconds between open and close (or "now" while open)
	RemainingQuantity int64         // Still-open quantity (0 once closed)
	MarketSession     MarketSession // Session classification of OpenTime
	HoldingPeriod     HoldingPeriod // INTRADAY or SWING
	CostBasis         float64       // AvgEntryPrice x OpenQuantity
	Proceeds          float64       // AvgExitPrice x CloseQuantity

	OrderIDs    []int64           // Orders that contributed fills, in arrival order
	Allocations []OrderAllocation // Partial-quantity attributions for split orders
}

// IsOpen checks if the trade status is open.
func (t *Trade) IsOpen() bool {
	return t.Status == StatusOpen
}
