package domain

import "time"

// OpenPosition is the matcher's working state for one symbol: the net
// exposure accumulated from fills that have not yet closed into a
// trade. At most one OpenPosition exists per symbol at any time, and
// OpenQuantity stays strictly positive while the position is tracked.
type OpenPosition struct {
	Symbol string
	Side   TradeSide

	OpenQuantity int64   // Running net quantity still open
	CostBasis    float64 // Running basis covering OpenQuantity; rescaled on partial closes

	// Cumulative fill aggregates, carried into the emitted trade.
	EntryQuantity int64   // Total entry-side quantity over the position's life
	EntryCost     float64 // Sum of quantity x price for entry-side fills
	ExitQuantity  int64   // Total exit-side quantity matched so far
	ExitProceeds  float64 // Sum of quantity x price for exit-side fills

	OpenTime    time.Time         // Time of the order that created the position
	OrderIDs    []int64           // Orders contributing to the position, in arrival order
	Allocations []OrderAllocation // Partial attributions for split orders

	// ExistingTradeID is set when the position was reloaded from a
	// previously persisted OPEN trade. A resumed position never emits a
	// new trade at finalization; on a full close the stored trade is
	// updated in place instead of creating a duplicate.
	ExistingTradeID int64
}

// IsResumed reports whether the position was reconstructed from a
// previously persisted OPEN trade rather than opened in this run.
func (p *OpenPosition) IsResumed() bool {
	return p.ExistingTradeID != 0
}

// AvgEntryPrice returns the quantity-weighted average price across all
// entry-side fills of the position's life.
func (p *OpenPosition) AvgEntryPrice() float64 {
	if p.EntryQuantity == 0 {
		return 0
	}
	return p.EntryCost / float64(p.EntryQuantity)
}
