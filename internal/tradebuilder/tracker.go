package tradebuilder

import (
	"fmt"

	"tradejournal/internal/domain"
)

// positionTracker holds the single source of truth for a user's open
// exposure during one build run: at most one OpenPosition per symbol.
// The map is owned exclusively by the builder for the duration of the
// run and is never shared across users or goroutines.
type positionTracker struct {
	positions map[string]*domain.OpenPosition
}

func newPositionTracker() *positionTracker {
	return &positionTracker{
		positions: make(map[string]*domain.OpenPosition),
	}
}

// get retrieves the open position for a symbol, or nil.
func (t *positionTracker) get(symbol string) *domain.OpenPosition {
	return t.positions[symbol]
}

// set stores the open position for its symbol.
func (t *positionTracker) set(pos *domain.OpenPosition) {
	t.positions[pos.Symbol] = pos
}

// remove deletes the position for a symbol. Called the instant a
// position fully closes.
func (t *positionTracker) remove(symbol string) {
	delete(t.positions, symbol)
}

// seedFromOpenTrade reconstructs an OpenPosition from a previously
// persisted OPEN trade so a build run is resumable. The position
// carries the stored trade's ID, which finalization uses to avoid
// emitting a duplicate trade.
func (t *positionTracker) seedFromOpenTrade(trade *domain.Trade) error {
	if trade.Status != domain.StatusOpen {
		return fmt.Errorf("trade %d for %s is not open", trade.ID, trade.Symbol)
	}
	if existing := t.positions[trade.Symbol]; existing != nil {
		return fmt.Errorf("duplicate open trade for symbol %s (trades %d and %d)", trade.Symbol, existing.ExistingTradeID, trade.ID)
	}

	remaining := trade.RemainingQuantity
	if remaining <= 0 {
		remaining = trade.OpenQuantity - trade.CloseQuantity
	}
	if remaining <= 0 {
		return fmt.Errorf("open trade %d for %s has no remaining quantity", trade.ID, trade.Symbol)
	}

	pos := &domain.OpenPosition{
		Symbol:          trade.Symbol,
		Side:            trade.Side,
		OpenQuantity:    remaining,
		CostBasis:       trade.AvgEntryPrice * float64(remaining),
		EntryQuantity:   trade.OpenQuantity,
		EntryCost:       trade.AvgEntryPrice * float64(trade.OpenQuantity),
		ExitQuantity:    trade.CloseQuantity,
		ExitProceeds:    trade.AvgExitPrice * float64(trade.CloseQuantity),
		OpenTime:        trade.OpenTime,
		OrderIDs:        append([]int64(nil), trade.OrderIDs...),
		Allocations:     append([]domain.OrderAllocation(nil), trade.Allocations...),
		ExistingTradeID: trade.ID,
	}
	t.positions[trade.Symbol] = pos
	return nil
}

// symbols returns the tracked symbols in unspecified order.
func (t *positionTracker) symbols() []string {
	out := make([]string, 0, len(t.positions))
	for sym := range t.positions {
		out = append(out, sym)
	}
	return out
}
