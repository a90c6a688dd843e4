package tradebuilder

import (
	"tradejournal/internal/domain"
)

// matchOrder feeds one order fill into the tracker state and returns
// the completed trade if the order fully closed a position, or nil.
//
// Orders must arrive strictly in ascending execution-time order; the
// classification of each order (open / accumulate / close / reverse)
// depends on the exact state left behind by the previous ones.
func matchOrder(tracker *positionTracker, order *domain.Order) *domain.Trade {
	pos := tracker.get(order.Symbol)

	// No tracked position: the order opens a fresh one.
	if pos == nil {
		tracker.set(openPosition(order, order.Quantity, nil))
		return nil
	}

	// Same side as the position: accumulate.
	if order.PositionSide() == pos.Side {
		cost := float64(order.Quantity) * order.Price
		pos.OpenQuantity += order.Quantity
		pos.CostBasis += cost
		pos.EntryQuantity += order.Quantity
		pos.EntryCost += cost
		pos.OrderIDs = append(pos.OrderIDs, order.ID)
		return nil
	}

	// Opposite side: the order closes some, all, or more than all of the
	// open quantity.
	closingQty := order.Quantity
	if pos.OpenQuantity < closingQty {
		closingQty = pos.OpenQuantity
	}
	remainingOrderQty := order.Quantity - closingQty
	remainingPosQty := pos.OpenQuantity - closingQty
	avgEntry := pos.CostBasis / float64(pos.OpenQuantity)

	pos.OrderIDs = append(pos.OrderIDs, order.ID)
	if closingQty < order.Quantity {
		// The order is split: only part of it closes this position.
		pos.Allocations = append(pos.Allocations, domain.OrderAllocation{
			OrderID:            order.ID,
			QuantityAllocated:  closingQty,
			TotalOrderQuantity: order.Quantity,
			Price:              order.Price,
		})
	}
	pos.ExitQuantity += closingQty
	pos.ExitProceeds += float64(closingQty) * order.Price

	var completed *domain.Trade
	if remainingPosQty == 0 {
		completed = closedTrade(pos, order)
		tracker.remove(pos.Symbol)
	} else {
		// Partial close: the average entry price is preserved and the
		// basis rescaled to cover only the remaining quantity.
		pos.OpenQuantity = remainingPosQty
		pos.CostBasis = avgEntry * float64(remainingPosQty)
	}

	// Leftover quantity reverses the position: open a brand-new one on
	// the opposite side, funded by the order's remaining allocation.
	if remainingOrderQty > 0 {
		alloc := &domain.OrderAllocation{
			OrderID:            order.ID,
			QuantityAllocated:  remainingOrderQty,
			TotalOrderQuantity: order.Quantity,
			Price:              order.Price,
		}
		tracker.set(openPosition(order, remainingOrderQty, alloc))
	}

	return completed
}

// openPosition creates a fresh position from an order, using quantity
// qty (the full order quantity, or the leftover of a reversal order).
func openPosition(order *domain.Order, qty int64, alloc *domain.OrderAllocation) *domain.OpenPosition {
	pos := &domain.OpenPosition{
		Symbol:        order.Symbol,
		Side:          order.PositionSide(),
		OpenQuantity:  qty,
		CostBasis:     float64(qty) * order.Price,
		EntryQuantity: qty,
		EntryCost:     float64(qty) * order.Price,
		OpenTime:      order.ExecutedAt,
		OrderIDs:      []int64{order.ID},
	}
	if alloc != nil {
		pos.Allocations = []domain.OrderAllocation{*alloc}
	}
	return pos
}

// closedTrade materializes a CLOSED trade from a fully closed position.
// Derived metrics (pnl, session, holding period) are filled in by the
// metrics calculator afterwards.
func closedTrade(pos *domain.OpenPosition, closing *domain.Order) *domain.Trade {
	return &domain.Trade{
		ID:            pos.ExistingTradeID,
		Symbol:        pos.Symbol,
		Side:          pos.Side,
		Status:        domain.StatusClosed,
		OpenTime:      pos.OpenTime,
		CloseTime:     closing.ExecutedAt,
		AvgEntryPrice: pos.AvgEntryPrice(),
		AvgExitPrice:  pos.ExitProceeds / float64(pos.ExitQuantity),
		OpenQuantity:  pos.EntryQuantity,
		CloseQuantity: pos.ExitQuantity,
		OrderIDs:      append([]int64(nil), pos.OrderIDs...),
		Allocations:   append([]domain.OrderAllocation(nil), pos.Allocations...),
	}
}

// openTrade materializes an OPEN trade for a position still tracked at
// the end of a run. Only fresh positions reach this point; resumed ones
// are skipped at finalization.
func openTrade(pos *domain.OpenPosition) *domain.Trade {
	t := &domain.Trade{
		Symbol:        pos.Symbol,
		Side:          pos.Side,
		Status:        domain.StatusOpen,
		OpenTime:      pos.OpenTime,
		AvgEntryPrice: pos.AvgEntryPrice(),
		OpenQuantity:  pos.EntryQuantity,
		CloseQuantity: pos.ExitQuantity,
		OrderIDs:      append([]int64(nil), pos.OrderIDs...),
		Allocations:   append([]domain.OrderAllocation(nil), pos.Allocations...),
	}
	if pos.ExitQuantity > 0 {
		t.AvgExitPrice = pos.ExitProceeds / float64(pos.ExitQuantity)
	}
	return t
}
