package tradebuilder

import (
	"math"
	"time"

	"tradejournal/internal/domain"
)

// metricsCalculator derives the reporting fields of an emitted trade:
// realized P&L, duration, market-session and holding-period
// classification, cost basis and proceeds.
type metricsCalculator struct {
	loc *time.Location // exchange timezone for session classification
}

func newMetricsCalculator(loc *time.Location) *metricsCalculator {
	if loc == nil {
		loc = time.UTC
	}
	return &metricsCalculator{loc: loc}
}

// finalize fills in every derived field of a trade produced by the
// matcher. now anchors the duration of still-open trades; one value is
// captured per run so all trades in a run agree on it.
func (m *metricsCalculator) finalize(t *domain.Trade, now time.Time) {
	t.OrdersCount = len(t.OrderIDs)
	t.Executions = len(t.OrderIDs)

	// Total order quantity consumed by the trade. Split orders count
	// only their allocated portion, which is exactly what the entry and
	// exit aggregates already hold.
	t.Quantity = t.OpenQuantity + t.CloseQuantity

	t.CostBasis = roundCents(t.AvgEntryPrice * float64(t.OpenQuantity))
	t.Proceeds = roundCents(t.AvgExitPrice * float64(t.CloseQuantity))

	if t.Status == domain.StatusClosed {
		t.PNL = realizedPNL(t.Side, t.AvgEntryPrice, t.AvgExitPrice, t.CloseQuantity)
		t.RemainingQuantity = 0
		t.TimeInTrade = int64(t.CloseTime.Sub(t.OpenTime).Seconds())
	} else {
		t.PNL = 0
		t.RemainingQuantity = t.OpenQuantity - t.CloseQuantity
		t.TimeInTrade = int64(now.Sub(t.OpenTime).Seconds())
	}

	t.MarketSession = classifySession(t.OpenTime, m.loc)
	t.HoldingPeriod = classifyHolding(t.OpenTime, t.CloseTime)
}

// realizedPNL computes the side-dependent profit over the actual closed
// quantity, rounded to the cent.
func realizedPNL(side domain.TradeSide, avgEntry, avgExit float64, closeQty int64) float64 {
	var perShare float64
	if side == domain.Long {
		perShare = avgExit - avgEntry
	} else {
		perShare = avgEntry - avgExit
	}
	return roundCents(perShare * float64(closeQty))
}

// classifySession buckets the open time by its clock time in the
// exchange timezone: before 09:30 is pre-market, 09:30 through 16:00
// is the regular session, later is after hours.
func classifySession(openTime time.Time, loc *time.Location) domain.MarketSession {
	local := openTime.In(loc)
	minutes := local.Hour()*60 + local.Minute()
	switch {
	case minutes < 9*60+30:
		return domain.SessionPreMarket
	case minutes <= 16*60:
		return domain.SessionRegular
	default:
		return domain.SessionAfterHours
	}
}

// classifyHolding labels a trade INTRADAY when it closed within 24
// hours of opening. Still-open trades default to INTRADAY.
func classifyHolding(openTime, closeTime time.Time) domain.HoldingPeriod {
	if closeTime.IsZero() {
		return domain.HoldingIntraday
	}
	if closeTime.Sub(openTime) <= 24*time.Hour {
		return domain.HoldingIntraday
	}
	return domain.HoldingSwing
}

// roundCents rounds a monetary value to 2 decimal places.
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
