package stats

import (
	"sort"
	"time"

	"tradejournal/internal/domain"
)

// Summary holds journal-level performance statistics derived from a
// user's reconstructed trades. Only CLOSED trades contribute to P&L
// figures; open trades are counted separately.
type Summary struct {
	TotalTrades   int
	ClosedTrades  int
	OpenTrades    int
	WinningTrades int
	LosingTrades  int
	WinRate       float64

	TotalPNL     float64
	AverageWin   float64
	AverageLoss  float64
	ProfitFactor float64 // gross profit / gross loss
	Expectancy   float64 // expected P&L per closed trade

	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
	AverageDuration      time.Duration

	LongTrades     int
	ShortTrades    int
	IntradayTrades int
	SwingTrades    int
}

// Summarize computes journal statistics over a set of trades. Closed
// trades are evaluated in close-time order so the win/loss streaks are
// meaningful.
func Summarize(trades []*domain.Trade) *Summary {
	s := &Summary{}
	if len(trades) == 0 {
		return s
	}

	closed := make([]*domain.Trade, 0, len(trades))
	for _, t := range trades {
		s.TotalTrades++
		if t.Side == domain.Long {
			s.LongTrades++
		} else {
			s.ShortTrades++
		}
		if t.HoldingPeriod == domain.HoldingSwing {
			s.SwingTrades++
		} else {
			s.IntradayTrades++
		}
		if t.IsOpen() {
			s.OpenTrades++
			continue
		}
		closed = append(closed, t)
	}
	s.ClosedTrades = len(closed)
	if len(closed) == 0 {
		return s
	}

	sort.Slice(closed, func(i, j int) bool {
		return closed[i].CloseTime.Before(closed[j].CloseTime)
	})

	var grossProfit, grossLoss float64
	var totalDuration time.Duration
	var streakWins, streakLosses int
	for _, t := range closed {
		s.TotalPNL += t.PNL
		totalDuration += t.CloseTime.Sub(t.OpenTime)

		if t.PNL > 0 {
			s.WinningTrades++
			grossProfit += t.PNL
			streakWins++
			streakLosses = 0
		} else {
			s.LosingTrades++
			grossLoss += -t.PNL
			streakLosses++
			streakWins = 0
		}
		if streakWins > s.MaxConsecutiveWins {
			s.MaxConsecutiveWins = streakWins
		}
		if streakLosses > s.MaxConsecutiveLosses {
			s.MaxConsecutiveLosses = streakLosses
		}
	}

	s.WinRate = float64(s.WinningTrades) / float64(s.ClosedTrades)
	if s.WinningTrades > 0 {
		s.AverageWin = grossProfit / float64(s.WinningTrades)
	}
	if s.LosingTrades > 0 {
		s.AverageLoss = -grossLoss / float64(s.LosingTrades)
	}
	if grossLoss > 0 {
		s.ProfitFactor = grossProfit / grossLoss
	}
	s.Expectancy = (s.WinRate * s.AverageWin) + ((1 - s.WinRate) * s.AverageLoss)
	s.AverageDuration = totalDuration / time.Duration(len(closed))

	return s
}
