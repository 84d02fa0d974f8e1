package usecase

import "github.com/kimjunyun7/binance-futures/internal/domain"

// Summarize aggregates realized performance over closed positions.
// Open positions in the input are skipped. An empty input yields the
// zero Stats with WinRate 0, no division happens.
func Summarize(positions []*domain.Position) domain.Stats {
	var s domain.Stats
	var winPctSum, lossPctSum, pctSum float64

	for _, p := range positions {
		if p == nil || p.Status != domain.StatusClosed {
			continue
		}
		if s.TotalTrades == 0 {
			s.MaxProfitPercent = p.RealizedPnLPercent
			s.MaxLossPercent = p.RealizedPnLPercent
		}
		s.TotalTrades++
		s.TotalPnL += p.RealizedPnL
		pctSum += p.RealizedPnLPercent

		if p.RealizedPnLPercent > s.MaxProfitPercent {
			s.MaxProfitPercent = p.RealizedPnLPercent
		}
		if p.RealizedPnLPercent < s.MaxLossPercent {
			s.MaxLossPercent = p.RealizedPnLPercent
		}

		switch {
		case p.RealizedPnL > 0:
			s.WinningTrades++
			winPctSum += p.RealizedPnLPercent
		case p.RealizedPnL < 0:
			s.LosingTrades++
			lossPctSum += p.RealizedPnLPercent
		}
	}

	if s.TotalTrades > 0 {
		s.AvgPnLPercent = pctSum / float64(s.TotalTrades)
		s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades) * 100
	}
	if s.WinningTrades > 0 {
		s.AvgWinPercent = winPctSum / float64(s.WinningTrades)
	}
	if s.LosingTrades > 0 {
		s.AvgLossPercent = lossPctSum / float64(s.LosingTrades)
	}
	return s
}

// SummarizeBySide builds the overall stats plus a per-direction
// breakdown, so long and short performance can be compared.
func SummarizeBySide(positions []*domain.Position) *domain.PerformanceReport {
	bySide := make(map[domain.Side][]*domain.Position)
	for _, p := range positions {
		if p == nil || p.Status != domain.StatusClosed {
			continue
		}
		bySide[p.Side] = append(bySide[p.Side], p)
	}

	report := &domain.PerformanceReport{
		Overall: Summarize(positions),
		BySide:  make(map[domain.Side]domain.Stats, len(bySide)),
	}
	for side, group := range bySide {
		report.BySide[side] = Summarize(group)
	}
	return report
}
