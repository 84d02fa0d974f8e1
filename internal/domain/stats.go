package domain

// Stats aggregates realized performance over closed positions.
// Break-even trades count toward TotalTrades but toward neither the
// winning nor the losing bucket.
type Stats struct {
	TotalTrades      int     `json:"total_trades"`
	WinningTrades    int     `json:"winning_trades"`
	LosingTrades     int     `json:"losing_trades"`
	TotalPnL         float64 `json:"total_pnl"`
	AvgPnLPercent    float64 `json:"avg_pnl_percent"`
	WinRate          float64 `json:"win_rate"`
	MaxProfitPercent float64 `json:"max_profit_percent"`
	MaxLossPercent   float64 `json:"max_loss_percent"`
	AvgWinPercent    float64 `json:"avg_win_percent"`
	AvgLossPercent   float64 `json:"avg_loss_percent"`
}

// PerformanceReport groups overall stats with a per-direction breakdown.
type PerformanceReport struct {
	Overall Stats          `json:"overall"`
	BySide  map[Side]Stats `json:"by_side"`
}
