package usecase_test

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/kimjunyun7/binance-futures/internal/domain"
	"github.com/kimjunyun7/binance-futures/internal/usecase"
)

type MockNews struct {
	Items []domain.NewsItem
	Query string
}

func (m *MockNews) RecentNews(ctx context.Context, query string, limit int) ([]domain.NewsItem, error) {
	m.Query = query
	return m.Items, nil
}

func TestMarketService_CurrentPricePrefersStream(t *testing.T) {
	exchange := &MockExchange{Price: 30000}
	svc := usecase.NewMarketService(exchange, nil, NewMockPositionRepo(), NewMockAdviceRepo(), fixedBalance(1000), "BTCUSDT", "bitcoin", zap.NewNop())

	// No tick seen yet: REST price wins.
	price, err := svc.CurrentPrice(context.Background())
	if err != nil {
		t.Fatalf("CurrentPrice failed: %v", err)
	}
	if !almostEqual(price, 30000) {
		t.Errorf("expected REST price 30000, got %f", price)
	}

	// A streamed tick supersedes REST.
	svc.SetLastPrice("BTCUSDT", 31111)
	exchange.Price = 29000
	price, err = svc.CurrentPrice(context.Background())
	if err != nil {
		t.Fatalf("CurrentPrice failed: %v", err)
	}
	if !almostEqual(price, 31111) {
		t.Errorf("expected streamed price 31111, got %f", price)
	}
}

func TestMarketService_SnapshotAssembly(t *testing.T) {
	ctx := context.Background()
	repo := NewMockPositionRepo()
	adviceRepo := NewMockAdviceRepo()
	exchange := &MockExchange{
		Price:   30000,
		Candles: []domain.Candle{{Time: 1717243200, Open: 29900, High: 30100, Low: 29800, Close: 30000, Volume: 42}},
	}
	news := &MockNews{Items: []domain.NewsItem{{Title: "Bitcoin rallies", Date: "1 hour ago"}}}

	svc := usecase.NewMarketService(exchange, news, repo, adviceRepo, fixedBalance(10000), "BTCUSDT", "bitcoin", zap.NewNop())

	// One finished trade with its advice, for the history section.
	rec := &domain.AdviceRecord{ID: "A1", Direction: domain.DirectionLong, Rationale: "breakout setup", PositionID: "P1"}
	if err := adviceRepo.SaveAdvice(ctx, rec); err != nil {
		t.Fatal(err)
	}
	closed := &domain.Position{
		ID:                 "P1",
		Symbol:             "BTCUSDT",
		Side:               domain.SideLong,
		Status:             domain.StatusClosed,
		RealizedPnL:        150,
		RealizedPnLPercent: 5,
	}
	repo.Positions["P1"] = closed

	snap, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	if !almostEqual(snap.CurrentPrice, 30000) || !almostEqual(snap.WalletBalance, 10000) {
		t.Errorf("price/balance wrong: %f / %f", snap.CurrentPrice, snap.WalletBalance)
	}
	if len(snap.Timeframes) != 3 {
		t.Errorf("expected candles for 3 timeframes, got %d", len(snap.Timeframes))
	}
	if len(snap.Timeframes["15m"]) != 1 {
		t.Errorf("15m candles missing: %+v", snap.Timeframes)
	}
	if len(snap.RecentNews) != 1 || snap.RecentNews[0].Title != "Bitcoin rallies" {
		t.Errorf("news missing: %+v", snap.RecentNews)
	}
	if news.Query != "bitcoin" {
		t.Errorf("expected news query %q, got %q", "bitcoin", news.Query)
	}
	if len(snap.History) != 1 || snap.History[0].Rationale != "breakout setup" {
		t.Errorf("history not joined with advice: %+v", snap.History)
	}
	if snap.Performance == nil || snap.Performance.Overall.TotalTrades != 1 {
		t.Errorf("performance summary missing: %+v", snap.Performance)
	}
}
