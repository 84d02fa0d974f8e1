package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kimjunyun7/binance-futures/internal/domain"
	"github.com/kimjunyun7/binance-futures/internal/usecase"
)

type stubPositionRepo struct {
	open   *domain.Position
	closed []*domain.Position
}

func (r *stubPositionRepo) Insert(ctx context.Context, pos *domain.Position) error { return nil }
func (r *stubPositionRepo) UpdateStops(ctx context.Context, pos *domain.Position, adj *domain.Adjustment) error {
	return nil
}
func (r *stubPositionRepo) UpdateOnClose(ctx context.Context, pos *domain.Position, adj *domain.Adjustment) error {
	return nil
}
func (r *stubPositionRepo) RecordAdjustment(ctx context.Context, adj *domain.Adjustment) error {
	return nil
}
func (r *stubPositionRepo) FindOpen(ctx context.Context, symbol string) (*domain.Position, error) {
	return r.open, nil
}
func (r *stubPositionRepo) FindByID(ctx context.Context, id string) (*domain.Position, error) {
	return nil, fmt.Errorf("%w: position %s", domain.ErrNotFound, id)
}
func (r *stubPositionRepo) ListClosed(ctx context.Context, limit int, since time.Time) ([]*domain.Position, error) {
	return r.closed, nil
}
func (r *stubPositionRepo) ListAdjustments(ctx context.Context, positionID string) ([]*domain.Adjustment, error) {
	return nil, nil
}

type stubAdviceRepo struct{}

func (r *stubAdviceRepo) SaveAdvice(ctx context.Context, rec *domain.AdviceRecord) error { return nil }
func (r *stubAdviceRepo) LinkPosition(ctx context.Context, adviceID, positionID string) error {
	return nil
}
func (r *stubAdviceRepo) FindByPosition(ctx context.Context, positionID string) (*domain.AdviceRecord, error) {
	return nil, nil
}
func (r *stubAdviceRepo) ListAdvice(ctx context.Context, limit int) ([]*domain.AdviceRecord, error) {
	return nil, nil
}

type stubBalance struct {
	value float64
	err   error
}

func (b *stubBalance) Balance(ctx context.Context) (float64, error) { return b.value, b.err }

func closedLong() *domain.Position {
	return &domain.Position{
		ID:                 "P1",
		Symbol:             "BTCUSDT",
		Side:               domain.SideLong,
		EntryPrice:         30000,
		Quantity:           0.1,
		Leverage:           5,
		Status:             domain.StatusClosed,
		ExitPrice:          33000,
		ExitTime:           time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC),
		RealizedPnL:        300,
		RealizedPnLPercent: 10,
		Margin:             600,
		OpenedAt:           time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func renderDashboard(t *testing.T, s *Server) string {
	t.Helper()

	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	require.Equal(t, 200, rr.Code)
	return rr.Body.String()
}

func TestDashboardShowsWalletBalance(t *testing.T) {
	require.NoError(t, InitTemplates("templates"))

	repo := &stubPositionRepo{closed: []*domain.Position{closedLong()}}
	s := NewServer(0, repo, &stubAdviceRepo{}, &stubBalance{value: 10250.5}, nil, "BTCUSDT", zap.NewNop())

	body := renderDashboard(t, s)
	assert.Contains(t, body, `<div class="label">Balance</div>`)
	assert.Contains(t, body, "10250.50")
	assert.Contains(t, body, "300.00")
}

func TestDashboardHidesBalanceWithoutSource(t *testing.T) {
	require.NoError(t, InitTemplates("templates"))

	repo := &stubPositionRepo{}
	s := NewServer(0, repo, &stubAdviceRepo{}, nil, nil, "BTCUSDT", zap.NewNop())

	body := renderDashboard(t, s)
	assert.NotContains(t, body, `<div class="label">Balance</div>`)
}

func TestDashboardHidesBalanceWhenWalletMissing(t *testing.T) {
	require.NoError(t, InitTemplates("templates"))

	repo := &stubPositionRepo{}
	source := &stubBalance{err: fmt.Errorf("%w: wallet not initialized", domain.ErrNotFound)}
	s := NewServer(0, repo, &stubAdviceRepo{}, source, nil, "BTCUSDT", zap.NewNop())

	body := renderDashboard(t, s)
	assert.NotContains(t, body, `<div class="label">Balance</div>`)
}

type stubExchange struct {
	candles []domain.Candle
}

func (e *stubExchange) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	return 30000, nil
}
func (e *stubExchange) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	return e.candles, nil
}
func (e *stubExchange) GetBalance(ctx context.Context) (float64, error) { return 0, nil }
func (e *stubExchange) GetPositionAmount(ctx context.Context, symbol string) (float64, error) {
	return 0, nil
}
func (e *stubExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return nil
}
func (e *stubExchange) MarketBuy(ctx context.Context, symbol string, quantity float64) error {
	return nil
}
func (e *stubExchange) MarketSell(ctx context.Context, symbol string, quantity float64) error {
	return nil
}
func (e *stubExchange) PlaceStopLoss(ctx context.Context, symbol string, side domain.Side, quantity, stopPrice float64) error {
	return nil
}
func (e *stubExchange) PlaceTakeProfit(ctx context.Context, symbol string, side domain.Side, quantity, stopPrice float64) error {
	return nil
}
func (e *stubExchange) CancelOpenOrders(ctx context.Context, symbol string) error { return nil }
func (e *stubExchange) OnPriceUpdate(callback func(symbol string, price float64)) {}
func (e *stubExchange) Subscribe(symbols []string) error                          { return nil }

func TestDashboardEmbedsPriceChart(t *testing.T) {
	require.NoError(t, InitTemplates("templates"))

	repo := &stubPositionRepo{}
	s := NewServer(0, repo, &stubAdviceRepo{}, nil, nil, "BTCUSDT", zap.NewNop())

	body := renderDashboard(t, s)
	assert.Contains(t, body, `id="price-chart"`)
	assert.Contains(t, body, "/api/candles")
}

func TestCandlesJSON(t *testing.T) {
	repo := &stubPositionRepo{}
	ex := &stubExchange{candles: []domain.Candle{
		{Time: 1717243200, Open: 30000, High: 30100, Low: 29900, Close: 30050, Volume: 12},
		{Time: 1717244100, Open: 30050, High: 30200, Low: 30000, Close: 30150, Volume: 9},
	}}
	market := usecase.NewMarketService(ex, nil, repo, &stubAdviceRepo{}, nil, "BTCUSDT", "bitcoin", zap.NewNop())
	s := NewServer(0, repo, &stubAdviceRepo{}, nil, market, "BTCUSDT", zap.NewNop())

	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, httptest.NewRequest("GET", "/api/candles?interval=15m&limit=2", nil))
	require.Equal(t, 200, rr.Code)

	var candles []domain.Candle
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &candles))
	require.Len(t, candles, 2)
	assert.Equal(t, int64(1717243200), candles[0].Time)
	assert.Equal(t, 30150.0, candles[1].Close)
}

func TestCandlesJSONUnavailableWithoutMarket(t *testing.T) {
	s := NewServer(0, &stubPositionRepo{}, &stubAdviceRepo{}, nil, nil, "BTCUSDT", zap.NewNop())

	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, httptest.NewRequest("GET", "/api/candles", nil))
	assert.Equal(t, 503, rr.Code)
}
