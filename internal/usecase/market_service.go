package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kimjunyun7/binance-futures/internal/domain"
)

const (
	historyLimit  = 10
	newsLimit     = 10
	metricsWindow = 200
)

// MarketService assembles the market snapshot fed to the advice
// provider: current price, multi-timeframe candles, headlines and the
// bot's own trading history. It also caches the last streamed price so
// the polling loop does not need a REST round trip per tick.
type MarketService struct {
	exchange   domain.Exchange
	news       domain.NewsProvider // nil disables headlines
	positions  domain.PositionRepository
	advice     domain.AdviceRepository
	balance    BalanceSource
	symbol     string
	newsQuery  string
	timeframes []domain.Timeframe
	log        *zap.Logger

	mu         sync.RWMutex
	lastPrices map[string]float64
}

func NewMarketService(
	exchange domain.Exchange,
	news domain.NewsProvider,
	positions domain.PositionRepository,
	advice domain.AdviceRepository,
	balance BalanceSource,
	symbol, newsQuery string,
	log *zap.Logger,
) *MarketService {
	return &MarketService{
		exchange:   exchange,
		news:       news,
		positions:  positions,
		advice:     advice,
		balance:    balance,
		symbol:     symbol,
		newsQuery:  newsQuery,
		timeframes: domain.DefaultTimeframes,
		log:        log,
		lastPrices: make(map[string]float64),
	}
}

// SetLastPrice records a streamed price tick.
func (s *MarketService) SetLastPrice(symbol string, price float64) {
	s.mu.Lock()
	s.lastPrices[symbol] = price
	s.mu.Unlock()
}

// LastPrice returns the most recent streamed price, 0 if none seen.
func (s *MarketService) LastPrice(symbol string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPrices[symbol]
}

// CurrentPrice prefers the streamed price and falls back to REST.
func (s *MarketService) CurrentPrice(ctx context.Context) (float64, error) {
	if p := s.LastPrice(s.symbol); p > 0 {
		return p, nil
	}
	price, err := s.exchange.GetCurrentPrice(ctx, s.symbol)
	if err != nil {
		return 0, fmt.Errorf("get current price: %w", err)
	}
	s.SetLastPrice(s.symbol, price)
	return price, nil
}

// Candles proxies candle retrieval for the dashboard.
func (s *MarketService) Candles(ctx context.Context, interval string, limit int) ([]domain.Candle, error) {
	return s.exchange.GetCandles(ctx, s.symbol, interval, limit)
}

// Snapshot collects everything the advice provider needs. Candle and
// news failures for a single source are logged and skipped; a snapshot
// with partial context is still useful, but price and balance are
// required.
func (s *MarketService) Snapshot(ctx context.Context) (*domain.MarketSnapshot, error) {
	price, err := s.CurrentPrice(ctx)
	if err != nil {
		return nil, err
	}
	balance, err := s.balance.Balance(ctx)
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}

	snap := &domain.MarketSnapshot{
		Timestamp:     time.Now().UTC(),
		Symbol:        s.symbol,
		CurrentPrice:  price,
		WalletBalance: balance,
		Timeframes:    make(map[string][]domain.Candle, len(s.timeframes)),
	}

	for _, tf := range s.timeframes {
		candles, err := s.exchange.GetCandles(ctx, s.symbol, tf.Interval, tf.Limit)
		if err != nil {
			s.log.Warn("failed to fetch candles", zap.String("interval", tf.Interval), zap.Error(err))
			continue
		}
		snap.Timeframes[tf.Interval] = candles
	}

	if s.news != nil {
		items, err := s.news.RecentNews(ctx, s.newsQuery, newsLimit)
		if err != nil {
			s.log.Warn("failed to fetch news", zap.Error(err))
		} else {
			snap.RecentNews = items
		}
	}

	history, err := s.tradeHistory(ctx)
	if err != nil {
		s.log.Warn("failed to load trade history", zap.Error(err))
	} else {
		snap.History = history
	}

	closed, err := s.positions.ListClosed(ctx, metricsWindow, time.Time{})
	if err != nil {
		s.log.Warn("failed to load closed positions", zap.Error(err))
	} else {
		snap.Performance = SummarizeBySide(closed)
	}

	return snap, nil
}

// tradeHistory joins recent closed positions with the rationale of the
// advice that opened them.
func (s *MarketService) tradeHistory(ctx context.Context) ([]domain.TradeOutcome, error) {
	closed, err := s.positions.ListClosed(ctx, historyLimit, time.Time{})
	if err != nil {
		return nil, err
	}

	outcomes := make([]domain.TradeOutcome, 0, len(closed))
	for _, pos := range closed {
		outcome := domain.TradeOutcome{Position: pos}
		rec, err := s.advice.FindByPosition(ctx, pos.ID)
		if err != nil {
			s.log.Warn("failed to load advice for position", zap.String("position_id", pos.ID), zap.Error(err))
		} else if rec != nil {
			outcome.Rationale = rec.Rationale
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}
