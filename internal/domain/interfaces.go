package domain

import (
	"context"
	"time"
)

// Exchange is the market data and order gateway for a futures exchange.
type Exchange interface {
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
	GetBalance(ctx context.Context) (float64, error)
	// GetPositionAmount returns the signed position size on the
	// exchange: positive for long, negative for short, zero when flat.
	GetPositionAmount(ctx context.Context, symbol string) (float64, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	MarketBuy(ctx context.Context, symbol string, quantity float64) error
	MarketSell(ctx context.Context, symbol string, quantity float64) error
	PlaceStopLoss(ctx context.Context, symbol string, side Side, quantity, stopPrice float64) error
	PlaceTakeProfit(ctx context.Context, symbol string, side Side, quantity, stopPrice float64) error
	CancelOpenOrders(ctx context.Context, symbol string) error
	OnPriceUpdate(callback func(symbol string, price float64))
	Subscribe(symbols []string) error
}

// AdviceProvider returns a trading recommendation for a market
// snapshot. A parse failure surfaces as ErrMalformedAdvice and is
// retryable at the caller.
type AdviceProvider interface {
	Recommend(ctx context.Context, snapshot *MarketSnapshot) (*Advice, error)
}

// NewsProvider returns recent headlines for the traded asset.
type NewsProvider interface {
	RecentNews(ctx context.Context, query string, limit int) ([]NewsItem, error)
}

// PositionRepository defines storage for positions and their audit
// trail. Each mutating call is atomic together with its adjustment
// insert.
type PositionRepository interface {
	Insert(ctx context.Context, pos *Position) error
	UpdateStops(ctx context.Context, pos *Position, adj *Adjustment) error
	UpdateOnClose(ctx context.Context, pos *Position, adj *Adjustment) error
	RecordAdjustment(ctx context.Context, adj *Adjustment) error
	// FindOpen returns nil, nil when no position is open for the symbol.
	FindOpen(ctx context.Context, symbol string) (*Position, error)
	FindByID(ctx context.Context, id string) (*Position, error)
	// ListClosed returns closed positions, newest first. A zero since
	// disables the window filter; limit <= 0 returns all.
	ListClosed(ctx context.Context, limit int, since time.Time) ([]*Position, error)
	ListAdjustments(ctx context.Context, positionID string) ([]*Adjustment, error)
}

// AdviceRepository defines storage for the advice audit log.
type AdviceRepository interface {
	SaveAdvice(ctx context.Context, rec *AdviceRecord) error
	LinkPosition(ctx context.Context, adviceID, positionID string) error
	// FindByPosition returns nil, nil when no advice is linked to the
	// position.
	FindByPosition(ctx context.Context, positionID string) (*AdviceRecord, error)
	ListAdvice(ctx context.Context, limit int) ([]*AdviceRecord, error)
}

// WalletRepository holds the simulated quote-currency balance used by
// paper trading.
type WalletRepository interface {
	Balance(ctx context.Context) (float64, error)
	ApplyPnL(ctx context.Context, delta float64) (float64, error)
}
