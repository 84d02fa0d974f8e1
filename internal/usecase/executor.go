package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kimjunyun7/binance-futures/internal/domain"
)

// OrderExecutor carries out entries and exits decided by the trader.
// The live implementation places real exchange orders; the paper one
// only settles against the simulated wallet.
type OrderExecutor interface {
	// Open places the entry order and its protective SL/TP orders for
	// a position the ledger is about to record.
	Open(ctx context.Context, pos *domain.Position) error
	// Close unwinds the position on the venue. The position passed in
	// is already settled by the ledger, realized P/L included.
	Close(ctx context.Context, pos *domain.Position) error
}

// BalanceSource reports the available quote-currency balance used for
// position sizing.
type BalanceSource interface {
	Balance(ctx context.Context) (float64, error)
}

// TradeExecutor places real orders on the exchange: leverage, market
// entry, then exchange-side stop loss and take profit.
type TradeExecutor struct {
	exchange domain.Exchange
	log      *zap.Logger
}

func NewTradeExecutor(exchange domain.Exchange, log *zap.Logger) *TradeExecutor {
	return &TradeExecutor{exchange: exchange, log: log}
}

func (e *TradeExecutor) Open(ctx context.Context, pos *domain.Position) error {
	if err := e.exchange.SetLeverage(ctx, pos.Symbol, pos.Leverage); err != nil {
		return fmt.Errorf("set leverage: %w", err)
	}

	switch pos.Side {
	case domain.SideLong:
		if err := e.exchange.MarketBuy(ctx, pos.Symbol, pos.Quantity); err != nil {
			return fmt.Errorf("market buy: %w", err)
		}
	case domain.SideShort:
		if err := e.exchange.MarketSell(ctx, pos.Symbol, pos.Quantity); err != nil {
			return fmt.Errorf("market sell: %w", err)
		}
	default:
		return fmt.Errorf("%w: side %q", domain.ErrInvalidArgument, pos.Side)
	}

	if err := e.exchange.PlaceStopLoss(ctx, pos.Symbol, pos.Side, pos.Quantity, pos.StopLoss); err != nil {
		return fmt.Errorf("place stop loss: %w", err)
	}
	if err := e.exchange.PlaceTakeProfit(ctx, pos.Symbol, pos.Side, pos.Quantity, pos.TakeProfit); err != nil {
		return fmt.Errorf("place take profit: %w", err)
	}

	e.log.Info("orders placed",
		zap.String("symbol", pos.Symbol),
		zap.String("side", string(pos.Side)),
		zap.Float64("quantity", pos.Quantity),
		zap.Int("leverage", pos.Leverage),
		zap.Float64("stop_loss", pos.StopLoss),
		zap.Float64("take_profit", pos.TakeProfit))
	return nil
}

func (e *TradeExecutor) Close(ctx context.Context, pos *domain.Position) error {
	amt, err := e.exchange.GetPositionAmount(ctx, pos.Symbol)
	if err != nil {
		return fmt.Errorf("get position amount: %w", err)
	}
	if amt != 0 {
		// Still held on the venue, unwind with a reduce order in the
		// opposite direction.
		if pos.Side == domain.SideLong {
			err = e.exchange.MarketSell(ctx, pos.Symbol, pos.Quantity)
		} else {
			err = e.exchange.MarketBuy(ctx, pos.Symbol, pos.Quantity)
		}
		if err != nil {
			return fmt.Errorf("close order: %w", err)
		}
	}
	if err := e.exchange.CancelOpenOrders(ctx, pos.Symbol); err != nil {
		e.log.Warn("failed to cancel remaining orders", zap.String("symbol", pos.Symbol), zap.Error(err))
	}

	e.log.Info("position unwound",
		zap.String("symbol", pos.Symbol),
		zap.Float64("exit_price", pos.ExitPrice),
		zap.Float64("realized_pnl", pos.RealizedPnL))
	return nil
}

// ExchangeBalance adapts the exchange account balance to BalanceSource.
type ExchangeBalance struct {
	Exchange domain.Exchange
}

func (b ExchangeBalance) Balance(ctx context.Context) (float64, error) {
	return b.Exchange.GetBalance(ctx)
}

// PaperExecutor simulates execution. Entries cost nothing; exits settle
// the realized P/L against the wallet, like a funded account would.
type PaperExecutor struct {
	wallet domain.WalletRepository
	log    *zap.Logger
}

func NewPaperExecutor(wallet domain.WalletRepository, log *zap.Logger) *PaperExecutor {
	return &PaperExecutor{wallet: wallet, log: log}
}

func (e *PaperExecutor) Open(ctx context.Context, pos *domain.Position) error {
	e.log.Info("paper entry",
		zap.String("symbol", pos.Symbol),
		zap.String("side", string(pos.Side)),
		zap.Float64("entry_price", pos.EntryPrice),
		zap.Float64("quantity", pos.Quantity),
		zap.Int("leverage", pos.Leverage))
	return nil
}

func (e *PaperExecutor) Close(ctx context.Context, pos *domain.Position) error {
	balance, err := e.wallet.ApplyPnL(ctx, pos.RealizedPnL)
	if err != nil {
		return fmt.Errorf("settle wallet: %w", err)
	}
	e.log.Info("paper exit",
		zap.String("symbol", pos.Symbol),
		zap.Float64("exit_price", pos.ExitPrice),
		zap.Float64("realized_pnl", pos.RealizedPnL),
		zap.Float64("wallet_balance", balance))
	return nil
}
