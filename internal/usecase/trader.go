package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kimjunyun7/binance-futures/internal/domain"
	"github.com/kimjunyun7/binance-futures/internal/id"
)

// TraderConfig tunes the polling step.
type TraderConfig struct {
	Symbol string
	// MinMarginUSDT skips entries whose committed margin would be
	// below the exchange minimum.
	MinMarginUSDT float64
	// ReviewInterval re-requests advice for an open position this
	// often; zero disables reviews.
	ReviewInterval time.Duration
	// OrphanStopPct sets default SL/TP distance when adopting a venue
	// position that has no ledger row.
	OrphanStopPct float64
}

// TraderService is one polling step of the bot: monitor the open
// position for an exit, or gather a snapshot, ask for advice and enter.
// All exchange and advice I/O lives here or below; the ledger stays a
// pure state machine driven by this service.
type TraderService struct {
	ledger     *Ledger
	market     *MarketService
	advisor    domain.AdviceProvider
	adviceRepo domain.AdviceRepository
	executor   OrderExecutor
	exchange   domain.Exchange // nil in paper mode
	cfg        TraderConfig
	log        *zap.Logger

	lastReview time.Time
	now        func() time.Time
	newID      func() string
}

func NewTraderService(
	ledger *Ledger,
	market *MarketService,
	advisor domain.AdviceProvider,
	adviceRepo domain.AdviceRepository,
	executor OrderExecutor,
	exchange domain.Exchange,
	cfg TraderConfig,
	log *zap.Logger,
) *TraderService {
	if cfg.OrphanStopPct <= 0 {
		cfg.OrphanStopPct = 0.05
	}
	return &TraderService{
		ledger:     ledger,
		market:     market,
		advisor:    advisor,
		adviceRepo: adviceRepo,
		executor:   executor,
		exchange:   exchange,
		cfg:        cfg,
		log:        log,
		now:        time.Now,
		newID:      id.New,
	}
}

// Execute runs one polling step. It satisfies scheduler.Task.
func (t *TraderService) Execute(ctx context.Context) error {
	price, err := t.market.CurrentPrice(ctx)
	if err != nil {
		return err
	}

	pos, err := t.ledger.OpenPosition(ctx, t.cfg.Symbol)
	if err != nil {
		return err
	}
	if pos != nil {
		return t.monitor(ctx, pos, price)
	}

	if t.exchange != nil {
		adopted, err := t.adoptOrphan(ctx, price)
		if err != nil {
			return err
		}
		if adopted {
			return nil
		}
	}
	return t.enter(ctx, price)
}

func (t *TraderService) monitor(ctx context.Context, pos *domain.Position, price float64) error {
	if t.exchange != nil {
		amt, err := t.exchange.GetPositionAmount(ctx, pos.Symbol)
		if err != nil {
			return fmt.Errorf("get position amount: %w", err)
		}
		if amt == 0 {
			// The venue closed the position through its own SL/TP
			// orders; settle the ledger at whichever level was hit.
			exitPrice, reason := price, "EXTERNAL_CLOSE"
			switch t.ledger.EvaluateExit(pos, price) {
			case domain.ExitStopLoss:
				exitPrice, reason = pos.StopLoss, string(domain.ExitStopLoss)
			case domain.ExitTakeProfit:
				exitPrice, reason = pos.TakeProfit, string(domain.ExitTakeProfit)
			}
			return t.closePosition(ctx, pos, exitPrice, reason)
		}
	}

	switch t.ledger.EvaluateExit(pos, price) {
	case domain.ExitStopLoss:
		t.log.Info("stop loss triggered",
			zap.String("position_id", pos.ID),
			zap.Float64("price", price),
			zap.Float64("stop_loss", pos.StopLoss))
		return t.closePosition(ctx, pos, pos.StopLoss, string(domain.ExitStopLoss))
	case domain.ExitTakeProfit:
		t.log.Info("take profit triggered",
			zap.String("position_id", pos.ID),
			zap.Float64("price", price),
			zap.Float64("take_profit", pos.TakeProfit))
		return t.closePosition(ctx, pos, pos.TakeProfit, string(domain.ExitTakeProfit))
	}

	if t.cfg.ReviewInterval > 0 && t.now().Sub(t.lastReview) >= t.cfg.ReviewInterval {
		return t.review(ctx, pos, price)
	}
	return nil
}

func (t *TraderService) closePosition(ctx context.Context, pos *domain.Position, exitPrice float64, reason string) error {
	closed, err := t.ledger.Close(ctx, pos, exitPrice, reason)
	if err != nil {
		return err
	}
	if err := t.executor.Close(ctx, closed); err != nil {
		return fmt.Errorf("unwind %s: %w", closed.ID, err)
	}
	t.log.Info("position closed",
		zap.String("position_id", closed.ID),
		zap.String("reason", reason),
		zap.Float64("entry_price", closed.EntryPrice),
		zap.Float64("exit_price", closed.ExitPrice),
		zap.Float64("realized_pnl", closed.RealizedPnL),
		zap.Float64("realized_pnl_percent", closed.RealizedPnLPercent))
	return nil
}

// enter asks the advice provider for a decision and opens a position
// when it recommends one. The advice record is persisted regardless of
// the direction so the audit log covers NO_POSITION calls too.
func (t *TraderService) enter(ctx context.Context, price float64) error {
	snapshot, err := t.market.Snapshot(ctx)
	if err != nil {
		return err
	}

	advice, err := t.advisor.Recommend(ctx, snapshot)
	if err != nil {
		return fmt.Errorf("request advice: %w", err)
	}

	rec := &domain.AdviceRecord{
		ID:                   t.newID(),
		Timestamp:            t.now().UTC(),
		ObservedPrice:        price,
		Direction:            advice.Direction,
		PositionSizeFraction: advice.PositionSizeFraction,
		Leverage:             advice.Leverage,
		StopLossPercent:      advice.StopLossPercent,
		TakeProfitPercent:    advice.TakeProfitPercent,
		Rationale:            advice.Rationale,
	}
	if err := t.adviceRepo.SaveAdvice(ctx, rec); err != nil {
		return fmt.Errorf("save advice: %w", err)
	}

	if advice.Direction == domain.DirectionNoPosition {
		t.log.Info("advice: no position", zap.String("rationale", advice.Rationale))
		return nil
	}

	margin := snapshot.WalletBalance * advice.PositionSizeFraction
	if margin < t.cfg.MinMarginUSDT {
		t.log.Info("entry skipped, margin below minimum",
			zap.Float64("margin", margin),
			zap.Float64("minimum", t.cfg.MinMarginUSDT))
		return nil
	}

	// Quantity embeds leverage exactly once: notional = margin * lev.
	quantity := margin * float64(advice.Leverage) / price

	side := domain.SideLong
	stopLoss := price * (1 - advice.StopLossPercent)
	takeProfit := price * (1 + advice.TakeProfitPercent)
	if advice.Direction == domain.DirectionShort {
		side = domain.SideShort
		stopLoss = price * (1 + advice.StopLossPercent)
		takeProfit = price * (1 - advice.TakeProfitPercent)
	}

	pos, err := t.ledger.Open(ctx, OpenParams{
		Symbol:     t.cfg.Symbol,
		Side:       side,
		EntryPrice: price,
		Quantity:   quantity,
		Leverage:   advice.Leverage,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		AdviceID:   rec.ID,
	})
	if err != nil {
		return err
	}

	if err := t.executor.Open(ctx, pos); err != nil {
		// The slot is claimed but no orders went out; release it so
		// the next tick can try again.
		if _, cerr := t.ledger.Close(ctx, pos, price, "ENTRY_FAILED"); cerr != nil {
			t.log.Error("failed to release position after entry failure",
				zap.String("position_id", pos.ID), zap.Error(cerr))
		}
		return fmt.Errorf("execute entry: %w", err)
	}

	t.lastReview = t.now()
	t.log.Info("position opened",
		zap.String("position_id", pos.ID),
		zap.String("side", string(pos.Side)),
		zap.Float64("entry_price", pos.EntryPrice),
		zap.Float64("quantity", pos.Quantity),
		zap.Int("leverage", pos.Leverage),
		zap.Float64("stop_loss", pos.StopLoss),
		zap.Float64("take_profit", pos.TakeProfit),
		zap.String("rationale", advice.Rationale))
	return nil
}

// review re-requests advice for an open position and applies the
// decision: opposite direction closes, same direction re-anchors SL/TP
// around the current price, NO_POSITION records a hold.
func (t *TraderService) review(ctx context.Context, pos *domain.Position, price float64) error {
	t.lastReview = t.now()

	snapshot, err := t.market.Snapshot(ctx)
	if err != nil {
		return err
	}
	advice, err := t.advisor.Recommend(ctx, snapshot)
	if err != nil {
		return fmt.Errorf("request advice: %w", err)
	}

	rec := &domain.AdviceRecord{
		ID:                   t.newID(),
		Timestamp:            t.now().UTC(),
		ObservedPrice:        price,
		Direction:            advice.Direction,
		PositionSizeFraction: advice.PositionSizeFraction,
		Leverage:             advice.Leverage,
		StopLossPercent:      advice.StopLossPercent,
		TakeProfitPercent:    advice.TakeProfitPercent,
		Rationale:            advice.Rationale,
		PositionID:           pos.ID,
	}
	if err := t.adviceRepo.SaveAdvice(ctx, rec); err != nil {
		return fmt.Errorf("save advice: %w", err)
	}

	sameSide := (advice.Direction == domain.DirectionLong && pos.Side == domain.SideLong) ||
		(advice.Direction == domain.DirectionShort && pos.Side == domain.SideShort)

	switch {
	case advice.Direction == domain.DirectionNoPosition:
		t.log.Info("review: holding position", zap.String("position_id", pos.ID))
		return t.ledger.Hold(ctx, pos, advice.Rationale)
	case sameSide:
		newSL := price * (1 - advice.StopLossPercent)
		newTP := price * (1 + advice.TakeProfitPercent)
		if pos.Side == domain.SideShort {
			newSL = price * (1 + advice.StopLossPercent)
			newTP = price * (1 - advice.TakeProfitPercent)
		}
		updated, err := t.ledger.Adjust(ctx, pos, newSL, newTP, advice.Rationale)
		if err != nil {
			return err
		}
		t.log.Info("review: stops adjusted",
			zap.String("position_id", updated.ID),
			zap.Float64("stop_loss", updated.StopLoss),
			zap.Float64("take_profit", updated.TakeProfit))
		return nil
	default:
		t.log.Info("review: advice reversed, closing",
			zap.String("position_id", pos.ID),
			zap.String("advice_direction", string(advice.Direction)))
		return t.closePosition(ctx, pos, price, "ADVICE")
	}
}

// adoptOrphan records a venue position that has no ledger row, which
// happens after a restart while a trade was live. Entry price and
// leverage are unknown at this point, so the row tracks the position at
// the observed price with wide default stops.
func (t *TraderService) adoptOrphan(ctx context.Context, price float64) (bool, error) {
	amt, err := t.exchange.GetPositionAmount(ctx, t.cfg.Symbol)
	if err != nil {
		return false, fmt.Errorf("get position amount: %w", err)
	}
	if amt == 0 {
		return false, nil
	}

	side := domain.SideLong
	stopLoss := price * (1 - t.cfg.OrphanStopPct)
	takeProfit := price * (1 + t.cfg.OrphanStopPct)
	if amt < 0 {
		side = domain.SideShort
		amt = -amt
		stopLoss = price * (1 + t.cfg.OrphanStopPct)
		takeProfit = price * (1 - t.cfg.OrphanStopPct)
	}

	pos, err := t.ledger.Open(ctx, OpenParams{
		Symbol:     t.cfg.Symbol,
		Side:       side,
		EntryPrice: price,
		Quantity:   amt,
		Leverage:   1,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
	})
	if err != nil {
		return false, err
	}
	t.log.Warn("adopted untracked venue position",
		zap.String("position_id", pos.ID),
		zap.String("side", string(side)),
		zap.Float64("quantity", amt))
	return true, nil
}
