package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/kimjunyun7/binance-futures/internal/domain"
	"github.com/kimjunyun7/binance-futures/internal/id"
)

// OpenParams are the inputs for opening a position. Quantity is the
// full notional size; the caller has already applied leverage to it.
type OpenParams struct {
	Symbol     string
	Side       domain.Side
	EntryPrice float64
	Quantity   float64
	Leverage   int
	StopLoss   float64
	TakeProfit float64
	AdviceID   string
}

// Ledger owns the position lifecycle: open, adjust, close. It enforces
// the single-open-position discipline per symbol and computes realized
// P/L. It never talks to the exchange or the advice provider; callers
// drive it with prices they obtained elsewhere.
type Ledger struct {
	positions domain.PositionRepository
	advice    domain.AdviceRepository
	audit     bool
	now       func() time.Time
	newID     func() string
}

func NewLedger(positions domain.PositionRepository, advice domain.AdviceRepository) *Ledger {
	return &Ledger{
		positions: positions,
		advice:    advice,
		audit:     true,
		now:       time.Now,
		newID:     id.New,
	}
}

// DisableAudit turns off adjustment records. The audit trail is a side
// channel; correctness does not depend on it.
func (l *Ledger) DisableAudit() {
	l.audit = false
}

// OpenPosition returns the currently open position for the symbol, or
// nil when flat.
func (l *Ledger) OpenPosition(ctx context.Context, symbol string) (*domain.Position, error) {
	pos, err := l.positions.FindOpen(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("find open position: %w", err)
	}
	return pos, nil
}

// Open validates the parameters, checks that no position is open for
// the symbol and persists a new OPEN position. The persistence layer
// backs the conflict check with a unique constraint, so a racing second
// caller also gets ErrPositionOpen instead of a second row.
func (l *Ledger) Open(ctx context.Context, p OpenParams) (*domain.Position, error) {
	if err := validateOpen(p); err != nil {
		return nil, err
	}

	existing, err := l.positions.FindOpen(ctx, p.Symbol)
	if err != nil {
		return nil, fmt.Errorf("find open position: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s %s", domain.ErrPositionOpen, existing.ID, existing.Symbol)
	}

	pos := &domain.Position{
		ID:         l.newID(),
		Symbol:     p.Symbol,
		Side:       p.Side,
		EntryPrice: p.EntryPrice,
		Quantity:   p.Quantity,
		Leverage:   p.Leverage,
		StopLoss:   p.StopLoss,
		TakeProfit: p.TakeProfit,
		Status:     domain.StatusOpen,
		Margin:     Margin(p.EntryPrice, p.Quantity, p.Leverage),
		AdviceID:   p.AdviceID,
		OpenedAt:   l.now().UTC(),
	}
	if err := l.positions.Insert(ctx, pos); err != nil {
		return nil, fmt.Errorf("persist position: %w", err)
	}

	if p.AdviceID != "" {
		if err := l.advice.LinkPosition(ctx, p.AdviceID, pos.ID); err != nil {
			return nil, fmt.Errorf("link advice %s: %w", p.AdviceID, err)
		}
	}
	return pos, nil
}

func validateOpen(p OpenParams) error {
	if p.Symbol == "" {
		return fmt.Errorf("%w: empty symbol", domain.ErrInvalidArgument)
	}
	if p.Side != domain.SideLong && p.Side != domain.SideShort {
		return fmt.Errorf("%w: side %q", domain.ErrInvalidArgument, p.Side)
	}
	if p.EntryPrice <= 0 {
		return fmt.Errorf("%w: entry price %.8f", domain.ErrInvalidArgument, p.EntryPrice)
	}
	if p.Quantity <= 0 {
		return fmt.Errorf("%w: quantity %.8f", domain.ErrInvalidArgument, p.Quantity)
	}
	if p.Leverage < 1 {
		return fmt.Errorf("%w: leverage %d", domain.ErrInvalidArgument, p.Leverage)
	}
	if p.StopLoss <= 0 || p.TakeProfit <= 0 {
		return fmt.Errorf("%w: stop loss %.8f / take profit %.8f", domain.ErrInvalidArgument, p.StopLoss, p.TakeProfit)
	}
	return nil
}

// EvaluateExit checks an open position against the latest price. Pure,
// no mutation. When a gap move pierces both levels at once the stop
// loss wins.
func (l *Ledger) EvaluateExit(pos *domain.Position, currentPrice float64) domain.ExitSignal {
	if pos == nil || !pos.IsOpen() {
		return domain.ExitNone
	}
	switch pos.Side {
	case domain.SideLong:
		if currentPrice <= pos.StopLoss {
			return domain.ExitStopLoss
		}
		if currentPrice >= pos.TakeProfit {
			return domain.ExitTakeProfit
		}
	case domain.SideShort:
		if currentPrice >= pos.StopLoss {
			return domain.ExitStopLoss
		}
		if currentPrice <= pos.TakeProfit {
			return domain.ExitTakeProfit
		}
	}
	return domain.ExitNone
}

// Adjust revises the stop loss and take profit of an open position.
// Entry price, quantity and leverage are untouchable after open.
func (l *Ledger) Adjust(ctx context.Context, pos *domain.Position, newStopLoss, newTakeProfit float64, rationale string) (*domain.Position, error) {
	if pos == nil {
		return nil, fmt.Errorf("%w: nil position", domain.ErrInvalidArgument)
	}
	if !pos.IsOpen() {
		return nil, fmt.Errorf("%w: %s", domain.ErrPositionClosed, pos.ID)
	}
	if newStopLoss <= 0 || newTakeProfit <= 0 {
		return nil, fmt.Errorf("%w: stop loss %.8f / take profit %.8f", domain.ErrInvalidArgument, newStopLoss, newTakeProfit)
	}

	updated := *pos
	updated.StopLoss = newStopLoss
	updated.TakeProfit = newTakeProfit

	var adj *domain.Adjustment
	if l.audit {
		adj = &domain.Adjustment{
			PositionID:    pos.ID,
			Timestamp:     l.now().UTC(),
			Kind:          domain.AdjustmentAdjust,
			NewStopLoss:   newStopLoss,
			NewTakeProfit: newTakeProfit,
			Rationale:     rationale,
		}
	}
	if err := l.positions.UpdateStops(ctx, &updated, adj); err != nil {
		return nil, fmt.Errorf("persist adjustment: %w", err)
	}
	return &updated, nil
}

// Hold records an advice-driven decision to keep an open position
// untouched. Audit only; the position itself does not change.
func (l *Ledger) Hold(ctx context.Context, pos *domain.Position, rationale string) error {
	if pos == nil {
		return fmt.Errorf("%w: nil position", domain.ErrInvalidArgument)
	}
	if !pos.IsOpen() {
		return fmt.Errorf("%w: %s", domain.ErrPositionClosed, pos.ID)
	}
	if !l.audit {
		return nil
	}
	adj := &domain.Adjustment{
		PositionID: pos.ID,
		Timestamp:  l.now().UTC(),
		Kind:       domain.AdjustmentHold,
		Rationale:  rationale,
	}
	if err := l.positions.RecordAdjustment(ctx, adj); err != nil {
		return fmt.Errorf("persist hold: %w", err)
	}
	return nil
}

// Close settles an open position at exitPrice and computes realized
// P/L. Quantity already embeds leverage, so the formulas never multiply
// by it. Closing a closed position fails with ErrPositionClosed rather
// than being a no-op; a silent double close would hide a driver bug.
func (l *Ledger) Close(ctx context.Context, pos *domain.Position, exitPrice float64, reason string) (*domain.Position, error) {
	if pos == nil {
		return nil, fmt.Errorf("%w: nil position", domain.ErrInvalidArgument)
	}
	if !pos.IsOpen() {
		return nil, fmt.Errorf("%w: %s", domain.ErrPositionClosed, pos.ID)
	}
	if exitPrice <= 0 {
		return nil, fmt.Errorf("%w: exit price %.8f", domain.ErrInvalidArgument, exitPrice)
	}

	updated := *pos
	updated.Status = domain.StatusClosed
	updated.ExitPrice = exitPrice
	updated.ExitTime = l.now().UTC()

	switch pos.Side {
	case domain.SideLong:
		updated.RealizedPnL = (exitPrice - pos.EntryPrice) * pos.Quantity
		updated.RealizedPnLPercent = (exitPrice/pos.EntryPrice - 1) * 100
	case domain.SideShort:
		updated.RealizedPnL = (pos.EntryPrice - exitPrice) * pos.Quantity
		updated.RealizedPnLPercent = (1 - exitPrice/pos.EntryPrice) * 100
	}

	var adj *domain.Adjustment
	if l.audit {
		adj = &domain.Adjustment{
			PositionID: pos.ID,
			Timestamp:  updated.ExitTime,
			Kind:       domain.AdjustmentClose,
			Rationale:  reason,
		}
	}
	if err := l.positions.UpdateOnClose(ctx, &updated, adj); err != nil {
		return nil, fmt.Errorf("persist close: %w", err)
	}
	return &updated, nil
}

// ClosedPositions returns closed positions, newest first, optionally
// limited and windowed by close time.
func (l *Ledger) ClosedPositions(ctx context.Context, limit int, since time.Time) ([]*domain.Position, error) {
	return l.positions.ListClosed(ctx, limit, since)
}

// Margin is the capital committed to a position.
func Margin(entryPrice, quantity float64, leverage int) float64 {
	if leverage < 1 {
		leverage = 1
	}
	return entryPrice * quantity / float64(leverage)
}
