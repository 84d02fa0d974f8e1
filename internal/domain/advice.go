package domain

import (
	"fmt"
	"time"
)

type Direction string

const (
	DirectionLong       Direction = "LONG"
	DirectionShort      Direction = "SHORT"
	DirectionNoPosition Direction = "NO_POSITION"
)

const (
	MinLeverage = 1
	MaxLeverage = 20
)

// Advice is a trading recommendation from the advice provider.
// Percentages are fractions of the entry price (0.005 = 0.5%).
type Advice struct {
	Direction            Direction `json:"direction"`
	PositionSizeFraction float64   `json:"recommended_position_size"`
	Leverage             int       `json:"recommended_leverage"`
	StopLossPercent      float64   `json:"stop_loss_percentage"`
	TakeProfitPercent    float64   `json:"take_profit_percentage"`
	Rationale            string    `json:"reasoning"`
}

// Validate rejects malformed or out-of-range payloads at the boundary
// so that missing fields never reach the ledger. A NO_POSITION advice
// carries no sizing parameters and is always valid.
func (a *Advice) Validate() error {
	switch a.Direction {
	case DirectionNoPosition:
		return nil
	case DirectionLong, DirectionShort:
	default:
		return fmt.Errorf("%w: unknown direction %q", ErrMalformedAdvice, a.Direction)
	}
	if a.PositionSizeFraction <= 0 || a.PositionSizeFraction > 1 {
		return fmt.Errorf("%w: position size fraction %.4f outside (0,1]", ErrMalformedAdvice, a.PositionSizeFraction)
	}
	if a.Leverage < MinLeverage || a.Leverage > MaxLeverage {
		return fmt.Errorf("%w: leverage %d outside [%d,%d]", ErrMalformedAdvice, a.Leverage, MinLeverage, MaxLeverage)
	}
	if a.StopLossPercent <= 0 {
		return fmt.Errorf("%w: stop loss percentage %.4f must be positive", ErrMalformedAdvice, a.StopLossPercent)
	}
	if a.TakeProfitPercent <= 0 {
		return fmt.Errorf("%w: take profit percentage %.4f must be positive", ErrMalformedAdvice, a.TakeProfitPercent)
	}
	return nil
}

// AdviceRecord is the persisted snapshot of a recommendation. It is
// written once and optionally linked to the position it produced.
type AdviceRecord struct {
	ID                   string
	Timestamp            time.Time
	ObservedPrice        float64
	Direction            Direction
	PositionSizeFraction float64
	Leverage             int
	StopLossPercent      float64
	TakeProfitPercent    float64
	Rationale            string
	PositionID           string
}
