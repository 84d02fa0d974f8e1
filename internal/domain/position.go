package domain

import "time"

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

type PositionStatus string

const (
	StatusOpen   PositionStatus = "OPEN"
	StatusClosed PositionStatus = "CLOSED"
)

// ExitSignal is the verdict of checking an open position against the
// latest price.
type ExitSignal string

const (
	ExitNone       ExitSignal = "NONE"
	ExitStopLoss   ExitSignal = "STOP_LOSS"
	ExitTakeProfit ExitSignal = "TAKE_PROFIT"
)

// Position is one leveraged trade tracked from open to close.
//
// Quantity is the full notional size in base-asset units. Leverage is
// already embedded in it (the caller sizes the order as
// margin * leverage / price), so P/L math must never multiply by
// leverage a second time.
type Position struct {
	ID                 string
	Symbol             string
	Side               Side
	EntryPrice         float64
	Quantity           float64
	Leverage           int
	StopLoss           float64
	TakeProfit         float64
	Status             PositionStatus
	ExitPrice          float64
	ExitTime           time.Time
	RealizedPnL        float64
	RealizedPnLPercent float64
	Margin             float64
	AdviceID           string // advice record this position was opened from, if any
	OpenedAt           time.Time
}

func (p *Position) IsOpen() bool {
	return p.Status == StatusOpen
}

type AdjustmentKind string

const (
	AdjustmentAdjust AdjustmentKind = "ADJUST"
	AdjustmentClose  AdjustmentKind = "CLOSE"
	AdjustmentHold   AdjustmentKind = "HOLD"
)

// Adjustment is an append-only audit record of an SL/TP revision, a
// close, or a hold decision on an open position.
type Adjustment struct {
	ID            int64
	PositionID    string
	Timestamp     time.Time
	Kind          AdjustmentKind
	NewTakeProfit float64
	NewStopLoss   float64
	Rationale     string
}
