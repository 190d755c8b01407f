package models

import (
	"time"
)

type PositionSide string

const (
	PositionSideLong  PositionSide = "long"
	PositionSideShort PositionSide = "short"
)

// PairKey identifies a (symbol, side) pair; hedged accounts can hold a long
// and a short on the same symbol at once, so side is part of the key.
type PairKey struct {
	Symbol string
	Side   PositionSide
}

type Position struct {
	PositionID        string
	Symbol            string
	Side              PositionSide
	Quantity          float64
	EntryPrice        float64
	MarkPrice         float64 // 0 when the backend omitted it
	Leverage          int
	InitialMargin     float64
	MaintenanceMargin float64
	LiquidationPrice  float64
	FundingRate       float64
	UpdatedAt         time.Time
}

// EffectiveMarkPrice falls back to the entry price when the backend
// supplied no mark price.
func (p *Position) EffectiveMarkPrice() float64 {
	if p.MarkPrice > 0 {
		return p.MarkPrice
	}
	return p.EntryPrice
}
