package models

import (
	"time"
)

// PositionRisk holds the derived metrics for one open position.
type PositionRisk struct {
	PositionID             string
	Symbol                 string
	Side                   PositionSide
	MarkPrice              float64
	MarkStale              bool // mark came from a stale book or an entry-price fallback
	UnrealizedPnL          float64
	ROIPercent             float64
	ROIUndefined           bool // initial margin was zero, ROI reported as 0
	LiquidationDistancePct float64
	Notional               float64
}

// RiskSnapshot is the output of one evaluation cycle. It is a pure function
// of (account, positions, marks) and is never mutated after publication.
type RiskSnapshot struct {
	AccountID        string
	Sequence         uint64
	Equity           float64
	AvailableBalance float64
	// Negative available balance is a reportable condition, not an error.
	NegativeAvailable bool
	MarginRatio       float64
	WinRate           float64
	Positions         []PositionRisk

	// Mean across open positions matches the dashboard's historical panel
	// metric; the minimum is exposed alongside it because the mean can hide
	// one position sitting next to its liquidation price.
	MeanLiquidationDistancePct float64
	MinLiquidationDistancePct  float64

	MaintenanceMarginTotal float64
	NotionalTotal          float64

	StaleSymbols []string
	Timestamp    time.Time
}
