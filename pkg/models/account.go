package models

import (
	"time"
)

type MarginMode string

const (
	MarginModeCross    MarginMode = "cross"
	MarginModeIsolated MarginMode = "isolated"
)

type Account struct {
	AccountID       string
	WalletBalance   float64
	PositionMargin  float64
	OrderMargin     float64
	RealizedPnL     float64
	MarginMode      MarginMode
	DefaultLeverage int
	TotalTrades     int
	WinningTrades   int
	UpdatedAt       time.Time
}
