package models

import (
	"fmt"
	"time"
)

// AlertLevel is the margin-ratio tier that raised the alert. Tiers are
// lower-bound inclusive: 70 covers [70,80), 100 covers [100,∞).
type AlertLevel int

const (
	AlertLevelNone AlertLevel = 0
	AlertTier70    AlertLevel = 70
	AlertTier80    AlertLevel = 80
	AlertTier90    AlertLevel = 90
	AlertTier100   AlertLevel = 100
)

func (l AlertLevel) Message() string {
	switch l {
	case AlertTier100:
		return "critical liquidation risk"
	case AlertTier90:
		return "very close to liquidation"
	case AlertTier80:
		return "high margin utilization"
	case AlertTier70:
		return "elevated margin utilization"
	default:
		return ""
	}
}

type Alert struct {
	ID        string
	Level     AlertLevel
	Symbol    string
	Side      PositionSide
	Message   string
	CreatedAt time.Time
	Dismissed bool
}

// AlertID is stable for a pair while its alert is active, so a replaced
// alert keeps the same identity in the UI.
func AlertID(pair PairKey) string {
	return fmt.Sprintf("%s:%s", pair.Symbol, pair.Side)
}
