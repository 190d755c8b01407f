package risk

import (
	"math"
	"sort"
	"time"

	"github.com/tradepulse/riskcore/pkg/models"
)

// MarkPrice is the resolved mark for one symbol at evaluation time.
type MarkPrice struct {
	Price float64
	Stale bool
}

// Calculate derives a RiskSnapshot from one consistent (account, positions,
// marks) composite. It is pure: same inputs always produce the same output,
// and nothing is mutated. Ratios with a zero or negative denominator are
// reported as 0 with a flag instead of NaN (see ROIUndefined and the
// wallet-balance guard on the margin ratio).
func Calculate(account *models.Account, positions []*models.Position, marks map[string]MarkPrice, now time.Time) *models.RiskSnapshot {
	snap := &models.RiskSnapshot{
		AccountID: account.AccountID,
		Timestamp: now,
	}

	var pnlSum, liqSum float64
	minLiq := math.Inf(1)
	staleSymbols := make(map[string]bool)

	for _, pos := range positions {
		mark, markStale := resolveMark(pos, marks)
		if markStale {
			staleSymbols[pos.Symbol] = true
		}

		pr := models.PositionRisk{
			PositionID: pos.PositionID,
			Symbol:     pos.Symbol,
			Side:       pos.Side,
			MarkPrice:  mark,
			MarkStale:  markStale,
		}

		pr.UnrealizedPnL = UnrealizedPnL(pos, mark)
		pr.ROIPercent, pr.ROIUndefined = ROI(pr.UnrealizedPnL, pos.InitialMargin)
		pr.LiquidationDistancePct = LiquidationDistance(mark, pos.LiquidationPrice)
		pr.Notional = pos.Quantity * mark

		pnlSum += pr.UnrealizedPnL
		liqSum += pr.LiquidationDistancePct
		if pr.LiquidationDistancePct < minLiq {
			minLiq = pr.LiquidationDistancePct
		}
		snap.MaintenanceMarginTotal += pos.MaintenanceMargin
		snap.NotionalTotal += pr.Notional

		snap.Positions = append(snap.Positions, pr)
	}

	snap.Equity = account.WalletBalance + pnlSum
	snap.AvailableBalance = account.WalletBalance - account.PositionMargin - account.OrderMargin
	snap.NegativeAvailable = snap.AvailableBalance < 0
	snap.MarginRatio = MarginRatio(account.PositionMargin, account.WalletBalance)
	snap.WinRate = WinRate(account.WinningTrades, account.TotalTrades)

	if n := len(positions); n > 0 {
		snap.MeanLiquidationDistancePct = liqSum / float64(n)
		snap.MinLiquidationDistancePct = minLiq
	}

	for s := range staleSymbols {
		snap.StaleSymbols = append(snap.StaleSymbols, s)
	}
	sort.Strings(snap.StaleSymbols)

	return snap
}

// resolveMark picks the mark price for a position: live book price first,
// then the position's own last-known mark, then the entry price. Anything
// other than a fresh live price is flagged stale.
func resolveMark(pos *models.Position, marks map[string]MarkPrice) (float64, bool) {
	if m, ok := marks[pos.Symbol]; ok && m.Price > 0 {
		return m.Price, m.Stale
	}
	return pos.EffectiveMarkPrice(), true
}

func UnrealizedPnL(pos *models.Position, mark float64) float64 {
	if pos.Side == models.PositionSideShort {
		return (pos.EntryPrice - mark) * pos.Quantity
	}
	return (mark - pos.EntryPrice) * pos.Quantity
}

// ROI reports 0 with undefined=true when no margin is committed, so a
// broken position record never turns into Inf further down the pipeline.
func ROI(unrealizedPnL, initialMargin float64) (pct float64, undefined bool) {
	if initialMargin <= 0 {
		return 0, true
	}
	return unrealizedPnL / initialMargin * 100, false
}

// LiquidationDistance is the percentage gap between mark and liquidation
// price. Smaller is more dangerous.
func LiquidationDistance(mark, liquidationPrice float64) float64 {
	if mark <= 0 {
		return 0
	}
	return math.Abs(mark-liquidationPrice) / mark * 100
}

func MarginRatio(positionMargin, walletBalance float64) float64 {
	if walletBalance <= 0 {
		return 0
	}
	return positionMargin / walletBalance * 100
}

func WinRate(winningTrades, totalTrades int) float64 {
	if totalTrades <= 0 {
		return 0
	}
	return float64(winningTrades) / float64(totalTrades) * 100
}
