package backend

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/tradepulse/riskcore/pkg/models"
)

// InvalidSnapshotError means the backend returned data that fails a basic
// invariant. The evaluation cycle that hit it is skipped, never computed
// from partially-valid data.
type InvalidSnapshotError struct {
	Entity string
	Field  string
	Reason string
}

func (e *InvalidSnapshotError) Error() string {
	return fmt.Sprintf("invalid %s snapshot: %s %s", e.Entity, e.Field, e.Reason)
}

const defaultFundingRate = 0.0001

var validate = validator.New()

// The backend serializes numeric fields as strings (its storage layer is
// schemaless), so every number passes through one strict conversion here
// instead of ad hoc parsing in the calculator.
type accountDTO struct {
	AccountID       string `json:"accountId" validate:"required"`
	WalletBalance   string `json:"walletBalance" validate:"required"`
	PositionMargin  string `json:"positionMargin"`
	OrderMargin     string `json:"orderMargin"`
	RealizedPnl     string `json:"realizedPnl"`
	MarginMode      string `json:"marginMode" validate:"omitempty,oneof=cross isolated"`
	DefaultLeverage int    `json:"defaultLeverage" validate:"omitempty,gte=1"`
	TotalTrades     int    `json:"totalTrades" validate:"gte=0"`
	WinningTrades   int    `json:"winningTrades" validate:"gte=0"`
	UpdatedAt       int64  `json:"updatedAt"`
}

type positionDTO struct {
	PositionID        string `json:"positionId" validate:"required"`
	Symbol            string `json:"symbol" validate:"required"`
	Side              string `json:"side" validate:"oneof=long short"`
	Quantity          string `json:"quantity" validate:"required"`
	EntryPrice        string `json:"entryPrice" validate:"required"`
	MarkPrice         string `json:"markPrice"`
	Leverage          int    `json:"leverage" validate:"omitempty,gte=1"`
	InitialMargin     string `json:"initialMargin"`
	MaintenanceMargin string `json:"maintenanceMargin"`
	LiquidationPrice  string `json:"liquidationPrice" validate:"required"`
	FundingRate       string `json:"fundingRate"`
	UpdatedAt         int64  `json:"updatedAt"`
}

func parseAccount(dto *accountDTO) (*models.Account, error) {
	if err := validate.Struct(dto); err != nil {
		return nil, &InvalidSnapshotError{Entity: "account", Field: "schema", Reason: err.Error()}
	}

	wallet, err := parseAmount("account", "walletBalance", dto.WalletBalance)
	if err != nil {
		return nil, err
	}
	posMargin, err := parseAmount("account", "positionMargin", dto.PositionMargin)
	if err != nil {
		return nil, err
	}
	ordMargin, err := parseAmount("account", "orderMargin", dto.OrderMargin)
	if err != nil {
		return nil, err
	}
	realized, err := parseSigned("account", "realizedPnl", dto.RealizedPnl)
	if err != nil {
		return nil, err
	}

	if dto.WinningTrades > dto.TotalTrades {
		return nil, &InvalidSnapshotError{
			Entity: "account",
			Field:  "winningTrades",
			Reason: "exceeds totalTrades",
		}
	}

	mode := models.MarginMode(dto.MarginMode)
	if mode == "" {
		mode = models.MarginModeCross
	}
	leverage := dto.DefaultLeverage
	if leverage == 0 {
		leverage = 1
	}

	return &models.Account{
		AccountID:       dto.AccountID,
		WalletBalance:   wallet,
		PositionMargin:  posMargin,
		OrderMargin:     ordMargin,
		RealizedPnL:     realized,
		MarginMode:      mode,
		DefaultLeverage: leverage,
		TotalTrades:     dto.TotalTrades,
		WinningTrades:   dto.WinningTrades,
		UpdatedAt:       time.UnixMilli(dto.UpdatedAt),
	}, nil
}

func parsePosition(dto *positionDTO) (*models.Position, error) {
	if err := validate.Struct(dto); err != nil {
		return nil, &InvalidSnapshotError{Entity: "position", Field: "schema", Reason: err.Error()}
	}

	qty, err := parsePositive("position", "quantity", dto.Quantity)
	if err != nil {
		return nil, err
	}
	entry, err := parsePositive("position", "entryPrice", dto.EntryPrice)
	if err != nil {
		return nil, err
	}
	liq, err := parsePositive("position", "liquidationPrice", dto.LiquidationPrice)
	if err != nil {
		return nil, err
	}

	// Mark price is nullable; the calculator falls back to entry price.
	var mark float64
	if dto.MarkPrice != "" {
		mark, err = parsePositive("position", "markPrice", dto.MarkPrice)
		if err != nil {
			return nil, err
		}
	}

	initMargin, err := parseAmount("position", "initialMargin", dto.InitialMargin)
	if err != nil {
		return nil, err
	}
	maintMargin, err := parseAmount("position", "maintenanceMargin", dto.MaintenanceMargin)
	if err != nil {
		return nil, err
	}

	funding := defaultFundingRate
	if dto.FundingRate != "" {
		funding, err = parseSigned("position", "fundingRate", dto.FundingRate)
		if err != nil {
			return nil, err
		}
	}

	leverage := dto.Leverage
	if leverage == 0 {
		leverage = 1
	}

	return &models.Position{
		PositionID:        dto.PositionID,
		Symbol:            dto.Symbol,
		Side:              models.PositionSide(dto.Side),
		Quantity:          qty,
		EntryPrice:        entry,
		MarkPrice:         mark,
		Leverage:          leverage,
		InitialMargin:     initMargin,
		MaintenanceMargin: maintMargin,
		LiquidationPrice:  liq,
		FundingRate:       funding,
		UpdatedAt:         time.UnixMilli(dto.UpdatedAt),
	}, nil
}

func parseSigned(entity, field, s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, &InvalidSnapshotError{Entity: entity, Field: field, Reason: "is not a number"}
	}
	return d.InexactFloat64(), nil
}

func parseAmount(entity, field, s string) (float64, error) {
	v, err := parseSigned(entity, field, s)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, &InvalidSnapshotError{Entity: entity, Field: field, Reason: "is negative"}
	}
	return v, nil
}

func parsePositive(entity, field, s string) (float64, error) {
	v, err := parseSigned(entity, field, s)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, &InvalidSnapshotError{Entity: entity, Field: field, Reason: "is not positive"}
	}
	return v, nil
}
