package backend

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradepulse/riskcore/pkg/models"
)

func validAccountDTO() *accountDTO {
	return &accountDTO{
		AccountID:       "acct-1",
		WalletBalance:   "1000.50",
		PositionMargin:  "900",
		OrderMargin:     "50",
		RealizedPnl:     "-12.25",
		MarginMode:      "cross",
		DefaultLeverage: 10,
		TotalTrades:     40,
		WinningTrades:   25,
		UpdatedAt:       1700000000000,
	}
}

func validPositionDTO() *positionDTO {
	return &positionDTO{
		PositionID:        "pos-1",
		Symbol:            "BTCUSDT",
		Side:              "long",
		Quantity:          "0.5",
		EntryPrice:        "40000",
		MarkPrice:         "41000",
		Leverage:          20,
		InitialMargin:     "1000",
		MaintenanceMargin: "200",
		LiquidationPrice:  "38000",
		FundingRate:       "0.0003",
		UpdatedAt:         1700000000000,
	}
}

func TestParseAccount(t *testing.T) {
	acct, err := parseAccount(validAccountDTO())
	require.NoError(t, err)

	assert.Equal(t, "acct-1", acct.AccountID)
	assert.InDelta(t, 1000.50, acct.WalletBalance, 1e-9)
	assert.InDelta(t, -12.25, acct.RealizedPnL, 1e-9)
	assert.Equal(t, models.MarginModeCross, acct.MarginMode)
}

func TestParseAccountDefaults(t *testing.T) {
	dto := validAccountDTO()
	dto.MarginMode = ""
	dto.DefaultLeverage = 0

	acct, err := parseAccount(dto)
	require.NoError(t, err)
	assert.Equal(t, models.MarginModeCross, acct.MarginMode)
	assert.Equal(t, 1, acct.DefaultLeverage)
}

func TestParseAccountInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*accountDTO)
	}{
		{"missing wallet balance", func(d *accountDTO) { d.WalletBalance = "" }},
		{"non-numeric wallet balance", func(d *accountDTO) { d.WalletBalance = "abc" }},
		{"negative wallet balance", func(d *accountDTO) { d.WalletBalance = "-5" }},
		{"negative position margin", func(d *accountDTO) { d.PositionMargin = "-1" }},
		{"bad margin mode", func(d *accountDTO) { d.MarginMode = "hedged" }},
		{"winning exceeds total", func(d *accountDTO) { d.WinningTrades = 99 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dto := validAccountDTO()
			tt.mutate(dto)

			_, err := parseAccount(dto)
			require.Error(t, err)
			var invalid *InvalidSnapshotError
			assert.True(t, errors.As(err, &invalid))
		})
	}
}

func TestParsePosition(t *testing.T) {
	pos, err := parsePosition(validPositionDTO())
	require.NoError(t, err)

	assert.Equal(t, models.PositionSideLong, pos.Side)
	assert.InDelta(t, 0.5, pos.Quantity, 1e-9)
	assert.InDelta(t, 41000.0, pos.MarkPrice, 1e-9)
	assert.InDelta(t, 0.0003, pos.FundingRate, 1e-9)
}

func TestParsePositionDefaults(t *testing.T) {
	dto := validPositionDTO()
	dto.MarkPrice = ""
	dto.FundingRate = ""
	dto.Leverage = 0

	pos, err := parsePosition(dto)
	require.NoError(t, err)

	assert.Zero(t, pos.MarkPrice)
	assert.InDelta(t, 40000.0, pos.EffectiveMarkPrice(), 1e-9, "entry price fallback")
	assert.InDelta(t, defaultFundingRate, pos.FundingRate, 1e-9)
	assert.Equal(t, 1, pos.Leverage)
}

func TestParsePositionInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*positionDTO)
	}{
		{"zero quantity", func(d *positionDTO) { d.Quantity = "0" }},
		{"negative quantity", func(d *positionDTO) { d.Quantity = "-1" }},
		{"zero entry price", func(d *positionDTO) { d.EntryPrice = "0" }},
		{"bad side", func(d *positionDTO) { d.Side = "both" }},
		{"missing liquidation price", func(d *positionDTO) { d.LiquidationPrice = "" }},
		{"non-numeric mark", func(d *positionDTO) { d.MarkPrice = "n/a" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dto := validPositionDTO()
			tt.mutate(dto)

			_, err := parsePosition(dto)
			require.Error(t, err)
			var invalid *InvalidSnapshotError
			assert.True(t, errors.As(err, &invalid))
		})
	}
}
