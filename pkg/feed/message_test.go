package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAndNormalizeDepth(t *testing.T) {
	payload := []byte(`{
		"type": "depth",
		"symbol": "BTCUSDT",
		"bids": [["100.5","2"],["101","1"],["99","3"]],
		"asks": [["102","1.5"],["101.5","0.5"],["103","4"]],
		"ts": 1700000000000
	}`)

	msg, err := decodeDepthMessage(payload)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", msg.Symbol)

	snap, err := normalizeDepth(msg, 10)
	require.NoError(t, err)

	// Bids descending, asks ascending, regardless of wire order.
	require.Len(t, snap.Bids, 3)
	assert.InDelta(t, 101.0, snap.Bids[0].Price, 1e-9)
	assert.InDelta(t, 99.0, snap.Bids[2].Price, 1e-9)
	require.Len(t, snap.Asks, 3)
	assert.InDelta(t, 101.5, snap.Asks[0].Price, 1e-9)

	// Cumulative totals run from the top of the book.
	assert.InDelta(t, 1.0, snap.Bids[0].Total, 1e-9)
	assert.InDelta(t, 3.0, snap.Bids[1].Total, 1e-9)
	assert.InDelta(t, 6.0, snap.Bids[2].Total, 1e-9)

	// Best bid/ask and spread for the consumer contract.
	bid, ok := snap.BestBid()
	require.True(t, ok)
	ask, ok := snap.BestAsk()
	require.True(t, ok)
	assert.InDelta(t, 101.0, bid.Price, 1e-9)
	assert.InDelta(t, 101.5, ask.Price, 1e-9)
	assert.InDelta(t, 0.5, snap.Spread(), 1e-9)
	assert.InDelta(t, 0.5/101.0*100, snap.SpreadPercent(), 1e-9)
	assert.InDelta(t, 101.25, snap.MidPrice(), 1e-9)
}

func TestNormalizeDepthTruncatesToTopN(t *testing.T) {
	msg := &depthMessage{
		Type:   "depth",
		Symbol: "BTCUSDT",
		Bids: [][]string{
			{"100", "1"}, {"99", "1"}, {"98", "1"}, {"97", "1"},
		},
		Asks: [][]string{
			{"101", "1"}, {"102", "1"}, {"103", "1"},
		},
	}

	snap, err := normalizeDepth(msg, 2)
	require.NoError(t, err)
	assert.Len(t, snap.Bids, 2)
	assert.Len(t, snap.Asks, 2)
	assert.InDelta(t, 100.0, snap.Bids[0].Price, 1e-9)
	assert.InDelta(t, 101.0, snap.Asks[0].Price, 1e-9)
}

func TestNormalizeDepthRejectsBadLevels(t *testing.T) {
	tests := []struct {
		name string
		bids [][]string
	}{
		{"non-numeric price", [][]string{{"abc", "1"}}},
		{"non-numeric quantity", [][]string{{"100", "x"}}},
		{"zero price", [][]string{{"0", "1"}}},
		{"negative quantity", [][]string{{"100", "-1"}}},
		{"short level", [][]string{{"100"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := &depthMessage{Type: "depth", Symbol: "BTCUSDT", Bids: tt.bids}
			_, err := normalizeDepth(msg, 10)
			assert.Error(t, err)
		})
	}
}

func TestNormalizeDepthEmptyBook(t *testing.T) {
	msg := &depthMessage{Type: "depth", Symbol: "BTCUSDT"}

	snap, err := normalizeDepth(msg, 10)
	require.NoError(t, err)

	_, ok := snap.BestBid()
	assert.False(t, ok)
	assert.Zero(t, snap.Spread())
	assert.Zero(t, snap.MidPrice())
}
