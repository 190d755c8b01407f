package feed

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/tradepulse/riskcore/pkg/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// depthMessage is the venue's depth frame: a full top-N book replace per
// message, levels as [price, quantity] string pairs. There is no diff
// protocol to apply; each frame supersedes the previous one wholesale.
type depthMessage struct {
	Type   string     `json:"type"`
	Symbol string     `json:"symbol"`
	Bids   [][]string `json:"bids"`
	Asks   [][]string `json:"asks"`
	Time   int64      `json:"ts"`
}

func decodeDepthMessage(payload []byte) (*depthMessage, error) {
	var msg depthMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode depth message: %w", err)
	}
	return &msg, nil
}

// normalizeDepth converts a raw frame into a DepthSnapshot: levels parsed
// and validated, bids sorted descending and asks ascending, truncated to
// maxLevels, cumulative totals filled in.
func normalizeDepth(msg *depthMessage, maxLevels int) (*models.DepthSnapshot, error) {
	bids, err := parseLevels(msg.Bids)
	if err != nil {
		return nil, fmt.Errorf("bad bid level for %s: %w", msg.Symbol, err)
	}
	asks, err := parseLevels(msg.Asks)
	if err != nil {
		return nil, fmt.Errorf("bad ask level for %s: %w", msg.Symbol, err)
	}

	sort.Slice(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })

	if len(bids) > maxLevels {
		bids = bids[:maxLevels]
	}
	if len(asks) > maxLevels {
		asks = asks[:maxLevels]
	}

	fillTotals(bids)
	fillTotals(asks)

	ts := time.Now()
	if msg.Time > 0 {
		ts = time.UnixMilli(msg.Time)
	}

	return &models.DepthSnapshot{
		Symbol:    msg.Symbol,
		Bids:      bids,
		Asks:      asks,
		Timestamp: ts,
	}, nil
}

func parseLevels(raw [][]string) ([]models.DepthLevel, error) {
	levels := make([]models.DepthLevel, 0, len(raw))
	for _, pair := range raw {
		if len(pair) < 2 {
			return nil, fmt.Errorf("level has %d fields, want 2", len(pair))
		}
		price, err := strconv.ParseFloat(pair[0], 64)
		if err != nil {
			return nil, fmt.Errorf("price %q: %w", pair[0], err)
		}
		qty, err := strconv.ParseFloat(pair[1], 64)
		if err != nil {
			return nil, fmt.Errorf("quantity %q: %w", pair[1], err)
		}
		if price <= 0 || qty < 0 {
			return nil, fmt.Errorf("level %q/%q out of range", pair[0], pair[1])
		}
		levels = append(levels, models.DepthLevel{Price: price, Quantity: qty})
	}
	return levels, nil
}

func fillTotals(levels []models.DepthLevel) {
	var total float64
	for i := range levels {
		total += levels[i].Quantity
		levels[i].Total = total
	}
}
