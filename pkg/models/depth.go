package models

import (
	"time"
)

type DepthLevel struct {
	Price    float64
	Quantity float64
	Total    float64 // cumulative quantity from the top of the book
}

// DepthSnapshot is a full top-N replacement of the book for one symbol.
// Bids are sorted descending by price, asks ascending.
type DepthSnapshot struct {
	Symbol    string
	Bids      []DepthLevel
	Asks      []DepthLevel
	Stale     bool
	Timestamp time.Time
}

func (d *DepthSnapshot) BestBid() (DepthLevel, bool) {
	if len(d.Bids) == 0 {
		return DepthLevel{}, false
	}
	return d.Bids[0], true
}

func (d *DepthSnapshot) BestAsk() (DepthLevel, bool) {
	if len(d.Asks) == 0 {
		return DepthLevel{}, false
	}
	return d.Asks[0], true
}

func (d *DepthSnapshot) Spread() float64 {
	bid, okB := d.BestBid()
	ask, okA := d.BestAsk()
	if !okB || !okA {
		return 0
	}
	return ask.Price - bid.Price
}

func (d *DepthSnapshot) SpreadPercent() float64 {
	bid, ok := d.BestBid()
	if !ok || bid.Price <= 0 {
		return 0
	}
	return d.Spread() / bid.Price * 100
}

// MidPrice is used as the live mark price for risk evaluation.
func (d *DepthSnapshot) MidPrice() float64 {
	bid, okB := d.BestBid()
	ask, okA := d.BestAsk()
	if !okB || !okA {
		return 0
	}
	return (bid.Price + ask.Price) / 2
}
