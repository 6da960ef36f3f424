package orderbook

import (
	"encoding/json"
	"fmt"
)

// PriceLevel is one aggregated depth level. Prices are probabilities in (0,1).
type PriceLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// UnmarshalJSON accepts both {"price":p,"size":s} and [p, s].
func (l *PriceLevel) UnmarshalJSON(b []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(b, &pair); err == nil {
		l.Price, l.Size = pair[0], pair[1]
		return nil
	}
	type plain PriceLevel
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return fmt.Errorf("price level: %w", err)
	}
	*l = PriceLevel(p)
	return nil
}

// Snapshot is an externally supplied view of one instrument's book.
// Bids are sorted high to low and asks low to high; nothing here re-sorts them.
type Snapshot struct {
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp int64        `json:"timestamp,omitempty"` // Unix milliseconds
}

// Opposing returns the side of the book an order on side s trades against.
func (s Snapshot) Opposing(side Side) []PriceLevel {
	if side == Buy {
		return s.Asks
	}
	return s.Bids
}

// Marketable returns the best-first prefix of opposing levels an order at
// limit can trade with. Levels with no size are skipped.
func (s Snapshot) Marketable(side Side, limit float64) []PriceLevel {
	var out []PriceLevel
	for _, lvl := range s.Opposing(side) {
		if lvl.Size <= 0 {
			continue
		}
		if side == Buy && lvl.Price > limit {
			continue
		}
		if side == Sell && lvl.Price < limit {
			continue
		}
		out = append(out, lvl)
	}
	return out
}

// BestBid returns the highest bid price, false if there are no bids.
func (s Snapshot) BestBid() (float64, bool) {
	if len(s.Bids) == 0 {
		return 0, false
	}
	return s.Bids[0].Price, true
}

// BestAsk returns the lowest ask price, false if there are no asks.
func (s Snapshot) BestAsk() (float64, bool) {
	if len(s.Asks) == 0 {
		return 0, false
	}
	return s.Asks[0].Price, true
}

// Mid returns (best bid + best ask) / 2. False if either side is empty.
func (s Snapshot) Mid() (float64, bool) {
	bid, ok1 := s.BestBid()
	ask, ok2 := s.BestAsk()
	if !ok1 || !ok2 {
		return 0, false
	}
	return (bid + ask) / 2, true
}

// Spread returns best ask - best bid. False if either side is empty.
func (s Snapshot) Spread() (float64, bool) {
	bid, ok1 := s.BestBid()
	ask, ok2 := s.BestAsk()
	if !ok1 || !ok2 {
		return 0, false
	}
	return ask - bid, true
}

// Depth sums size across levels.
func Depth(levels []PriceLevel) float64 {
	var total float64
	for _, l := range levels {
		total += l.Size
	}
	return total
}
