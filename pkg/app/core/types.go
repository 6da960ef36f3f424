package core

import (
	"encoding/json"

	"github.com/raphalbongso/polymarket-bot/pkg/app/core/orderbook"
)

type Side = orderbook.Side

const (
	Buy  = orderbook.Buy
	Sell = orderbook.Sell
)

// ParseSide accepts "buy"/"sell" in any case.
func ParseSide(s string) (Side, error) { return orderbook.ParseSide(s) }

// MetaFixedSizeUSD in Signal.Metadata replaces Kelly sizing with a fixed
// dollar amount. The pre-trade check still applies.
const MetaFixedSizeUSD = "fixed_size_usd"

// Signal is a trading intent produced by strategy code.
type Signal struct {
	Strategy       string         `json:"strategy"`
	MarketID       string         `json:"market"`
	TokenID        string         `json:"token_id"`
	Side           Side           `json:"side"`
	Confidence     float64        `json:"confidence"`      // win probability in [0,1]
	RawEdge        float64        `json:"raw_edge"`        // expected edge, e.g. 0.03
	SuggestedPrice float64        `json:"suggested_price"` // limit price in (0,1)
	MaxSize        float64        `json:"max_size"`        // USD
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// FixedSizeUSD returns the fixed-size override when present and positive.
func (s Signal) FixedSizeUSD() (float64, bool) {
	if s.Metadata == nil {
		return 0, false
	}
	var v float64
	switch raw := s.Metadata[MetaFixedSizeUSD].(type) {
	case float64:
		v = raw
	case float32:
		v = float64(raw)
	case int:
		v = float64(raw)
	case int64:
		v = float64(raw)
	case json.Number:
		f, err := raw.Float64()
		if err != nil {
			return 0, false
		}
		v = f
	default:
		return 0, false
	}
	return v, v > 0
}
