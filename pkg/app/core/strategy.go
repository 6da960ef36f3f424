package core

import "github.com/raphalbongso/polymarket-bot/pkg/app/core/orderbook"

// DataKind names an input a strategy needs before it can be evaluated.
type DataKind string

const (
	DataOrderbook    DataKind = "orderbook"
	DataPriceHistory DataKind = "price_history"
	DataWhaleTrades  DataKind = "whale_trades"
	DataNews         DataKind = "news"
)

// MarketView is the read-only input handed to a strategy on each tick.
type MarketView struct {
	MarketID string
	Tokens   []string
	Books    map[string]orderbook.Snapshot
	Marks    map[string]float64
}

// Strategy emits signals; it never places orders.
type Strategy interface {
	Name() string
	Evaluate(m MarketView) []Signal
	RequiredData() []DataKind
}
