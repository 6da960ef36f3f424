package paper

import (
	"context"
	"errors"
	"time"

	"github.com/raphalbongso/polymarket-bot/pkg/app/core"
	"github.com/raphalbongso/polymarket-bot/pkg/app/core/orderbook"
)

var ErrSourceExhausted = errors.New("paper: tick source exhausted")

// Market groups the instruments of one prediction market.
type Market struct {
	ID     string   `json:"id"`
	Tokens []string `json:"tokens"`
}

// Tick is everything the runner consumes in one iteration.
type Tick struct {
	Time    time.Time                     `json:"time"`
	Markets []Market                      `json:"markets,omitempty"`
	Books   map[string]orderbook.Snapshot `json:"books"`
	Signals []core.Signal                 `json:"signals,omitempty"`
}

// TickSource yields ticks until it returns ErrSourceExhausted.
type TickSource interface {
	Next(ctx context.Context) (Tick, error)
}
