package paper

import (
	"context"
	"errors"
	"time"

	"github.com/raphalbongso/polymarket-bot/pkg/risk"
)

// Event topics.
const (
	TopicTrade     = "trade"
	TopicSignal    = "signal"
	TopicHeartbeat = "heartbeat"
	TopicKill      = "kill"
)

// Publisher fans monitoring events out to external consumers.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// MultiPublisher publishes to every member and joins their errors.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, topic string, payload any) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, topic, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type SignalEvent struct {
	Tick       int64   `json:"tick"`
	Strategy   string  `json:"strategy"`
	Market     string  `json:"market"`
	TokenID    string  `json:"token_id"`
	Side       string  `json:"side"`
	Confidence float64 `json:"confidence"`
}

type TradeEvent struct {
	Tick         int64   `json:"tick"`
	Strategy     string  `json:"strategy,omitempty"`
	Market       string  `json:"market,omitempty"`
	TokenID      string  `json:"token"`
	Side         string  `json:"side"`
	Price        float64 `json:"price"`
	SizeUSD      float64 `json:"size_usd"`
	Confidence   float64 `json:"confidence,omitempty"`
	Mode         string  `json:"mode"`
	OrderID      string  `json:"order_id,omitempty"`
	FillStatus   string  `json:"fill_status"`
	FilledQty    float64 `json:"filled_qty"`
	AvgFillPrice float64 `json:"avg_fill_price"`
	SlippageBps  float64 `json:"slippage_bps"`
	RealizedPnL  float64 `json:"realized_pnl"`
	Resting      bool    `json:"resting,omitempty"` // fill of a previously resting order
}

type Heartbeat struct {
	Tick      int64       `json:"tick"`
	Timestamp time.Time   `json:"timestamp"`
	Risk      risk.Report `json:"risk"`
	Paper     Summary     `json:"paper"`
	StateHash string      `json:"state_hash"`
}

type KillEvent struct {
	Tick      int64     `json:"tick"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
}
