package matching

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/raphalbongso/polymarket-bot/pkg/app/core/account"
	"github.com/raphalbongso/polymarket-bot/pkg/app/core/orderbook"
	"github.com/raphalbongso/polymarket-bot/pkg/util"
)

// FillStatus is the outcome of a single fill attempt.
type FillStatus int8

const (
	FillFilled   FillStatus = iota // remaining quantity fully matched
	FillPartial                    // some matched, remainder still wanted
	FillResting                    // nothing marketable
	FillRejected                   // invalid order or unaffordable
)

func (s FillStatus) String() string {
	switch s {
	case FillFilled:
		return "filled"
	case FillPartial:
		return "partial"
	case FillResting:
		return "resting"
	case FillRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

func (s FillStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *FillStatus) UnmarshalText(b []byte) error {
	switch string(b) {
	case "filled":
		*s = FillFilled
	case "partial":
		*s = FillPartial
	case "resting":
		*s = FillResting
	case "rejected":
		*s = FillRejected
	default:
		return fmt.Errorf("unknown fill status %q", b)
	}
	return nil
}

// Fill reports one attempt. It is immutable once returned.
type Fill struct {
	OrderID string         `json:"order_id"`
	TokenID string         `json:"token_id"`
	Side    orderbook.Side `json:"side"`
	Status  FillStatus     `json:"status"`

	Requested   float64 `json:"requested"` // remaining quantity going into the attempt
	FilledQty   float64 `json:"filled_qty"`
	AvgPrice    float64 `json:"avg_price"` // slippage-adjusted VWAP
	SlippageBps float64 `json:"slippage_bps"`
	RealizedPnL float64 `json:"realized_pnl"`

	Reason string `json:"reason,omitempty"`
}

// Remaining returns how much of the requested quantity is still unfilled.
func (f Fill) Remaining() float64 {
	return f.Requested - f.FilledQty
}

type Config struct {
	SlippageBps float64
}

// Engine simulates fills of paper orders against order book snapshots.
// Every non-zero fill is booked into the ledger.
type Engine struct {
	slippage float64 // fraction, bps / 10_000
	ledger   *account.Ledger
	logger   *zap.SugaredLogger
}

func NewEngine(cfg Config, ledger *account.Ledger, logger *zap.SugaredLogger) *Engine {
	return &Engine{
		slippage: cfg.SlippageBps / 10_000,
		ledger:   ledger,
		logger:   util.OrNop(logger),
	}
}

func (e *Engine) SlippageBps() float64    { return e.slippage * 10_000 }
func (e *Engine) Ledger() *account.Ledger { return e.ledger }

func rejected(o *account.Order, reason string) Fill {
	return Fill{
		OrderID:   o.ID,
		TokenID:   o.TokenID,
		Side:      o.Side,
		Status:    FillRejected,
		Requested: o.Remaining(),
		Reason:    reason,
	}
}

// AttemptFill matches the order's remaining quantity against the opposite
// side of book, walking marketable levels best first. The order itself is
// not mutated; callers fold the returned Fill into it.
func (e *Engine) AttemptFill(o *account.Order, book orderbook.Snapshot) Fill {
	if !o.Side.Valid() {
		return rejected(o, "invalid side")
	}
	if !(o.Price > 0 && o.Price < 1) {
		return rejected(o, "price outside (0,1)")
	}
	want := o.Remaining()
	if !(want > 0) {
		return rejected(o, "non-positive quantity")
	}

	levels := book.Marketable(o.Side, o.Price)
	if len(levels) == 0 {
		return Fill{
			OrderID:   o.ID,
			TokenID:   o.TokenID,
			Side:      o.Side,
			Status:    FillResting,
			Requested: want,
		}
	}

	remaining := want
	var filled, notional float64
	for _, lvl := range levels {
		if remaining <= 0 {
			break
		}
		take := math.Min(remaining, lvl.Size)
		filled += take
		notional += take * lvl.Price
		remaining -= take
	}

	avg := notional / filled
	if o.Side == orderbook.Buy {
		avg *= 1 + e.slippage
	} else {
		avg *= 1 - e.slippage
	}

	shrunk := false
	if o.Side == orderbook.Buy {
		balance := e.ledger.Balance()
		if filled*avg > balance {
			filled = balance / avg
			shrunk = true
			if !(filled > 0) {
				e.logger.Debugw("fill_rejected_insufficient_balance",
					"order_id", o.ID, "token_id", o.TokenID, "balance", balance)
				return rejected(o, "insufficient balance")
			}
		}
	}

	status := FillFilled
	if shrunk || remaining > 0 {
		status = FillPartial
	}

	realized := e.ledger.ApplyFill(o.TokenID, o.Side, filled, avg)
	f := Fill{
		OrderID:     o.ID,
		TokenID:     o.TokenID,
		Side:        o.Side,
		Status:      status,
		Requested:   want,
		FilledQty:   filled,
		AvgPrice:    avg,
		SlippageBps: math.Abs(avg-o.Price) / o.Price * 10_000,
		RealizedPnL: realized,
	}

	e.logger.Debugw("fill",
		"order_id", f.OrderID,
		"token_id", f.TokenID,
		"side", f.Side.String(),
		"status", f.Status.String(),
		"filled_qty", f.FilledQty,
		"avg_price", f.AvgPrice,
		"realized_pnl", f.RealizedPnL,
	)
	return f
}
