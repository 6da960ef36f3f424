package account

import (
	"fmt"
	"math"
	"time"

	"github.com/raphalbongso/polymarket-bot/pkg/app/core/orderbook"
)

// qtyEpsilon absorbs float dust when comparing cumulative fills against the
// original quantity.
const qtyEpsilon = 1e-9

// Position is the paper holding in one instrument.
type Position struct {
	TokenID string `json:"token_id"`

	// Signed quantity: +ve long, -ve short.
	Quantity float64 `json:"quantity"`

	// Quantity-weighted average entry price.
	AvgEntryPrice float64 `json:"avg_entry_price"`

	// |Quantity| × AvgEntryPrice, recomputed after every fill.
	CostBasis float64 `json:"cost_basis"`

	RealizedPnL float64 `json:"realized_pnl"`
}

// UnrealizedPnL marks the position at mark: (mark - entry) × quantity.
func (p *Position) UnrealizedPnL(mark float64) float64 {
	if p.Quantity == 0 {
		return 0
	}
	return (mark - p.AvgEntryPrice) * p.Quantity
}

func (p *Position) IsLong() bool  { return p.Quantity > 0 }
func (p *Position) IsShort() bool { return p.Quantity < 0 }

// Notional returns |quantity| × price.
func (p *Position) Notional(price float64) float64 {
	return math.Abs(p.Quantity) * price
}

func (p *Position) recomputeCostBasis() {
	p.CostBasis = math.Abs(p.Quantity) * p.AvgEntryPrice
}

// Validate checks the cost-basis invariant.
func (p *Position) Validate() error {
	want := math.Abs(p.Quantity) * p.AvgEntryPrice
	if math.Abs(p.CostBasis-want) > 1e-9*math.Max(1, want) {
		return fmt.Errorf("cost basis %.10f != |qty| x avg %.10f for %s", p.CostBasis, want, p.TokenID)
	}
	return nil
}

// OrderStatus represents the lifecycle state of a paper order.
type OrderStatus int8

const (
	OrderOpen OrderStatus = iota
	OrderPartiallyFilled
	OrderFilled
	OrderExpired
	OrderRejected
)

func (s OrderStatus) String() string {
	switch s {
	case OrderOpen:
		return "open"
	case OrderPartiallyFilled:
		return "partial"
	case OrderFilled:
		return "filled"
	case OrderExpired:
		return "expired"
	case OrderRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

func (s OrderStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *OrderStatus) UnmarshalText(b []byte) error {
	switch string(b) {
	case "open":
		*s = OrderOpen
	case "partial":
		*s = OrderPartiallyFilled
	case "filled":
		*s = OrderFilled
	case "expired":
		*s = OrderExpired
	case "rejected":
		*s = OrderRejected
	default:
		return fmt.Errorf("unknown order status %q", b)
	}
	return nil
}

// Order is a paper limit order. Once accepted it is owned by the resting book.
type Order struct {
	ID      string         `json:"id"`
	TokenID string         `json:"token_id"`
	Side    orderbook.Side `json:"side"`

	Price float64 `json:"price"` // limit price in (0,1)
	Qty   float64 `json:"qty"`   // original quantity

	Filled       float64 `json:"filled"`         // cumulative filled quantity
	AvgFillPrice float64 `json:"avg_fill_price"` // VWAP over all fills

	Status OrderStatus `json:"status"`

	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	TTL       time.Duration `json:"ttl"`
}

// Remaining returns unfilled quantity.
func (o *Order) Remaining() float64 {
	r := o.Qty - o.Filled
	if r < 0 {
		return 0
	}
	return r
}

// IsClosed returns true once the order reached a terminal state.
func (o *Order) IsClosed() bool {
	return o.Status == OrderFilled || o.Status == OrderExpired || o.Status == OrderRejected
}

// Expired reports whether the order outlived its TTL at now. A non-positive
// TTL never expires.
func (o *Order) Expired(now time.Time) bool {
	if o.TTL <= 0 {
		return false
	}
	return now.Sub(o.CreatedAt) > o.TTL
}

// RecordFill folds an incremental fill into the cumulative quantity and
// average price, then derives the open/partial/filled status.
func (o *Order) RecordFill(qty, avgPrice float64, now time.Time) {
	if qty <= 0 {
		return
	}
	if rem := o.Remaining(); qty > rem {
		qty = rem
	}
	prev := o.Filled
	total := prev + qty
	o.AvgFillPrice = (prev*o.AvgFillPrice + qty*avgPrice) / total
	o.Filled = total
	if o.Qty-o.Filled <= qtyEpsilon*math.Max(1, o.Qty) {
		o.Filled = o.Qty
	}
	o.UpdatedAt = now

	switch {
	case o.Filled >= o.Qty:
		o.Status = OrderFilled
	case o.Filled > 0:
		o.Status = OrderPartiallyFilled
	default:
		o.Status = OrderOpen
	}
}

// Validate checks quantity invariants.
func (o *Order) Validate() error {
	if o.Filled < 0 {
		return fmt.Errorf("order %s: negative filled %.10f", o.ID, o.Filled)
	}
	if o.Filled > o.Qty {
		return fmt.Errorf("order %s: filled %.10f exceeds qty %.10f", o.ID, o.Filled, o.Qty)
	}
	if o.Status == OrderFilled && o.Filled != o.Qty {
		return fmt.Errorf("order %s: filled status with %.10f of %.10f", o.ID, o.Filled, o.Qty)
	}
	return nil
}
