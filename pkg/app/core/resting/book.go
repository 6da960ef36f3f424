package resting

import (
	"time"

	"go.uber.org/zap"

	"github.com/raphalbongso/polymarket-bot/pkg/app/core/account"
	"github.com/raphalbongso/polymarket-bot/pkg/app/core/matching"
	"github.com/raphalbongso/polymarket-bot/pkg/app/core/orderbook"
	"github.com/raphalbongso/polymarket-bot/pkg/util"
)

// Book holds paper orders that did not fully fill on submission.
//
// Orders live in an arena addressed by slot; the id index and the active and
// terminal lists only hold slots. Not safe for concurrent use.
type Book struct {
	engine *matching.Engine
	logger *zap.SugaredLogger

	arena    []account.Order
	index    map[string]int // order id -> arena slot
	active   []int          // open/partial, in acceptance order
	terminal []int          // filled/expired, in transition order
	filled   int
	expired  int

	onTransition func(account.Order)
}

func New(engine *matching.Engine, logger *zap.SugaredLogger) *Book {
	return &Book{
		engine: engine,
		logger: util.OrNop(logger),
		index:  make(map[string]int),
	}
}

// OnTransition registers fn to receive a copy of an order after every state
// change of a retained order.
func (b *Book) OnTransition(fn func(account.Order)) { b.onTransition = fn }

func (b *Book) emit(o *account.Order) {
	if b.onTransition != nil {
		b.onTransition(*o)
	}
}

// Submit runs the first fill attempt for a new order. Rejected orders leave
// no trace; fully filled orders go straight to history; anything else rests.
func (b *Book) Submit(o account.Order, snap orderbook.Snapshot, now time.Time) (matching.Fill, account.Order) {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	o.Status = account.OrderOpen

	f := b.engine.AttemptFill(&o, snap)
	if f.Status == matching.FillRejected {
		o.Status = account.OrderRejected
		return f, o
	}
	o.RecordFill(f.FilledQty, f.AvgPrice, now)

	slot := len(b.arena)
	b.arena = append(b.arena, o)
	b.index[o.ID] = slot
	if o.Status == account.OrderFilled {
		b.terminal = append(b.terminal, slot)
		b.filled++
	} else {
		b.active = append(b.active, slot)
		b.logger.Debugw("order_resting",
			"order_id", o.ID,
			"token_id", o.TokenID,
			"remaining", o.Remaining(),
		)
	}
	b.emit(&b.arena[slot])
	return f, o
}

// Check re-attempts every active order in acceptance order. Orders past their
// TTL are expired before matching; orders whose instrument has no snapshot
// this tick are kept unchanged. Returns the fills that moved quantity.
func (b *Book) Check(now time.Time, books map[string]orderbook.Snapshot) []matching.Fill {
	var fills []matching.Fill
	kept := b.active[:0]

	for _, slot := range b.active {
		o := &b.arena[slot]

		if o.Expired(now) {
			o.Status = account.OrderExpired
			o.UpdatedAt = now
			b.terminal = append(b.terminal, slot)
			b.expired++
			b.logger.Infow("order_expired",
				"order_id", o.ID,
				"token_id", o.TokenID,
				"filled", o.Filled,
				"qty", o.Qty,
			)
			b.emit(o)
			continue
		}

		snap, ok := books[o.TokenID]
		if !ok {
			kept = append(kept, slot)
			continue
		}

		f := b.engine.AttemptFill(o, snap)
		if f.FilledQty > 0 {
			o.RecordFill(f.FilledQty, f.AvgPrice, now)
			fills = append(fills, f)
			b.emit(o)
		}
		if o.Status == account.OrderFilled {
			b.terminal = append(b.terminal, slot)
			b.filled++
			b.logger.Infow("resting_order_filled",
				"order_id", o.ID,
				"token_id", o.TokenID,
				"avg_fill_price", o.AvgFillPrice,
			)
			continue
		}
		kept = append(kept, slot)
	}

	b.active = kept
	return fills
}

// Get returns a copy of the order with id.
func (b *Book) Get(id string) (account.Order, bool) {
	slot, ok := b.index[id]
	if !ok {
		return account.Order{}, false
	}
	return b.arena[slot], true
}

// Open returns copies of active orders in acceptance order.
func (b *Book) Open() []account.Order {
	out := make([]account.Order, 0, len(b.active))
	for _, slot := range b.active {
		out = append(out, b.arena[slot])
	}
	return out
}

// History returns copies of terminal orders in transition order.
func (b *Book) History() []account.Order {
	out := make([]account.Order, 0, len(b.terminal))
	for _, slot := range b.terminal {
		out = append(out, b.arena[slot])
	}
	return out
}

func (b *Book) Len() int          { return len(b.active) }
func (b *Book) FilledCount() int  { return b.filled }
func (b *Book) ExpiredCount() int { return b.expired }

// Restore re-admits previously open orders, used when resuming from a journal.
// Orders already known or closed are ignored.
func (b *Book) Restore(orders []account.Order) {
	for _, o := range orders {
		if o.IsClosed() {
			continue
		}
		if _, dup := b.index[o.ID]; dup {
			continue
		}
		slot := len(b.arena)
		b.arena = append(b.arena, o)
		b.index[o.ID] = slot
		b.active = append(b.active, slot)
	}
}
