package account

import (
	"fmt"
	"math"
	"sort"

	"github.com/raphalbongso/polymarket-bot/pkg/app/core/orderbook"
)

// Ledger owns the paper cash balance and one Position per instrument.
// It is not safe for concurrent use; the owning trader serializes access.
type Ledger struct {
	balance       float64
	initial       float64
	totalRealized float64
	positions     map[string]*Position // token -> position
}

func NewLedger(balance float64) *Ledger {
	return &Ledger{
		balance:   balance,
		initial:   balance,
		positions: make(map[string]*Position),
	}
}

func (l *Ledger) Balance() float64          { return l.balance }
func (l *Ledger) InitialBalance() float64   { return l.initial }
func (l *Ledger) TotalRealizedPnL() float64 { return l.totalRealized }

// Position returns a copy of the position for token.
func (l *Ledger) Position(token string) (Position, bool) {
	p, ok := l.positions[token]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Positions returns copies of every position, including flat ones, sorted by token.
func (l *Ledger) Positions() []Position {
	out := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TokenID < out[j].TokenID })
	return out
}

// OpenPositions returns positions with non-zero quantity, sorted by token.
func (l *Ledger) OpenPositions() []Position {
	var out []Position
	for _, p := range l.Positions() {
		if p.Quantity != 0 {
			out = append(out, p)
		}
	}
	return out
}

// ApplyFill books a fill of qty at price and returns the realized PnL.
//
//   - Buy debits qty × price and blends the entry price while the resulting
//     quantity is positive. Buys never realize PnL.
//   - Sell against a long realizes min(qty, long) × (price - entry) and
//     credits that closed quantity × price.
//   - Sell with no long opens or extends a short: credits qty × price and
//     resets the entry price to price.
func (l *Ledger) ApplyFill(token string, side orderbook.Side, qty, price float64) float64 {
	pos, ok := l.positions[token]
	if !ok {
		pos = &Position{TokenID: token}
		l.positions[token] = pos
	}

	var realized float64
	switch side {
	case orderbook.Buy:
		l.balance -= qty * price
		total := pos.Quantity + qty
		if total > 0 {
			pos.AvgEntryPrice = (pos.Quantity*pos.AvgEntryPrice + qty*price) / total
		}
		pos.Quantity = total
		pos.recomputeCostBasis()

	case orderbook.Sell:
		if pos.Quantity > 0 {
			sellQty := math.Min(qty, pos.Quantity)
			realized = sellQty * (price - pos.AvgEntryPrice)
			pos.RealizedPnL += realized
			l.totalRealized += realized

			pos.Quantity -= sellQty
			pos.recomputeCostBasis()
			l.balance += sellQty * price
		} else {
			l.balance += qty * price
			pos.Quantity -= qty
			pos.AvgEntryPrice = price
			pos.recomputeCostBasis()
		}
	}

	// Solvency shrinking can leave the balance a rounding error below zero.
	if l.balance < 0 && l.balance > -qtyEpsilon {
		l.balance = 0
	}
	return realized
}

// UnrealizedPnL sums mark-to-market PnL over positions that have a mark.
func (l *Ledger) UnrealizedPnL(marks map[string]float64) float64 {
	var total float64
	for token, p := range l.positions {
		mark, ok := marks[token]
		if !ok || p.Quantity == 0 {
			continue
		}
		total += p.UnrealizedPnL(mark)
	}
	return total
}

// Validate checks every position invariant.
func (l *Ledger) Validate() error {
	for token, p := range l.positions {
		if p.TokenID != token {
			return fmt.Errorf("position token mismatch: key=%s, pos=%s", token, p.TokenID)
		}
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Restore replaces ledger state, used when resuming from a journal.
func (l *Ledger) Restore(balance, initial float64, positions []Position) {
	l.balance = balance
	l.initial = initial
	l.totalRealized = 0
	l.positions = make(map[string]*Position, len(positions))
	for i := range positions {
		p := positions[i]
		p.recomputeCostBasis()
		l.positions[p.TokenID] = &p
		l.totalRealized += p.RealizedPnL
	}
}
