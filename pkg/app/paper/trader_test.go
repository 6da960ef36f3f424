package paper

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphalbongso/polymarket-bot/pkg/app/core"
	"github.com/raphalbongso/polymarket-bot/pkg/app/core/account"
	"github.com/raphalbongso/polymarket-bot/pkg/app/core/matching"
	"github.com/raphalbongso/polymarket-bot/pkg/app/core/orderbook"
	"github.com/raphalbongso/polymarket-bot/pkg/util"
)

var start = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func newTrader(t *testing.T, slippageBps float64) (*Trader, *util.ManualClock) {
	t.Helper()
	clock := util.NewManualClock(start)
	cfg := DefaultConfig()
	cfg.SlippageBps = slippageBps
	return NewTrader(cfg, clock, nil), clock
}

func signal(side core.Side, price float64) core.Signal {
	return core.Signal{Strategy: "test", TokenID: "tok", Side: side, SuggestedPrice: price, Confidence: 0.6}
}

func lv(p, s float64) orderbook.PriceLevel { return orderbook.PriceLevel{Price: p, Size: s} }

func TestExecuteRoundTrip(t *testing.T) {
	tr, _ := newTrader(t, 0)

	buy := tr.Execute(signal(core.Buy, 0.50), 50, orderbook.Snapshot{Asks: []orderbook.PriceLevel{lv(0.50, 200)}})
	require.Equal(t, matching.FillFilled, buy.Status)
	assert.Equal(t, 100.0, buy.FilledQty)
	assert.Equal(t, 0.50, buy.AvgPrice)
	assert.InDelta(t, 950, tr.Balance(), 1e-9)
	assert.Len(t, buy.OrderID, 8)

	sell := tr.Execute(signal(core.Sell, 0.60), 60, orderbook.Snapshot{Bids: []orderbook.PriceLevel{lv(0.60, 200)}})
	require.Equal(t, matching.FillFilled, sell.Status)
	assert.InDelta(t, 10.0, sell.RealizedPnL, 1e-9)
	assert.InDelta(t, 1010, tr.Balance(), 1e-9)

	s := tr.Summary()
	assert.Equal(t, 2, s.FilledOrders)
	assert.Zero(t, s.OpenPositions)
	assert.InDelta(t, 10.0, s.TotalRealizedPnL, 1e-9)
}

func TestExecutePartialRests(t *testing.T) {
	tr, _ := newTrader(t, 0)
	f := tr.Execute(signal(core.Buy, 0.50), 500, orderbook.Snapshot{Asks: []orderbook.PriceLevel{lv(0.50, 10)}})

	assert.Equal(t, matching.FillPartial, f.Status)
	assert.Equal(t, 10.0, f.FilledQty)
	resting := tr.RestingOrders()
	require.Len(t, resting, 1)
	assert.Equal(t, account.OrderPartiallyFilled, resting[0].Status)
	assert.InDelta(t, 990, resting[0].Remaining(), 1e-9)
}

func TestRestingOrderFillsLater(t *testing.T) {
	tr, clock := newTrader(t, 0)

	f := tr.Execute(signal(core.Buy, 0.50), 50, orderbook.Snapshot{Asks: []orderbook.PriceLevel{lv(0.60, 100)}})
	require.Equal(t, matching.FillResting, f.Status)
	assert.Zero(t, f.FilledQty)
	require.Len(t, tr.RestingOrders(), 1)

	clock.Advance(10 * time.Second)
	fills := tr.CheckRestingOrders(map[string]orderbook.Snapshot{
		"tok": {Asks: []orderbook.PriceLevel{lv(0.50, 100)}},
	})
	require.Len(t, fills, 1)
	assert.Equal(t, matching.FillFilled, fills[0].Status)
	assert.Empty(t, tr.RestingOrders())

	o, ok := tr.Order(f.OrderID)
	require.True(t, ok)
	assert.Equal(t, account.OrderFilled, o.Status)
}

func TestRestingOrderExpires(t *testing.T) {
	tr, clock := newTrader(t, 0)
	tr.Execute(signal(core.Buy, 0.50), 50, orderbook.Snapshot{})

	clock.Advance(301 * time.Second)
	fills := tr.CheckRestingOrders(map[string]orderbook.Snapshot{
		"tok": {Asks: []orderbook.PriceLevel{lv(0.50, 100)}},
	})
	assert.Empty(t, fills)
	assert.Empty(t, tr.RestingOrders())
	require.Len(t, tr.OrderHistory(), 1)
	assert.Equal(t, account.OrderExpired, tr.OrderHistory()[0].Status)
	assert.Equal(t, 1000.0, tr.Balance())
}

func TestExecuteRejectsBadSizing(t *testing.T) {
	tr, _ := newTrader(t, 0)
	for _, tc := range []struct {
		price, size float64
	}{{0, 50}, {-0.5, 50}, {0.5, 0}, {0.5, -10}} {
		f := tr.Execute(signal(core.Buy, tc.price), tc.size, orderbook.Snapshot{})
		assert.Equal(t, matching.FillRejected, f.Status, "price=%v size=%v", tc.price, tc.size)
	}
	assert.Empty(t, tr.RestingOrders())
	assert.Empty(t, tr.OrderHistory())
}

func TestOnOrderSeesTransitions(t *testing.T) {
	tr, _ := newTrader(t, 0)
	var got []account.OrderStatus
	tr.OnOrder(func(o account.Order) { got = append(got, o.Status) })

	tr.Execute(signal(core.Buy, 0.50), 50, orderbook.Snapshot{Asks: []orderbook.PriceLevel{lv(0.50, 200)}})
	assert.Equal(t, []account.OrderStatus{account.OrderFilled}, got)
}

func TestSummaryUnrealized(t *testing.T) {
	tr, _ := newTrader(t, 0)
	tr.Execute(signal(core.Buy, 0.50), 50, orderbook.Snapshot{Asks: []orderbook.PriceLevel{lv(0.50, 200)}})
	tr.SetMarks(map[string]float64{"tok": 0.55})

	s := tr.Summary()
	assert.InDelta(t, 5, s.UnrealizedPnL, 1e-9)
	require.Contains(t, s.Positions, "tok")
	assert.Equal(t, 100.0, s.Positions["tok"].Quantity)
}

func TestFinalReport(t *testing.T) {
	tr, _ := newTrader(t, 0)
	tr.Execute(core.Signal{TokenID: "0x1234567890abcdef1234", Side: core.Buy, SuggestedPrice: 0.5}, 50,
		orderbook.Snapshot{Asks: []orderbook.PriceLevel{lv(0.50, 200)}})

	rep := tr.FinalReport()
	assert.True(t, strings.HasPrefix(rep, "=== PAPER TRADING FINAL REPORT ==="))
	assert.Contains(t, rep, "Initial balance:    $1000.00")
	assert.Contains(t, rep, "Final balance:      $950.00")
	assert.Contains(t, rep, "0x1234567890abcd... qty=100.0000 entry=0.5000")
	assert.True(t, strings.HasSuffix(rep, strings.Repeat("=", 35)))
}

func TestStateHash(t *testing.T) {
	a, _ := newTrader(t, 0)
	b, _ := newTrader(t, 0)
	assert.Equal(t, a.StateHash(), b.StateHash())
	assert.True(t, strings.HasPrefix(a.StateHash(), "0x"))
	assert.Len(t, a.StateHash(), 66)

	a.Execute(signal(core.Buy, 0.50), 50, orderbook.Snapshot{Asks: []orderbook.PriceLevel{lv(0.50, 200)}})
	assert.NotEqual(t, a.StateHash(), b.StateHash())
}

func TestRestore(t *testing.T) {
	tr, _ := newTrader(t, 0)
	tr.Restore(940, 1000,
		[]account.Position{{TokenID: "tok", Quantity: 100, AvgEntryPrice: 0.5}},
		[]account.Order{{ID: "r1", TokenID: "tok", Side: core.Buy, Price: 0.4, Qty: 25, CreatedAt: start, TTL: time.Hour}},
	)
	s := tr.Summary()
	assert.Equal(t, 940.0, s.Balance)
	assert.Equal(t, 1000.0, s.InitialBalance)
	assert.Equal(t, 1, s.OpenPositions)
	assert.Equal(t, 1, s.RestingOrders)
}
