package paper

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphalbongso/polymarket-bot/pkg/app/core"
	"github.com/raphalbongso/polymarket-bot/pkg/app/core/orderbook"
	"github.com/raphalbongso/polymarket-bot/pkg/risk"
	"github.com/raphalbongso/polymarket-bot/pkg/storage"
	"github.com/raphalbongso/polymarket-bot/pkg/util"
)

type recorder struct {
	mu     sync.Mutex
	events map[string][]any
}

func (r *recorder) Publish(_ context.Context, topic string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.events == nil {
		r.events = make(map[string][]any)
	}
	r.events[topic] = append(r.events[topic], payload)
	return nil
}

func (r *recorder) get(topic string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.events[topic]...)
}

type sliceSource struct {
	ticks []Tick
	i     int
}

func (s *sliceSource) Next(ctx context.Context) (Tick, error) {
	if s.i >= len(s.ticks) {
		return Tick{}, ErrSourceExhausted
	}
	t := s.ticks[s.i]
	s.i++
	return t, nil
}

type fixedStrategy struct{ sig core.Signal }

func (f fixedStrategy) Name() string                  { return "fixed" }
func (f fixedStrategy) RequiredData() []core.DataKind { return []core.DataKind{core.DataOrderbook} }
func (f fixedStrategy) Evaluate(m core.MarketView) []core.Signal {
	if _, ok := m.Books[f.sig.TokenID]; !ok {
		return nil
	}
	return []core.Signal{f.sig}
}

type panicStrategy struct{}

func (panicStrategy) Name() string                           { return "panics" }
func (panicStrategy) RequiredData() []core.DataKind          { return nil }
func (panicStrategy) Evaluate(core.MarketView) []core.Signal { panic("boom") }

type harness struct {
	clock  *util.ManualClock
	trader *Trader
	risk   *risk.Manager
	pub    *recorder
	runner *Runner
}

func newHarness(t *testing.T, src TickSource, cfg RunnerConfig) *harness {
	t.Helper()
	clock := util.NewManualClock(start)
	pcfg := DefaultConfig()
	pcfg.SlippageBps = 0
	tr := NewTrader(pcfg, clock, nil)
	rm := risk.NewManager(risk.DefaultConfig(), clock, nil)
	rm.SetBalance(pcfg.Balance)
	pub := &recorder{}
	cfg.Publisher = pub
	return &harness{
		clock:  clock,
		trader: tr,
		risk:   rm,
		pub:    pub,
		runner: NewRunner(cfg, tr, rm, src, clock, nil),
	}
}

func book(bids, asks []orderbook.PriceLevel) orderbook.Snapshot {
	return orderbook.Snapshot{Bids: bids, Asks: asks}
}

func TestStepExecutesSignalAndReportsPnL(t *testing.T) {
	h := newHarness(t, &sliceSource{}, RunnerConfig{})
	ctx := context.Background()

	buy := core.Signal{Strategy: "s", TokenID: "tok", Side: core.Buy, SuggestedPrice: 0.5,
		Confidence: 0.9, Metadata: map[string]any{core.MetaFixedSizeUSD: 50.0}}
	h.runner.Step(ctx, Tick{
		Time:    start,
		Books:   map[string]orderbook.Snapshot{"tok": book([]orderbook.PriceLevel{lv(0.49, 200)}, []orderbook.PriceLevel{lv(0.5, 200)})},
		Signals: []core.Signal{buy},
	})
	assert.InDelta(t, 950, h.trader.Balance(), 1e-9)
	assert.Zero(t, h.risk.Report().TotalTrades, "buys realize nothing")

	sell := core.Signal{Strategy: "s", TokenID: "tok", Side: core.Sell, SuggestedPrice: 0.4,
		Metadata: map[string]any{core.MetaFixedSizeUSD: 40.0}}
	h.runner.Step(ctx, Tick{
		Time:    start.Add(time.Second),
		Books:   map[string]orderbook.Snapshot{"tok": book([]orderbook.PriceLevel{lv(0.4, 200)}, []orderbook.PriceLevel{lv(0.41, 200)})},
		Signals: []core.Signal{sell},
	})

	r := h.risk.Report()
	assert.Equal(t, 1, r.TotalTrades)
	assert.InDelta(t, -10, r.DailyPnL, 1e-9)
	assert.Equal(t, 1, r.ConsecutiveLosses)

	assert.Len(t, h.pub.get(TopicSignal), 2)
	trades := h.pub.get(TopicTrade)
	require.Len(t, trades, 2)
	assert.Equal(t, "filled", trades[0].(TradeEvent).FillStatus)
	assert.Equal(t, "paper", trades[0].(TradeEvent).Mode)
	assert.Len(t, h.pub.get(TopicHeartbeat), 2)
	assert.Equal(t, int64(2), h.runner.Ticks())
}

func TestFixedSizeStillRequiresPreTradeCheck(t *testing.T) {
	h := newHarness(t, &sliceSource{}, RunnerConfig{})
	h.risk.TripKillSwitch("test")

	sig := core.Signal{TokenID: "tok", Side: core.Buy, SuggestedPrice: 0.5,
		Metadata: map[string]any{core.MetaFixedSizeUSD: 10.0}}
	h.runner.Step(context.Background(), Tick{
		Books:   map[string]orderbook.Snapshot{"tok": book(nil, []orderbook.PriceLevel{lv(0.5, 200)})},
		Signals: []core.Signal{sig},
	})

	assert.Equal(t, 1000.0, h.trader.Balance())
	assert.Empty(t, h.pub.get(TopicTrade))
	assert.Len(t, h.pub.get(TopicKill), 1)
}

func TestMissingBookRests(t *testing.T) {
	h := newHarness(t, &sliceSource{}, RunnerConfig{})
	sig := core.Signal{TokenID: "tok", Side: core.Buy, SuggestedPrice: 0.5, Confidence: 0.7}
	h.runner.Step(context.Background(), Tick{Signals: []core.Signal{sig}})

	require.Len(t, h.trader.RestingOrders(), 1)
	trades := h.pub.get(TopicTrade)
	require.Len(t, trades, 1)
	assert.Equal(t, "resting", trades[0].(TradeEvent).FillStatus)
}

func TestStrategiesEvaluatedPerMarket(t *testing.T) {
	sig := core.Signal{Strategy: "fixed", TokenID: "yes", Side: core.Buy, SuggestedPrice: 0.5, Confidence: 0.7}
	h := newHarness(t, &sliceSource{}, RunnerConfig{
		Strategies: []core.Strategy{panicStrategy{}, fixedStrategy{sig: sig}},
	})
	h.runner.Step(context.Background(), Tick{
		Markets: []Market{{ID: "m1", Tokens: []string{"yes", "no"}}},
		Books: map[string]orderbook.Snapshot{
			"yes": book([]orderbook.PriceLevel{lv(0.48, 100)}, []orderbook.PriceLevel{lv(0.5, 100)}),
			"no":  book([]orderbook.PriceLevel{lv(0.5, 100)}, []orderbook.PriceLevel{lv(0.52, 100)}),
		},
	})

	// confidence 0.7 at 0.5: f*=0.4, x0.25=0.1 of 1000 = 100, capped at 50.
	assert.InDelta(t, 950, h.trader.Balance(), 1e-9)
	assert.Len(t, h.pub.get(TopicSignal), 1)
}

func TestRunReplaysUntilExhausted(t *testing.T) {
	lines := strings.Join([]string{
		`{"time":"2026-03-02T12:00:00Z","books":{"tok":{"bids":[[0.49,100]],"asks":[[0.6,100]]}},"signals":[{"strategy":"r","token_id":"tok","side":"BUY","suggested_price":0.5,"confidence":0.6,"metadata":{"fixed_size_usd":50}}]}`,
		`{"time":"2026-03-02T12:00:10Z","books":{"tok":{"bids":[[0.49,100]],"asks":[[0.5,100]]}}}`,
	}, "\n")

	clock := util.NewManualClock(start)
	src := NewReplay(strings.NewReader(lines), clock)
	h := newHarness(t, src, RunnerConfig{Account: common.HexToAddress("0x01")})
	h.runner.clock = clock
	h.trader.clock = clock

	require.NoError(t, h.runner.Run(context.Background()))
	assert.Equal(t, int64(2), h.runner.Ticks())
	assert.Equal(t, 2, src.Count())
	assert.Empty(t, h.trader.RestingOrders())
	assert.InDelta(t, 950, h.trader.Balance(), 1e-9)

	trades := h.pub.get(TopicTrade)
	require.Len(t, trades, 2)
	assert.Equal(t, "resting", trades[0].(TradeEvent).FillStatus)
	assert.True(t, trades[1].(TradeEvent).Resting)
}

func TestRunStopsOnKill(t *testing.T) {
	src := &sliceSource{ticks: make([]Tick, 10)}
	h := newHarness(t, src, RunnerConfig{})
	h.risk.TripKillSwitch("stop now")

	require.NoError(t, h.runner.Run(context.Background()))
	assert.Zero(t, h.runner.Ticks())
	kills := h.pub.get(TopicKill)
	require.Len(t, kills, 1)
	assert.Equal(t, "stop now", kills[0].(KillEvent).Reason)
}

func TestRunWaitsOnClock(t *testing.T) {
	src := &sliceSource{ticks: make([]Tick, 3)}
	h := newHarness(t, src, RunnerConfig{Interval: 10 * time.Second})

	done := make(chan error, 1)
	go func() { done <- h.runner.Run(context.Background()) }()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case err := <-done:
			require.NoError(t, err)
			assert.Equal(t, int64(3), h.runner.Ticks())
			return
		case <-deadline:
			t.Fatal("runner did not finish")
		case <-time.After(time.Millisecond):
			h.clock.Advance(10 * time.Second)
		}
	}
}

func TestRunJournals(t *testing.T) {
	j, err := storage.NewFileJournal(t.TempDir() + "/j.jsonl")
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	acct := common.HexToAddress("0xAA")
	sig := core.Signal{TokenID: "tok", Side: core.Buy, SuggestedPrice: 0.5, Metadata: map[string]any{core.MetaFixedSizeUSD: 50.0}}
	src := &sliceSource{ticks: []Tick{{
		Time:    start,
		Books:   map[string]orderbook.Snapshot{"tok": book(nil, []orderbook.PriceLevel{lv(0.5, 10)})},
		Signals: []core.Signal{sig},
	}}}
	h := newHarness(t, src, RunnerConfig{Account: acct, Journal: j})
	require.NoError(t, h.runner.Run(context.Background()))

	fills, err := j.RecentFills(acct, 10)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.Equal(t, 10.0, fills[0].FilledQty)

	open, err := j.OpenOrders(acct)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.InDelta(t, 90, open[0].Remaining(), 1e-9)

	snap, err := j.LatestSnapshot(acct)
	require.NoError(t, err)
	assert.Equal(t, h.trader.StateHash(), snap.StateHash)
}
