package paper

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/raphalbongso/polymarket-bot/pkg/app/core"
	"github.com/raphalbongso/polymarket-bot/pkg/app/core/account"
	"github.com/raphalbongso/polymarket-bot/pkg/app/core/matching"
	"github.com/raphalbongso/polymarket-bot/pkg/app/core/orderbook"
	"github.com/raphalbongso/polymarket-bot/pkg/risk"
	"github.com/raphalbongso/polymarket-bot/pkg/storage"
	"github.com/raphalbongso/polymarket-bot/pkg/util"
)

type RunnerConfig struct {
	Interval   time.Duration // pause between ticks; 0 runs back to back
	Account    common.Address
	Strategies []core.Strategy
	Publisher  Publisher       // optional
	Journal    storage.Journal // optional
	HistoryLen int             // snapshots kept per token
}

// Runner drives the tick loop: marks, strategies, sizing, execution, resting
// re-checks and monitoring events.
type Runner struct {
	cfg     RunnerConfig
	trader  *Trader
	risk    *risk.Manager
	tracker *orderbook.Tracker
	source  TickSource
	pub     Publisher
	journal storage.Journal
	clock   util.Clock
	logger  *zap.SugaredLogger

	ticks         atomic.Int64
	killAnnounced bool
}

func NewRunner(cfg RunnerConfig, trader *Trader, rm *risk.Manager, source TickSource, clock util.Clock, logger *zap.SugaredLogger) *Runner {
	r := &Runner{
		cfg:     cfg,
		trader:  trader,
		risk:    rm,
		tracker: orderbook.NewTracker(cfg.HistoryLen),
		source:  source,
		pub:     cfg.Publisher,
		journal: cfg.Journal,
		clock:   clock,
		logger:  util.OrNop(logger),
	}
	if r.pub == nil {
		r.pub = MultiPublisher{}
	}
	if r.journal == nil {
		r.journal = storage.NewNopJournal()
	}
	if r.clock == nil {
		r.clock = util.RealClock{}
	}
	trader.OnOrder(func(o account.Order) {
		if err := r.journal.PutOrder(cfg.Account, o); err != nil {
			r.logger.Warnw("journal_order_failed", "order_id", o.ID, "err", err)
		}
	})
	return r
}

func (r *Runner) Ticks() int64                { return r.ticks.Load() }
func (r *Runner) Tracker() *orderbook.Tracker { return r.tracker }

// Run loops until the context ends, the source is exhausted or the kill
// switch trips. A source error other than exhaustion ends the run.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Infow("runner_started",
		"interval", r.cfg.Interval.String(),
		"strategies", r.strategyNames(),
	)
	defer func() {
		reason := "stopped"
		if r.risk.IsKilled() {
			reason = "kill switch"
		}
		r.logger.Infow("runner_stopped", "reason", reason, "ticks", r.Ticks())
	}()

	for {
		if r.risk.IsKilled() {
			r.announceKill(ctx, r.clock.Now())
			return nil
		}
		tick, err := r.source.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, ErrSourceExhausted):
				return nil
			case ctx.Err() != nil:
				return nil
			default:
				return fmt.Errorf("next tick: %w", err)
			}
		}

		r.Step(ctx, tick)

		if r.cfg.Interval > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-r.risk.KillDone():
			case <-r.clock.After(r.cfg.Interval):
			}
		} else if ctx.Err() != nil {
			return nil
		}
	}
}

// Step processes a single tick.
func (r *Runner) Step(ctx context.Context, tick Tick) {
	n := r.ticks.Add(1)
	if tick.Time.IsZero() {
		tick.Time = r.clock.Now()
	}

	if r.risk.RolloverIfNeeded(tick.Time) {
		r.logger.Infow("daily_counters_reset", "tick", n)
	}

	books := make(map[string]orderbook.Snapshot, len(tick.Books))
	for tok, snap := range tick.Books {
		books[tok] = r.tracker.Record(tok, snap)
	}
	marks := r.tracker.Marks()
	r.trader.SetMarks(marks)

	// Orders from earlier ticks see the fresh books before new signals, so
	// an order never matches the same snapshot twice.
	if len(books) > 0 {
		for _, f := range r.trader.CheckRestingOrders(books) {
			r.recordFill(ctx, n, tick.Time, f, tradeMeta{
				sizeUSD: f.FilledQty * f.AvgPrice,
				price:   f.AvgPrice,
				resting: true,
			})
		}
	}

	signals := append([]core.Signal(nil), tick.Signals...)
	signals = append(signals, r.evaluate(tick.Markets, books, marks)...)
	for _, sig := range signals {
		r.handleSignal(ctx, n, tick.Time, sig, books)
	}

	r.heartbeat(ctx, n, tick.Time)
	if r.risk.IsKilled() {
		r.announceKill(ctx, tick.Time)
	}
}

func (r *Runner) strategyNames() []string {
	names := make([]string, 0, len(r.cfg.Strategies))
	for _, s := range r.cfg.Strategies {
		names = append(names, s.Name())
	}
	return names
}

// evaluate runs every strategy over each market view. Without market
// metadata all books form a single view.
func (r *Runner) evaluate(markets []Market, books map[string]orderbook.Snapshot, marks map[string]float64) []core.Signal {
	if len(r.cfg.Strategies) == 0 {
		return nil
	}
	if len(markets) == 0 {
		tokens := make([]string, 0, len(books))
		for tok := range books {
			tokens = append(tokens, tok)
		}
		sort.Strings(tokens)
		markets = []Market{{Tokens: tokens}}
	}

	var out []core.Signal
	for _, m := range markets {
		view := core.MarketView{
			MarketID: m.ID,
			Tokens:   m.Tokens,
			Books:    make(map[string]orderbook.Snapshot, len(m.Tokens)),
			Marks:    make(map[string]float64, len(m.Tokens)),
		}
		for _, tok := range m.Tokens {
			if b, ok := books[tok]; ok {
				view.Books[tok] = b
			}
			if mk, ok := marks[tok]; ok {
				view.Marks[tok] = mk
			}
		}
		for _, s := range r.cfg.Strategies {
			out = append(out, r.safeEvaluate(s, view)...)
		}
	}
	return out
}

func (r *Runner) safeEvaluate(s core.Strategy, view core.MarketView) (sigs []core.Signal) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warnw("strategy_panic", "strategy", s.Name(), "market", view.MarketID, "panic", rec)
			sigs = nil
		}
	}()
	return s.Evaluate(view)
}

func (r *Runner) handleSignal(ctx context.Context, n int64, now time.Time, sig core.Signal, books map[string]orderbook.Snapshot) {
	r.publish(ctx, TopicSignal, SignalEvent{
		Tick:       n,
		Strategy:   sig.Strategy,
		Market:     sig.MarketID,
		TokenID:    sig.TokenID,
		Side:       sig.Side.String(),
		Confidence: sig.Confidence,
	})

	var size float64
	if fixed, ok := sig.FixedSizeUSD(); ok {
		if !r.risk.PreTradeCheck(sig) {
			return
		}
		size = fixed
	} else {
		size = r.risk.CalculatePositionSize(sig)
	}
	if size <= 0 {
		return
	}

	// A missing book is an empty book: the order rests.
	f := r.trader.Execute(sig, size, books[sig.TokenID])
	r.recordFill(ctx, n, now, f, tradeMeta{
		strategy:   sig.Strategy,
		market:     sig.MarketID,
		sizeUSD:    size,
		price:      sig.SuggestedPrice,
		confidence: sig.Confidence,
	})
}

type tradeMeta struct {
	strategy   string
	market     string
	sizeUSD    float64
	price      float64
	confidence float64
	resting    bool
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

// recordFill publishes, journals and reports a fill to risk. Only fills that
// realized PnL reach the risk manager.
func (r *Runner) recordFill(ctx context.Context, n int64, now time.Time, f matching.Fill, m tradeMeta) {
	r.publish(ctx, TopicTrade, TradeEvent{
		Tick:         n,
		Strategy:     m.strategy,
		Market:       m.market,
		TokenID:      f.TokenID,
		Side:         f.Side.String(),
		Price:        m.price,
		SizeUSD:      round(m.sizeUSD, 2),
		Confidence:   round(m.confidence, 3),
		Mode:         "paper",
		OrderID:      f.OrderID,
		FillStatus:   f.Status.String(),
		FilledQty:    round(f.FilledQty, 4),
		AvgFillPrice: round(f.AvgPrice, 4),
		SlippageBps:  round(f.SlippageBps, 1),
		RealizedPnL:  round(f.RealizedPnL, 4),
		Resting:      m.resting,
	})

	if f.FilledQty > 0 {
		rec := storage.FillRecord{Time: now, Tick: n, Fill: f}
		if err := r.journal.AppendFill(r.cfg.Account, rec); err != nil {
			r.logger.Warnw("journal_fill_failed", "order_id", f.OrderID, "err", err)
		}
	}

	if f.RealizedPnL != 0 {
		r.risk.RecordTrade(risk.TradeResult{
			PnL:       f.RealizedPnL,
			Side:      f.Side,
			SizeUSD:   m.sizeUSD,
			Price:     f.AvgPrice,
			TokenID:   f.TokenID,
			Strategy:  m.strategy,
			Timestamp: now,
		})
	}
}

func (r *Runner) heartbeat(ctx context.Context, n int64, now time.Time) {
	report := r.risk.Report()
	summary := r.trader.Summary()
	hash := r.trader.StateHash()

	r.publish(ctx, TopicHeartbeat, Heartbeat{
		Tick:      n,
		Timestamp: now,
		Risk:      report,
		Paper:     summary,
		StateHash: hash,
	})

	if err := r.journal.PutRiskReport(r.cfg.Account, now, report); err != nil {
		r.logger.Warnw("journal_risk_failed", "tick", n, "err", err)
	}
	snap := storage.Snapshot{
		Tick:           n,
		Time:           now,
		Balance:        summary.Balance,
		InitialBalance: summary.InitialBalance,
		Positions:      r.trader.Positions(),
		StateHash:      hash,
	}
	if err := r.journal.PutSnapshot(r.cfg.Account, snap); err != nil {
		r.logger.Warnw("journal_snapshot_failed", "tick", n, "err", err)
	}
}

func (r *Runner) announceKill(ctx context.Context, now time.Time) {
	if r.killAnnounced {
		return
	}
	r.killAnnounced = true
	reason := r.risk.KillSwitch().Reason()
	r.logger.Errorw("trading_halted", "reason", reason, "tick", r.Ticks())
	r.publish(ctx, TopicKill, KillEvent{Tick: r.Ticks(), Timestamp: now, Reason: reason})
}

func (r *Runner) publish(ctx context.Context, topic string, payload any) {
	if err := r.pub.Publish(ctx, topic, payload); err != nil {
		r.logger.Debugw("publish_failed", "topic", topic, "err", err)
	}
}
