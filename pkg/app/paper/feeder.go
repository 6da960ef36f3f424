package paper

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/raphalbongso/polymarket-bot/pkg/app/core"
	"github.com/raphalbongso/polymarket-bot/pkg/app/core/orderbook"
	"github.com/raphalbongso/polymarket-bot/pkg/util"
)

// FeederConfig controls the synthetic market.
type FeederConfig struct {
	Tokens     []string // instruments to simulate
	Levels     int      // depth levels per side
	LevelSize  float64  // mean shares per level
	Spread     float64  // best ask - best bid
	Volatility float64  // stddev of the per-tick mid move
	SignalRate float64  // probability of a signal per token per tick
	Seed       int64    // 0 = time-based
}

func DefaultFeederConfig() FeederConfig {
	return FeederConfig{
		Tokens:     []string{"SYNTH-YES", "SYNTH-NO"},
		Levels:     5,
		LevelSize:  200,
		Spread:     0.02,
		Volatility: 0.01,
		SignalRate: 0.2,
	}
}

// Feeder is a TickSource that random-walks a midpoint per token and builds
// a book around it. It also emits random signals so a devnet run trades.
type Feeder struct {
	cfg   FeederConfig
	clock util.Clock
	rng   *rand.Rand
	mids  map[string]float64

	ticks   int
	signals int
}

func NewFeeder(cfg FeederConfig, clock util.Clock) *Feeder {
	if len(cfg.Tokens) == 0 {
		cfg.Tokens = DefaultFeederConfig().Tokens
	}
	if cfg.Levels <= 0 {
		cfg.Levels = 1
	}
	if clock == nil {
		clock = util.RealClock{}
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	f := &Feeder{
		cfg:   cfg,
		clock: clock,
		rng:   rand.New(rand.NewSource(seed)),
		mids:  make(map[string]float64, len(cfg.Tokens)),
	}
	for _, tok := range cfg.Tokens {
		f.mids[tok] = 0.3 + 0.4*f.rng.Float64()
	}
	return f
}

func roundCent(p float64) float64 { return math.Round(p*100) / 100 }

func clampPrice(p float64) float64 { return math.Max(0.01, math.Min(0.99, p)) }

// step moves the mid of token and returns it.
func (f *Feeder) step(token string) float64 {
	mid := f.mids[token] + f.rng.NormFloat64()*f.cfg.Volatility
	mid = math.Max(0.02+f.cfg.Spread, math.Min(0.98-f.cfg.Spread, mid))
	f.mids[token] = mid
	return mid
}

// GenerateBook builds a book around the current mid of token.
func (f *Feeder) GenerateBook(token string) orderbook.Snapshot {
	mid := f.mids[token]
	half := f.cfg.Spread / 2
	snap := orderbook.Snapshot{Timestamp: f.clock.Now().UnixMilli()}
	for i := 0; i < f.cfg.Levels; i++ {
		off := half + float64(i)*0.01
		size := f.cfg.LevelSize * (0.5 + f.rng.Float64())
		if bid := roundCent(mid - off); bid >= 0.01 {
			snap.Bids = append(snap.Bids, orderbook.PriceLevel{Price: bid, Size: size})
		}
		if ask := roundCent(mid + off); ask <= 0.99 {
			snap.Asks = append(snap.Asks, orderbook.PriceLevel{Price: ask, Size: size})
		}
	}
	return snap
}

// GenerateSignal creates a random signal priced at or near the touch.
func (f *Feeder) GenerateSignal(token string, book orderbook.Snapshot) (core.Signal, bool) {
	side := core.Buy
	if f.rng.Intn(2) == 1 {
		side = core.Sell
	}
	var (
		price float64
		ok    bool
	)
	if side == core.Buy {
		price, ok = book.BestAsk()
	} else {
		price, ok = book.BestBid()
	}
	if !ok {
		return core.Signal{}, false
	}
	// 30% of signals rest one cent away from the touch.
	if f.rng.Intn(100) < 30 {
		price = clampPrice(roundCent(price - float64(side)*0.01))
	}

	edge := f.rng.Float64()*0.12 - 0.02
	sig := core.Signal{
		Strategy:       "synthetic",
		MarketID:       "synthetic",
		TokenID:        token,
		Side:           side,
		Confidence:     math.Max(0.01, math.Min(0.99, price+edge)),
		RawEdge:        edge,
		SuggestedPrice: price,
	}
	if f.rng.Intn(10) == 0 {
		sig.Metadata = map[string]any{core.MetaFixedSizeUSD: float64(5 + f.rng.Intn(20))}
	}
	f.signals++
	return sig, true
}

func (f *Feeder) Next(ctx context.Context) (Tick, error) {
	if err := ctx.Err(); err != nil {
		return Tick{}, err
	}
	t := Tick{
		Time:    f.clock.Now(),
		Markets: []Market{{ID: "synthetic", Tokens: append([]string(nil), f.cfg.Tokens...)}},
		Books:   make(map[string]orderbook.Snapshot, len(f.cfg.Tokens)),
	}
	for _, tok := range f.cfg.Tokens {
		f.step(tok)
		book := f.GenerateBook(tok)
		t.Books[tok] = book
		if f.rng.Float64() < f.cfg.SignalRate {
			if sig, ok := f.GenerateSignal(tok, book); ok {
				t.Signals = append(t.Signals, sig)
			}
		}
	}
	f.ticks++
	return t, nil
}

type FeederStats struct {
	Ticks   int
	Signals int
}

func (f *Feeder) Stats() FeederStats {
	return FeederStats{Ticks: f.ticks, Signals: f.signals}
}

func (s FeederStats) String() string {
	return fmt.Sprintf("ticks=%d signals=%d", s.Ticks, s.Signals)
}
