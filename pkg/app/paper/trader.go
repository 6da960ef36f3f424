package paper

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"

	"github.com/raphalbongso/polymarket-bot/pkg/app/core"
	"github.com/raphalbongso/polymarket-bot/pkg/app/core/account"
	"github.com/raphalbongso/polymarket-bot/pkg/app/core/matching"
	"github.com/raphalbongso/polymarket-bot/pkg/app/core/orderbook"
	"github.com/raphalbongso/polymarket-bot/pkg/app/core/resting"
	"github.com/raphalbongso/polymarket-bot/pkg/util"
)

type Config struct {
	Balance     float64
	SlippageBps float64
	OrderTTL    time.Duration
}

func DefaultConfig() Config {
	return Config{
		Balance:     1000,
		SlippageBps: 5,
		OrderTTL:    300 * time.Second,
	}
}

// Trader simulates execution of signals against supplied order books.
// All methods are safe for concurrent use: the tick loop writes while the
// API reads.
type Trader struct {
	mu sync.RWMutex

	cfg    Config
	ledger *account.Ledger
	engine *matching.Engine
	book   *resting.Book
	marks  map[string]float64

	clock   util.Clock
	logger  *zap.SugaredLogger
	onOrder func(account.Order)
}

func NewTrader(cfg Config, clock util.Clock, logger *zap.SugaredLogger) *Trader {
	logger = util.OrNop(logger)
	if clock == nil {
		clock = util.RealClock{}
	}
	ledger := account.NewLedger(cfg.Balance)
	engine := matching.NewEngine(matching.Config{SlippageBps: cfg.SlippageBps}, ledger, logger)
	t := &Trader{
		cfg:    cfg,
		ledger: ledger,
		engine: engine,
		book:   resting.New(engine, logger),
		marks:  make(map[string]float64),
		clock:  clock,
		logger: logger,
	}
	t.book.OnTransition(t.emitOrder)
	return t
}

// OnOrder registers a callback for every order state change. It runs with
// the trader's lock held and must not call back into the Trader.
func (t *Trader) OnOrder(fn func(account.Order)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOrder = fn
}

func (t *Trader) emitOrder(o account.Order) {
	if t.onOrder != nil {
		t.onOrder(o)
	}
}

func newOrderID() string {
	return uuid.NewString()[:8]
}

// Execute turns a sized signal into a paper order and attempts to fill it.
// Whatever does not fill rests until it fills or expires.
func (t *Trader) Execute(sig core.Signal, sizeUSD float64, book orderbook.Snapshot) matching.Fill {
	var qty float64
	if sig.SuggestedPrice > 0 {
		qty = sizeUSD / sig.SuggestedPrice
	}
	if !(qty > 0) || math.IsInf(qty, 0) {
		return matching.Fill{
			TokenID: sig.TokenID,
			Side:    sig.Side,
			Status:  matching.FillRejected,
			Reason:  "non-positive quantity",
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	o := account.Order{
		ID:        newOrderID(),
		TokenID:   sig.TokenID,
		Side:      sig.Side,
		Price:     sig.SuggestedPrice,
		Qty:       qty,
		CreatedAt: now,
		TTL:       t.cfg.OrderTTL,
	}
	f, o := t.book.Submit(o, book, now)

	switch o.Status {
	case account.OrderFilled:
		t.logger.Infow("paper_fill",
			"order_id", o.ID,
			"strategy", sig.Strategy,
			"side", o.Side.String(),
			"qty", f.FilledQty,
			"avg_price", f.AvgPrice,
			"slippage_bps", f.SlippageBps,
			"balance", t.ledger.Balance(),
		)
	case account.OrderOpen, account.OrderPartiallyFilled:
		t.logger.Infow("paper_resting",
			"order_id", o.ID,
			"strategy", sig.Strategy,
			"side", o.Side.String(),
			"remaining", o.Remaining(),
			"price", o.Price,
			"ttl", t.cfg.OrderTTL.String(),
		)
	}
	return f
}

// CheckRestingOrders re-presents every resting order to the matching engine.
func (t *Trader) CheckRestingOrders(books map[string]orderbook.Snapshot) []matching.Fill {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.book.Check(t.clock.Now(), books)
}

// SetMarks replaces the prices used for unrealized PnL.
func (t *Trader) SetMarks(marks map[string]float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.marks = marks
}

// Marks returns a copy of the current mark prices.
func (t *Trader) Marks() map[string]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]float64, len(t.marks))
	for k, v := range t.marks {
		out[k] = v
	}
	return out
}

func (t *Trader) Balance() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ledger.Balance()
}

func (t *Trader) Positions() []account.Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ledger.Positions()
}

func (t *Trader) RestingOrders() []account.Order {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.book.Open()
}

func (t *Trader) OrderHistory() []account.Order {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.book.History()
}

func (t *Trader) Order(id string) (account.Order, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.book.Get(id)
}

// PositionSummary is the reported view of one non-flat position.
type PositionSummary struct {
	Quantity    float64 `json:"quantity"`
	AvgEntry    float64 `json:"avg_entry"`
	RealizedPnL float64 `json:"realized_pnl"`
}

type Summary struct {
	Balance          float64                    `json:"balance"`
	InitialBalance   float64                    `json:"initial_balance"`
	TotalRealizedPnL float64                    `json:"total_realized_pnl"`
	UnrealizedPnL    float64                    `json:"unrealized_pnl"`
	OpenPositions    int                        `json:"open_positions"`
	RestingOrders    int                        `json:"resting_orders"`
	FilledOrders     int                        `json:"filled_orders"`
	Positions        map[string]PositionSummary `json:"positions"`
}

func (t *Trader) Summary() Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	positions := make(map[string]PositionSummary)
	for _, p := range t.ledger.OpenPositions() {
		positions[p.TokenID] = PositionSummary{
			Quantity:    p.Quantity,
			AvgEntry:    p.AvgEntryPrice,
			RealizedPnL: p.RealizedPnL,
		}
	}
	return Summary{
		Balance:          t.ledger.Balance(),
		InitialBalance:   t.ledger.InitialBalance(),
		TotalRealizedPnL: t.ledger.TotalRealizedPnL(),
		UnrealizedPnL:    t.ledger.UnrealizedPnL(t.marks),
		OpenPositions:    len(positions),
		RestingOrders:    t.book.Len(),
		FilledOrders:     t.book.FilledCount(),
		Positions:        positions,
	}
}

// FinalReport renders the shutdown report.
func (t *Trader) FinalReport() string {
	s := t.Summary()

	var b strings.Builder
	b.WriteString("=== PAPER TRADING FINAL REPORT ===\n")
	fmt.Fprintf(&b, "  Initial balance:    $%.2f\n", s.InitialBalance)
	fmt.Fprintf(&b, "  Final balance:      $%.2f\n", s.Balance)
	fmt.Fprintf(&b, "  Realized PnL:       $%.4f\n", s.TotalRealizedPnL)
	fmt.Fprintf(&b, "  Unrealized PnL:     $%.4f\n", s.UnrealizedPnL)
	fmt.Fprintf(&b, "  Open positions:     %d\n", s.OpenPositions)
	fmt.Fprintf(&b, "  Total fills:        %d\n", s.FilledOrders)
	fmt.Fprintf(&b, "  Resting orders:     %d\n", s.RestingOrders)

	tokens := make([]string, 0, len(s.Positions))
	for tok := range s.Positions {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)
	for _, tok := range tokens {
		p := s.Positions[tok]
		fmt.Fprintf(&b, "    %s qty=%.4f entry=%.4f rpnl=$%.4f\n", shortToken(tok), p.Quantity, p.AvgEntry, p.RealizedPnL)
	}
	b.WriteString(strings.Repeat("=", 35))
	return b.String()
}

func shortToken(tok string) string {
	if len(tok) <= 16 {
		return tok
	}
	return tok[:16] + "..."
}

// StateHash is a Keccak-256 digest of balance, positions (sorted by token)
// and resting orders (acceptance order). Two runs over the same ticks with
// the same order ids produce the same hash.
func (t *Trader) StateHash() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	h := sha3.NewLegacyKeccak256()
	var buf [8]byte
	putFloat := func(f float64) {
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(f))
		h.Write(buf[:])
	}

	putFloat(t.ledger.Balance())
	for _, p := range t.ledger.Positions() {
		h.Write([]byte(p.TokenID))
		putFloat(p.Quantity)
		putFloat(p.AvgEntryPrice)
		putFloat(p.RealizedPnL)
	}
	for _, o := range t.book.Open() {
		h.Write([]byte(o.ID))
		putFloat(o.Remaining())
		putFloat(o.Price)
	}
	return common.BytesToHash(h.Sum(nil)).Hex()
}

// Restore loads ledger state and open orders from a previous session.
func (t *Trader) Restore(balance, initial float64, positions []account.Position, open []account.Order) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ledger.Restore(balance, initial, positions)
	t.book.Restore(open)
	t.logger.Infow("paper_state_restored",
		"balance", balance,
		"positions", len(positions),
		"resting_orders", t.book.Len(),
	)
}
