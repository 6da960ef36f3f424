package risk

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/raphalbongso/polymarket-bot/pkg/app/core"
	"github.com/raphalbongso/polymarket-bot/pkg/util"
)

type Config struct {
	MaxDrawdownPct       float64
	DailyLossLimitUSD    float64
	MaxConsecutiveLosses int
	MaxPositionSizeUSD   float64
	KellyFraction        float64
	MaxKellyFraction     float64
	TradeLogMaxLen       int
	Location             *time.Location // trading-day boundary
}

func DefaultConfig() Config {
	return Config{
		MaxDrawdownPct:       0.10,
		DailyLossLimitUSD:    100,
		MaxConsecutiveLosses: 5,
		MaxPositionSizeUSD:   50,
		KellyFraction:        0.25,
		MaxKellyFraction:     0.50,
		TradeLogMaxLen:       1000,
		Location:             time.UTC,
	}
}

// TradeResult is what the caller reports after a fill that realized PnL.
type TradeResult struct {
	PnL       float64   `json:"pnl"`
	Side      core.Side `json:"side"`
	SizeUSD   float64   `json:"size_usd"`
	Price     float64   `json:"price"`
	TokenID   string    `json:"token_id,omitempty"`
	Strategy  string    `json:"strategy,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Report is a point-in-time view of risk state.
type Report struct {
	IsKilled          bool      `json:"is_killed"`
	KillReason        string    `json:"kill_reason,omitempty"`
	StartingBalance   float64   `json:"starting_balance"`
	CurrentBalance    float64   `json:"current_balance"`
	PeakBalance       float64   `json:"peak_balance"`
	DrawdownPct       float64   `json:"drawdown_pct"`
	DailyPnL          float64   `json:"daily_pnl"`
	ConsecutiveLosses int       `json:"consecutive_losses"`
	TotalTrades       int       `json:"total_trades"`
	DayOpen           time.Time `json:"day_open"`
}

// Manager gates trades and owns the account's risk state. Numeric state sits
// behind mu; the kill switch is readable without it but only tripped with mu
// held, so a trade check never straddles a trip.
type Manager struct {
	cfg    Config
	kill   *KillSwitch
	clock  util.Clock
	logger *zap.SugaredLogger

	mu                sync.Mutex
	startingBalance   float64
	peakBalance       float64
	currentBalance    float64
	dailyPnL          float64
	consecutiveLosses int
	trades            []TradeResult // bounded by cfg.TradeLogMaxLen
	dayOpen           time.Time
}

func NewManager(cfg Config, clock util.Clock, logger *zap.SugaredLogger) *Manager {
	if cfg.TradeLogMaxLen <= 0 {
		cfg.TradeLogMaxLen = 1000
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if clock == nil {
		clock = util.RealClock{}
	}
	m := &Manager{
		cfg:    cfg,
		kill:   NewKillSwitch(),
		clock:  clock,
		logger: util.OrNop(logger),
	}
	m.dayOpen = dayStart(clock.Now(), cfg.Location)
	return m
}

func (m *Manager) Config() Config            { return m.cfg }
func (m *Manager) KillSwitch() *KillSwitch   { return m.kill }
func (m *Manager) IsKilled() bool            { return m.kill.IsTripped() }
func (m *Manager) KillDone() <-chan struct{} { return m.kill.Done() }

// TripKillSwitch halts trading. It returns false if the switch was already
// tripped, in which case the first reason is kept. The trip is serialized
// with PreTradeCheck and CalculatePositionSize: once it returns, neither can
// approve a trade.
func (m *Manager) TripKillSwitch(reason string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tripLocked(reason)
}

func (m *Manager) tripLocked(reason string) bool {
	if !m.kill.Trip(reason) {
		return false
	}
	m.logger.Errorw("kill_switch_tripped", "reason", reason)
	return true
}

// SetBalance initializes or updates the current balance. The first non-zero
// call fixes the starting balance.
func (m *Manager) SetBalance(balance float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentBalance = balance
	if m.startingBalance == 0 {
		m.startingBalance = balance
	}
	if balance > m.peakBalance {
		m.peakBalance = balance
	}
}

// CheckDrawdown trips when drawdown from peak reaches the limit. Returns true if safe.
func (m *Manager) CheckDrawdown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkDrawdownLocked()
}

func (m *Manager) checkDrawdownLocked() bool {
	if m.peakBalance <= 0 {
		return true
	}
	dd := (m.peakBalance - m.currentBalance) / m.peakBalance
	if dd >= m.cfg.MaxDrawdownPct {
		m.tripLocked(fmt.Sprintf("max drawdown exceeded: %.1f%% >= %.1f%%", dd*100, m.cfg.MaxDrawdownPct*100))
		return false
	}
	return true
}

// CheckDailyLoss trips when the day's PnL reaches -limit. Returns true if safe.
func (m *Manager) CheckDailyLoss() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkDailyLossLocked()
}

func (m *Manager) checkDailyLossLocked() bool {
	if m.dailyPnL != 0 && m.dailyPnL <= -m.cfg.DailyLossLimitUSD {
		m.tripLocked(fmt.Sprintf("daily loss limit exceeded: $%.2f >= $%.2f", -m.dailyPnL, m.cfg.DailyLossLimitUSD))
		return false
	}
	return true
}

// CheckConsecutiveLosses trips when the loss streak reaches the limit. Returns true if safe.
func (m *Manager) CheckConsecutiveLosses() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkConsecutiveLossesLocked()
}

func (m *Manager) checkConsecutiveLossesLocked() bool {
	if m.consecutiveLosses >= m.cfg.MaxConsecutiveLosses {
		m.tripLocked(fmt.Sprintf("consecutive loss limit: %d >= %d", m.consecutiveLosses, m.cfg.MaxConsecutiveLosses))
		return false
	}
	return true
}

// PreTradeCheck runs every trigger and validates the signal's max size.
func (m *Manager) PreTradeCheck(sig core.Signal) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.preTradeCheckLocked(sig)
}

func (m *Manager) preTradeCheckLocked(sig core.Signal) bool {
	if m.kill.IsTripped() {
		return false
	}
	if !m.checkDrawdownLocked() || !m.checkDailyLossLocked() || !m.checkConsecutiveLossesLocked() {
		return false
	}
	return sig.MaxSize <= m.cfg.MaxPositionSizeUSD
}

// CalculatePositionSize sizes sig with capped fractional Kelly. Zero means
// do not trade.
func (m *Manager) CalculatePositionSize(sig core.Signal) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.preTradeCheckLocked(sig) {
		return 0
	}
	price := sig.SuggestedPrice
	if !(price > 0 && price < 1) {
		return 0
	}
	return PositionSize(m.currentBalance, sig.Confidence, BinaryOdds(price),
		m.cfg.KellyFraction, m.cfg.MaxKellyFraction, m.cfg.MaxPositionSizeUSD)
}

// RecordTrade books a trade outcome and re-runs every trigger.
func (m *Manager) RecordTrade(tr TradeResult) {
	if tr.Timestamp.IsZero() {
		tr.Timestamp = m.clock.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.trades = append(m.trades, tr)
	if over := len(m.trades) - m.cfg.TradeLogMaxLen; over > 0 {
		m.trades = append(m.trades[:0:0], m.trades[over:]...)
	}

	m.dailyPnL += tr.PnL
	m.currentBalance += tr.PnL
	if m.currentBalance > m.peakBalance {
		m.peakBalance = m.currentBalance
	}
	if tr.PnL < 0 {
		m.consecutiveLosses++
	} else {
		m.consecutiveLosses = 0
	}

	m.checkDrawdownLocked()
	m.checkDailyLossLocked()
	m.checkConsecutiveLossesLocked()
}

// ResetDaily clears the day's PnL and loss streak. The kill switch is untouched.
func (m *Manager) ResetDaily() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetDailyLocked()
}

func (m *Manager) resetDailyLocked() {
	m.dailyPnL = 0
	m.consecutiveLosses = 0
}

// Trades returns a copy of the bounded trade log, oldest first.
func (m *Manager) Trades() []TradeResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TradeResult(nil), m.trades...)
}

func (m *Manager) Report() Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	var dd float64
	if m.peakBalance > 0 {
		dd = (m.peakBalance - m.currentBalance) / m.peakBalance
	}
	return Report{
		IsKilled:          m.kill.IsTripped(),
		KillReason:        m.kill.Reason(),
		StartingBalance:   m.startingBalance,
		CurrentBalance:    m.currentBalance,
		PeakBalance:       m.peakBalance,
		DrawdownPct:       dd,
		DailyPnL:          m.dailyPnL,
		ConsecutiveLosses: m.consecutiveLosses,
		TotalTrades:       len(m.trades),
		DayOpen:           m.dayOpen,
	}
}

// Restore reloads numeric state from a journaled report. A journaled kill is
// not restored; a restart is the reinitialization that clears it.
func (m *Manager) Restore(r Report) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startingBalance = r.StartingBalance
	m.currentBalance = r.CurrentBalance
	m.peakBalance = r.PeakBalance
	if dayStart(m.clock.Now(), m.cfg.Location).Equal(r.DayOpen) {
		m.dailyPnL = r.DailyPnL
		m.consecutiveLosses = r.ConsecutiveLosses
	}
}
