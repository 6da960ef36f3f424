package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphalbongso/polymarket-bot/params"
	"github.com/raphalbongso/polymarket-bot/pkg/app/core"
	"github.com/raphalbongso/polymarket-bot/pkg/app/core/account"
	"github.com/raphalbongso/polymarket-bot/pkg/app/paper"
	"github.com/raphalbongso/polymarket-bot/pkg/risk"
	"github.com/raphalbongso/polymarket-bot/pkg/storage"
	"github.com/raphalbongso/polymarket-bot/pkg/util"
)

var start = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func newAccount(t *testing.T, j storage.Journal) (*paper.Trader, *risk.Manager) {
	t.Helper()
	cfg := params.Default()
	clock := util.NewManualClock(start)
	trader := paper.NewTrader(cfg.PaperConfig(), clock, nil)
	rm := risk.NewManager(cfg.RiskConfig(), clock, nil)
	require.NoError(t, initAccount(cfg, j, trader, rm, nil))
	return trader, rm
}

func openFileJournal(t *testing.T) storage.Journal {
	t.Helper()
	j, err := storage.NewFileJournal(filepath.Join(t.TempDir(), "journal.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestInitAccountFreshStart(t *testing.T) {
	trader, rm := newAccount(t, openFileJournal(t))

	r := rm.Report()
	assert.InDelta(t, trader.Balance(), r.StartingBalance, 1e-9)
	assert.InDelta(t, trader.Balance(), r.CurrentBalance, 1e-9)
	assert.False(t, r.IsKilled)
}

func TestInitAccountResumeWithOpenLong(t *testing.T) {
	acct := params.Default().Node.Account
	j := openFileJournal(t)

	// cash 500 after buying 1000 shares at 0.50; nothing realized yet
	require.NoError(t, j.PutSnapshot(acct, storage.Snapshot{
		Tick:           12,
		Time:           start,
		Balance:        500,
		InitialBalance: 1000,
		Positions: []account.Position{
			{TokenID: "tok", Quantity: 1000, AvgEntryPrice: 0.50, CostBasis: 500},
		},
	}))
	require.NoError(t, j.PutRiskReport(acct, start, risk.Report{
		StartingBalance: 1000,
		CurrentBalance:  1000,
		PeakBalance:     1000,
		DayOpen:         time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	}))

	trader, rm := newAccount(t, j)

	assert.InDelta(t, 500, trader.Balance(), 1e-9)
	r := rm.Report()
	assert.InDelta(t, 1000, r.CurrentBalance, 1e-9)
	assert.InDelta(t, 1000, r.PeakBalance, 1e-9)
	assert.Zero(t, r.DrawdownPct)
	assert.False(t, rm.IsKilled(), rm.KillSwitch().Reason())

	sig := core.Signal{TokenID: "tok", Side: core.Buy, SuggestedPrice: 0.5, Confidence: 0.6, MaxSize: 10}
	assert.True(t, rm.PreTradeCheck(sig))
	assert.True(t, rm.CheckDrawdown())
}

func TestInitAccountSnapshotWithoutRiskReport(t *testing.T) {
	acct := params.Default().Node.Account
	j := openFileJournal(t)
	require.NoError(t, j.PutSnapshot(acct, storage.Snapshot{Tick: 3, Time: start, Balance: 800, InitialBalance: 1000}))

	trader, rm := newAccount(t, j)

	assert.InDelta(t, 800, trader.Balance(), 1e-9)
	r := rm.Report()
	assert.InDelta(t, 800, r.StartingBalance, 1e-9)
	assert.False(t, r.IsKilled)
}
