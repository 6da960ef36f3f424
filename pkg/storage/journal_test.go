package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphalbongso/polymarket-bot/pkg/app/core/account"
	"github.com/raphalbongso/polymarket-bot/pkg/app/core/matching"
	"github.com/raphalbongso/polymarket-bot/pkg/app/core/orderbook"
	"github.com/raphalbongso/polymarket-bot/pkg/risk"
)

var (
	alice = common.HexToAddress("0xAA00000000000000000000000000000000000000")
	bob   = common.HexToAddress("0xBB00000000000000000000000000000000000000")
	t0    = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
)

func journals(t *testing.T) map[string]Journal {
	t.Helper()
	dir := t.TempDir()

	ps, err := NewPebbleStore(filepath.Join(dir, "pebble"))
	require.NoError(t, err)
	t.Cleanup(func() { ps.Close() })

	fj, err := NewFileJournal(filepath.Join(dir, "journal.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { fj.Close() })

	return map[string]Journal{"pebble": ps, "file": fj}
}

func TestJournalOrders(t *testing.T) {
	for name, j := range journals(t) {
		t.Run(name, func(t *testing.T) {
			o := account.Order{ID: "o1", TokenID: "tok", Side: orderbook.Buy, Price: 0.5, Qty: 100, TTL: time.Minute, CreatedAt: t0, UpdatedAt: t0}
			require.NoError(t, j.PutOrder(alice, o))
			require.NoError(t, j.PutOrder(alice, account.Order{ID: "o2", Qty: 10, Status: account.OrderFilled, UpdatedAt: t0}))
			require.NoError(t, j.PutOrder(bob, account.Order{ID: "o3", Qty: 10, UpdatedAt: t0}))

			open, err := j.OpenOrders(alice)
			require.NoError(t, err)
			require.Len(t, open, 1)
			assert.Equal(t, "o1", open[0].ID)
			assert.Equal(t, orderbook.Buy, open[0].Side)
			assert.Equal(t, time.Minute, open[0].TTL)

			// A later state supersedes the earlier one.
			o.RecordFill(100, 0.5, t0.Add(time.Second))
			require.NoError(t, j.PutOrder(alice, o))
			open, err = j.OpenOrders(alice)
			require.NoError(t, err)
			assert.Empty(t, open)
		})
	}
}

func TestJournalFillsNewestFirst(t *testing.T) {
	for name, j := range journals(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 5; i++ {
				require.NoError(t, j.AppendFill(alice, FillRecord{
					Time: t0.Add(time.Duration(i) * time.Second),
					Tick: int64(i),
					Fill: matching.Fill{OrderID: "o1", Status: matching.FillPartial, FilledQty: float64(i + 1)},
				}))
			}
			fills, err := j.RecentFills(alice, 3)
			require.NoError(t, err)
			require.Len(t, fills, 3)
			assert.Equal(t, int64(4), fills[0].Tick)
			assert.Equal(t, int64(2), fills[2].Tick)
			assert.Equal(t, matching.FillPartial, fills[0].Status)

			none, err := j.RecentFills(bob, 10)
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestJournalRiskAndSnapshot(t *testing.T) {
	for name, j := range journals(t) {
		t.Run(name, func(t *testing.T) {
			_, err := j.LatestRiskReport(alice)
			assert.True(t, errors.Is(err, ErrNotFound))
			_, err = j.LatestSnapshot(alice)
			assert.True(t, errors.Is(err, ErrNotFound))

			require.NoError(t, j.PutRiskReport(alice, t0, risk.Report{CurrentBalance: 1000}))
			require.NoError(t, j.PutRiskReport(alice, t0.Add(time.Second), risk.Report{CurrentBalance: 990, IsKilled: true}))
			r, err := j.LatestRiskReport(alice)
			require.NoError(t, err)
			assert.Equal(t, 990.0, r.CurrentBalance)
			assert.True(t, r.IsKilled)

			snap := Snapshot{
				Tick:           7,
				Time:           t0,
				Balance:        950,
				InitialBalance: 1000,
				Positions:      []account.Position{{TokenID: "tok", Quantity: 100, AvgEntryPrice: 0.5, CostBasis: 50}},
				StateHash:      "0xabc",
			}
			require.NoError(t, j.PutSnapshot(alice, snap))
			got, err := j.LatestSnapshot(alice)
			require.NoError(t, err)
			assert.Equal(t, snap.Balance, got.Balance)
			assert.Equal(t, snap.Positions, got.Positions)
			assert.True(t, snap.Time.Equal(got.Time))
		})
	}
}

func TestNopJournal(t *testing.T) {
	j := NewNopJournal()
	assert.NoError(t, j.PutOrder(alice, account.Order{}))
	_, err := j.LatestSnapshot(alice)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestKeyUpperBound(t *testing.T) {
	got := keyUpperBound([]byte("ord:"))
	if string(got) != "ord;" {
		t.Errorf("keyUpperBound = %q, want %q", got, "ord;")
	}
}
