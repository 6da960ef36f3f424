package storage

import (
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/raphalbongso/polymarket-bot/pkg/app/core/account"
	"github.com/raphalbongso/polymarket-bot/pkg/app/core/matching"
	"github.com/raphalbongso/polymarket-bot/pkg/risk"
)

var ErrNotFound = errors.New("storage: not found")

// FillRecord is a journaled fill attempt that moved quantity.
type FillRecord struct {
	Time time.Time `json:"time"`
	Tick int64     `json:"tick"`
	matching.Fill
}

// Snapshot is the resumable paper state after a tick.
type Snapshot struct {
	Tick           int64              `json:"tick"`
	Time           time.Time          `json:"time"`
	Balance        float64            `json:"balance"`
	InitialBalance float64            `json:"initial_balance"`
	Positions      []account.Position `json:"positions"`
	StateHash      string             `json:"state_hash"`
}

// Journal persists paper-trading history per account. Implementations are
// safe for concurrent use.
type Journal interface {
	PutOrder(acct common.Address, o account.Order) error
	AppendFill(acct common.Address, f FillRecord) error
	PutRiskReport(acct common.Address, at time.Time, r risk.Report) error
	PutSnapshot(acct common.Address, s Snapshot) error

	OpenOrders(acct common.Address) ([]account.Order, error)
	RecentFills(acct common.Address, limit int) ([]FillRecord, error)
	LatestRiskReport(acct common.Address) (risk.Report, error)
	LatestSnapshot(acct common.Address) (Snapshot, error)

	Close() error
}

type NopJournal struct{}

func NewNopJournal() *NopJournal { return &NopJournal{} }

func (NopJournal) PutOrder(common.Address, account.Order) error               { return nil }
func (NopJournal) AppendFill(common.Address, FillRecord) error                { return nil }
func (NopJournal) PutRiskReport(common.Address, time.Time, risk.Report) error { return nil }
func (NopJournal) PutSnapshot(common.Address, Snapshot) error                 { return nil }
func (NopJournal) OpenOrders(common.Address) ([]account.Order, error)         { return nil, nil }
func (NopJournal) RecentFills(common.Address, int) ([]FillRecord, error)      { return nil, nil }
func (NopJournal) LatestRiskReport(common.Address) (risk.Report, error) {
	return risk.Report{}, ErrNotFound
}
func (NopJournal) LatestSnapshot(common.Address) (Snapshot, error) { return Snapshot{}, ErrNotFound }
func (NopJournal) Close() error                                    { return nil }

var (
	_ Journal = (*NopJournal)(nil)
	_ Journal = (*FileJournal)(nil)
	_ Journal = (*PebbleStore)(nil)
)
