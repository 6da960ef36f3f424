package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/raphalbongso/polymarket-bot/pkg/app/core/account"
	"github.com/raphalbongso/polymarket-bot/pkg/risk"
)

type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble %s: %w", path, err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

func (s *PebbleStore) setJSON(key []byte, v any, opts *pebble.WriteOptions) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := s.db.Set(key, data, opts); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// PutOrder stores the latest state of an order, overwriting earlier states.
func (s *PebbleStore) PutOrder(acct common.Address, o account.Order) error {
	return s.setJSON(orderKey(acct, o.ID), o, pebble.Sync)
}

// AppendFill journals a fill. Fills are high volume and written without fsync.
func (s *PebbleStore) AppendFill(acct common.Address, f FillRecord) error {
	return s.setJSON(fillKey(acct, f.Time, f.OrderID), f, pebble.NoSync)
}

func (s *PebbleStore) PutRiskReport(acct common.Address, at time.Time, r risk.Report) error {
	return s.setJSON(riskKey(acct, at), r, pebble.NoSync)
}

func (s *PebbleStore) PutSnapshot(acct common.Address, snap Snapshot) error {
	val, err := encodeGob(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.db.Set(snapshotKey(acct), val, pebble.Sync); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// OpenOrders loads every order not yet in a terminal state.
func (s *PebbleStore) OpenOrders(acct common.Address) ([]account.Order, error) {
	prefix := orderPrefix(acct)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("iter orders: %w", err)
	}
	defer iter.Close()

	var orders []account.Order
	for iter.First(); iter.Valid(); iter.Next() {
		var o account.Order
		if err := json.Unmarshal(iter.Value(), &o); err != nil {
			continue // skip invalid entries
		}
		if !o.IsClosed() {
			orders = append(orders, o)
		}
	}
	return orders, nil
}

// RecentFills returns up to limit fills, newest first.
func (s *PebbleStore) RecentFills(acct common.Address, limit int) ([]FillRecord, error) {
	prefix := fillPrefix(acct)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("iter fills: %w", err)
	}
	defer iter.Close()

	var fills []FillRecord
	for iter.Last(); iter.Valid() && len(fills) < limit; iter.Prev() {
		var f FillRecord
		if err := json.Unmarshal(iter.Value(), &f); err != nil {
			continue
		}
		fills = append(fills, f)
	}
	return fills, nil
}

func (s *PebbleStore) LatestRiskReport(acct common.Address) (risk.Report, error) {
	prefix := riskPrefix(acct)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return risk.Report{}, fmt.Errorf("iter risk: %w", err)
	}
	defer iter.Close()

	if !iter.Last() {
		return risk.Report{}, ErrNotFound
	}
	var r risk.Report
	if err := json.Unmarshal(iter.Value(), &r); err != nil {
		return risk.Report{}, fmt.Errorf("unmarshal risk report: %w", err)
	}
	return r, nil
}

func (s *PebbleStore) LatestSnapshot(acct common.Address) (Snapshot, error) {
	val, closer, err := s.db.Get(snapshotKey(acct))
	if errors.Is(err, pebble.ErrNotFound) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("get snapshot: %w", err)
	}
	defer closer.Close()

	var out Snapshot
	if err := decodeGob(val, &out); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return out, nil
}
