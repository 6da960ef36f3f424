package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/raphalbongso/polymarket-bot/pkg/app/core/account"
	"github.com/raphalbongso/polymarket-bot/pkg/risk"
)

// FileJournal appends one JSON record per line. Reads scan the whole file,
// which is fine for the sizes a paper session produces.
type FileJournal struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

type fileRecord struct {
	Kind    string          `json:"kind"` // order | fill | risk | snapshot
	Account common.Address  `json:"account"`
	Time    time.Time       `json:"time"`
	Payload json.RawMessage `json:"payload"`
}

func NewFileJournal(path string) (*FileJournal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	return &FileJournal{path: path, f: f}, nil
}

func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f.Close()
}

func (j *FileJournal) append(kind string, acct common.Address, at time.Time, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}
	line, err := json.Marshal(fileRecord{Kind: kind, Account: acct, Time: at, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := fmt.Fprintln(j.f, string(line)); err != nil {
		return fmt.Errorf("append %s: %w", kind, err)
	}
	return nil
}

func (j *FileJournal) PutOrder(acct common.Address, o account.Order) error {
	return j.append("order", acct, o.UpdatedAt, o)
}

func (j *FileJournal) AppendFill(acct common.Address, f FillRecord) error {
	return j.append("fill", acct, f.Time, f)
}

func (j *FileJournal) PutRiskReport(acct common.Address, at time.Time, r risk.Report) error {
	return j.append("risk", acct, at, r)
}

func (j *FileJournal) PutSnapshot(acct common.Address, s Snapshot) error {
	return j.append("snapshot", acct, s.Time, s)
}

// scan calls fn for every record of kind belonging to acct, oldest first.
func (j *FileJournal) scan(kind string, acct common.Address, fn func(json.RawMessage) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.path)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			var rec fileRecord
			if jerr := json.Unmarshal(line, &rec); jerr == nil && rec.Kind == kind && rec.Account == acct {
				if ferr := fn(rec.Payload); ferr != nil {
					return ferr
				}
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read journal: %w", err)
		}
	}
}

func (j *FileJournal) OpenOrders(acct common.Address) ([]account.Order, error) {
	latest := make(map[string]account.Order)
	var order []string
	err := j.scan("order", acct, func(raw json.RawMessage) error {
		var o account.Order
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil
		}
		if _, seen := latest[o.ID]; !seen {
			order = append(order, o.ID)
		}
		latest[o.ID] = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	var out []account.Order
	for _, id := range order {
		if o := latest[id]; !o.IsClosed() {
			out = append(out, o)
		}
	}
	return out, nil
}

// RecentFills returns up to limit fills, newest first.
func (j *FileJournal) RecentFills(acct common.Address, limit int) ([]FillRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	var all []FillRecord
	err := j.scan("fill", acct, func(raw json.RawMessage) error {
		var f FillRecord
		if err := json.Unmarshal(raw, &f); err == nil {
			all = append(all, f)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]FillRecord, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (j *FileJournal) LatestRiskReport(acct common.Address) (risk.Report, error) {
	var (
		last  risk.Report
		found bool
	)
	err := j.scan("risk", acct, func(raw json.RawMessage) error {
		if err := json.Unmarshal(raw, &last); err == nil {
			found = true
		}
		return nil
	})
	if err != nil {
		return risk.Report{}, err
	}
	if !found {
		return risk.Report{}, ErrNotFound
	}
	return last, nil
}

func (j *FileJournal) LatestSnapshot(acct common.Address) (Snapshot, error) {
	var (
		last  Snapshot
		found bool
	)
	err := j.scan("snapshot", acct, func(raw json.RawMessage) error {
		if err := json.Unmarshal(raw, &last); err == nil {
			found = true
		}
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	if !found {
		return Snapshot{}, ErrNotFound
	}
	return last, nil
}
