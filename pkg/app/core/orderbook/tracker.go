package orderbook

import (
	"sort"
	"sync"
)

// Tracker keeps a bounded history of snapshots per instrument. It is the
// data-layer side of the book: raw levels are sorted here, once, before
// anything downstream consumes them.
type Tracker struct {
	mu      sync.RWMutex
	maxLen  int
	history map[string][]Snapshot // token -> oldest..newest
}

func NewTracker(maxLen int) *Tracker {
	if maxLen <= 0 {
		maxLen = 100
	}
	return &Tracker{
		maxLen:  maxLen,
		history: make(map[string][]Snapshot),
	}
}

// Normalize sorts bids high to low and asks low to high.
func Normalize(s Snapshot) Snapshot {
	out := Snapshot{
		Bids:      append([]PriceLevel(nil), s.Bids...),
		Asks:      append([]PriceLevel(nil), s.Asks...),
		Timestamp: s.Timestamp,
	}
	sort.SliceStable(out.Bids, func(i, j int) bool { return out.Bids[i].Price > out.Bids[j].Price })
	sort.SliceStable(out.Asks, func(i, j int) bool { return out.Asks[i].Price < out.Asks[j].Price })
	return out
}

// Record stores a normalized copy of s and returns it.
func (t *Tracker) Record(token string, s Snapshot) Snapshot {
	n := Normalize(s)

	t.mu.Lock()
	defer t.mu.Unlock()
	h := append(t.history[token], n)
	if len(h) > t.maxLen {
		h = h[len(h)-t.maxLen:]
	}
	t.history[token] = h
	return n
}

// Latest returns the newest snapshot for token.
func (t *Tracker) Latest(token string) (Snapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h := t.history[token]
	if len(h) == 0 {
		return Snapshot{}, false
	}
	return h[len(h)-1], true
}

// History returns a copy of the stored snapshots for token, oldest first.
func (t *Tracker) History(token string) []Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Snapshot(nil), t.history[token]...)
}

// Mid returns the midpoint of the latest snapshot for token.
func (t *Tracker) Mid(token string) (float64, bool) {
	s, ok := t.Latest(token)
	if !ok {
		return 0, false
	}
	return s.Mid()
}

// Marks returns the latest midpoint of every tracked instrument that has one.
func (t *Tracker) Marks() map[string]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	marks := make(map[string]float64, len(t.history))
	for token, h := range t.history {
		if len(h) == 0 {
			continue
		}
		if mid, ok := h[len(h)-1].Mid(); ok {
			marks[token] = mid
		}
	}
	return marks
}

// Tokens returns the tracked instruments in sorted order.
func (t *Tracker) Tokens() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.history))
	for token := range t.history {
		out = append(out, token)
	}
	sort.Strings(out)
	return out
}
