package paper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/raphalbongso/polymarket-bot/pkg/util"
)

// Replay reads ticks from a stream of JSON objects, typically one per line:
//
//	{"time":"2026-03-02T12:00:00Z","books":{"tok":{"bids":[[0.49,100]],"asks":[[0.51,100]]}},"signals":[...]}
//
// When a ManualClock is attached it is moved to each tick's time, so order
// TTLs expire on replayed time rather than wall time.
type Replay struct {
	dec    *json.Decoder
	closer io.Closer
	clock  *util.ManualClock
	n      int
}

func NewReplay(r io.Reader, clock *util.ManualClock) *Replay {
	return &Replay{dec: json.NewDecoder(r), clock: clock}
}

func OpenReplay(path string, clock *util.ManualClock) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	r := NewReplay(f, clock)
	r.closer = f
	return r, nil
}

func (r *Replay) Next(ctx context.Context) (Tick, error) {
	if err := ctx.Err(); err != nil {
		return Tick{}, err
	}
	var t Tick
	if err := r.dec.Decode(&t); err != nil {
		if errors.Is(err, io.EOF) {
			return Tick{}, ErrSourceExhausted
		}
		return Tick{}, fmt.Errorf("replay tick %d: %w", r.n+1, err)
	}
	r.n++

	if r.clock != nil {
		if t.Time.IsZero() {
			t.Time = r.clock.Now()
		} else {
			r.clock.Set(t.Time)
		}
	}
	return t, nil
}

// Count returns how many ticks have been read.
func (r *Replay) Count() int { return r.n }

func (r *Replay) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
