package paper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphalbongso/polymarket-bot/pkg/util"
)

func TestFeederBooksAreWellFormed(t *testing.T) {
	cfg := DefaultFeederConfig()
	cfg.Seed = 42
	cfg.SignalRate = 1
	f := NewFeeder(cfg, util.NewManualClock(start))

	for i := 0; i < 200; i++ {
		tick, err := f.Next(context.Background())
		require.NoError(t, err)
		require.Len(t, tick.Books, len(cfg.Tokens))

		for tok, b := range tick.Books {
			require.NotEmpty(t, b.Bids, tok)
			require.NotEmpty(t, b.Asks, tok)
			bid, _ := b.BestBid()
			ask, _ := b.BestAsk()
			assert.Less(t, bid, ask, "crossed book for %s", tok)
			for j := 1; j < len(b.Bids); j++ {
				assert.Greater(t, b.Bids[j-1].Price, b.Bids[j].Price)
			}
			for j := 1; j < len(b.Asks); j++ {
				assert.Less(t, b.Asks[j-1].Price, b.Asks[j].Price)
			}
		}
		for _, sig := range tick.Signals {
			assert.Greater(t, sig.SuggestedPrice, 0.0)
			assert.Less(t, sig.SuggestedPrice, 1.0)
			assert.True(t, sig.Side.Valid())
		}
	}
	assert.Equal(t, 200, f.Stats().Ticks)
	assert.Positive(t, f.Stats().Signals)
}

func TestFeederDeterministicWithSeed(t *testing.T) {
	cfg := DefaultFeederConfig()
	cfg.Seed = 7
	a := NewFeeder(cfg, util.NewManualClock(start))
	b := NewFeeder(cfg, util.NewManualClock(start))

	for i := 0; i < 20; i++ {
		ta, _ := a.Next(context.Background())
		tb, _ := b.Next(context.Background())
		assert.Equal(t, ta, tb)
	}
}

func TestFeederHonoursContext(t *testing.T) {
	f := NewFeeder(DefaultFeederConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
