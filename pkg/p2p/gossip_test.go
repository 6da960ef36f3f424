package p2p

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphalbongso/polymarket-bot/pkg/app/paper"
	"github.com/raphalbongso/polymarket-bot/pkg/util"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	acct := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	data, err := encodeEnvelope(paper.TopicKill, acct, 3, at, paper.KillEvent{Tick: 9, Reason: "drawdown"})
	require.NoError(t, err)

	env, err := decodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, paper.TopicKill, env.Topic)
	assert.Equal(t, acct, env.Account)
	assert.Equal(t, uint64(3), env.Seq)
	assert.True(t, at.Equal(env.Time))

	var ev paper.KillEvent
	require.NoError(t, env.Decode(&ev))
	assert.Equal(t, int64(9), ev.Tick)
	assert.Equal(t, "drawdown", ev.Reason)
}

func TestDecodeEnvelopeRejectsGarbage(t *testing.T) {
	_, err := decodeEnvelope([]byte("not json"))
	assert.Error(t, err)
	_, err = decodeEnvelope([]byte(`{"seq":1}`))
	assert.Error(t, err)
}

func TestGossipLocalDelivery(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clock := util.NewManualClock(time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	g, err := NewGossipPublisher(ctx, Config{ListenAddr: "/ip4/127.0.0.1/tcp/0"}, clock)
	require.NoError(t, err)
	defer g.Close()

	got := make(chan Envelope, 4)
	require.NoError(t, g.Subscribe(ctx, paper.TopicTrade, func(_ peer.ID, env Envelope) { got <- env }))

	require.NoError(t, g.Publish(ctx, paper.TopicTrade, paper.TradeEvent{TokenID: "tok", Side: "BUY"}))
	require.NoError(t, g.Publish(ctx, paper.TopicTrade, paper.TradeEvent{TokenID: "tok", Side: "SELL"}))

	for want := uint64(1); want <= 2; want++ {
		select {
		case env := <-got:
			assert.Equal(t, want, env.Seq)
			var ev paper.TradeEvent
			require.NoError(t, env.Decode(&ev))
			assert.Equal(t, "tok", ev.TokenID)
		case <-ctx.Done():
			t.Fatal("timed out waiting for gossip message")
		}
	}
}

func TestGossipUnknownTopic(t *testing.T) {
	ctx := context.Background()
	g, err := NewGossipPublisher(ctx, Config{ListenAddr: "/ip4/127.0.0.1/tcp/0"}, nil)
	require.NoError(t, err)
	defer g.Close()

	assert.Error(t, g.Publish(ctx, "orders", struct{}{}))
	assert.Error(t, g.Subscribe(ctx, "orders", func(peer.ID, Envelope) {}))
}
