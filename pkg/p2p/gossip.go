package p2p

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"

	"github.com/raphalbongso/polymarket-bot/pkg/app/paper"
	"github.com/raphalbongso/polymarket-bot/pkg/util"
)

// Topics are the monitoring topics joined at startup.
var Topics = []string{paper.TopicTrade, paper.TopicSignal, paper.TopicHeartbeat, paper.TopicKill}

type Config struct {
	ListenAddr  string
	Bootstrap   []string
	TopicPrefix string // gossip topic is "<prefix>/<topic>"
	Account     common.Address
	Logger      *zap.SugaredLogger
}

// GossipPublisher broadcasts paper events over libp2p gossipsub.
type GossipPublisher struct {
	h      host.Host
	ps     *pubsub.PubSub
	log    *zap.SugaredLogger
	cfg    Config
	clock  util.Clock
	seq    atomic.Uint64
	topics map[string]*pubsub.Topic

	mu   sync.Mutex
	subs []*pubsub.Subscription
}

func NewGossipPublisher(ctx context.Context, cfg Config, clock util.Clock) (*GossipPublisher, error) {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "paperbot"
	}
	if clock == nil {
		clock = util.RealClock{}
	}
	log := util.OrNop(cfg.Logger)

	var opts []libp2p.Option
	if cfg.ListenAddr != "" {
		maddr, err := ma.NewMultiaddr(cfg.ListenAddr)
		if err != nil {
			return nil, fmt.Errorf("listen addr: %w", err)
		}
		opts = append(opts, libp2p.ListenAddrs(maddr))
	}
	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, err
	}
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		return nil, err
	}

	g := &GossipPublisher{
		h: h, ps: ps, log: log, cfg: cfg, clock: clock,
		topics: make(map[string]*pubsub.Topic, len(Topics)),
	}
	for _, name := range Topics {
		t, err := ps.Join(g.topicName(name))
		if err != nil {
			h.Close()
			return nil, fmt.Errorf("join %s: %w", name, err)
		}
		g.topics[name] = t
	}

	for _, bs := range cfg.Bootstrap {
		if err := connectMultiaddr(ctx, h, bs); err != nil {
			log.Warnw("bootstrap_connect_failed", "addr", bs, "err", err)
		}
	}

	log.Infow("libp2p_ready", "peer", h.ID().String(), "listen", cfg.ListenAddr, "prefix", cfg.TopicPrefix)
	return g, nil
}

func connectMultiaddr(ctx context.Context, h host.Host, addr string) error {
	m, err := ma.NewMultiaddr(addr)
	if err != nil {
		return err
	}
	info, err := peer.AddrInfoFromP2pAddr(m)
	if err != nil {
		return err
	}
	return h.Connect(ctx, *info)
}

func (g *GossipPublisher) topicName(topic string) string {
	return g.cfg.TopicPrefix + "/" + topic
}

func (g *GossipPublisher) Host() host.Host { return g.h }

// Publish implements paper.Publisher. Unknown topics are an error.
func (g *GossipPublisher) Publish(ctx context.Context, topic string, payload any) error {
	t, ok := g.topics[topic]
	if !ok {
		return fmt.Errorf("p2p: unknown topic %q", topic)
	}
	data, err := encodeEnvelope(topic, g.cfg.Account, g.seq.Add(1), g.clock.Now(), payload)
	if err != nil {
		return err
	}
	return t.Publish(ctx, data)
}

// Subscribe delivers decoded envelopes for topic to fn until ctx is done.
// Messages that fail to decode are dropped.
func (g *GossipPublisher) Subscribe(ctx context.Context, topic string, fn func(peer.ID, Envelope)) error {
	t, ok := g.topics[topic]
	if !ok {
		return fmt.Errorf("p2p: unknown topic %q", topic)
	}
	sub, err := t.Subscribe()
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.subs = append(g.subs, sub)
	g.mu.Unlock()

	go func() {
		for {
			msg, err := sub.Next(ctx)
			if err != nil {
				return
			}
			env, err := decodeEnvelope(msg.Data)
			if err != nil {
				g.log.Debugw("gossip_decode_failed", "from", msg.ReceivedFrom.String(), "err", err)
				continue
			}
			fn(msg.ReceivedFrom, env)
		}
	}()
	return nil
}

func (g *GossipPublisher) Close() error {
	g.mu.Lock()
	for _, s := range g.subs {
		s.Cancel()
	}
	g.subs = nil
	g.mu.Unlock()
	for _, t := range g.topics {
		_ = t.Close()
	}
	return g.h.Close()
}

var _ paper.Publisher = (*GossipPublisher)(nil)
