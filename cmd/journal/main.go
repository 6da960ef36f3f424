package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/raphalbongso/polymarket-bot/params"
	"github.com/raphalbongso/polymarket-bot/pkg/p2p"
	"github.com/raphalbongso/polymarket-bot/pkg/storage"
)

// journal prints the recorded history of a paper account, or with -follow
// tails its live events from the gossip network.
func main() {
	cfg, err := params.LoadFromEnv("")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	kind := flag.String("kind", cfg.Node.JournalKind, "journal kind: pebble or file")
	path := flag.String("path", cfg.Node.JournalPath, "journal path")
	acctHex := flag.String("account", cfg.Node.Account.Hex(), "paper account address")
	limit := flag.Int("limit", 20, "number of recent fills")
	follow := flag.Bool("follow", false, "tail live events over libp2p instead of reading the journal")
	bootstrap := flag.String("bootstrap", strings.Join(cfg.P2P.Bootstrap, ","), "comma separated peer multiaddrs for -follow")
	flag.Parse()

	if !common.IsHexAddress(*acctHex) {
		fmt.Printf("Error: invalid account %q\n", *acctHex)
		os.Exit(1)
	}
	acct := common.HexToAddress(*acctHex)

	if *follow {
		if err := tail(acct, *bootstrap); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	var j storage.Journal
	switch *kind {
	case "pebble":
		j, err = storage.NewPebbleStore(*path)
	case "file":
		j, err = storage.NewFileJournal(*path)
	default:
		err = fmt.Errorf("journal kind %q has nothing to read", *kind)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer j.Close()

	if err := dump(j, acct, *limit); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func dump(j storage.Journal, acct common.Address, limit int) error {
	fmt.Printf("Account: %s\n\n", acct.Hex())

	snap, err := j.LatestSnapshot(acct)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		fmt.Println("Snapshot: none")
	case err != nil:
		return err
	default:
		fmt.Printf("Snapshot (tick %d, %s):\n", snap.Tick, snap.Time.Format("2006-01-02 15:04:05"))
		fmt.Printf("  Balance: $%.2f (initial $%.2f)\n", snap.Balance, snap.InitialBalance)
		fmt.Printf("  State hash: %s\n", snap.StateHash)
		for _, p := range snap.Positions {
			if p.Quantity == 0 {
				continue
			}
			fmt.Printf("  %s: %.2f @ %.4f (realized $%.2f)\n", p.TokenID, p.Quantity, p.AvgEntryPrice, p.RealizedPnL)
		}
	}
	fmt.Println()

	rep, err := j.LatestRiskReport(acct)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		fmt.Println("Risk: none")
	case err != nil:
		return err
	default:
		out, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return err
		}
		fmt.Printf("Risk:\n%s\n", out)
	}
	fmt.Println()

	open, err := j.OpenOrders(acct)
	if err != nil {
		return err
	}
	fmt.Printf("Open orders: %d\n", len(open))
	for _, o := range open {
		fmt.Printf("  %s %s %s %.2f/%.2f @ %.4f [%s]\n", o.ID, o.Side, o.TokenID, o.Filled, o.Qty, o.Price, o.Status)
	}
	fmt.Println()

	fills, err := j.RecentFills(acct, limit)
	if err != nil {
		return err
	}
	fmt.Printf("Recent fills: %d\n", len(fills))
	for _, f := range fills {
		fmt.Printf("  #%d %s %s %s %s %.2f @ %.4f slip=%.1fbps pnl=$%.2f\n",
			f.Tick, f.Time.Format("15:04:05"), f.OrderID, f.Side, f.TokenID, f.FilledQty, f.AvgPrice, f.SlippageBps, f.RealizedPnL)
	}
	return nil
}

func tail(acct common.Address, bootstrap string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var peers []string
	for _, s := range strings.Split(bootstrap, ",") {
		if s = strings.TrimSpace(s); s != "" {
			peers = append(peers, s)
		}
	}
	g, err := p2p.NewGossipPublisher(ctx, p2p.Config{
		ListenAddr: "/ip4/0.0.0.0/tcp/0",
		Bootstrap:  peers,
		Account:    acct,
	}, nil)
	if err != nil {
		return err
	}
	defer g.Close()

	fmt.Printf("Following %s as %s\n", acct.Hex(), g.Host().ID())
	for _, topic := range p2p.Topics {
		err := g.Subscribe(ctx, topic, func(from peer.ID, env p2p.Envelope) {
			if env.Account != acct {
				return
			}
			fmt.Printf("[%s] %s #%d from %s: %s\n", env.Time.Format("15:04:05"), env.Topic, env.Seq, from.ShortString(), env.Payload)
		})
		if err != nil {
			return err
		}
	}
	<-ctx.Done()
	return nil
}
