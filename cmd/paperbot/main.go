package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/raphalbongso/polymarket-bot/params"
	"github.com/raphalbongso/polymarket-bot/pkg/api"
	"github.com/raphalbongso/polymarket-bot/pkg/app/paper"
	"github.com/raphalbongso/polymarket-bot/pkg/p2p"
	"github.com/raphalbongso/polymarket-bot/pkg/risk"
	"github.com/raphalbongso/polymarket-bot/pkg/storage"
	"github.com/raphalbongso/polymarket-bot/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg, err := params.LoadFromEnv("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logFile := cfg.Node.LogFile
	if logFile == "" {
		logFile = "data/paperbot.log"
	}
	logger, err := util.NewLoggerWithFile(logFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", logFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, sugar); err != nil {
		sugar.Fatalw("paperbot_failed", "err", err)
	}
}

func openJournal(cfg params.Config) (storage.Journal, error) {
	switch cfg.Node.JournalKind {
	case "pebble":
		return storage.NewPebbleStore(cfg.Node.JournalPath)
	case "file":
		return storage.NewFileJournal(cfg.Node.JournalPath)
	default:
		return storage.NewNopJournal(), nil
	}
}

// initAccount resumes the account from the journal and seeds the risk
// balance. The risk balance moves only by realized PnL, so it is seeded from
// the ledger cash only when no risk report was restored.
func initAccount(cfg params.Config, j storage.Journal, trader *paper.Trader, rm *risk.Manager, log *zap.SugaredLogger) error {
	log = util.OrNop(log)
	restored, err := resume(cfg, j, trader, rm, log)
	if err != nil {
		return err
	}
	if !restored {
		rm.SetBalance(trader.Balance())
	}
	return nil
}

// resume reloads the last snapshot, open orders and risk report of the
// account. A fresh journal is not an error. It reports whether risk state
// was restored.
func resume(cfg params.Config, j storage.Journal, trader *paper.Trader, rm *risk.Manager, log *zap.SugaredLogger) (bool, error) {
	acct := cfg.Node.Account
	snap, err := j.LatestSnapshot(acct)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		log.Infow("journal_fresh_start", "account", acct.Hex())
		return false, nil
	case err != nil:
		return false, fmt.Errorf("load snapshot: %w", err)
	}

	open, err := j.OpenOrders(acct)
	if err != nil {
		return false, fmt.Errorf("load open orders: %w", err)
	}
	trader.Restore(snap.Balance, snap.InitialBalance, snap.Positions, open)
	if got := trader.StateHash(); got != snap.StateHash {
		log.Warnw("state_hash_mismatch", "journal", snap.StateHash, "restored", got)
	}

	var restored bool
	rep, err := j.LatestRiskReport(acct)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return false, fmt.Errorf("load risk report: %w", err)
	default:
		rm.Restore(rep)
		restored = true
	}

	log.Infow("journal_resumed",
		"account", acct.Hex(),
		"tick", snap.Tick,
		"balance", snap.Balance,
		"positions", len(snap.Positions),
		"open_orders", len(open),
		"risk_restored", restored,
	)
	return restored, nil
}

func run(ctx context.Context, cfg params.Config, log *zap.SugaredLogger) error {
	journal, err := openJournal(cfg)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer journal.Close()

	// ---- Tick source ----
	var (
		source paper.TickSource
		clock  util.Clock = util.RealClock{}
		feeder *paper.Feeder
	)
	interval := cfg.Node.TickInterval
	if cfg.Node.ReplayFile != "" {
		mc := util.NewManualClock(util.RealClock{}.Now())
		replay, err := paper.OpenReplay(cfg.Node.ReplayFile, mc)
		if err != nil {
			return err
		}
		defer replay.Close()
		source, clock, interval = replay, mc, 0
		log.Infow("source_replay", "file", cfg.Node.ReplayFile)
	} else {
		feeder = paper.NewFeeder(cfg.FeederConfig(), clock)
		source = feeder
		log.Infow("source_feeder", "tokens", cfg.Node.FeederTokens)
	}

	// ---- Paper trader + risk ----
	trader := paper.NewTrader(cfg.PaperConfig(), clock, log)
	rm := risk.NewManager(cfg.RiskConfig(), clock, log)
	if err := initAccount(cfg, journal, trader, rm, log); err != nil {
		return err
	}

	// ---- Publishers ----
	var pubs paper.MultiPublisher
	if cfg.Node.APIAddr != "" {
		apiServer := api.NewServer(api.Config{Account: cfg.Node.Account}, trader, rm, journal, log)
		pubs = append(pubs, apiServer)
		go func() {
			if err := apiServer.Start(ctx, cfg.Node.APIAddr); err != nil {
				log.Errorw("api_server_failed", "err", err)
			}
		}()
	}
	if cfg.P2P.Enabled {
		gp, err := p2p.NewGossipPublisher(ctx, p2p.Config{
			ListenAddr: cfg.P2P.ListenAddr,
			Bootstrap:  cfg.P2P.Bootstrap,
			Account:    cfg.Node.Account,
			Logger:     log,
		}, clock)
		if err != nil {
			return fmt.Errorf("libp2p init: %w", err)
		}
		defer gp.Close()
		pubs = append(pubs, gp)
	}

	runner := paper.NewRunner(paper.RunnerConfig{
		Interval:  interval,
		Account:   cfg.Node.Account,
		Publisher: pubs,
		Journal:   journal,
	}, trader, rm, source, clock, log)

	log.Infow("paperbot_starting",
		"account", cfg.Node.Account.Hex(),
		"balance", trader.Balance(),
		"interval", interval.String(),
		"journal", cfg.Node.JournalKind,
		"p2p", cfg.P2P.Enabled,
	)

	runErr := runner.Run(ctx)

	fmt.Println(trader.FinalReport())
	rep := rm.Report()
	fmt.Printf("Risk: killed=%v reason=%q drawdown=%.2f%% daily_pnl=$%.2f trades=%d\n",
		rep.IsKilled, rep.KillReason, rep.DrawdownPct*100, rep.DailyPnL, rep.TotalTrades)
	if feeder != nil {
		log.Infow("feeder_stats", "stats", feeder.Stats().String())
	}
	return runErr
}
