package params

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"github.com/raphalbongso/polymarket-bot/pkg/app/paper"
	"github.com/raphalbongso/polymarket-bot/pkg/risk"
)

type Paper struct {
	Balance     float64
	SlippageBps float64
	OrderTTL    time.Duration
}

type Risk struct {
	MaxDrawdownPct       float64
	DailyLossLimitUSD    float64
	MaxConsecutiveLosses int
	MaxPositionSizeUSD   float64
	KellyFraction        float64
	MaxKellyFraction     float64
	TradeLogMaxLen       int
	Timezone             string // IANA name for the trading-day boundary
}

type Node struct {
	TickInterval time.Duration
	APIAddr      string // empty disables the API server
	LogFile      string
	JournalKind  string // pebble, file or none
	JournalPath  string
	ReplayFile   string // replay ticks from JSON lines instead of the feeder
	FeederTokens []string
	Account      common.Address
}

type P2P struct {
	Enabled    bool
	ListenAddr string
	Bootstrap  []string
}

type Config struct {
	Paper Paper
	Risk  Risk
	Node  Node
	P2P   P2P
}

func Default() Config {
	return Config{
		Paper: Paper{
			Balance:     1000,
			SlippageBps: 5,
			OrderTTL:    300 * time.Second,
		},
		Risk: Risk{
			MaxDrawdownPct:       0.10,
			DailyLossLimitUSD:    100,
			MaxConsecutiveLosses: 5,
			MaxPositionSizeUSD:   50,
			KellyFraction:        0.25,
			MaxKellyFraction:     0.50,
			TradeLogMaxLen:       1000,
			Timezone:             "UTC",
		},
		Node: Node{
			TickInterval: 10 * time.Second,
			APIAddr:      ":8080",
			JournalKind:  "pebble",
			JournalPath:  "data/journal",
			FeederTokens: paper.DefaultFeederConfig().Tokens,
			Account:      common.HexToAddress("0x0000000000000000000000000000000000000001"),
		},
		P2P: P2P{
			ListenAddr: "/ip4/0.0.0.0/tcp/4001",
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) (Config, error) {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	var errs []error
	float := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	integer := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	seconds := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = time.Duration(f * float64(time.Second))
		}
	}

	float("PAPER_BALANCE", &cfg.Paper.Balance)
	float("PAPER_SLIPPAGE_BPS", &cfg.Paper.SlippageBps)
	seconds("PAPER_ORDER_TTL_SECONDS", &cfg.Paper.OrderTTL)

	float("MAX_DRAWDOWN_PCT", &cfg.Risk.MaxDrawdownPct)
	float("DAILY_LOSS_LIMIT_USD", &cfg.Risk.DailyLossLimitUSD)
	integer("MAX_CONSECUTIVE_LOSSES", &cfg.Risk.MaxConsecutiveLosses)
	float("MAX_POSITION_SIZE_USD", &cfg.Risk.MaxPositionSizeUSD)
	float("KELLY_FRACTION", &cfg.Risk.KellyFraction)
	float("MAX_KELLY_FRACTION", &cfg.Risk.MaxKellyFraction)
	integer("TRADE_LOG_MAXLEN", &cfg.Risk.TradeLogMaxLen)
	cfg.Risk.Timezone = getEnv("RISK_TIMEZONE", cfg.Risk.Timezone)

	seconds("TICK_INTERVAL_SECONDS", &cfg.Node.TickInterval)
	cfg.Node.APIAddr = getEnv("API_ADDR", cfg.Node.APIAddr)
	cfg.Node.LogFile = getEnv("LOG_FILE", cfg.Node.LogFile)
	cfg.Node.JournalKind = strings.ToLower(getEnv("JOURNAL_KIND", cfg.Node.JournalKind))
	cfg.Node.JournalPath = getEnv("JOURNAL_PATH", cfg.Node.JournalPath)
	cfg.Node.ReplayFile = getEnv("REPLAY_FILE", cfg.Node.ReplayFile)
	if toks := splitList(os.Getenv("FEEDER_TOKENS")); len(toks) > 0 {
		cfg.Node.FeederTokens = toks
	}
	if acct := os.Getenv("PAPER_ACCOUNT"); acct != "" {
		if !common.IsHexAddress(acct) {
			errs = append(errs, fmt.Errorf("PAPER_ACCOUNT: invalid address %q", acct))
		} else {
			cfg.Node.Account = common.HexToAddress(acct)
		}
	}

	if v := os.Getenv("ENABLE_P2P"); v != "" {
		cfg.P2P.Enabled = v == "true" || v == "1"
	}
	cfg.P2P.ListenAddr = getEnv("P2P_LISTEN", cfg.P2P.ListenAddr)
	if bs := splitList(os.Getenv("P2P_BOOTSTRAP")); len(bs) > 0 {
		cfg.P2P.Bootstrap = bs
	}

	if err := errors.Join(errs...); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if c.Paper.Balance <= 0 {
		errs = append(errs, errors.New("paper balance must be positive"))
	}
	if c.Paper.SlippageBps < 0 {
		errs = append(errs, errors.New("slippage bps must be >= 0"))
	}
	if c.Risk.MaxDrawdownPct <= 0 || c.Risk.MaxDrawdownPct > 1 {
		errs = append(errs, errors.New("max drawdown pct must be in (0,1]"))
	}
	if c.Risk.DailyLossLimitUSD <= 0 {
		errs = append(errs, errors.New("daily loss limit must be positive"))
	}
	if c.Risk.MaxConsecutiveLosses <= 0 {
		errs = append(errs, errors.New("max consecutive losses must be positive"))
	}
	if c.Risk.MaxPositionSizeUSD <= 0 {
		errs = append(errs, errors.New("max position size must be positive"))
	}
	if c.Risk.KellyFraction <= 0 || c.Risk.KellyFraction > 1 {
		errs = append(errs, errors.New("kelly fraction must be in (0,1]"))
	}
	if c.Risk.MaxKellyFraction <= 0 || c.Risk.MaxKellyFraction > 1 {
		errs = append(errs, errors.New("max kelly fraction must be in (0,1]"))
	}
	if _, err := time.LoadLocation(c.Risk.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("risk timezone: %w", err))
	}
	if c.Node.TickInterval < 0 {
		errs = append(errs, errors.New("tick interval must be >= 0"))
	}
	switch c.Node.JournalKind {
	case "pebble", "file":
		if c.Node.JournalPath == "" {
			errs = append(errs, errors.New("journal path required"))
		}
	case "none":
	default:
		errs = append(errs, fmt.Errorf("unknown journal kind %q", c.Node.JournalKind))
	}
	if c.Node.ReplayFile == "" && len(c.Node.FeederTokens) == 0 {
		errs = append(errs, errors.New("feeder needs at least one token"))
	}
	return errors.Join(errs...)
}

func (c Config) PaperConfig() paper.Config {
	return paper.Config{
		Balance:     c.Paper.Balance,
		SlippageBps: c.Paper.SlippageBps,
		OrderTTL:    c.Paper.OrderTTL,
	}
}

// RiskConfig converts to risk.Config. An unknown timezone falls back to UTC;
// Validate reports it.
func (c Config) RiskConfig() risk.Config {
	loc, err := time.LoadLocation(c.Risk.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return risk.Config{
		MaxDrawdownPct:       c.Risk.MaxDrawdownPct,
		DailyLossLimitUSD:    c.Risk.DailyLossLimitUSD,
		MaxConsecutiveLosses: c.Risk.MaxConsecutiveLosses,
		MaxPositionSizeUSD:   c.Risk.MaxPositionSizeUSD,
		KellyFraction:        c.Risk.KellyFraction,
		MaxKellyFraction:     c.Risk.MaxKellyFraction,
		TradeLogMaxLen:       c.Risk.TradeLogMaxLen,
		Location:             loc,
	}
}

func (c Config) FeederConfig() paper.FeederConfig {
	fc := paper.DefaultFeederConfig()
	fc.Tokens = append([]string(nil), c.Node.FeederTokens...)
	return fc
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
