package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raphalbongso/polymarket-bot/pkg/app/paper"
)

// Metrics mirrors heartbeat and trade events into Prometheus series.
type Metrics struct {
	registry *prometheus.Registry

	balance           prometheus.Gauge
	peakBalance       prometheus.Gauge
	drawdown          prometheus.Gauge
	dailyPnL          prometheus.Gauge
	realizedPnL       prometheus.Gauge
	unrealizedPnL     prometheus.Gauge
	consecutiveLosses prometheus.Gauge
	killSwitch        prometheus.Gauge
	openPositions     prometheus.Gauge
	restingOrders     prometheus.Gauge
	ticks             prometheus.Gauge
	fills             *prometheus.CounterVec
	signals           prometheus.Counter
}

func NewMetrics() *Metrics {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: "paperbot_" + name, Help: help})
	}
	m := &Metrics{
		registry:          prometheus.NewRegistry(),
		balance:           gauge("balance_usd", "Paper cash balance"),
		peakBalance:       gauge("peak_balance_usd", "Highest balance seen by risk"),
		drawdown:          gauge("drawdown_ratio", "Drawdown from peak, 0..1"),
		dailyPnL:          gauge("daily_pnl_usd", "Realized PnL since the trading day opened"),
		realizedPnL:       gauge("realized_pnl_usd", "Total realized PnL"),
		unrealizedPnL:     gauge("unrealized_pnl_usd", "Mark-to-mid PnL of open positions"),
		consecutiveLosses: gauge("consecutive_losses", "Current losing streak"),
		killSwitch:        gauge("kill_switch", "1 once the kill switch tripped"),
		openPositions:     gauge("open_positions", "Instruments with non-zero quantity"),
		restingOrders:     gauge("resting_orders", "Orders waiting for liquidity"),
		ticks:             gauge("tick", "Last processed tick"),
		fills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "paperbot_fills_total",
			Help: "Fill attempts by status and side",
		}, []string{"status", "side"}),
		signals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "paperbot_signals_total",
			Help: "Signals received",
		}),
	}
	m.registry.MustRegister(
		m.balance, m.peakBalance, m.drawdown, m.dailyPnL, m.realizedPnL, m.unrealizedPnL,
		m.consecutiveLosses, m.killSwitch, m.openPositions, m.restingOrders, m.ticks,
		m.fills, m.signals,
	)
	return m
}

func (m *Metrics) ObserveHeartbeat(hb paper.Heartbeat) {
	m.balance.Set(hb.Paper.Balance)
	m.peakBalance.Set(hb.Risk.PeakBalance)
	m.drawdown.Set(hb.Risk.DrawdownPct)
	m.dailyPnL.Set(hb.Risk.DailyPnL)
	m.realizedPnL.Set(hb.Paper.TotalRealizedPnL)
	m.unrealizedPnL.Set(hb.Paper.UnrealizedPnL)
	m.consecutiveLosses.Set(float64(hb.Risk.ConsecutiveLosses))
	m.openPositions.Set(float64(hb.Paper.OpenPositions))
	m.restingOrders.Set(float64(hb.Paper.RestingOrders))
	m.ticks.Set(float64(hb.Tick))
	if hb.Risk.IsKilled {
		m.killSwitch.Set(1)
	}
}

func (m *Metrics) ObserveTrade(ev paper.TradeEvent) {
	m.fills.WithLabelValues(ev.FillStatus, ev.Side).Inc()
}

func (m *Metrics) ObserveSignal() { m.signals.Inc() }

func (m *Metrics) ObserveKill() { m.killSwitch.Set(1) }

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
