package risk

import "time"

// dayStart returns local midnight of t in loc.
func dayStart(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// SameTradingDay reports whether a and b fall on the same calendar day in loc.
func SameTradingDay(loc *time.Location, a, b time.Time) bool {
	return dayStart(a, loc).Equal(dayStart(b, loc))
}

// RolloverIfNeeded resets daily counters on the first call after a trading-day
// boundary and returns true when it did. Call once per tick.
func (m *Manager) RolloverIfNeeded(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if SameTradingDay(m.cfg.Location, m.dayOpen, now) {
		return false
	}
	prevPnL := m.dailyPnL
	m.resetDailyLocked()
	m.dayOpen = dayStart(now, m.cfg.Location)
	m.logger.Infow("trading_day_rollover",
		"day_open", m.dayOpen.Format(time.RFC3339),
		"prev_daily_pnl", prevPnL,
		"balance", m.currentBalance,
	)
	return true
}
