package risk

import "math"

// KellyCriterion returns the optimal bankroll fraction f* = (b*p - q) / b for
// win probability p and net odds b. Negative means no edge. Out-of-domain
// inputs (b <= 0, p outside (0,1)) return 0.
func KellyCriterion(winProb, odds float64) float64 {
	if !(odds > 0) || !(winProb > 0) || !(winProb < 1) {
		return 0
	}
	q := 1 - winProb
	return (odds*winProb - q) / odds
}

// BinaryOdds converts a binary-market price into net odds: 1/price - 1.
func BinaryOdds(price float64) float64 {
	return 1/price - 1
}

// PositionSize turns a Kelly fraction into dollars. Clamps are applied in
// order: fractional Kelly, then the max-Kelly cap, then the dollar cap.
func PositionSize(bankroll, winProb, odds, kellyFraction, maxKelly, maxPositionUSD float64) float64 {
	raw := KellyCriterion(winProb, odds)
	if raw <= 0 {
		return 0
	}
	capped := math.Min(raw*kellyFraction, maxKelly)
	return math.Min(bankroll*capped, maxPositionUSD)
}
