package risk

import (
	"math"
	"testing"

	"pgregory.net/rapid"
)

func TestKellyCriterion(t *testing.T) {
	tests := []struct {
		name    string
		p, b    float64
		want    float64
		wantNeg bool
	}{
		{name: "even odds edge", p: 0.6, b: 1.0, want: 0.2},
		{name: "no edge", p: 0.5, b: 1.0, want: 0},
		{name: "negative edge", p: 0.3, b: 1.0, wantNeg: true},
		{name: "zero odds", p: 0.9, b: 0, want: 0},
		{name: "negative odds", p: 0.9, b: -1, want: 0},
		{name: "p zero", p: 0, b: 2, want: 0},
		{name: "p one", p: 1, b: 2, want: 0},
		{name: "price 0.40", p: 0.5, b: 1.5, want: (1.5*0.5 - 0.5) / 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := KellyCriterion(tt.p, tt.b)
			if tt.wantNeg {
				if got >= 0 {
					t.Errorf("KellyCriterion(%v, %v) = %v, want < 0", tt.p, tt.b, got)
				}
				return
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("KellyCriterion(%v, %v) = %v, want %v", tt.p, tt.b, got, tt.want)
			}
		})
	}
}

func TestPositionSizeClamps(t *testing.T) {
	// raw 0.2 * 0.25 = 0.05 of 1000 = 50, capped to 30
	if got := PositionSize(1000, 0.6, 1.0, 0.25, 0.5, 30); got != 30 {
		t.Errorf("dollar cap: got %v, want 30", got)
	}
	// raw 0.2 * 1.0 = 0.2, kelly cap 0.1 -> 100
	if got := PositionSize(1000, 0.6, 1.0, 1.0, 0.1, 1e9); math.Abs(got-100) > 1e-9 {
		t.Errorf("kelly cap: got %v, want 100", got)
	}
	if got := PositionSize(1000, 0.3, 1.0, 0.25, 0.5, 50); got != 0 {
		t.Errorf("no edge: got %v, want 0", got)
	}
}

func TestKellyNonDecreasingInOdds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := rapid.Float64Range(0.01, 0.99).Draw(t, "p")
		b1 := rapid.Float64Range(0.01, 100).Draw(t, "b1")
		b2 := rapid.Float64Range(b1, 100).Draw(t, "b2")
		if KellyCriterion(p, b2)+1e-12 < KellyCriterion(p, b1) {
			t.Fatalf("kelly(%v, %v) < kelly(%v, %v)", p, b2, p, b1)
		}
	})
}

func TestPositionSizeMonotoneInCaps(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		bankroll := rapid.Float64Range(0, 10_000).Draw(t, "bankroll")
		p := rapid.Float64Range(0.01, 0.99).Draw(t, "p")
		b := rapid.Float64Range(0.01, 50).Draw(t, "b")
		kf := rapid.Float64Range(0, 1).Draw(t, "kf")
		mk := rapid.Float64Range(0, 1).Draw(t, "mk")
		usd := rapid.Float64Range(0, 1000).Draw(t, "usd")
		scale := rapid.Float64Range(0, 1).Draw(t, "scale")

		base := PositionSize(bankroll, p, b, kf, mk, usd)
		if base > usd {
			t.Fatalf("size %v exceeds dollar cap %v", base, usd)
		}
		if s := PositionSize(bankroll, p, b, kf*scale, mk, usd); s > base+1e-9 {
			t.Fatalf("lower kelly fraction grew size: %v > %v", s, base)
		}
		if s := PositionSize(bankroll, p, b, kf, mk*scale, usd); s > base+1e-9 {
			t.Fatalf("lower kelly cap grew size: %v > %v", s, base)
		}
		if s := PositionSize(bankroll, p, b, kf, mk, usd*scale); s > base+1e-9 {
			t.Fatalf("lower dollar cap grew size: %v > %v", s, base)
		}
	})
}
