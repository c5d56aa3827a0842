package domain

import (
	"math"
	"testing"
)

func TestCalculateBlackScholes_Scenario(t *testing.T) {
	got := BlackScholesPrice(scenario[float64]())
	if !approxEqual(got, 5.5688, 1e-3) {
		t.Errorf("BlackScholesPrice() = %v, want ~5.5688", got)
	}
}

func TestCalculateBlackScholes_PutCallParity(t *testing.T) {
	in := BlackScholesInput{S: 100, K: 95, T: 0.75, R: 0.04, V: 0.3}
	call := CalculateBlackScholes(OptionTypeCall, in)
	put := CalculateBlackScholes(OptionTypePut, in)

	parity := in.S - in.K*math.Exp(-in.R*in.T)
	if diff := call.Price - put.Price; !approxEqual(diff, parity, 1e-10) {
		t.Errorf("C - P = %v, want %v", diff, parity)
	}
	if !approxEqual(call.Delta-put.Delta, 1, 1e-12) {
		t.Errorf("delta_c - delta_p = %v, want 1", call.Delta-put.Delta)
	}
	if call.Gamma != put.Gamma || call.Vega != put.Vega {
		t.Errorf("gamma/vega differ between call and put")
	}
}

func TestCalculateBlackScholes_ZeroVolatility(t *testing.T) {
	in := BlackScholesInput{S: 40, K: 35, T: 1.0 / 3.0, R: 0.03}
	got := CalculateBlackScholes(OptionTypeCall, in)
	want := 40 - 35*math.Exp(-0.01)
	if !approxEqual(got.Price, want, 1e-12) || got.Delta != 1 {
		t.Errorf("CalculateBlackScholes() = %+v, want price %v", got, want)
	}
	if p := CalculateBlackScholes(OptionTypePut, in); p.Price != 0 {
		t.Errorf("out-of-the-money put = %v, want 0", p.Price)
	}
}

func TestGeometricAsianPrice_SingleStepIsBlackScholes(t *testing.T) {
	c := &OptionContract[float64]{Spot: 40, Strike: 38, Rate: 0.05, Sigma: 0.25, Tenor: 0.5, Dt: 0.5, Barrier: 60, Type: OptionTypePut}
	if got, want := GeometricAsianPrice(c), BlackScholesPrice(c); !approxEqual(got, want, 1e-12) {
		t.Errorf("GeometricAsianPrice() = %v, want %v", got, want)
	}
}

func TestGeometricAsianPrice_MatchesSimulation(t *testing.T) {
	n := 200000
	if testing.Short() {
		n = 20000
	}
	e := newTestEngine[float64](t, EngineConfig{NumSims: n, Workers: 8, BlockSize: 4096, Seed: 31})
	for _, typ := range []OptionType{OptionTypeCall, OptionTypePut} {
		c := scenario[float64]()
		c.Type = typ
		c.Strike = 40
		c.Averaging = AveragingGeometric
		rep, err := e.PriceParallel(c)
		if err != nil {
			t.Fatalf("PriceParallel() error = %v", err)
		}
		est := rep.Estimate(PayoffAsian)
		want := GeometricAsianPrice(c)
		if gap := math.Abs(est.Price - want); gap > 4*est.StdErr {
			t.Errorf("%s: simulated %v, closed form %v, gap %v > 4*%v", typ, est.Price, want, gap, est.StdErr)
		}
	}
}

func TestZScore(t *testing.T) {
	tests := []struct {
		confidence, want float64
	}{
		{0.95, 1.959964},
		{0.99, 2.575829},
	}
	for _, tt := range tests {
		if got := ZScore(tt.confidence); !approxEqual(got, tt.want, 1e-5) {
			t.Errorf("ZScore(%v) = %v, want %v", tt.confidence, got, tt.want)
		}
	}
}
