package domain

import (
	"errors"
	"math"
	"testing"
)

func TestOptionContract_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*OptionContract[float64])
		ok     bool
	}{
		{"valid", func(c *OptionContract[float64]) {}, true},
		{"zero sigma", func(c *OptionContract[float64]) { c.Sigma = 0 }, true},
		{"geometric", func(c *OptionContract[float64]) { c.Averaging = AveragingGeometric }, true},
		{"negative spot", func(c *OptionContract[float64]) { c.Spot = -1 }, false},
		{"zero strike", func(c *OptionContract[float64]) { c.Strike = 0 }, false},
		{"negative sigma", func(c *OptionContract[float64]) { c.Sigma = -0.1 }, false},
		{"zero tenor", func(c *OptionContract[float64]) { c.Tenor = 0 }, false},
		{"dt above tenor", func(c *OptionContract[float64]) { c.Dt = 1 }, false},
		{"zero barrier", func(c *OptionContract[float64]) { c.Barrier = 0 }, false},
		{"nan rate", func(c *OptionContract[float64]) { c.Rate = math.NaN() }, false},
		{"inf spot", func(c *OptionContract[float64]) { c.Spot = math.Inf(1) }, false},
		{"unknown type", func(c *OptionContract[float64]) { c.Type = "STRADDLE" }, false},
		{"unknown averaging", func(c *OptionContract[float64]) { c.Averaging = "HARMONIC" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := scenario[float64]()
			tt.mutate(c)
			err := c.Validate()
			if tt.ok && err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if !tt.ok && (!errors.Is(err, ErrInvalidContract) || StageOf(err) != StageSetup) {
				t.Fatalf("Validate() error = %v, want setup-stage ErrInvalidContract", err)
			}
		})
	}
}

func TestOptionContract_Steps(t *testing.T) {
	if got := scenario[float64]().Steps(); got != 87 {
		t.Errorf("float64 Steps() = %d, want 87", got)
	}
	if got := scenario[float32]().Steps(); got != 87 {
		t.Errorf("float32 Steps() = %d, want 87", got)
	}
	c := &OptionContract[float64]{Tenor: 1, Dt: 0.3}
	if got := c.Steps(); got != 4 {
		t.Errorf("Steps() = %d, want ceil(1/0.3) = 4", got)
	}
}

func TestOptionContract_UpBarrier(t *testing.T) {
	c := scenario[float64]()
	if !c.UpBarrier() {
		t.Error("barrier 45 above spot 40 should be up")
	}
	c.Barrier = 30
	if c.UpBarrier() {
		t.Error("barrier 30 below spot 40 should be down")
	}
	c.Barrier = c.Spot
	if !c.UpBarrier() {
		t.Error("barrier at spot should be up")
	}
}

func TestPrecision(t *testing.T) {
	if PrecisionOf[float32]() != PrecisionSingle || PrecisionOf[float64]() != PrecisionDouble {
		t.Fatal("PrecisionOf mismatch")
	}
	if p, err := ParsePrecision(""); err != nil || p != PrecisionDouble {
		t.Errorf("ParsePrecision(\"\") = %v, %v", p, err)
	}
	if _, err := ParsePrecision("half"); err == nil {
		t.Error("ParsePrecision(half) returned nil error")
	}
}

func TestStageOf(t *testing.T) {
	tests := []struct {
		err  error
		want Stage
	}{
		{nil, StageNone},
		{ErrParallelism, StageSetup},
		{&NumericError{Strategy: StrategyParallel, Kind: PayoffAsian, NonFinite: 1, Paths: 10}, StageNumeric},
		{ErrValidation, StageValidation},
		{ErrRunNotFound, StageNone},
		{errors.New("boom"), StageNone},
	}
	for _, tt := range tests {
		if got := StageOf(tt.err); got != tt.want {
			t.Errorf("StageOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
