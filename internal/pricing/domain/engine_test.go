package domain

import (
	"errors"
	"math"
	"testing"
)

func TestNewEngine_SetupErrors(t *testing.T) {
	valid := EngineConfig{NumSims: 1000, Workers: 4, BlockSize: 256, Seed: 1}

	tests := []struct {
		name    string
		mutate  func(*EngineConfig)
		devices []DeviceProperties
		wantErr error
	}{
		{"zero sims", func(c *EngineConfig) { c.NumSims = 0 }, testDevices(), ErrInvalidConfig},
		{"zero workers", func(c *EngineConfig) { c.Workers = 0 }, testDevices(), ErrInvalidConfig},
		{"zero block size", func(c *EngineConfig) { c.BlockSize = 0 }, testDevices(), ErrInvalidConfig},
		{"unknown policy", func(c *EngineConfig) { c.NumericPolicy = "IGNORE" }, testDevices(), ErrInvalidConfig},
		{"device index out of range", func(c *EngineConfig) { c.Device = 3 }, testDevices(), ErrDeviceUnavailable},
		{"no devices", func(c *EngineConfig) {}, nil, ErrDeviceUnavailable},
		{"too many workers", func(c *EngineConfig) { c.Workers = 17 }, testDevices(), ErrParallelism},
		{"block too large", func(c *EngineConfig) { c.BlockSize = 1<<20 + 1 }, testDevices(), ErrParallelism},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			_, err := NewEngine[float64](cfg, tt.devices)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("NewEngine() error = %v, want %v", err, tt.wantErr)
			}
			if StageOf(err) != StageSetup {
				t.Errorf("StageOf() = %q, want SETUP", StageOf(err))
			}
		})
	}
}

func TestEngine_InvalidContractWritesNothing(t *testing.T) {
	e := newTestEngine[float64](t, EngineConfig{NumSims: 100, Workers: 2, BlockSize: 10})
	c := scenario[float64]()
	c.Dt = 0
	c.ValueAsian = -1

	if _, err := e.PriceParallel(c); !errors.Is(err, ErrInvalidContract) {
		t.Fatalf("PriceParallel() error = %v, want ErrInvalidContract", err)
	}
	if _, err := e.PriceReference(c); StageOf(err) != StageSetup {
		t.Fatalf("PriceReference() stage = %q, want SETUP", StageOf(err))
	}
	if c.ValueAsian != -1 {
		t.Errorf("ValueAsian = %v, want untouched", c.ValueAsian)
	}
}

func TestEngine_ResultSlots(t *testing.T) {
	e := newTestEngine[float64](t, EngineConfig{NumSims: 2000, Workers: 4, BlockSize: 128, Seed: 9})
	c := scenario[float64]()
	for _, kind := range AllPayoffKinds {
		c.setResult(kind, -1)
	}
	c.ValuePlainVanillaCPU = -1

	rep, err := e.PriceParallel(c)
	if err != nil {
		t.Fatalf("PriceParallel() error = %v", err)
	}
	if c.ValuePlainVanillaCPU != -1 {
		t.Errorf("parallel strategy wrote ValuePlainVanillaCPU")
	}
	for _, kind := range AllPayoffKinds {
		if got, want := c.ResultFor(kind), rep.Estimate(kind).Price; got != want {
			t.Errorf("%s slot = %v, want %v", kind, got, want)
		}
	}
	if rep.Blocks != 16 {
		t.Errorf("Blocks = %d, want 16", rep.Blocks)
	}

	c2 := scenario[float64]()
	c2.ValueAsian, c2.ValuePlainVanilla = -1, -1
	rep, err = e.PriceReference(c2)
	if err != nil {
		t.Fatalf("PriceReference() error = %v", err)
	}
	if c2.ValueAsian != -1 || c2.ValuePlainVanilla != -1 {
		t.Errorf("reference strategy wrote accelerator slots")
	}
	if c2.ValuePlainVanillaCPU != rep.Estimate(PayoffPlainVanilla).Price {
		t.Errorf("ValuePlainVanillaCPU = %v, want %v", c2.ValuePlainVanillaCPU, rep.Estimate(PayoffPlainVanilla).Price)
	}
	if rep.Strategy != StrategyReference || rep.Workers != 1 || rep.Blocks != 1 {
		t.Errorf("reference report = %+v", rep)
	}
}

func TestEngine_KnockoutPlusKnockinIsVanilla(t *testing.T) {
	e := newTestEngine[float64](t, EngineConfig{NumSims: 20000, Workers: 8, BlockSize: 1000, Seed: 3})
	for _, typ := range []OptionType{OptionTypeCall, OptionTypePut} {
		c := scenario[float64]()
		c.Type = typ
		c.Barrier = 42
		if _, err := e.PriceParallel(c); err != nil {
			t.Fatalf("PriceParallel() error = %v", err)
		}
		if typ == OptionTypeCall && (c.ValueKnockin == 0 || c.ValueKnockout == 0) {
			t.Fatalf("degenerate barrier split KO=%v KI=%v", c.ValueKnockout, c.ValueKnockin)
		}
		if sum := c.ValueKnockout + c.ValueKnockin; !approxEqual(sum, c.ValuePlainVanilla, 1e-9) {
			t.Errorf("%s: KO+KI = %v, vanilla = %v", typ, sum, c.ValuePlainVanilla)
		}
	}
}

func TestEngine_DeterministicAcrossPartitioning(t *testing.T) {
	configs := []EngineConfig{
		{NumSims: 10000, Workers: 1, BlockSize: 10000, Seed: 11},
		{NumSims: 10000, Workers: 3, BlockSize: 333, Seed: 11},
		{NumSims: 10000, Workers: 16, BlockSize: 1, Seed: 11},
	}
	var baseline *Report
	for _, cfg := range configs {
		rep, err := newTestEngine[float64](t, cfg).PriceParallel(scenario[float64]())
		if err != nil {
			t.Fatalf("PriceParallel(%+v) error = %v", cfg, err)
		}
		if baseline == nil {
			baseline = rep
			continue
		}
		for _, kind := range AllPayoffKinds {
			got, want := rep.Estimate(kind).Price, baseline.Estimate(kind).Price
			if !approxEqual(got, want, 1e-10) {
				t.Errorf("workers=%d block=%d %s = %v, want %v", cfg.Workers, cfg.BlockSize, kind, got, want)
			}
		}
	}

	// 相同配置重复运行结果逐位相同
	e := newTestEngine[float64](t, configs[1])
	a, _ := e.PriceParallel(scenario[float64]())
	b, _ := e.PriceParallel(scenario[float64]())
	if a.Estimates != b.Estimates {
		t.Errorf("repeated parallel runs differ: %+v vs %+v", a.Estimates, b.Estimates)
	}
}

func TestEngine_ReferenceIdempotent(t *testing.T) {
	e := newTestEngine[float64](t, EngineConfig{NumSims: 5000, Workers: 1, BlockSize: 5000, Seed: 5})
	c := scenario[float64]()
	first, err := e.PriceReference(c)
	if err != nil {
		t.Fatalf("PriceReference() error = %v", err)
	}
	v := c.ValuePlainVanillaCPU
	second, err := e.PriceReference(c)
	if err != nil {
		t.Fatalf("PriceReference() error = %v", err)
	}
	if c.ValuePlainVanillaCPU != v || first.Estimates != second.Estimates {
		t.Errorf("reference not idempotent: %v then %v", v, c.ValuePlainVanillaCPU)
	}
}

func TestEngine_ParallelMatchesReference(t *testing.T) {
	sizes := []int{10000}
	if !testing.Short() {
		sizes = append(sizes, 1000000)
	}

	var prevStdErr, prevBound float64
	for _, n := range sizes {
		e := newTestEngine[float64](t, EngineConfig{NumSims: n, Workers: 8, BlockSize: 4096, Seed: 2024})
		other := newTestEngine[float64](t, EngineConfig{NumSims: n, Workers: 8, BlockSize: 4096, Seed: 4048})
		c := scenario[float64]()
		par, err := e.PriceParallel(c)
		if err != nil {
			t.Fatalf("PriceParallel() error = %v", err)
		}
		ref, err := e.PriceReference(c)
		if err != nil {
			t.Fatalf("PriceReference() error = %v", err)
		}
		for _, kind := range AllPayoffKinds {
			p, r := par.Estimate(kind), ref.Estimate(kind)
			if gap := math.Abs(p.Price - r.Price); gap > 3*p.StdErr+1e-12 {
				t.Errorf("n=%d %s: parallel %v vs reference %v, gap %v > 3*stderr %v", n, kind, p.Price, r.Price, gap, p.StdErr)
			}
		}
		if !approxEqual(c.ValuePlainVanilla, c.ValuePlainVanillaCPU, 1e-9) {
			t.Errorf("n=%d vanilla %v vs cpu %v", n, c.ValuePlainVanilla, c.ValuePlainVanillaCPU)
		}

		stdErr := par.Estimate(PayoffPlainVanilla).StdErr
		if prevStdErr > 0 && stdErr >= prevStdErr {
			t.Errorf("std err did not shrink: %v at n=%d, previously %v", stdErr, n, prevStdErr)
		}
		prevStdErr = stdErr

		// 不同种子的参考策略与并行策略相互独立，差值受两者标准误约束，且约束随 n 收紧
		indep, err := other.PriceReference(scenario[float64]())
		if err != nil {
			t.Fatalf("PriceReference(seed 4048) error = %v", err)
		}
		p, r := par.Estimate(PayoffPlainVanilla), indep.Estimate(PayoffPlainVanilla)
		bound := 4 * math.Hypot(p.StdErr, r.StdErr)
		if gap := math.Abs(p.Price - r.Price); gap > bound {
			t.Errorf("n=%d cross-seed gap %v > bound %v", n, gap, bound)
		}
		if prevBound > 0 && bound >= prevBound/5 {
			t.Errorf("cross-seed bound %v at n=%d did not narrow from %v", bound, n, prevBound)
		}
		prevBound = bound
	}
}

func TestEngine_ZeroVolatility(t *testing.T) {
	e := newTestEngine[float64](t, EngineConfig{NumSims: 1000, Workers: 4, BlockSize: 100, Seed: 1})

	c := scenario[float64]()
	c.Sigma = 0
	if _, err := e.PriceParallel(c); err != nil {
		t.Fatalf("PriceParallel() error = %v", err)
	}

	df := c.DiscountFactor()
	growth := math.Exp(c.Rate * c.Dt)
	s, sum := c.Spot, 0.0
	for i := 0; i < c.Steps(); i++ {
		s *= growth
		sum += s
	}
	avg := sum / float64(c.Steps())
	vanilla := df * math.Max(s-c.Strike, 0)
	asian := df * math.Max(avg-c.Strike, 0)

	want := map[PayoffKind]float64{
		PayoffPlainVanilla: vanilla,
		PayoffAsian:        asian,
		PayoffKnockout:     vanilla,
		PayoffKnockin:      0,
		PayoffLookback:     df * (s - c.Spot),
		PayoffALK:          asian,
	}
	for kind, w := range want {
		if got := c.ResultFor(kind); !approxEqual(got, w, 1e-9) {
			t.Errorf("%s = %v, want %v", kind, got, w)
		}
	}

	// S0 = K 且 r = 0 时全部收益为零
	flat := scenario[float64]()
	flat.Sigma, flat.Rate, flat.Strike = 0, 0, flat.Spot
	if _, err := e.PriceParallel(flat); err != nil {
		t.Fatalf("PriceParallel() error = %v", err)
	}
	for _, kind := range AllPayoffKinds {
		if got := flat.ResultFor(kind); !approxEqual(got, 0, 1e-12) {
			t.Errorf("flat %s = %v, want 0", kind, got)
		}
	}
}

func TestEngine_UnreachableBarrier(t *testing.T) {
	e := newTestEngine[float64](t, EngineConfig{NumSims: 5000, Workers: 4, BlockSize: 500, Seed: 8})
	c := scenario[float64]()
	c.Barrier = 1e6
	if _, err := e.PriceParallel(c); err != nil {
		t.Fatalf("PriceParallel() error = %v", err)
	}
	if c.ValueKnockin != 0 {
		t.Errorf("KNOCKIN = %v, want 0", c.ValueKnockin)
	}
	if c.ValueKnockout != c.ValuePlainVanilla {
		t.Errorf("KNOCKOUT = %v, want vanilla %v", c.ValueKnockout, c.ValuePlainVanilla)
	}
	if c.ValueALK != c.ValueAsian {
		t.Errorf("ALK = %v, want Asian %v", c.ValueALK, c.ValueAsian)
	}
}

func TestEngine_AnalyticScenario(t *testing.T) {
	if testing.Short() {
		t.Skip("million-path scenario")
	}
	e := newTestEngine[float64](t, EngineConfig{NumSims: 1000000, Workers: 16, BlockSize: 8192, Seed: 1})
	c := scenario[float64]()
	if _, err := e.PriceParallel(c); err != nil {
		t.Fatalf("PriceParallel() error = %v", err)
	}

	bs := BlackScholesPrice(c)
	if !approxEqual(c.ValuePlainVanilla, bs, 0.1) {
		t.Errorf("vanilla %v, Black-Scholes %v", c.ValuePlainVanilla, bs)
	}
	if !approxEqual(c.ValueAsian, c.Golden, 0.1) {
		t.Errorf("Asian %v, golden %v", c.ValueAsian, c.Golden)
	}
	// 浮动行权价回望收益 S_T - min 在每条路径上都不低于平值看涨 (S_T - S0)+
	atm := scenario[float64]()
	atm.Strike = atm.Spot
	if _, err := e.PriceParallel(atm); err != nil {
		t.Fatalf("PriceParallel(atm) error = %v", err)
	}
	if c.ValueLookback < atm.ValuePlainVanilla {
		t.Errorf("lookback %v below at-the-money vanilla %v", c.ValueLookback, atm.ValuePlainVanilla)
	}
	if c.ValueALK > c.ValueAsian {
		t.Errorf("ALK %v above Asian %v", c.ValueALK, c.ValueAsian)
	}
}

func TestEngine_SingleMatchesDoublePrecision(t *testing.T) {
	cfg := EngineConfig{NumSims: 50000, Workers: 8, BlockSize: 2048, Seed: 77}
	c64 := scenario[float64]()
	c32 := scenario[float32]()
	r64, err := newTestEngine[float64](t, cfg).PriceParallel(c64)
	if err != nil {
		t.Fatalf("float64 PriceParallel() error = %v", err)
	}
	r32, err := newTestEngine[float32](t, cfg).PriceParallel(c32)
	if err != nil {
		t.Fatalf("float32 PriceParallel() error = %v", err)
	}
	if r32.Precision != PrecisionSingle || r64.Precision != PrecisionDouble {
		t.Fatalf("precisions = %s/%s", r32.Precision, r64.Precision)
	}
	if r32.Steps != r64.Steps {
		t.Fatalf("steps = %d/%d", r32.Steps, r64.Steps)
	}
	for _, kind := range AllPayoffKinds {
		a, b := float64(c32.ResultFor(kind)), c64.ResultFor(kind)
		if !approxEqual(a, b, 2e-3*math.Max(1, math.Abs(b))) {
			t.Errorf("%s float32 %v vs float64 %v", kind, a, b)
		}
	}
}

// overflowContract 单精度下约一半路径溢出为 +Inf
func overflowContract() *OptionContract[float32] {
	return &OptionContract[float32]{
		Spot:    40,
		Strike:  35,
		Rate:    85.53,
		Sigma:   1,
		Tenor:   1,
		Dt:      1,
		Barrier: 45,
		Type:    OptionTypeCall,
	}
}

func TestEngine_NumericPolicy(t *testing.T) {
	const n = 2000

	t.Run("fail", func(t *testing.T) {
		for _, policy := range []NumericPolicy{"", NumericPolicyFail} {
			e := newTestEngine[float32](t, EngineConfig{NumSims: n, Workers: 4, BlockSize: 100, Seed: 1, NumericPolicy: policy})
			c := overflowContract()
			c.ValueAsian, c.ValuePlainVanillaCPU = -1, -1

			_, err := e.PriceParallel(c)
			var numErr *NumericError
			if !errors.As(err, &numErr) {
				t.Fatalf("PriceParallel() error = %v, want *NumericError", err)
			}
			if StageOf(err) != StageNumeric {
				t.Errorf("StageOf() = %q, want NUMERIC", StageOf(err))
			}
			if numErr.NonFinite == 0 || numErr.Paths != n || numErr.Strategy != StrategyParallel {
				t.Errorf("NumericError = %+v", numErr)
			}
			if c.ValueAsian != -1 {
				t.Errorf("failed run wrote ValueAsian = %v", c.ValueAsian)
			}

			_, err = e.PriceReference(c)
			if !errors.As(err, &numErr) || numErr.Strategy != StrategyReference {
				t.Fatalf("PriceReference() error = %v", err)
			}
			if c.ValuePlainVanillaCPU != -1 {
				t.Errorf("failed run wrote ValuePlainVanillaCPU = %v", c.ValuePlainVanillaCPU)
			}
		}
	})

	t.Run("exclude", func(t *testing.T) {
		e := newTestEngine[float32](t, EngineConfig{NumSims: n, Workers: 4, BlockSize: 100, Seed: 1, NumericPolicy: NumericPolicyExclude})
		c := overflowContract()
		rep, err := e.PriceParallel(c)
		if err != nil {
			t.Fatalf("PriceParallel() error = %v", err)
		}
		bad := rep.NonFinite()
		if bad == 0 || bad == n {
			t.Fatalf("NonFinite() = %d, want a partial overflow", bad)
		}
		for _, kind := range AllPayoffKinds {
			est := rep.Estimate(kind)
			if est.Paths+est.NonFinite != n {
				t.Errorf("%s: %d finite + %d excluded != %d", kind, est.Paths, est.NonFinite, n)
			}
			if math.IsNaN(est.Price) || math.IsInf(est.Price, 0) {
				t.Errorf("%s price = %v", kind, est.Price)
			}
		}
	})
}
