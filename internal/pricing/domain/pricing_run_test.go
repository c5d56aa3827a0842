package domain

import (
	"testing"
)

func TestPricingRun_Lifecycle(t *testing.T) {
	e := newTestEngine[float32](t, EngineConfig{NumSims: 2000, Workers: 2, BlockSize: 500, Seed: 4})
	c := scenario[float32]()
	run := NewPricingRun("1", "ACME", c, e.Config())
	if run.Precision != PrecisionSingle || run.Averaging != AveragingArithmetic {
		t.Fatalf("NewPricingRun() = %+v", run)
	}

	par, err := e.PriceParallel(c)
	if err != nil {
		t.Fatalf("PriceParallel() error = %v", err)
	}
	run.ApplyParallel(par)
	ref, err := e.PriceReference(c)
	if err != nil {
		t.Fatalf("PriceReference() error = %v", err)
	}
	run.ApplyReference(ref)

	if got := run.Value(PayoffAsian).InexactFloat64(); !approxEqual(got, par.Estimate(PayoffAsian).Price, 1e-9) {
		t.Errorf("Asian = %v, want %v", got, par.Estimate(PayoffAsian).Price)
	}
	if run.Steps != 87 || run.StdErrs["ASIAN"] <= 0 {
		t.Errorf("Steps=%d StdErrs=%v", run.Steps, run.StdErrs)
	}
	if !run.Succeeded() {
		t.Fatalf("Status = %s", run.Status)
	}

	run.ApplyValidation(ValidateRun(par, map[PayoffKind]float64{PayoffAsian: 100}, 0.1, 0))
	if run.Status != RunStatusValidationFailed || run.FailureStage != StageValidation {
		t.Errorf("after failed validation: status=%s stage=%s", run.Status, run.FailureStage)
	}
}

func TestPricingRun_Fail(t *testing.T) {
	run := NewPricingRun("2", "ACME", scenario[float64](), EngineConfig{NumSims: 10})
	run.Fail(&NumericError{Strategy: StrategyParallel, Kind: PayoffLookback, NonFinite: 3, Paths: 10})
	if run.Status != RunStatusFailed || run.FailureStage != StageNumeric || run.NonFinite != 3 {
		t.Errorf("Fail() = status %s stage %s non-finite %d", run.Status, run.FailureStage, run.NonFinite)
	}
}
