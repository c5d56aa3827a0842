package domain

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name         string
		est          Estimate
		golden       float64
		tolerance    float64
		wantPass     bool
		wantInterval bool
	}{
		{"exact", Estimate{Price: 5.162534, StdErr: 0.003}, 5.162534, 0.1, true, true},
		{"inside tolerance outside interval", Estimate{Price: 5.2, StdErr: 0.003}, 5.162534, 0.1, true, false},
		{"outside tolerance", Estimate{Price: 5.3, StdErr: 0.003}, 5.162534, 0.1, false, false},
		{"default tolerance", Estimate{Price: 5.25, StdErr: 0.05}, 5.162534, 0, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(PayoffAsian, tt.est, tt.golden, tt.tolerance, 0)
			if got.Passed() != tt.wantPass {
				t.Errorf("Passed() = %v, want %v (%s)", got.Passed(), tt.wantPass, got)
			}
			if got.WithinInterval != tt.wantInterval {
				t.Errorf("WithinInterval = %v, want %v (%s)", got.WithinInterval, tt.wantInterval, got)
			}
			if got.Confidence != DefaultConfidence {
				t.Errorf("Confidence = %v, want default", got.Confidence)
			}
			err := got.Err()
			if tt.wantPass && err != nil {
				t.Errorf("Err() = %v, want nil", err)
			}
			if !tt.wantPass && (!errors.Is(err, ErrValidation) || StageOf(err) != StageValidation) {
				t.Errorf("Err() = %v, want validation stage", err)
			}
		})
	}
}

func TestValidateRun(t *testing.T) {
	rep := &Report{}
	rep.Estimates[PayoffAsian] = Estimate{Kind: PayoffAsian, Price: 5.17, StdErr: 0.004}
	rep.Estimates[PayoffPlainVanilla] = Estimate{Kind: PayoffPlainVanilla, Price: 5.9, StdErr: 0.004}

	results := ValidateRun(rep, map[PayoffKind]float64{
		PayoffAsian:        5.162534,
		PayoffPlainVanilla: 5.5688,
		PayoffKind(99):     1,
	}, 0.1, 0.95)

	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].Kind != PayoffPlainVanilla || results[1].Kind != PayoffAsian {
		t.Errorf("results not ordered by kind: %v, %v", results[0].Kind, results[1].Kind)
	}
	if results[0].Passed() || !results[1].Passed() {
		t.Errorf("unexpected outcomes: %s / %s", results[0], results[1])
	}
	if err := FirstFailure(results); StageOf(err) != StageValidation {
		t.Errorf("FirstFailure() = %v", err)
	}
	if err := FirstFailure(results[1:]); err != nil {
		t.Errorf("FirstFailure() = %v, want nil", err)
	}
}
