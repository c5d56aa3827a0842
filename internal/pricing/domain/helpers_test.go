package domain

import (
	"math"
	"testing"
)

// scenario 40/35 看涨：barrier 45，参考 Asian 值 5.162534
func scenario[R Real]() *OptionContract[R] {
	return &OptionContract[R]{
		Spot:    40,
		Strike:  35,
		Rate:    0.03,
		Sigma:   0.2,
		Tenor:   R(1.0 / 3.0),
		Dt:      R(1.0 / 261.0),
		Barrier: 45,
		Type:    OptionTypeCall,
		Golden:  5.162534,
	}
}

func testDevices() []DeviceProperties {
	return []DeviceProperties{{ID: 0, Name: "test", Cores: 4, MaxWorkers: 16, MaxBlockSize: 1 << 20}}
}

func newTestEngine[R Real](t *testing.T, cfg EngineConfig) *Engine[R] {
	t.Helper()
	e, err := NewEngine[R](cfg, testDevices())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return e
}

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}
