package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/wyfcoding/pathpricing/internal/pricing/domain"
)

// benchResult 一种精度下的场景结果
type benchResult struct {
	precision   domain.Precision
	spot        float64
	strike      float64
	rate        float64
	sigma       float64
	tenor       float64
	optionType  domain.OptionType
	golden      float64
	values      [domain.NumPayoffKinds]float64
	vanillaCPU  float64
	parallel    *domain.Report
	reference   *domain.Report
	validations []domain.ValidationResult
}

func (r benchResult) passed() bool {
	return domain.FirstFailure(r.validations) == nil
}

func scenario[R domain.Real]() *domain.OptionContract[R] {
	return &domain.OptionContract[R]{
		Spot:    40,
		Strike:  35,
		Rate:    0.03,
		Sigma:   0.2,
		Tenor:   R(1.0 / 3.0),
		Dt:      R(1.0 / 261.0),
		Barrier: 45,
		Type:    domain.OptionTypeCall,
		Golden:  goldenAsian,
	}
}

// runScenario 依次运行并行与顺序参考策略，并以并行结果校验 Asian 参考价
func runScenario[R domain.Real](cfg domain.EngineConfig, devices []domain.DeviceProperties, tolerance float64) (benchResult, error) {
	engine, err := domain.NewEngine[R](cfg, devices)
	if err != nil {
		return benchResult{}, err
	}
	c := scenario[R]()
	parallel, err := engine.PriceParallel(c)
	if err != nil {
		return benchResult{}, err
	}
	reference, err := engine.PriceReference(c)
	if err != nil {
		return benchResult{}, err
	}

	res := benchResult{
		precision:  domain.PrecisionOf[R](),
		spot:       float64(c.Spot),
		strike:     float64(c.Strike),
		rate:       float64(c.Rate),
		sigma:      float64(c.Sigma),
		tenor:      float64(c.Tenor),
		optionType: c.Type,
		golden:     float64(c.Golden),
		vanillaCPU: float64(c.ValuePlainVanillaCPU),
		parallel:   parallel,
		reference:  reference,
	}
	for _, k := range domain.AllPayoffKinds {
		res.values[k] = float64(c.ResultFor(k))
	}
	res.validations = domain.ValidateRun(parallel, map[domain.PayoffKind]float64{
		domain.PayoffAsian: res.golden,
	}, tolerance, domain.DefaultConfidence)
	return res, nil
}

var tableHeader = []string{
	"Spot", "Strike", "r", "sigma", "tenor", "Call/Put", "Asian", "Expected",
	"PlainVanilla", "PVCPU", "Knock-Out", "Knock-In", "KO+KI", "Lookback", "ALK",
}

const columnWidth = 13

func printReport(w io.Writer, r benchResult) {
	for _, h := range tableHeader {
		fmt.Fprintf(w, "%-*s|", columnWidth, h)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("-", (columnWidth+1)*len(tableHeader)))

	row := []float64{
		r.spot, r.strike, r.rate, r.sigma, r.tenor,
	}
	for _, v := range row {
		fmt.Fprintf(w, "%-*.6f|", columnWidth, v)
	}
	fmt.Fprintf(w, "%-*s|", columnWidth, r.optionType)
	for _, v := range []float64{
		r.values[domain.PayoffAsian],
		r.golden,
		r.values[domain.PayoffPlainVanilla],
		r.vanillaCPU,
		r.values[domain.PayoffKnockout],
		r.values[domain.PayoffKnockin],
		r.values[domain.PayoffKnockout] + r.values[domain.PayoffKnockin],
		r.values[domain.PayoffLookback],
		r.values[domain.PayoffALK],
	} {
		fmt.Fprintf(w, "%-*.6f|", columnWidth, v)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Precision:            %s\n", r.precision)
	fmt.Fprintf(w, "Number of sims:       %d (%d steps, %d blocks of %d, %d workers)\n",
		r.parallel.NumSims, r.parallel.Steps, r.parallel.Blocks, r.parallel.BlockSize, r.parallel.Workers)
	fmt.Fprintf(w, "Parallel time:        %v (%.0f paths/s)\n", r.parallel.Elapsed, r.parallel.PathsPerSecond())
	fmt.Fprintf(w, "CPU reference time:   %v (%.0f paths/s)\n", r.reference.Elapsed, r.reference.PathsPerSecond())
	if r.parallel.Elapsed > 0 {
		fmt.Fprintf(w, "Speedup:              %.2fx\n", r.reference.Elapsed.Seconds()/r.parallel.Elapsed.Seconds())
	}

	pass := color.New(color.FgGreen, color.Bold)
	fail := color.New(color.FgRed, color.Bold)
	for _, v := range r.validations {
		if v.Passed() {
			pass.Fprintln(w, v.String())
		} else {
			fail.Fprintln(w, v.String())
		}
	}
	if r.passed() {
		pass.Fprintf(w, "PASS (%s precision)\n\n", r.precision)
	} else {
		fail.Fprintf(w, "FAIL (%s precision)\n\n", r.precision)
	}
}
