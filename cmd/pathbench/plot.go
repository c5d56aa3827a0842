package main

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/wyfcoding/pathpricing/internal/pricing/domain"
)

// 收敛图的路径数档位数，从 sims/2^(n-1) 到 sims
const convergenceLevels = 8

// convergencePoints Asian 估计值及其标准误误差线
type convergencePoints struct {
	plotter.XYs
	plotter.YErrors
}

// plotConvergence 画出各精度下 Asian 估计值随路径数的收敛，并标出参考价
func plotConvergence(path string, cfg domain.EngineConfig, devices []domain.DeviceProperties, results []benchResult) error {
	p := plot.New()
	p.Title.Text = "Asian option convergence"
	p.X.Label.Text = "simulated paths"
	p.Y.Label.Text = "price"
	p.X.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Add(plotter.NewGrid())

	minSims := cfg.NumSims
	for i, res := range results {
		pts, err := convergence(res.precision, cfg, devices)
		if err != nil {
			return err
		}
		if len(pts.XYs) > 0 && int(pts.XYs[0].X) < minSims {
			minSims = int(pts.XYs[0].X)
		}
		line, scatter, err := plotter.NewLinePoints(pts.XYs)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(i)
		scatter.Color = plotutil.Color(i)
		bars, err := plotter.NewYErrorBars(pts)
		if err != nil {
			return err
		}
		bars.Color = plotutil.Color(i)
		p.Add(line, scatter, bars)
		p.Legend.Add(string(res.precision), line, scatter)
	}

	golden := plotter.NewFunction(func(float64) float64 { return goldenAsian })
	golden.Color = plotutil.Color(len(results))
	golden.Dashes = plotutil.Dashes(1)
	p.Add(golden)
	p.Legend.Add(fmt.Sprintf("golden %.6f", goldenAsian), golden)
	p.X.Min = float64(minSims)
	p.X.Max = float64(cfg.NumSims)

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save chart: %w", err)
	}
	return nil
}

func convergence(precision domain.Precision, cfg domain.EngineConfig, devices []domain.DeviceProperties) (convergencePoints, error) {
	if precision == domain.PrecisionSingle {
		return convergenceFor[float32](cfg, devices)
	}
	return convergenceFor[float64](cfg, devices)
}

func convergenceFor[R domain.Real](cfg domain.EngineConfig, devices []domain.DeviceProperties) (convergencePoints, error) {
	var pts convergencePoints
	for level := convergenceLevels - 1; level >= 0; level-- {
		n := cfg.NumSims >> level
		if n < 1 {
			continue
		}
		c := cfg
		c.NumSims = n
		engine, err := domain.NewEngine[R](c, devices)
		if err != nil {
			return pts, err
		}
		rep, err := engine.PriceParallel(scenario[R]())
		if err != nil {
			return pts, err
		}
		est := rep.Estimate(domain.PayoffAsian)
		pts.XYs = append(pts.XYs, plotter.XY{X: float64(n), Y: est.Price})
		pts.YErrors = append(pts.YErrors, struct{ Low, High float64 }{est.StdErr, est.StdErr})
	}
	return pts, nil
}
