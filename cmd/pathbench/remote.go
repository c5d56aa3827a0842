package main

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/wyfcoding/pathpricing/internal/pricing/domain"
	grpcserver "github.com/wyfcoding/pathpricing/internal/pricing/interfaces/grpc"
)

// remotePricer 调用定价服务的 PriceOption
type remotePricer interface {
	PriceOption(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

var _ remotePricer = (*grpcserver.PathPricingClient)(nil)

// runRemote 让定价服务以相同参数为场景定价，服务端负责校验参考价
func runRemote(ctx context.Context, client remotePricer, precision domain.Precision, opts options) (benchResult, error) {
	c := scenario[float64]()
	req, err := structpb.NewStruct(map[string]any{
		"symbol":        "PATHBENCH",
		"option_type":   string(c.Type),
		"spot":          c.Spot,
		"strike":        c.Strike,
		"rate":          c.Rate,
		"sigma":         c.Sigma,
		"tenor":         c.Tenor,
		"dt":            c.Dt,
		"barrier":       c.Barrier,
		"precision":     string(precision),
		"num_sims":      opts.sims,
		"device":        opts.device,
		"workers":       opts.workers,
		"block_size":    opts.block,
		"seed":          float64(opts.seed),
		"tolerance":     opts.tolerance,
		"goldens":       map[string]any{domain.PayoffAsian.String(): goldenAsian},
		"run_reference": true,
	})
	if err != nil {
		return benchResult{}, err
	}

	out, err := client.PriceOption(ctx, req)
	if err != nil {
		return benchResult{}, err
	}
	data, err := out.MarshalJSON()
	if err != nil {
		return benchResult{}, err
	}
	var run domain.PricingRun
	if err := json.Unmarshal(data, &run); err != nil {
		return benchResult{}, fmt.Errorf("unexpected response: %w", err)
	}
	return resultFromRun(&run), nil
}

func resultFromRun(run *domain.PricingRun) benchResult {
	blocks := 0
	if run.BlockSize > 0 {
		blocks = (run.NumSims + run.BlockSize - 1) / run.BlockSize
	}
	res := benchResult{
		precision:  run.Precision,
		spot:       run.Spot.InexactFloat64(),
		strike:     run.Strike.InexactFloat64(),
		rate:       run.Rate.InexactFloat64(),
		sigma:      run.Sigma.InexactFloat64(),
		tenor:      run.Tenor.InexactFloat64(),
		optionType: run.OptionType,
		golden:     goldenAsian,
		vanillaCPU: run.PlainVanillaCPU.InexactFloat64(),
		parallel: &domain.Report{
			Strategy:  domain.StrategyParallel,
			NumSims:   run.NumSims,
			Steps:     run.Steps,
			Workers:   run.Workers,
			BlockSize: run.BlockSize,
			Blocks:    blocks,
			Elapsed:   run.ParallelElapsed,
		},
		reference: &domain.Report{
			Strategy: domain.StrategyReference,
			NumSims:  run.NumSims,
			Elapsed:  run.ReferenceElapsed,
		},
		validations: run.Validations,
	}
	res.values[domain.PayoffPlainVanilla] = run.PlainVanilla.InexactFloat64()
	res.values[domain.PayoffAsian] = run.Asian.InexactFloat64()
	res.values[domain.PayoffKnockout] = run.Knockout.InexactFloat64()
	res.values[domain.PayoffKnockin] = run.Knockin.InexactFloat64()
	res.values[domain.PayoffLookback] = run.Lookback.InexactFloat64()
	res.values[domain.PayoffALK] = run.ALK.InexactFloat64()
	return res
}
