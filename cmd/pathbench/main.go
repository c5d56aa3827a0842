// pathbench 以固定场景运行路径依赖期权定价引擎，打印结果表并与参考值比较
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/wyfcoding/pathpricing/internal/pricing/domain"
	grpcserver "github.com/wyfcoding/pathpricing/internal/pricing/interfaces/grpc"
	"github.com/wyfcoding/pathpricing/pkg/grpcclient"
)

// 40/35 看涨、障碍 45 场景下 Asian 期权的参考价
const goldenAsian = 5.162534

type options struct {
	sims      int
	device    int
	block     int
	workers   int
	seed      uint64
	precision string
	tolerance float64
	plotPath  string
	devices   bool
	remote    string
	timeout   time.Duration
}

func main() {
	var opts options
	flag.IntVar(&opts.sims, "sims", 1000000, "number of simulated paths")
	flag.IntVar(&opts.device, "device", 0, "device index")
	flag.IntVar(&opts.block, "block", 8192, "paths per block")
	flag.IntVar(&opts.workers, "workers", 0, "parallel workers, 0 uses the device default")
	flag.Uint64Var(&opts.seed, "seed", 1, "base seed of the random streams")
	flag.StringVar(&opts.precision, "precision", "both", "single, double or both")
	flag.Float64Var(&opts.tolerance, "tolerance", domain.DefaultTolerance, "absolute tolerance against the golden value")
	flag.StringVar(&opts.plotPath, "plot", "", "write a convergence chart to this PNG file")
	flag.BoolVar(&opts.devices, "devices", false, "list device properties and exit")
	flag.StringVar(&opts.remote, "remote", "", "price through the pricing service at this gRPC address instead of locally")
	flag.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "timeout of each remote pricing request")
	flag.Parse()

	passed, err := run(os.Stdout, opts, domain.HostDevices())
	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "pathbench: %v\n", err)
		os.Exit(2)
	}
	if !passed {
		os.Exit(1)
	}
}

// run 返回是否全部通过校验；setup 或数值错误以 error 返回
func run(w io.Writer, opts options, devices []domain.DeviceProperties) (bool, error) {
	if opts.devices {
		for _, d := range devices {
			fmt.Fprintln(w, d.String())
		}
		return true, nil
	}

	precisions, err := parsePrecisions(opts.precision)
	if err != nil {
		return false, err
	}
	if opts.remote != "" {
		return runAgainst(w, opts, precisions)
	}
	device, err := domain.SelectDevice(devices, opts.device)
	if err != nil {
		return false, err
	}
	if opts.workers == 0 {
		opts.workers = device.DefaultWorkers()
	}
	cfg := domain.EngineConfig{
		NumSims:       opts.sims,
		Device:        opts.device,
		Workers:       opts.workers,
		BlockSize:     opts.block,
		Seed:          opts.seed,
		NumericPolicy: domain.NumericPolicyFail,
	}

	allPassed := true
	var results []benchResult
	for _, p := range precisions {
		var res benchResult
		switch p {
		case domain.PrecisionSingle:
			res, err = runScenario[float32](cfg, devices, opts.tolerance)
		default:
			res, err = runScenario[float64](cfg, devices, opts.tolerance)
		}
		if err != nil {
			return false, fmt.Errorf("%s precision: %w", p, err)
		}
		printReport(w, res)
		allPassed = allPassed && res.passed()
		results = append(results, res)
	}

	if opts.plotPath != "" {
		if err := plotConvergence(opts.plotPath, cfg, devices, results); err != nil {
			return false, err
		}
		fmt.Fprintf(w, "Convergence chart written to %s\n", opts.plotPath)
	}
	return allPassed, nil
}

// runAgainst 通过 gRPC 在远端服务上运行场景
func runAgainst(w io.Writer, opts options, precisions []domain.Precision) (bool, error) {
	conn, err := grpcclient.NewClient(grpcclient.ClientConfig{
		Target:         opts.remote,
		ConnTimeout:    5,
		RequestTimeout: int(opts.timeout.Seconds()),
		MaxRetries:     2,
		RetryDelay:     500,
	})
	if err != nil {
		return false, err
	}
	defer conn.Close()
	client := grpcserver.NewPathPricingClient(conn)

	allPassed := true
	for _, p := range precisions {
		res, err := runRemote(context.Background(), client, p, opts)
		if err != nil {
			return false, fmt.Errorf("%s precision on %s: %w", p, opts.remote, err)
		}
		printReport(w, res)
		allPassed = allPassed && res.passed()
	}
	return allPassed, nil
}

func parsePrecisions(s string) ([]domain.Precision, error) {
	if s == "both" {
		return []domain.Precision{domain.PrecisionSingle, domain.PrecisionDouble}, nil
	}
	p, err := domain.ParsePrecision(s)
	if err != nil {
		return nil, err
	}
	return []domain.Precision{p}, nil
}
