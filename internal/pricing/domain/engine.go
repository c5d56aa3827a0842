package domain

import (
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Strategy 定价策略
type Strategy string

const (
	StrategyParallel  Strategy = "PARALLEL"  // 分块并行，写入全部加速器结果槽位
	StrategyReference Strategy = "REFERENCE" // 单 goroutine 顺序计算，写入 CPU 参考槽位
)

// NumericPolicy 非有限路径收益的处理方式
type NumericPolicy string

const (
	NumericPolicyFail    NumericPolicy = "FAIL"
	NumericPolicyExclude NumericPolicy = "EXCLUDE"
)

// Valid 空值按 FAIL 处理
func (p NumericPolicy) Valid() bool {
	return p == "" || p == NumericPolicyFail || p == NumericPolicyExclude
}

// EngineConfig 引擎参数，构造后不可变
type EngineConfig struct {
	NumSims       int
	Device        int
	Workers       int
	BlockSize     int
	Seed          uint64
	NumericPolicy NumericPolicy
}

// Report 一次定价运行的结果
type Report struct {
	Strategy  Strategy
	Precision Precision
	Device    DeviceProperties
	NumSims   int
	Steps     int
	Workers   int
	BlockSize int
	Blocks    int
	Seed      uint64
	Estimates [NumPayoffKinds]Estimate
	Elapsed   time.Duration
}

// Estimate 取某一收益类型的估计
func (r *Report) Estimate(kind PayoffKind) Estimate {
	return r.Estimates[kind]
}

// NonFinite 非有限路径数（各类型共享同一条路径，取最大值）
func (r *Report) NonFinite() int64 {
	var n int64
	for _, e := range r.Estimates {
		if e.NonFinite > n {
			n = e.NonFinite
		}
	}
	return n
}

// PathsPerSecond 吞吐量
func (r *Report) PathsPerSecond() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.NumSims) / r.Elapsed.Seconds()
}

// Engine 蒙特卡洛定价引擎
type Engine[R Real] struct {
	cfg     EngineConfig
	device  DeviceProperties
	streams StreamFactory
}

// NewEngine 校验配置与设备能力；所有 setup 错误都在模拟任何路径之前返回
func NewEngine[R Real](cfg EngineConfig, devices []DeviceProperties) (*Engine[R], error) {
	switch {
	case cfg.NumSims <= 0:
		return nil, fmt.Errorf("%w: num sims must be positive, got %d", ErrInvalidConfig, cfg.NumSims)
	case cfg.Workers <= 0:
		return nil, fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfig, cfg.Workers)
	case cfg.BlockSize <= 0:
		return nil, fmt.Errorf("%w: block size must be positive, got %d", ErrInvalidConfig, cfg.BlockSize)
	case !cfg.NumericPolicy.Valid():
		return nil, fmt.Errorf("%w: unknown numeric policy %q", ErrInvalidConfig, cfg.NumericPolicy)
	}
	device, err := SelectDevice(devices, cfg.Device)
	if err != nil {
		return nil, err
	}
	if cfg.Workers > device.MaxWorkers {
		return nil, fmt.Errorf("%w: %d workers requested, %s supports %d", ErrParallelism, cfg.Workers, device.Name, device.MaxWorkers)
	}
	if cfg.BlockSize > device.MaxBlockSize {
		return nil, fmt.Errorf("%w: block size %d exceeds %d on %s", ErrParallelism, cfg.BlockSize, device.MaxBlockSize, device.Name)
	}
	if cfg.NumericPolicy == "" {
		cfg.NumericPolicy = NumericPolicyFail
	}
	return &Engine[R]{
		cfg:     cfg,
		device:  device,
		streams: NewStreamFactory(cfg.Seed),
	}, nil
}

// Config 引擎配置
func (e *Engine[R]) Config() EngineConfig { return e.cfg }

// Device 选中的设备
func (e *Engine[R]) Device() DeviceProperties { return e.device }

// PriceParallel 分块并行定价
// 路径按 BlockSize 切分，每块独占一个部分和槽位，Wait 返回后按固定的两两归并树合并。
// 成功后写入 Asian、PlainVanilla、Knockout、Knockin、Lookback、ALK 槽位。
func (e *Engine[R]) PriceParallel(c *OptionContract[R]) (*Report, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	gbm := NewGBM(c)
	n, bs := e.cfg.NumSims, e.cfg.BlockSize
	blocks := (n + bs - 1) / bs
	parts := make([]PayoffAccumulators, blocks)

	var g errgroup.Group
	g.SetLimit(e.cfg.Workers)
	for b := 0; b < blocks; b++ {
		g.Go(func() error {
			first := b * bs
			e.simulate(c, gbm, first, min(first+bs, n), &parts[b])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// 归并会原地改写 parts，之后不再读取
	total := ReducePairwise(parts)
	report := e.report(StrategyParallel, c, gbm, blocks, &total, start)
	if err := e.checkNumeric(StrategyParallel, &total); err != nil {
		return nil, err
	}
	for _, kind := range AllPayoffKinds {
		c.setResult(kind, R(report.Estimates[kind].Price))
	}
	return report, nil
}

// PriceReference 单 goroutine 顺序定价，使用与并行策略相同的子流规则
// 报告包含全部收益类型，合约上只写 ValuePlainVanillaCPU。
func (e *Engine[R]) PriceReference(c *OptionContract[R]) (*Report, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	gbm := NewGBM(c)

	var total PayoffAccumulators
	e.simulate(c, gbm, 0, e.cfg.NumSims, &total)

	report := e.report(StrategyReference, c, gbm, 1, &total, start)
	if err := e.checkNumeric(StrategyReference, &total); err != nil {
		return nil, err
	}
	c.ValuePlainVanillaCPU = R(report.Estimates[PayoffPlainVanilla].Price)
	return report, nil
}

// simulate 顺序模拟 [first, last) 区间内的路径
func (e *Engine[R]) simulate(c *OptionContract[R], gbm GBM[R], first, last int, acc *PayoffAccumulators) {
	stream := e.streams.NewStream()
	var (
		stats   PathStats[R]
		payoffs [NumPayoffKinds]float64
	)
	for i := first; i < last; i++ {
		gbm.Simulate(c, stream, uint64(i), &stats)
		stats.EvaluateAll(c, &payoffs)
		acc.Add(&payoffs)
	}
}

func (e *Engine[R]) checkNumeric(strategy Strategy, total *PayoffAccumulators) error {
	for _, kind := range AllPayoffKinds {
		acc := &total[kind]
		paths := acc.Count() + acc.NonFinite()
		if acc.NonFinite() > 0 && e.cfg.NumericPolicy == NumericPolicyFail {
			return &NumericError{Strategy: strategy, Kind: kind, NonFinite: acc.NonFinite(), Paths: paths}
		}
		if acc.Count() == 0 {
			return &NumericError{Strategy: strategy, Kind: kind, NonFinite: acc.NonFinite(), Paths: paths}
		}
	}
	return nil
}

func (e *Engine[R]) report(strategy Strategy, c *OptionContract[R], gbm GBM[R], blocks int, total *PayoffAccumulators, start time.Time) *Report {
	report := &Report{
		Strategy:  strategy,
		Precision: PrecisionOf[R](),
		Device:    e.device,
		NumSims:   e.cfg.NumSims,
		Steps:     gbm.Steps(),
		Workers:   e.cfg.Workers,
		BlockSize: e.cfg.BlockSize,
		Blocks:    blocks,
		Seed:      e.cfg.Seed,
	}
	if strategy == StrategyReference {
		report.Workers = 1
		report.BlockSize = e.cfg.NumSims
	}
	discount := c.DiscountFactor()
	for _, kind := range AllPayoffKinds {
		report.Estimates[kind] = total[kind].Estimate(kind, discount)
	}
	report.Elapsed = time.Since(start)
	return report
}
