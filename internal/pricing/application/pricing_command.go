package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/pathpricing/internal/pricing/domain"
	"github.com/wyfcoding/pathpricing/pkg/config"
	"github.com/wyfcoding/pathpricing/pkg/logger"
	"github.com/wyfcoding/pathpricing/pkg/metrics"
)

// PricingCommandService 处理定价相关的命令操作
// 运行记录与领域事件在同一事务中写入，事件经 outbox 转发。
type PricingCommandService struct {
	repo      domain.PricingRunRepository
	cache     domain.PricingRunCache
	publisher domain.EventPublisher
	relay     domain.OutboxRelay
	ids       IDGenerator
	metrics   metrics.MetricsCollector
	defaults  config.EngineConfig
	devices   []domain.DeviceProperties
}

// NewPricingCommandService 创建新的 PricingCommandService 实例
// cache、publisher、relay 可以为 nil。
func NewPricingCommandService(
	repo domain.PricingRunRepository,
	cache domain.PricingRunCache,
	publisher domain.EventPublisher,
	relay domain.OutboxRelay,
	ids IDGenerator,
	collector metrics.MetricsCollector,
	defaults config.EngineConfig,
	devices []domain.DeviceProperties,
) *PricingCommandService {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &PricingCommandService{
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		relay:     relay,
		ids:       ids,
		metrics:   collector,
		defaults:  defaults,
		devices:   devices,
	}
}

// Devices 引擎可选的设备
func (c *PricingCommandService) Devices() []domain.DeviceProperties {
	return c.devices
}

// pricingPlan 由命令与默认值合成的一次运行参数
type pricingPlan struct {
	precision    domain.Precision
	engine       domain.EngineConfig
	goldens      map[domain.PayoffKind]float64
	tolerance    float64
	confidence   float64
	runReference bool
	analytic     bool
}

// pricingOutcome 一次运行的记录与各策略的报告
type pricingOutcome struct {
	run     *domain.PricingRun
	reports []*domain.Report
}

// PriceOption 对路径依赖期权定价
// 参数错误直接返回且不落库；引擎失败时运行记录以 FAILED 落库并同时返回错误；
// 参考值校验失败只记录为 VALIDATION_FAILED，不视为调用失败。
func (c *PricingCommandService) PriceOption(ctx context.Context, cmd PriceOptionCommand) (*domain.PricingRun, error) {
	plan, err := c.plan(cmd)
	if err != nil {
		return nil, err
	}

	id := c.ids.Next()
	ctx = logger.WithRunID(ctx, id)
	logger.Info(ctx, "Pricing path-dependent option",
		"symbol", cmd.Symbol,
		"precision", plan.precision,
		"num_sims", plan.engine.NumSims,
		"workers", plan.engine.Workers,
		"block_size", plan.engine.BlockSize,
	)

	var out pricingOutcome
	var runErr error
	start := time.Now()
	if plan.precision == domain.PrecisionSingle {
		out, runErr = price[float32](id, cmd, plan, c.devices)
	} else {
		out, runErr = price[float64](id, cmd, plan, c.devices)
	}
	c.recordMetrics(plan.precision, out, runErr, time.Since(start))

	if runErr != nil {
		logger.Error(ctx, "Pricing run failed", "stage", domain.StageOf(runErr), "error", runErr)
	} else if !out.run.Succeeded() {
		logger.Warn(ctx, "Pricing run outside tolerance of golden values", "reason", out.run.FailureReason)
	}

	if err := c.persist(ctx, out.run); err != nil {
		return nil, fmt.Errorf("failed to save pricing run %s: %w", id, err)
	}
	if runErr != nil {
		return out.run, runErr
	}

	if c.cache != nil {
		if err := c.cache.SetLatest(ctx, out.run); err != nil {
			logger.Warn(ctx, "Failed to cache pricing run", "error", err)
		}
	}
	logger.Info(ctx, "Pricing run completed",
		"status", out.run.Status,
		"asian", out.run.Asian.String(),
		"plain_vanilla", out.run.PlainVanilla.String(),
		"elapsed", out.run.ParallelElapsed,
	)
	return out.run, nil
}

// BatchPriceOptions 批量定价，逐个执行，单个失败不影响其余合约
func (c *PricingCommandService) BatchPriceOptions(ctx context.Context, cmd BatchPriceOptionsCommand) (*BatchPricingResult, error) {
	if len(cmd.Contracts) == 0 {
		return nil, fmt.Errorf("%w: batch has no contracts", domain.ErrInvalidContract)
	}
	if cmd.BatchID == "" {
		cmd.BatchID = c.ids.Next()
	}

	result := &BatchPricingResult{
		BatchID: cmd.BatchID,
		Runs:    make([]*domain.PricingRun, 0, len(cmd.Contracts)),
	}
	totalTime := 0.0
	for i, contract := range cmd.Contracts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		startTime := time.Now()
		run, err := c.PriceOption(ctx, contract)
		totalTime += time.Since(startTime).Seconds()

		if run != nil {
			result.Runs = append(result.Runs, run)
		}
		if err != nil {
			result.FailureCount++
			result.Errors = append(result.Errors, fmt.Sprintf("contract %d (%s): %v", i, contract.Symbol, err))
			continue
		}
		if run.Succeeded() {
			result.SuccessCount++
		} else {
			result.FailureCount++
		}
	}
	result.AverageTime = totalTime / float64(len(cmd.Contracts))

	if c.publisher != nil {
		err := c.publisher.Publish(ctx, domain.BatchPricingCompletedEventType, cmd.BatchID, domain.BatchPricingCompletedEvent{
			BatchID:        cmd.BatchID,
			Symbols:        extractSymbols(cmd.Contracts),
			TotalContracts: len(cmd.Contracts),
			SuccessCount:   result.SuccessCount,
			FailureCount:   result.FailureCount,
			AverageTime:    result.AverageTime,
			CompletedAt:    time.Now().Unix(),
			OccurredOn:     time.Now(),
		})
		if err != nil {
			logger.Warn(ctx, "Failed to publish batch completion", "batch_id", cmd.BatchID, "error", err)
		}
	}
	return result, nil
}

// RelayOutbox 将待发送的 outbox 消息转发到 Kafka
func (c *PricingCommandService) RelayOutbox(ctx context.Context, batchSize int) (int, error) {
	if c.relay == nil {
		return 0, nil
	}
	n, err := c.relay.Relay(ctx, batchSize)
	if n > 0 {
		c.metrics.RecordOutboxRelayed(n)
	}
	return n, err
}

// persist 在同一事务内保存运行记录并写入对应事件
func (c *PricingCommandService) persist(ctx context.Context, run *domain.PricingRun) error {
	return c.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := c.repo.Save(txCtx, run); err != nil {
			return err
		}
		if c.publisher == nil {
			return nil
		}
		if run.Status == domain.RunStatusFailed {
			return c.publisher.Publish(txCtx, domain.PricingFailedEventType, run.Symbol, domain.PricingFailedEvent{
				RunID:      run.ID,
				Symbol:     run.Symbol,
				OptionType: run.OptionType,
				Stage:      run.FailureStage,
				Error:      run.FailureReason,
				OccurredAt: run.CreatedAt.Unix(),
				OccurredOn: time.Now(),
			})
		}
		return c.publisher.Publish(txCtx, domain.PathOptionPricedEventType, run.Symbol, domain.NewPathOptionPricedEvent(run))
	})
}

// plan 合并命令与默认值，并做请求级校验
func (c *PricingCommandService) plan(cmd PriceOptionCommand) (pricingPlan, error) {
	d := c.defaults
	if cmd.Symbol == "" {
		return pricingPlan{}, fmt.Errorf("%w: symbol is required", domain.ErrInvalidContract)
	}

	precisionName := cmd.Precision
	if precisionName == "" {
		precisionName = d.Precision
	}
	precision, err := domain.ParsePrecision(precisionName)
	if err != nil {
		return pricingPlan{}, err
	}

	cfg := domain.EngineConfig{
		NumSims:       firstPositive(cmd.NumSims, d.NumSims),
		Device:        d.Device,
		Workers:       firstPositive(cmd.Workers, d.Workers),
		BlockSize:     firstPositive(cmd.BlockSize, d.BlockSize),
		Seed:          d.Seed,
		NumericPolicy: domain.NumericPolicy(firstNonEmpty(cmd.NumericPolicy, d.NumericPolicy)),
	}
	if cmd.Device != nil {
		cfg.Device = *cmd.Device
	}
	if cmd.Seed != nil {
		cfg.Seed = *cmd.Seed
	}
	if d.MaxSims > 0 && cfg.NumSims > d.MaxSims {
		return pricingPlan{}, fmt.Errorf("%w: %d simulations exceed the limit of %d", domain.ErrInvalidConfig, cfg.NumSims, d.MaxSims)
	}
	if cfg.Workers <= 0 {
		// 0 表示使用设备默认宽度，设备不存在时交由引擎报告
		if dev, err := domain.SelectDevice(c.devices, cfg.Device); err == nil {
			cfg.Workers = dev.DefaultWorkers()
		} else {
			cfg.Workers = 1
		}
	}

	goldens := make(map[domain.PayoffKind]float64, len(cmd.Goldens))
	for name, v := range cmd.Goldens {
		kind, err := domain.ParsePayoffKind(name)
		if err != nil {
			return pricingPlan{}, fmt.Errorf("%w: golden %v", domain.ErrInvalidConfig, err)
		}
		goldens[kind] = v
	}

	runReference := d.RunReference
	if cmd.RunReference != nil {
		runReference = *cmd.RunReference
	}

	tolerance := cmd.Tolerance
	if tolerance <= 0 {
		tolerance = d.Tolerance
	}
	confidence := cmd.Confidence
	if confidence <= 0 {
		confidence = d.Confidence
	}
	if confidence >= 1 {
		return pricingPlan{}, fmt.Errorf("%w: confidence must be in (0, 1), got %v", domain.ErrInvalidConfig, confidence)
	}

	return pricingPlan{
		precision:    precision,
		engine:       cfg,
		goldens:      goldens,
		tolerance:    tolerance,
		confidence:   confidence,
		runReference: runReference,
		analytic:     cmd.ValidateAnalytic,
	}, nil
}

// price 以精度 R 运行并行策略（以及可选的参考策略）并校验参考值
func price[R domain.Real](id string, cmd PriceOptionCommand, plan pricingPlan, devices []domain.DeviceProperties) (pricingOutcome, error) {
	contract := &domain.OptionContract[R]{
		Spot:      R(cmd.Spot),
		Strike:    R(cmd.Strike),
		Rate:      R(cmd.Rate),
		Sigma:     R(cmd.Sigma),
		Tenor:     R(cmd.Tenor),
		Dt:        R(cmd.Dt),
		Barrier:   R(cmd.Barrier),
		Type:      domain.OptionType(cmd.OptionType),
		Averaging: domain.AveragingKind(cmd.Averaging),
	}
	out := pricingOutcome{run: domain.NewPricingRun(id, cmd.Symbol, contract, plan.engine)}

	engine, err := domain.NewEngine[R](plan.engine, devices)
	if err != nil {
		out.run.Fail(err)
		return out, err
	}
	out.run.Device = engine.Device().Name
	out.run.NumericPolicy = engine.Config().NumericPolicy

	rep, err := engine.PriceParallel(contract)
	if err != nil {
		out.run.Fail(err)
		return out, err
	}
	out.reports = append(out.reports, rep)
	out.run.ApplyParallel(rep)
	out.run.BlackScholes = decimal.NewFromFloat(domain.BlackScholesPrice(contract))

	if plan.runReference {
		ref, err := engine.PriceReference(contract)
		if err != nil {
			out.run.Fail(err)
			return out, err
		}
		out.reports = append(out.reports, ref)
		out.run.ApplyReference(ref)
	}

	goldens := plan.goldens
	if plan.analytic {
		goldens = withAnalyticGoldens(contract, goldens)
	}
	out.run.ApplyValidation(domain.ValidateRun(rep, goldens, plan.tolerance, plan.confidence))
	return out, nil
}

// withAnalyticGoldens 补充闭式解参考值，调用方显式给出的参考值优先
func withAnalyticGoldens[R domain.Real](c *domain.OptionContract[R], goldens map[domain.PayoffKind]float64) map[domain.PayoffKind]float64 {
	merged := make(map[domain.PayoffKind]float64, len(goldens)+2)
	merged[domain.PayoffPlainVanilla] = domain.BlackScholesPrice(c)
	if c.Averaging == domain.AveragingGeometric {
		merged[domain.PayoffAsian] = domain.GeometricAsianPrice(c)
	}
	for k, v := range goldens {
		merged[k] = v
	}
	return merged
}

func (c *PricingCommandService) recordMetrics(precision domain.Precision, out pricingOutcome, runErr error, elapsed time.Duration) {
	if runErr != nil {
		outcome := string(domain.StageOf(runErr))
		if outcome == "" {
			outcome = "ERROR"
		}
		var numErr *domain.NumericError
		var nonFinite int64
		if errors.As(runErr, &numErr) {
			nonFinite = numErr.NonFinite
		}
		c.metrics.RecordRun(string(domain.StrategyParallel), string(precision), outcome, elapsed, 0, nonFinite)
		return
	}
	for _, rep := range out.reports {
		c.metrics.RecordRun(string(rep.Strategy), string(precision), "OK", rep.Elapsed, int64(rep.NumSims), rep.NonFinite())
	}
	for _, v := range out.run.Validations {
		if !v.Passed() {
			c.metrics.RecordValidationFailure(v.Kind.String())
		}
	}
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// 辅助函数：提取合约符号
func extractSymbols(contracts []PriceOptionCommand) []string {
	symbols := make([]string, 0, len(contracts))
	seen := make(map[string]bool)

	for _, contract := range contracts {
		if !seen[contract.Symbol] {
			symbols = append(symbols, contract.Symbol)
			seen[contract.Symbol] = true
		}
	}

	return symbols
}
