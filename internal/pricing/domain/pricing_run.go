package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// RunStatus 定价运行状态
type RunStatus string

const (
	RunStatusSucceeded        RunStatus = "SUCCEEDED"
	RunStatusValidationFailed RunStatus = "VALIDATION_FAILED"
	RunStatusFailed           RunStatus = "FAILED"
)

// PricingRun 一次定价运行的持久化记录
// 价格以 decimal 保存，估计的标准误以 float64 保存。
type PricingRun struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	CreatedAt time.Time `json:"created_at"`

	// 合约参数
	OptionType OptionType      `json:"option_type"`
	Averaging  AveragingKind   `json:"averaging"`
	Precision  Precision       `json:"precision"`
	Spot       decimal.Decimal `json:"spot"`
	Strike     decimal.Decimal `json:"strike"`
	Rate       decimal.Decimal `json:"rate"`
	Sigma      decimal.Decimal `json:"sigma"`
	Tenor      decimal.Decimal `json:"tenor"`
	Dt         decimal.Decimal `json:"dt"`
	Barrier    decimal.Decimal `json:"barrier"`

	// 引擎参数
	NumSims       int           `json:"num_sims"`
	Steps         int           `json:"steps"`
	Workers       int           `json:"workers"`
	BlockSize     int           `json:"block_size"`
	Seed          uint64        `json:"seed"`
	Device        string        `json:"device"`
	NumericPolicy NumericPolicy `json:"numeric_policy"`

	// 结果
	Asian           decimal.Decimal    `json:"asian"`
	PlainVanilla    decimal.Decimal    `json:"plain_vanilla"`
	PlainVanillaCPU decimal.Decimal    `json:"plain_vanilla_cpu"`
	Knockout        decimal.Decimal    `json:"knockout"`
	Knockin         decimal.Decimal    `json:"knockin"`
	Lookback        decimal.Decimal    `json:"lookback"`
	ALK             decimal.Decimal    `json:"alk"`
	StdErrs         map[string]float64 `json:"std_errs,omitempty"`
	NonFinite       int64              `json:"non_finite"`
	BlackScholes    decimal.Decimal    `json:"black_scholes"`

	ParallelElapsed  time.Duration `json:"parallel_elapsed"`
	ReferenceElapsed time.Duration `json:"reference_elapsed"`

	Validations   []ValidationResult `json:"validations,omitempty"`
	Status        RunStatus          `json:"status"`
	FailureStage  Stage              `json:"failure_stage,omitempty"`
	FailureReason string             `json:"failure_reason,omitempty"`
}

// NewPricingRun 以合约参数创建一条运行记录
func NewPricingRun[R Real](id, symbol string, c *OptionContract[R], cfg EngineConfig) *PricingRun {
	averaging := c.Averaging
	if averaging == "" {
		averaging = AveragingArithmetic
	}
	return &PricingRun{
		ID:            id,
		Symbol:        symbol,
		CreatedAt:     time.Now(),
		OptionType:    c.Type,
		Averaging:     averaging,
		Precision:     PrecisionOf[R](),
		Spot:          decimal.NewFromFloat(float64(c.Spot)),
		Strike:        decimal.NewFromFloat(float64(c.Strike)),
		Rate:          decimal.NewFromFloat(float64(c.Rate)),
		Sigma:         decimal.NewFromFloat(float64(c.Sigma)),
		Tenor:         decimal.NewFromFloat(float64(c.Tenor)),
		Dt:            decimal.NewFromFloat(float64(c.Dt)),
		Barrier:       decimal.NewFromFloat(float64(c.Barrier)),
		NumSims:       cfg.NumSims,
		Workers:       cfg.Workers,
		BlockSize:     cfg.BlockSize,
		Seed:          cfg.Seed,
		NumericPolicy: cfg.NumericPolicy,
		Status:        RunStatusSucceeded,
	}
}

// ApplyParallel 记录并行策略的结果
func (r *PricingRun) ApplyParallel(rep *Report) {
	r.Steps = rep.Steps
	r.Device = rep.Device.Name
	r.ParallelElapsed = rep.Elapsed
	r.NonFinite = rep.NonFinite()
	if r.StdErrs == nil {
		r.StdErrs = make(map[string]float64, NumPayoffKinds)
	}
	for _, kind := range AllPayoffKinds {
		est := rep.Estimate(kind)
		r.setValue(kind, decimal.NewFromFloat(est.Price))
		r.StdErrs[kind.String()] = est.StdErr
	}
}

// ApplyReference 记录参考策略的结果
func (r *PricingRun) ApplyReference(rep *Report) {
	r.ReferenceElapsed = rep.Elapsed
	r.PlainVanillaCPU = decimal.NewFromFloat(rep.Estimate(PayoffPlainVanilla).Price)
}

// ApplyValidation 记录校验结果，任一失败即标记为 VALIDATION_FAILED
func (r *PricingRun) ApplyValidation(results []ValidationResult) {
	r.Validations = results
	if err := FirstFailure(results); err != nil {
		r.Status = RunStatusValidationFailed
		r.FailureStage = StageValidation
		r.FailureReason = err.Error()
	}
}

// Fail 记录失败原因及其阶段
func (r *PricingRun) Fail(err error) {
	r.Status = RunStatusFailed
	r.FailureStage = StageOf(err)
	r.FailureReason = err.Error()
	var numErr *NumericError
	if errors.As(err, &numErr) {
		r.NonFinite = numErr.NonFinite
	}
}

// Succeeded 运行成功且所有校验通过
func (r *PricingRun) Succeeded() bool { return r.Status == RunStatusSucceeded }

// Value 按收益类型读取结果
func (r *PricingRun) Value(kind PayoffKind) decimal.Decimal {
	switch kind {
	case PayoffPlainVanilla:
		return r.PlainVanilla
	case PayoffAsian:
		return r.Asian
	case PayoffKnockout:
		return r.Knockout
	case PayoffKnockin:
		return r.Knockin
	case PayoffLookback:
		return r.Lookback
	case PayoffALK:
		return r.ALK
	}
	return decimal.Zero
}

func (r *PricingRun) setValue(kind PayoffKind, v decimal.Decimal) {
	switch kind {
	case PayoffPlainVanilla:
		r.PlainVanilla = v
	case PayoffAsian:
		r.Asian = v
	case PayoffKnockout:
		r.Knockout = v
	case PayoffKnockin:
		r.Knockin = v
	case PayoffLookback:
		r.Lookback = v
	case PayoffALK:
		r.ALK = v
	}
}
