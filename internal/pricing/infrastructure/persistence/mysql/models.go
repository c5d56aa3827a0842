package mysql

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/pathpricing/internal/pricing/domain"
)

// PricingRunModel 定价运行表映射
// 价格以 decimal(32,18) 保存，标准误与校验结果以 JSON 文本保存。
type PricingRunModel struct {
	ID        string    `gorm:"column:id;type:varchar(64);primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at;index:idx_symbol_created,priority:2"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
	Symbol    string    `gorm:"column:symbol;type:varchar(32);not null;index:idx_symbol_created,priority:1"`

	OptionType string `gorm:"column:option_type;type:varchar(8);not null"`
	Averaging  string `gorm:"column:averaging;type:varchar(16)"`
	Precision  string `gorm:"column:precision;type:varchar(8)"`
	Spot       string `gorm:"column:spot;type:decimal(32,18);not null"`
	Strike     string `gorm:"column:strike;type:decimal(32,18);not null"`
	Rate       string `gorm:"column:rate;type:decimal(32,18)"`
	Sigma      string `gorm:"column:sigma;type:decimal(32,18)"`
	Tenor      string `gorm:"column:tenor;type:decimal(32,18)"`
	Dt         string `gorm:"column:dt;type:decimal(32,18)"`
	Barrier    string `gorm:"column:barrier;type:decimal(32,18)"`

	NumSims       int    `gorm:"column:num_sims"`
	Steps         int    `gorm:"column:steps"`
	Workers       int    `gorm:"column:workers"`
	BlockSize     int    `gorm:"column:block_size"`
	Seed          uint64 `gorm:"column:seed"`
	Device        string `gorm:"column:device;type:varchar(128)"`
	NumericPolicy string `gorm:"column:numeric_policy;type:varchar(16)"`

	Asian           string `gorm:"column:asian;type:decimal(32,18)"`
	PlainVanilla    string `gorm:"column:plain_vanilla;type:decimal(32,18)"`
	PlainVanillaCPU string `gorm:"column:plain_vanilla_cpu;type:decimal(32,18)"`
	Knockout        string `gorm:"column:knockout;type:decimal(32,18)"`
	Knockin         string `gorm:"column:knockin;type:decimal(32,18)"`
	Lookback        string `gorm:"column:lookback;type:decimal(32,18)"`
	ALK             string `gorm:"column:alk;type:decimal(32,18)"`
	BlackScholes    string `gorm:"column:black_scholes;type:decimal(32,18)"`
	StdErrs         string `gorm:"column:std_errs;type:text"`
	NonFinite       int64  `gorm:"column:non_finite"`

	ParallelElapsedMs  int64 `gorm:"column:parallel_elapsed_ms"`
	ReferenceElapsedMs int64 `gorm:"column:reference_elapsed_ms"`

	Validations   string `gorm:"column:validations;type:text"`
	Status        string `gorm:"column:status;type:varchar(24);index"`
	FailureStage  string `gorm:"column:failure_stage;type:varchar(16)"`
	FailureReason string `gorm:"column:failure_reason;type:text"`
}

func (PricingRunModel) TableName() string { return "pricing_runs" }

// mapping helpers

func toPricingRunModel(run *domain.PricingRun) (*PricingRunModel, error) {
	if run == nil {
		return nil, nil
	}
	stdErrs, err := json.Marshal(run.StdErrs)
	if err != nil {
		return nil, fmt.Errorf("encode std errs: %w", err)
	}
	validations, err := json.Marshal(run.Validations)
	if err != nil {
		return nil, fmt.Errorf("encode validations: %w", err)
	}
	return &PricingRunModel{
		ID:                 run.ID,
		CreatedAt:          run.CreatedAt,
		Symbol:             run.Symbol,
		OptionType:         string(run.OptionType),
		Averaging:          string(run.Averaging),
		Precision:          string(run.Precision),
		Spot:               run.Spot.String(),
		Strike:             run.Strike.String(),
		Rate:               run.Rate.String(),
		Sigma:              run.Sigma.String(),
		Tenor:              run.Tenor.String(),
		Dt:                 run.Dt.String(),
		Barrier:            run.Barrier.String(),
		NumSims:            run.NumSims,
		Steps:              run.Steps,
		Workers:            run.Workers,
		BlockSize:          run.BlockSize,
		Seed:               run.Seed,
		Device:             run.Device,
		NumericPolicy:      string(run.NumericPolicy),
		Asian:              run.Asian.String(),
		PlainVanilla:       run.PlainVanilla.String(),
		PlainVanillaCPU:    run.PlainVanillaCPU.String(),
		Knockout:           run.Knockout.String(),
		Knockin:            run.Knockin.String(),
		Lookback:           run.Lookback.String(),
		ALK:                run.ALK.String(),
		BlackScholes:       run.BlackScholes.String(),
		StdErrs:            string(stdErrs),
		NonFinite:          run.NonFinite,
		ParallelElapsedMs:  run.ParallelElapsed.Milliseconds(),
		ReferenceElapsedMs: run.ReferenceElapsed.Milliseconds(),
		Validations:        string(validations),
		Status:             string(run.Status),
		FailureStage:       string(run.FailureStage),
		FailureReason:      run.FailureReason,
	}, nil
}

func toPricingRun(m *PricingRunModel) (*domain.PricingRun, error) {
	if m == nil {
		return nil, nil
	}
	run := &domain.PricingRun{
		ID:               m.ID,
		Symbol:           m.Symbol,
		CreatedAt:        m.CreatedAt,
		OptionType:       domain.OptionType(m.OptionType),
		Averaging:        domain.AveragingKind(m.Averaging),
		Precision:        domain.Precision(m.Precision),
		Spot:             decimalOrZero(m.Spot),
		Strike:           decimalOrZero(m.Strike),
		Rate:             decimalOrZero(m.Rate),
		Sigma:            decimalOrZero(m.Sigma),
		Tenor:            decimalOrZero(m.Tenor),
		Dt:               decimalOrZero(m.Dt),
		Barrier:          decimalOrZero(m.Barrier),
		NumSims:          m.NumSims,
		Steps:            m.Steps,
		Workers:          m.Workers,
		BlockSize:        m.BlockSize,
		Seed:             m.Seed,
		Device:           m.Device,
		NumericPolicy:    domain.NumericPolicy(m.NumericPolicy),
		Asian:            decimalOrZero(m.Asian),
		PlainVanilla:     decimalOrZero(m.PlainVanilla),
		PlainVanillaCPU:  decimalOrZero(m.PlainVanillaCPU),
		Knockout:         decimalOrZero(m.Knockout),
		Knockin:          decimalOrZero(m.Knockin),
		Lookback:         decimalOrZero(m.Lookback),
		ALK:              decimalOrZero(m.ALK),
		BlackScholes:     decimalOrZero(m.BlackScholes),
		NonFinite:        m.NonFinite,
		ParallelElapsed:  time.Duration(m.ParallelElapsedMs) * time.Millisecond,
		ReferenceElapsed: time.Duration(m.ReferenceElapsedMs) * time.Millisecond,
		Status:           domain.RunStatus(m.Status),
		FailureStage:     domain.Stage(m.FailureStage),
		FailureReason:    m.FailureReason,
	}
	if m.StdErrs != "" && m.StdErrs != "null" {
		if err := json.Unmarshal([]byte(m.StdErrs), &run.StdErrs); err != nil {
			return nil, fmt.Errorf("decode std errs of run %s: %w", m.ID, err)
		}
	}
	if m.Validations != "" && m.Validations != "null" {
		if err := json.Unmarshal([]byte(m.Validations), &run.Validations); err != nil {
			return nil, fmt.Errorf("decode validations of run %s: %w", m.ID, err)
		}
	}
	return run, nil
}

func decimalOrZero(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
