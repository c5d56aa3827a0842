package application

import (
	"github.com/wyfcoding/pathpricing/internal/pricing/domain"
)

// PriceOptionCommand 路径依赖期权定价命令
// 引擎参数为零值时使用服务配置中的默认值。
type PriceOptionCommand struct {
	Symbol     string
	OptionType string
	Averaging  string
	Spot       float64
	Strike     float64
	Rate       float64
	Sigma      float64
	Tenor      float64
	Dt         float64
	Barrier    float64

	// single 或 double
	Precision     string
	NumSims       int
	Device        *int
	Workers       int
	BlockSize     int
	Seed          *uint64
	NumericPolicy string

	// 以收益类型名称为键的参考值，例如 {"ASIAN": 5.162534}
	Goldens    map[string]float64
	Tolerance  float64
	Confidence float64
	// 以 Black-Scholes（以及几何平均时的亚式闭式解）作为参考值
	ValidateAnalytic bool
	// 为 nil 时使用配置 engine.run_reference
	RunReference *bool
}

// BatchPriceOptionsCommand 批量定价命令
type BatchPriceOptionsCommand struct {
	Contracts []PriceOptionCommand
	BatchID   string
}

// BatchPricingResult 批量定价结果
type BatchPricingResult struct {
	BatchID      string               `json:"batch_id"`
	Runs         []*domain.PricingRun `json:"runs"`
	Errors       []string             `json:"errors,omitempty"`
	SuccessCount int                  `json:"success_count"`
	FailureCount int                  `json:"failure_count"`
	AverageTime  float64              `json:"average_time"`
}

// IDGenerator 运行 ID 生成器
type IDGenerator interface {
	Next() string
}
