package domain

import "time"

const (
	PathOptionPricedEventType      = "PathOptionPriced"
	PricingFailedEventType         = "PricingFailed"
	BatchPricingCompletedEventType = "BatchPricingCompleted"
)

// PathOptionPricedEvent 路径依赖期权定价完成事件
type PathOptionPricedEvent struct {
	RunID           string     `json:"run_id"`
	Symbol          string     `json:"symbol"`
	OptionType      OptionType `json:"option_type"`
	Precision       Precision  `json:"precision"`
	NumSims         int        `json:"num_sims"`
	Asian           float64    `json:"asian"`
	PlainVanilla    float64    `json:"plain_vanilla"`
	PlainVanillaCPU float64    `json:"plain_vanilla_cpu"`
	Knockout        float64    `json:"knockout"`
	Knockin         float64    `json:"knockin"`
	Lookback        float64    `json:"lookback"`
	ALK             float64    `json:"alk"`
	Status          RunStatus  `json:"status"`
	CalculatedAt    int64      `json:"calculated_at"`
	OccurredOn      time.Time  `json:"occurred_on"`
}

// NewPathOptionPricedEvent 由运行记录生成事件
func NewPathOptionPricedEvent(run *PricingRun) PathOptionPricedEvent {
	return PathOptionPricedEvent{
		RunID:           run.ID,
		Symbol:          run.Symbol,
		OptionType:      run.OptionType,
		Precision:       run.Precision,
		NumSims:         run.NumSims,
		Asian:           run.Asian.InexactFloat64(),
		PlainVanilla:    run.PlainVanilla.InexactFloat64(),
		PlainVanillaCPU: run.PlainVanillaCPU.InexactFloat64(),
		Knockout:        run.Knockout.InexactFloat64(),
		Knockin:         run.Knockin.InexactFloat64(),
		Lookback:        run.Lookback.InexactFloat64(),
		ALK:             run.ALK.InexactFloat64(),
		Status:          run.Status,
		CalculatedAt:    run.CreatedAt.Unix(),
		OccurredOn:      time.Now(),
	}
}

// PricingFailedEvent 定价失败事件
type PricingFailedEvent struct {
	RunID      string     `json:"run_id"`
	Symbol     string     `json:"symbol"`
	OptionType OptionType `json:"option_type"`
	Stage      Stage      `json:"stage"`
	Error      string     `json:"error"`
	OccurredAt int64      `json:"occurred_at"`
	OccurredOn time.Time  `json:"occurred_on"`
}

// BatchPricingCompletedEvent 批量定价完成事件
type BatchPricingCompletedEvent struct {
	BatchID        string    `json:"batch_id"`
	Symbols        []string  `json:"symbols"`
	TotalContracts int       `json:"total_contracts"`
	SuccessCount   int       `json:"success_count"`
	FailureCount   int       `json:"failure_count"`
	AverageTime    float64   `json:"average_time"`
	CompletedAt    int64     `json:"completed_at"`
	OccurredOn     time.Time `json:"occurred_on"`
}
