package application

// PriceOptionRequest HTTP 与 gRPC 共用的定价请求体
type PriceOptionRequest struct {
	Symbol     string  `json:"symbol" binding:"required"`
	OptionType string  `json:"option_type" binding:"required,oneof=CALL PUT"`
	Averaging  string  `json:"averaging" binding:"omitempty,oneof=ARITHMETIC GEOMETRIC"`
	Spot       float64 `json:"spot" binding:"required,gt=0"`
	Strike     float64 `json:"strike" binding:"required,gt=0"`
	Rate       float64 `json:"rate"`
	Sigma      float64 `json:"sigma" binding:"gte=0"`
	Tenor      float64 `json:"tenor" binding:"required,gt=0"`
	Dt         float64 `json:"dt" binding:"required,gt=0"`
	Barrier    float64 `json:"barrier" binding:"required,gt=0"`

	Precision     string  `json:"precision" binding:"omitempty,oneof=single double"`
	NumSims       int     `json:"num_sims" binding:"gte=0"`
	Device        *int    `json:"device"`
	Workers       int     `json:"workers" binding:"gte=0"`
	BlockSize     int     `json:"block_size" binding:"gte=0"`
	Seed          *uint64 `json:"seed"`
	NumericPolicy string  `json:"numeric_policy" binding:"omitempty,oneof=FAIL EXCLUDE"`

	Goldens          map[string]float64 `json:"goldens"`
	Tolerance        float64            `json:"tolerance" binding:"gte=0"`
	Confidence       float64            `json:"confidence" binding:"gte=0,lt=1"`
	ValidateAnalytic bool               `json:"validate_analytic"`
	RunReference     *bool              `json:"run_reference"`
}

// ToCommand 转换为定价命令
func (r PriceOptionRequest) ToCommand() PriceOptionCommand {
	return PriceOptionCommand{
		Symbol:           r.Symbol,
		OptionType:       r.OptionType,
		Averaging:        r.Averaging,
		Spot:             r.Spot,
		Strike:           r.Strike,
		Rate:             r.Rate,
		Sigma:            r.Sigma,
		Tenor:            r.Tenor,
		Dt:               r.Dt,
		Barrier:          r.Barrier,
		Precision:        r.Precision,
		NumSims:          r.NumSims,
		Device:           r.Device,
		Workers:          r.Workers,
		BlockSize:        r.BlockSize,
		Seed:             r.Seed,
		NumericPolicy:    r.NumericPolicy,
		Goldens:          r.Goldens,
		Tolerance:        r.Tolerance,
		Confidence:       r.Confidence,
		ValidateAnalytic: r.ValidateAnalytic,
		RunReference:     r.RunReference,
	}
}

// BatchPriceOptionsRequest 批量定价请求体
type BatchPriceOptionsRequest struct {
	BatchID   string               `json:"batch_id"`
	Contracts []PriceOptionRequest `json:"contracts" binding:"required,min=1,max=100,dive"`
}

// ToCommand 转换为批量定价命令
func (r BatchPriceOptionsRequest) ToCommand() BatchPriceOptionsCommand {
	cmd := BatchPriceOptionsCommand{
		BatchID:   r.BatchID,
		Contracts: make([]PriceOptionCommand, len(r.Contracts)),
	}
	for i, c := range r.Contracts {
		cmd.Contracts[i] = c.ToCommand()
	}
	return cmd
}
