package domain

import (
	"errors"
	"fmt"
)

// Stage 失败所处的阶段
type Stage string

const (
	StageNone       Stage = ""
	StageSetup      Stage = "SETUP"
	StageNumeric    Stage = "NUMERIC"
	StageValidation Stage = "VALIDATION"
)

var (
	ErrSetup      = errors.New("pricing setup failed")
	ErrNumeric    = errors.New("non-finite path payoff")
	ErrValidation = errors.New("value outside tolerance of golden")

	ErrInvalidContract   = fmt.Errorf("%w: invalid option contract", ErrSetup)
	ErrInvalidConfig     = fmt.Errorf("%w: invalid engine config", ErrSetup)
	ErrDeviceUnavailable = fmt.Errorf("%w: device unavailable", ErrSetup)
	ErrParallelism       = fmt.Errorf("%w: parallel width unavailable on device", ErrSetup)
	ErrRunNotFound       = errors.New("pricing run not found")
)

// NumericError 路径级数值失败的汇总
type NumericError struct {
	Strategy  Strategy
	Kind      PayoffKind
	NonFinite int64
	Paths     int64
}

func (e *NumericError) Error() string {
	return fmt.Sprintf("%s strategy: %d of %d %s payoffs were not finite",
		e.Strategy, e.NonFinite, e.Paths, e.Kind)
}

func (e *NumericError) Unwrap() error { return ErrNumeric }

// StageOf 将错误映射到阶段，未知错误返回 StageNone
func StageOf(err error) Stage {
	switch {
	case err == nil:
		return StageNone
	case errors.Is(err, ErrSetup):
		return StageSetup
	case errors.Is(err, ErrNumeric):
		return StageNumeric
	case errors.Is(err, ErrValidation):
		return StageValidation
	}
	return StageNone
}
