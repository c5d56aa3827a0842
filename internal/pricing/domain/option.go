// Package domain 路径依赖期权定价的领域模型：合约、随机路径、收益、归约与定价引擎。
package domain

import (
	"fmt"
	"math"
)

// Real 工作精度。一个合约与引擎的组合在其生命周期内只使用一种精度。
type Real interface {
	~float32 | ~float64
}

// Precision 精度名称
type Precision string

const (
	PrecisionSingle Precision = "single"
	PrecisionDouble Precision = "double"
)

// PrecisionOf 返回类型参数对应的精度名称
func PrecisionOf[R Real]() Precision {
	var zero R
	if _, ok := any(zero).(float32); ok {
		return PrecisionSingle
	}
	return PrecisionDouble
}

// ParsePrecision 解析精度名称
func ParsePrecision(s string) (Precision, error) {
	switch Precision(s) {
	case PrecisionSingle, PrecisionDouble:
		return Precision(s), nil
	case "":
		return PrecisionDouble, nil
	}
	return "", fmt.Errorf("%w: unknown precision %q", ErrInvalidContract, s)
}

// OptionType 期权类型
type OptionType string

const (
	OptionTypeCall OptionType = "CALL" // 看涨期权
	OptionTypePut  OptionType = "PUT"  // 看跌期权
)

// Valid 是否为已知的期权类型
func (t OptionType) Valid() bool {
	return t == OptionTypeCall || t == OptionTypePut
}

// AveragingKind 亚式期权平均方式
type AveragingKind string

const (
	AveragingArithmetic AveragingKind = "ARITHMETIC"
	AveragingGeometric  AveragingKind = "GEOMETRIC"
)

// Valid 空值视为算术平均
func (a AveragingKind) Valid() bool {
	return a == "" || a == AveragingArithmetic || a == AveragingGeometric
}

// OptionContract 路径依赖期权合约
// 参数部分在定价前设置，结果部分由引擎在每次成功运行后写入。
// 合约本身不是并发安全的，同一合约不能同时交给两个定价调用。
type OptionContract[R Real] struct {
	// 市场与合约参数
	Spot      R
	Strike    R
	Rate      R
	Sigma     R
	Tenor     R
	Dt        R
	Barrier   R
	Type      OptionType
	Averaging AveragingKind

	// 调用方提供的参考值
	Golden R

	// 结果
	ValueAsian           R
	ValuePlainVanilla    R
	ValuePlainVanillaCPU R
	ValueKnockout        R
	ValueKnockin         R
	ValueLookback        R
	ValueALK             R
}

// Validate 检查合约参数，任何失败都属于 setup 阶段
func (c *OptionContract[R]) Validate() error {
	fields := []struct {
		name string
		v    R
	}{
		{"spot", c.Spot},
		{"strike", c.Strike},
		{"rate", c.Rate},
		{"sigma", c.Sigma},
		{"tenor", c.Tenor},
		{"dt", c.Dt},
		{"barrier", c.Barrier},
	}
	for _, f := range fields {
		if !isFinite(float64(f.v)) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidContract, f.name)
		}
	}
	switch {
	case c.Spot <= 0:
		return fmt.Errorf("%w: spot must be positive", ErrInvalidContract)
	case c.Strike <= 0:
		return fmt.Errorf("%w: strike must be positive", ErrInvalidContract)
	case c.Sigma < 0:
		return fmt.Errorf("%w: sigma must not be negative", ErrInvalidContract)
	case c.Tenor <= 0:
		return fmt.Errorf("%w: tenor must be positive", ErrInvalidContract)
	case c.Dt <= 0 || c.Dt > c.Tenor:
		return fmt.Errorf("%w: dt must be in (0, tenor]", ErrInvalidContract)
	case c.Barrier <= 0:
		return fmt.Errorf("%w: barrier must be positive", ErrInvalidContract)
	case !c.Type.Valid():
		return fmt.Errorf("%w: unknown option type %q", ErrInvalidContract, c.Type)
	case !c.Averaging.Valid():
		return fmt.Errorf("%w: unknown averaging %q", ErrInvalidContract, c.Averaging)
	}
	return nil
}

// Steps 离散化步数 ceil(tenor/dt)
// 比值在相对误差内接近整数时取该整数（双精度 1e-9，单精度 1e-6），避免 (1/3)/(1/261) 得到 88。
func (c *OptionContract[R]) Steps() int {
	ratio := float64(c.Tenor) / float64(c.Dt)
	nearest := math.Round(ratio)
	tol := 1e-9
	if PrecisionOf[R]() == PrecisionSingle {
		tol = 1e-6
	}
	if math.Abs(ratio-nearest) <= tol*math.Max(1, nearest) {
		return int(nearest)
	}
	return int(math.Ceil(ratio))
}

// UpBarrier 障碍价不低于现价时为向上障碍
func (c *OptionContract[R]) UpBarrier() bool {
	return c.Barrier >= c.Spot
}

// DiscountFactor exp(-r*tenor)
func (c *OptionContract[R]) DiscountFactor() float64 {
	return math.Exp(-float64(c.Rate) * float64(c.Tenor))
}

// ResultFor 按收益类型读取结果槽位
func (c *OptionContract[R]) ResultFor(kind PayoffKind) R {
	switch kind {
	case PayoffPlainVanilla:
		return c.ValuePlainVanilla
	case PayoffAsian:
		return c.ValueAsian
	case PayoffKnockout:
		return c.ValueKnockout
	case PayoffKnockin:
		return c.ValueKnockin
	case PayoffLookback:
		return c.ValueLookback
	case PayoffALK:
		return c.ValueALK
	}
	panic(fmt.Sprintf("domain: unknown payoff kind %d", kind))
}

func (c *OptionContract[R]) setResult(kind PayoffKind, v R) {
	switch kind {
	case PayoffPlainVanilla:
		c.ValuePlainVanilla = v
	case PayoffAsian:
		c.ValueAsian = v
	case PayoffKnockout:
		c.ValueKnockout = v
	case PayoffKnockin:
		c.ValueKnockin = v
	case PayoffLookback:
		c.ValueLookback = v
	case PayoffALK:
		c.ValueALK = v
	default:
		panic(fmt.Sprintf("domain: unknown payoff kind %d", kind))
	}
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
