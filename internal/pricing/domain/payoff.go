package domain

import (
	"fmt"
	"math"
)

// PayoffKind 收益类型，集合固定
type PayoffKind int

const (
	PayoffPlainVanilla PayoffKind = iota
	PayoffAsian
	PayoffKnockout
	PayoffKnockin
	PayoffLookback
	PayoffALK

	NumPayoffKinds = int(PayoffALK) + 1
)

// AllPayoffKinds 按槽位顺序列出全部收益类型
var AllPayoffKinds = [NumPayoffKinds]PayoffKind{
	PayoffPlainVanilla,
	PayoffAsian,
	PayoffKnockout,
	PayoffKnockin,
	PayoffLookback,
	PayoffALK,
}

var payoffNames = [NumPayoffKinds]string{
	"PLAIN_VANILLA",
	"ASIAN",
	"KNOCKOUT",
	"KNOCKIN",
	"LOOKBACK",
	"ALK",
}

func (k PayoffKind) String() string {
	if k < 0 || int(k) >= NumPayoffKinds {
		return fmt.Sprintf("PayoffKind(%d)", int(k))
	}
	return payoffNames[k]
}

// ParsePayoffKind 解析收益类型名称
func ParsePayoffKind(s string) (PayoffKind, error) {
	for i, name := range payoffNames {
		if name == s {
			return PayoffKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown payoff kind %q", s)
}

// MarshalText 以名称序列化
func (k PayoffKind) MarshalText() ([]byte, error) {
	if k < 0 || int(k) >= NumPayoffKinds {
		return nil, fmt.Errorf("unknown payoff kind %d", int(k))
	}
	return []byte(payoffNames[k]), nil
}

// UnmarshalText 按名称解析
func (k *PayoffKind) UnmarshalText(b []byte) error {
	v, err := ParsePayoffKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// PathStats 单条路径的流式统计量，路径价格本身不保留
// 监测点为 S_0..S_n：极值和障碍包含 S_0，平均只取 S_1..S_n。
type PathStats[R Real] struct {
	up        bool
	geometric bool
	barrier   R

	sum    R
	logSum R
	count  int

	min  R
	max  R
	last R
	bad  bool
}

// Reset 以合约现价开始一条新路径
func (p *PathStats[R]) Reset(c *OptionContract[R]) {
	p.up = c.UpBarrier()
	p.geometric = c.Averaging == AveragingGeometric
	p.barrier = c.Barrier
	p.sum = 0
	p.logSum = 0
	p.count = 0
	p.min = c.Spot
	p.max = c.Spot
	p.last = c.Spot
	p.bad = false
}

// Observe 记录下一个监测点价格
func (p *PathStats[R]) Observe(s R) {
	if !isFinite(float64(s)) {
		p.bad = true
	}
	p.sum += s
	if p.geometric {
		p.logSum += R(math.Log(float64(s)))
	}
	p.count++
	if s < p.min {
		p.min = s
	}
	if s > p.max {
		p.max = s
	}
	p.last = s
}

// Finite 路径上所有价格都是有限值
func (p *PathStats[R]) Finite() bool { return !p.bad }

// Terminal 到期价格
func (p *PathStats[R]) Terminal() R { return p.last }

// Min 路径最小值
func (p *PathStats[R]) Min() R { return p.min }

// Max 路径最大值
func (p *PathStats[R]) Max() R { return p.max }

// Average 平均价格；没有观测点时退化为现价
func (p *PathStats[R]) Average() R {
	if p.count == 0 {
		return p.last
	}
	if p.geometric {
		return R(math.Exp(float64(p.logSum / R(p.count))))
	}
	return p.sum / R(p.count)
}

// Hit 障碍一侧的极值是否触及障碍，触及即算穿越
func (p *PathStats[R]) Hit() bool {
	if p.up {
		return p.max >= p.barrier
	}
	return p.min <= p.barrier
}

// Evaluate 计算一种收益（未贴现）
// 出现过非有限价格的路径对所有类型都返回 NaN，由归约层计数。
func (p *PathStats[R]) Evaluate(kind PayoffKind, c *OptionContract[R]) R {
	if p.bad {
		return R(math.NaN())
	}
	switch kind {
	case PayoffPlainVanilla:
		return intrinsic(c.Type, p.last, c.Strike)
	case PayoffAsian:
		return intrinsic(c.Type, p.Average(), c.Strike)
	case PayoffKnockout:
		if p.Hit() {
			return 0
		}
		return intrinsic(c.Type, p.last, c.Strike)
	case PayoffKnockin:
		if !p.Hit() {
			return 0
		}
		return intrinsic(c.Type, p.last, c.Strike)
	case PayoffLookback:
		if c.Type == OptionTypeCall {
			return p.last - p.min
		}
		return p.max - p.last
	case PayoffALK:
		if p.Hit() {
			return 0
		}
		return intrinsic(c.Type, p.Average(), c.Strike)
	}
	panic(fmt.Sprintf("domain: unknown payoff kind %d", kind))
}

// EvaluateAll 计算全部收益类型，结果按 PayoffKind 下标存放
func (p *PathStats[R]) EvaluateAll(c *OptionContract[R], out *[NumPayoffKinds]float64) {
	for _, kind := range AllPayoffKinds {
		out[kind] = float64(p.Evaluate(kind, c))
	}
}

func intrinsic[R Real](t OptionType, price, strike R) R {
	var v R
	if t == OptionTypeCall {
		v = price - strike
	} else {
		v = strike - price
	}
	if v > 0 {
		return v
	}
	return 0
}
