package domain

import "math"

// Accumulator 单一收益类型的部分和
// 以 float64 做 Neumaier 补偿求和，非有限值只计数、不进入和。
type Accumulator struct {
	n         int64
	nonFinite int64

	sum    float64
	comp   float64
	sumSq  float64
	compSq float64
}

// Add 加入一条路径的收益
func (a *Accumulator) Add(x float64) {
	if !isFinite(x) {
		a.nonFinite++
		return
	}
	a.n++
	a.sum, a.comp = neumaier(a.sum, a.comp, x)
	a.sumSq, a.compSq = neumaier(a.sumSq, a.compSq, x*x)
}

// Merge 合并另一个部分和
func (a *Accumulator) Merge(b *Accumulator) {
	a.n += b.n
	a.nonFinite += b.nonFinite
	a.sum, a.comp = neumaier(a.sum, a.comp, b.sum)
	a.comp += b.comp
	a.sumSq, a.compSq = neumaier(a.sumSq, a.compSq, b.sumSq)
	a.compSq += b.compSq
}

// Count 有限样本数
func (a *Accumulator) Count() int64 { return a.n }

// NonFinite 被排除的非有限样本数
func (a *Accumulator) NonFinite() int64 { return a.nonFinite }

// Sum 补偿后的和
func (a *Accumulator) Sum() float64 { return a.sum + a.comp }

// Mean 样本均值，无样本时为 NaN
func (a *Accumulator) Mean() float64 {
	if a.n == 0 {
		return math.NaN()
	}
	return a.Sum() / float64(a.n)
}

// Variance 样本方差
func (a *Accumulator) Variance() float64 {
	if a.n < 2 {
		return 0
	}
	mean := a.Mean()
	v := (a.sumSq + a.compSq - float64(a.n)*mean*mean) / float64(a.n-1)
	if v < 0 {
		return 0
	}
	return v
}

// Estimate 贴现后的价格估计
func (a *Accumulator) Estimate(kind PayoffKind, discount float64) Estimate {
	est := Estimate{
		Kind:      kind,
		Price:     discount * a.Mean(),
		Paths:     a.n,
		NonFinite: a.nonFinite,
	}
	if a.n > 0 {
		est.StdErr = discount * math.Sqrt(a.Variance()/float64(a.n))
	}
	return est
}

func neumaier(sum, comp, x float64) (float64, float64) {
	t := sum + x
	if math.Abs(sum) >= math.Abs(x) {
		comp += (sum - t) + x
	} else {
		comp += (x - t) + sum
	}
	return t, comp
}

// PayoffAccumulators 每种收益类型一个部分和
type PayoffAccumulators [NumPayoffKinds]Accumulator

// Add 加入一条路径的全部收益
func (p *PayoffAccumulators) Add(payoffs *[NumPayoffKinds]float64) {
	for i := range p {
		p[i].Add(payoffs[i])
	}
}

// Merge 逐类型合并
func (p *PayoffAccumulators) Merge(o *PayoffAccumulators) {
	for i := range p {
		p[i].Merge(&o[i])
	}
}

// ReducePairwise 以固定形状的两两归并树合并各分区结果
// 结果只取决于分区顺序，与调度顺序无关。parts 会被原地修改。
func ReducePairwise(parts []PayoffAccumulators) PayoffAccumulators {
	if len(parts) == 0 {
		return PayoffAccumulators{}
	}
	for width := 1; width < len(parts); width *= 2 {
		for i := 0; i+width < len(parts); i += 2 * width {
			parts[i].Merge(&parts[i+width])
		}
	}
	return parts[0]
}

// Estimate 某一收益类型的估计结果
type Estimate struct {
	Kind      PayoffKind
	Price     float64
	StdErr    float64
	Paths     int64
	NonFinite int64
}
