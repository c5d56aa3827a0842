package domain

import "math"

// GBM 几何布朗运动离散化
// S(t+dt) = S(t) * exp((r - 0.5*sigma^2)*dt + sigma*sqrt(dt)*Z)
// 漂移与扩散项按工作精度预先计算，指数结果立即舍入回工作精度。
type GBM[R Real] struct {
	drift     R
	diffusion R
	steps     int
}

// NewGBM 由合约参数构造离散化过程
func NewGBM[R Real](c *OptionContract[R]) GBM[R] {
	return GBM[R]{
		drift:     (c.Rate - c.Sigma*c.Sigma/2) * c.Dt,
		diffusion: c.Sigma * R(math.Sqrt(float64(c.Dt))),
		steps:     c.Steps(),
	}
}

// Steps 每条路径的步数
func (g GBM[R]) Steps() int { return g.steps }

// Step 单步演化
func (g GBM[R]) Step(s, z R) R {
	return s * R(math.Exp(float64(g.drift+g.diffusion*z)))
}

// Simulate 生成第 pathIndex 条路径并把各监测点送入 stats
func (g GBM[R]) Simulate(c *OptionContract[R], stream *PathStream, pathIndex uint64, stats *PathStats[R]) {
	stream.Reset(pathIndex)
	stats.Reset(c)
	s := c.Spot
	for i := 0; i < g.steps; i++ {
		s = g.Step(s, R(stream.Normal()))
		stats.Observe(s)
	}
}
