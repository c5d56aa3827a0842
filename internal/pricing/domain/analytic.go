package domain

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// BlackScholesInput Black-Scholes 模型输入
type BlackScholesInput struct {
	S float64 // 标的资产价格
	K float64 // 执行价格
	T float64 // 到期时间 (年)
	R float64 // 无风险利率
	V float64 // 波动率
}

// BlackScholesResult Black-Scholes 模型输出
type BlackScholesResult struct {
	Price float64
	Delta float64
	Gamma float64
	Theta float64
	Vega  float64
	Rho   float64
}

// CalculateBlackScholes 欧式期权价格和 Greeks
// 波动率或期限为零时退化为远期的贴现内在价值，Greeks 只给出 Delta。
func CalculateBlackScholes(optionType OptionType, in BlackScholesInput) BlackScholesResult {
	df := math.Exp(-in.R * in.T)
	if in.V <= 0 || in.T <= 0 {
		return degenerateBlackScholes(optionType, in, df)
	}

	sqrtT := math.Sqrt(in.T)
	d1 := (math.Log(in.S/in.K) + (in.R+0.5*in.V*in.V)*in.T) / (in.V * sqrtT)
	d2 := d1 - in.V*sqrtT
	pdf := distuv.UnitNormal.Prob(d1)

	res := BlackScholesResult{
		Gamma: pdf / (in.S * in.V * sqrtT),
		Vega:  in.S * sqrtT * pdf,
	}
	if optionType == OptionTypeCall {
		res.Price = in.S*normCDF(d1) - in.K*df*normCDF(d2)
		res.Delta = normCDF(d1)
		res.Theta = -in.S*pdf*in.V/(2*sqrtT) - in.R*in.K*df*normCDF(d2)
		res.Rho = in.K * in.T * df * normCDF(d2)
	} else {
		res.Price = in.K*df*normCDF(-d2) - in.S*normCDF(-d1)
		res.Delta = normCDF(d1) - 1
		res.Theta = -in.S*pdf*in.V/(2*sqrtT) + in.R*in.K*df*normCDF(-d2)
		res.Rho = -in.K * in.T * df * normCDF(-d2)
	}
	return res
}

func degenerateBlackScholes(optionType OptionType, in BlackScholesInput, df float64) BlackScholesResult {
	forward := in.S - in.K*df
	var res BlackScholesResult
	if optionType == OptionTypeCall {
		res.Price = math.Max(forward, 0)
		if forward > 0 {
			res.Delta = 1
		}
	} else {
		res.Price = math.Max(-forward, 0)
		if forward < 0 {
			res.Delta = -1
		}
	}
	return res
}

// BlackScholesPrice 合约的欧式价格，与 PlainVanilla 的模拟结果对应
func BlackScholesPrice[R Real](c *OptionContract[R]) float64 {
	return CalculateBlackScholes(c.Type, BlackScholesInput{
		S: float64(c.Spot),
		K: float64(c.Strike),
		T: float64(c.Tenor),
		R: float64(c.Rate),
		V: float64(c.Sigma),
	}).Price
}

// GeometricAsianPrice 离散几何平均亚式期权闭式解
// 监测点 t_i = i*dt, i = 1..n，与模拟中的平均口径一致。
func GeometricAsianPrice[R Real](c *OptionContract[R]) float64 {
	var (
		s     = float64(c.Spot)
		k     = float64(c.Strike)
		r     = float64(c.Rate)
		sigma = float64(c.Sigma)
		dt    = float64(c.Dt)
		n     = float64(c.Steps())
		df    = c.DiscountFactor()
	)
	mu := math.Log(s) + (r-0.5*sigma*sigma)*dt*(n+1)/2
	variance := sigma * sigma * dt * (n + 1) * (2*n + 1) / (6 * n)

	if variance <= 0 {
		g := math.Exp(mu)
		if c.Type == OptionTypeCall {
			return df * math.Max(g-k, 0)
		}
		return df * math.Max(k-g, 0)
	}

	sd := math.Sqrt(variance)
	d2 := (mu - math.Log(k)) / sd
	d1 := d2 + sd
	mean := math.Exp(mu + variance/2)
	if c.Type == OptionTypeCall {
		return df * (mean*normCDF(d1) - k*normCDF(d2))
	}
	return df * (k*normCDF(-d2) - mean*normCDF(-d1))
}

// ZScore 双侧置信水平对应的标准正态分位数
func ZScore(confidence float64) float64 {
	return distuv.UnitNormal.Quantile(0.5 + confidence/2)
}

func normCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}
