package domain

import (
	"fmt"
	"math"
	"sort"
)

const (
	// DefaultTolerance 与参考值比较的默认绝对容差
	DefaultTolerance = 0.1
	// DefaultConfidence 置信区间的默认置信水平
	DefaultConfidence = 0.99
)

// ValidationResult 单一收益类型与参考值的比较结果
type ValidationResult struct {
	Kind       PayoffKind `json:"kind"`
	Value      float64    `json:"value"`
	Golden     float64    `json:"golden"`
	Diff       float64    `json:"diff"`
	Tolerance  float64    `json:"tolerance"`
	StdErr     float64    `json:"std_err"`
	Confidence float64    `json:"confidence"`
	HalfWidth  float64    `json:"half_width"`

	WithinTolerance bool `json:"within_tolerance"`
	WithinInterval  bool `json:"within_interval"`
}

// Passed 通过与否只由绝对容差决定，置信区间仅作参考
func (v ValidationResult) Passed() bool { return v.WithinTolerance }

// Err 未通过时返回 validation 阶段错误
func (v ValidationResult) Err() error {
	if v.Passed() {
		return nil
	}
	return fmt.Errorf("%w: %s computed %.6f, golden %.6f, |diff| %.6f > %.6f",
		ErrValidation, v.Kind, v.Value, v.Golden, math.Abs(v.Diff), v.Tolerance)
}

func (v ValidationResult) String() string {
	status := "PASS"
	if !v.Passed() {
		status = "FAIL"
	}
	return fmt.Sprintf("%s %s: value=%.6f golden=%.6f diff=%+.6f tol=%.4f ci=±%.6f@%.0f%%",
		status, v.Kind, v.Value, v.Golden, v.Diff, v.Tolerance, v.HalfWidth, v.Confidence*100)
}

// Validate 比较估计值与参考值
// tolerance <= 0 使用 DefaultTolerance，confidence 不在 (0,1) 内使用 DefaultConfidence。
func Validate(kind PayoffKind, est Estimate, golden, tolerance, confidence float64) ValidationResult {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	if confidence <= 0 || confidence >= 1 {
		confidence = DefaultConfidence
	}
	diff := est.Price - golden
	half := ZScore(confidence) * est.StdErr
	return ValidationResult{
		Kind:            kind,
		Value:           est.Price,
		Golden:          golden,
		Diff:            diff,
		Tolerance:       tolerance,
		StdErr:          est.StdErr,
		Confidence:      confidence,
		HalfWidth:       half,
		WithinTolerance: math.Abs(diff) <= tolerance,
		WithinInterval:  math.Abs(diff) <= half,
	}
}

// ValidateRun 按收益类型逐一校验报告，结果按 PayoffKind 排序
func ValidateRun(r *Report, goldens map[PayoffKind]float64, tolerance, confidence float64) []ValidationResult {
	results := make([]ValidationResult, 0, len(goldens))
	for kind, golden := range goldens {
		if kind < 0 || int(kind) >= NumPayoffKinds {
			continue
		}
		results = append(results, Validate(kind, r.Estimate(kind), golden, tolerance, confidence))
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Kind < results[j].Kind })
	return results
}

// FirstFailure 第一个未通过的结果对应的错误
func FirstFailure(results []ValidationResult) error {
	for _, r := range results {
		if err := r.Err(); err != nil {
			return err
		}
	}
	return nil
}
