// Package metrics 提供 Prometheus helper，包含定价运行与接口请求的 counter/histogram
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wyfcoding/pathpricing/pkg/logger"
)

const namespace = "pathpricing"

// Metrics 指标集合
type Metrics struct {
	// HTTP 请求计数（method, path, status）
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时
	HTTPRequestDuration *prometheus.HistogramVec

	// gRPC 请求计数（method, code）
	GRPCRequestsTotal *prometheus.CounterVec

	// 定价运行计数（strategy, precision, outcome）
	RunsTotal *prometheus.CounterVec
	// 定价运行耗时（strategy, precision）
	RunDuration *prometheus.HistogramVec
	// 模拟路径总数
	PathsTotal *prometheus.CounterVec
	// 非有限收益的路径数
	NonFinitePathsTotal *prometheus.CounterVec
	// 参考值校验失败次数（kind）
	ValidationFailuresTotal *prometheus.CounterVec

	// outbox 转发到 Kafka 的消息数
	OutboxRelayedTotal prometheus.Counter
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		GRPCRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "grpc_requests_total",
			Help:      "Total gRPC requests",
		}, []string{"method", "code"}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "runs_total",
			Help:      "Pricing runs by strategy, precision and outcome",
		}, []string{"strategy", "precision", "outcome"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "run_duration_seconds",
			Help:      "Pricing run duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"strategy", "precision"}),
		PathsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "simulated_paths_total",
			Help:      "Simulated Monte Carlo paths",
		}, []string{"strategy"}),
		NonFinitePathsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "non_finite_paths_total",
			Help:      "Paths whose payoff was not finite",
		}, []string{"strategy"}),
		ValidationFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "validation_failures_total",
			Help:      "Payoffs outside tolerance of their golden value",
		}, []string{"kind"}),
		OutboxRelayedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "outbox_relayed_total",
			Help:      "Outbox messages relayed to Kafka",
		}),
	}
}

// Register 注册所有指标
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.GRPCRequestsTotal,
		m.RunsTotal,
		m.RunDuration,
		m.PathsTotal,
		m.NonFinitePathsTotal,
		m.ValidationFailuresTotal,
		m.OutboxRelayedTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			logger.Error(context.Background(), "Failed to register metric", "error", err)
			return err
		}
	}
	logger.Info(context.Background(), "Metrics registered successfully")
	return nil
}

// Handler 暴露指定 registry 的 /metrics 处理器
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// MetricsCollector 指标收集器接口
type MetricsCollector interface {
	// 记录 HTTP 请求
	RecordHTTPRequest(method, path string, statusCode int, duration time.Duration)
	// 记录 gRPC 请求
	RecordGRPCRequest(method, code string)
	// 记录一次定价运行；outcome 为 OK 或失败阶段
	RecordRun(strategy, precision, outcome string, duration time.Duration, paths, nonFinite int64)
	// 记录参考值校验失败
	RecordValidationFailure(kind string)
	// 记录 outbox 转发条数
	RecordOutboxRelayed(n int)
}

// DefaultMetricsCollector 默认指标收集器实现
type DefaultMetricsCollector struct {
	metrics *Metrics
}

// NewDefaultMetricsCollector 创建默认指标收集器
func NewDefaultMetricsCollector(metrics *Metrics) *DefaultMetricsCollector {
	return &DefaultMetricsCollector{metrics: metrics}
}

// RecordHTTPRequest 记录 HTTP 请求
func (dmc *DefaultMetricsCollector) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	dmc.metrics.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	dmc.metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordGRPCRequest 记录 gRPC 请求
func (dmc *DefaultMetricsCollector) RecordGRPCRequest(method, code string) {
	dmc.metrics.GRPCRequestsTotal.WithLabelValues(method, code).Inc()
}

// RecordRun 记录定价运行
func (dmc *DefaultMetricsCollector) RecordRun(strategy, precision, outcome string, duration time.Duration, paths, nonFinite int64) {
	dmc.metrics.RunsTotal.WithLabelValues(strategy, precision, outcome).Inc()
	dmc.metrics.RunDuration.WithLabelValues(strategy, precision).Observe(duration.Seconds())
	dmc.metrics.PathsTotal.WithLabelValues(strategy).Add(float64(paths))
	if nonFinite > 0 {
		dmc.metrics.NonFinitePathsTotal.WithLabelValues(strategy).Add(float64(nonFinite))
	}
}

// RecordValidationFailure 记录参考值校验失败
func (dmc *DefaultMetricsCollector) RecordValidationFailure(kind string) {
	dmc.metrics.ValidationFailuresTotal.WithLabelValues(kind).Inc()
}

// RecordOutboxRelayed 记录 outbox 转发条数
func (dmc *DefaultMetricsCollector) RecordOutboxRelayed(n int) {
	dmc.metrics.OutboxRelayedTotal.Add(float64(n))
}

// NopCollector 不记录任何指标，用于测试与未启用指标的场景
type NopCollector struct{}

func (NopCollector) RecordHTTPRequest(string, string, int, time.Duration)          {}
func (NopCollector) RecordGRPCRequest(string, string)                              {}
func (NopCollector) RecordRun(string, string, string, time.Duration, int64, int64) {}
func (NopCollector) RecordValidationFailure(string)                                {}
func (NopCollector) RecordOutboxRelayed(int)                                       {}
