// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/llmgate/llm"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器，作为 llm.Observer 挂到客户端上
type Collector struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	tokensUsed      *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	attempts        *prometheus.HistogramVec
	inFlight        *prometheus.GaugeVec

	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

var _ llm.Observer = (*Collector)(nil)

// NewCollector 在 reg 上注册指标；reg 为 nil 时使用独立的新 Registry
func NewCollector(namespace string, reg *prometheus.Registry, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		gatherer: reg,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	c.requestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of generate calls",
		},
		[]string{"vendor", "model", "status"},
	)

	c.requestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Generate call duration in seconds, retries included",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"vendor", "model"},
	)

	c.tokensUsed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens used",
		},
		[]string{"vendor", "model", "type"}, // type: input, output
	)

	c.errorsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_errors_total",
			Help:      "Failed generate calls by error kind and transport reason",
		},
		[]string{"vendor", "kind", "reason"},
	)

	c.attempts = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_attempts",
			Help:      "Outbound attempts per generate call",
			Buckets:   []float64{1, 2, 3, 5, 8},
		},
		[]string{"vendor"},
	)

	c.inFlight = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "llm_requests_in_flight",
			Help:      "Generate calls currently running",
		},
		[]string{"vendor"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🤖 LLM 指标记录
// =============================================================================

// Begin 实现 llm.Observer
func (c *Collector) Begin(ctx context.Context, info llm.CallInfo) context.Context {
	c.inFlight.WithLabelValues(string(info.Vendor)).Inc()
	return ctx
}

// End 实现 llm.Observer
func (c *Collector) End(_ context.Context, info llm.CallInfo, out llm.CallOutcome) {
	vendor := string(info.Vendor)
	c.inFlight.WithLabelValues(vendor).Dec()
	c.RecordLLMRequest(vendor, info.Model, out)
}

// RecordLLMRequest 记录一次调用结果
func (c *Collector) RecordLLMRequest(vendor, model string, out llm.CallOutcome) {
	c.requestsTotal.WithLabelValues(vendor, model, out.Status()).Inc()
	c.requestDuration.WithLabelValues(vendor, model).Observe(out.Duration.Seconds())
	if out.Attempts > 0 {
		c.attempts.WithLabelValues(vendor).Observe(float64(out.Attempts))
	}
	if out.Success {
		c.tokensUsed.WithLabelValues(vendor, model, "input").Add(float64(out.InputTokens))
		c.tokensUsed.WithLabelValues(vendor, model, "output").Add(float64(out.OutputTokens))
		return
	}
	c.errorsTotal.WithLabelValues(vendor, out.ErrorKind, out.ErrorReason).Inc()
}

// Handler 返回暴露本收集器指标的 HTTP 处理器
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
