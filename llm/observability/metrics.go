package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/BaSui01/llmgate/llm"
)

const instrumentationName = "github.com/BaSui01/llmgate/llm"

// Metrics LLM 调用的 OpenTelemetry 观测器，实现 llm.Observer
type Metrics struct {
	tracer trace.Tracer
	meter  metric.Meter
	// 计数器
	requestTotal metric.Int64Counter
	tokenTotal   metric.Int64Counter
	errorTotal   metric.Int64Counter
	// 直方图
	requestDuration metric.Float64Histogram
	attempts        metric.Int64Histogram
	// 活跃请求
	activeRequests metric.Int64UpDownCounter
}

var _ llm.Observer = (*Metrics)(nil)

// Option 配置 Metrics
type Option func(*options)

type options struct {
	tp trace.TracerProvider
	mp metric.MeterProvider
}

// WithTracerProvider 使用指定的 TracerProvider（默认全局）
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tp = tp }
}

// WithMeterProvider 使用指定的 MeterProvider（默认全局）
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.mp = mp }
}

// NewMetrics 创建指标收集器
func NewMetrics(opts ...Option) (*Metrics, error) {
	o := options{tp: otel.GetTracerProvider(), mp: otel.GetMeterProvider()}
	for _, opt := range opts {
		opt(&o)
	}
	meter := o.mp.Meter(instrumentationName)
	m := &Metrics{
		tracer: o.tp.Tracer(instrumentationName),
		meter:  meter,
	}

	var err error

	// 请求计数
	m.requestTotal, err = meter.Int64Counter("llm.request.total",
		metric.WithDescription("Total number of LLM requests"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}

	// Token 计数
	m.tokenTotal, err = meter.Int64Counter("llm.token.total",
		metric.WithDescription("Total tokens consumed"),
		metric.WithUnit("{token}"))
	if err != nil {
		return nil, err
	}

	// 错误计数
	m.errorTotal, err = meter.Int64Counter("llm.error.total",
		metric.WithDescription("Total number of failed requests"),
		metric.WithUnit("{error}"))
	if err != nil {
		return nil, err
	}

	// 请求延迟
	m.requestDuration, err = meter.Float64Histogram("llm.request.duration",
		metric.WithDescription("Request duration in seconds, retries included"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30))
	if err != nil {
		return nil, err
	}

	// 尝试次数
	m.attempts, err = meter.Int64Histogram("llm.request.attempts",
		metric.WithDescription("Attempts per request"),
		metric.WithUnit("{attempt}"),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 5, 8))
	if err != nil {
		return nil, err
	}

	// 活跃请求数
	m.activeRequests, err = meter.Int64UpDownCounter("llm.request.active",
		metric.WithDescription("Number of active requests"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Begin 开始请求追踪，返回携带 span 的 context
func (m *Metrics) Begin(ctx context.Context, info llm.CallInfo) context.Context {
	ctx, _ = m.tracer.Start(ctx, "llm.generate",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.vendor", string(info.Vendor)),
			attribute.String("llm.model", info.Model),
			attribute.String("llm.request_id", info.RequestID),
		))

	m.activeRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("vendor", string(info.Vendor)),
		attribute.String("model", info.Model)))
	return ctx
}

// End 结束请求追踪
func (m *Metrics) End(ctx context.Context, info llm.CallInfo, out llm.CallOutcome) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	common := metric.WithAttributes(
		attribute.String("vendor", string(info.Vendor)),
		attribute.String("model", info.Model),
		attribute.String("status", out.Status()),
	)

	m.activeRequests.Add(ctx, -1, metric.WithAttributes(
		attribute.String("vendor", string(info.Vendor)),
		attribute.String("model", info.Model)))

	m.requestTotal.Add(ctx, 1, common)
	m.requestDuration.Record(ctx, out.Duration.Seconds(), common)
	if out.Attempts > 0 {
		m.attempts.Record(ctx, int64(out.Attempts), common)
	}

	span.SetAttributes(
		attribute.Int("llm.attempts", out.Attempts),
		attribute.String("llm.status", out.Status()),
	)

	if !out.Success {
		m.errorTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("vendor", string(info.Vendor)),
			attribute.String("model", info.Model),
			attribute.String("kind", out.ErrorKind),
			attribute.String("reason", out.ErrorReason)))
		span.SetAttributes(
			attribute.String("error.kind", out.ErrorKind),
			attribute.String("error.reason", out.ErrorReason))
		span.SetStatus(codes.Error, out.Status())
		return
	}

	// 记录 Token
	m.tokenTotal.Add(ctx, int64(out.InputTokens), metric.WithAttributes(
		attribute.String("vendor", string(info.Vendor)),
		attribute.String("model", info.Model),
		attribute.String("type", "input")))
	m.tokenTotal.Add(ctx, int64(out.OutputTokens), metric.WithAttributes(
		attribute.String("vendor", string(info.Vendor)),
		attribute.String("model", info.Model),
		attribute.String("type", "output")))
	span.SetAttributes(
		attribute.Int("llm.tokens.input", out.InputTokens),
		attribute.Int("llm.tokens.output", out.OutputTokens))
	span.SetStatus(codes.Ok, "")
}
