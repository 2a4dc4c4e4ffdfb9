/*
包 observability 基于 OpenTelemetry 为 LLM 调用提供指标与追踪。

Metrics 实现 llm.Observer：每次 Generate 调用开启一个 llm.generate span，
结束时记录请求计数、错误计数、Token 计数、延迟直方图与尝试次数直方图。
默认使用全局 TracerProvider 与 MeterProvider，可通过 WithTracerProvider
与 WithMeterProvider 替换（测试中常用）。
*/
package observability
