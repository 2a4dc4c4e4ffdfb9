// Package telemetry 封装 OpenTelemetry SDK 初始化逻辑，
// 为 llmgate 提供集中式的 TracerProvider 和 MeterProvider 配置，
// 并据此构建挂到客户端上的追踪观察者。
// 当遥测功能禁用时不创建任何导出器，也不连接外部服务。
package telemetry
