/*
Package main 提供 llmgate 命令行程序。

# 子命令

  - generate：向一个或多个模型发起补全；多个 --model 时经 errgroup 并发，
    结果以表格（go-pretty）或 --json 输出。提示来源三选一：
    --prompt（可配合 --image 组成图文提示）、--raw（厂商原生内容部件 JSON 文件）、
    --type 加 --data（模板渲染）。
  - vendors：列出厂商注册表及当前配置状态（默认模型、基础地址、Key 是否已配置）。
  - version：打印版本信息，Version 与 GitCommit 通过 ldflags 注入。

配置按 --config、$LLMGATE_CONFIG 的顺序定位，再叠加环境变量。
metrics.enabled 时为本次调用挂载 Prometheus 收集器，设置 metrics.listen_addr
则在命令运行期间暴露 /metrics；telemetry.enabled 时挂载 OpenTelemetry 追踪。
*/
package main
