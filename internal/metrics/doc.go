/*
包 metrics 提供基于 Prometheus 的 LLM 调用指标采集。

# 核心类型

  - Collector：实现 llm.Observer，在每次 generate 调用开始与结束时记录指标。
    指标注册在调用方提供的 Registry 上，按 namespace 隔离。

# 指标

  - llm_requests_total{vendor,model,status}：status 为 success 或错误原因
  - llm_request_duration_seconds{vendor,model}：含重试等待的总耗时
  - llm_tokens_used_total{vendor,model,type}：type 为 input/output
  - llm_errors_total{vendor,kind,reason}
  - llm_attempts{vendor}：每次调用的出站尝试次数
  - llm_requests_in_flight{vendor}
*/
package metrics
