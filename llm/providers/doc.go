/*
# 概述

包 providers 是各厂商 Provider 的公共基础层：一次 HTTP 往返、错误消息提取、
Retry-After 解析与图片辅助。子包 openaicompat 承载 OpenAI 兼容信封，
openai、openrouter、zai、ollama 在其上仅声明 Descriptor 与认证差异；
anthropic 与 gemini 各自实现自己的信封。

# 核心函数

  - PostJSON：发送 JSON 请求；非 2xx 返回 *llm.HTTPError，坏响应体返回 *llm.DecodeError
  - ReadErrorMessage：基于 gjson 从厂商错误体提取消息
  - ParseRetryAfter：解析秒数或 HTTP 日期形式的 Retry-After
  - ParseDataURL / GuessMediaType：内联图片与 MIME 推断
  - Config：APIKey、BaseURL、Timeout、透传选项与加固的 HTTP 客户端

Provider 不做重试，也不做错误分类；二者由 llm.BaseClient 统一完成。
*/
package providers
