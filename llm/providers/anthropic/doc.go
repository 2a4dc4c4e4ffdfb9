/*
# 概述

包 anthropic 提供 Anthropic Claude 系列模型的 Provider 适配实现，
将统一请求映射到 Anthropic Messages API（/v1/messages）。

# 协议差异

  - 认证使用 x-api-key 请求头（非 Bearer Token），并携带 anthropic-version
  - system 提示单独传递到 system 字段
  - max_tokens 为必填，未指定时使用 DefaultMaxTokens
  - 图片排在文本之前；远程图片使用 {"type":"url"} source，
    data URL 内联为 {"type":"base64"} source
  - 不支持图片 detail，调用方给出的 detail 会被忽略
  - 用量字段为 input_tokens / output_tokens
*/
package anthropic
