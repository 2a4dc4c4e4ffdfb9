/*
包 llm 提供厂商无关的大语言模型客户端层：厂商描述、内容格式化、
错误分类与统一的客户端契约。

# 概述

调用方通过 [Client] 发起一次文本或多模态补全，无需了解各厂商的
请求/响应结构、鉴权方式与差异。失败永远不会以 error 形式逃逸出
[Client]：所有错误都被分类为 *types.Error，并记录在
Response.Metadata()["error"] 中。

# 核心类型

  - [Provider]：厂商传输层，只负责一次 HTTP 往返，不做重试与分类
  - [Descriptor]：厂商能力描述（鉴权方式、默认模型、是否支持 detail、
    图片是否排在文本之前，以及四个格式化函数）
  - [BaseClient]：[Client] 的实现，组合格式化、token 估算、重试、限流与观察者
  - [Observer]：调用生命周期钩子，指标与追踪后端实现它

# 调用流程

  1. [FormatPrompt] 将 PlainText / Structured / RawParts 按描述归一化为内容部件
  2. [ExtractText] 拼接文本部件，交给 tokenizer 估算输入 token
  3. retry.Do 包裹 [Provider].Completion，每次失败经 [Classify] 得到类型化错误
  4. 成功时优先采用厂商上报的用量，否则回落到估算值

# 相关包

  - llm/factory：厂商解析与客户端构建
  - llm/providers/...：各厂商实现
  - llm/retry、llm/tokenizer、llm/prompts、llm/observability
*/
package llm
